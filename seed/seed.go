/*
Package seed loads YAML fixtures into the ledger for development and
demos.

PURPOSE:
  A fixture file declares buckets and the transactions between them by
  symbolic name; the loader creates the buckets and routes every
  transaction through the engine, so seeded data obeys the same rules
  as live data - linked pairs, loan tagging, running balances.

FIXTURE FORMAT:
  buckets:
    - name: Reserva
      currency: BRL
      opening_balance: "10000"
      yield_rate: "13.5"
      loan_rate: "1.32"
  transactions:
    - type: deposit          # deposit|withdrawal|yield|transfer|loan
      bucket: Reserva        # origin bucket by name
      amount: "1500"
      date: 2026-01-10
      description: Paycheck
    - type: transfer
      bucket: Reserva
      destination: Viagem
      amount: "300"
      date: 2026-01-12

NOTE:
  Only use in development/demo environments; the loader does not reset
  existing data.
*/
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/patrimonio/bucket-engine/ledger"
)

// Fixture is the root of a YAML seed file.
type Fixture struct {
	Buckets      []BucketFixture      `yaml:"buckets"`
	Transactions []TransactionFixture `yaml:"transactions"`
}

type BucketFixture struct {
	Name                string `yaml:"name"`
	Currency            string `yaml:"currency"`
	OpeningBalance      string `yaml:"opening_balance"`
	YieldRate           string `yaml:"yield_rate"`
	LoanRate            string `yaml:"loan_rate"`
	MonthlyContribution string `yaml:"monthly_contribution"`
	HorizonMonths       int    `yaml:"horizon_months"`
}

type TransactionFixture struct {
	Type        string `yaml:"type"` // deposit, withdrawal, yield, transfer, loan
	Bucket      string `yaml:"bucket"`
	Destination string `yaml:"destination"`
	Amount      string `yaml:"amount"`
	Date        string `yaml:"date"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
	Rate        string `yaml:"rate"`         // loans: annual percent
	MarkAsLoan  bool   `yaml:"mark_as_loan"` // redirected yield only
}

// Loader applies fixtures through the engine.
type Loader struct {
	Engine *ledger.Engine
	Log    *logrus.Logger
}

func NewLoader(engine *ledger.Engine, log *logrus.Logger) *Loader {
	if log == nil {
		log = logrus.New()
	}
	return &Loader{Engine: engine, Log: log}
}

// LoadFile reads and applies one YAML fixture file.
func (l *Loader) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}
	return l.Load(ctx, fixture)
}

// Load creates the declared buckets and applies the transactions in
// file order.
func (l *Loader) Load(ctx context.Context, fixture Fixture) error {
	byName := make(map[string]ledger.BucketID, len(fixture.Buckets))

	for _, bf := range fixture.Buckets {
		input, err := bucketInput(bf)
		if err != nil {
			return fmt.Errorf("bucket %q: %w", bf.Name, err)
		}
		bucket, err := l.Engine.CreateBucket(ctx, *input)
		if err != nil {
			return fmt.Errorf("bucket %q: %w", bf.Name, err)
		}
		byName[bf.Name] = bucket.ID
		l.Log.WithFields(logrus.Fields{"bucket": bf.Name, "id": bucket.ID}).Debug("seeded bucket")
	}

	for i, tf := range fixture.Transactions {
		if err := l.apply(ctx, byName, tf); err != nil {
			return fmt.Errorf("transaction %d (%s): %w", i, tf.Type, err)
		}
	}

	l.Log.WithFields(logrus.Fields{
		"buckets":      len(fixture.Buckets),
		"transactions": len(fixture.Transactions),
	}).Info("seed fixture loaded")
	return nil
}

func (l *Loader) apply(ctx context.Context, byName map[string]ledger.BucketID, tf TransactionFixture) error {
	origin, ok := byName[tf.Bucket]
	if !ok {
		return fmt.Errorf("unknown bucket %q", tf.Bucket)
	}
	amount, err := decimal.NewFromString(tf.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", tf.Amount, err)
	}

	switch tf.Type {
	case "deposit", "withdrawal":
		kind := ledger.KindDeposit
		if tf.Type == "withdrawal" {
			kind = ledger.KindWithdrawal
		}
		_, err := l.Engine.AddSimpleTransaction(ctx, ledger.SimpleTransactionInput{
			BucketID:    origin,
			Kind:        kind,
			Amount:      amount,
			Date:        tf.Date,
			Description: tf.Description,
			Status:      ledger.Status(tf.Status),
		})
		return err

	case "yield":
		input := ledger.YieldInput{
			BucketID:    origin,
			Amount:      amount,
			Date:        tf.Date,
			Description: tf.Description,
			MarkAsLoan:  tf.MarkAsLoan,
		}
		if tf.Destination != "" {
			destination, ok := byName[tf.Destination]
			if !ok {
				return fmt.Errorf("unknown bucket %q", tf.Destination)
			}
			input.DestinationID = destination
		}
		if tf.Rate != "" {
			rate, err := decimal.NewFromString(tf.Rate)
			if err != nil {
				return fmt.Errorf("invalid rate %q: %w", tf.Rate, err)
			}
			input.RateOverride = &rate
		}
		_, err := l.Engine.AddYield(ctx, input)
		return err

	case "transfer":
		destination, ok := byName[tf.Destination]
		if !ok {
			return fmt.Errorf("unknown bucket %q", tf.Destination)
		}
		_, err := l.Engine.AddTransfer(ctx, ledger.TransferInput{
			OriginID:      origin,
			DestinationID: destination,
			Amount:        amount,
			Date:          tf.Date,
			Description:   tf.Description,
		})
		return err

	case "loan":
		destination, ok := byName[tf.Destination]
		if !ok {
			return fmt.Errorf("unknown bucket %q", tf.Destination)
		}
		input := ledger.LoanInput{
			LenderID:    origin,
			BorrowerID:  destination,
			Amount:      amount,
			Date:        tf.Date,
			Description: tf.Description,
		}
		if tf.Rate != "" {
			rate, err := decimal.NewFromString(tf.Rate)
			if err != nil {
				return fmt.Errorf("invalid rate %q: %w", tf.Rate, err)
			}
			input.RateOverride = &rate
		}
		_, err := l.Engine.AddLoan(ctx, input)
		return err
	}
	return fmt.Errorf("unknown transaction type %q", tf.Type)
}

func bucketInput(bf BucketFixture) (*ledger.BucketInput, error) {
	input := &ledger.BucketInput{
		Name:          bf.Name,
		Currency:      ledger.Currency(bf.Currency),
		HorizonMonths: bf.HorizonMonths,
	}
	if input.Currency == "" {
		input.Currency = ledger.CurrencyBRL
	}

	var err error
	if input.OpeningBalance, err = optDecimal(bf.OpeningBalance); err != nil {
		return nil, fmt.Errorf("invalid opening_balance: %w", err)
	}
	if input.YieldRate, err = optDecimal(bf.YieldRate); err != nil {
		return nil, fmt.Errorf("invalid yield_rate: %w", err)
	}
	if input.LoanRate, err = optDecimal(bf.LoanRate); err != nil {
		return nil, fmt.Errorf("invalid loan_rate: %w", err)
	}
	if input.MonthlyContribution, err = optDecimal(bf.MonthlyContribution); err != nil {
		return nil, fmt.Errorf("invalid monthly_contribution: %w", err)
	}
	return input, nil
}

func optDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
