// Package statement parses bank statement CSV exports and imports
// them as ledger entries. The supported format is the Brazilian export
// layout: day-first dates, Entrada/Saída direction column and
// comma-decimal amounts with dot thousand separators ("14.470,44").
package statement

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/patrimonio/bucket-engine/ledger"
)

var log = logrus.New()

// SetLogger allows setting a configured logger.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Row represents a single line in a statement CSV file.
// It uses struct tags for gocsv unmarshaling.
type Row struct {
	Date        string `csv:"Data"`
	Description string `csv:"Descrição"`
	Direction   string `csv:"Tipo"` // Entrada or Saída
	Amount      string `csv:"Valor"`
}

// Transaction is a parsed, normalized statement line ready to feed the
// engine.
type Transaction struct {
	Date        string // YYYY-MM-DD
	Description string
	Kind        ledger.Kind
	Amount      decimal.Decimal
}

const dayFirstLayout = "02/01/2006"

// ParseFile parses a statement CSV file from disk.
func ParseFile(filePath string) ([]Transaction, error) {
	log.WithField("file", filePath).Info("Parsing statement CSV file")

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening statement file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads statement rows from r and converts them.
func Parse(r io.Reader) ([]Transaction, error) {
	var rows []Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("error reading statement CSV: %w", err)
	}

	var transactions []Transaction
	for _, row := range rows {
		if row.Date == "" || row.Amount == "" {
			continue
		}
		tx, err := convertRow(row)
		if err != nil {
			log.WithError(err).WithField("row", row).Warn("Failed to convert statement row")
			continue
		}
		transactions = append(transactions, tx)
	}

	log.WithField("count", len(transactions)).Info("Successfully parsed statement CSV")
	return transactions, nil
}

func convertRow(row Row) (Transaction, error) {
	date, err := ParseDayFirstDate(row.Date)
	if err != nil {
		return Transaction{}, err
	}

	amount, err := ParseBrazilianAmount(row.Amount)
	if err != nil {
		return Transaction{}, err
	}
	if !amount.IsPositive() {
		return Transaction{}, fmt.Errorf("non-positive amount: %s", row.Amount)
	}

	kind, err := kindFor(row.Direction)
	if err != nil {
		return Transaction{}, err
	}

	return Transaction{
		Date:        date,
		Description: strings.TrimSpace(row.Description),
		Kind:        kind,
		Amount:      amount,
	}, nil
}

// ParseDayFirstDate converts dd/mm/yyyy to YYYY-MM-DD.
func ParseDayFirstDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "/")
	if len(parts) != 3 || len(parts[2]) != 4 {
		return "", fmt.Errorf("invalid date %q, expected dd/mm/yyyy", s)
	}
	tp, err := ledger.ParseDate(fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[1]), pad2(parts[0])))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return tp.String(), nil
}

// ParseBrazilianAmount parses "1.234,56" style amounts: dots are
// thousand separators, the comma is the decimal mark.
func ParseBrazilianAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}

func kindFor(direction string) (ledger.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "entrada":
		return ledger.KindDeposit, nil
	case "saída", "saida":
		return ledger.KindWithdrawal, nil
	}
	return "", fmt.Errorf("unknown direction %q, expected Entrada or Saída", direction)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// Import feeds parsed transactions into a bucket through the engine,
// returning how many were written. Rows that fail validation are
// skipped with a warning rather than aborting the batch.
func Import(ctx context.Context, engine *ledger.Engine, bucketID ledger.BucketID, transactions []Transaction) (int, error) {
	var imported int
	for _, tx := range transactions {
		_, err := engine.AddSimpleTransaction(ctx, ledger.SimpleTransactionInput{
			BucketID:    bucketID,
			Kind:        tx.Kind,
			Amount:      tx.Amount,
			Date:        tx.Date,
			Description: tx.Description,
		})
		if err != nil {
			if ledger.IsValidation(err) {
				log.WithError(err).WithField("description", tx.Description).Warn("Skipping invalid statement row")
				continue
			}
			return imported, err
		}
		imported++
	}
	return imported, nil
}
