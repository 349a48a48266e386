/*
engine.go - Ledger mutation engine

PURPOSE:
  Orchestrates creation of single- and dual-bucket transactions
  (deposits, withdrawals, transfers, loans, redirected yield), edits,
  loan repayment, and the read-side queries (balance, loan status,
  aggregate metrics).

COMMIT-THEN-RESYNC:
  Every operation writes its rows first and then runs the synchronizer
  on every bucket it touched, so stored balances and computed balances
  never diverge for longer than one operation. Dual-row writes go
  through one InsertEntries call (atomic where the backend allows), with
  the dependent/"received" row ordered last so a partial failure leaves
  a state that ResyncBucket can repair.

CONCURRENCY:
  Single writer per bucket is assumed; operations are synchronous and
  there is no cancellation once writing begins. Reads never block
  writers.

SEE ALSO:
  - resolver.go: deletion (simple and cascading)
  - sync.go: balance synchronization
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Engine exposes the ledger operations. Store is required; Log and
// Clock have working defaults from NewEngine.
type Engine struct {
	Store Store
	Log   *logrus.Logger
	Clock func() TimePoint
}

func NewEngine(store Store) *Engine {
	return &Engine{
		Store: store,
		Log:   logrus.New(),
		Clock: Today,
	}
}

func (e *Engine) now() time.Time { return time.Now().UTC() }

// =============================================================================
// SIMPLE TRANSACTIONS
// =============================================================================

type SimpleTransactionInput struct {
	BucketID    BucketID
	Kind        Kind
	Amount      decimal.Decimal
	Date        string
	Description string
	Status      Status // defaults to confirmed
	IsYield     bool
}

// AddSimpleTransaction writes one row, classifies it and resynchronizes
// the bucket. Amount must be positive and the date parsable.
func (e *Engine) AddSimpleTransaction(ctx context.Context, in SimpleTransactionInput) (*Entry, error) {
	date, err := validateAmountAndDate(in.Amount, in.Date)
	if err != nil {
		return nil, err
	}
	if !in.Kind.Valid() {
		return nil, &ValidationError{Field: "kind", Reason: "unknown transaction kind: " + string(in.Kind)}
	}
	status, err := normalizeStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if _, err := e.mustBucket(ctx, in.BucketID); err != nil {
		return nil, err
	}

	entry := Entry{
		ID:          NewEntryID(),
		BucketID:    in.BucketID,
		Date:        date,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Description: in.Description,
		Status:      status,
		IsYield:     in.IsYield || in.Kind == KindYield,
		CreatedAt:   e.now(),
	}

	if err := e.Store.InsertEntries(ctx, []Entry{entry}); err != nil {
		return nil, storageErr("insert", err)
	}
	if err := e.resync(ctx, in.BucketID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// =============================================================================
// TRANSFERS
// =============================================================================

type TransferInput struct {
	OriginID      BucketID
	DestinationID BucketID
	Amount        decimal.Decimal
	Date          string
	Description   string
}

// AddTransfer writes an outflow in the origin and an inflow in the
// destination sharing a fresh link id, then resynchronizes both.
func (e *Engine) AddTransfer(ctx context.Context, in TransferInput) ([]Entry, error) {
	date, err := validateAmountAndDate(in.Amount, in.Date)
	if err != nil {
		return nil, err
	}
	if in.OriginID == in.DestinationID {
		return nil, &ValidationError{Field: "destination_id", Reason: "transfer origin and destination are the same bucket"}
	}
	origin, err := e.mustBucket(ctx, in.OriginID)
	if err != nil {
		return nil, err
	}
	destination, err := e.mustBucket(ctx, in.DestinationID)
	if err != nil {
		return nil, err
	}

	linkID := NewLinkID()
	created := e.now()
	entries := []Entry{
		{
			ID:            NewEntryID(),
			BucketID:      in.OriginID,
			DestinationID: in.DestinationID,
			Date:          date,
			Kind:          KindTransferOut,
			Amount:        in.Amount,
			Description:   fmt.Sprintf("To %s: %s", destination.Name, in.Description),
			Status:        StatusConfirmed,
			LinkID:        linkID,
			CreatedAt:     created,
		},
		{
			ID:          NewEntryID(),
			BucketID:    in.DestinationID,
			Date:        date,
			Kind:        KindTransferIn,
			Amount:      in.Amount,
			Description: fmt.Sprintf("From %s: %s", origin.Name, in.Description),
			Status:      StatusConfirmed,
			LinkID:      linkID,
			CreatedAt:   created,
		},
	}

	if err := e.Store.InsertEntries(ctx, entries); err != nil {
		return nil, storageErr("insert", err)
	}
	if err := e.resync(ctx, in.OriginID, in.DestinationID); err != nil {
		return nil, err
	}
	return entries, nil
}

// =============================================================================
// LOANS
// =============================================================================

type LoanInput struct {
	LenderID     BucketID
	BorrowerID   BucketID
	Amount       decimal.Decimal
	Date         string
	Description  string
	RateOverride *decimal.Decimal // percent per year; nil = lender bucket's loan rate
}

// AddLoan writes a lender-side "granted" row (balance decreasing) and a
// borrower-side "received" row (balance increasing), both tagged with a
// fresh loan id and an active loan state. The effective annual rate is
// stored on the rows so accrual can be recomputed at read time.
func (e *Engine) AddLoan(ctx context.Context, in LoanInput) ([]Entry, error) {
	date, err := validateAmountAndDate(in.Amount, in.Date)
	if err != nil {
		return nil, err
	}
	if in.LenderID == in.BorrowerID {
		return nil, &ValidationError{Field: "borrower_id", Reason: "lender and borrower are the same bucket"}
	}
	lender, err := e.mustBucket(ctx, in.LenderID)
	if err != nil {
		return nil, err
	}
	borrower, err := e.mustBucket(ctx, in.BorrowerID)
	if err != nil {
		return nil, err
	}

	rate := lender.LoanRate
	if in.RateOverride != nil {
		rate = *in.RateOverride
	}

	loanID := NewLoanID()
	linkID := NewLinkID()
	created := e.now()
	entries := []Entry{
		{
			ID:            NewEntryID(),
			BucketID:      in.LenderID,
			DestinationID: in.BorrowerID,
			Date:          date,
			Kind:          KindLoanGranted,
			Amount:        in.Amount,
			Description:   fmt.Sprintf("Loan to %s: %s", borrower.Name, in.Description),
			Status:        StatusConfirmed,
			LoanID:        loanID,
			LoanState:     LoanActive,
			LoanRate:      rate,
			LinkID:        linkID,
			CreatedAt:     created,
		},
		{
			ID:          NewEntryID(),
			BucketID:    in.BorrowerID,
			Date:        date,
			Kind:        KindLoanReceived,
			Amount:      in.Amount,
			Description: fmt.Sprintf("Loan from %s: %s", lender.Name, in.Description),
			Status:      StatusConfirmed,
			LoanID:      loanID,
			LoanState:   LoanActive,
			LoanRate:    rate,
			LinkID:      linkID,
			CreatedAt:   created,
		},
	}

	if err := e.Store.InsertEntries(ctx, entries); err != nil {
		return nil, storageErr("insert", err)
	}
	if err := e.resync(ctx, in.LenderID, in.BorrowerID); err != nil {
		return nil, err
	}
	return entries, nil
}

// =============================================================================
// YIELD
// =============================================================================

type YieldInput struct {
	BucketID      BucketID
	Amount        decimal.Decimal
	Date          string
	Description   string
	DestinationID BucketID // empty or equal to BucketID = yield stays put
	MarkAsLoan    bool
	RateOverride  *decimal.Decimal
}

// AddYield records yield income. Without a distinct destination it is a
// single balance-increasing row. With one, the origin row is neutral
// (the money conceptually leaves instantly) and the destination gets the
// increase; MarkAsLoan additionally tags both rows as an active loan of
// the yield amount.
func (e *Engine) AddYield(ctx context.Context, in YieldInput) ([]Entry, error) {
	date, err := validateAmountAndDate(in.Amount, in.Date)
	if err != nil {
		return nil, err
	}
	origin, err := e.mustBucket(ctx, in.BucketID)
	if err != nil {
		return nil, err
	}

	created := e.now()

	// Yield kept in the bucket: one increasing row.
	if in.DestinationID == "" || in.DestinationID == in.BucketID {
		entry := Entry{
			ID:          NewEntryID(),
			BucketID:    in.BucketID,
			Date:        date,
			Kind:        KindYield,
			Amount:      in.Amount,
			Description: defaultStr(in.Description, "Yield on investment"),
			Status:      StatusConfirmed,
			IsYield:     true,
			CreatedAt:   created,
		}
		if err := e.Store.InsertEntries(ctx, []Entry{entry}); err != nil {
			return nil, storageErr("insert", err)
		}
		if err := e.resync(ctx, in.BucketID); err != nil {
			return nil, err
		}
		return []Entry{entry}, nil
	}

	destination, err := e.mustBucket(ctx, in.DestinationID)
	if err != nil {
		return nil, err
	}

	linkID := NewLinkID()
	originRow := Entry{
		ID:            NewEntryID(),
		BucketID:      in.BucketID,
		DestinationID: in.DestinationID,
		Date:          date,
		Kind:          KindYield,
		Amount:        in.Amount,
		Description:   defaultStr(in.Description, "Yield redirected to "+destination.Name),
		Status:        StatusConfirmed,
		IsYield:       true,
		IsNeutral:     true, // balance-neutral: the increase lands in the destination
		LinkID:        linkID,
		CreatedAt:     created,
	}
	destRow := Entry{
		ID:          NewEntryID(),
		BucketID:    in.DestinationID,
		Date:        date,
		Kind:        KindTransferIn,
		Amount:      in.Amount,
		Description: fmt.Sprintf("Yield received from %s", origin.Name),
		Status:      StatusConfirmed,
		LinkID:      linkID,
		CreatedAt:   created,
	}

	if in.MarkAsLoan {
		rate := origin.LoanRate
		if in.RateOverride != nil {
			rate = *in.RateOverride
		}
		loanID := NewLoanID()
		originRow.LoanID = loanID
		originRow.LoanState = LoanActive
		originRow.LoanRate = rate
		destRow.Kind = KindLoanReceived
		destRow.Description = fmt.Sprintf("Loan from %s: redirected yield", origin.Name)
		destRow.LoanID = loanID
		destRow.LoanState = LoanActive
		destRow.LoanRate = rate
	}

	entries := []Entry{originRow, destRow}
	if err := e.Store.InsertEntries(ctx, entries); err != nil {
		return nil, storageErr("insert", err)
	}
	if err := e.resync(ctx, in.BucketID, in.DestinationID); err != nil {
		return nil, err
	}
	return entries, nil
}

// =============================================================================
// EDIT
// =============================================================================

type EditInput struct {
	Date        *string
	Kind        *Kind
	Amount      *decimal.Decimal
	Description *string
	Status      *Status
	IsYield     *bool
}

// EditTransaction patches a row. If the row belongs to a loan, the
// date/description/amount/status changes are applied to EVERY row
// sharing that loan id, keeping the pair symmetric. Every affected
// bucket is resynchronized afterwards.
func (e *Engine) EditTransaction(ctx context.Context, id EntryID, in EditInput) error {
	target, err := e.mustEntry(ctx, id)
	if err != nil {
		return err
	}

	patch := EntryPatch{
		Description: in.Description,
		Amount:      in.Amount,
	}
	if in.Amount != nil && !in.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "amount must be positive"}
	}
	if in.Date != nil {
		date, err := ParseDate(*in.Date)
		if err != nil {
			return err
		}
		patch.Date = &date
	}
	if in.Status != nil {
		status, err := normalizeStatus(*in.Status)
		if err != nil {
			return err
		}
		patch.Status = &status
	}

	var filter EntryFilter
	if target.LoanID != "" {
		// Loan rows stay symmetric: only the shared fields may change.
		filter = FilterByLoan(target.LoanID)
	} else {
		filter = FilterByID(id)
		if in.Kind != nil {
			if !in.Kind.Valid() {
				return &ValidationError{Field: "kind", Reason: "unknown transaction kind: " + string(*in.Kind)}
			}
			patch.Kind = in.Kind
		}
		patch.IsYield = in.IsYield
	}

	if patch.IsEmpty() {
		return nil
	}
	if _, err := e.Store.UpdateEntries(ctx, filter, patch); err != nil {
		return storageErr("update", err)
	}

	// Resync every bucket holding a patched row.
	rows, err := e.Store.SelectEntries(ctx, filter)
	if err != nil {
		return storageErr("select", err)
	}
	return e.resync(ctx, bucketsOf(rows)...)
}

// ConfirmTransaction flips a pending entry to confirmed and
// resynchronizes its bucket.
func (e *Engine) ConfirmTransaction(ctx context.Context, id EntryID) error {
	status := StatusConfirmed
	return e.EditTransaction(ctx, id, EditInput{Status: &status})
}

// =============================================================================
// LOAN REPAYMENT
// =============================================================================

type RepayInput struct {
	LoanID     LoanID
	LenderID   BucketID
	BorrowerID BucketID
	Principal  decimal.Decimal
	Interest   decimal.Decimal
	Date       string // empty = today
}

// RepaymentResult reports what a repayment did.
type RepaymentResult struct {
	Settled            bool
	RemainingPrincipal decimal.Decimal
	Entries            []Entry
}

// RepayLoan writes a repayment pair - outflow in the borrower, inflow in
// the lender, each for principal+interest, sharing a fresh link id but
// the SAME loan id. A repayment covering the outstanding principal
// settles every row of the loan; a partial repayment reduces the stored
// principal on the original granted/received rows and leaves the loan
// active.
func (e *Engine) RepayLoan(ctx context.Context, in RepayInput) (*RepaymentResult, error) {
	if in.Principal.IsNegative() || in.Interest.IsNegative() {
		return nil, &ValidationError{Field: "amount", Reason: "principal and interest portions must not be negative"}
	}
	total := in.Principal.Add(in.Interest)
	if !total.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "repayment must be positive"}
	}

	date := e.Clock()
	if in.Date != "" {
		parsed, err := ParseDate(in.Date)
		if err != nil {
			return nil, err
		}
		date = parsed
	}

	loanRows, err := e.Store.SelectEntries(ctx, FilterByLoan(in.LoanID))
	if err != nil {
		return nil, storageErr("select", err)
	}
	if len(loanRows) == 0 {
		return nil, &NotFoundError{Resource: "loan", ID: string(in.LoanID)}
	}
	if _, err := e.mustBucket(ctx, in.LenderID); err != nil {
		return nil, err
	}
	if _, err := e.mustBucket(ctx, in.BorrowerID); err != nil {
		return nil, err
	}

	principalRow := principalRowOf(loanRows)
	outstanding := principalRow.Amount

	linkID := NewLinkID()
	created := e.now()
	desc := fmt.Sprintf("Loan repayment - principal %s + interest %s", in.Principal, in.Interest)
	entries := []Entry{
		{
			ID:          NewEntryID(),
			BucketID:    in.BorrowerID,
			Date:        date,
			Kind:        KindWithdrawal,
			Amount:      total,
			Description: desc,
			Status:      StatusConfirmed,
			LoanID:      in.LoanID,
			LinkID:      linkID,
			CreatedAt:   created,
		},
		{
			ID:          NewEntryID(),
			BucketID:    in.LenderID,
			Date:        date,
			Kind:        KindDeposit,
			Amount:      total,
			Description: desc,
			Status:      StatusConfirmed,
			LoanID:      in.LoanID,
			LinkID:      linkID,
			CreatedAt:   created,
		},
	}
	if err := e.Store.InsertEntries(ctx, entries); err != nil {
		return nil, storageErr("insert", err)
	}

	result := &RepaymentResult{Entries: entries, RemainingPrincipal: decimal.Zero}

	if in.Principal.Cmp(outstanding) >= 0 {
		// Full repayment: settle every row of the loan.
		state := LoanSettled
		if _, err := e.Store.UpdateEntries(ctx, FilterByLoan(in.LoanID), EntryPatch{LoanState: &state}); err != nil {
			return nil, storageErr("update", err)
		}
		result.Settled = true
	} else {
		// Partial repayment: the original principal rows now carry the
		// remaining balance, annotated rather than closed.
		remaining := outstanding.Sub(in.Principal)
		result.RemainingPrincipal = remaining
		for _, row := range loanRows {
			if row.Kind != KindLoanGranted && row.Kind != KindLoanReceived {
				continue
			}
			note := row.Description + " (principal after partial repayment)"
			if _, err := e.Store.UpdateEntries(ctx, FilterByID(row.ID), EntryPatch{
				Amount:      &remaining,
				Description: &note,
			}); err != nil {
				return nil, storageErr("update", err)
			}
		}
	}

	if err := e.resync(ctx, in.BorrowerID, in.LenderID); err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// GetBalanceAsOf replays the bucket's log and returns the final
// balance. It performs no writes; the authoritative stored balance is
// maintained by ResyncBucket.
func (e *Engine) GetBalanceAsOf(ctx context.Context, id BucketID) (decimal.Decimal, error) {
	bucket, err := e.mustBucket(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	entries, err := e.Store.SelectEntries(ctx, FilterByBucket(id))
	if err != nil {
		return decimal.Zero, storageErr("select", err)
	}
	_, balance := Replay(bucket.OpeningBalance, entries)
	return balance, nil
}

// LoanReport is the loan position as of "now". Accrual is recomputed on
// every call - never cached - because "now" advances continuously.
type LoanReport struct {
	LoanID      LoanID
	LenderID    BucketID
	BorrowerID  BucketID
	Principal   decimal.Decimal
	Accrued     decimal.Decimal
	TotalOwed   decimal.Decimal
	DaysElapsed int
	RatePct     decimal.Decimal
	State       LoanState
	GrantDate   TimePoint
}

// GetLoanStatus recomputes the loan position from (rate, grantDate,
// principal). Settled loans report zero accrued interest and nothing
// owed.
func (e *Engine) GetLoanStatus(ctx context.Context, id LoanID) (*LoanReport, error) {
	rows, err := e.Store.SelectEntries(ctx, FilterByLoan(id))
	if err != nil {
		return nil, storageErr("select", err)
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Resource: "loan", ID: string(id)}
	}
	return e.buildLoanReport(rows), nil
}

// ListActiveLoans returns a report per loan that is still active.
func (e *Engine) ListActiveLoans(ctx context.Context) ([]LoanReport, error) {
	rows, err := e.Store.SelectEntries(ctx, EntryFilter{
		Kinds: []Kind{KindLoanGranted, KindLoanReceived, KindYield},
	})
	if err != nil {
		return nil, storageErr("select", err)
	}

	byLoan := make(map[LoanID][]Entry)
	var order []LoanID
	for _, row := range rows {
		if row.LoanID == "" {
			continue
		}
		if _, seen := byLoan[row.LoanID]; !seen {
			order = append(order, row.LoanID)
		}
		byLoan[row.LoanID] = append(byLoan[row.LoanID], row)
	}

	var reports []LoanReport
	for _, id := range order {
		report := e.buildLoanReport(byLoan[id])
		if report.State == LoanActive {
			reports = append(reports, *report)
		}
	}
	return reports, nil
}

func (e *Engine) buildLoanReport(rows []Entry) *LoanReport {
	principalRow := principalRowOf(rows)

	report := &LoanReport{
		LoanID:    principalRow.LoanID,
		Principal: principalRow.Amount,
		RatePct:   principalRow.LoanRate,
		State:     principalRow.LoanState,
		GrantDate: principalRow.Date,
	}
	for _, row := range rows {
		switch row.Kind {
		case KindLoanGranted:
			report.LenderID = row.BucketID
		case KindLoanReceived:
			report.BorrowerID = row.BucketID
		case KindYield:
			if row.IsNeutral {
				report.LenderID = row.BucketID
			}
		}
	}

	if report.State == LoanSettled {
		report.Accrued = decimal.Zero
		report.TotalOwed = decimal.Zero
		return report
	}

	days := DaysBetween(report.GrantDate, e.Clock())
	acc := AccrueInterest(report.Principal, report.RatePct, days)
	report.Accrued = acc.Accrued
	report.TotalOwed = acc.TotalOwed
	report.DaysElapsed = acc.Days
	return report
}

// principalRowOf picks the row carrying the loan principal: the
// lender-side granted row when one exists, otherwise the borrower-side
// received row (redirected-yield loans have no granted row).
func principalRowOf(rows []Entry) Entry {
	for _, row := range rows {
		if row.Kind == KindLoanGranted {
			return row
		}
	}
	for _, row := range rows {
		if row.Kind == KindLoanReceived {
			return row
		}
	}
	return rows[0]
}

// =============================================================================
// AGGREGATE METRICS
// =============================================================================

// Metrics aggregates active buckets. The converted totals use a
// supplied constant BRL-per-USD exchange rate; inactive buckets retain
// history but are excluded here.
type Metrics struct {
	TotalBRL      decimal.Decimal
	TotalUSD      decimal.Decimal
	MonthlyYield  decimal.Decimal
	ActiveBuckets int
}

func (e *Engine) Metrics(ctx context.Context, exchangeRate decimal.Decimal) (*Metrics, error) {
	if !exchangeRate.IsPositive() {
		return nil, &ValidationError{Field: "exchange_rate", Reason: "exchange rate must be positive"}
	}

	buckets, err := e.Store.ListBuckets(ctx)
	if err != nil {
		return nil, storageErr("select", err)
	}

	monthStart := StartOfMonth(e.Clock())
	m := &Metrics{TotalBRL: decimal.Zero, MonthlyYield: decimal.Zero}

	for _, bucket := range buckets {
		if !bucket.Active {
			continue
		}
		m.ActiveBuckets++
		m.TotalBRL = m.TotalBRL.Add(toBRL(bucket.CurrentBalance, bucket.Currency, exchangeRate))

		entries, err := e.Store.SelectEntries(ctx, EntryFilter{BucketID: &bucket.ID, From: &monthStart})
		if err != nil {
			return nil, storageErr("select", err)
		}
		for _, entry := range entries {
			if entry.IsYield && entry.Status == StatusConfirmed && Classify(entry) == Increase {
				m.MonthlyYield = m.MonthlyYield.Add(toBRL(entry.Amount, bucket.Currency, exchangeRate))
			}
		}
	}

	m.TotalUSD = m.TotalBRL.DivRound(exchangeRate, 2)
	return m, nil
}

func toBRL(amount decimal.Decimal, currency Currency, rate decimal.Decimal) decimal.Decimal {
	if currency == CurrencyUSD {
		return amount.Mul(rate)
	}
	return amount
}

// =============================================================================
// BUCKET LIFECYCLE
// =============================================================================

type BucketInput struct {
	Name                string
	Currency            Currency
	OpeningBalance      decimal.Decimal
	YieldRate           decimal.Decimal
	LoanRate            decimal.Decimal
	MonthlyContribution decimal.Decimal
	HorizonMonths       int
}

// CreateBucket creates a bucket with an immutable opening balance. The
// current balance starts at the opening balance; only the synchronizer
// moves it afterwards.
func (e *Engine) CreateBucket(ctx context.Context, in BucketInput) (*Bucket, error) {
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "bucket name is required"}
	}
	if !in.Currency.Valid() {
		return nil, &ValidationError{Field: "currency", Reason: "currency must be BRL or USD"}
	}
	if in.OpeningBalance.IsNegative() {
		return nil, &ValidationError{Field: "opening_balance", Reason: "opening balance must not be negative"}
	}

	bucket := Bucket{
		ID:                  BucketID(NewEntryID()), // uuid; bucket ids share the generator
		Name:                in.Name,
		Currency:            in.Currency,
		OpeningBalance:      in.OpeningBalance,
		CurrentBalance:      in.OpeningBalance,
		YieldRate:           in.YieldRate,
		LoanRate:            in.LoanRate,
		MonthlyContribution: in.MonthlyContribution,
		HorizonMonths:       in.HorizonMonths,
		Active:              true,
		CreatedAt:           e.now(),
	}
	if err := e.Store.SaveBucket(ctx, bucket); err != nil {
		return nil, storageErr("insert", err)
	}
	return &bucket, nil
}

type BucketUpdate struct {
	Name                *string
	YieldRate           *decimal.Decimal
	LoanRate            *decimal.Decimal
	MonthlyContribution *decimal.Decimal
	HorizonMonths       *int
}

// UpdateBucket changes a bucket's strategic data. The opening balance is
// immutable and the current balance belongs to the synchronizer, so
// neither is patchable.
func (e *Engine) UpdateBucket(ctx context.Context, id BucketID, in BucketUpdate) (*Bucket, error) {
	bucket, err := e.mustBucket(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, &ValidationError{Field: "name", Reason: "bucket name is required"}
		}
		bucket.Name = *in.Name
	}
	if in.YieldRate != nil {
		bucket.YieldRate = *in.YieldRate
	}
	if in.LoanRate != nil {
		bucket.LoanRate = *in.LoanRate
	}
	if in.MonthlyContribution != nil {
		bucket.MonthlyContribution = *in.MonthlyContribution
	}
	if in.HorizonMonths != nil {
		bucket.HorizonMonths = *in.HorizonMonths
	}
	if err := e.Store.SaveBucket(ctx, *bucket); err != nil {
		return nil, storageErr("update", err)
	}
	return bucket, nil
}

// SetBucketActive toggles inclusion in aggregate metrics.
func (e *Engine) SetBucketActive(ctx context.Context, id BucketID, active bool) error {
	bucket, err := e.mustBucket(ctx, id)
	if err != nil {
		return err
	}
	bucket.Active = active
	if err := e.Store.SaveBucket(ctx, *bucket); err != nil {
		return storageErr("update", err)
	}
	return nil
}

// ResetBucket deletes every entry of the bucket, returning its balance
// to the opening capital.
func (e *Engine) ResetBucket(ctx context.Context, id BucketID) error {
	if _, err := e.mustBucket(ctx, id); err != nil {
		return err
	}
	if _, err := e.Store.DeleteEntries(ctx, FilterByBucket(id)); err != nil {
		return storageErr("delete", err)
	}
	return e.resync(ctx, id)
}

// DeleteBucket removes a bucket and its log. Refused while the bucket
// participates in an active loan, on either side.
func (e *Engine) DeleteBucket(ctx context.Context, id BucketID) error {
	if _, err := e.mustBucket(ctx, id); err != nil {
		return err
	}

	owned, err := e.Store.SelectEntries(ctx, FilterByBucket(id))
	if err != nil {
		return storageErr("select", err)
	}
	counterpart, err := e.Store.SelectEntries(ctx, EntryFilter{DestinationID: &id})
	if err != nil {
		return storageErr("select", err)
	}
	for _, row := range append(owned, counterpart...) {
		if row.LoanID != "" && row.LoanState == LoanActive {
			return ErrBucketHasActiveLoan
		}
	}

	if _, err := e.Store.DeleteEntries(ctx, FilterByBucket(id)); err != nil {
		return storageErr("delete", err)
	}
	if err := e.Store.DeleteBucket(ctx, id); err != nil {
		return storageErr("delete", err)
	}
	return nil
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

func (e *Engine) mustBucket(ctx context.Context, id BucketID) (*Bucket, error) {
	bucket, err := e.Store.GetBucket(ctx, id)
	if err != nil {
		return nil, storageErr("select", err)
	}
	if bucket == nil {
		return nil, &NotFoundError{Resource: "bucket", ID: string(id)}
	}
	return bucket, nil
}

func (e *Engine) mustEntry(ctx context.Context, id EntryID) (*Entry, error) {
	rows, err := e.Store.SelectEntries(ctx, FilterByID(id))
	if err != nil {
		return nil, storageErr("select", err)
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Resource: "entry", ID: string(id)}
	}
	return &rows[0], nil
}

func validateAmountAndDate(amount decimal.Decimal, date string) (TimePoint, error) {
	if !amount.IsPositive() {
		return TimePoint{}, &ValidationError{Field: "amount", Reason: "amount must be positive"}
	}
	return ParseDate(date)
}

func normalizeStatus(s Status) (Status, error) {
	switch s {
	case "":
		return StatusConfirmed, nil
	case StatusConfirmed, StatusPending:
		return s, nil
	}
	return "", &ValidationError{Field: "status", Reason: "status must be confirmed or pending"}
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func bucketsOf(entries []Entry) []BucketID {
	seen := make(map[BucketID]bool)
	var ids []BucketID
	for _, entry := range entries {
		if !seen[entry.BucketID] {
			seen[entry.BucketID] = true
			ids = append(ids, entry.BucketID)
		}
	}
	return ids
}
