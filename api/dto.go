/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ENCODING:
  Amounts cross the wire as decimal strings ("1234.56"), never floats,
  so clients round-trip values without representation loss.

VALIDATION:
  Validation is done in the engine, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/engine.go: The inputs these map onto
*/
package api

import (
	"time"

	"github.com/patrimonio/bucket-engine/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// BucketDTO represents a bucket in API responses.
type BucketDTO struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Currency            string `json:"currency"`
	OpeningBalance      string `json:"opening_balance"`
	CurrentBalance      string `json:"current_balance"`
	YieldRate           string `json:"yield_rate"`
	LoanRate            string `json:"loan_rate"`
	MonthlyContribution string `json:"monthly_contribution"`
	HorizonMonths       int    `json:"horizon_months"`
	Active              bool   `json:"active"`
	CreatedAt           string `json:"created_at,omitempty"`
}

// CreateBucketRequest is the request to create a bucket.
type CreateBucketRequest struct {
	Name                string `json:"name"`
	Currency            string `json:"currency"`
	OpeningBalance      string `json:"opening_balance"`
	YieldRate           string `json:"yield_rate,omitempty"`
	LoanRate            string `json:"loan_rate,omitempty"`
	MonthlyContribution string `json:"monthly_contribution,omitempty"`
	HorizonMonths       int    `json:"horizon_months,omitempty"`
}

// UpdateBucketRequest is a partial bucket update; absent fields are
// left untouched. The opening balance is immutable.
type UpdateBucketRequest struct {
	Name                *string `json:"name,omitempty"`
	YieldRate           *string `json:"yield_rate,omitempty"`
	LoanRate            *string `json:"loan_rate,omitempty"`
	MonthlyContribution *string `json:"monthly_contribution,omitempty"`
	HorizonMonths       *int    `json:"horizon_months,omitempty"`
}

// EntryDTO represents a ledger entry.
type EntryDTO struct {
	ID            string `json:"id"`
	BucketID      string `json:"bucket_id"`
	DestinationID string `json:"destination_id,omitempty"`
	Date          string `json:"date"`
	Kind          string `json:"kind"`
	Amount        string `json:"amount"`
	Description   string `json:"description,omitempty"`
	Status        string `json:"status"`
	IsYield       bool   `json:"is_yield,omitempty"`
	IsNeutral     bool   `json:"is_neutral,omitempty"`
	LoanID        string `json:"loan_id,omitempty"`
	LoanState     string `json:"loan_state,omitempty"`
	LoanRate      string `json:"loan_rate,omitempty"`
	LinkID        string `json:"link_id,omitempty"`
	BalanceAfter  string `json:"balance_after"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CreateTransactionRequest is the request for a simple transaction.
type CreateTransactionRequest struct {
	BucketID    string `json:"bucket_id"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	IsYield     bool   `json:"is_yield,omitempty"`
}

// TransferRequest is the request for a bucket-to-bucket transfer.
type TransferRequest struct {
	OriginID      string `json:"origin_id"`
	DestinationID string `json:"destination_id"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Description   string `json:"description,omitempty"`
}

// YieldRequest records yield, optionally redirected to another bucket
// and optionally tracked as a loan.
type YieldRequest struct {
	BucketID      string `json:"bucket_id"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Description   string `json:"description,omitempty"`
	DestinationID string `json:"destination_id,omitempty"`
	MarkAsLoan    bool   `json:"mark_as_loan,omitempty"`
	Rate          string `json:"rate,omitempty"`
}

// LoanRequest is the request to grant a loan between buckets.
type LoanRequest struct {
	LenderID    string `json:"lender_id"`
	BorrowerID  string `json:"borrower_id"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	Rate        string `json:"rate,omitempty"`
}

// EditTransactionRequest is a partial edit; absent fields keep their
// values.
type EditTransactionRequest struct {
	Date        *string `json:"date,omitempty"`
	Kind        *string `json:"kind,omitempty"`
	Amount      *string `json:"amount,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	IsYield     *bool   `json:"is_yield,omitempty"`
}

// RepayLoanRequest is the request to repay a loan, split into
// principal and interest portions.
type RepayLoanRequest struct {
	LenderID   string `json:"lender_id"`
	BorrowerID string `json:"borrower_id"`
	Principal  string `json:"principal"`
	Interest   string `json:"interest,omitempty"`
	Date       string `json:"date,omitempty"`
}

// RepaymentDTO is the result of a repayment.
type RepaymentDTO struct {
	Settled            bool       `json:"settled"`
	RemainingPrincipal string     `json:"remaining_principal"`
	Entries            []EntryDTO `json:"entries"`
}

// LoanReportDTO is the recomputed position of one loan.
type LoanReportDTO struct {
	LoanID      string `json:"loan_id"`
	LenderID    string `json:"lender_id"`
	BorrowerID  string `json:"borrower_id"`
	Principal   string `json:"principal"`
	Accrued     string `json:"accrued_interest"`
	TotalOwed   string `json:"total_owed"`
	DaysElapsed int    `json:"days_elapsed"`
	RatePct     string `json:"rate_pct"`
	State       string `json:"state"`
	GrantDate   string `json:"grant_date"`
}

// BalanceDTO is the replayed balance of one bucket.
type BalanceDTO struct {
	BucketID string `json:"bucket_id"`
	Balance  string `json:"balance"`
}

// MetricsDTO aggregates active buckets.
type MetricsDTO struct {
	TotalBRL      string `json:"total_brl"`
	TotalUSD      string `json:"total_usd"`
	MonthlyYield  string `json:"monthly_yield"`
	ActiveBuckets int    `json:"active_buckets"`
	ExchangeRate  string `json:"exchange_rate"`
}

// ProjectionDTO is a bucket's projected schedule.
type ProjectionDTO struct {
	BucketID     string               `json:"bucket_id"`
	Months       int                  `json:"months"`
	MonthlyRate  string               `json:"monthly_rate"`
	FinalBalance string               `json:"final_balance"`
	TotalYield   string               `json:"total_yield"`
	ContribTotal string               `json:"contributions_total"`
	Points       []ProjectionPointDTO `json:"points"`
}

type ProjectionPointDTO struct {
	Month       int    `json:"month"`
	Contributed string `json:"contributed"`
	Balance     string `json:"balance"`
}

// ImportResultDTO reports a statement import.
type ImportResultDTO struct {
	Parsed   int `json:"parsed"`
	Imported int `json:"imported"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBucketDTO(b ledger.Bucket) BucketDTO {
	return BucketDTO{
		ID:                  string(b.ID),
		Name:                b.Name,
		Currency:            string(b.Currency),
		OpeningBalance:      b.OpeningBalance.String(),
		CurrentBalance:      b.CurrentBalance.String(),
		YieldRate:           b.YieldRate.String(),
		LoanRate:            b.LoanRate.String(),
		MonthlyContribution: b.MonthlyContribution.String(),
		HorizonMonths:       b.HorizonMonths,
		Active:              b.Active,
		CreatedAt:           b.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	dto := EntryDTO{
		ID:            string(e.ID),
		BucketID:      string(e.BucketID),
		DestinationID: string(e.DestinationID),
		Date:          e.Date.String(),
		Kind:          string(e.Kind),
		Amount:        e.Amount.String(),
		Description:   e.Description,
		Status:        string(e.Status),
		IsYield:       e.IsYield,
		IsNeutral:     e.IsNeutral,
		LoanID:        string(e.LoanID),
		LoanState:     string(e.LoanState),
		LinkID:        string(e.LinkID),
		BalanceAfter:  e.BalanceAfter.String(),
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
	if e.LoanID != "" {
		dto.LoanRate = e.LoanRate.String()
	}
	return dto
}

func toEntryDTOs(entries []ledger.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toLoanReportDTO(r ledger.LoanReport) LoanReportDTO {
	return LoanReportDTO{
		LoanID:      string(r.LoanID),
		LenderID:    string(r.LenderID),
		BorrowerID:  string(r.BorrowerID),
		Principal:   r.Principal.String(),
		Accrued:     r.Accrued.String(),
		TotalOwed:   r.TotalOwed.String(),
		DaysElapsed: r.DaysElapsed,
		RatePct:     r.RatePct.String(),
		State:       string(r.State),
		GrantDate:   r.GrantDate.String(),
	}
}
