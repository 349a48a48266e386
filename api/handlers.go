/*
handlers.go - HTTP API handlers for the bucket ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Buckets:
    GET    /api/buckets                    List all buckets
    POST   /api/buckets                    Create bucket
    GET    /api/buckets/{id}               Get bucket details
    PUT    /api/buckets/{id}               Update strategic data
    DELETE /api/buckets/{id}               Delete (refused with active loan)
    POST   /api/buckets/{id}/active        Toggle metric inclusion
    POST   /api/buckets/{id}/reset         Drop all entries
    POST   /api/buckets/{id}/resync        Force balance resync
    GET    /api/buckets/{id}/balance       Replayed balance
    GET    /api/buckets/{id}/entries       Entry log
    GET    /api/buckets/{id}/projection    Compound projection
    POST   /api/buckets/{id}/import        Statement CSV import

  Transactions:
    POST   /api/transactions               Simple deposit/withdrawal/yield
    POST   /api/transactions/transfer      Linked transfer pair
    POST   /api/transactions/yield         Yield, optionally redirected
    PUT    /api/transactions/{id}          Edit (loan-wide when loan row)
    POST   /api/transactions/{id}/confirm  Pending -> confirmed
    DELETE /api/transactions/{id}?mode=    simple | cascading

  Loans:
    GET    /api/loans                      Active loan reports
    POST   /api/loans                      Grant loan
    GET    /api/loans/{id}                 Loan status (live accrual)
    POST   /api/loans/{id}/repay           Repay (full or partial)

  Metrics:
    GET    /api/metrics                    Aggregates over active buckets

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (bucket has an active loan)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/patrimonio/bucket-engine/ledger"
	"github.com/patrimonio/bucket-engine/statement"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *ledger.Engine

	// ExchangeRate is the BRL-per-USD rate applied by the metrics
	// endpoint.
	ExchangeRate decimal.Decimal
}

// NewHandler creates a new handler around the engine.
func NewHandler(engine *ledger.Engine, exchangeRate decimal.Decimal) *Handler {
	return &Handler{Engine: engine, ExchangeRate: exchangeRate}
}

// =============================================================================
// BUCKET HANDLERS
// =============================================================================

// ListBuckets returns all buckets.
func (h *Handler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.Engine.Store.ListBuckets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list buckets", err)
		return
	}

	dtos := make([]BucketDTO, len(buckets))
	for i, b := range buckets {
		dtos[i] = toBucketDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBucket creates a new bucket.
func (h *Handler) CreateBucket(w http.ResponseWriter, r *http.Request) {
	var req CreateBucketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	input := ledger.BucketInput{
		Name:          req.Name,
		Currency:      ledger.Currency(req.Currency),
		HorizonMonths: req.HorizonMonths,
	}
	var err error
	if input.OpeningBalance, err = parseAmount(req.OpeningBalance); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid opening_balance", err)
		return
	}
	if input.YieldRate, err = parseOptAmount(req.YieldRate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid yield_rate", err)
		return
	}
	if input.LoanRate, err = parseOptAmount(req.LoanRate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan_rate", err)
		return
	}
	if input.MonthlyContribution, err = parseOptAmount(req.MonthlyContribution); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid monthly_contribution", err)
		return
	}

	bucket, err := h.Engine.CreateBucket(r.Context(), input)
	if err != nil {
		writeEngineError(w, "Failed to create bucket", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBucketDTO(*bucket))
}

// GetBucket returns one bucket.
func (h *Handler) GetBucket(w http.ResponseWriter, r *http.Request) {
	id := ledger.BucketID(chi.URLParam(r, "id"))
	bucket, err := h.Engine.Store.GetBucket(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get bucket", err)
		return
	}
	if bucket == nil {
		writeError(w, http.StatusNotFound, "Bucket not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBucketDTO(*bucket))
}

// UpdateBucket patches a bucket's strategic data.
func (h *Handler) UpdateBucket(w http.ResponseWriter, r *http.Request) {
	id := ledger.BucketID(chi.URLParam(r, "id"))

	var req UpdateBucketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	update := ledger.BucketUpdate{
		Name:          req.Name,
		HorizonMonths: req.HorizonMonths,
	}
	var err error
	if update.YieldRate, err = parseOptAmountPtr(req.YieldRate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid yield_rate", err)
		return
	}
	if update.LoanRate, err = parseOptAmountPtr(req.LoanRate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan_rate", err)
		return
	}
	if update.MonthlyContribution, err = parseOptAmountPtr(req.MonthlyContribution); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid monthly_contribution", err)
		return
	}

	bucket, err := h.Engine.UpdateBucket(r.Context(), id, update)
	if err != nil {
		writeEngineError(w, "Failed to update bucket", err)
		return
	}
	writeJSON(w, http.StatusOK, toBucketDTO(*bucket))
}

// DeleteBucket removes a bucket. Refused with 409 while the bucket
// participates in an active loan.
func (h *Handler) DeleteBucket(w http.ResponseWriter, r *http.Request) {
	id := ledger.BucketID(chi.URLParam(r, "id"))
	if err := h.Engine.DeleteBucket(r.Context(), id); err != nil {
		if errors.Is(err, ledger.ErrBucketHasActiveLoan) {
			writeError(w, http.StatusConflict, "Bucket participates in an active loan", err)
			return
		}
		writeEngineError(w, "Failed to delete bucket", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetBucketActive toggles metric inclusion.
func (h *Handler) SetBucketActive(w http.ResponseWriter, r *http.Request) {
	id := ledger.BucketID(chi.URLParam(r, "id"))

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Engine.SetBucketActive(r.Context(), id, req.Active); err != nil {
		writeEngineError(w, "Failed to update bucket", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetBucket deletes every entry of the bucket.
func (h *Handler) ResetBucket(w http.ResponseWriter, r *http.Request) {
	id := ledger.BucketID(chi.URLParam(r, "id"))
	if err := h.Engine.ResetBucket(r.Context(), id); err != nil {
		writeEngineError(w, "Failed to reset bucket", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResyncBucket forces a balance resynchronization.
func (h *Handler) ResyncBucket(w http.ResponseWriter, r *http.Request) {
	id := ledger.BucketID(chi.URLParam(r, "id"))
	if err := h.Engine.ResyncBucket(r.Context(), id); err != nil {
		writeEngineError(w, "Failed to resync bucket", err)
		return
	}

	bucket, err := h.Engine.Store.GetBucket(r.Context(), id)
	if err != nil || bucket == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload bucket", err)
		return
	}
	writeJSON(w, http.StatusOK, toBucketDTO(*bucket))
}

// GetBalance replays the bucket and returns the computed balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := ledger.BucketID(chi.URLParam(r, "id"))
	balance, err := h.Engine.GetBalanceAsOf(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{BucketID: string(id), Balance: balance.String()})
}

// GetEntries returns the bucket's entry log in replay order.
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	id := ledger.BucketID(chi.URLParam(r, "id"))
	entries, err := h.Engine.Store.SelectEntries(r.Context(), ledger.FilterByBucket(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// GetProjection returns the bucket's compound projection.
// Query param: months (optional, defaults to the bucket horizon).
func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	id := ledger.BucketID(chi.URLParam(r, "id"))

	months := 0
	if raw := r.URL.Query().Get("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid months parameter", err)
			return
		}
		months = parsed
	}

	projection, err := h.Engine.ProjectBucket(r.Context(), id, months)
	if err != nil {
		writeEngineError(w, "Failed to project bucket", err)
		return
	}

	dto := ProjectionDTO{
		BucketID:     string(projection.BucketID),
		Months:       projection.Months,
		MonthlyRate:  projection.MonthlyRate.String(),
		FinalBalance: projection.FinalBalance.String(),
		TotalYield:   projection.TotalYield.String(),
		ContribTotal: projection.ContribTotal.String(),
	}
	for _, p := range projection.Points {
		dto.Points = append(dto.Points, ProjectionPointDTO{
			Month:       p.Month,
			Contributed: p.Contributed.String(),
			Balance:     p.Balance.String(),
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// ImportStatement parses a statement CSV from the request body and
// imports it into the bucket.
func (h *Handler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	id := ledger.BucketID(chi.URLParam(r, "id"))

	transactions, err := statement.Parse(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse statement", err)
		return
	}

	imported, err := statement.Import(r.Context(), h.Engine, id, transactions)
	if err != nil {
		writeEngineError(w, "Failed to import statement", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResultDTO{Parsed: len(transactions), Imported: imported})
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction records a simple transaction.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	entry, err := h.Engine.AddSimpleTransaction(r.Context(), ledger.SimpleTransactionInput{
		BucketID:    ledger.BucketID(req.BucketID),
		Kind:        ledger.Kind(req.Kind),
		Amount:      amount,
		Date:        req.Date,
		Description: req.Description,
		Status:      ledger.Status(req.Status),
		IsYield:     req.IsYield,
	})
	if err != nil {
		writeEngineError(w, "Failed to create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*entry))
}

// CreateTransfer records a linked transfer pair.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	entries, err := h.Engine.AddTransfer(r.Context(), ledger.TransferInput{
		OriginID:      ledger.BucketID(req.OriginID),
		DestinationID: ledger.BucketID(req.DestinationID),
		Amount:        amount,
		Date:          req.Date,
		Description:   req.Description,
	})
	if err != nil {
		writeEngineError(w, "Failed to create transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTOs(entries))
}

// CreateYield records yield income, kept or redirected.
func (h *Handler) CreateYield(w http.ResponseWriter, r *http.Request) {
	var req YieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	input := ledger.YieldInput{
		BucketID:      ledger.BucketID(req.BucketID),
		Amount:        amount,
		Date:          req.Date,
		Description:   req.Description,
		DestinationID: ledger.BucketID(req.DestinationID),
		MarkAsLoan:    req.MarkAsLoan,
	}
	if input.RateOverride, err = parseOptAmountPtrStr(req.Rate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}

	entries, err := h.Engine.AddYield(r.Context(), input)
	if err != nil {
		writeEngineError(w, "Failed to record yield", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTOs(entries))
}

// EditTransaction patches a transaction; loan rows are edited
// loan-wide.
func (h *Handler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	var req EditTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	input := ledger.EditInput{
		Date:        req.Date,
		Description: req.Description,
		IsYield:     req.IsYield,
	}
	if req.Kind != nil {
		kind := ledger.Kind(*req.Kind)
		input.Kind = &kind
	}
	if req.Status != nil {
		status := ledger.Status(*req.Status)
		input.Status = &status
	}
	var err error
	if input.Amount, err = parseOptAmountPtr(req.Amount); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	if err := h.Engine.EditTransaction(r.Context(), id, input); err != nil {
		writeEngineError(w, "Failed to edit transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConfirmTransaction flips a pending transaction to confirmed.
func (h *Handler) ConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))
	if err := h.Engine.ConfirmTransaction(r.Context(), id); err != nil {
		writeEngineError(w, "Failed to confirm transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTransaction removes a transaction.
// Query param: mode = simple (default) | cascading.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	mode := ledger.DeleteMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = ledger.DeleteSimple
	}

	if err := h.Engine.DeleteTransaction(r.Context(), id, mode); err != nil {
		writeEngineError(w, "Failed to delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// ListLoans returns a live report per active loan.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Engine.ListActiveLoans(r.Context())
	if err != nil {
		writeEngineError(w, "Failed to list loans", err)
		return
	}

	dtos := make([]LoanReportDTO, len(reports))
	for i, report := range reports {
		dtos[i] = toLoanReportDTO(report)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLoan grants a loan between buckets.
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req LoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	input := ledger.LoanInput{
		LenderID:    ledger.BucketID(req.LenderID),
		BorrowerID:  ledger.BucketID(req.BorrowerID),
		Amount:      amount,
		Date:        req.Date,
		Description: req.Description,
	}
	if input.RateOverride, err = parseOptAmountPtrStr(req.Rate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}

	entries, err := h.Engine.AddLoan(r.Context(), input)
	if err != nil {
		writeEngineError(w, "Failed to grant loan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTOs(entries))
}

// GetLoan returns one loan's recomputed position.
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id := ledger.LoanID(chi.URLParam(r, "id"))
	report, err := h.Engine.GetLoanStatus(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get loan status", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanReportDTO(*report))
}

// RepayLoan records a repayment.
func (h *Handler) RepayLoan(w http.ResponseWriter, r *http.Request) {
	id := ledger.LoanID(chi.URLParam(r, "id"))

	var req RepayLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	principal, err := parseAmount(req.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid principal", err)
		return
	}
	interest, err := parseOptAmount(req.Interest)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid interest", err)
		return
	}

	result, err := h.Engine.RepayLoan(r.Context(), ledger.RepayInput{
		LoanID:     id,
		LenderID:   ledger.BucketID(req.LenderID),
		BorrowerID: ledger.BucketID(req.BorrowerID),
		Principal:  principal,
		Interest:   interest,
		Date:       req.Date,
	})
	if err != nil {
		writeEngineError(w, "Failed to repay loan", err)
		return
	}

	writeJSON(w, http.StatusOK, RepaymentDTO{
		Settled:            result.Settled,
		RemainingPrincipal: result.RemainingPrincipal.String(),
		Entries:            toEntryDTOs(result.Entries),
	})
}

// =============================================================================
// METRICS
// =============================================================================

// GetMetrics aggregates the active buckets at the configured exchange
// rate.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.Engine.Metrics(r.Context(), h.ExchangeRate)
	if err != nil {
		writeEngineError(w, "Failed to compute metrics", err)
		return
	}

	writeJSON(w, http.StatusOK, MetricsDTO{
		TotalBRL:      metrics.TotalBRL.String(),
		TotalUSD:      metrics.TotalUSD.String(),
		MonthlyYield:  metrics.MonthlyYield.String(),
		ActiveBuckets: metrics.ActiveBuckets,
		ExchangeRate:  h.ExchangeRate.String(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine error categories to HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func parseOptAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseOptAmountPtr(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseOptAmountPtrStr(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
