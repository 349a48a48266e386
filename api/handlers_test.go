package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrimonio/bucket-engine/api"
	"github.com/patrimonio/bucket-engine/ledger"
	"github.com/patrimonio/bucket-engine/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	engine *ledger.Engine
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine := ledger.NewEngine(store.NewMemory())
	handler := api.NewHandler(engine, decimal.NewFromFloat(5.47))
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)
	return &fixture{engine: engine, server: server}
}

func (f *fixture) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (f *fixture) createBucket(t *testing.T, name, opening string) api.BucketDTO {
	t.Helper()
	resp := f.request(t, http.MethodPost, "/api/buckets", api.CreateBucketRequest{
		Name:           name,
		Currency:       "BRL",
		OpeningBalance: opening,
		LoanRate:       "1.32",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var dto api.BucketDTO
	decodeInto(t, resp, &dto)
	return dto
}

// =============================================================================
// BUCKETS
// =============================================================================

func TestCreateAndGetBucket(t *testing.T) {
	f := newFixture(t)
	created := f.createBucket(t, "Reserva", "1000")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "1000", created.CurrentBalance)
	assert.True(t, created.Active)

	resp := f.request(t, http.MethodGet, "/api/buckets/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got api.BucketDTO
	decodeInto(t, resp, &got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Reserva", got.Name)
}

func TestCreateBucket_ValidationError(t *testing.T) {
	f := newFixture(t)
	resp := f.request(t, http.MethodPost, "/api/buckets", api.CreateBucketRequest{
		Currency:       "BRL",
		OpeningBalance: "1000",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetBucket_NotFound(t *testing.T) {
	f := newFixture(t)
	resp := f.request(t, http.MethodGet, "/api/buckets/missing", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteBucket_ActiveLoanConflict(t *testing.T) {
	f := newFixture(t)
	lender := f.createBucket(t, "Reserva", "5000")
	borrower := f.createBucket(t, "Negócio", "0")

	resp := f.request(t, http.MethodPost, "/api/loans", api.LoanRequest{
		LenderID:   lender.ID,
		BorrowerID: borrower.ID,
		Amount:     "2000",
		Date:       "2026-01-15",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodDelete, "/api/buckets/"+lender.ID, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestCreateTransaction_MovesBalance(t *testing.T) {
	f := newFixture(t)
	bucket := f.createBucket(t, "Reserva", "1000")

	resp := f.request(t, http.MethodPost, "/api/transactions", api.CreateTransactionRequest{
		BucketID:    bucket.ID,
		Kind:        "deposit",
		Amount:      "500",
		Date:        "2026-01-10",
		Description: "Paycheck",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var entry api.EntryDTO
	decodeInto(t, resp, &entry)
	assert.Equal(t, "1500", entry.BalanceAfter)

	resp = f.request(t, http.MethodGet, fmt.Sprintf("/api/buckets/%s/balance", bucket.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balance api.BalanceDTO
	decodeInto(t, resp, &balance)
	assert.Equal(t, "1500", balance.Balance)
}

func TestCreateTransfer_ReturnsLinkedPair(t *testing.T) {
	f := newFixture(t)
	origin := f.createBucket(t, "Reserva", "2000")
	destination := f.createBucket(t, "Viagem", "0")

	resp := f.request(t, http.MethodPost, "/api/transactions/transfer", api.TransferRequest{
		OriginID:      origin.ID,
		DestinationID: destination.ID,
		Amount:        "750",
		Date:          "2026-02-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var entries []api.EntryDTO
	decodeInto(t, resp, &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, "transfer_out", entries[0].Kind)
	assert.Equal(t, "transfer_in", entries[1].Kind)
	assert.Equal(t, entries[0].LinkID, entries[1].LinkID)
}

func TestDeleteTransaction_CascadingMode(t *testing.T) {
	f := newFixture(t)
	origin := f.createBucket(t, "Reserva", "2000")
	destination := f.createBucket(t, "Viagem", "0")

	resp := f.request(t, http.MethodPost, "/api/transactions/transfer", api.TransferRequest{
		OriginID:      origin.ID,
		DestinationID: destination.ID,
		Amount:        "750",
		Date:          "2026-02-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var entries []api.EntryDTO
	decodeInto(t, resp, &entries)

	resp = f.request(t, http.MethodDelete,
		"/api/transactions/"+entries[0].ID+"?mode=cascading", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.request(t, http.MethodGet, fmt.Sprintf("/api/buckets/%s/entries", destination.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var remaining []api.EntryDTO
	decodeInto(t, resp, &remaining)
	assert.Empty(t, remaining, "the counterpart row must be cascade-deleted")
}

func TestEditTransaction_BadAmount(t *testing.T) {
	f := newFixture(t)
	bucket := f.createBucket(t, "Reserva", "1000")

	resp := f.request(t, http.MethodPost, "/api/transactions", api.CreateTransactionRequest{
		BucketID: bucket.ID, Kind: "deposit", Amount: "500", Date: "2026-01-10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var entry api.EntryDTO
	decodeInto(t, resp, &entry)

	amount := "not-a-number"
	resp = f.request(t, http.MethodPut, "/api/transactions/"+entry.ID,
		api.EditTransactionRequest{Amount: &amount})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// LOANS
// =============================================================================

func TestLoanLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)
	lender := f.createBucket(t, "Reserva", "5000")
	borrower := f.createBucket(t, "Negócio", "3000")

	resp := f.request(t, http.MethodPost, "/api/loans", api.LoanRequest{
		LenderID:   lender.ID,
		BorrowerID: borrower.ID,
		Amount:     "2000",
		Date:       "2026-01-15",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var entries []api.EntryDTO
	decodeInto(t, resp, &entries)
	require.Len(t, entries, 2)
	loanID := entries[0].LoanID
	require.NotEmpty(t, loanID)

	resp = f.request(t, http.MethodGet, "/api/loans/"+loanID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report api.LoanReportDTO
	decodeInto(t, resp, &report)
	assert.Equal(t, "active", report.State)
	assert.Equal(t, "2000", report.Principal)

	resp = f.request(t, http.MethodPost, "/api/loans/"+loanID+"/repay", api.RepayLoanRequest{
		LenderID:   lender.ID,
		BorrowerID: borrower.ID,
		Principal:  "2000",
		Interest:   "9.85",
		Date:       "2026-06-01",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var repayment api.RepaymentDTO
	decodeInto(t, resp, &repayment)
	assert.True(t, repayment.Settled)

	resp = f.request(t, http.MethodGet, "/api/loans", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var active []api.LoanReportDTO
	decodeInto(t, resp, &active)
	assert.Empty(t, active)
}

// =============================================================================
// METRICS AND IMPORT
// =============================================================================

func TestGetMetrics(t *testing.T) {
	f := newFixture(t)
	f.createBucket(t, "Reserva", "1000")

	resp := f.request(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var metrics api.MetricsDTO
	decodeInto(t, resp, &metrics)
	assert.Equal(t, 1, metrics.ActiveBuckets)
	assert.Equal(t, "1000", metrics.TotalBRL)
	assert.Equal(t, "5.47", metrics.ExchangeRate)
}

func TestImportStatement(t *testing.T) {
	f := newFixture(t)
	bucket := f.createBucket(t, "Conta", "0")

	csv := "Data,Descrição,Tipo,Valor\n05/01/2026,Salário,Entrada,\"1.500,00\"\n"
	req, err := http.NewRequest(http.MethodPost,
		f.server.URL+"/api/buckets/"+bucket.ID+"/import", strings.NewReader(csv))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/csv")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.ImportResultDTO
	decodeInto(t, resp, &result)
	assert.Equal(t, 1, result.Parsed)
	assert.Equal(t, 1, result.Imported)

	resp = f.request(t, http.MethodGet, fmt.Sprintf("/api/buckets/%s/balance", bucket.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balance api.BalanceDTO
	decodeInto(t, resp, &balance)
	assert.Equal(t, "1500", balance.Balance)
}
