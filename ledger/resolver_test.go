package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrimonio/bucket-engine/ledger"
)

func TestDeleteTransaction_SimpleLeavesCounterpart(t *testing.T) {
	// GIVEN: a transfer pair
	// WHEN: one side is deleted in simple mode
	// THEN: the counterpart survives and only the touched bucket resyncs

	ctx := context.Background()
	engine := newTestEngine(t)
	origin := makeBucket(t, engine, "Reserva", 2000)
	destination := makeBucket(t, engine, "Viagem", 0)

	entries, err := engine.AddTransfer(ctx, ledger.TransferInput{
		OriginID: origin.ID, DestinationID: destination.ID,
		Amount: dec(500), Date: "2026-02-01",
	})
	require.NoError(t, err)

	require.NoError(t, engine.DeleteTransaction(ctx, entries[0].ID, ledger.DeleteSimple))

	remaining, err := engine.Store.SelectEntries(ctx, ledger.FilterByLink(entries[0].LinkID))
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, ledger.KindTransferIn, remaining[0].Kind)

	a, _ := engine.Store.GetBucket(ctx, origin.ID)
	b, _ := engine.Store.GetBucket(ctx, destination.ID)
	assert.True(t, a.CurrentBalance.Equal(dec(2000)), "origin restored after its row is gone")
	assert.True(t, b.CurrentBalance.Equal(dec(500)), "destination keeps the orphaned inflow")
}

func TestDeleteTransaction_CascadingRemovesTransferPair(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	origin := makeBucket(t, engine, "Reserva", 2000)
	destination := makeBucket(t, engine, "Viagem", 0)

	entries, err := engine.AddTransfer(ctx, ledger.TransferInput{
		OriginID: origin.ID, DestinationID: destination.ID,
		Amount: dec(500), Date: "2026-02-01",
	})
	require.NoError(t, err)

	require.NoError(t, engine.DeleteTransaction(ctx, entries[1].ID, ledger.DeleteCascading))

	remaining, err := engine.Store.SelectEntries(ctx, ledger.FilterByLink(entries[0].LinkID))
	require.NoError(t, err)
	assert.Empty(t, remaining, "both halves of the pair must be gone")

	a, _ := engine.Store.GetBucket(ctx, origin.ID)
	b, _ := engine.Store.GetBucket(ctx, destination.ID)
	assert.True(t, a.CurrentBalance.Equal(dec(2000)))
	assert.True(t, b.CurrentBalance.IsZero())
}

func TestDeleteTransaction_CascadingRemovesWholeLoan(t *testing.T) {
	// Deleting any loan row cascades over the loan id, taking the
	// counterpart and any repayment rows with it.
	ctx := context.Background()
	engine := newTestEngine(t)
	lender := makeBucket(t, engine, "Reserva", 5000)
	borrower := makeBucket(t, engine, "Negócio", 1000)

	entries, err := engine.AddLoan(ctx, ledger.LoanInput{
		LenderID: lender.ID, BorrowerID: borrower.ID,
		Amount: dec(2000), Date: "2026-01-15",
	})
	require.NoError(t, err)
	loanID := entries[0].LoanID

	_, err = engine.RepayLoan(ctx, ledger.RepayInput{
		LoanID: loanID, LenderID: lender.ID, BorrowerID: borrower.ID,
		Principal: dec(500), Interest: decimal.NewFromFloat(3.30), Date: "2026-03-01",
	})
	require.NoError(t, err)

	rows, err := engine.Store.SelectEntries(ctx, ledger.FilterByLoan(loanID))
	require.NoError(t, err)
	require.Len(t, rows, 4, "grant pair plus repayment pair")

	require.NoError(t, engine.DeleteTransaction(ctx, entries[0].ID, ledger.DeleteCascading))

	rows, err = engine.Store.SelectEntries(ctx, ledger.FilterByLoan(loanID))
	require.NoError(t, err)
	assert.Empty(t, rows)

	// With every trace of the loan removed both buckets replay to
	// their state before it existed.
	a, _ := engine.Store.GetBucket(ctx, lender.ID)
	b, _ := engine.Store.GetBucket(ctx, borrower.ID)
	assert.True(t, a.CurrentBalance.Equal(dec(5000)))
	assert.True(t, b.CurrentBalance.Equal(dec(1000)))
}

func TestDeleteTransaction_CascadingTerminatesOnSharedLinks(t *testing.T) {
	// Loan rows reference each other through both the link id and the
	// loan id; the visited set must keep the walk from looping.
	ctx := context.Background()
	engine := newTestEngine(t)
	lender := makeBucket(t, engine, "Reserva", 5000)
	borrower := makeBucket(t, engine, "Negócio", 0)

	entries, err := engine.AddLoan(ctx, ledger.LoanInput{
		LenderID: lender.ID, BorrowerID: borrower.ID,
		Amount: dec(2000), Date: "2026-01-15",
	})
	require.NoError(t, err)

	require.NoError(t, engine.DeleteTransaction(ctx, entries[1].ID, ledger.DeleteCascading))

	rows, err := engine.Store.SelectEntries(ctx, ledger.FilterByLoan(entries[0].LoanID))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeleteTransaction_RejectsUnknownMode(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	bucket := makeBucket(t, engine, "Reserva", 1000)

	entry, err := engine.AddSimpleTransaction(ctx, ledger.SimpleTransactionInput{
		BucketID: bucket.ID, Kind: ledger.KindDeposit, Amount: dec(100), Date: "2026-01-10",
	})
	require.NoError(t, err)

	err = engine.DeleteTransaction(ctx, entry.ID, "recursive")
	assert.True(t, ledger.IsValidation(err))
}

func TestDeleteTransaction_UnknownEntry(t *testing.T) {
	engine := newTestEngine(t)
	err := engine.DeleteTransaction(context.Background(), "missing", ledger.DeleteSimple)
	assert.True(t, ledger.IsNotFound(err))
}
