package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/patrimonio/bucket-engine/ledger"
)

func mustDate(t *testing.T, s string) ledger.TimePoint {
	t.Helper()
	tp, err := ledger.ParseDate(s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return tp
}

func entryOn(t *testing.T, date string, kind ledger.Kind, amount int64) ledger.Entry {
	t.Helper()
	return ledger.Entry{
		ID:        ledger.NewEntryID(),
		BucketID:  "bucket-1",
		Date:      mustDate(t, date),
		Kind:      kind,
		Amount:    decimal.NewFromInt(amount),
		Status:    ledger.StatusConfirmed,
		CreatedAt: time.Now().UTC(),
	}
}

func TestReplay_RunningBalances(t *testing.T) {
	// GIVEN: opening 1000, deposit 500, withdrawal 200
	// WHEN: replayed
	// THEN: running balances are 1500, 1300 and the final is 1300

	entries := []ledger.Entry{
		entryOn(t, "2026-01-10", ledger.KindDeposit, 500),
		entryOn(t, "2026-01-15", ledger.KindWithdrawal, 200),
	}

	replayed, final := ledger.Replay(decimal.NewFromInt(1000), entries)

	if want := decimal.NewFromInt(1500); !replayed[0].BalanceAfter.Equal(want) {
		t.Errorf("first balance_after = %s, want %s", replayed[0].BalanceAfter, want)
	}
	if want := decimal.NewFromInt(1300); !replayed[1].BalanceAfter.Equal(want) {
		t.Errorf("second balance_after = %s, want %s", replayed[1].BalanceAfter, want)
	}
	if want := decimal.NewFromInt(1300); !final.Equal(want) {
		t.Errorf("final = %s, want %s", final, want)
	}
}

func TestReplay_OrdersByDateThenCreation(t *testing.T) {
	// Out-of-order input must not change the result: replay sorts by
	// (date, created_at) before walking.
	later := entryOn(t, "2026-02-01", ledger.KindDeposit, 100)
	earlier := entryOn(t, "2026-01-01", ledger.KindWithdrawal, 300)

	replayed, final := ledger.Replay(decimal.NewFromInt(1000), []ledger.Entry{later, earlier})

	if replayed[0].ID != earlier.ID {
		t.Fatal("expected the January entry to replay first")
	}
	if want := decimal.NewFromInt(800); !final.Equal(want) {
		t.Errorf("final = %s, want %s", final, want)
	}
}

func TestReplay_SameDayTieBrokenByCreation(t *testing.T) {
	first := entryOn(t, "2026-03-01", ledger.KindDeposit, 100)
	second := entryOn(t, "2026-03-01", ledger.KindWithdrawal, 50)
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	replayed, _ := ledger.Replay(decimal.Zero, []ledger.Entry{second, first})

	if replayed[0].ID != first.ID {
		t.Error("expected creation order to break the same-day tie")
	}
}

func TestReplay_PendingCarriesBalanceForward(t *testing.T) {
	// GIVEN: a pending withdrawal between two confirmed deposits
	// THEN: the pending row records the running balance unchanged

	pending := entryOn(t, "2026-01-12", ledger.KindWithdrawal, 999)
	pending.Status = ledger.StatusPending

	entries := []ledger.Entry{
		entryOn(t, "2026-01-10", ledger.KindDeposit, 500),
		pending,
		entryOn(t, "2026-01-15", ledger.KindDeposit, 100),
	}

	replayed, final := ledger.Replay(decimal.Zero, entries)

	if want := decimal.NewFromInt(500); !replayed[1].BalanceAfter.Equal(want) {
		t.Errorf("pending balance_after = %s, want %s", replayed[1].BalanceAfter, want)
	}
	if want := decimal.NewFromInt(600); !final.Equal(want) {
		t.Errorf("final = %s, want %s", final, want)
	}
}

func TestReplay_NeutralRowDoesNotMoveBalance(t *testing.T) {
	redirected := entryOn(t, "2026-01-20", ledger.KindYield, 250)
	redirected.IsYield = true
	redirected.IsNeutral = true
	redirected.DestinationID = "bucket-2"

	_, final := ledger.Replay(decimal.NewFromInt(1000), []ledger.Entry{redirected})

	if want := decimal.NewFromInt(1000); !final.Equal(want) {
		t.Errorf("final = %s, want %s", final, want)
	}
}

func TestReplay_DoesNotMutateInput(t *testing.T) {
	entries := []ledger.Entry{entryOn(t, "2026-01-10", ledger.KindDeposit, 500)}
	ledger.Replay(decimal.Zero, entries)

	if !entries[0].BalanceAfter.Equal(decimal.Zero) {
		t.Error("replay must work on a copy of the input slice")
	}
}

func TestReplay_NegativeBalanceAllowed(t *testing.T) {
	// Overdrawn buckets are representable; nothing clamps at zero.
	entries := []ledger.Entry{entryOn(t, "2026-01-10", ledger.KindWithdrawal, 700)}

	_, final := ledger.Replay(decimal.NewFromInt(500), entries)

	if want := decimal.NewFromInt(-200); !final.Equal(want) {
		t.Errorf("final = %s, want %s", final, want)
	}
}
