package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/patrimonio/bucket-engine/ledger"
)

func confirmedEntry(kind ledger.Kind) ledger.Entry {
	return ledger.Entry{
		ID:       ledger.NewEntryID(),
		BucketID: "bucket-1",
		Kind:     kind,
		Amount:   decimal.NewFromInt(100),
		Status:   ledger.StatusConfirmed,
	}
}

func TestClassify_NeutralFlagWinsOverEverything(t *testing.T) {
	// GIVEN: a yield row explicitly flagged neutral
	// WHEN: classified
	// THEN: neutral, even though yield normally increases

	e := confirmedEntry(ledger.KindYield)
	e.IsYield = true
	e.IsNeutral = true
	e.DestinationID = "bucket-2"

	if got := ledger.Classify(e); got != ledger.Neutral {
		t.Errorf("expected Neutral, got %v", got)
	}
}

func TestClassify_RedirectedYieldIsNeutral(t *testing.T) {
	// A yield row pointing at a different destination bucket never
	// moves the origin balance.
	e := confirmedEntry(ledger.KindYield)
	e.IsYield = true
	e.IsNeutral = true
	e.DestinationID = "bucket-2"

	if got := ledger.Classify(e); got != ledger.Neutral {
		t.Errorf("expected Neutral for redirected yield, got %v", got)
	}
}

func TestClassify_YieldKeptIncreases(t *testing.T) {
	e := confirmedEntry(ledger.KindYield)
	e.IsYield = true

	if got := ledger.Classify(e); got != ledger.Increase {
		t.Errorf("expected Increase for kept yield, got %v", got)
	}
}

func TestClassify_Outflows(t *testing.T) {
	for _, kind := range []ledger.Kind{
		ledger.KindWithdrawal,
		ledger.KindTransferOut,
		ledger.KindLoanGranted,
	} {
		if got := ledger.Classify(confirmedEntry(kind)); got != ledger.Decrease {
			t.Errorf("%s: expected Decrease, got %v", kind, got)
		}
	}
}

func TestClassify_Inflows(t *testing.T) {
	for _, kind := range []ledger.Kind{
		ledger.KindDeposit,
		ledger.KindTransferIn,
		ledger.KindLoanReceived,
	} {
		if got := ledger.Classify(confirmedEntry(kind)); got != ledger.Increase {
			t.Errorf("%s: expected Increase, got %v", kind, got)
		}
	}
}

func TestKind_Valid(t *testing.T) {
	valid := []ledger.Kind{
		ledger.KindDeposit, ledger.KindWithdrawal, ledger.KindYield,
		ledger.KindTransferIn, ledger.KindTransferOut,
		ledger.KindLoanGranted, ledger.KindLoanReceived,
	}
	for _, k := range valid {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if ledger.Kind("chargeback").Valid() {
		t.Error("unknown kind should not be valid")
	}
}
