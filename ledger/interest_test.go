package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/patrimonio/bucket-engine/ledger"
)

func TestAccrueInterest_ZeroDays(t *testing.T) {
	acc := ledger.AccrueInterest(decimal.NewFromInt(1000), decimal.NewFromFloat(1.32), 0)

	if !acc.Accrued.IsZero() {
		t.Errorf("accrued = %s, want 0", acc.Accrued)
	}
	if !acc.TotalOwed.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("total owed = %s, want the principal", acc.TotalOwed)
	}
}

func TestAccrueInterest_NegativeDaysClamped(t *testing.T) {
	acc := ledger.AccrueInterest(decimal.NewFromInt(1000), decimal.NewFromFloat(1.32), -10)

	if acc.Days != 0 {
		t.Errorf("days = %d, want 0", acc.Days)
	}
	if !acc.Accrued.IsZero() {
		t.Errorf("accrued = %s, want 0", acc.Accrued)
	}
}

func TestAccrueInterest_ZeroRate(t *testing.T) {
	acc := ledger.AccrueInterest(decimal.NewFromInt(1000), decimal.Zero, 90)

	if !acc.Accrued.IsZero() {
		t.Errorf("accrued = %s, want 0 for a zero rate", acc.Accrued)
	}
}

func TestAccrueInterest_CompoundsDaily(t *testing.T) {
	// 1.32% a year over a full year accrues 1.32% of the principal
	// (the daily rate is the 365th root of the annual factor).
	acc := ledger.AccrueInterest(decimal.NewFromInt(10000), decimal.NewFromFloat(1.32), 365)

	want := decimal.NewFromInt(132)
	diff := acc.Accrued.Sub(want).Abs()
	if diff.GreaterThan(decimal.NewFromFloat(0.01)) {
		t.Errorf("accrued over a year = %s, want ~%s", acc.Accrued, want)
	}
}

func TestAccrueInterest_MonotonicInDays(t *testing.T) {
	principal := decimal.NewFromInt(5000)
	rate := decimal.NewFromFloat(1.32)

	previous := decimal.Zero
	for _, days := range []int{1, 30, 90, 180, 365, 730} {
		acc := ledger.AccrueInterest(principal, rate, days)
		if acc.Accrued.LessThan(previous) {
			t.Fatalf("accrued interest decreased at %d days: %s < %s", days, acc.Accrued, previous)
		}
		previous = acc.Accrued
	}
}

func TestAccrueInterest_TotalOwedIsPrincipalPlusAccrued(t *testing.T) {
	acc := ledger.AccrueInterest(decimal.NewFromInt(2500), decimal.NewFromFloat(3.5), 45)

	if !acc.TotalOwed.Equal(acc.Principal.Add(acc.Accrued)) {
		t.Errorf("total owed %s != principal %s + accrued %s", acc.TotalOwed, acc.Principal, acc.Accrued)
	}
}
