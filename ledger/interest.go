/*
interest.go - Interest accrual calculator

PURPOSE:
  Computes daily-compounded interest owed on an active loan as of "now".

FORMULA:
  dailyRate = (1 + rate/100)^(1/365) - 1
  accrued   = principal * ((1 + dailyRate)^days - 1)
  totalOwed = principal + accrued

  The fractional exponent forces float64 here (decimal has no stable
  fractional Pow); the result is converted back to decimal at display
  precision, which is acceptable because accrual is a read-side figure -
  the principal itself never leaves decimal.

CACHING:
  Never cached by the engine. "Now" advances continuously, so the public
  loan-status query always recomputes from (rate, grantDate, principal).
  Display layers may cache for a refresh interval; the engine does not.
*/
package ledger

import (
	"math"

	"github.com/shopspring/decimal"
)

const daysPerYear = 365

// interestScale is the decimal precision accrued interest is rounded to.
const interestScale = 8

// Accrual is the interest position of a loan at a point in time.
type Accrual struct {
	Principal decimal.Decimal
	Accrued   decimal.Decimal
	TotalOwed decimal.Decimal
	Days      int
}

// AccrueInterest computes daily-compounded interest on a principal at an
// annualized percentage rate over a number of whole days.
//
// accrued(0) = 0, and for rate > 0 accrued is strictly increasing in
// days.
func AccrueInterest(principal, annualRatePct decimal.Decimal, days int) Accrual {
	if days < 0 {
		days = 0
	}

	acc := Accrual{Principal: principal, Days: days}

	rate, _ := annualRatePct.Float64()
	p, _ := principal.Float64()
	if days == 0 || rate <= 0 || p <= 0 {
		acc.Accrued = decimal.Zero
		acc.TotalOwed = principal
		return acc
	}

	dailyRate := math.Pow(1+rate/100, 1.0/daysPerYear) - 1
	accrued := p * (math.Pow(1+dailyRate, float64(days)) - 1)

	acc.Accrued = decimal.NewFromFloat(accrued).Round(interestScale)
	acc.TotalOwed = principal.Add(acc.Accrued)
	return acc
}
