/*
projection.go - Future balance projection

PURPOSE:
  Answers "where will this bucket be in N months?" by compounding the
  bucket's yield rate over its current balance while adding the planned
  monthly contribution. Purely a read-side computation: nothing here
  touches the store beyond loading the bucket and it never writes.

MODEL:
  Annual yield is converted to an effective monthly rate,
  (1+rate/100)^(1/12)-1, and each step applies the contribution first
  and then the growth. A zero or negative yield rate degenerates to a
  plain savings schedule.
*/
package ledger

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
)

// ProjectionPoint is one month of the projected schedule.
type ProjectionPoint struct {
	Month       int
	Contributed decimal.Decimal // cumulative contributions so far
	Balance     decimal.Decimal
}

// Projection is the full schedule for one bucket.
type Projection struct {
	BucketID      BucketID
	Months        int
	MonthlyRate   decimal.Decimal
	FinalBalance  decimal.Decimal
	TotalYield    decimal.Decimal
	ContribTotal  decimal.Decimal
	Points        []ProjectionPoint
}

// ProjectBucket compounds the bucket's current balance forward. Months
// defaults to the bucket's configured horizon; a bucket with neither
// yields a single-point schedule at the current balance.
func (e *Engine) ProjectBucket(ctx context.Context, id BucketID, months int) (*Projection, error) {
	bucket, err := e.mustBucket(ctx, id)
	if err != nil {
		return nil, err
	}
	if months <= 0 {
		months = bucket.HorizonMonths
	}
	if months < 0 {
		return nil, &ValidationError{Field: "months", Reason: "projection horizon must not be negative"}
	}

	monthlyRate := effectiveMonthlyRate(bucket.YieldRate)
	p := &Projection{
		BucketID:    id,
		Months:      months,
		MonthlyRate: monthlyRate,
	}

	balance := bucket.CurrentBalance
	contributed := decimal.Zero
	growth := decimal.NewFromInt(1).Add(monthlyRate)

	p.Points = append(p.Points, ProjectionPoint{Month: 0, Contributed: contributed, Balance: balance})
	for month := 1; month <= months; month++ {
		balance = balance.Add(bucket.MonthlyContribution).Mul(growth).Round(2)
		contributed = contributed.Add(bucket.MonthlyContribution)
		p.Points = append(p.Points, ProjectionPoint{Month: month, Contributed: contributed, Balance: balance})
	}

	p.FinalBalance = balance
	p.ContribTotal = contributed
	p.TotalYield = balance.Sub(bucket.CurrentBalance).Sub(contributed)
	return p, nil
}

// effectiveMonthlyRate converts an annual percentage to the monthly
// compound-equivalent rate. Non-positive annual rates project flat.
func effectiveMonthlyRate(annualPct decimal.Decimal) decimal.Decimal {
	if !annualPct.IsPositive() {
		return decimal.Zero
	}
	annual, _ := annualPct.Float64()
	monthly := math.Pow(1+annual/100, 1.0/12) - 1
	return decimal.NewFromFloat(monthly).Round(interestScale)
}
