package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrimonio/bucket-engine/ledger"
	"github.com/patrimonio/bucket-engine/ledger/store"
)

func projectionBucket(t *testing.T, engine *ledger.Engine, yieldRate, contribution int64, horizon int) *ledger.Bucket {
	t.Helper()
	bucket, err := engine.CreateBucket(context.Background(), ledger.BucketInput{
		Name:                "Investimentos",
		Currency:            ledger.CurrencyBRL,
		OpeningBalance:      decimal.NewFromInt(10000),
		YieldRate:           decimal.NewFromInt(yieldRate),
		MonthlyContribution: decimal.NewFromInt(contribution),
		HorizonMonths:       horizon,
	})
	require.NoError(t, err)
	return bucket
}

func TestProjectBucket_ZeroRateIsPlainSavings(t *testing.T) {
	ctx := context.Background()
	engine := ledger.NewEngine(store.NewMemory())
	bucket := projectionBucket(t, engine, 0, 500, 12)

	projection, err := engine.ProjectBucket(ctx, bucket.ID, 12)
	require.NoError(t, err)

	assert.True(t, projection.MonthlyRate.IsZero())
	assert.True(t, projection.FinalBalance.Equal(decimal.NewFromInt(16000)),
		"10000 + 12*500, got %s", projection.FinalBalance)
	assert.True(t, projection.TotalYield.IsZero())
	assert.True(t, projection.ContribTotal.Equal(decimal.NewFromInt(6000)))
}

func TestProjectBucket_CompoundsMonthly(t *testing.T) {
	ctx := context.Background()
	engine := ledger.NewEngine(store.NewMemory())
	bucket := projectionBucket(t, engine, 12, 0, 12)

	projection, err := engine.ProjectBucket(ctx, bucket.ID, 12)
	require.NoError(t, err)

	// A year at 12% annual compounds to roughly 11200.
	final, _ := projection.FinalBalance.Float64()
	assert.InDelta(t, 11200, final, 5)
	assert.True(t, projection.TotalYield.IsPositive())
	require.Len(t, projection.Points, 13, "point per month plus the starting point")
	assert.Equal(t, 0, projection.Points[0].Month)
	assert.True(t, projection.Points[0].Balance.Equal(decimal.NewFromInt(10000)))
}

func TestProjectBucket_DefaultsToBucketHorizon(t *testing.T) {
	ctx := context.Background()
	engine := ledger.NewEngine(store.NewMemory())
	bucket := projectionBucket(t, engine, 10, 100, 24)

	projection, err := engine.ProjectBucket(ctx, bucket.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 24, projection.Months)
}

func TestProjectBucket_UnknownBucket(t *testing.T) {
	engine := ledger.NewEngine(store.NewMemory())
	_, err := engine.ProjectBucket(context.Background(), "missing", 12)
	assert.True(t, ledger.IsNotFound(err))
}
