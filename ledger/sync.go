/*
sync.go - Bucket balance synchronizer

PURPOSE:
  Re-derives every per-row running balance and the bucket's current
  balance from the entry log and writes back only what changed. The log
  is the single source of truth; stored balance_after values are a
  cache, repaired here whenever mutations invalidate them.

IDEMPOTENCE:
  Running the synchronizer twice in a row leaves the second run with
  nothing to write. Comparisons use an absolute epsilon so that
  representation noise does not trigger spurious repairs.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// balanceEpsilon bounds the drift tolerated between a stored running
// balance and the recomputed one before a repair is written.
var balanceEpsilon = decimal.New(1, -6) // 0.000001

// ResyncBucket replays the bucket's full log, repairs any stored
// running balance that drifted beyond the epsilon, and persists the
// final balance on the bucket itself.
func (e *Engine) ResyncBucket(ctx context.Context, id BucketID) error {
	bucket, err := e.mustBucket(ctx, id)
	if err != nil {
		return err
	}

	entries, err := e.Store.SelectEntries(ctx, FilterByBucket(id))
	if err != nil {
		return storageErr("select", err)
	}

	replayed, balance := Replay(bucket.OpeningBalance, entries)

	stored := make(map[EntryID]decimal.Decimal, len(entries))
	for _, entry := range entries {
		stored[entry.ID] = entry.BalanceAfter
	}

	var repaired int
	for _, entry := range replayed {
		previous := stored[entry.ID]
		if previous.Sub(entry.BalanceAfter).Abs().Cmp(balanceEpsilon) <= 0 {
			continue
		}
		if previous.IsZero() {
			// Rows are inserted with a zero running balance; the first
			// sync after the insert materializes the real value.
			e.Log.WithFields(logrus.Fields{
				"bucket": id,
				"entry":  entry.ID,
			}).Debug("materializing running balance")
		} else {
			e.Log.WithError(&ConsistencyError{
				EntryID:  entry.ID,
				Stored:   previous,
				Computed: entry.BalanceAfter,
			}).WithField("bucket", id).Warn("running balance drifted, repairing")
		}

		after := entry.BalanceAfter
		if _, err := e.Store.UpdateEntries(ctx, FilterByID(entry.ID), EntryPatch{BalanceAfter: &after}); err != nil {
			return storageErr("update", err)
		}
		repaired++
	}

	if !bucket.CurrentBalance.Equal(balance) {
		if err := e.Store.UpdateBucketBalance(ctx, id, balance); err != nil {
			return storageErr("update", err)
		}
	}

	if repaired > 0 {
		e.Log.WithFields(logrus.Fields{
			"bucket":   id,
			"repaired": repaired,
			"balance":  balance,
		}).Info("bucket resynchronized")
	}
	return nil
}

// resync runs the synchronizer over each bucket in turn, stopping at
// the first failure.
func (e *Engine) resync(ctx context.Context, ids ...BucketID) error {
	for _, id := range ids {
		if err := e.ResyncBucket(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
