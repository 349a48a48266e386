/*
replay.go - Balance replay calculator

PURPOSE:
  Recomputes every running balance of a bucket's log from its opening
  balance. This is the ONLY function allowed to compute BalanceAfter;
  every other component that needs a balance calls this one instead of
  re-deriving the arithmetic locally.

ALGORITHM:
  1. Sort entries by (date asc, created_at asc). The creation timestamp
     is the tiebreaker for same-day entries, preserving insertion
     causality.
  2. Walk the sorted list with an accumulator seeded at the opening
     balance. Pending entries copy the accumulator forward unchanged
     (visible but inert). Confirmed entries apply the classifier's
     verdict. Each entry records the post-entry accumulator.

INVARIANT:
  Replay is idempotent and pure: same log in, same BalanceAfter sequence
  out, and the input slice is never mutated.
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Replay returns a copy of the entries annotated with BalanceAfter, in
// chronological order, together with the final balance.
func Replay(opening decimal.Decimal, entries []Entry) ([]Entry, decimal.Decimal) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	SortChronological(sorted)

	balance := opening
	for i := range sorted {
		if sorted[i].Status == StatusConfirmed {
			switch Classify(sorted[i]) {
			case Increase:
				balance = balance.Add(sorted[i].Amount)
			case Decrease:
				balance = balance.Sub(sorted[i].Amount)
			}
		}
		sorted[i].BalanceAfter = balance
	}

	return sorted, balance
}

// SortChronological orders entries by (date, created_at) ascending,
// in place.
func SortChronological(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
