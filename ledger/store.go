/*
store.go - Persistence contract consumed by the engine

PURPOSE:
  Defines the CRUD-style interface between the engine and the row store.
  Filters are simple equality/range predicates (bucket id, loan id, link
  id, date range); no joins - the engine performs in-memory joins by
  re-querying per bucket.

ORDERING:
  SelectEntries always returns rows ordered by (date asc, created_at
  asc), the replay order. Implementations must preserve that contract.

ATOMICITY:
  InsertEntries writes all given rows in one store transaction where the
  backend has one (SQLite, Postgres). Ledger operations are otherwise
  sequences of independent storage calls: a crash between calls can
  leave a pair half-written, and ResyncBucket is the documented repair.

IMPLEMENTATIONS:
  - ledger/store:  in-memory, for tests and dev
  - store/sqlite:  production SQLite
  - store/postgres: production Postgres (pgx)
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FILTERS AND PATCHES
// =============================================================================

// EntryFilter selects ledger rows by equality/range predicates. Nil
// fields are ignored. Limit bounds the result set (0 = unbounded).
type EntryFilter struct {
	ID            *EntryID
	BucketID      *BucketID
	DestinationID *BucketID
	LoanID        *LoanID
	LinkID        *LinkID
	Kinds         []Kind
	ExcludeID     *EntryID
	From          *TimePoint
	To            *TimePoint
	Limit         int
}

// EntryPatch is a partial update. Nil fields are left untouched.
type EntryPatch struct {
	Date         *TimePoint
	Kind         *Kind
	Amount       *decimal.Decimal
	Description  *string
	Status       *Status
	IsYield      *bool
	LoanState    *LoanState
	BalanceAfter *decimal.Decimal
}

// IsEmpty reports whether the patch would change nothing.
func (p EntryPatch) IsEmpty() bool {
	return p.Date == nil && p.Kind == nil && p.Amount == nil &&
		p.Description == nil && p.Status == nil && p.IsYield == nil &&
		p.LoanState == nil && p.BalanceAfter == nil
}

// =============================================================================
// STORE
// =============================================================================

// Store is the storage collaborator. Errors it returns are surfaced to
// callers wrapped as StorageError; the engine never retries them.
type Store interface {
	// InsertEntries persists rows, atomically where the backend
	// supports multi-row commits.
	InsertEntries(ctx context.Context, entries []Entry) error

	// SelectEntries returns matching rows ordered by (date, created_at).
	SelectEntries(ctx context.Context, f EntryFilter) ([]Entry, error)

	// UpdateEntries applies a patch to matching rows, returning the
	// number of rows updated.
	UpdateEntries(ctx context.Context, f EntryFilter, p EntryPatch) (int, error)

	// DeleteEntries removes matching rows, returning the count.
	DeleteEntries(ctx context.Context, f EntryFilter) (int, error)

	// Buckets.
	SaveBucket(ctx context.Context, b Bucket) error
	GetBucket(ctx context.Context, id BucketID) (*Bucket, error)
	ListBuckets(ctx context.Context) ([]Bucket, error)
	UpdateBucketBalance(ctx context.Context, id BucketID, balance decimal.Decimal) error
	DeleteBucket(ctx context.Context, id BucketID) error
}

// =============================================================================
// FILTER HELPERS
// =============================================================================

func FilterByID(id EntryID) EntryFilter       { return EntryFilter{ID: &id} }
func FilterByBucket(id BucketID) EntryFilter  { return EntryFilter{BucketID: &id} }
func FilterByLoan(id LoanID) EntryFilter      { return EntryFilter{LoanID: &id} }
func FilterByLink(id LinkID) EntryFilter      { return EntryFilter{LinkID: &id} }

// Matches reports whether an entry satisfies the filter. Store
// implementations without a query engine (memory) use it directly.
func (f EntryFilter) Matches(e Entry) bool {
	if f.ID != nil && e.ID != *f.ID {
		return false
	}
	if f.BucketID != nil && e.BucketID != *f.BucketID {
		return false
	}
	if f.DestinationID != nil && e.DestinationID != *f.DestinationID {
		return false
	}
	if f.LoanID != nil && e.LoanID != *f.LoanID {
		return false
	}
	if f.LinkID != nil && e.LinkID != *f.LinkID {
		return false
	}
	if f.ExcludeID != nil && e.ID == *f.ExcludeID {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if e.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Date.After(*f.To) {
		return false
	}
	return true
}

// Apply mutates an entry in place per the patch.
func (p EntryPatch) Apply(e *Entry) {
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Kind != nil {
		e.Kind = *p.Kind
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.IsYield != nil {
		e.IsYield = *p.IsYield
	}
	if p.LoanState != nil {
		e.LoanState = *p.LoanState
	}
	if p.BalanceAfter != nil {
		e.BalanceAfter = *p.BalanceAfter
	}
}
