/*
Package ledger provides the bucket ledger engine.

PURPOSE:
  This package contains the types and algorithms for tracking capital
  split across named buckets. Every bucket has a transaction log; its
  balance is the chronological replay of that log from the opening
  balance. The engine records deposits, withdrawals, yield events,
  inter-bucket transfers and loans, and keeps stored balances
  consistent across edits and cascading deletions.

KEY CONCEPTS IN THIS FILE (types.go):
  - Bucket: an account with one currency and an immutable opening balance
  - Entry: an immutable fact about money movement, owned by one bucket
  - Kind: closed set of transaction kinds (direction is implied by kind)
  - LinkID / LoanID: linkage identifiers connecting the rows produced by
    one logical operation, and the rows belonging to one loan

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 in state
  2. Amounts are non-negative magnitudes; Kind decides the sign
  3. BalanceAfter on an entry is a cache, always re-derivable by replay
  4. Type safety: distinct id types for buckets, entries, loans, links

SEE ALSO:
  - classify.go: kind -> balance effect
  - replay.go: running-balance recomputation
  - engine.go: mutation operations
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BucketID string
type EntryID string
type LoanID string
type LinkID string

func NewEntryID() EntryID { return EntryID(uuid.NewString()) }
func NewLoanID() LoanID   { return LoanID(uuid.NewString()) }
func NewLinkID() LinkID   { return LinkID(uuid.NewString()) }

// =============================================================================
// CURRENCY
// =============================================================================

// Currency is the unit a bucket is denominated in. Two units are
// supported; conversion between them uses a supplied constant rate and
// only happens in aggregate metrics, never in the ledger itself.
type Currency string

const (
	CurrencyBRL Currency = "BRL"
	CurrencyUSD Currency = "USD"
)

func (c Currency) Valid() bool { return c == CurrencyBRL || c == CurrencyUSD }

// =============================================================================
// BUCKET
// =============================================================================

// Bucket is an account holding a balance in one currency.
//
// OpeningBalance is immutable once set: it represents capital at time
// zero and seeds every replay. CurrentBalance is derived state, written
// only by the Synchronizer; UI code must never mutate it directly.
type Bucket struct {
	ID       BucketID
	Name     string
	Currency Currency

	OpeningBalance decimal.Decimal
	CurrentBalance decimal.Decimal

	// Percent per year. YieldRate drives projections; LoanRate is the
	// default pricing for loans granted by this bucket.
	YieldRate decimal.Decimal
	LoanRate  decimal.Decimal

	// Projection inputs (monthly contribution over a horizon).
	MonthlyContribution decimal.Decimal
	HorizonMonths       int

	// Inactive buckets keep their history but are excluded from
	// aggregate metrics.
	Active bool

	CreatedAt time.Time
}

// =============================================================================
// TRANSACTION KIND - closed enum, exhaustive in the classifier
// =============================================================================

type Kind string

const (
	KindDeposit      Kind = "deposit"
	KindWithdrawal   Kind = "withdrawal"
	KindYield        Kind = "yield"
	KindTransferIn   Kind = "transfer_in"
	KindTransferOut  Kind = "transfer_out"
	KindLoanGranted  Kind = "loan_granted"
	KindLoanReceived Kind = "loan_received"
)

func (k Kind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindYield,
		KindTransferIn, KindTransferOut,
		KindLoanGranted, KindLoanReceived:
		return true
	}
	return false
}

// =============================================================================
// STATUS
// =============================================================================

// Status of an entry. Pending entries are visible in the log but do not
// move the balance until confirmed.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
)

// LoanState is carried by every row of a loan and flipped to settled by
// a full repayment.
type LoanState string

const (
	LoanActive  LoanState = "active"
	LoanSettled LoanState = "settled"
)

// =============================================================================
// ENTRY - one immutable fact about money movement
// =============================================================================

// Entry is a ledger row. It belongs to exactly one bucket (BucketID) and
// may reference a counterpart bucket (DestinationID). Amount is a
// non-negative magnitude; the direction comes from Kind, not from sign.
//
// BalanceAfter is the stored running balance after this entry when the
// bucket's log is sorted by (Date, CreatedAt). It is a cache: the replay
// calculator is the only code allowed to compute it.
type Entry struct {
	ID            EntryID
	BucketID      BucketID
	DestinationID BucketID // empty when the entry has no counterpart bucket
	Date          TimePoint
	Kind          Kind
	Amount        decimal.Decimal
	Description   string
	Status        Status

	// IsYield marks yield/interest income. IsNeutral is the explicit
	// override meaning "never affect this bucket's balance".
	IsYield   bool
	IsNeutral bool

	// Loan linkage: all rows of one loan share LoanID and carry the
	// effective annual rate so accrual can be recomputed at read time.
	LoanID    LoanID
	LoanState LoanState
	LoanRate  decimal.Decimal

	// LinkID connects the one-to-two rows produced by a single logical
	// operation (transfer, loan grant, redirected yield, repayment).
	LinkID LinkID

	BalanceAfter decimal.Decimal
	CreatedAt    time.Time
}

// Linked reports whether deleting this entry should chase its LinkID:
// redirected-yield rows, explicitly neutral rows, and the two halves of
// a transfer are all products of one logical operation.
func (e Entry) Linked() bool {
	if e.LinkID == "" {
		return false
	}
	if e.IsNeutral {
		return true
	}
	if e.Kind == KindYield && e.DestinationID != "" && e.DestinationID != e.BucketID {
		return true
	}
	return e.Kind == KindTransferIn || e.Kind == KindTransferOut
}
