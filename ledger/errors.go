/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place. The taxonomy is small and deliberate:

  ValidationError  - bad input, rejected before any write
  NotFoundError    - unknown bucket/entry/loan, rejected before write
  StorageError     - the store failed; completed writes are left as-is
                     and the caller should re-run a bucket resync
  ConsistencyError - a stored balance_after disagrees with replay; this
                     is logged and repaired, never fatal

USAGE:
  if ledger.IsNotFound(err) { ... }
  var verr *ledger.ValidationError
  errors.As(err, &verr)
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input-validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced bucket, entry or loan
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorage wraps failures of the storage collaborator.
	ErrStorage = errors.New("storage error")

	// ErrBucketHasActiveLoan is returned when deleting a bucket that
	// still participates in an active loan.
	ErrBucketHasActiveLoan = errors.New("bucket participates in an active loan")
)

// =============================================================================
// STRUCTURED ERRORS - carry additional context
// =============================================================================

// ValidationError reports invalid input: non-positive amounts,
// unparsable dates, missing required destinations.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies what was missing.
type NotFoundError struct {
	Resource string // "bucket", "entry", "loan"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageError surfaces the underlying store failure verbatim. The
// engine performs no automatic rollback; retry policy belongs to the
// caller (typically: retry ResyncBucket on the affected buckets).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorage }

// ConsistencyError records a stored running balance that disagreed with
// replay by more than the rounding epsilon. The synchronizer logs it and
// overwrites the stored value; it is a repair, not an abort.
type ConsistencyError struct {
	EntryID  EntryID
	Stored   decimal.Decimal
	Computed decimal.Decimal
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("stored balance for entry %s is %s, replay computed %s",
		e.EntryID, e.Stored, e.Computed)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsStorage(err error) bool    { return errors.Is(err, ErrStorage) }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
