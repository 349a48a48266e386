/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Persists buckets and their entry logs in a single SQLite file. The
  same SQL translates to PostgreSQL with only dialect changes; see
  store/postgres for that variant.

KEY TABLES:
  buckets:  One row per capital bucket, including the cached current
            balance maintained by the synchronizer.
  entries:  The transaction log. balance_after is a cached running
            balance, fully re-derivable from the log.

INDEXES:
  - idx_entries_bucket_date: replay reads (hot path)
  - idx_entries_loan: loan membership lookups
  - idx_entries_link: linked-pair lookups during cascades

ATOMICITY:
  InsertEntries wraps multi-row writes in one database transaction, so
  a transfer or loan pair lands completely or not at all. Slice order is
  preserved on insert: the dependent row of a pair is written last.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode: multiple
  readers, single writer, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: interface and filter definitions
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/patrimonio/bucket-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS buckets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		currency TEXT NOT NULL,
		opening_balance TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		yield_rate TEXT NOT NULL DEFAULT '0',
		loan_rate TEXT NOT NULL DEFAULT '0',
		monthly_contribution TEXT NOT NULL DEFAULT '0',
		horizon_months INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		bucket_id TEXT NOT NULL,
		destination_id TEXT,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'confirmed',
		is_yield BOOLEAN NOT NULL DEFAULT FALSE,
		is_neutral BOOLEAN NOT NULL DEFAULT FALSE,
		loan_id TEXT,
		loan_state TEXT,
		loan_rate TEXT,
		link_id TEXT,
		balance_after TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- Replay reads (hot path)
	CREATE INDEX IF NOT EXISTS idx_entries_bucket_date
		ON entries(bucket_id, date, created_at);

	-- Loan membership lookups
	CREATE INDEX IF NOT EXISTS idx_entries_loan
		ON entries(loan_id) WHERE loan_id IS NOT NULL;

	-- Linked-pair lookups during cascades
	CREATE INDEX IF NOT EXISTS idx_entries_link
		ON entries(link_id) WHERE link_id IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_entries_destination
		ON entries(destination_id) WHERE destination_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENTRY STORE (ledger.Store interface)
// =============================================================================

// InsertEntries writes all rows in one database transaction, preserving
// slice order.
func (s *Store) InsertEntries(ctx context.Context, entries []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO entries
		(id, bucket_id, destination_id, date, kind, amount, description, status,
		 is_yield, is_neutral, loan_id, loan_state, loan_rate, link_id, balance_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, e := range entries {
		_, err := tx.ExecContext(ctx, query,
			e.ID,
			e.BucketID,
			nullString(string(e.DestinationID)),
			e.Date.String(),
			e.Kind,
			e.Amount.String(),
			e.Description,
			e.Status,
			e.IsYield,
			e.IsNeutral,
			nullString(string(e.LoanID)),
			nullString(string(e.LoanState)),
			nullString(e.LoanRate.String()),
			nullString(string(e.LinkID)),
			e.BalanceAfter.String(),
			e.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}

	return tx.Commit()
}

// SelectEntries returns matching rows ordered by (date, created_at).
func (s *Store) SelectEntries(ctx context.Context, f ledger.EntryFilter) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := buildWhere(f)
	query := `
		SELECT id, bucket_id, destination_id, date, kind, amount, description, status,
		       is_yield, is_neutral, loan_id, loan_state, loan_rate, link_id, balance_after, created_at
		FROM entries
	` + where + `
		ORDER BY date ASC, created_at ASC
	`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdateEntries applies the patch to matching rows.
func (s *Store) UpdateEntries(ctx context.Context, f ledger.EntryFilter, p ledger.EntryPatch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sets []string
	var args []any
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, p.Date.String())
	}
	if p.Kind != nil {
		sets = append(sets, "kind = ?")
		args = append(args, *p.Kind)
	}
	if p.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, p.Amount.String())
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *p.Status)
	}
	if p.IsYield != nil {
		sets = append(sets, "is_yield = ?")
		args = append(args, *p.IsYield)
	}
	if p.LoanState != nil {
		sets = append(sets, "loan_state = ?")
		args = append(args, *p.LoanState)
	}
	if p.BalanceAfter != nil {
		sets = append(sets, "balance_after = ?")
		args = append(args, p.BalanceAfter.String())
	}
	if len(sets) == 0 {
		return 0, nil
	}

	where, whereArgs := buildWhere(f)
	query := "UPDATE entries SET " + strings.Join(sets, ", ") + where
	args = append(args, whereArgs...)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update entries: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// DeleteEntries removes matching rows.
func (s *Store) DeleteEntries(ctx context.Context, f ledger.EntryFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, args := buildWhere(f)
	result, err := s.db.ExecContext(ctx, "DELETE FROM entries"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// buildWhere translates an EntryFilter into a WHERE clause.
func buildWhere(f ledger.EntryFilter) (string, []any) {
	var conds []string
	var args []any

	if f.ID != nil {
		conds = append(conds, "id = ?")
		args = append(args, *f.ID)
	}
	if f.BucketID != nil {
		conds = append(conds, "bucket_id = ?")
		args = append(args, *f.BucketID)
	}
	if f.DestinationID != nil {
		conds = append(conds, "destination_id = ?")
		args = append(args, *f.DestinationID)
	}
	if f.LoanID != nil {
		conds = append(conds, "loan_id = ?")
		args = append(args, *f.LoanID)
	}
	if f.LinkID != nil {
		conds = append(conds, "link_id = ?")
		args = append(args, *f.LinkID)
	}
	if f.ExcludeID != nil {
		conds = append(conds, "id <> ?")
		args = append(args, *f.ExcludeID)
	}
	if len(f.Kinds) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Kinds)), ", ")
		conds = append(conds, "kind IN ("+placeholders+")")
		for _, k := range f.Kinds {
			args = append(args, k)
		}
	}
	if f.From != nil {
		conds = append(conds, "date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		conds = append(conds, "date <= ?")
		args = append(args, f.To.String())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanEntry(rows *sql.Rows) (ledger.Entry, error) {
	var (
		e            ledger.Entry
		destination  sql.NullString
		date         string
		amount       string
		loanID       sql.NullString
		loanState    sql.NullString
		loanRate     sql.NullString
		linkID       sql.NullString
		balanceAfter string
		createdAt    string
	)

	err := rows.Scan(
		&e.ID, &e.BucketID, &destination, &date, &e.Kind, &amount, &e.Description, &e.Status,
		&e.IsYield, &e.IsNeutral, &loanID, &loanState, &loanRate, &linkID, &balanceAfter, &createdAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	e.DestinationID = ledger.BucketID(destination.String)
	if tp, perr := ledger.ParseDate(date); perr == nil {
		e.Date = tp
	}
	e.Amount = mustDecimal(amount)
	e.LoanID = ledger.LoanID(loanID.String)
	e.LoanState = ledger.LoanState(loanState.String)
	if loanRate.Valid {
		e.LoanRate = mustDecimal(loanRate.String)
	}
	e.LinkID = ledger.LinkID(linkID.String)
	e.BalanceAfter = mustDecimal(balanceAfter)
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return e, nil
}

// =============================================================================
// BUCKET STORE
// =============================================================================

// SaveBucket inserts or fully replaces a bucket record.
func (s *Store) SaveBucket(ctx context.Context, b ledger.Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO buckets
		(id, name, currency, opening_balance, current_balance, yield_rate, loan_rate,
		 monthly_contribution, horizon_months, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			current_balance = excluded.current_balance,
			yield_rate = excluded.yield_rate,
			loan_rate = excluded.loan_rate,
			monthly_contribution = excluded.monthly_contribution,
			horizon_months = excluded.horizon_months,
			active = excluded.active
	`
	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.Name, b.Currency,
		b.OpeningBalance.String(), b.CurrentBalance.String(),
		b.YieldRate.String(), b.LoanRate.String(),
		b.MonthlyContribution.String(), b.HorizonMonths,
		b.Active, b.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save bucket: %w", err)
	}
	return nil
}

// GetBucket retrieves a bucket by ID; nil when absent.
func (s *Store) GetBucket(ctx context.Context, id ledger.BucketID) (*ledger.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, currency, opening_balance, current_balance, yield_rate, loan_rate,
		       monthly_contribution, horizon_months, active, created_at
		FROM buckets WHERE id = ?
	`, id)

	b, err := scanBucket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBuckets returns all buckets ordered by creation time.
func (s *Store) ListBuckets(ctx context.Context) ([]ledger.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, currency, opening_balance, current_balance, yield_rate, loan_rate,
		       monthly_contribution, horizon_months, active, created_at
		FROM buckets ORDER BY created_at ASC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query buckets: %w", err)
	}
	defer rows.Close()

	var buckets []ledger.Bucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, *b)
	}
	return buckets, rows.Err()
}

// UpdateBucketBalance writes a new cached current balance.
func (s *Store) UpdateBucketBalance(ctx context.Context, id ledger.BucketID, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE buckets SET current_balance = ? WHERE id = ?",
		balance.String(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update bucket balance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Resource: "bucket", ID: string(id)}
	}
	return nil
}

// DeleteBucket removes a bucket record. Its entries are the engine's
// responsibility to delete first.
func (s *Store) DeleteBucket(ctx context.Context, id ledger.BucketID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM buckets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete bucket: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Resource: "bucket", ID: string(id)}
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBucket(row scannable) (*ledger.Bucket, error) {
	var (
		b            ledger.Bucket
		opening      string
		current      string
		yieldRate    string
		loanRate     string
		contribution string
		createdAt    string
	)
	err := row.Scan(
		&b.ID, &b.Name, &b.Currency, &opening, &current, &yieldRate, &loanRate,
		&contribution, &b.HorizonMonths, &b.Active, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	b.OpeningBalance = mustDecimal(opening)
	b.CurrentBalance = mustDecimal(current)
	b.YieldRate = mustDecimal(yieldRate)
	b.LoanRate = mustDecimal(loanRate)
	b.MonthlyContribution = mustDecimal(contribution)
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &b, nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"entries", "buckets"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
