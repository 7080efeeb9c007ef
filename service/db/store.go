package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/brojonat/dualtx/service/ledger"
	"github.com/brojonat/dualtx/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the store translates into ledger errors.
const (
	pgUniqueViolation   = "23505"
	pgNumericOutOfRange = "22003"
)

var (
	// ErrOwnerMismatch is returned when the configured owner differs from
	// the owner pinned in the database.
	ErrOwnerMismatch = errors.New("ledger owner does not match the pinned owner")

	// ErrStaleSnapshot is returned when another process committed to the same
	// history slot after this process loaded its snapshot.
	ErrStaleSnapshot = errors.New("history position already taken, reload the ledger")
)

// Store persists the ledger in Postgres. It implements ledger.Journal so an
// AccountRegistry can write ahead to it before mutating memory.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

var _ ledger.Journal = (*Store)(nil)

// NewStore creates a new Store with the given database connection pool.
// m may be nil.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

func (s *Store) observe(operation, table string, start time.Time, err error) {
	s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), err)
}

// EnsureOwner pins owner as the ledger owner on first use and verifies it on
// every later run.
func (s *Store) EnsureOwner(ctx context.Context, owner string) (err error) {
	defer func(start time.Time) { s.observe("ensure_owner", "ledger_owner", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx,
		`INSERT INTO ledger_owner (id, owner) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		owner)
	if err != nil {
		return fmt.Errorf("failed to pin ledger owner: %w", err)
	}

	var pinned string
	if err = s.pool.QueryRow(ctx, `SELECT owner FROM ledger_owner WHERE id = 1`).Scan(&pinned); err != nil {
		return fmt.Errorf("failed to read ledger owner: %w", err)
	}
	if pinned != owner {
		return fmt.Errorf("%w: pinned %s, configured %s", ErrOwnerMismatch, pinned, owner)
	}
	return nil
}

// LoadSnapshot reads every account and its history, ordered by account ID
// and history position.
func (s *Store) LoadSnapshot(ctx context.Context) (snap ledger.Snapshot, err error) {
	defer func(start time.Time) { s.observe("load_snapshot", "accounts", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx,
		`SELECT id, has_purity_badge, balance FROM accounts ORDER BY id`)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("failed to query accounts: %w", err)
	}

	index := make(map[string]int)
	for rows.Next() {
		var (
			acct    ledger.Account
			balance int64
		)
		if err = rows.Scan(&acct.ID, &acct.HasPurityBadge, &balance); err != nil {
			rows.Close()
			return ledger.Snapshot{}, fmt.Errorf("failed to scan account: %w", err)
		}
		acct.Balance = uint64(balance)
		acct.Transactions = []ledger.Transaction{}
		index[acct.ID] = len(snap.Accounts)
		snap.Accounts = append(snap.Accounts, acct)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("failed to read accounts: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT account_id, seq, to_account, amount, kind, is_cross_chain, memo, submitted_by, recorded_at
		FROM transactions
		ORDER BY account_id, seq`)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			txn    ledger.Transaction
			seq    int32
			amount int64
			kind   string
		)
		if err = rows.Scan(&txn.From, &seq, &txn.To, &amount, &kind, &txn.IsCrossChain,
			&txn.Memo, &txn.SubmittedBy, &txn.RecordedAt); err != nil {
			return ledger.Snapshot{}, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Amount = uint64(amount)
		txn.Kind = ledger.Kind(kind)
		txn.RecordedAt = txn.RecordedAt.UTC()

		i, ok := index[txn.From]
		if !ok {
			return ledger.Snapshot{}, fmt.Errorf("transaction %s/%d has no account row", txn.From, seq)
		}
		acct := &snap.Accounts[i]
		if int(seq) != len(acct.Transactions) {
			return ledger.Snapshot{}, fmt.Errorf("history of %s has a gap at position %d", txn.From, len(acct.Transactions))
		}
		acct.Transactions = append(acct.Transactions, txn)
	}
	if err = rows.Err(); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("failed to read transactions: %w", err)
	}

	if snap.Accounts == nil {
		snap.Accounts = []ledger.Account{}
	}
	return snap, nil
}

// RecordBadge upserts the purity badge of account.
func (s *Store) RecordBadge(ctx context.Context, account string, status bool) (err error) {
	defer func(start time.Time) { s.observe("record_badge", "accounts", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, `
		INSERT INTO accounts (id, has_purity_badge) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET has_purity_badge = EXCLUDED.has_purity_badge, updated_at = NOW()`,
		account, status)
	return err
}

// RecordProvision adds amount to the balance of account, creating it if needed.
func (s *Store) RecordProvision(ctx context.Context, account string, amount uint64) (err error) {
	defer func(start time.Time) { s.observe("record_provision", "accounts", start, err) }(time.Now())

	if amount > math.MaxInt64 {
		return ledger.ErrBalanceOverflow
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO accounts (id, balance) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
		account, int64(amount))
	if pgCode(err) == pgNumericOutOfRange {
		return ledger.ErrBalanceOverflow
	}
	return err
}

// RecordTransaction debits the sender and appends txn at position index in
// one database transaction. The debit only applies while the sender still
// holds a badge and enough balance, so concurrent processes sharing the
// database cannot overdraw an account.
func (s *Store) RecordTransaction(ctx context.Context, index int, txn ledger.Transaction) (err error) {
	defer func(start time.Time) { s.observe("record_transaction", "transactions", start, err) }(time.Now())

	if txn.Amount > math.MaxInt64 {
		return ledger.ErrInsufficientFunds
	}
	if index < 0 || index > math.MaxInt32 {
		return fmt.Errorf("history position %d out of range", index)
	}
	amount := int64(txn.Amount)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND has_purity_badge AND balance >= $2`,
		txn.From, amount)
	if err != nil {
		return fmt.Errorf("failed to debit %s: %w", txn.From, err)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyRejectedDebit(ctx, tx, txn.From)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions
			(account_id, seq, to_account, amount, kind, is_cross_chain, memo, submitted_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		txn.From, int32(index), txn.To, amount, string(txn.Kind), txn.IsCrossChain,
		txn.Memo, txn.SubmittedBy, txn.RecordedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return ErrStaleSnapshot
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// classifyRejectedDebit explains why the conditional debit matched no row.
func (s *Store) classifyRejectedDebit(ctx context.Context, tx pgx.Tx, account string) error {
	var badge bool
	err := tx.QueryRow(ctx,
		`SELECT has_purity_badge FROM accounts WHERE id = $1`, account).Scan(&badge)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("failed to read account %s: %w", account, err)
	}
	if !badge {
		return ledger.ErrUnauthorized
	}
	return ledger.ErrInsufficientFunds
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
