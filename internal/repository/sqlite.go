package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/vanshika/paybridge/internal/domain"
)

// SQLiteStore persists transactions in an embedded SQLite database. Updates
// run in BEGIN IMMEDIATE transactions, which take the database write lock
// before the row is read.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS payment_transactions (
	transaction_id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	amount TEXT NOT NULL,
	currency TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	last_notification_at TEXT,
	notification_count INTEGER NOT NULL DEFAULT 0,
	last_reported_status TEXT NOT NULL DEFAULT '',
	claim_unlocked INTEGER NOT NULL DEFAULT 0,
	CHECK (state IN ('PENDING', 'SUCCEEDED', 'FAILED')),
	CHECK (claim_unlocked = (state = 'SUCCEEDED'))
);
`

const selectTransactionSQL = `
SELECT transaction_id, state, amount, currency, created_at, updated_at,
	last_notification_at, notification_count, last_reported_status, claim_unlocked
FROM payment_transactions WHERE transaction_id = ?
`

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string, busyTimeout time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	inMemory := path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_txlock=immediate", path, busyTimeout.Milliseconds())
	if !inMemory {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if inMemory {
		// Every connection to :memory: is a distinct database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, tx domain.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_transactions (transaction_id, state, amount, currency, created_at, updated_at,
			last_notification_at, notification_count, last_reported_status, claim_unlocked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, string(tx.State), tx.Amount.String(), tx.Currency, formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt),
		nullableTime(tx.LastNotificationAt), tx.NotificationCount, string(tx.LastReportedStatus), tx.ClaimUnlocked)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return fmt.Errorf("create transaction %s: %w", tx.ID, domain.ErrTransactionExists)
		}
		return fmt.Errorf("create transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, selectTransactionSQL, id))
	if err != nil {
		return domain.Transaction{}, wrapScanErr(id, err)
	}
	return tx, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, fn UpdateFunc) (domain.Transaction, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("begin update %s: %w", id, err)
	}
	defer sqlTx.Rollback()

	current, err := scanTransaction(sqlTx.QueryRowContext(ctx, selectTransactionSQL, id))
	if err != nil {
		return domain.Transaction{}, wrapScanErr(id, err)
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		return domain.Transaction{}, err
	}
	preserveImmutable(&next, current)

	_, err = sqlTx.ExecContext(ctx, `
		UPDATE payment_transactions
		SET state = ?, updated_at = ?, last_notification_at = ?, notification_count = ?,
			last_reported_status = ?, claim_unlocked = ?
		WHERE transaction_id = ?
	`, string(next.State), formatTime(next.UpdatedAt), nullableTime(next.LastNotificationAt),
		next.NotificationCount, string(next.LastReportedStatus), next.ClaimUnlocked, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}

	if err := sqlTx.Commit(); err != nil {
		return domain.Transaction{}, fmt.Errorf("commit update %s: %w", id, err)
	}
	return next, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		tx                      domain.Transaction
		state, amount, reported string
		createdAt, updatedAt    string
		lastNotification        sql.NullString
	)
	err := row.Scan(&tx.ID, &state, &amount, &tx.Currency, &createdAt, &updatedAt,
		&lastNotification, &tx.NotificationCount, &reported, &tx.ClaimUnlocked)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx.State = domain.State(state)
	tx.LastReportedStatus = domain.ReportedStatus(reported)
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Transaction{}, fmt.Errorf("decode amount: %w", err)
	}
	if tx.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return domain.Transaction{}, fmt.Errorf("decode created_at: %w", err)
	}
	if tx.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return domain.Transaction{}, fmt.Errorf("decode updated_at: %w", err)
	}
	tx.LastNotificationAt = toTimePtr(lastNotification.String)
	return tx, nil
}

func wrapScanErr(id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrUnknownTransaction
	}
	return fmt.Errorf("load transaction %s: %w", id, err)
}

func nullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}
