package credits

import (
	"database/sql"
	"fmt"
	"time"
)

// Ledger defines the interface for credit balance operations. Every
// method represents an applied financial change; store failures are
// propagated, never masked.
type Ledger interface {
	// DebitOne decrements the user's balance by one, floored at zero.
	DebitOne(username string) error
	// MarkDemoOver consumes the user's one-time demo trial. Calling it
	// again after the first consumption is a no-op.
	MarkDemoOver(username string) error
	// Credit increments the user's balance by quantity (> 0).
	Credit(username string, quantity int64) error
	// Balance returns the user's current credit balance.
	Balance(username string) (int64, error)
	// WithTx returns a Ledger that runs its statements on the given
	// transaction, so a caller can make a balance change atomic with
	// its own gating update.
	WithTx(tx *sql.Tx) Ledger
}

// store is the subset of database/sql shared by *sql.DB and *sql.Tx.
type store interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// PostgresLedger implements Ledger using PostgreSQL. All mutations are
// single conditional statements evaluated by the store, so concurrent
// debits for the same user converge without application-level locking.
type PostgresLedger struct {
	db store
}

// NewPostgresLedger creates a new PostgresLedger.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// WithTx returns a copy of the ledger bound to tx. The caller owns the
// transaction lifecycle; the copy must not outlive it.
func (l *PostgresLedger) WithTx(tx *sql.Tx) Ledger {
	return &PostgresLedger{db: tx}
}

// DebitOne atomically decrements the user's balance by one, never
// letting it go negative. The floor is computed by the store, not read
// back and rewritten.
func (l *PostgresLedger) DebitOne(username string) error {
	query := `UPDATE users SET current_credits = GREATEST(0, current_credits - 1) WHERE username = $1`
	res, err := l.db.Exec(query, username)
	if err != nil {
		return fmt.Errorf("failed to debit credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %q not found", username)
	}
	return nil
}

// MarkDemoOver stamps the demo trial as consumed. The WHERE guard makes
// redelivered calls no-ops; the first-set timestamp is never rewritten.
func (l *PostgresLedger) MarkDemoOver(username string) error {
	query := `UPDATE users SET demo_expired_at = $1 WHERE username = $2 AND demo_expired_at IS NULL`
	if _, err := l.db.Exec(query, time.Now().Unix(), username); err != nil {
		return fmt.Errorf("failed to mark demo over: %w", err)
	}
	return nil
}

// Credit atomically adds quantity credits to the user's balance.
func (l *PostgresLedger) Credit(username string, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("credit quantity must be positive, got %d", quantity)
	}
	query := `UPDATE users SET current_credits = current_credits + $1 WHERE username = $2`
	res, err := l.db.Exec(query, quantity, username)
	if err != nil {
		return fmt.Errorf("failed to credit %d to %q: %w", quantity, username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %q not found", username)
	}
	return nil
}

// Balance returns the user's current credit balance.
func (l *PostgresLedger) Balance(username string) (int64, error) {
	var balance int64
	err := l.db.QueryRow(`SELECT current_credits FROM users WHERE username = $1`, username).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("user %q not found", username)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}
