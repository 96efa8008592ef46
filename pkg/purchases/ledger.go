package purchases

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/terrierbot/registrar/pkg/credits"
)

// PostgresLedger implements Ledger using PostgreSQL. The processed flag
// is the idempotence gate: payment providers redeliver webhooks, so the
// close is a conditional update whose affected row decides whether the
// credit runs at all.
type PostgresLedger struct {
	db      *sql.DB
	credits credits.Ledger
}

// NewPostgresLedger creates a new PostgresLedger.
func NewPostgresLedger(db *sql.DB, ledger credits.Ledger) *PostgresLedger {
	return &PostgresLedger{db: db, credits: ledger}
}

// Open inserts a new open purchase session for a started checkout.
func (l *PostgresLedger) Open(username string, quantity int64, subtotal float64, checkoutID string) error {
	query := `
		INSERT INTO purchase_sessions
			(checkout_id, username, quantity, subtotal, succeeded, processed, opened_at)
		VALUES ($1, $2, $3, $4, FALSE, FALSE, $5)
	`
	_, err := l.db.Exec(query, checkoutID, username, quantity, subtotal, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to open purchase session: %w", err)
	}
	return nil
}

// Close records the terminal outcome for a checkout. The update only
// matches while processed is still false, so of N redelivered callbacks
// exactly one reaches the credit path; the rest report (false, 0, nil).
// The gate flip and the credit commit together: a failed credit rolls
// the gate back so the provider's retry can land the purchase.
func (l *PostgresLedger) Close(checkoutID string, succeeded bool, total *float64, coupon *string) (bool, int64, error) {
	tx, err := l.db.Begin()
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE purchase_sessions
		SET processed = TRUE, succeeded = $2, total = $3, coupon = $4, closed_at = $5
		WHERE checkout_id = $1 AND processed = FALSE
		RETURNING username, quantity
	`
	var username string
	var quantity int64
	err = tx.QueryRow(query, checkoutID, succeeded, total, coupon, time.Now().Unix()).
		Scan(&username, &quantity)
	if err == sql.ErrNoRows {
		var processed bool
		err := tx.QueryRow(`SELECT processed FROM purchase_sessions WHERE checkout_id = $1`, checkoutID).
			Scan(&processed)
		if err == sql.ErrNoRows {
			return false, 0, ErrUnknownCheckout
		}
		if err != nil {
			return false, 0, fmt.Errorf("failed to check purchase session: %w", err)
		}
		// Already closed by an earlier delivery.
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to close purchase session: %w", err)
	}

	if !succeeded {
		if err := tx.Commit(); err != nil {
			return false, 0, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return true, 0, nil
	}

	txCredits := l.credits.WithTx(tx)
	if err := txCredits.Credit(username, quantity); err != nil {
		return false, 0, err
	}
	// A paying user has no further use for the demo trial.
	if err := txCredits.MarkDemoOver(username); err != nil {
		return false, 0, err
	}
	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, quantity, nil
}

// ExpireAbandoned force-closes, as failed, open purchase sessions
// started before the cutoff. Abandoned checkouts never credit anyone.
func (l *PostgresLedger) ExpireAbandoned(openedBefore int64) (int64, error) {
	query := `
		UPDATE purchase_sessions
		SET processed = TRUE, succeeded = FALSE, closed_at = $2
		WHERE processed = FALSE AND opened_at < $1
	`
	res, err := l.db.Exec(query, openedBefore, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to expire abandoned purchase sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
