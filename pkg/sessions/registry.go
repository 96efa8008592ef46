package sessions

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/terrierbot/registrar/pkg/credits"
	"github.com/terrierbot/registrar/pkg/entitlement"
)

// uniqueViolation is the postgres error code raised when the partial
// unique index on (username) WHERE is_active rejects a second
// concurrent session.
const uniqueViolation = "23505"

// PostgresRegistry implements Registry using PostgreSQL. All
// cross-request coordination is expressed as conditional writes; the
// registry holds no in-process session state.
type PostgresRegistry struct {
	db      *sql.DB
	credits credits.Ledger
}

// NewPostgresRegistry creates a new PostgresRegistry.
func NewPostgresRegistry(db *sql.DB, ledger credits.Ledger) *PostgresRegistry {
	return &PostgresRegistry{db: db, credits: ledger}
}

// HasActiveSession returns the device descriptor of the user's active
// session, or nil when none exists.
func (r *PostgresRegistry) HasActiveSession(username string) (*DeviceMeta, error) {
	query := `
		SELECT device_name, device_os, system_arch, device_cores, device_clock_speed, device_ip
		FROM sessions
		WHERE username = $1 AND is_active
		LIMIT 1
	`
	d := &DeviceMeta{}
	err := r.db.QueryRow(query, username).Scan(
		&d.Name, &d.OS, &d.Arch, &d.Cores, &d.ClockSpeedGHz, &d.IP,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up active session: %w", err)
	}
	return d, nil
}

// Create inserts a new active session and snapshots its course targets,
// all in one transaction. The single-active-session invariant is
// enforced by the store's partial unique index rather than by the
// caller's earlier HasActiveSession check, so two near-simultaneous
// launches cannot both win.
func (r *PostgresRegistry) Create(username string, grant entitlement.GrantLevel, device DeviceMeta, isPlanner bool, targets []CourseTarget) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sessions
			(username, device_ip, device_name, device_os, system_arch,
			 device_cores, device_clock_speed, grant_level, planner_session,
			 launched_at, last_heartbeat)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING session_id
	`
	now := time.Now().Unix()
	var sessionID int64
	err = tx.QueryRow(query, username, device.IP, device.Name, device.OS,
		device.Arch, device.Cores, device.ClockSpeedGHz, grant.String(),
		isPlanner, now).Scan(&sessionID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return 0, r.conflict(username)
		}
		return 0, fmt.Errorf("failed to create session: %w", err)
	}

	for _, target := range targets {
		_, err := tx.Exec(`
			INSERT INTO session_courses (session_id, course_id, course_section)
			VALUES ($1, $2, $3)
		`, sessionID, target.CourseID, target.Section)
		if err != nil {
			return 0, fmt.Errorf("failed to snapshot course target: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session: %w", err)
	}
	return sessionID, nil
}

// conflict builds the ConflictError for a losing launch. The winner's
// device descriptor may itself be gone by the time we read it (the
// winner could terminate immediately); fall back to an empty
// descriptor rather than fail the conflict report.
func (r *PostgresRegistry) conflict(username string) error {
	device, err := r.HasActiveSession(username)
	if err != nil || device == nil {
		return &ConflictError{}
	}
	return &ConflictError{Device: *device}
}

// Heartbeat advances the session's liveness timestamp. The GREATEST
// expression keeps an out-of-order heartbeat from regressing liveness;
// a heartbeat for a terminated or unknown session fails its WHERE
// precondition and reports ErrNotAlive.
func (r *PostgresRegistry) Heartbeat(sessionID, timestamp int64) error {
	query := `
		UPDATE sessions
		SET last_heartbeat = GREATEST(last_heartbeat, $2)
		WHERE session_id = $1 AND is_active
	`
	res, err := r.db.Exec(query, sessionID, timestamp)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotAlive
	}
	return nil
}

// Terminate flips the session inactive and writes exactly one
// termination record. The conditional update on the activity flag is
// the single source of truth: whichever caller (client shutdown or
// reaper) flips it first wins, the other observes ErrNotAlive.
func (r *PostgresRegistry) Terminate(sessionID int64, rec TerminationRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE sessions SET is_active = FALSE WHERE session_id = $1 AND is_active`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotAlive
	}

	_, err = tx.Exec(`
		INSERT INTO session_terminations
			(session_id, did_finish, unknown_crash, reason,
			 avg_cycle_time, cycle_time_std, avg_sleep_time, sleep_time_std,
			 terminated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sessionID, rec.DidFinish, rec.Crashed, rec.Reason,
		rec.AvgCycleTime, rec.StdCycleTime, rec.AvgSleepTime, rec.StdSleepTime,
		rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to write termination record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit termination: %w", err)
	}
	return nil
}

// MarkRegistered stamps one course target as registered. The stamp is a
// conditional update from NULL, so a redelivered notification for the
// same (session, course, section) can never re-run the debit path; it
// reports (false, false, nil) instead. Stamp and debit share one
// transaction: a failed debit rolls the stamp back so the retry can
// charge the registration.
func (r *PostgresRegistry) MarkRegistered(username string, sessionID, timestamp int64, courseID int64, section string) (bool, bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var isPlanner bool
	err = tx.QueryRow(`
		SELECT planner_session FROM sessions WHERE session_id = $1 AND is_active
	`, sessionID).Scan(&isPlanner)
	if err == sql.ErrNoRows {
		return false, false, ErrNotAlive
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to check session: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE session_courses
		SET registered_at = $1
		WHERE session_id = $2 AND course_id = $3 AND course_section = $4
		AND registered_at IS NULL
	`, timestamp, sessionID, courseID, section)
	if err != nil {
		return false, false, fmt.Errorf("failed to mark course registered: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		var already sql.NullInt64
		err := tx.QueryRow(`
			SELECT registered_at FROM session_courses
			WHERE session_id = $1 AND course_id = $2 AND course_section = $3
		`, sessionID, courseID, section).Scan(&already)
		if err == sql.ErrNoRows {
			return false, false, ErrUnknownCourse
		}
		if err != nil {
			return false, false, fmt.Errorf("failed to check course target: %w", err)
		}
		// Already stamped by an earlier delivery.
		return false, false, nil
	}

	// Planner sessions only preview availability; they never consume
	// credits or the demo trial.
	if isPlanner {
		if err := tx.Commit(); err != nil {
			return false, false, fmt.Errorf("failed to commit registration: %w", err)
		}
		return true, false, nil
	}

	txCredits := r.credits.WithTx(tx)
	if err := txCredits.DebitOne(username); err != nil {
		return false, false, err
	}
	// First-ever real registration consumes the demo trial. The
	// ledger's conditional update makes this a no-op for every
	// registration after the first.
	if err := txCredits.MarkDemoOver(username); err != nil {
		return false, false, err
	}
	if err := tx.Commit(); err != nil {
		return false, false, fmt.Errorf("failed to commit registration: %w", err)
	}
	return true, true, nil
}

// ListStale returns ids of active sessions whose last heartbeat is
// older than the cutoff.
func (r *PostgresRegistry) ListStale(heartbeatBefore int64) ([]int64, error) {
	rows, err := r.db.Query(`
		SELECT session_id FROM sessions
		WHERE is_active AND last_heartbeat < $1
	`, heartbeatBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale sessions: %w", err)
	}
	return ids, nil
}
