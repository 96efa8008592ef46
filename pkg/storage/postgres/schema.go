package postgres

import (
	"database/sql"
	"fmt"
)

// Timestamps are unix seconds throughout; the wire format uses the
// same representation, so nothing converts at the boundary.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		given_name TEXT NOT NULL,
		family_name TEXT NOT NULL,
		profile_image_url TEXT NOT NULL DEFAULT '',
		license_key TEXT NOT NULL UNIQUE,
		customer_ref TEXT NOT NULL,
		current_credits BIGINT NOT NULL DEFAULT 0 CHECK (current_credits >= 0),
		demo_expired_at BIGINT,
		registered_at BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		session_id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL REFERENCES users (username),
		device_ip TEXT,
		device_name TEXT,
		device_os TEXT NOT NULL DEFAULT '',
		system_arch TEXT NOT NULL DEFAULT '',
		device_cores SMALLINT NOT NULL DEFAULT 0,
		device_clock_speed DOUBLE PRECISION NOT NULL DEFAULT 0,
		grant_level TEXT NOT NULL,
		planner_session BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		launched_at BIGINT NOT NULL,
		last_heartbeat BIGINT NOT NULL
	)`,

	// The partial unique index is what enforces at most one active
	// session per user; session creation relies on the 23505 it raises.
	`CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_active_per_user
		ON sessions (username) WHERE is_active`,

	`CREATE INDEX IF NOT EXISTS sessions_active_heartbeat
		ON sessions (last_heartbeat) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS session_courses (
		session_id BIGINT NOT NULL REFERENCES sessions (session_id),
		course_id BIGINT NOT NULL,
		course_section TEXT NOT NULL,
		registered_at BIGINT,
		PRIMARY KEY (session_id, course_id, course_section)
	)`,

	`CREATE TABLE IF NOT EXISTS session_terminations (
		session_id BIGINT PRIMARY KEY REFERENCES sessions (session_id),
		did_finish BOOLEAN NOT NULL,
		unknown_crash BOOLEAN NOT NULL,
		reason TEXT NOT NULL,
		avg_cycle_time DOUBLE PRECISION,
		cycle_time_std DOUBLE PRECISION,
		avg_sleep_time DOUBLE PRECISION,
		sleep_time_std DOUBLE PRECISION,
		terminated_at BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS purchase_sessions (
		checkout_id TEXT PRIMARY KEY,
		username TEXT NOT NULL REFERENCES users (username),
		quantity BIGINT NOT NULL CHECK (quantity > 0),
		subtotal DOUBLE PRECISION NOT NULL,
		total DOUBLE PRECISION,
		coupon TEXT,
		succeeded BOOLEAN NOT NULL DEFAULT FALSE,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		opened_at BIGINT NOT NULL,
		closed_at BIGINT
	)`,

	`CREATE TABLE IF NOT EXISTS course_catalog (
		course_id BIGSERIAL PRIMARY KEY,
		semester_season TEXT NOT NULL,
		semester_year SMALLINT NOT NULL,
		college TEXT NOT NULL,
		department TEXT NOT NULL,
		course_code TEXT NOT NULL,
		title TEXT,
		credits SMALLINT,
		UNIQUE (semester_season, semester_year, college, department, course_code)
	)`,

	`CREATE TABLE IF NOT EXISTS course_sections (
		course_id BIGINT NOT NULL REFERENCES course_catalog (course_id),
		course_section TEXT NOT NULL,
		open_seats INTEGER,
		instructor TEXT,
		location TEXT,
		schedule TEXT,
		PRIMARY KEY (course_id, course_section)
	)`,

	`CREATE TABLE IF NOT EXISTS user_course_selections (
		username TEXT NOT NULL REFERENCES users (username),
		course_id BIGINT NOT NULL,
		course_section TEXT NOT NULL,
		PRIMARY KEY (username, course_id, course_section)
	)`,
}

// Bootstrap creates the schema if it does not exist. Every statement is
// idempotent, so running it on every startup is safe.
func Bootstrap(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to bootstrap schema: %w", err)
		}
	}
	return nil
}
