package sessions

import (
	"errors"
	"fmt"

	"github.com/terrierbot/registrar/pkg/entitlement"
)

// ErrNotAlive is returned when an operation targets a session that is
// absent or already terminated. It is a client-visible rejection, not
// an internal failure.
var ErrNotAlive = errors.New("session not found or no longer alive")

// ErrUnknownCourse is returned when a registration notification names a
// (course, section) pair that was not part of the session's snapshot.
var ErrUnknownCourse = errors.New("course is not part of this session")

// ConflictError is returned by Create when the user already has an
// active session. It carries the device descriptor of the running
// session so the caller can surface a helpful message.
type ConflictError struct {
	Device DeviceMeta
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("an active session already exists on %s", e.Device.OS)
}

// DeviceMeta describes the machine a session runs on. IP is filled in
// by the server from the connection; clients do not send it.
type DeviceMeta struct {
	Name          *string `json:"name,omitempty"`
	OS            string  `json:"os"`
	Arch          string  `json:"system_arch"`
	Cores         int16   `json:"core_count"`
	ClockSpeedGHz float64 `json:"cpu_speed"`
	IP            *string `json:"ip,omitempty"`
}

// Session is one launch of the client application. The grant level is
// snapshotted at creation and not re-evaluated mid-session. At most one
// session per user may be active at any instant.
type Session struct {
	ID            int64                  `json:"session_id"`
	Username      string                 `json:"username"`
	Device        DeviceMeta             `json:"device"`
	Grant         entitlement.GrantLevel `json:"grant"`
	IsPlanner     bool                   `json:"planner_session"`
	IsActive      bool                   `json:"is_active"`
	LaunchedAt    int64                  `json:"launched_at"`
	LastHeartbeat int64                  `json:"last_heartbeat"`
}

// CourseTarget identifies one (course, section) pair a session is
// trying to register. Targets are snapshotted into session rows at
// creation time.
type CourseTarget struct {
	CourseID int64  `json:"course_id"`
	Section  string `json:"course_section"`
}

// TerminationRecord captures how a session ended. Exactly one record is
// written per session, by either the client's shutdown call or the
// liveness reaper.
type TerminationRecord struct {
	DidFinish    bool     `json:"did_finish"`
	Crashed      bool     `json:"unknown_crash_occurred"`
	Reason       string   `json:"reason"`
	AvgCycleTime *float64 `json:"avg_cycle_time,omitempty"`
	StdCycleTime *float64 `json:"std_cycle_time,omitempty"`
	AvgSleepTime *float64 `json:"avg_sleep_time,omitempty"`
	StdSleepTime *float64 `json:"std_sleep_time,omitempty"`
	Timestamp    int64    `json:"timestamp"`
}

// Registry defines the session lifecycle operations.
type Registry interface {
	// HasActiveSession returns the device descriptor of the user's
	// active session, or nil when none exists.
	HasActiveSession(username string) (*DeviceMeta, error)
	// Create inserts a new active session and snapshots its course
	// targets. Returns *ConflictError when the user already has an
	// active session.
	Create(username string, grant entitlement.GrantLevel, device DeviceMeta, isPlanner bool, targets []CourseTarget) (int64, error)
	// Heartbeat advances the session's liveness timestamp. A heartbeat
	// older than the stored one cannot regress it.
	Heartbeat(sessionID, timestamp int64) error
	// Terminate flips the session inactive and writes its termination
	// record. Safe to race; the conditional activity-flag update picks
	// exactly one winner.
	Terminate(sessionID int64, rec TerminationRecord) error
	// MarkRegistered stamps one course target as registered and, for
	// non-planner sessions, debits a credit and consumes the demo
	// trial. Returns whether the stamp landed and whether a credit was
	// debited; a stamped=false result means the target was already
	// stamped (redelivery no-op).
	MarkRegistered(username string, sessionID, timestamp int64, courseID int64, section string) (stamped, debited bool, err error)
	// ListStale returns ids of active sessions whose last heartbeat is
	// older than the given cutoff.
	ListStale(heartbeatBefore int64) ([]int64, error)
}
