// Package sessions implements the usage-session lifecycle: creation
// with a snapshotted grant level and course targets, heartbeat-driven
// liveness, registration accounting, and termination.
//
// # State machine
//
// A session moves through exactly one path:
//
//	Created(active) -> Heartbeating(active) -> Terminated(inactive)
//
// with heartbeat as a self-loop while active. Terminated is terminal;
// every later heartbeat, registration or termination attempt observes
// ErrNotAlive.
//
// # Coordination
//
// The store is the only shared mutable substrate. Races between a
// client shutdown and the reaper, or between two launches of the same
// user, are decided by conditional writes: the activity-flag flip is a
// conditional UPDATE whose affected-row count picks one winner, and
// the at-most-one-active invariant is a partial unique index on
// (username) WHERE is_active. No in-process locks are involved.
package sessions
