package api

import (
	"github.com/terrierbot/registrar/pkg/entitlement"
	"github.com/terrierbot/registrar/pkg/purchases"
	"github.com/terrierbot/registrar/pkg/sessions"
)

// StartSessionRequest is the client's session start payload. When
// TargetCourses is empty the server falls back to the user's standing
// course selections.
type StartSessionRequest struct {
	TargetCourses []sessions.CourseTarget `json:"target_courses"`
	Device        sessions.DeviceMeta     `json:"device_meta"`
	IsPlanner     bool                    `json:"planner_session"`
	Timestamp     int64                   `json:"timestamp"`
}

// StartSessionResponse grants the client a session and tells it what
// service tier it runs at.
type StartSessionResponse struct {
	Username          string                 `json:"username"`
	Grant             entitlement.GrantLevel `json:"membership_level"`
	SessionID         int64                  `json:"session_id"`
	ResponseTimestamp int64                  `json:"response_timestamp"`
}

// StatusResponse acknowledges a client notification.
type StatusResponse struct {
	Username          string `json:"username"`
	Status            string `json:"status"`
	ResponseTimestamp int64  `json:"response_timestamp"`
}

// HeartbeatRequest keeps a session alive.
type HeartbeatRequest struct {
	SessionID int64 `json:"session_id"`
	Timestamp int64 `json:"timestamp"`
}

// StopSessionRequest reports a clean or crashed client shutdown along
// with optional run statistics.
type StopSessionRequest struct {
	SessionID    int64    `json:"session_id"`
	DidFinish    bool     `json:"did_finish"`
	Crashed      *bool    `json:"unknown_crash_occurred,omitempty"`
	Reason       string   `json:"reason"`
	AvgCycleTime *float64 `json:"avg_cycle_time,omitempty"`
	StdCycleTime *float64 `json:"std_cycle_time,omitempty"`
	AvgSleepTime *float64 `json:"avg_sleep_time,omitempty"`
	StdSleepTime *float64 `json:"std_sleep_time,omitempty"`
	Timestamp    int64    `json:"timestamp"`
}

// RegistrationRequest reports one course successfully registered by a
// session.
type RegistrationRequest struct {
	SessionID     int64  `json:"session_id"`
	CourseID      int64  `json:"course_id"`
	CourseSection string `json:"course_section"`
	Timestamp     int64  `json:"timestamp"`
}

// EntitlementResponse describes the caller's current service tier and
// credit balance.
type EntitlementResponse struct {
	Username      string                 `json:"username"`
	Grant         entitlement.GrantLevel `json:"membership_level"`
	Credits       int64                  `json:"current_credits"`
	DemoExpiredAt *int64                 `json:"demo_expired_at,omitempty"`
}

// CheckoutRequest opens a credit purchase.
type CheckoutRequest struct {
	Quantity int64 `json:"quantity"`
}

// CheckoutResponse carries the provider checkout the client should
// redirect to.
type CheckoutResponse struct {
	CheckoutID string `json:"checkout_id"`
	URL        string `json:"url"`
}

// TiersResponse lists the purchasable quantity tiers.
type TiersResponse struct {
	Tiers []purchases.TieredPrice `json:"tiers"`
}

// SelectionRequest adds or removes one standing course target.
type SelectionRequest struct {
	CourseID      int64  `json:"course_id"`
	CourseSection string `json:"course_section"`
}

// LicenseResetResponse carries a freshly rotated license key. This is
// the only place the key is ever returned in plain text.
type LicenseResetResponse struct {
	Username   string `json:"username"`
	LicenseKey string `json:"license_key"`
}
