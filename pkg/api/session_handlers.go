package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/terrierbot/registrar/pkg/entitlement"
	"github.com/terrierbot/registrar/pkg/httputil"
	"github.com/terrierbot/registrar/pkg/middleware"
	"github.com/terrierbot/registrar/pkg/observability"
	"github.com/terrierbot/registrar/pkg/sessions"
	"github.com/terrierbot/registrar/pkg/users"
)

// startSession handles POST /v1/sessions
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	username := middleware.AuthenticatedUsername(r)

	var req StartSessionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.users.GetUser(username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			httputil.WriteUnauthorized(w, "unknown user")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	grant := entitlement.Compute(user.CurrentCredits, user.DemoExpiredAt)
	if s.metrics != nil {
		s.metrics.GrantsEvaluatedTotal.WithLabelValues(string(grant)).Inc()
	}

	// The server, not the client, decides what address the session
	// came from.
	ip := clientIP(r)
	req.Device.IP = &ip

	targets := req.TargetCourses
	if len(targets) == 0 {
		selections, err := s.catalog.ListSelections(username)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		for _, sel := range selections {
			targets = append(targets, sessions.CourseTarget{
				CourseID: sel.CourseID,
				Section:  sel.Section,
			})
		}
	}

	sessionID, err := s.registry.Create(username, grant, req.Device, req.IsPlanner, targets)
	if err != nil {
		var conflict *sessions.ConflictError
		if errors.As(err, &conflict) {
			if s.metrics != nil {
				s.metrics.SessionConflictsTotal.Inc()
			}
			message := fmt.Sprintf("You already have an active session running on your %s device", conflict.Device.OS)
			if conflict.Device.IP != nil {
				message += fmt.Sprintf(" with ip %s", *conflict.Device.IP)
			}
			message += ". If you believe this is an error, please wait a few seconds and try again."
			httputil.WriteConflict(w, message)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.SessionsStartedTotal.Inc()
		s.metrics.ActiveSessions.Inc()
	}

	logger := observability.FromContext(r.Context())
	logger.WithFields(map[string]interface{}{
		"username":   username,
		"session_id": sessionID,
		"grant":      string(grant),
		"planner":    req.IsPlanner,
	}).Info("session started")

	httputil.WriteSuccess(w, StartSessionResponse{
		Username:          username,
		Grant:             grant,
		SessionID:         sessionID,
		ResponseTimestamp: time.Now().Unix(),
	})
}

// heartbeat handles POST /v1/sessions/heartbeat
func (s *Server) heartbeat(w http.ResponseWriter, r *http.Request) {
	username := middleware.AuthenticatedUsername(r)

	var req HeartbeatRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.registry.Heartbeat(req.SessionID, req.Timestamp); err != nil {
		if errors.Is(err, sessions.ErrNotAlive) {
			httputil.WriteBadRequest(w, "invalid session id")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.HeartbeatsTotal.Inc()
	}

	httputil.WriteSuccess(w, StatusResponse{
		Username:          username,
		Status:            "OK",
		ResponseTimestamp: time.Now().Unix(),
	})
}

// courseRegistered handles POST /v1/sessions/registrations
func (s *Server) courseRegistered(w http.ResponseWriter, r *http.Request) {
	username := middleware.AuthenticatedUsername(r)

	var req RegistrationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	stamped, debited, err := s.registry.MarkRegistered(username, req.SessionID, req.Timestamp, req.CourseID, req.CourseSection)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrNotAlive):
			httputil.WriteBadRequest(w, "invalid session id")
		case errors.Is(err, sessions.ErrUnknownCourse):
			httputil.WriteBadRequest(w, "course is not a target of this session")
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	outcome := "registered"
	if !stamped {
		// Redelivered notification; already stamped, nothing debited.
		outcome = "redelivered"
	}
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
		// Planner stamps and redeliveries never reach the debit path.
		if debited {
			s.metrics.CreditsDebitedTotal.Inc()
		}
	}

	logger := observability.FromContext(r.Context())
	logger.WithFields(map[string]interface{}{
		"username":   username,
		"session_id": req.SessionID,
		"course_id":  req.CourseID,
		"section":    req.CourseSection,
		"outcome":    outcome,
	}).Info("registration reported")

	httputil.WriteSuccess(w, StatusResponse{
		Username:          username,
		Status:            "OK",
		ResponseTimestamp: time.Now().Unix(),
	})
}

// stopSession handles POST /v1/sessions/stop
func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	username := middleware.AuthenticatedUsername(r)

	var req StopSessionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	crashed := false
	if req.Crashed != nil {
		crashed = *req.Crashed
	}

	rec := sessions.TerminationRecord{
		DidFinish:    req.DidFinish,
		Crashed:      crashed,
		Reason:       req.Reason,
		AvgCycleTime: req.AvgCycleTime,
		StdCycleTime: req.StdCycleTime,
		AvgSleepTime: req.AvgSleepTime,
		StdSleepTime: req.StdSleepTime,
		Timestamp:    req.Timestamp,
	}

	if err := s.registry.Terminate(req.SessionID, rec); err != nil {
		if errors.Is(err, sessions.ErrNotAlive) {
			httputil.WriteBadRequest(w, "invalid session id")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.SessionsTerminatedTotal.WithLabelValues("client").Inc()
		s.metrics.ActiveSessions.Dec()
	}

	logger := observability.FromContext(r.Context())
	logger.WithFields(map[string]interface{}{
		"username":   username,
		"session_id": req.SessionID,
		"did_finish": req.DidFinish,
		"reason":     req.Reason,
	}).Info("session stopped")

	httputil.WriteSuccess(w, StatusResponse{
		Username:          username,
		Status:            "OK",
		ResponseTimestamp: time.Now().Unix(),
	})
}
