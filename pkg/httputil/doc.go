// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// parameter parsing, validation, and common HTTP middleware patterns.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, data)
//
// Error responses:
//
//	httputil.WriteError(w, http.StatusBadRequest, err)
//	httputil.WriteBadRequest(w, "invalid session id")
//	httputil.WriteUnauthorized(w, "unknown license key")
//	httputil.WriteConflict(w, "session already running")
//
// # Request Parsing
//
// JSON parsing:
//
//	var req StartSessionRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Query parameters:
//
//	year := httputil.ParseQueryInt(r, "semester_year", 0)
//	season := httputil.ParseQueryString(r, "semester_season", "")
//
// # Validation
//
//	if !httputil.RequireNonEmpty(w, req.CourseSection, "course_section") {
//		return
//	}
//	if !httputil.RequirePositive(w, req.Quantity, "quantity") {
//		return
//	}
//
// # Middleware
//
//	router.Use(
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication, request IDs and rate limiting
package httputil
