// Package middleware provides HTTP middleware for authentication, request
// tracing, and rate limiting.
//
// # Overview
//
// This package implements request processing middleware including license-key
// authentication, request ID propagation, and rate limiting (per-user and
// distributed).
//
// # Middleware Components
//
// LicenseAuthMiddleware: License-key authentication
//
//	m := middleware.NewLicenseAuthMiddleware(userService, false)
//	router.Use(m.Handler)
//	// Extracts Bearer license key, resolves the owning username,
//	// and attaches it to the request context
//
// RequestIDMiddleware: Request ID propagation
//
//	router.Use(middleware.RequestIDMiddleware)
//
// RateLimitMiddleware: In-memory rate limiting
//
//	m := middleware.NewRateLimitMiddleware()
//	router.Use(m.Handler)
//
// DistributedRateLimitMiddleware: Redis-backed rate limiting
//
//	m := middleware.NewDistributedRateLimitMiddleware(redisClient)
//	router.Use(m.Handler)
//
// # Rate Limiting
//
// Default (Anonymous): 100 req/min, 10 burst
// Per-User: 600 req/min, 60 burst (sessions heartbeat continuously)
//
// # Related Packages
//
//   - pkg/users: License key resolution
//   - pkg/observability: Context propagation for logging
package middleware
