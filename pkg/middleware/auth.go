package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/terrierbot/registrar/pkg/observability"
	"github.com/terrierbot/registrar/pkg/users"
)

// LicenseResolver resolves a license key to its owning username.
// Implemented by users.PostgresService.
type LicenseResolver interface {
	LookupByLicenseKey(key string) (string, error)
}

// LicenseAuthMiddleware authenticates requests by license key.
// Clients send "Authorization: Bearer <license-key>".
type LicenseAuthMiddleware struct {
	resolver LicenseResolver
	optional bool // If true, allow requests without auth
}

// NewLicenseAuthMiddleware creates a new license-key authentication middleware
func NewLicenseAuthMiddleware(resolver LicenseResolver, optional bool) *LicenseAuthMiddleware {
	return &LicenseAuthMiddleware{
		resolver: resolver,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with license-key authentication
func (m *LicenseAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			m.unauthorizedResponse(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.unauthorizedResponse(w, "invalid authorization header format")
			return
		}

		username, err := m.resolver.LookupByLicenseKey(parts[1])
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				m.unauthorizedResponse(w, "unknown license key")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"license lookup failed"}`))
			return
		}

		ctx := observability.WithUsername(r.Context(), username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *LicenseAuthMiddleware) unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// AuthenticatedUsername extracts the authenticated username from a request.
// Returns the empty string when the request did not authenticate.
func AuthenticatedUsername(r *http.Request) string {
	return observability.GetUsername(r.Context())
}
