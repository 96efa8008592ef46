package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/terrierbot/registrar/pkg/observability"
)

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("generates an ID when none supplied", func(t *testing.T) {
		var gotID string
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID = observability.GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if gotID == "" {
			t.Error("expected request ID in context")
		}
		if rec.Header().Get(RequestIDHeader) != gotID {
			t.Error("response header should carry the same request ID")
		}
	})

	t.Run("honors a client-supplied ID", func(t *testing.T) {
		var gotID string
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID = observability.GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "client-id-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if gotID != "client-id-123" {
			t.Errorf("request ID = %q, want client-id-123", gotID)
		}
		if rec.Header().Get(RequestIDHeader) != "client-id-123" {
			t.Error("response header should echo the client ID")
		}
	})
}
