package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/terrierbot/registrar/pkg/entitlement"
	"github.com/terrierbot/registrar/pkg/httputil"
	"github.com/terrierbot/registrar/pkg/middleware"
	"github.com/terrierbot/registrar/pkg/observability"
	"github.com/terrierbot/registrar/pkg/purchases"
	"github.com/terrierbot/registrar/pkg/users"
)

// getEntitlement handles GET /v1/entitlement
func (s *Server) getEntitlement(w http.ResponseWriter, r *http.Request) {
	username := middleware.AuthenticatedUsername(r)

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

	httputil.WriteSuccess(w, EntitlementResponse{
		Username:      username,
		Grant:         grant,
		Credits:       user.CurrentCredits,
		DemoExpiredAt: user.DemoExpiredAt,
	})
}

// createCheckout handles POST /v1/checkout
func (s *Server) createCheckout(w http.ResponseWriter, r *http.Request) {
	username := middleware.AuthenticatedUsername(r)

	var req CheckoutRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequirePositive(w, req.Quantity, "quantity") {
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

	checkout, err := s.checkout.Start(username, user.CustomerRef, req.Quantity)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.CheckoutsOpenedTotal.Inc()
	}

	logger := observability.FromContext(r.Context())
	logger.WithFields(map[string]interface{}{
		"username":    username,
		"checkout_id": checkout.ID,
		"quantity":    req.Quantity,
	}).Info("checkout opened")

	httputil.WriteSuccess(w, CheckoutResponse{
		CheckoutID: checkout.ID,
		URL:        checkout.URL,
	})
}

// listTiers handles GET /v1/checkout/tiers
func (s *Server) listTiers(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, TiersResponse{Tiers: s.checkout.Tiers()})
}

// resetLicenseKey handles POST /v1/license/reset
func (s *Server) resetLicenseKey(w http.ResponseWriter, r *http.Request) {
	username := middleware.AuthenticatedUsername(r)

	key, err := s.users.ResetLicenseKey(username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			httputil.WriteUnauthorized(w, "unknown user")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	observability.FromContext(r.Context()).
		WithField("username", username).
		Info("license key rotated")

	httputil.WriteSuccess(w, LicenseResetResponse{
		Username:   username,
		LicenseKey: key,
	})
}

// billingWebhook handles POST /v1/billing/webhook
func (s *Server) billingWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read payload")
		return
	}

	logger := observability.FromContext(r.Context())

	closed, credited, err := purchases.HandleWebhook(s.purchases, payload)
	if err != nil {
		if errors.Is(err, purchases.ErrUnknownCheckout) {
			// The provider retries on non-2xx; an unknown checkout id
			// will never become known, so acknowledge and log.
			logger.WithError(err).Error("webhook referenced unknown checkout")
			if s.metrics != nil {
				s.metrics.PurchasesClosedTotal.WithLabelValues("unknown").Inc()
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		if errors.Is(err, purchases.ErrMalformedEvent) {
			httputil.WriteBadRequest(w, "invalid webhook payload")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if closed && s.metrics != nil {
		s.metrics.PurchasesClosedTotal.WithLabelValues("closed").Inc()
		if credited > 0 {
			s.metrics.CreditsGrantedTotal.Add(float64(credited))
		}
	}

	w.WriteHeader(http.StatusOK)
}
