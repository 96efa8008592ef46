package api

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/terrierbot/registrar/pkg/catalog"
	"github.com/terrierbot/registrar/pkg/httputil"
	"github.com/terrierbot/registrar/pkg/middleware"
	"github.com/terrierbot/registrar/pkg/observability"
	"github.com/terrierbot/registrar/pkg/purchases"
	"github.com/terrierbot/registrar/pkg/sessions"
	"github.com/terrierbot/registrar/pkg/users"
)

// maxRequestBytes caps request bodies. The largest legitimate payload
// is a session start with a full course target list.
const maxRequestBytes = 1 << 20

// Server is the registrar HTTP API. Everything under /v1 except the
// billing webhook sits behind license-key authentication.
type Server struct {
	router    *mux.Router
	logger    *observability.Logger
	metrics   *observability.Metrics
	users     users.Service
	registry  sessions.Registry
	catalog   catalog.Service
	checkout  *purchases.CheckoutService
	purchases purchases.Ledger
}

// Config collects the services the server fronts.
type Config struct {
	Users     users.Service
	Registry  sessions.Registry
	Catalog   catalog.Service
	Checkout  *purchases.CheckoutService
	Purchases purchases.Ledger
	Logger    *observability.Logger
	Metrics   *observability.Metrics
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}

	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		metrics:   cfg.Metrics,
		users:     cfg.Users,
		registry:  cfg.Registry,
		catalog:   cfg.Catalog,
		checkout:  cfg.Checkout,
		purchases: cfg.Purchases,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestIDMiddleware)
	s.router.Use(httputil.RecoveryMiddleware)
	s.router.Use(httputil.MaxBytesMiddleware(maxRequestBytes))
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	// Unauthenticated surface
	s.router.HandleFunc("/ping", s.ping).Methods("GET")
	s.router.HandleFunc("/v1/billing/webhook", s.billingWebhook).Methods("POST")

	// Everything else requires a license key
	auth := middleware.NewLicenseAuthMiddleware(s.users, false)
	protected := s.router.PathPrefix("/v1").Subrouter()
	protected.Use(auth.Handler)

	// Session lifecycle
	protected.HandleFunc("/sessions", s.startSession).Methods("POST")
	protected.HandleFunc("/sessions/heartbeat", s.heartbeat).Methods("POST")
	protected.HandleFunc("/sessions/registrations", s.courseRegistered).Methods("POST")
	protected.HandleFunc("/sessions/stop", s.stopSession).Methods("POST")

	// Entitlement and billing
	protected.HandleFunc("/entitlement", s.getEntitlement).Methods("GET")
	protected.HandleFunc("/checkout", s.createCheckout).Methods("POST")
	protected.HandleFunc("/checkout/tiers", s.listTiers).Methods("GET")
	protected.HandleFunc("/license/reset", s.resetLicenseKey).Methods("POST")

	// Catalog and selections
	protected.HandleFunc("/catalog/departments", s.listDepartments).Methods("GET")
	protected.HandleFunc("/catalog/courses", s.listCourses).Methods("GET")
	protected.HandleFunc("/selections", s.listSelections).Methods("GET")
	protected.HandleFunc("/selections", s.addSelection).Methods("PUT")
	protected.HandleFunc("/selections", s.removeSelection).Methods("DELETE")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ping handles GET /ping
func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, "Pong!")
}

// clientIP extracts the caller's address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
