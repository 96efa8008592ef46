// Package api provides the registrar HTTP API.
//
// # Overview
//
// The server fronts the session registry, entitlement engine, credit
// ledger, course catalog, and purchase checkout behind a gorilla/mux
// router. Clients authenticate with a license key; the billing webhook
// and /ping are the only unauthenticated routes.
//
// # Routes
//
// Session lifecycle:
//
//	POST /v1/sessions               start a session
//	POST /v1/sessions/heartbeat     keep a session alive
//	POST /v1/sessions/registrations report a registered course
//	POST /v1/sessions/stop          terminate a session
//
// Entitlement and billing:
//
//	GET  /v1/entitlement        current tier and credit balance
//	POST /v1/checkout           open a credit purchase
//	GET  /v1/checkout/tiers     quantity price tiers
//	POST /v1/license/reset      rotate the license key
//	POST /v1/billing/webhook    payment provider callbacks
//
// Catalog and selections:
//
//	GET    /v1/catalog/departments
//	GET    /v1/catalog/courses
//	GET    /v1/selections
//	PUT    /v1/selections
//	DELETE /v1/selections
//
// # Related Packages
//
//   - pkg/sessions: session registry and reaper
//   - pkg/entitlement: grant level computation
//   - pkg/purchases: checkout and purchase ledger
//   - pkg/middleware: authentication and rate limiting
package api
