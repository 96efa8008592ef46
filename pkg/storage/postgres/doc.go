// Package postgres owns the shared database connection pool and the
// idempotent schema bootstrap run at process start.
package postgres
