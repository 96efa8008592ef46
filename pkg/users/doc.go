// Package users manages account records: creation on first
// identity-provider login, license key issuance and lookup, and the
// credit/demo fields consumed by the entitlement computation.
package users
