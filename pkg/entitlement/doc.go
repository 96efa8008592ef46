// Package entitlement computes the service tier a usage session is
// granted when it starts.
//
// The computation is a pure function of two user fields: the current
// credit balance and the demo-trial consumption timestamp. A positive
// balance grants Full service, an untouched demo trial grants a single
// real registration at Demo level, and everything else is Expired.
//
// Exhausted credits and a used-up demo are expected business states,
// not errors; they surface as a GrantLevel value.
package entitlement
