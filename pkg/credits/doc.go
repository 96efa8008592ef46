// Package credits maintains the per-user credit balance and demo-trial
// flag backing the entitlement computation.
//
// Credits are a consumable unit: one is debited per successful real
// (non-planner) course registration and purchases add them back. The
// balance is never observed negative; the floor is enforced by the
// store with an atomic GREATEST expression rather than a read-modify-
// write in application code. The demo-trial timestamp is set at most
// once via a conditional update, which makes MarkDemoOver safe to call
// redundantly from every path that might be a user's first real
// registration or first purchase.
package credits
