// Package purchases tracks credit purchases from checkout initiation to
// the payment provider's terminal callback.
//
// A purchase session opens when a checkout starts and closes exactly
// once, no matter how many times the provider redelivers the terminal
// webhook. The processed flag on the row is the gate: the close is a
// conditional update, and only the delivery that wins it applies the
// credit.
//
// Pricing is tiered: larger quantities unlock lower unit prices, with
// quantities below every tier falling back to the cheapest tier.
package purchases
