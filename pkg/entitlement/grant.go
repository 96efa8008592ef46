package entitlement

// GrantLevel represents the service tier a session is entitled to at
// creation time. It is snapshotted onto the session row and never
// re-evaluated mid-session.
type GrantLevel string

const (
	// GrantFull is granted while the user holds a positive credit balance.
	GrantFull GrantLevel = "Full"
	// GrantDemo is granted to users with no credits whose one-time demo
	// trial has not been consumed yet.
	GrantDemo GrantLevel = "Demo"
	// GrantExpired is granted to users with no credits and a consumed demo.
	GrantExpired GrantLevel = "Expired"
)

// Valid reports whether the grant level is one of the known tiers.
func (g GrantLevel) Valid() bool {
	switch g {
	case GrantFull, GrantDemo, GrantExpired:
		return true
	}
	return false
}

func (g GrantLevel) String() string {
	return string(g)
}

// Compute derives the grant level from a user's credit balance and
// demo-trial state. The rules are evaluated in order: a positive
// balance always wins, an unconsumed demo trial comes second, and
// everything else is expired. Pure function, total over its inputs.
func Compute(creditBalance int64, demoExpiredAt *int64) GrantLevel {
	if creditBalance > 0 {
		return GrantFull
	}
	if demoExpiredAt == nil {
		return GrantDemo
	}
	return GrantExpired
}
