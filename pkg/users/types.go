package users

import "errors"

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// User is the account record backing sessions, entitlement and
// purchases. Users are created on first identity-provider login and
// never deleted.
type User struct {
	Username        string `json:"username"`
	GivenName       string `json:"given_name"`
	FamilyName      string `json:"family_name"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	LicenseKey      string `json:"-"`
	CustomerRef     string `json:"-"`
	CurrentCredits  int64  `json:"current_credits"`
	DemoExpiredAt   *int64 `json:"demo_expired_at,omitempty"`
	RegisteredAt    int64  `json:"registered_at"`
}

// IdentityProfile is the subset of an identity-provider login payload
// the user service consumes. Username is derived from the email local
// part by the caller.
type IdentityProfile struct {
	Username        string
	Email           string
	GivenName       string
	FamilyName      string
	ProfileImageURL string
}

// CustomerDirectory creates customer records with the billing provider.
// Implemented by the purchases checkout client.
type CustomerDirectory interface {
	CreateCustomer(fullName, email string) (string, error)
}

// Service defines user account operations.
type Service interface {
	GetUser(username string) (*User, error)
	// LookupByLicenseKey resolves a license key to its owning username.
	// Returns ErrNotFound for unknown keys.
	LookupByLicenseKey(key string) (string, error)
	// CreateOrUpdate upserts a user from an identity-provider login.
	// Returns the user and whether a new account was created.
	CreateOrUpdate(profile IdentityProfile) (*User, bool, error)
	ResetLicenseKey(username string) (string, error)
}
