package users

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"
)

const licenseKeyLength = 64

// PostgresService implements Service using PostgreSQL.
type PostgresService struct {
	db        *sql.DB
	customers CustomerDirectory
}

// NewPostgresService creates a new PostgresService. customers may be
// nil when billing-provider registration is handled elsewhere; new
// accounts then get an empty customer ref.
func NewPostgresService(db *sql.DB, customers CustomerDirectory) *PostgresService {
	return &PostgresService{db: db, customers: customers}
}

// GetUser retrieves a user by username.
func (s *PostgresService) GetUser(username string) (*User, error) {
	query := `
		SELECT username, given_name, family_name, profile_image_url,
		       license_key, customer_ref, current_credits, demo_expired_at, registered_at
		FROM users
		WHERE username = $1
	`
	u := &User{}
	err := s.db.QueryRow(query, username).Scan(
		&u.Username, &u.GivenName, &u.FamilyName, &u.ProfileImageURL,
		&u.LicenseKey, &u.CustomerRef, &u.CurrentCredits, &u.DemoExpiredAt, &u.RegisteredAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// LookupByLicenseKey resolves a license key to its owning username.
func (s *PostgresService) LookupByLicenseKey(key string) (string, error) {
	var username string
	err := s.db.QueryRow(`SELECT username FROM users WHERE license_key = $1`, key).Scan(&username)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up license key: %w", err)
	}
	return username, nil
}

// CreateOrUpdate upserts a user from an identity-provider login. An
// existing account only has its mutable profile fields refreshed; a
// new account gets a fresh license key, a billing customer record and
// an untouched demo trial.
func (s *PostgresService) CreateOrUpdate(profile IdentityProfile) (*User, bool, error) {
	existing, err := s.GetUser(profile.Username)
	if err != nil && err != ErrNotFound {
		return nil, false, err
	}

	if existing != nil {
		changed := existing.GivenName != profile.GivenName ||
			existing.FamilyName != profile.FamilyName ||
			existing.ProfileImageURL != profile.ProfileImageURL
		if changed {
			query := `
				UPDATE users
				SET given_name = $1, family_name = $2, profile_image_url = $3
				WHERE username = $4
			`
			if _, err := s.db.Exec(query, profile.GivenName, profile.FamilyName,
				profile.ProfileImageURL, profile.Username); err != nil {
				return nil, false, fmt.Errorf("failed to update user: %w", err)
			}
			existing.GivenName = profile.GivenName
			existing.FamilyName = profile.FamilyName
			existing.ProfileImageURL = profile.ProfileImageURL
		}
		return existing, false, nil
	}

	customerRef := ""
	if s.customers != nil {
		fullName := profile.GivenName + " " + profile.FamilyName
		customerRef, err = s.customers.CreateCustomer(fullName, profile.Email)
		if err != nil {
			return nil, false, fmt.Errorf("failed to create billing customer: %w", err)
		}
	}

	key, err := generateLicenseKey()
	if err != nil {
		return nil, false, err
	}

	u := &User{
		Username:        profile.Username,
		GivenName:       profile.GivenName,
		FamilyName:      profile.FamilyName,
		ProfileImageURL: profile.ProfileImageURL,
		LicenseKey:      key,
		CustomerRef:     customerRef,
		CurrentCredits:  0,
		DemoExpiredAt:   nil,
		RegisteredAt:    time.Now().Unix(),
	}

	query := `
		INSERT INTO users
			(username, given_name, family_name, profile_image_url,
			 license_key, customer_ref, current_credits, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.db.Exec(query, u.Username, u.GivenName, u.FamilyName,
		u.ProfileImageURL, u.LicenseKey, u.CustomerRef, u.CurrentCredits, u.RegisteredAt); err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	return u, true, nil
}

// ResetLicenseKey replaces the user's license key with a new one.
func (s *PostgresService) ResetLicenseKey(username string) (string, error) {
	key, err := generateLicenseKey()
	if err != nil {
		return "", err
	}
	res, err := s.db.Exec(`UPDATE users SET license_key = $1 WHERE username = $2`, key, username)
	if err != nil {
		return "", fmt.Errorf("failed to reset license key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return "", ErrNotFound
	}
	return key, nil
}

// generateLicenseKey returns a random key of mixed-case alphabetic
// characters, matching the client's expected key alphabet.
func generateLicenseKey() (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	key := make([]byte, licenseKeyLength)
	for i := range key {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate license key: %w", err)
		}
		key[i] = alphabet[n.Int64()]
	}
	return string(key), nil
}
