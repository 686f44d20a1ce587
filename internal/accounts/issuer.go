// Package accounts creates and recovers anonymous marketplace accounts.
// Plaintext credentials exist only in the responses of this package;
// storage holds bcrypt password hashes and recovery phrase digests.
package accounts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hostmarket/internal/hosterrors"
	"github.com/hostmarket/pkg/models"
)

const usernameRetries = 5

// Issuer creates anonymous accounts tied to a device fingerprint.
type Issuer struct {
	db *sql.DB

	// DefaultMaxDevices is the ceiling applied when no group override
	// exists for the fingerprint's linked accounts.
	DefaultMaxDevices int
}

// NewIssuer creates a new credential issuer
func NewIssuer(db *sql.DB) *Issuer {
	return &Issuer{db: db, DefaultMaxDevices: models.DefaultMaxDevices}
}

// IssuedCredentials carries the one-time plaintext credentials back to
// the caller. This is the only read path through which they ever exist.
type IssuedCredentials struct {
	AccountID      int64  `json:"id"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	RecoveryPhrase string `json:"recoveryPhrase"`
	Role           string `json:"role"`
	IsAnonymous    bool   `json:"isAnonymous"`
}

// IssueAnonymousAccount creates one account and one device registration
// atomically. The caller is expected to have passed the limit evaluator
// first; the per-fingerprint advisory lock plus in-transaction recount
// here is what makes two simultaneous registrations from one device
// unable to slip past the ceiling together.
func (i *Issuer) IssueAnonymousAccount(ctx context.Context, fingerprintHash string) (*IssuedCredentials, error) {
	if fingerprintHash == "" {
		return nil, hosterrors.ValidationError{Field: "fingerprintHash", Reason: "must not be empty"}
	}

	password, err := generatePassword()
	if err != nil {
		return nil, err
	}
	phrase, err := generateRecoveryPhrase()
	if err != nil {
		return nil, err
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	phraseHash := hashRecoveryPhrase(phrase)

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	// Serialize registrations per fingerprint for the rest of this
	// transaction. Two concurrent issuances from the same device queue
	// up here, so the recount below sees committed state.
	if _, err := tx.ExecContext(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", fingerprintHash); err != nil {
		return nil, fmt.Errorf("failed to lock fingerprint bucket: %w", err)
	}

	current, max, err := i.countDevices(ctx, tx, fingerprintHash)
	if err != nil {
		return nil, err
	}
	if current >= max {
		return nil, hosterrors.LimitExceededError{Resource: "device", Current: current, Max: max}
	}

	username, err := i.uniqueUsername(ctx, tx)
	if err != nil {
		return nil, err
	}

	var accountID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, recovery_phrase_hash, role, is_anonymous, created_at, updated_at)
		VALUES ($1, $2, $3, 'client', true, NOW(), NOW())
		RETURNING id
	`, username, passwordHash, phraseHash).Scan(&accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO device_registrations (fingerprint_hash, account_id, created_at)
		VALUES ($1, $2, NOW())
	`, fingerprintHash, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int64("account_id", accountID).
		Str("username", username).
		Int("device_slot", current+1).
		Msg("issued anonymous account")

	return &IssuedCredentials{
		AccountID:      accountID,
		Username:       username,
		Password:       password,
		RecoveryPhrase: phrase,
		Role:           models.RoleClient,
		IsAnonymous:    true,
	}, nil
}

// countDevices returns the current registration count for a fingerprint
// and the applicable ceiling (group override else default), read inside
// the caller's transaction.
func (i *Issuer) countDevices(ctx context.Context, tx *sql.Tx, fingerprintHash string) (current, max int, err error) {
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM device_registrations WHERE fingerprint_hash = $1
	`, fingerprintHash).Scan(&current)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count device registrations: %w", err)
	}

	max = i.DefaultMaxDevices
	var groupMax sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(g.max_devices)
		FROM device_registrations dr
		JOIN users u ON u.id = dr.account_id
		JOIN user_groups g ON g.id = u.group_id
		WHERE dr.fingerprint_hash = $1
	`, fingerprintHash).Scan(&groupMax)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to resolve device ceiling: %w", err)
	}
	if groupMax.Valid {
		max = int(groupMax.Int64)
	}

	return current, max, nil
}

// uniqueUsername generates a username and collision-checks it against
// persisted usernames, retrying a handful of times before giving up.
func (i *Issuer) uniqueUsername(ctx context.Context, tx *sql.Tx) (string, error) {
	for attempt := 0; attempt < usernameRetries; attempt++ {
		username, err := generateUsername()
		if err != nil {
			return "", err
		}

		var exists int
		err = tx.QueryRowContext(ctx,
			"SELECT 1 FROM users WHERE username = $1", username).Scan(&exists)
		if err == sql.ErrNoRows {
			return username, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
	}
	return "", hosterrors.ConflictError{Resource: "username", Value: "exhausted generation attempts"}
}
