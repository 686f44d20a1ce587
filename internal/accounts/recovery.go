package accounts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hostmarket/internal/hosterrors"
)

// RecoveryService resets passwords for accounts identified by their
// recovery phrase. The phrase itself is never rotated here: anonymous
// users have no other way back in, so the phrase stays valid for
// repeated recoveries.
type RecoveryService struct {
	db *sql.DB
}

// NewRecoveryService creates a new recovery service
func NewRecoveryService(db *sql.DB) *RecoveryService {
	return &RecoveryService{db: db}
}

// RecoveredCredentials carries the one-time new password back to the
// caller, with the unchanged phrase echoed for re-confirmation.
type RecoveredCredentials struct {
	AccountID      int64  `json:"-"`
	Username       string `json:"username"`
	NewPassword    string `json:"newPassword"`
	RecoveryPhrase string `json:"recoveryPhrase"`
}

// Recover looks up the anonymous account matching the supplied phrase,
// overwrites its password hash with a fresh random password, and returns
// that password exactly once. An unknown phrase yields ErrNotFound with
// no hint about near-misses. Named accounts are never issued a phrase,
// so the lookup excludes them.
func (rs *RecoveryService) Recover(ctx context.Context, phrase string) (*RecoveredCredentials, error) {
	if phrase == "" {
		return nil, hosterrors.ValidationError{Field: "recoveryPhrase", Reason: "must not be empty"}
	}

	phraseHash := hashRecoveryPhrase(phrase)

	var accountID int64
	var username string
	err := rs.db.QueryRowContext(ctx, `
		SELECT id, username FROM users WHERE recovery_phrase_hash = $1 AND is_anonymous
	`, phraseHash).Scan(&accountID, &username)
	if err == sql.ErrNoRows {
		return nil, hosterrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up recovery phrase: %w", err)
	}

	newPassword, err := generatePassword()
	if err != nil {
		return nil, err
	}
	newHash, err := hashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash new password: %w", err)
	}

	result, err := rs.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2
	`, newHash, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, hosterrors.ErrNotFound
	}

	log.Info().Int64("account_id", accountID).Msg("recovered account password")

	return &RecoveredCredentials{
		AccountID:      accountID,
		Username:       username,
		NewPassword:    newPassword,
		RecoveryPhrase: phrase,
	}, nil
}

// Authenticate verifies a username/password pair and returns the account
// ID and role. Failures are uniform: a missing user and a wrong password
// produce the same error.
func (rs *RecoveryService) Authenticate(ctx context.Context, username, password string) (int64, string, error) {
	if username == "" || password == "" {
		return 0, "", hosterrors.ValidationError{Field: "credentials", Reason: "username and password are required"}
	}

	var accountID int64
	var role, passwordHash string
	err := rs.db.QueryRowContext(ctx, `
		SELECT id, role, password_hash FROM users WHERE username = $1
	`, username).Scan(&accountID, &role, &passwordHash)
	if err == sql.ErrNoRows {
		return 0, "", hosterrors.ErrNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !comparePasswords(passwordHash, password) {
		return 0, "", hosterrors.ErrNotFound
	}

	return accountID, role, nil
}
