package accounts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostmarket/internal/hosterrors"
)

func TestRecoverUnknownPhrase(t *testing.T) {
	db := testDB(t)
	rs := NewRecoveryService(db)

	_, err := rs.Recover(context.Background(), "no-such-phrase-at-all-9999")
	assert.ErrorIs(t, err, hosterrors.ErrNotFound)
}

func TestRecoverRejectsEmptyPhrase(t *testing.T) {
	rs := NewRecoveryService(nil)
	_, err := rs.Recover(context.Background(), "")
	assert.True(t, hosterrors.IsValidation(err))
}

func TestRecoverResetsPassword(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	issuer := NewIssuer(db)
	hash := fmt.Sprintf("fp_recover_%d", time.Now().UnixNano())
	cleanupFingerprint(t, db, hash)

	creds, err := issuer.IssueAnonymousAccount(ctx, hash)
	require.NoError(t, err)

	rs := NewRecoveryService(db)
	recovered, err := rs.Recover(ctx, creds.RecoveryPhrase)
	require.NoError(t, err)

	assert.Equal(t, creds.Username, recovered.Username)
	assert.NotEqual(t, creds.Password, recovered.NewPassword,
		"a fresh password must be generated")
	assert.Equal(t, creds.RecoveryPhrase, recovered.RecoveryPhrase,
		"the phrase itself is never rotated")

	t.Run("old password no longer works", func(t *testing.T) {
		_, _, err := rs.Authenticate(ctx, creds.Username, creds.Password)
		assert.ErrorIs(t, err, hosterrors.ErrNotFound)
	})

	t.Run("new password works", func(t *testing.T) {
		accountID, role, err := rs.Authenticate(ctx, creds.Username, recovered.NewPassword)
		require.NoError(t, err)
		assert.Equal(t, creds.AccountID, accountID)
		assert.Equal(t, "client", role)
	})

	t.Run("phrase stays valid for repeated recovery", func(t *testing.T) {
		again, err := rs.Recover(ctx, creds.RecoveryPhrase)
		require.NoError(t, err)
		assert.NotEqual(t, recovered.NewPassword, again.NewPassword)
	})
}

func TestRecoverIgnoresNamedAccounts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	// A named account with a phrase hash in the column should still be
	// unreachable through recovery; only anonymous accounts get phrases.
	phrase := fmt.Sprintf("orchard marble lantern %d", time.Now().UnixNano())
	username := fmt.Sprintf("named_user_%d", time.Now().UnixNano())

	var accountID int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, recovery_phrase_hash, role, is_anonymous, created_at, updated_at)
		VALUES ($1, 'x', $2, 'client', false, NOW(), NOW())
		RETURNING id
	`, username, hashRecoveryPhrase(phrase)).Scan(&accountID)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec("DELETE FROM users WHERE id = $1", accountID)
	})

	rs := NewRecoveryService(db)
	_, err = rs.Recover(ctx, phrase)
	assert.ErrorIs(t, err, hosterrors.ErrNotFound)
}

func TestAuthenticateUniformFailures(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	issuer := NewIssuer(db)
	hash := fmt.Sprintf("fp_auth_%d", time.Now().UnixNano())
	cleanupFingerprint(t, db, hash)

	creds, err := issuer.IssueAnonymousAccount(ctx, hash)
	require.NoError(t, err)

	rs := NewRecoveryService(db)

	_, _, wrongPassword := rs.Authenticate(ctx, creds.Username, "wrong-password")
	_, _, missingUser := rs.Authenticate(ctx, "guest_deadbeef", "whatever")

	assert.ErrorIs(t, wrongPassword, hosterrors.ErrNotFound)
	assert.ErrorIs(t, missingUser, hosterrors.ErrNotFound)
	assert.Equal(t, wrongPassword.Error(), missingUser.Error(),
		"failure mode must not reveal whether the user exists")
}
