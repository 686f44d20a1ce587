package accounts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUsername(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		u, err := generateUsername()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(u, "guest_"))
		assert.Len(t, u, len("guest_")+8)
		assert.False(t, seen[u], "usernames should not repeat in practice")
		seen[u] = true
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword()
	require.NoError(t, err)
	b, err := generatePassword()
	require.NoError(t, err)

	assert.Len(t, a, passwordLength)
	assert.NotEqual(t, a, b)
}

func TestGenerateRecoveryPhrase(t *testing.T) {
	phrase, err := generateRecoveryPhrase()
	require.NoError(t, err)

	parts := strings.Split(phrase, "-")
	require.Len(t, parts, phraseWordCount+1, "six words plus numeric suffix")

	for _, word := range parts[:phraseWordCount] {
		assert.Contains(t, phraseWords, word)
	}
	assert.Regexp(t, `^\d{4}$`, parts[phraseWordCount])
}

func TestHashRecoveryPhraseNormalizes(t *testing.T) {
	base := hashRecoveryPhrase("maple-breeze-comet-fjord-sage-tide-4821")

	assert.Equal(t, base, hashRecoveryPhrase("  maple-breeze-comet-fjord-sage-tide-4821  "))
	assert.Equal(t, base, hashRecoveryPhrase("Maple-Breeze-Comet-Fjord-Sage-Tide-4821"))
	assert.NotEqual(t, base, hashRecoveryPhrase("maple-breeze-comet-fjord-sage-tide-4822"))
	assert.Regexp(t, "^[0-9a-f]{64}$", base)
}

func TestPasswordHashRoundtrip(t *testing.T) {
	hash, err := hashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, comparePasswords(hash, "correct horse battery staple"))
	assert.False(t, comparePasswords(hash, "incorrect horse"))
	assert.NotContains(t, hash, "correct horse", "hash must not embed the plaintext")
}
