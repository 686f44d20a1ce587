package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSessionTokenRejectsGarbage(t *testing.T) {
	ts := NewTokenService(nil, "unit-test-secret")

	_, err := ts.ValidateSessionToken("not-a-jwt")
	assert.Error(t, err)

	_, err = ts.ValidateSessionToken("")
	assert.Error(t, err)
}

func TestValidateSessionTokenRejectsForeignSignature(t *testing.T) {
	ts := NewTokenService(nil, "unit-test-secret")

	claims := &JWTClaims{
		UserID:    7,
		Role:      "client",
		TokenHash: "deadbeef",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "hostmarket",
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("attacker-secret"))
	require.NoError(t, err)

	_, err = ts.ValidateSessionToken(forged)
	assert.Error(t, err, "a token signed with another key must be rejected")
}

func TestValidateSessionTokenRejectsWrongAlgorithm(t *testing.T) {
	ts := NewTokenService(nil, "unit-test-secret")

	// alg=none tokens must never pass, regardless of claims.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{UserID: 7}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ts.ValidateSessionToken(unsigned)
	assert.Error(t, err)
}
