// Package auth issues and validates Bearer session tokens for the
// authenticated /api/user/* endpoints. Tokens are JWTs backed by a
// database row, so sessions can be revoked server-side.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService handles session token creation, validation, and management
type TokenService struct {
	db        *sql.DB
	secretKey []byte

	// SessionDuration controls how long issued tokens stay valid.
	SessionDuration time.Duration
}

// Session identifies an authenticated caller.
type Session struct {
	AccountID int64
	Role      string
}

// JWTClaims represents the claims in our session tokens
type JWTClaims struct {
	UserID    int64  `json:"user_id"`
	Role      string `json:"role"`
	TokenHash string `json:"token_hash"` // Reference to database token
	jwt.RegisteredClaims
}

// NewTokenService creates a new token service
func NewTokenService(db *sql.DB, secretKey string) *TokenService {
	return &TokenService{
		db:              db,
		secretKey:       []byte(secretKey),
		SessionDuration: 24 * time.Hour,
	}
}

// generateRandomToken creates a cryptographically secure random token
func (ts *TokenService) generateRandomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashToken creates a SHA256 hash of the token for database storage
func (ts *TokenService) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// CreateSessionToken creates a signed session token for an account.
func (ts *TokenService) CreateSessionToken(accountID int64, role, userAgent, ipAddress string) (string, time.Time, error) {
	raw, err := ts.generateRandomToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	tokenHash := ts.hashToken(raw)
	expiresAt := time.Now().Add(ts.SessionDuration)

	_, err = ts.db.Exec(`
		INSERT INTO auth_tokens (user_id, token_hash, token_type, expires_at, user_agent, ip_address)
		VALUES ($1, $2, 'session', $3, $4, $5)
	`, accountID, tokenHash, expiresAt, userAgent, ipAddress)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store session token: %w", err)
	}

	claims := &JWTClaims{
		UserID:    accountID,
		Role:      role,
		TokenHash: tokenHash,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "hostmarket",
			Subject:   fmt.Sprintf("user_%d", accountID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signed, expiresAt, nil
}

// ValidateSessionToken validates a JWT and its backing database row.
func (ts *TokenService) ValidateSessionToken(tokenString string) (*Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	// The row must still exist and be unexpired; deleting it revokes
	// the session.
	var userID int64
	err = ts.db.QueryRow(`
		SELECT user_id FROM auth_tokens
		WHERE token_hash = $1 AND token_type = 'session' AND expires_at > NOW()
	`, claims.TokenHash).Scan(&userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session revoked or expired")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}

	if userID != claims.UserID {
		return nil, fmt.Errorf("token does not match session")
	}

	return &Session{AccountID: claims.UserID, Role: claims.Role}, nil
}

// RevokeSessionsFor deletes all session rows for an account, used after
// a password reset through account recovery.
func (ts *TokenService) RevokeSessionsFor(accountID int64) error {
	_, err := ts.db.Exec(`
		DELETE FROM auth_tokens WHERE user_id = $1 AND token_type = 'session'
	`, accountID)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}
