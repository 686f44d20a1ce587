package fingerprint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hostmarket/pkg/models"
)

// Store persists reported device signals keyed by fingerprint hash.
type Store struct {
	db *sql.DB
}

// NewStore creates a new fingerprint store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record upserts the signal set for a fingerprint hash, refreshing
// last_seen_at when the device reports again.
func (s *Store) Record(ctx context.Context, fp models.DeviceFingerprint) error {
	// The column is JSONB; clients that send a bare string (e.g. just
	// "MacIntel") get it stored as a JSON string value.
	platform := fp.Signals.Platform
	if platform == "" {
		platform = "{}"
	} else if !json.Valid([]byte(platform)) {
		encoded, err := json.Marshal(platform)
		if err != nil {
			return fmt.Errorf("failed to encode platform signal: %w", err)
		}
		platform = string(encoded)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_fingerprints (
			fingerprint_hash, user_agent, screen_resolution, timezone,
			language, platform, ip_address, last_seen_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (fingerprint_hash) DO UPDATE SET
			user_agent = EXCLUDED.user_agent,
			ip_address = EXCLUDED.ip_address,
			last_seen_at = NOW()
	`, fp.Hash, fp.Signals.UserAgent, fp.Signals.ScreenResolution,
		fp.Signals.Timezone, fp.Signals.Language, platform, fp.Signals.IPAddress)

	if err != nil {
		return fmt.Errorf("failed to record fingerprint: %w", err)
	}
	return nil
}

// LastSeen returns when the fingerprint last reported, for admin tooling.
func (s *Store) LastSeen(ctx context.Context, hash string) (time.Time, error) {
	var lastSeen time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT last_seen_at FROM device_fingerprints WHERE fingerprint_hash = $1
	`, hash).Scan(&lastSeen)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to look up fingerprint: %w", err)
	}
	return lastSeen, nil
}
