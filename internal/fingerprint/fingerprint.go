// Package fingerprint derives a stable device identity from reported
// browser/device signals. The hash is a soft heuristic for abuse
// containment, not a cryptographic identity: two devices with identical
// signals intentionally collide and share one limit bucket.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/hostmarket/pkg/models"
)

// Generator computes a fingerprint for one signal set. It is a plain
// per-request value, not a shared singleton; the result is cached for
// the lifetime of the generator so repeated calls are idempotent.
type Generator struct {
	signals models.DeviceSignals
	lookup  *IPLookupClient

	cached *models.DeviceFingerprint
}

// NewGenerator creates a generator for the given signals. lookup may be
// nil to skip the best-effort public IP enrichment.
func NewGenerator(signals models.DeviceSignals, lookup *IPLookupClient) *Generator {
	return &Generator{signals: signals, lookup: lookup}
}

// Generate returns the fingerprint for the generator's signal set.
// The first call may perform a best-effort outbound IP lookup; lookup
// failures are swallowed and the IP signal is simply omitted. Subsequent
// calls return the cached value.
func (g *Generator) Generate(ctx context.Context) models.DeviceFingerprint {
	if g.cached != nil {
		return *g.cached
	}

	if g.lookup != nil && g.signals.IPAddress == "" {
		if ip, err := g.lookup.PublicIP(ctx); err == nil {
			g.signals.IPAddress = ip
		}
	}

	fp := models.DeviceFingerprint{
		Hash:    HashSignals(g.signals),
		Signals: g.signals,
	}
	g.cached = &fp
	return fp
}

// HashSignals computes the deterministic SHA-256 hex digest of a signal
// set. Same signals always produce the same hash: the canonical form has
// stable key ordering, no randomness, and no time component. Empty
// optional signals (MAC, IP) are left out of the canonical object.
func HashSignals(s models.DeviceSignals) string {
	canon := map[string]string{
		"userAgent":        s.UserAgent,
		"screenResolution": s.ScreenResolution,
		"timezone":         s.Timezone,
		"language":         s.Language,
		"platform":         canonicalPlatform(s.Platform),
	}
	if s.MACAddress != "" {
		canon["macAddress"] = s.MACAddress
	}
	if s.IPAddress != "" {
		canon["ipAddress"] = s.IPAddress
	}

	// json.Marshal sorts map keys, which gives us the stable serialization.
	serialized, err := json.Marshal(canon)
	if err != nil {
		// Cannot happen for a map[string]string; fall back to empty object.
		serialized = []byte("{}")
	}

	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}

// canonicalPlatform re-serializes the platform JSON blob with sorted keys
// so that semantically equal blobs hash identically regardless of the
// key order the client sent. Unparseable blobs are used verbatim.
func canonicalPlatform(platform string) string {
	if platform == "" {
		return ""
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(platform), &decoded); err != nil {
		return platform
	}

	reserialized, err := json.Marshal(decoded)
	if err != nil {
		return platform
	}
	return string(reserialized)
}
