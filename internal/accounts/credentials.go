package accounts

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	usernamePrefix     = "guest_"
	usernameTokenBytes = 4 // 8 hex chars
	passwordLength     = 24
	phraseWordCount    = 6

	passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
)

// phraseWords is the pool recovery phrases are drawn from. Six words out
// of 256 gives 48 bits of entropy, plus a numeric suffix for good measure.
var phraseWords = []string{
	"acorn", "amber", "anchor", "apple", "arrow", "aspen", "atlas", "autumn",
	"badge", "bamboo", "basil", "beacon", "berry", "birch", "bison", "blaze",
	"bloom", "bolt", "border", "breeze", "brick", "bridge", "brook", "bronze",
	"cabin", "cactus", "camel", "candle", "canoe", "canyon", "carbon", "castle",
	"cedar", "chalk", "cherry", "chime", "cider", "cliff", "clover", "cobalt",
	"comet", "copper", "coral", "cotton", "cove", "crane", "crater", "crystal",
	"daisy", "dawn", "delta", "desert", "dew", "dome", "drift", "dune",
	"eagle", "echo", "ember", "emerald", "falcon", "feather", "fern", "field",
	"flint", "forest", "fossil", "frost", "galaxy", "garden", "garnet", "geyser",
	"ginger", "glacier", "glade", "globe", "grape", "granite", "grove", "gulf",
	"harbor", "hazel", "heron", "hill", "hollow", "honey", "horizon", "iceberg",
	"indigo", "iris", "island", "ivory", "jade", "jasper", "juniper", "kelp",
	"lagoon", "lake", "lantern", "laurel", "lava", "lemon", "lichen", "lily",
	"linen", "lotus", "lunar", "maple", "marble", "meadow", "mesa", "mist",
	"monarch", "moss", "nectar", "nickel", "north", "nova", "oasis", "ocean",
	"olive", "onyx", "opal", "orbit", "orchid", "osprey", "otter", "palm",
	"pebble", "peony", "pine", "plume", "pollen", "pond", "poppy", "prairie",
	"prism", "quartz", "quill", "rain", "raven", "reef", "ridge", "river",
	"robin", "rose", "ruby", "rust", "saffron", "sage", "salmon", "sand",
	"sapphire", "seal", "shade", "shell", "shore", "silver", "sky", "slate",
	"snow", "solar", "sparrow", "spring", "spruce", "star", "stone", "storm",
	"stream", "summit", "sunset", "swan", "thistle", "thunder", "tide", "timber",
	"topaz", "torch", "trail", "tulip", "tundra", "valley", "vapor", "velvet",
	"vine", "violet", "walnut", "wave", "wheat", "willow", "wind", "winter",
	"wolf", "wren", "zephyr", "zinc", "aurora", "basalt", "cascade", "cinder",
	"cloud", "coast", "current", "cypress", "drizzle", "estuary", "fjord", "flora",
	"gale", "glow", "harvest", "heather", "inlet", "ivy", "jungle", "kite",
	"ledge", "lighthouse", "magnet", "mangrove", "marsh", "meteor", "mineral", "moor",
	"nebula", "oak", "orca", "peak", "pearl", "pinecone", "plateau", "pumice",
	"quarry", "rapids", "reed", "ripple", "savanna", "sequoia", "shoal", "basin",
	"sleet", "sprig", "steppe", "strait", "sundial", "surf", "tarn", "terrace",
	"thaw", "tributary", "twilight", "umber", "verdant", "vista", "waterfall", "whirl",
	"wildflower", "woodland", "yarrow", "yonder", "zenith", "zest", "bluff", "crag",
}

// generateUsername produces a unique-looking anonymous username. The
// issuer still collision-checks against persisted usernames before use.
func generateUsername() (string, error) {
	buf := make([]byte, usernameTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate username token: %w", err)
	}
	return usernamePrefix + hex.EncodeToString(buf), nil
}

// generatePassword produces a high-entropy random password.
func generatePassword() (string, error) {
	var sb strings.Builder
	sb.Grow(passwordLength)

	setSize := big.NewInt(int64(len(passwordCharset)))
	for i := 0; i < passwordLength; i++ {
		n, err := rand.Int(rand.Reader, setSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		sb.WriteByte(passwordCharset[n.Int64()])
	}
	return sb.String(), nil
}

// generateRecoveryPhrase produces a human-copyable multi-word phrase
// like "maple-breeze-comet-fjord-sage-tide-4821".
func generateRecoveryPhrase() (string, error) {
	parts := make([]string, 0, phraseWordCount+1)

	poolSize := big.NewInt(int64(len(phraseWords)))
	for i := 0; i < phraseWordCount; i++ {
		n, err := rand.Int(rand.Reader, poolSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate recovery phrase: %w", err)
		}
		parts = append(parts, phraseWords[n.Int64()])
	}

	suffix, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate recovery phrase: %w", err)
	}
	parts = append(parts, fmt.Sprintf("%04d", suffix.Int64()))

	return strings.Join(parts, "-"), nil
}

// hashPassword securely hashes a password using bcrypt
func hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// comparePasswords checks if the provided password matches the hashed password
func comparePasswords(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// hashRecoveryPhrase produces the deterministic digest stored for a
// recovery phrase. Unlike passwords, phrases must support direct lookup
// at recovery time, so they get SHA-256 over a normalized form rather
// than bcrypt; the phrase itself is high-entropy random material.
func hashRecoveryPhrase(phrase string) string {
	normalized := strings.ToLower(strings.TrimSpace(phrase))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
