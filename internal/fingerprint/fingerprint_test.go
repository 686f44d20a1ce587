package fingerprint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostmarket/pkg/models"
)

func baseSignals() models.DeviceSignals {
	return models.DeviceSignals{
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0",
		ScreenResolution: "1920x1080",
		Timezone:         "Europe/Paris",
		Language:         "fr-FR",
		Platform:         `{"cores":8,"memory":16}`,
	}
}

func TestHashSignalsDeterminism(t *testing.T) {
	s := baseSignals()

	first := HashSignals(s)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, HashSignals(s), "hash must be stable across calls")
	}

	assert.Len(t, first, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", first)
}

func TestHashSignalsSensitivity(t *testing.T) {
	base := HashSignals(baseSignals())

	variants := map[string]func(*models.DeviceSignals){
		"user agent":  func(s *models.DeviceSignals) { s.UserAgent = "Chrome/126.0" },
		"resolution":  func(s *models.DeviceSignals) { s.ScreenResolution = "2560x1440" },
		"timezone":    func(s *models.DeviceSignals) { s.Timezone = "America/New_York" },
		"language":    func(s *models.DeviceSignals) { s.Language = "en-US" },
		"platform":    func(s *models.DeviceSignals) { s.Platform = `{"cores":4,"memory":8}` },
		"mac address": func(s *models.DeviceSignals) { s.MACAddress = "aa:bb:cc:dd:ee:ff" },
		"ip address":  func(s *models.DeviceSignals) { s.IPAddress = "203.0.113.7" },
	}

	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			s := baseSignals()
			mutate(&s)
			assert.NotEqual(t, base, HashSignals(s), "changing %s must change the hash", name)
		})
	}
}

func TestHashSignalsPlatformKeyOrderIrrelevant(t *testing.T) {
	a := baseSignals()
	a.Platform = `{"cores":8,"memory":16}`

	b := baseSignals()
	b.Platform = `{"memory":16,"cores":8}`

	assert.Equal(t, HashSignals(a), HashSignals(b),
		"semantically equal platform blobs must hash identically")
}

func TestHashSignalsIdenticalDevicesCollide(t *testing.T) {
	// Two genuinely different devices that report identical signals share
	// one limit bucket. That is accepted behavior for a soft heuristic.
	deviceA := baseSignals()
	deviceB := baseSignals()

	assert.Equal(t, HashSignals(deviceA), HashSignals(deviceB))
}

func TestGeneratorCachesResult(t *testing.T) {
	g := NewGenerator(baseSignals(), nil)

	first := g.Generate(context.Background())
	second := g.Generate(context.Background())

	assert.Equal(t, first, second)
}

func TestGeneratorEnrichesWithPublicIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("198.51.100.42"))
	}))
	defer srv.Close()

	lookup := NewIPLookupClient(srv.URL, time.Second)
	g := NewGenerator(baseSignals(), lookup)

	fp := g.Generate(context.Background())

	assert.Equal(t, "198.51.100.42", fp.Signals.IPAddress)
	assert.NotEqual(t, HashSignals(baseSignals()), fp.Hash,
		"IP enrichment must be part of the canonical object")
}

func TestGeneratorSwallowsIPLookupFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	lookup := NewIPLookupClient(srv.URL, time.Second)
	g := NewGenerator(baseSignals(), lookup)

	fp := g.Generate(context.Background())

	assert.Empty(t, fp.Signals.IPAddress)
	assert.Equal(t, HashSignals(baseSignals()), fp.Hash,
		"failed lookup must leave the hash identical to the no-IP form")
}

func TestIPLookupRejectsGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not an ip</html>"))
	}))
	defer srv.Close()

	lookup := NewIPLookupClient(srv.URL, time.Second)
	_, err := lookup.PublicIP(context.Background())
	require.Error(t, err)
}
