package fingerprint

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultIPLookupTimeout bounds the best-effort public IP lookup so the
// fingerprint path never blocks on a slow external service.
const DefaultIPLookupTimeout = 3 * time.Second

// IPLookupClient fetches the caller's public IP from a plain-text echo
// service (e.g. api.ipify.org). All failures are non-fatal to callers.
type IPLookupClient struct {
	url    string
	client *http.Client
}

// NewIPLookupClient creates a lookup client for the given endpoint.
// A zero timeout falls back to DefaultIPLookupTimeout.
func NewIPLookupClient(url string, timeout time.Duration) *IPLookupClient {
	if timeout <= 0 {
		timeout = DefaultIPLookupTimeout
	}
	return &IPLookupClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// PublicIP returns the public IP reported by the lookup service.
func (c *IPLookupClient) PublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("IP lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("IP lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", fmt.Errorf("failed to read IP lookup response: %w", err)
	}

	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("IP lookup returned invalid address %q", ip)
	}

	return ip, nil
}
