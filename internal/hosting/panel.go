package hosting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// PanelClient is the capability boundary to the external hosting control
// panel (WHM/cPanel-style). It is treated as opaque and unreliable; the
// provisioner owns retry and idempotency around it.
type PanelClient interface {
	ProvisionAccount(ctx context.Context, req ProvisionRequest) error
	DeprovisionAccount(ctx context.Context, domain string) error
	AccountUsage(ctx context.Context, domain string) (UsageReport, error)
}

// ProvisionRequest describes the account the panel should create.
type ProvisionRequest struct {
	Domain           string `json:"domain"`
	Username         string `json:"username"`
	DiskLimitMB      int    `json:"disk_limit_mb"`
	BandwidthLimitMB int    `json:"bandwidth_limit_mb"`
	RequestID        string `json:"request_id"` // idempotency key forwarded to the panel
}

// UsageReport is the panel's view of current resource consumption.
type UsageReport struct {
	DiskUsageMB     int `json:"disk_usage_mb"`
	BandwidthUsedMB int `json:"bandwidth_used_mb"`
}

// WHMClient talks to a WHM-compatible JSON API.
type WHMClient struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

// NewWHMClient creates a panel client for the given WHM endpoint.
func NewWHMClient(baseURL, apiToken string, timeout time.Duration) *WHMClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WHMClient{
		baseURL:  baseURL,
		apiToken: apiToken,
		client:   &http.Client{Timeout: timeout},
	}
}

// whmResponse is the metadata envelope WHM wraps every reply in.
type whmResponse struct {
	Metadata struct {
		Result int    `json:"result"` // 1 = success
		Reason string `json:"reason"`
	} `json:"metadata"`
	Data json.RawMessage `json:"data"`
}

func (c *WHMClient) call(ctx context.Context, endpoint string, params url.Values) (*whmResponse, error) {
	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "whm root:"+c.apiToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("panel request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read panel response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("panel API error (status %d): %s", resp.StatusCode, string(body))
	}

	var decoded whmResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode panel response: %w", err)
	}

	if decoded.Metadata.Result != 1 {
		return nil, fmt.Errorf("panel refused request: %s", decoded.Metadata.Reason)
	}

	return &decoded, nil
}

// ProvisionAccount creates the hosting account on the panel.
func (c *WHMClient) ProvisionAccount(ctx context.Context, req ProvisionRequest) error {
	params := url.Values{}
	params.Set("api.version", "1")
	params.Set("domain", req.Domain)
	params.Set("username", req.Username)
	params.Set("quota", fmt.Sprintf("%d", req.DiskLimitMB))
	params.Set("bwlimit", fmt.Sprintf("%d", req.BandwidthLimitMB))
	if req.RequestID != "" {
		params.Set("customfield_request_id", req.RequestID)
	}

	_, err := c.call(ctx, "/json-api/createacct", params)
	return err
}

// DeprovisionAccount removes the hosting account from the panel.
func (c *WHMClient) DeprovisionAccount(ctx context.Context, domain string) error {
	params := url.Values{}
	params.Set("api.version", "1")
	params.Set("domain", domain)

	_, err := c.call(ctx, "/json-api/removeacct", params)
	return err
}

// AccountUsage fetches current disk/bandwidth consumption for a domain.
func (c *WHMClient) AccountUsage(ctx context.Context, domain string) (UsageReport, error) {
	params := url.Values{}
	params.Set("api.version", "1")
	params.Set("searchtype", "domain")
	params.Set("search", domain)

	resp, err := c.call(ctx, "/json-api/accountsummary", params)
	if err != nil {
		return UsageReport{}, err
	}

	var data struct {
		Acct []struct {
			DiskUsed string `json:"diskused"` // e.g. "123M"
			TotalBW  string `json:"totalbw"`  // MB used this cycle
		} `json:"acct"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return UsageReport{}, fmt.Errorf("failed to decode account summary: %w", err)
	}
	if len(data.Acct) == 0 {
		return UsageReport{}, fmt.Errorf("panel has no account for domain %s", domain)
	}

	report := UsageReport{
		DiskUsageMB:     parsePanelMB(data.Acct[0].DiskUsed),
		BandwidthUsedMB: parsePanelMB(data.Acct[0].TotalBW),
	}
	return report, nil
}

// parsePanelMB parses WHM's "123M"-style size strings; unparseable input
// reads as zero rather than failing the sync.
func parsePanelMB(s string) int {
	var n int
	fmt.Sscanf(s, "%d", &n)
	return n
}
