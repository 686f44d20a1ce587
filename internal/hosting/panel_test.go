package hosting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWHMClientProvisionAccount(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotQuery map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"metadata": map[string]interface{}{"result": 1, "reason": "OK"},
		})
	}))
	defer srv.Close()

	client := NewWHMClient(srv.URL, "secret-token", time.Second)
	err := client.ProvisionAccount(context.Background(), ProvisionRequest{
		Domain:           "myblog.hostmarket.app",
		Username:         "hmmyblog7",
		DiskLimitMB:      5120,
		BandwidthLimitMB: 10240,
		RequestID:        "req-123",
	})
	require.NoError(t, err)

	assert.Equal(t, "/json-api/createacct", gotPath)
	assert.Equal(t, "whm root:secret-token", gotAuth)
	assert.Equal(t, []string{"myblog.hostmarket.app"}, gotQuery["domain"])
	assert.Equal(t, []string{"5120"}, gotQuery["quota"])
	assert.Equal(t, []string{"10240"}, gotQuery["bwlimit"])
}

func TestWHMClientSurfacesPanelRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"metadata": map[string]interface{}{"result": 0, "reason": "Account with that domain already exists"},
		})
	}))
	defer srv.Close()

	client := NewWHMClient(srv.URL, "t", time.Second)
	err := client.ProvisionAccount(context.Background(), ProvisionRequest{Domain: "dup.hostmarket.app"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestWHMClientSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewWHMClient(srv.URL, "t", time.Second)
	err := client.ProvisionAccount(context.Background(), ProvisionRequest{Domain: "x.hostmarket.app"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWHMClientAccountUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json-api/accountsummary", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"metadata": map[string]interface{}{"result": 1, "reason": "OK"},
			"data": map[string]interface{}{
				"acct": []map[string]interface{}{
					{"diskused": "1234M", "totalbw": "42M"},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewWHMClient(srv.URL, "t", time.Second)
	usage, err := client.AccountUsage(context.Background(), "myblog.hostmarket.app")
	require.NoError(t, err)

	assert.Equal(t, 1234, usage.DiskUsageMB)
	assert.Equal(t, 42, usage.BandwidthUsedMB)
}

func TestWHMClientTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewWHMClient(srv.URL, "t", 20*time.Millisecond)
	err := client.ProvisionAccount(context.Background(), ProvisionRequest{Domain: "slow.hostmarket.app"})
	require.Error(t, err, "panel calls must be bounded by a timeout")
}
