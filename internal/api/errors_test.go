package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostmarket/internal/hosterrors"
)

func invokeErrorMapping(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, writeDomainError(c, err))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestDomainErrorMapping(t *testing.T) {
	t.Run("validation errors become 400", func(t *testing.T) {
		code, body := invokeErrorMapping(t, hosterrors.ValidationError{Field: "subdomain", Reason: "too short"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "subdomain", body["field"])
	})

	t.Run("limit errors become 403 with counts", func(t *testing.T) {
		code, body := invokeErrorMapping(t, hosterrors.LimitExceededError{Resource: "devices", Current: 2, Max: 2})
		assert.Equal(t, http.StatusForbidden, code)

		want := map[string]interface{}{"current": float64(2), "max": float64(2)}
		got := map[string]interface{}{"current": body["current"], "max": body["max"]}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("limit payload mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("conflict errors become 409", func(t *testing.T) {
		code, _ := invokeErrorMapping(t, hosterrors.ConflictError{Resource: "domain", Value: "taken.hostmarket.app"})
		assert.Equal(t, http.StatusConflict, code)
	})

	t.Run("not found becomes 404", func(t *testing.T) {
		code, body := invokeErrorMapping(t, hosterrors.ErrNotFound)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "not found", body["error"])
	})

	t.Run("upstream errors become 502 without detail leakage", func(t *testing.T) {
		inner := errors.New("dial tcp 10.0.0.5:2087: connection refused")
		code, body := invokeErrorMapping(t, hosterrors.UpstreamUnavailableError{Upstream: "panel", Err: inner, Retryable: true})
		assert.Equal(t, http.StatusBadGateway, code)
		assert.Equal(t, true, body["retryable"])
		assert.NotContains(t, body["error"], "10.0.0.5")
	})

	t.Run("unknown errors become generic 500", func(t *testing.T) {
		code, body := invokeErrorMapping(t, errors.New("pq: relation users does not exist"))
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, "internal server error", body["error"])
	})
}
