package subscription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "carebridge/pkg/domain-errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, APIKey: "test-key"})
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("sends country and user id", func(t *testing.T) {
		var seen *http.Request
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			seen = r.Clone(r.Context())
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"status": "ok"}})
		})

		require.NoError(t, client.CreateUser(ctx, "user-1"))
		assert.Equal(t, "/user/create", seen.URL.Path)
		assert.Equal(t, "NO", seen.URL.Query().Get("country"))
		assert.Equal(t, "user-1", seen.URL.Query().Get("userid"))
		assert.Equal(t, "test-key", seen.Header.Get("X-Api-Key"))
	})

	t.Run("surfaces the in-band error status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
				"status": "error",
				"error":  map[string]any{"errorMessage": "user already exists", "code": 1001},
			}})
		})

		err := client.CreateUser(ctx, "user-1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExternal))
		assert.Contains(t, err.Error(), "subscription service: user already exists")
	})

	t.Run("rejects non-2xx responses", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		err := client.CreateUser(ctx, "user-1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExternal))
	})
}

func TestCreateSubscription(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 10, 30, 45, 123_000_000, time.UTC)

	t.Run("posts the full plan payload", func(t *testing.T) {
		var seen Payload
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/user/unlimitedStreaming", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"status": "ok"}})
		})

		require.NoError(t, client.CreateSubscription(ctx, NewEnrollment("user-1", now)))
		assert.Equal(t, "NO", seen.Country)
		assert.Equal(t, "NOK", seen.Currency)
		assert.Equal(t, "premium-unlimited-streaming", seen.PlanCode)
		assert.Equal(t, "active", seen.Status)
		assert.Zero(t, seen.RecurringFee)
		assert.Equal(t, "user-1", seen.UserID)
		assert.Equal(t, "2026-03-15T10:30:45Z", seen.ActivatedAt)
		assert.Equal(t, "2026-03-15T10:30:45Z", seen.CurrentPeriodStartDate)
		assert.Equal(t, "2026-04-15T10:30:45Z", seen.ExpiryDate)
	})

	t.Run("surfaces the in-band error object", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
				"error": map[string]any{"message": "plan not available in country"},
			}})
		})

		err := client.CreateSubscription(ctx, NewEnrollment("user-1", now))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExternal))
		assert.Contains(t, err.Error(), "subscription service: plan not available in country")
	})
}

func TestPayload(t *testing.T) {
	t.Run("timestamps drop milliseconds and normalize to UTC", func(t *testing.T) {
		oslo, err := time.LoadLocation("Europe/Oslo")
		require.NoError(t, err)
		local := time.Date(2026, 6, 1, 14, 0, 0, 999_000_000, oslo)
		assert.Equal(t, "2026-06-01T12:00:00Z", FormatTimestamp(local))
	})

	t.Run("expiry is one calendar month out", func(t *testing.T) {
		start := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), ExpiryFrom(start))

		start = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC), ExpiryFrom(start))
	})

	t.Run("renewal keeps the original activation date", func(t *testing.T) {
		activated := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
		start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

		p := NewRenewal("user-1", activated, start)
		assert.Equal(t, "2025-12-01T00:00:00Z", p.ActivatedAt)
		assert.Equal(t, "2026-02-01T00:00:00Z", p.CurrentPeriodStartDate)
		assert.Equal(t, "2026-03-01T00:00:00Z", p.ExpiryDate)
	})
}
