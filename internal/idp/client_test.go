package idp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "carebridge/pkg/domain-errors"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	})
	raw, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

// newTestClient wires a Client against handler, with a token endpoint that
// counts how many times it was hit.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()

	var tokenCalls atomic.Int32
	token := signedToken(t, time.Now().Add(time.Hour))

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		json.NewEncoder(w).Encode(map[string]any{"access_token": token, "expires_in": 3600})
	})
	mux.HandleFunc("/", handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := New(Config{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/token",
		ClientID:     "client",
		ClientSecret: "secret",
		Scope:        "https://graph.test/.default",
		Issuer:       "carebridge.test",
	})
	return client, &tokenCalls
}

func TestCreateIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the provider-issued id", func(t *testing.T) {
		var seen createUserBody
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/users", r.URL.Path)
			assert.NotEmpty(t, r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "3c4f7a52-16a1-4a0c-9d9e-6f6a1f3b2c01"})
		})

		id, err := client.CreateIdentity(ctx, CreateIdentityRequest{
			FirstName:         "Astrid",
			LastName:          "Berg",
			Username:          "astrid.berg@example.no",
			SignInType:        "emailAddress",
			InitialSecret:     "Xy7abcDe",
			ForceSecretChange: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "3c4f7a52-16a1-4a0c-9d9e-6f6a1f3b2c01", id)

		assert.True(t, seen.AccountEnabled)
		assert.Equal(t, "Astrid Berg", seen.DisplayName)
		require.Len(t, seen.Identities, 1)
		assert.Equal(t, "emailAddress", seen.Identities[0].SignInType)
		assert.Equal(t, "carebridge.test", seen.Identities[0].Issuer)
		assert.Equal(t, "astrid.berg@example.no", seen.Identities[0].IssuerAssignedID)
		assert.True(t, seen.PasswordProfile.ForceChangePasswordNextSignIn)
		assert.Equal(t, "DisablePasswordExpiration", seen.PasswordPolicies)
	})

	t.Run("surfaces an in-band error despite a 2xx status", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "Request_BadRequest", "message": "another object with the same value for property userPrincipalName already exists"},
			})
		})

		_, err := client.CreateIdentity(ctx, CreateIdentityRequest{Username: "dup@example.no"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExternal))
		assert.Contains(t, err.Error(), "identity provider:")
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("surfaces the error envelope of a non-2xx response", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "insufficient privileges"},
			})
		})

		_, err := client.CreateIdentity(ctx, CreateIdentityRequest{Username: "x@example.no"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExternal))
		assert.Contains(t, err.Error(), "insufficient privileges")
	})

	t.Run("rejects a success response with no id", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{})
		})

		_, err := client.CreateIdentity(ctx, CreateIdentityRequest{Username: "x@example.no"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExternal))
	})
}

func TestDeleteIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes by provider id", func(t *testing.T) {
		var path string
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			path = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, client.DeleteIdentity(ctx, "abc-123"))
		assert.Equal(t, "/users/abc-123", path)
	})

	t.Run("treats a missing account as already deleted", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		assert.NoError(t, client.DeleteIdentity(ctx, "gone"))
	})

	t.Run("propagates other failures", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		err := client.DeleteIdentity(ctx, "abc-123")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExternal))
	})
}

func TestTokenCaching(t *testing.T) {
	ctx := context.Background()

	t.Run("reuses the cached token across calls", func(t *testing.T) {
		client, tokenCalls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"id": "11111111-1111-4111-8111-111111111111"})
		})

		for range 3 {
			_, err := client.CreateIdentity(ctx, CreateIdentityRequest{Username: "a@example.no"})
			require.NoError(t, err)
		}
		assert.Equal(t, int32(1), tokenCalls.Load())
	})

	t.Run("token endpoint failure aborts the call", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "invalid client secret"}})
		}))
		t.Cleanup(srv.Close)

		client := New(Config{BaseURL: srv.URL, TokenURL: srv.URL + "/token"})
		_, err := client.CreateIdentity(ctx, CreateIdentityRequest{Username: "a@example.no"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid client secret")
	})
}

func TestTokenExpiry(t *testing.T) {
	t.Run("prefers the exp claim of the token", func(t *testing.T) {
		exp := time.Now().Add(42 * time.Minute)
		got := tokenExpiry(signedToken(t, exp), 3600)
		assert.WithinDuration(t, exp, got, time.Second)
	})

	t.Run("falls back to expires_in for opaque tokens", func(t *testing.T) {
		got := tokenExpiry("opaque", 120)
		assert.WithinDuration(t, time.Now().Add(2*time.Minute), got, time.Second)
	})

	t.Run("applies the default lifetime when nothing is declared", func(t *testing.T) {
		got := tokenExpiry("opaque", 0)
		assert.WithinDuration(t, time.Now().Add(fallbackTTL), got, time.Second)
	})
}
