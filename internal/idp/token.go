package idp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "carebridge/pkg/domain-errors"
)

// refreshSkew renews a token slightly before its expiry so requests in flight
// never carry a token that expires mid-call.
const refreshSkew = 30 * time.Second

// fallbackTTL is used when the token response declares no lifetime and the
// token itself is opaque.
const fallbackTTL = 5 * time.Minute

// tokenSource fetches and caches client-credential access tokens. It is safe
// for concurrent use; a fetch in progress blocks other callers so the
// provider sees at most one token request at a time.
type tokenSource struct {
	mu   sync.Mutex
	cfg  Config
	http *http.Client

	token     string
	expiresAt time.Time
}

func newTokenSource(cfg Config, client *http.Client) *tokenSource {
	return &tokenSource{cfg: cfg, http: client}
}

// Token returns a valid access token, fetching a fresh one when the cached
// token is absent or within refreshSkew of expiry.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expiresAt.Add(-refreshSkew)) {
		return ts.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {ts.cfg.ClientID},
		"client_secret": {ts.cfg.ClientSecret},
		"scope":         {ts.cfg.Scope},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "identity provider: build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.http.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeExternal, "identity provider: acquire token")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errorFromResponse(resp)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeExternal, "identity provider: decode token response")
	}
	if body.AccessToken == "" {
		return "", dErrors.New(dErrors.CodeExternal, "identity provider: token response carried no access token")
	}

	ts.token = body.AccessToken
	ts.expiresAt = tokenExpiry(body.AccessToken, body.ExpiresIn)
	return ts.token, nil
}

// tokenExpiry prefers the exp claim baked into the token over the declared
// expires_in, since the claim is what the provider actually enforces. The
// signature is not checked here; the token is only cached, never trusted.
func tokenExpiry(raw string, expiresIn int) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if expiresIn > 0 {
		return time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	return time.Now().Add(fallbackTTL)
}
