// Package idp talks to the external identity provider's user management API.
//
// The provider signals failures two ways: transport-level (non-2xx status with
// an error envelope) and in-band (a 2xx response whose body carries an error
// object). CreateIdentity checks both; callers only see coded errors.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	dErrors "carebridge/pkg/domain-errors"
)

// Config carries the provider endpoints and client credentials.
type Config struct {
	// BaseURL is the user management REST endpoint, without trailing slash.
	BaseURL string
	// TokenURL issues client-credential access tokens.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	// Issuer is the directory domain recorded on each sign-in identity.
	Issuer  string
	Timeout time.Duration
}

// CreateIdentityRequest describes the account to create at the provider.
type CreateIdentityRequest struct {
	FirstName string
	LastName  string
	// Username is the issuer-assigned sign-in id: the consumer username or,
	// for every other role, the email address.
	Username   string
	SignInType string
	// InitialSecret is the secret the account starts with.
	InitialSecret string
	// ForceSecretChange makes the provider demand a new secret on first
	// sign-in. Off for consumers, who receive their credentials out of band.
	ForceSecretChange bool
}

// Client is an HTTP client for the identity provider.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens *tokenSource
	log    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Nil (the default) disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a Client from cfg. The zero Timeout defaults to 10s.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tokens = newTokenSource(cfg, c.http)
	return c
}

type signInIdentity struct {
	SignInType       string `json:"signInType"`
	Issuer           string `json:"issuer"`
	IssuerAssignedID string `json:"issuerAssignedId"`
}

type secretProfile struct {
	ForceChangePasswordNextSignIn bool   `json:"forceChangePasswordNextSignIn"`
	Password                      string `json:"password"`
}

type createUserBody struct {
	AccountEnabled   bool             `json:"accountEnabled"`
	DisplayName      string           `json:"displayName"`
	GivenName        string           `json:"givenName"`
	Surname          string           `json:"surname"`
	Identities       []signInIdentity `json:"identities"`
	PasswordProfile  secretProfile    `json:"passwordProfile"`
	PasswordPolicies string           `json:"passwordPolicies"`
}

type providerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type userResponse struct {
	ID    string         `json:"id"`
	Error *providerError `json:"error"`
}

// CreateIdentity creates an account at the provider and returns the
// provider-issued id. That id is the identity's id everywhere downstream.
func (c *Client) CreateIdentity(ctx context.Context, req CreateIdentityRequest) (string, error) {
	body := createUserBody{
		AccountEnabled: true,
		DisplayName:    req.FirstName + " " + req.LastName,
		GivenName:      req.FirstName,
		Surname:        req.LastName,
		Identities: []signInIdentity{{
			SignInType:       req.SignInType,
			Issuer:           c.cfg.Issuer,
			IssuerAssignedID: req.Username,
		}},
		PasswordProfile: secretProfile{
			ForceChangePasswordNextSignIn: req.ForceSecretChange,
			Password:                      req.InitialSecret,
		},
		PasswordPolicies: "DisablePasswordExpiration",
	}

	var out userResponse
	if err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/users", body, &out); err != nil {
		return "", err
	}
	if out.Error != nil {
		return "", dErrors.New(dErrors.CodeExternal, "identity provider: "+out.Error.Message)
	}
	if out.ID == "" {
		return "", dErrors.New(dErrors.CodeExternal, "identity provider: response carried no id")
	}
	if c.log != nil {
		c.log.DebugContext(ctx, "identity created at provider", "provider_id", out.ID)
	}
	return out.ID, nil
}

// DeleteIdentity removes the provider account. A missing account is treated
// as already deleted so compensating deletes stay idempotent.
func (c *Client) DeleteIdentity(ctx context.Context, providerID string) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.BaseURL+"/users/"+providerID, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "identity provider: build delete request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternal, "identity provider: delete identity")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, in, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "identity provider: encode request")
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "identity provider: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternal, "identity provider: "+method+" "+url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternal, "identity provider: decode response")
	}
	return nil
}

// errorFromResponse surfaces the provider's own error message when the body
// carries one, falling back to the HTTP status.
func errorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var envelope struct {
		Error *providerError `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return dErrors.New(dErrors.CodeExternal, "identity provider: "+envelope.Error.Message)
	}
	return dErrors.New(dErrors.CodeExternal, fmt.Sprintf("identity provider: unexpected status %d", resp.StatusCode))
}
