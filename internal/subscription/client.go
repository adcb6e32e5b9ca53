// Package subscription talks to the external streaming subscription service.
//
// The service wraps its responses in a data envelope and reports domain
// errors inside an HTTP 200: the create-user call sets an error status field,
// the create-subscription call sets an error object. Both paths are checked
// on every call in addition to the transport status.
package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	dErrors "carebridge/pkg/domain-errors"
)

// Config carries the service endpoint.
type Config struct {
	// BaseURL is the service root, without trailing slash.
	BaseURL string
	// APIKey is sent on every request when set.
	APIKey  string
	Timeout time.Duration
}

// Client is an HTTP client for the subscription service.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
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
	return c
}

type serviceError struct {
	// ErrorMessage is set by the user endpoints, Message by the
	// subscription endpoints.
	ErrorMessage string `json:"errorMessage"`
	Message      string `json:"message"`
	Code         int    `json:"code"`
}

func (e *serviceError) text() string {
	if e.ErrorMessage != "" {
		return e.ErrorMessage
	}
	return e.Message
}

type envelope struct {
	Data struct {
		Status string        `json:"status"`
		Error  *serviceError `json:"error"`
	} `json:"data"`
}

// CreateUser registers the identity with the service. Must succeed before the
// identity can hold a subscription.
func (c *Client) CreateUser(ctx context.Context, userID string) error {
	q := url.Values{"country": {Country}, "userid": {userID}}
	target := c.cfg.BaseURL + "/user/create?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "subscription service: build request")
	}

	env, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	if env.Data.Status == "error" || env.Data.Error != nil {
		msg := "user creation failed"
		if env.Data.Error != nil {
			msg = env.Data.Error.text()
		}
		return dErrors.New(dErrors.CodeExternal, "subscription service: "+msg)
	}
	if c.log != nil {
		c.log.DebugContext(ctx, "subscription user created", "user_id", userID)
	}
	return nil
}

// CreateSubscription opens or renews the streaming subscription described by
// payload. The service treats a second call for the same user and period as a
// renewal, so retries are safe.
func (c *Client) CreateSubscription(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "subscription service: encode payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/user/unlimitedStreaming", bytes.NewReader(body))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "subscription service: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	if env.Data.Error != nil {
		return dErrors.New(dErrors.CodeExternal, "subscription service: "+env.Data.Error.text())
	}
	if c.log != nil {
		c.log.DebugContext(ctx, "subscription created",
			"user_id", payload.UserID, "expiry", payload.ExpiryDate)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req *http.Request) (*envelope, error) {
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "subscription service: "+req.Method+" "+req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, dErrors.New(dErrors.CodeExternal,
			fmt.Sprintf("subscription service: unexpected status %d", resp.StatusCode))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "subscription service: decode response")
	}
	return &env, nil
}
