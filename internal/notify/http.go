package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPNotifier posts messages as JSON to a notification gateway.
type HTTPNotifier struct {
	client  *http.Client
	url     string
	headers map[string]string
}

type HTTPOption func(*HTTPNotifier)

// WithClient sets the HTTP client (default: 10s timeout).
func WithClient(c *http.Client) HTTPOption {
	return func(n *HTTPNotifier) {
		n.client = c
	}
}

// WithHeader sets a header sent on every request (e.g. Authorization).
func WithHeader(key, value string) HTTPOption {
	return func(n *HTTPNotifier) {
		if n.headers == nil {
			n.headers = make(map[string]string)
		}
		n.headers[key] = value
	}
}

// NewHTTPNotifier returns a Notifier that POSTs Message as JSON to url.
func NewHTTPNotifier(url string, opts ...HTTPOption) *HTTPNotifier {
	n := &HTTPNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *HTTPNotifier) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification gateway returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Notifier = (*HTTPNotifier)(nil)
