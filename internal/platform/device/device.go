// Package device derives a human-readable device name from a request's
// user-agent. The name travels with the request context and is stamped on
// audit events, so support staff can read "Chrome on Mac OS X" instead of a
// raw user-agent string.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent returns a display name of the form "<browser> on <os>".
// An empty user-agent yields "Unknown Device".
func ParseUserAgent(rawUserAgent string) string {
	if strings.TrimSpace(rawUserAgent) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUserAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	os := ua.OSInfo().Name
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}

	return strings.TrimSpace(browser + " on " + os)
}
