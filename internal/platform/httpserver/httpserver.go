// Package httpserver builds the HTTP server with the process-wide timeouts.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server. The write timeout is generous because a
// provisioning request waits on two external systems before answering.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
