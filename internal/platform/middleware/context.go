// Package middleware carries the HTTP middleware that feeds request-scoped
// values into the context the services read from.
package middleware

import (
	"net/http"
	"time"

	chimid "github.com/go-chi/chi/v5/middleware"

	"carebridge/internal/platform/device"
	id "carebridge/pkg/domain"
	"carebridge/pkg/requestcontext"
)

// ActorHeader names the header the edge proxy sets after authenticating the
// caller. The value is the acting identity's id.
const ActorHeader = "X-Actor-Id"

// RequestContext pins the request time and copies the request id, acting
// identity and device name into the context. It runs after chi's RequestID
// middleware so the ids agree with the access log.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ctx = requestcontext.WithTime(ctx, time.Now().UTC())
		if requestID := chimid.GetReqID(ctx); requestID != "" {
			ctx = requestcontext.WithRequestID(ctx, requestID)
		}
		ctx = requestcontext.WithDevice(ctx, device.ParseUserAgent(r.UserAgent()))

		if raw := r.Header.Get(ActorHeader); raw != "" {
			if actorID, err := id.ParseIdentityID(raw); err == nil {
				ctx = requestcontext.WithActorID(ctx, actorID)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
