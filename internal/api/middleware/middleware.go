// Package middleware provides the HTTP middleware chain: request ids, panic
// recovery, access logging and rate limiting.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/codegrade/internal/api/respond"
	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/internal/ratelimit"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// Rate limit response headers.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middleware so that the first one listed runs first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequestID assigns each request an id, echoes it in the response and attaches a
// request-scoped logger to the context.
func RequestID(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)
			reqLogger := logger.With("request_id", id, "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(respond.WithRequest(r.Context(), id, reqLogger)))
		})
	}
}

// statusRecorder remembers the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wrote {
		s.status, s.wrote = code, true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wrote {
		s.status, s.wrote = http.StatusOK, true
	}
	return s.ResponseWriter.Write(b)
}

// AccessLog logs each completed request.
func AccessLog() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			respond.Logger(r.Context()).Info("request completed",
				"status", rec.status, "duration_ms", time.Since(start).Milliseconds())
		})
	}
}

// Recover turns a panic into a 500 response.
func Recover(errs respond.Errors) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					respond.Logger(r.Context()).Error("panic serving request", "panic", v, "stack", string(debug.Stack()))
					errs.Error(w, r, apperrors.Internal(fmt.Errorf("panic: %v", v)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit admits requests through a limiter rule. A limiter failure lets the request through.
func RateLimit(rule ratelimit.Rule, errs respond.Errors) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rule.Skip != nil && rule.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			logger := respond.Logger(r.Context())
			key := rule.Key(r)
			d, err := rule.Policy.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", "policy", rule.Policy.Name(), "error", err)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set(HeaderLimit, strconv.Itoa(d.Limit))
			h.Set(HeaderRemaining, strconv.Itoa(max(d.Remaining, 0)))
			if !d.ResetTime.IsZero() {
				h.Set(HeaderReset, d.ResetTime.UTC().Format(time.RFC3339))
			}
			if !d.Allow {
				logger.Warn("rate limit exceeded", "policy", rule.Policy.Name(), "key", key,
					"retry_after_s", int(d.RetryAfter/time.Second))
				errs.Limited(w, r, rule.Reject(d))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
