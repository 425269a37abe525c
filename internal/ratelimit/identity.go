package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// Request headers consulted when resolving a caller.
const (
	HeaderAPIKey   = "X-API-Key"
	HeaderUserID   = "X-User-ID"
	HeaderUserPlan = "X-User-Plan"
)

// KeyFunc maps a request to the caller key a policy counts against.
type KeyFunc func(r *http.Request) string

// ClientIP returns the first X-Forwarded-For hop, falling back to the connection address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// UserOrIP prefers the authenticated user id, then the client IP.
func UserOrIP(r *http.Request) string {
	if user := strings.TrimSpace(r.Header.Get(HeaderUserID)); user != "" {
		return "user:" + user
	}
	return "ip:" + ClientIP(r)
}

// CallerKey prefers an API key, then the user id, then the client IP.
func CallerKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); key != "" {
		return "key:" + key
	}
	return UserOrIP(r)
}

// IPOnly keys strictly on the client IP.
func IPOnly(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// Global counts every request against one shared key.
func Global(name string) KeyFunc {
	return func(*http.Request) string { return name }
}

// IsPremium reports whether the caller declared a premium plan.
func IsPremium(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderUserPlan)), "premium")
}
