package ratelimit

import (
	"fmt"
	"net/http"
	"time"
)

// Rule binds a policy to how callers are identified and how a rejection reads.
type Rule struct {
	Policy Policy
	Key    KeyFunc
	Skip   func(r *http.Request) bool

	Title   string
	Message func(d Decision) string
	Hint    string

	// Detailed adds the current count and limit to rejection bodies.
	Detailed bool
}

// Rejection is the body returned when a rule rejects a request.
type Rejection struct {
	Error           string `json:"error"`
	Message         string `json:"message"`
	RetryAfter      int    `json:"retryAfter"`
	Window          string `json:"window,omitempty"`
	CurrentRequests *int   `json:"currentRequests,omitempty"`
	MaxRequests     *int   `json:"maxRequests,omitempty"`
	Hint            string `json:"hint,omitempty"`
}

// Reject builds the rejection body for a denied decision.
func (r Rule) Reject(d Decision) Rejection {
	out := Rejection{
		Error:      r.Title,
		RetryAfter: int(d.RetryAfter / time.Second),
		Hint:       r.Hint,
	}
	if r.Message != nil {
		out.Message = r.Message(d)
	}
	if r.Detailed {
		current, limit := d.Current, d.Limit
		out.CurrentRequests = &current
		out.MaxRequests = &limit
		out.Window = fmt.Sprintf("%ds", int(d.Window/time.Second))
	}
	return out
}

// Preset names.
const (
	NameBasic         = "basic"
	NameAnalysis      = "analysis"
	NameAuthenticated = "authenticated"
	NameSliding       = "sliding"
	NameProgressive   = "progressive"
	NameGitHubAPI     = "github-api"
)

// GitHubAPIKey is the single shared key the outbound GitHub budget counts against.
const GitHubAPIKey = "github-api"

// DefaultTiers are the progressive windows applied to general API traffic.
var DefaultTiers = []Tier{
	{Window: time.Minute, Limit: 20},
	{Window: 5 * time.Minute, Limit: 50},
	{Window: 15 * time.Minute, Limit: 100},
}

func fixedMessage(msg string) func(Decision) string {
	return func(Decision) string { return msg }
}

// Basic allows 100 requests per 15 minutes per client IP.
func Basic(store Store, opts ...Option) Rule {
	return Rule{
		Policy:  NewFixedWindow(NameBasic, store, 100, 15*time.Minute, opts...),
		Key:     IPOnly,
		Title:   "Too many requests",
		Message: fixedMessage("Rate limit exceeded. Please try again later."),
	}
}

// Analysis allows 5 analyses per 10 minutes per caller.
func Analysis(store Store, opts ...Option) Rule {
	return Rule{
		Policy:  NewFixedWindow(NameAnalysis, store, 5, 10*time.Minute, opts...),
		Key:     CallerKey,
		Title:   "Analysis rate limit exceeded",
		Message: fixedMessage("Repository analysis is resource-intensive. Please wait 10 minutes between analyses."),
		Hint:    "Consider upgrading to a premium API key for higher limits",
	}
}

// Authenticated allows 300 requests per 15 minutes per user. Premium callers are exempt.
func Authenticated(store Store, opts ...Option) Rule {
	return Rule{
		Policy:  NewFixedWindow(NameAuthenticated, store, 300, 15*time.Minute, opts...),
		Key:     UserOrIP,
		Skip:    IsPremium,
		Title:   "Too many requests",
		Message: fixedMessage("Authenticated user rate limit exceeded."),
	}
}

// Sliding allows max requests in any trailing window per caller.
func Sliding(store Store, max int, window time.Duration, opts ...Option) Rule {
	return Rule{
		Policy: NewSlidingWindow(NameSliding, store, max, window, opts...),
		Key:    CallerKey,
		Title:  "Too many requests",
		Message: func(d Decision) string {
			return fmt.Sprintf("Too many requests. Limit: %d per %d seconds", d.Limit, int(d.Window/time.Second))
		},
		Detailed: true,
	}
}

// ProgressiveTiers enforces the tiers at once per caller.
func ProgressiveTiers(store Store, tiers []Tier, opts ...Option) Rule {
	return Rule{
		Policy: NewProgressive(NameProgressive, store, tiers, opts...),
		Key:    CallerKey,
		Title:  "Too many requests",
		Message: func(d Decision) string {
			return fmt.Sprintf("Progressive rate limit exceeded: %d requests per %d seconds", d.Limit, int(d.Window/time.Second))
		},
		Detailed: true,
	}
}

// GitHubAPI caps the whole service at 4500 outbound-triggering requests per hour.
func GitHubAPI(store Store, budget int, opts ...Option) Rule {
	return Rule{
		Policy:  NewFixedWindow(NameGitHubAPI, store, budget, time.Hour, opts...),
		Key:     Global(GitHubAPIKey),
		Title:   "GitHub API rate limit approached",
		Message: fixedMessage("The service is approaching GitHub API rate limits. Please try again in an hour."),
		Hint:    "This limit protects the service for all users",
	}
}
