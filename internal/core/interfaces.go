package core

import (
	"context"
	"time"

	"outbreakwatch/internal/types"
)

// Authenticator resolves a bearer token to the calling Actor. It returns an
// AppError with auth_token_expired for expired credentials and
// auth_token_invalid for anything else it rejects.
type Authenticator interface {
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// RateLimitStore counts requests per key within a fixed window.
type RateLimitStore interface {
	// IncrementAndCheck counts one request for key and reports whether it is
	// within limit for the current window.
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)
}

// RateLimitResult is the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}
