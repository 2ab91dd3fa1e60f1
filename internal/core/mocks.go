package core

import (
	"context"
	"sync"
	"time"

	"outbreakwatch/internal/types"
)

// MockAuthenticator implements Authenticator for tests. ResolveTokenFunc,
// when set, takes precedence over Actor and Err.
//
//	mock := &MockAuthenticator{
//	    Actor: &types.Actor{ID: "op-1", Type: types.ActorTypeOperator},
//	}
type MockAuthenticator struct {
	Actor            *types.Actor
	Err              error
	ResolveTokenFunc func(ctx context.Context, token string) (*types.Actor, error)

	mu    sync.Mutex
	Calls []string
}

// ResolveToken implements Authenticator.
func (m *MockAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	m.mu.Unlock()

	if m.ResolveTokenFunc != nil {
		return m.ResolveTokenFunc(ctx, token)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Actor, nil
}

// CallCount returns how many tokens were resolved.
func (m *MockAuthenticator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockRateLimitStore implements RateLimitStore for tests. With no Result or
// Err configured every request is allowed.
type MockRateLimitStore struct {
	Result *RateLimitResult
	Err    error

	mu   sync.Mutex
	Keys []string
}

// IncrementAndCheck implements RateLimitStore.
func (m *MockRateLimitStore) IncrementAndCheck(_ context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	m.mu.Lock()
	m.Keys = append(m.Keys, key)
	m.mu.Unlock()

	if m.Err != nil {
		return RateLimitResult{}, m.Err
	}
	if m.Result != nil {
		return *m.Result, nil
	}
	return RateLimitResult{Allowed: true, Remaining: limit - 1, ResetAt: time.Now().Add(window)}, nil
}

// MockMetricsCollector records RecordRequest calls.
type MockMetricsCollector struct {
	mu       sync.Mutex
	Requests []RecordedRequest
}

// RecordedRequest is one captured RecordRequest call.
type RecordedRequest struct {
	Method, Endpoint, Status string
	Duration                 time.Duration
}

// RecordRequest implements MetricsCollector.
func (m *MockMetricsCollector) RecordRequest(method, endpoint, status string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, RecordedRequest{method, endpoint, status, d})
}

// Recorded returns a copy of the captured calls.
func (m *MockMetricsCollector) Recorded() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.Requests...)
}
