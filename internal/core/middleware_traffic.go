package core

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"outbreakwatch/internal/types"
)

const (
	rateLimitWindow         = time.Hour
	defaultRateLimitPerHour = 600
)

// RateLimit caps requests per caller per hour. The key is the actor ID, or
// the client IP when no actor is resolved. Store errors fail open.
//
// Every counted response carries X-RateLimit-Limit, X-RateLimit-Remaining
// and X-RateLimit-Reset; a 429 also carries Retry-After.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.RateLimitStore == nil || authPublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		limit := s.rateLimitPerHour()
		key := rateLimitKey(r)

		result, err := s.RateLimitStore.IncrementAndCheck(r.Context(), key, limit, rateLimitWindow)
		if err != nil {
			s.Logger.Error("rate limit store error",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, limit, result)

		if !result.Allowed {
			s.Logger.Warn("rate limit exceeded",
				slog.String("key", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			Error(w, r, types.NewAppError(types.ErrCodeRateLimit,
				"Rate limit exceeded. Please retry after the reset time.", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitPerHour() int {
	if s.Config != nil && s.Config.Server.RateLimitPerHour > 0 {
		return s.Config.Server.RateLimitPerHour
	}
	return defaultRateLimitPerHour
}

func rateLimitKey(r *http.Request) string {
	if actor, ok := types.GetActor(r.Context()); ok && actor.Type != types.ActorTypeSystem && actor.ID != "" {
		return "actor:" + actor.ID
	}
	return "ip:" + extractClientIP(r)
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, result RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// extractClientIP returns the first X-Forwarded-For entry, falling back to
// RemoteAddr without its port.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// MemoryRateLimitStore is a fixed-window counter held in process memory.
// Counts are per instance, which is acceptable for the single-task
// deployment the API runs as.
type MemoryRateLimitStore struct {
	clock types.Clock

	mu      sync.Mutex
	windows map[string]*rateWindow
	calls   int
}

type rateWindow struct {
	start time.Time
	count int
}

// pruneEvery controls how often expired windows are swept.
const pruneEvery = 1024

// NewMemoryRateLimitStore creates a store. A nil clock uses real time.
func NewMemoryRateLimitStore(clock types.Clock) *MemoryRateLimitStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryRateLimitStore{
		clock:   clock,
		windows: make(map[string]*rateWindow),
	}
}

// IncrementAndCheck implements RateLimitStore.
func (m *MemoryRateLimitStore) IncrementAndCheck(_ context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.calls%pruneEvery == 0 {
		m.prune(now, window)
	}

	win, ok := m.windows[key]
	if !ok || !now.Before(win.start.Add(window)) {
		win = &rateWindow{start: now.Truncate(window)}
		m.windows[key] = win
	}
	win.count++

	remaining := limit - win.count
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:   win.count <= limit,
		Remaining: remaining,
		ResetAt:   win.start.Add(window),
	}, nil
}

func (m *MemoryRateLimitStore) prune(now time.Time, window time.Duration) {
	for key, win := range m.windows {
		if !now.Before(win.start.Add(window)) {
			delete(m.windows, key)
		}
	}
}

// Len reports the number of tracked keys.
func (m *MemoryRateLimitStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
