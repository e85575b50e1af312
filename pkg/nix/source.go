package nix

import (
	"context"
	"sync"
	"time"

	"github.com/thesyncim/nixbrowser/pkg/nix/internal/clock"
)

// Source provides Info on demand.
type Source interface {
	Info(ctx context.Context) (*Info, error)
}

// RunnerSource queries nix through a Runner on every call.
type RunnerSource struct {
	Runner Runner
}

// Info implements Source.
func (s RunnerSource) Info(ctx context.Context) (*Info, error) {
	return FetchInfo(ctx, s.Runner)
}

// StaticSource always returns the same Info. Useful for demos and tests.
type StaticSource struct {
	Value *Info
}

// Info implements Source.
func (s StaticSource) Info(context.Context) (*Info, error) {
	return s.Value.Clone(), nil
}

// CachedSource memoises the last successful Info for TTL. Errors are never
// cached, the next call retries. Callers get deep copies and may modify them.
type CachedSource struct {
	src   Source
	ttl   time.Duration
	clock clock.Clock

	mu        sync.Mutex
	value     *Info
	fetchedAt time.Time
}

// CacheOption configures a CachedSource.
type CacheOption func(*CachedSource)

// withClock swaps the time source; only tests in this package need it.
func withClock(c clock.Clock) CacheOption {
	return func(s *CachedSource) { s.clock = c }
}

// NewCachedSource wraps src. A ttl <= 0 disables caching.
func NewCachedSource(src Source, ttl time.Duration, opts ...CacheOption) *CachedSource {
	s := &CachedSource{
		src:   src,
		ttl:   ttl,
		clock: clock.System{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Info implements Source.
func (s *CachedSource) Info(ctx context.Context) (*Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.value != nil && s.ttl > 0 && s.clock.Now().Sub(s.fetchedAt) < s.ttl {
		return s.value.Clone(), nil
	}

	info, err := s.src.Info(ctx)
	if err != nil {
		return nil, err
	}
	s.value = info.Clone()
	s.fetchedAt = s.clock.Now()
	return info, nil
}

// Invalidate drops the cached value.
func (s *CachedSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = nil
}
