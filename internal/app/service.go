// Package service provides the core business service that implements
// the dependencies required by the HTML site and the JSON API.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/meradin/internal/adapters/upstream"
	"github.com/okian/meradin/internal/domain/birth"
	"github.com/okian/meradin/internal/domain/reading"
	"github.com/okian/meradin/internal/domain/readingcache"
	"github.com/okian/meradin/pkg/logger"
	"github.com/okian/meradin/pkg/metrics"
)

// Scorer is the scoring API as seen by the service.
type Scorer interface {
	Configured() bool
	Today(ctx context.Context, p birth.Person) (reading.Today, error)
	Compatibility(ctx context.Context, a, b birth.Person) (reading.Compatibility, error)
	MoonSign(ctx context.Context, q birth.MoonQuery) (reading.MoonSign, error)
}

// Service answers readings through the scoring API, backed by per-form
// reading caches.
type Service struct {
	mu sync.RWMutex

	// Core components
	scorer      Scorer
	todayCache  *readingcache.Cache[reading.Today]
	compatCache *readingcache.Cache[reading.Compatibility]
	moonCache   *readingcache.Cache[reading.MoonSign]

	// Configuration
	cacheSize int
	now       func() time.Time

	// State
	started   bool
	startedAt time.Time

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithScorer sets the scoring API client.
func WithScorer(scorer Scorer) Option {
	return func(s *Service) {
		if scorer != nil {
			s.scorer = scorer
		}
	}
}

// WithCacheSize bounds each reading cache; 0 disables caching.
func WithCacheSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.cacheSize = size
		}
	}
}

// WithClock sets the time source used for cache keys and date checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cacheSize: 1024,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.scorer == nil {
		s.scorer = upstream.New("", upstream.WithLogger(s.logger))
	}
	s.todayCache = readingcache.New[reading.Today](readingcache.WithMaxSize(s.cacheSize))
	s.compatCache = readingcache.New[reading.Compatibility](readingcache.WithMaxSize(s.cacheSize))
	s.moonCache = readingcache.New[reading.MoonSign](readingcache.WithMaxSize(s.cacheSize))

	return s
}

// Start marks the service ready.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "reading service started",
		logger.Bool("upstreamConfigured", s.scorer.Configured()),
		logger.Int("cacheSize", s.cacheSize),
	)
	return nil
}

// Stop marks the service stopped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "reading service stopped")
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }

// Configured reports whether the scoring API is reachable at all.
func (s *Service) Configured() bool { return s.scorer.Configured() }

// Today returns the daily reading for p, from cache when the same details
// were already scored today.
func (s *Service) Today(ctx context.Context, p birth.Person) (reading.Today, error) {
	p = birth.Normalize(p)
	return cached(ctx, s, s.todayCache, upstream.EndpointToday, p, func() (reading.Today, error) {
		return s.scorer.Today(ctx, p)
	})
}

// Compatibility returns the pairwise reading for a and b.
func (s *Service) Compatibility(ctx context.Context, a, b birth.Person) (reading.Compatibility, error) {
	a, b = birth.Normalize(a), birth.Normalize(b)
	return cached(ctx, s, s.compatCache, upstream.EndpointCompatibility, [2]birth.Person{a, b}, func() (reading.Compatibility, error) {
		return s.scorer.Compatibility(ctx, a, b)
	})
}

// MoonSign returns the natal Moon sign for q.
func (s *Service) MoonSign(ctx context.Context, q birth.MoonQuery) (reading.MoonSign, error) {
	q = birth.NormalizeMoon(q)
	return cached(ctx, s, s.moonCache, upstream.EndpointMoonSign, q, func() (reading.MoonSign, error) {
		return s.scorer.MoonSign(ctx, q)
	})
}

func cached[V any](ctx context.Context, s *Service, c *readingcache.Cache[V], form string, request any, fetch func() (V, error)) (V, error) {
	key := ""
	if c.Enabled() {
		key = readingcache.Key(form, birth.Today(s.now()), request)
	}
	if key != "" {
		if v, ok := c.Get(ctx, key); ok {
			metrics.RecordCacheHit(form)
			return v, nil
		}
		metrics.RecordCacheMiss(form)
	}

	v, err := fetch()
	if err != nil {
		return v, err
	}
	if key != "" {
		c.Put(ctx, key, v)
		metrics.UpdateCacheEntries(s.CacheEntries())
	}
	return v, nil
}

// CacheEntries returns the number of cached readings across forms.
func (s *Service) CacheEntries() int {
	return int(s.todayCache.Size() + s.compatCache.Size() + s.moonCache.Size())
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":             s.started,
		"upstream_configured": s.scorer.Configured(),
		"cache_size":          s.cacheSize,
		"cache_entries":       s.CacheEntries(),
	}
	if s.started {
		stats["uptime_seconds"] = int64(s.now().Sub(s.startedAt).Seconds())
	}
	return stats
}
