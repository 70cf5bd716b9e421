package persist

import (
	"time"

	"github.com/apex/log"
)

// DefaultTTL is used when a wrapper is constructed with a zero or
// negative TTL.
const DefaultTTL = 24 * time.Hour

// Environment variables honored by Call on every invocation. Both are
// operator escape hatches, not configuration: set PCACHE_DISABLE to make
// every Call behave like NoCache, or PCACHE_REFRESH to skip the read and
// overwrite entries with fresh results.
const (
	EnvDisable = "PCACHE_DISABLE"
	EnvRefresh = "PCACHE_REFRESH"
)

type config struct {
	name   string
	ttl    time.Duration
	now    func() time.Time
	logger log.Interface
}

// Option configures a wrapper at construction time.
type Option func(*config)

// WithName overrides the derived function identity. Closures and method
// values get compiler-assigned names that shift when surrounding code
// moves, so give long-lived caches an explicit stable name.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithClock substitutes the time source used for expiry decisions.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithLogger enables debug logging of hits, misses, and stores. The
// wrapper is silent without it.
func WithLogger(l log.Interface) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(ttl time.Duration, opts []Option) config {
	cfg := config{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ttl <= 0 {
		cfg.ttl = DefaultTTL
	}
	return cfg
}
