package persist

import (
	"context"
	"os"
	"time"

	"github.com/cachekit/persist/backend"
)

// core carries everything a wrapper needs besides the wrapped function
// itself: the store, the resolved configuration, and the identity that
// prefixes every key this wrapper owns.
type core struct {
	store    backend.Backend
	cfg      config
	identity string
}

func newCore(store backend.Backend, cfg config, fn any) core {
	identity := cfg.name
	if identity == "" {
		identity = functionIdentity(fn)
	}
	return core{store: store, cfg: cfg, identity: identity}
}

func (c *core) withIdentity(identity string) core {
	return core{store: c.store, cfg: c.cfg, identity: identity}
}

// Identity returns the namespace prefix for this wrapper's keys.
func (c *core) Identity() string {
	return c.identity
}

// Clear deletes every entry belonging to this wrapper's function
// identity, across all argument tuples.
func (c *core) Clear(ctx context.Context) error {
	n, err := c.store.DeletePrefix(ctx, c.identity+"/")
	if err != nil {
		return err
	}
	c.debugf("cleared %d entries for %s", n, c.identity)
	return nil
}

func (c *core) key(args ...any) (string, error) {
	return deriveKey(c.identity, args)
}

func (c *core) debugf(format string, args ...any) {
	if c.cfg.logger != nil {
		c.cfg.logger.Debugf(format, args...)
	}
}

// lookup fetches a live cached value for key into out. Expired entries
// count as misses but are not deleted here: the following store
// overwrites them, keeping a miss at exactly one backend write.
func (c *core) lookup(ctx context.Context, key string, out any) (bool, error) {
	entry, found, err := c.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		c.debugf("miss %s", key)
		return false, nil
	}
	if entry.Expired(c.cfg.now()) {
		c.debugf("expired %s", key)
		return false, nil
	}
	if err := c.store.Codec().Unmarshal(entry.Value, out); err != nil {
		return false, err
	}
	c.debugf("hit %s", key)
	return true, nil
}

// save encodes v and writes it under key with this wrapper's TTL.
func (c *core) save(ctx context.Context, key string, v any) error {
	data, err := c.store.Codec().Marshal(v)
	if err != nil {
		return err
	}
	expiresAt := c.cfg.now().Add(c.cfg.ttl)
	if err := c.store.Put(ctx, key, data, expiresAt); err != nil {
		return err
	}
	c.debugf("stored %s until %s", key, expiresAt.Format("2006-01-02T15:04:05"))
	return nil
}

func (c *core) disabled() bool {
	return os.Getenv(EnvDisable) != ""
}

func (c *core) refresh() bool {
	return os.Getenv(EnvRefresh) != ""
}

// Func wraps a one-argument function. Multi-valued inputs beyond three
// arguments fit naturally as a single struct argument, which also gives
// the fields stable names in the canonical encoding.
type Func[A, R any] struct {
	core
	fn func(context.Context, A) (R, error)
}

// Wrap memoizes fn in store with the given TTL. A zero ttl falls back to
// DefaultTTL. Only successful results are cached; an error from fn is
// returned without touching the store.
//
// Backend and serialization failures propagate to the caller rather than
// degrading to recompute: a broken cache masquerading as a cold one would
// silently change performance and hide corruption.
func Wrap[A, R any](store backend.Backend, ttl time.Duration, fn func(context.Context, A) (R, error), opts ...Option) *Func[A, R] {
	return &Func[A, R]{core: newCore(store, newConfig(ttl, opts), fn), fn: fn}
}

// Call returns the cached result for arg, computing and storing it on a
// miss or after expiry. Two concurrent misses for the same key may both
// invoke fn and both write, the later write winning — benign as long as
// fn is a pure function of its arguments, which is the caller's contract.
func (f *Func[A, R]) Call(ctx context.Context, arg A) (R, error) {
	var zero R
	if f.disabled() {
		return f.fn(ctx, arg)
	}
	key, err := f.key(arg)
	if err != nil {
		return zero, err
	}
	if !f.refresh() {
		var out R
		hit, err := f.lookup(ctx, key, &out)
		if err != nil {
			return zero, err
		}
		if hit {
			return out, nil
		}
	}
	out, err := f.fn(ctx, arg)
	if err != nil {
		return zero, err
	}
	if err := f.save(ctx, key, out); err != nil {
		return zero, err
	}
	return out, nil
}

// NoCache invokes the wrapped function directly. It never reads or
// writes the store, so it cannot observe or raise cache failures.
func (f *Func[A, R]) NoCache(ctx context.Context, arg A) (R, error) {
	return f.fn(ctx, arg)
}

// Key returns the cache key Call would use for arg.
func (f *Func[A, R]) Key(arg A) (string, error) {
	return f.key(arg)
}

// Func0 wraps a zero-argument function.
type Func0[R any] struct {
	core
	fn func(context.Context) (R, error)
}

// Wrap0 memoizes a zero-argument function; see Wrap.
func Wrap0[R any](store backend.Backend, ttl time.Duration, fn func(context.Context) (R, error), opts ...Option) *Func0[R] {
	return &Func0[R]{core: newCore(store, newConfig(ttl, opts), fn), fn: fn}
}

func (f *Func0[R]) Call(ctx context.Context) (R, error) {
	var zero R
	if f.disabled() {
		return f.fn(ctx)
	}
	key, err := f.key()
	if err != nil {
		return zero, err
	}
	if !f.refresh() {
		var out R
		hit, err := f.lookup(ctx, key, &out)
		if err != nil {
			return zero, err
		}
		if hit {
			return out, nil
		}
	}
	out, err := f.fn(ctx)
	if err != nil {
		return zero, err
	}
	if err := f.save(ctx, key, out); err != nil {
		return zero, err
	}
	return out, nil
}

func (f *Func0[R]) NoCache(ctx context.Context) (R, error) {
	return f.fn(ctx)
}

func (f *Func0[R]) Key() (string, error) {
	return f.key()
}

// Func2 wraps a two-argument function.
type Func2[A, B, R any] struct {
	core
	fn func(context.Context, A, B) (R, error)
}

// Wrap2 memoizes a two-argument function; see Wrap.
func Wrap2[A, B, R any](store backend.Backend, ttl time.Duration, fn func(context.Context, A, B) (R, error), opts ...Option) *Func2[A, B, R] {
	return &Func2[A, B, R]{core: newCore(store, newConfig(ttl, opts), fn), fn: fn}
}

func (f *Func2[A, B, R]) Call(ctx context.Context, a A, b B) (R, error) {
	var zero R
	if f.disabled() {
		return f.fn(ctx, a, b)
	}
	key, err := f.key(a, b)
	if err != nil {
		return zero, err
	}
	if !f.refresh() {
		var out R
		hit, err := f.lookup(ctx, key, &out)
		if err != nil {
			return zero, err
		}
		if hit {
			return out, nil
		}
	}
	out, err := f.fn(ctx, a, b)
	if err != nil {
		return zero, err
	}
	if err := f.save(ctx, key, out); err != nil {
		return zero, err
	}
	return out, nil
}

func (f *Func2[A, B, R]) NoCache(ctx context.Context, a A, b B) (R, error) {
	return f.fn(ctx, a, b)
}

func (f *Func2[A, B, R]) Key(a A, b B) (string, error) {
	return f.key(a, b)
}

// Func3 wraps a three-argument function.
type Func3[A, B, C, R any] struct {
	core
	fn func(context.Context, A, B, C) (R, error)
}

// Wrap3 memoizes a three-argument function; see Wrap.
func Wrap3[A, B, C, R any](store backend.Backend, ttl time.Duration, fn func(context.Context, A, B, C) (R, error), opts ...Option) *Func3[A, B, C, R] {
	return &Func3[A, B, C, R]{core: newCore(store, newConfig(ttl, opts), fn), fn: fn}
}

func (f *Func3[A, B, C, R]) Call(ctx context.Context, a A, b B, c C) (R, error) {
	var zero R
	if f.disabled() {
		return f.fn(ctx, a, b, c)
	}
	key, err := f.key(a, b, c)
	if err != nil {
		return zero, err
	}
	if !f.refresh() {
		var out R
		hit, err := f.lookup(ctx, key, &out)
		if err != nil {
			return zero, err
		}
		if hit {
			return out, nil
		}
	}
	out, err := f.fn(ctx, a, b, c)
	if err != nil {
		return zero, err
	}
	if err := f.save(ctx, key, out); err != nil {
		return zero, err
	}
	return out, nil
}

func (f *Func3[A, B, C, R]) NoCache(ctx context.Context, a A, b B, c C) (R, error) {
	return f.fn(ctx, a, b, c)
}

func (f *Func3[A, B, C, R]) Key(a A, b B, c C) (string, error) {
	return f.key(a, b, c)
}
