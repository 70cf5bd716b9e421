package persist

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cachekit/persist/backend"
)

// Identifiable supplies the owning-instance identity that partitions an
// instance-scoped cache. Implement it with a durable identifier (a row
// id, a path, a name) when entries should survive restarts; embed
// InstanceID when a process-lifetime identity is enough.
type Identifiable interface {
	CacheID() string
}

// InstanceID is an embeddable Identifiable. The id is generated on first
// use and stable for the life of the value, so every instance gets an
// isolated cache partition — but a fresh one each process run. It must be
// embedded and passed by pointer.
type InstanceID struct {
	once sync.Once
	id   string
}

func (i *InstanceID) CacheID() string {
	i.once.Do(func() { i.id = uuid.NewString() })
	return i.id
}

// Method is the instance-scoped variant of Func: the receiver's CacheID
// joins the function identity in every key, so two instances calling the
// same method with the same arguments never observe each other's cached
// value. Keys look like "identity#instanceID/arghash".
type Method[T Identifiable, A, R any] struct {
	core
	fn func(T, context.Context, A) (R, error)

	mu    sync.Mutex
	bound map[string]*Func[A, R]
}

// WrapMethod memoizes a method per receiver instance. The receiver-first
// signature is exactly what a method expression produces, so wrapping is
//
//	m := persist.WrapMethod(store, ttl, (*Repo).Describe)
//
// TTL and option semantics match Wrap.
func WrapMethod[T Identifiable, A, R any](store backend.Backend, ttl time.Duration, fn func(T, context.Context, A) (R, error), opts ...Option) *Method[T, A, R] {
	return &Method[T, A, R]{
		core:  newCore(store, newConfig(ttl, opts), fn),
		fn:    fn,
		bound: map[string]*Func[A, R]{},
	}
}

// Bind returns the per-instance wrapper for recv, constructing it on
// first access and reusing it afterwards. The binding table is keyed by
// CacheID, so rebinding the same instance is a map lookup, not a new
// wrapper. Bound wrappers are never evicted; dropping the instance leaves
// its entries in the store until cleared or expired.
func (m *Method[T, A, R]) Bind(recv T) *Func[A, R] {
	id := recv.CacheID()
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.bound[id]; ok {
		return f
	}
	f := &Func[A, R]{
		core: m.withIdentity(m.identity + "#" + id),
		fn: func(ctx context.Context, arg A) (R, error) {
			return m.fn(recv, ctx, arg)
		},
	}
	m.bound[id] = f
	return f
}

// Call is Bind(recv).Call(ctx, arg).
func (m *Method[T, A, R]) Call(ctx context.Context, recv T, arg A) (R, error) {
	return m.Bind(recv).Call(ctx, arg)
}

// NoCache invokes the method directly, bypassing the store entirely.
func (m *Method[T, A, R]) NoCache(ctx context.Context, recv T, arg A) (R, error) {
	return m.fn(recv, ctx, arg)
}

// Key returns the cache key Call would use for (recv, arg).
func (m *Method[T, A, R]) Key(recv T, arg A) (string, error) {
	return m.Bind(recv).Key(arg)
}

// Clear deletes the cached entries of every instance of this method.
// All instance partitions share the "identity#" prefix, so a single
// prefix delete is exact. Use ClearInstance for one instance.
func (m *Method[T, A, R]) Clear(ctx context.Context) error {
	n, err := m.store.DeletePrefix(ctx, m.identity+"#")
	if err != nil {
		return err
	}
	m.debugf("cleared %d entries for %s (all instances)", n, m.identity)
	return nil
}

// ClearInstance deletes the cached entries of a single instance.
func (m *Method[T, A, R]) ClearInstance(ctx context.Context, recv T) error {
	return m.Bind(recv).Clear(ctx)
}
