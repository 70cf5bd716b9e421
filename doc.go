// Package persist memoizes function results across process restarts.
//
// A wrapped function computes each distinct argument tuple once, stores
// the result durably under a derived key with a TTL, and answers
// subsequent equivalent calls from the store without running the
// function body.
//
//	store, err := backend.Open(ctx, backend.KindSQLite, path)
//	…
//	lookup := persist.Wrap(store, 12*time.Hour, fetchExchangeRate)
//
//	rate, err := lookup.Call(ctx, "EUR")    // computed, stored
//	rate, err = lookup.Call(ctx, "EUR")     // served from the store
//	rate, err = lookup.NoCache(ctx, "EUR")  // forced fresh, store untouched
//	err = lookup.Clear(ctx)                 // drop every entry of this function
//
// # Keys
//
// A key is the function identity (import-path-qualified name, or a
// WithName override) plus a 64-bit hash of the canonical msgpack
// encoding of the arguments. Equal argument tuples always derive the
// same key; map arguments are order-independent because the canonical
// encoding sorts map keys; positional order matters. Arguments must be
// msgpack-encodable, and results must be encodable by the chosen
// backend's codec — anything else surfaces as an error on the call, not
// a silent recompute.
//
// # Wrappers
//
// [Wrap0] through [Wrap3] cover zero to three arguments; beyond that,
// pass one struct argument. [WrapMethod] is the instance-scoped variant:
// the receiver's [Identifiable] CacheID partitions the cache per
// instance, [Method.Bind] lazily builds and reuses one wrapper per
// instance, [Method.Clear] purges every instance's entries (they share
// the method's key prefix) and [Method.ClearInstance] just one.
//
// # Expiry
//
// Each wrapper converts its TTL once at construction (zero means
// [DefaultTTL], one day). Entries past their expiry are treated as
// misses and overwritten in place on the next call — no background
// sweeper runs; the pcache CLI's prune command removes stale entries
// from disk.
//
// # Failure policy
//
// Backend and serialization errors propagate. A damaged store must not
// impersonate a cold one: silently recomputing would invisibly change
// performance and hide corruption. NoCache is the one call that cannot
// raise cache errors, because it never touches the store. Concurrent
// calls with equal arguments are not serialized; both may compute and
// write, the later write winning, which is benign for the pure
// functions this package is for.
package persist
