// Package backend provides the durable key/value stores behind the
// persist wrappers.
//
// # Contract
//
// [Backend] is a key -> (value, expiry) mapping with Get, Put, Delete,
// DeletePrefix, and List. Entries come back raw: [Backend.Get] does not
// filter expired entries, so the wrapper layer owns liveness and the
// pcache CLI can display and prune stale entries. Put is atomic per key —
// the document variants write to a temp file and rename, the SQLite
// variant uses a transactional upsert — and durable before it returns.
//
// # Variants
//
// Three variants cover the built-in [Kind] set:
//
//   - [NewYAML] — one human-readable YAML document. Every write rewrites
//     the whole file, so it is O(n) per write and intended for small
//     caches you want to be able to read and edit by hand.
//
//   - [NewMsgpack] — the same whole-document model encoded as msgpack
//     ([github.com/vmihailenco/msgpack/v5]). Values are not readable, but
//     anything msgpack can represent round-trips, including []byte and
//     nested structs.
//
//   - [NewSQLite] — a SQLite database via [modernc.org/sqlite] (pure Go,
//     no CGO), one row per entry, WAL mode. Point lookups and per-key
//     overwrites without touching unrelated entries; the variant to use
//     for large or frequently written caches.
//
// [Open] selects a variant by [Kind] and is what decoration-time backend
// selection and the CLI go through. Anything else that implements
// [Backend] plugs into the wrapper layer the same way.
//
// # Errors
//
// A store that exists but cannot be decoded fails open with
// [ErrCorrupted] — it is never presented as an empty cache, because a
// cold cache and a damaged one call for different responses. A handle
// that cannot be acquired fails fast with a wrapped error; there is no
// silent fallback to an in-memory mode. [ErrEncode] and [ErrDecode] mark
// serialization failures and support errors.Is.
//
// # Concurrency
//
// All variants are safe for concurrent use within one process: the
// document variants hold a mutex across their read-modify-rewrite cycle,
// SQLite relies on the engine's transactions. Writers in different
// processes racing on a document store can lose updates; that limitation
// is accepted rather than solved here.
package backend
