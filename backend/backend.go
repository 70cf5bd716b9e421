package backend

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

// Kind selects one of the built-in store variants.
type Kind string

const (
	// KindYAML is the structured-text variant: one human-readable YAML
	// document holding every entry, rewritten in full on each write.
	KindYAML Kind = "yaml"
	// KindMsgpack is the binary variant: the same whole-document model,
	// but msgpack-encoded so any msgpack-representable value round-trips.
	KindMsgpack Kind = "msgpack"
	// KindSQLite is the relational variant: one row per entry with point
	// lookups and partial updates. The only variant suited to large or
	// frequently written caches.
	KindSQLite Kind = "sqlite"
)

var (
	// ErrCorrupted reports a store that exists on disk but cannot be
	// decoded. A corrupted store is never presented as an empty one; use
	// errors.Is to distinguish it from I/O failures.
	ErrCorrupted = errors.New("backend: store corrupted")

	// ErrEncode reports a value that the store's codec cannot encode.
	ErrEncode = errors.New("backend: value not encodable")

	// ErrDecode reports stored bytes that the store's codec cannot decode.
	ErrDecode = errors.New("backend: value not decodable")
)

// Entry is a stored value together with its absolute expiry. Get returns
// entries raw, including expired ones — liveness is the caller's decision.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry is stale at now.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Item pairs a key with its entry, for enumeration.
type Item struct {
	Key   string
	Entry Entry
}

// Codec encodes and decodes values for a particular store variant. The
// YAML variant stores values as YAML text; the msgpack and SQLite
// variants store msgpack bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Backend is a durable key -> (value, expiry) store. Implementations must
// make Put atomic with respect to a single key: a crash mid-write never
// leaves a partial entry observable on the next read. A Put that returns
// before a subsequent Get (same or new process) makes the new value
// visible.
//
// All built-in variants are safe for concurrent use within one process.
// Concurrent writers in different processes racing on the whole-document
// variants can lose updates; that is an accepted limitation. External
// stores can plug in by implementing this interface.
type Backend interface {
	// Get looks up a key. The returned entry is raw: expiration is not
	// checked here. found is false only on genuine absence; errors are
	// never folded into a miss.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Put durably stores or overwrites an entry.
	Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error

	// Delete removes one entry, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// DeletePrefix removes every entry whose key starts with prefix and
	// returns the number removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// List returns a snapshot of entries whose keys start with prefix
	// (all entries when prefix is empty), sorted by key. Re-calling it
	// re-reads current state.
	List(ctx context.Context, prefix string) ([]Item, error)

	// Codec returns the value codec for this store.
	Codec() Codec

	Close() error
}

// Open constructs the variant named by kind at path. An empty path for
// the SQLite variant opens an in-memory database; the document variants
// require a path.
func Open(ctx context.Context, kind Kind, path string) (Backend, error) {
	switch kind {
	case KindYAML:
		return NewYAML(path)
	case KindMsgpack:
		return NewMsgpack(path)
	case KindSQLite:
		return NewSQLite(ctx, path)
	default:
		return nil, errors.Newf("backend: unknown kind %q", kind)
	}
}

// DefaultPath returns the conventional on-disk location for a variant's
// store, creating the parent directory if needed. The stores live under
// the user cache dir, e.g. ~/.cache/persist/data.db on Linux.
func DefaultPath(kind Kind) (string, error) {
	var base string
	switch kind {
	case KindYAML:
		base = "data.yaml"
	case KindMsgpack:
		base = "data.msgpack"
	case KindSQLite:
		base = "data.db"
	default:
		return "", errors.Newf("backend: unknown kind %q", kind)
	}
	root, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, "backend: resolve user cache dir")
	}
	dir := filepath.Join(root, "persist")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "backend: create cache dir %s", dir)
	}
	return filepath.Join(dir, base), nil
}
