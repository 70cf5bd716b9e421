package backend

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// docEntry is the persisted shape of one entry in a whole-document store.
type docEntry struct {
	Value     string    `yaml:"value" msgpack:"value"`
	ExpiresAt time.Time `yaml:"expires_at" msgpack:"expires_at"`
}

// format is how a whole-document variant encodes the document itself and
// the values inside it.
type format interface {
	Codec
	encodeDoc(doc map[string]docEntry) ([]byte, error)
	decodeDoc(data []byte) (map[string]docEntry, error)
}

// documentStore is the shared core of the YAML and msgpack variants: the
// whole store is one document, loaded on open and rewritten in full on
// every mutation. O(n) per write — fine for small caches, a documented
// scalability limit rather than one to engineer around.
//
// Writes go to a temp file in the same directory followed by a rename, so
// a crash mid-write leaves the previous document intact. A mutex
// serializes the read-modify-write cycle within the process.
type documentStore struct {
	path   string
	format format

	mu  sync.Mutex
	doc map[string]docEntry
}

var _ Backend = (*documentStore)(nil)

func openDocument(path string, f format) (*documentStore, error) {
	if path == "" {
		return nil, errors.New("backend: document store requires a path")
	}
	s := &documentStore{path: path, format: f, doc: map[string]docEntry{}}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Cold store; the file appears on first Put.
	case err != nil:
		return nil, errors.Wrapf(err, "backend: open %s", path)
	case len(data) > 0:
		doc, derr := f.decodeDoc(data)
		if derr != nil {
			return nil, errors.Mark(errors.Wrapf(derr, "backend: load %s", path), ErrCorrupted)
		}
		s.doc = doc
	}
	return s, nil
}

func (s *documentStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	de, ok := s.doc[key]
	if !ok {
		return Entry{}, false, nil
	}
	return entryOf(de), true, nil
}

func (s *documentStore) Put(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.doc[key]
	s.doc[key] = docEntry{Value: string(value), ExpiresAt: expiresAt}
	if err := s.flushLocked(); err != nil {
		// Keep memory and disk in agreement.
		if had {
			s.doc[key] = prev
		} else {
			delete(s.doc, key)
		}
		return err
	}
	return nil
}

func (s *documentStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.doc[key]
	if !ok {
		return false, nil
	}
	delete(s.doc, key)
	if err := s.flushLocked(); err != nil {
		s.doc[key] = prev
		return false, err
	}
	return true, nil
}

func (s *documentStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := map[string]docEntry{}
	for k, de := range s.doc {
		if strings.HasPrefix(k, prefix) {
			removed[k] = de
			delete(s.doc, k)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := s.flushLocked(); err != nil {
		for k, de := range removed {
			s.doc[k] = de
		}
		return 0, err
	}
	return len(removed), nil
}

func (s *documentStore) List(_ context.Context, prefix string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Item, 0, len(s.doc))
	for k, de := range s.doc {
		if strings.HasPrefix(k, prefix) {
			items = append(items, Item{Key: k, Entry: entryOf(de)})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, nil
}

func (s *documentStore) Codec() Codec {
	return s.format
}

func (s *documentStore) Close() error {
	// Every mutation flushes, so there is nothing pending.
	return nil
}

// flushLocked rewrites the whole document atomically. Callers hold s.mu.
func (s *documentStore) flushLocked() error {
	data, err := s.format.encodeDoc(s.doc)
	if err != nil {
		return errors.Wrapf(err, "backend: encode %s", s.path)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "backend: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "backend: write %s", s.path)
	}
	_, werr := tmp.Write(data)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(werr, "backend: write %s", s.path)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrapf(err, "backend: replace %s", s.path)
	}
	return nil
}

func entryOf(de docEntry) Entry {
	return Entry{Value: []byte(de.Value), ExpiresAt: de.ExpiresAt}
}
