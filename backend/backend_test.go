package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// variants gives every test the full closed set of backends, each in its
// own temp location, with a reopen function to check durability.
type variant struct {
	name string
	path string
	open func() (Backend, error)
}

func allVariants(t *testing.T) []variant {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()
	return []variant{
		{
			name: "yaml",
			path: filepath.Join(dir, "data.yaml"),
			open: func() (Backend, error) { return NewYAML(filepath.Join(dir, "data.yaml")) },
		},
		{
			name: "msgpack",
			path: filepath.Join(dir, "data.msgpack"),
			open: func() (Backend, error) { return NewMsgpack(filepath.Join(dir, "data.msgpack")) },
		},
		{
			name: "sqlite",
			path: filepath.Join(dir, "data.db"),
			open: func() (Backend, error) { return NewSQLite(ctx, filepath.Join(dir, "data.db")) },
		},
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	expires := time.Now().Add(time.Hour).Truncate(0)
	for _, v := range allVariants(t) {
		t.Run(v.name, func(t *testing.T) {
			store, err := v.open()
			require.NoError(t, err)
			defer store.Close()

			assert.NoError(t, store.Put(ctx, "fn/1", []byte("payload"), expires))
			entry, found, err := store.Get(ctx, "fn/1")
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []byte("payload"), entry.Value)
			assert.WithinDuration(t, expires, entry.ExpiresAt, 0)
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	type result struct {
		Name  string
		Count int
		Tags  []string
	}
	ctx := context.Background()
	want := result{Name: "eu-west", Count: 3, Tags: []string{"a", "b"}}
	for _, v := range allVariants(t) {
		t.Run(v.name, func(t *testing.T) {
			store, err := v.open()
			require.NoError(t, err)
			defer store.Close()

			data, err := store.Codec().Marshal(want)
			require.NoError(t, err)
			require.NoError(t, store.Put(ctx, "fn/1", data, time.Now().Add(time.Hour)))

			entry, found, err := store.Get(ctx, "fn/1")
			require.NoError(t, err)
			require.True(t, found)
			var got result
			require.NoError(t, store.Codec().Unmarshal(entry.Value, &got))
			assert.Equal(t, want, got)
		})
	}
}

func TestGetAbsent(t *testing.T) {
	ctx := context.Background()
	for _, v := range allVariants(t) {
		t.Run(v.name, func(t *testing.T) {
			store, err := v.open()
			require.NoError(t, err)
			defer store.Close()

			_, found, err := store.Get(ctx, "missing")
			assert.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	for _, v := range allVariants(t) {
		t.Run(v.name, func(t *testing.T) {
			store, err := v.open()
			require.NoError(t, err)
			defer store.Close()

			first := time.Now().Add(time.Minute)
			second := time.Now().Add(time.Hour)
			require.NoError(t, store.Put(ctx, "fn/1", []byte("old"), first))
			require.NoError(t, store.Put(ctx, "fn/1", []byte("new"), second))

			entry, found, err := store.Get(ctx, "fn/1")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []byte("new"), entry.Value)
			assert.WithinDuration(t, second, entry.ExpiresAt, 0)
		})
	}
}

func TestDeleteReportsPresence(t *testing.T) {
	ctx := context.Background()
	for _, v := range allVariants(t) {
		t.Run(v.name, func(t *testing.T) {
			store, err := v.open()
			require.NoError(t, err)
			defer store.Close()

			ok, err := store.Delete(ctx, "fn/1")
			assert.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Put(ctx, "fn/1", []byte("x"), time.Now().Add(time.Hour)))
			ok, err = store.Delete(ctx, "fn/1")
			assert.NoError(t, err)
			assert.True(t, ok)

			_, found, err := store.Get(ctx, "fn/1")
			assert.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestDeletePrefixScopesToOwner(t *testing.T) {
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)
	for _, v := range allVariants(t) {
		t.Run(v.name, func(t *testing.T) {
			store, err := v.open()
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.Put(ctx, "pkg.Alpha/1", []byte("a1"), expires))
			require.NoError(t, store.Put(ctx, "pkg.Alpha/2", []byte("a2"), expires))
			require.NoError(t, store.Put(ctx, "pkg.Beta/1", []byte("b1"), expires))

			n, err := store.DeletePrefix(ctx, "pkg.Alpha/")
			assert.NoError(t, err)
			assert.Equal(t, 2, n)

			// The other function's entries survive.
			_, found, err := store.Get(ctx, "pkg.Beta/1")
			assert.NoError(t, err)
			assert.True(t, found)

			items, err := store.List(ctx, "pkg.Alpha/")
			assert.NoError(t, err)
			assert.Empty(t, items)
		})
	}
}

func TestListSortedAndRestartable(t *testing.T) {
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)
	for _, v := range allVariants(t) {
		t.Run(v.name, func(t *testing.T) {
			store, err := v.open()
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.Put(ctx, "fn/b", []byte("2"), expires))
			require.NoError(t, store.Put(ctx, "fn/a", []byte("1"), expires))
			require.NoError(t, store.Put(ctx, "other/z", []byte("3"), expires))

			items, err := store.List(ctx, "fn/")
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, "fn/a", items[0].Key)
			assert.Equal(t, "fn/b", items[1].Key)

			// Re-running reflects current state.
			_, err = store.Delete(ctx, "fn/a")
			require.NoError(t, err)
			items, err = store.List(ctx, "fn/")
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, "fn/b", items[0].Key)
		})
	}
}

func TestExpiredEntriesReturnedRaw(t *testing.T) {
	ctx := context.Background()
	for _, v := range allVariants(t) {
		t.Run(v.name, func(t *testing.T) {
			store, err := v.open()
			require.NoError(t, err)
			defer store.Close()

			past := time.Now().Add(-time.Hour)
			require.NoError(t, store.Put(ctx, "fn/1", []byte("stale"), past))

			// Liveness belongs to the caller: the entry still comes back.
			entry, found, err := store.Get(ctx, "fn/1")
			assert.NoError(t, err)
			assert.True(t, found)
			assert.True(t, entry.Expired(time.Now()))
			assert.Equal(t, []byte("stale"), entry.Value)
		})
	}
}

func TestReopenSeesDurableWrites(t *testing.T) {
	ctx := context.Background()
	expires := time.Now().Add(time.Hour).Truncate(0)
	for _, v := range allVariants(t) {
		t.Run(v.name, func(t *testing.T) {
			store, err := v.open()
			require.NoError(t, err)
			require.NoError(t, store.Put(ctx, "fn/1", []byte("durable"), expires))
			require.NoError(t, store.Close())

			reopened, err := v.open()
			require.NoError(t, err)
			defer reopened.Close()

			entry, found, err := reopened.Get(ctx, "fn/1")
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []byte("durable"), entry.Value)
			assert.WithinDuration(t, expires, entry.ExpiresAt, 0)
		})
	}
}

func TestOpenFactory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, kind := range []Kind{KindYAML, KindMsgpack, KindSQLite} {
		store, err := Open(ctx, kind, filepath.Join(dir, "store-"+string(kind)))
		require.NoError(t, err, kind)
		assert.NoError(t, store.Close())
	}

	_, err := Open(ctx, Kind("bolt"), filepath.Join(dir, "nope"))
	assert.Error(t, err)
}
