package blobstore

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFns builds each Store implementation fresh per test.
var storeFns = map[string]func(t *testing.T) Store{
	"Memory": func(t *testing.T) Store {
		return NewMemoryStore()
	},
	"Local": func(t *testing.T) Store {
		s, err := NewLocalStore(t.TempDir())
		require.NoError(t, err)
		return s
	},
}

func TestStoreRoundTrip(t *testing.T) {
	for name, newStore := range storeFns {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			s := newStore(t)

			w, err := s.Create(ctx, "shards/000.codes")
			require.NoError(t, err)
			_, err = w.Write([]byte("hello "))
			require.NoError(t, err)
			_, err = w.Write([]byte("codes"))
			require.NoError(t, err)
			require.NoError(t, w.Close())

			b, err := s.Open(ctx, "shards/000.codes")
			require.NoError(t, err)
			defer b.Close()

			assert.Equal(t, int64(11), b.Size())

			buf := make([]byte, 5)
			n, err := b.ReadAt(buf, 6)
			require.NoError(t, err)
			assert.Equal(t, 5, n)
			assert.Equal(t, "codes", string(buf))

			if mb, ok := b.(Mappable); ok {
				data, err := mb.Bytes()
				require.NoError(t, err)
				assert.Equal(t, "hello codes", string(data))
			}
		})
	}
}

func TestStoreOpenMissing(t *testing.T) {
	for name, newStore := range storeFns {
		t.Run(name, func(t *testing.T) {
			_, err := newStore(t).Open(t.Context(), "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, newStore := range storeFns {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			s := newStore(t)

			w, err := s.Create(ctx, "a")
			require.NoError(t, err)
			require.NoError(t, w.Close())

			require.NoError(t, s.Delete(ctx, "a"))
			require.NoError(t, s.Delete(ctx, "a")) // missing is not an error

			_, err = s.Open(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreList(t *testing.T) {
	for name, newStore := range storeFns {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			s := newStore(t)

			for _, name := range []string{"shards/001", "shards/000", "manifest.json"} {
				w, err := s.Create(ctx, name)
				require.NoError(t, err)
				_, err = w.Write([]byte("x"))
				require.NoError(t, err)
				require.NoError(t, w.Close())
			}

			names, err := s.List(ctx, "shards/")
			require.NoError(t, err)
			assert.Equal(t, []string{"shards/000", "shards/001"}, names)

			all, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"manifest.json", "shards/000", "shards/001"}, all)
		})
	}
}

func TestStoreReadAtEOF(t *testing.T) {
	for name, newStore := range storeFns {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			s := newStore(t)

			w, err := s.Create(ctx, "short")
			require.NoError(t, err)
			_, err = w.Write([]byte("abc"))
			require.NoError(t, err)
			require.NoError(t, w.Close())

			b, err := s.Open(ctx, "short")
			require.NoError(t, err)
			defer b.Close()

			buf := make([]byte, 8)
			n, err := b.ReadAt(buf, 1)
			assert.ErrorIs(t, err, io.EOF)
			assert.Equal(t, 2, n)
		})
	}
}

func TestLocalCreateIsAtomic(t *testing.T) {
	ctx := t.Context()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	w, err := s.Create(ctx, "pending")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	// Not closed yet: invisible to Open and List.
	_, err = s.Open(ctx, "pending")
	assert.ErrorIs(t, err, ErrNotFound)

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Close())

	b, err := s.Open(ctx, "pending")
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, int64(7), b.Size())
}
