package manifest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pqscan"
	"github.com/hupe1980/pqscan/blobstore"
	"github.com/hupe1980/pqscan/codebook"
	"github.com/hupe1980/pqscan/shardio"
)

func testDataset(t *testing.T) *Dataset {
	t.Helper()

	cb := make(codebook.Codebook, 2)
	for s := range cb {
		cb[s] = make([][]float32, 4)
		for c := range cb[s] {
			cb[s][c] = []float32{float32(c), float32(c)}
		}
	}
	flat, err := codebook.Flatten(cb)
	require.NoError(t, err)

	return &Dataset{
		Flat: flat,
		Shards: []pqscan.Shard{
			{Codes: []byte{0, 0, 1, 1, 2, 2, 3, 3}, Offset: 0, Count: 4},
			{Codes: []byte{3, 3, 2, 2, 1, 1, 0, 0}, Offset: 4, Count: 4},
		},
		Facets: pqscan.FacetColumn{0, 1, 0, 1, 0, 1, 0, 1},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	ctx := t.Context()
	blobs := blobstore.NewMemoryStore()
	store := NewStore(blobs, nil)

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	m := &Manifest{Codebook: "codebook.bin", Facets: "facets.bin"}
	require.NoError(t, store.Save(ctx, m))
	assert.Equal(t, uint64(1), m.ID)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	// A second save advances the ID and flips the pointer.
	require.NoError(t, store.Save(ctx, &Manifest{Codebook: "cb2.bin"}))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.ID)
	assert.Equal(t, "cb2.bin", got.Codebook)
}

func TestWriteLoadDataset(t *testing.T) {
	ctx := t.Context()
	blobs := blobstore.NewMemoryStore()
	ds := testDataset(t)

	m, err := WriteDataset(ctx, blobs, ds, "v1/", shardio.CodecLZ4)
	require.NoError(t, err)
	require.Len(t, m.Shards, 2)
	assert.Equal(t, 8, m.TotalItems())

	got, err := LoadDataset(ctx, blobs, m)
	require.NoError(t, err)
	assert.Equal(t, ds.Flat, got.Flat)
	assert.Equal(t, ds.Shards, got.Shards)
	assert.Equal(t, ds.Facets, got.Facets)
}

func TestLoadDatasetMissingBlob(t *testing.T) {
	ctx := t.Context()
	blobs := blobstore.NewMemoryStore()
	ds := testDataset(t)

	m, err := WriteDataset(ctx, blobs, ds, "", shardio.CodecNone)
	require.NoError(t, err)

	require.NoError(t, blobs.Delete(ctx, m.Shards[1].Name))

	_, err = LoadDataset(ctx, blobs, m)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestLoadDatasetRangeMismatch(t *testing.T) {
	ctx := t.Context()
	blobs := blobstore.NewMemoryStore()
	ds := testDataset(t)

	m, err := WriteDataset(ctx, blobs, ds, "", shardio.CodecNone)
	require.NoError(t, err)

	m.Shards[0].Offset = 100

	_, err = LoadDataset(ctx, blobs, m)
	assert.ErrorContains(t, err, "disagrees with manifest")
}

func TestOpenEngine(t *testing.T) {
	ctx := t.Context()
	blobs := blobstore.NewMemoryStore()
	ds := testDataset(t)

	m, err := WriteDataset(ctx, blobs, ds, "", shardio.CodecZSTD)
	require.NoError(t, err)
	require.NoError(t, NewStore(blobs, nil).Save(ctx, m))

	e, err := OpenEngine(ctx, blobs, nil, pqscan.WithChunkSize(4))
	require.NoError(t, err)
	assert.Equal(t, 8, e.TotalItems())

	// Item 2 in the first shard and item 5 in the second are both coded
	// (2, 2); the query sits on that centroid.
	results, err := e.Query([]float32{2, 2, 2, 2}).KNN(2).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.ElementsMatch(t, []int{2, 5}, []int{results[0].Index, results[1].Index})
}

func TestOpenEngineUnpublished(t *testing.T) {
	_, err := OpenEngine(t.Context(), blobstore.NewMemoryStore(), nil)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func BenchmarkLoadDataset(b *testing.B) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()

	cb := make(codebook.Codebook, 8)
	for s := range cb {
		cb[s] = make([][]float32, 256)
		for c := range cb[s] {
			cb[s][c] = make([]float32, 4)
		}
	}
	flat, err := codebook.Flatten(cb)
	if err != nil {
		b.Fatal(err)
	}

	const items = 4096
	ds := &Dataset{
		Flat:   flat,
		Shards: []pqscan.Shard{{Codes: make([]byte, items*8), Offset: 0, Count: items}},
		Facets: make(pqscan.FacetColumn, items),
	}

	m, err := WriteDataset(ctx, blobs, ds, "", shardio.CodecLZ4)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := LoadDataset(ctx, blobs, m); err != nil {
			b.Fatal(err)
		}
	}
}
