package manifest

import (
	"context"
	"sort"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pqscan/blobstore"
)

// fakeDDB implements DDBClient over a map keyed by version.
type fakeDDB struct {
	rows map[uint64]string // version -> manifest name
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{rows: make(map[uint64]string)}
}

func (f *fakeDDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	version, err := strconv.ParseUint(in.Item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
	if err != nil {
		return nil, err
	}

	if _, exists := f.rows[version]; exists {
		return nil, &types.ConditionalCheckFailedException{}
	}

	f.rows[version] = in.Item["manifest"].(*types.AttributeValueMemberS).Value
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if len(f.rows) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}

	versions := make([]uint64, 0, len(f.rows))
	for v := range f.rows {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(a, b int) bool { return versions[a] > versions[b] })

	latest := versions[0]
	return &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{{
			"dataset":  &types.AttributeValueMemberS{Value: "test"},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(latest, 10)},
			"manifest": &types.AttributeValueMemberS{Value: f.rows[latest]},
		}},
	}, nil
}

func TestDDBPointer(t *testing.T) {
	ctx := t.Context()
	p := NewDDBPointer(newFakeDDB(), "commits", "test")

	_, err := p.Current(ctx)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, p.Publish(ctx, "MANIFEST-000001.json"))

	name, err := p.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000001.json", name)

	require.NoError(t, p.Publish(ctx, "MANIFEST-000002.json"))

	name, err = p.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000002.json", name)
}

// staleDDB serves reads that lag behind writes by hiding the newest row,
// mimicking a second publisher that committed between Query and PutItem.
type staleDDB struct {
	*fakeDDB
}

func (s *staleDDB) Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if len(s.rows) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}

	hidden := uint64(0)
	for v := range s.rows {
		if v > hidden {
			hidden = v
		}
	}
	name := s.rows[hidden]
	delete(s.rows, hidden)
	defer func() { s.rows[hidden] = name }()

	return s.fakeDDB.Query(ctx, in, optFns...)
}

func TestDDBPointerConcurrentPublish(t *testing.T) {
	ctx := t.Context()
	ddb := newFakeDDB()

	require.NoError(t, NewDDBPointer(ddb, "commits", "test").Publish(ctx, "MANIFEST-000001.json"))

	// A publisher with a stale view targets version 1 again and must lose
	// the conditional put.
	stale := NewDDBPointer(&staleDDB{fakeDDB: ddb}, "commits", "test")
	err := stale.Publish(ctx, "MANIFEST-000002.json")
	assert.ErrorIs(t, err, ErrConcurrentPublish)

	// The committed pointer is untouched.
	name, err := NewDDBPointer(ddb, "commits", "test").Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000001.json", name)
}

func TestStoreWithDDBPointer(t *testing.T) {
	ctx := t.Context()
	blobs := blobstore.NewMemoryStore()
	store := NewStore(blobs, NewDDBPointer(newFakeDDB(), "commits", "test"))

	require.NoError(t, store.Save(ctx, &Manifest{Codebook: "cb.bin"}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cb.bin", got.Codebook)
}
