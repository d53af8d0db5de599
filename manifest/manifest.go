// Package manifest describes a published dataset: which blobs hold the
// codebook, the shard codes and the facet column, and which manifest is
// current.
//
// Manifests are immutable JSON blobs named MANIFEST-%06d.json; publishing a
// new dataset version writes a new manifest and flips a version pointer.
// The pointer lives either in a CURRENT blob next to the manifests or, for
// object stores without atomic writes and multiple writers, in DynamoDB.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pqscan"
	"github.com/hupe1980/pqscan/blobstore"
	"github.com/hupe1980/pqscan/codebook"
	"github.com/hupe1980/pqscan/shardio"
)

const (
	// CurrentVersion is the manifest schema version this package writes.
	CurrentVersion = 1

	manifestNameFormat = "MANIFEST-%06d.json"
)

// Manifest lists the blobs of one dataset version.
type Manifest struct {
	Version  int         `json:"version"`
	ID       uint64      `json:"id"`
	Codebook string      `json:"codebook"`
	Facets   string      `json:"facets"`
	Shards   []ShardInfo `json:"shards"`
}

// ShardInfo names a shard code blob and its place in the logical item
// space. Offset and Count duplicate the blob header so a loader can size
// buffers without opening every blob.
type ShardInfo struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Count  int    `json:"count"`
}

// TotalItems returns the logical item span covered by the manifest.
func (m *Manifest) TotalItems() int {
	total := 0
	for _, si := range m.Shards {
		if end := si.Offset + si.Count; end > total {
			total = end
		}
	}
	return total
}

// Store reads and publishes manifests in a blob store.
type Store struct {
	blobs   blobstore.Store
	pointer Pointer
}

// NewStore creates a manifest store. If pointer is nil the CURRENT blob in
// the same store is used; that is safe for single-writer setups only.
func NewStore(blobs blobstore.Store, pointer Pointer) *Store {
	if pointer == nil {
		pointer = &blobPointer{blobs: blobs}
	}
	return &Store{blobs: blobs, pointer: pointer}
}

// Load reads the current manifest. Returns blobstore.ErrNotFound when no
// manifest has been published yet.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	name, err := s.pointer.Current(ctx)
	if err != nil {
		return nil, err
	}

	data, err := readAll(ctx, s.blobs, name)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("manifest %s: unsupported version %d", name, m.Version)
	}

	return &m, nil
}

// Save writes m as a new manifest blob and publishes it. The manifest ID is
// advanced past every already-stored manifest, so an interrupted earlier
// publish cannot be overwritten.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	m.Version = CurrentVersion

	last, err := s.lastStoredID(ctx)
	if err != nil {
		return err
	}
	m.ID = last + 1

	name := fmt.Sprintf(manifestNameFormat, m.ID)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	w, err := s.blobs.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return s.pointer.Publish(ctx, name)
}

func (s *Store) lastStoredID(ctx context.Context) (uint64, error) {
	names, err := s.blobs.List(ctx, "MANIFEST-")
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, nil
	}

	sort.Strings(names)
	var id uint64
	if _, err := fmt.Sscanf(names[len(names)-1], manifestNameFormat, &id); err != nil {
		return 0, fmt.Errorf("manifest name %s: %w", names[len(names)-1], err)
	}
	return id, nil
}

// Dataset is a fully loaded dataset version.
type Dataset struct {
	Flat   *codebook.Flat
	Shards []pqscan.Shard
	Facets pqscan.FacetColumn
}

// LoadDataset fetches and decodes every blob the manifest names, shards in
// parallel.
func LoadDataset(ctx context.Context, blobs blobstore.Store, m *Manifest) (*Dataset, error) {
	ds := &Dataset{
		Shards: make([]pqscan.Shard, len(m.Shards)),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b, err := blobs.Open(ctx, m.Codebook)
		if err != nil {
			return fmt.Errorf("codebook %s: %w", m.Codebook, err)
		}
		defer b.Close()

		ds.Flat, err = shardio.ReadCodebook(b, b.Size())
		return err
	})

	g.Go(func() error {
		b, err := blobs.Open(ctx, m.Facets)
		if err != nil {
			return fmt.Errorf("facets %s: %w", m.Facets, err)
		}
		defer b.Close()

		ds.Facets, err = shardio.ReadFacets(b, b.Size())
		return err
	})

	for i, si := range m.Shards {
		g.Go(func() error {
			b, err := blobs.Open(ctx, si.Name)
			if err != nil {
				return fmt.Errorf("shard %s: %w", si.Name, err)
			}
			defer b.Close()

			sh, err := shardio.ReadShard(b, b.Size())
			if err != nil {
				return err
			}
			if sh.Offset != si.Offset || sh.Count != si.Count {
				return fmt.Errorf("shard %s: blob range [%d,%d) disagrees with manifest [%d,%d)",
					si.Name, sh.Offset, sh.End(), si.Offset, si.Offset+si.Count)
			}

			ds.Shards[i] = sh
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ds, nil
}

// WriteDataset writes every dataset blob under the given prefix and returns
// a manifest naming them. The manifest still has to be saved to become
// visible to readers.
func WriteDataset(ctx context.Context, blobs blobstore.Store, ds *Dataset, prefix string, codec shardio.Codec) (*Manifest, error) {
	writeBlob := func(name string, write func(w io.Writer) error) error {
		w, err := blobs.Create(ctx, name)
		if err != nil {
			return err
		}
		if err := write(w); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	}

	m := &Manifest{
		Codebook: prefix + "codebook.bin",
		Facets:   prefix + "facets.bin",
	}

	if err := writeBlob(m.Codebook, func(w io.Writer) error {
		return shardio.WriteCodebook(w, ds.Flat, codec)
	}); err != nil {
		return nil, err
	}

	if err := writeBlob(m.Facets, func(w io.Writer) error {
		return shardio.WriteFacets(w, ds.Facets, codec)
	}); err != nil {
		return nil, err
	}

	for i, sh := range ds.Shards {
		name := fmt.Sprintf("%sshards/%06d.codes", prefix, i)
		if err := writeBlob(name, func(w io.Writer) error {
			return shardio.WriteShard(w, sh, ds.Flat.Shape.NumSubspaces, codec)
		}); err != nil {
			return nil, err
		}
		m.Shards = append(m.Shards, ShardInfo{
			Name:   name,
			Offset: sh.Offset,
			Count:  sh.Count,
		})
	}

	return m, nil
}

// OpenEngine loads the current dataset version and builds a scan engine
// from it.
func OpenEngine(ctx context.Context, blobs blobstore.Store, pointer Pointer, optFns ...pqscan.Option) (*pqscan.Engine, error) {
	m, err := NewStore(blobs, pointer).Load(ctx)
	if err != nil {
		return nil, err
	}

	ds, err := LoadDataset(ctx, blobs, m)
	if err != nil {
		return nil, err
	}

	return pqscan.NewFromFlat(ds.Flat, ds.Shards, ds.Facets, optFns...)
}

func readAll(ctx context.Context, blobs blobstore.Store, name string) ([]byte, error) {
	b, err := blobs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	data := make([]byte, b.Size())
	if _, err := b.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}
