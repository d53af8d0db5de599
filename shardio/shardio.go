// Package shardio reads and writes the on-disk blob format for shard
// artifacts: code blobs, facet columns and flattened codebooks.
//
// Every blob is a fixed 64-byte header followed by one payload, optionally
// compressed as a single block (see Codec). The header carries a CRC32C of
// the stored payload; readers verify it before decoding. Blobs are written
// once and never modified.
package shardio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/hupe1980/pqscan"
	"github.com/hupe1980/pqscan/codebook"
)

const (
	// Magic identifies a shard artifact blob ("PQSB").
	Magic = 0x42535150

	// Version is the current format version.
	Version = 1

	headerSize = 64
)

// Blob kinds.
const (
	kindCodes    uint8 = 1
	kindFacets   uint8 = 2
	kindCodebook uint8 = 3
)

var (
	// ErrInvalidMagic is returned when a blob does not start with Magic.
	ErrInvalidMagic = errors.New("shardio: invalid magic number")

	// ErrInvalidVersion is returned for unsupported format versions.
	ErrInvalidVersion = errors.New("shardio: unsupported version")

	// ErrChecksum is returned when the payload checksum does not match.
	ErrChecksum = errors.New("shardio: payload checksum mismatch")
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// header is the fixed preamble of every blob. Bytes 32..63 are kind
// specific.
type header struct {
	kind        uint8
	codec       Codec
	rawSize     uint64
	payloadSize uint64
	checksum    uint32

	// kind-specific fields
	numSubspaces uint32 // codes, codebook
	numCentroids uint32 // codebook
	subspaceDim  uint32 // codebook
	offset       uint64 // codes
	count        uint64 // codes, facets
}

func (h *header) encode() []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:], Magic)
	binary.LittleEndian.PutUint16(buf[4:], Version)
	buf[6] = h.kind
	buf[7] = uint8(h.codec)
	binary.LittleEndian.PutUint64(buf[8:], h.rawSize)
	binary.LittleEndian.PutUint64(buf[16:], h.payloadSize)
	binary.LittleEndian.PutUint32(buf[24:], h.checksum)
	binary.LittleEndian.PutUint32(buf[32:], h.numSubspaces)
	binary.LittleEndian.PutUint32(buf[36:], h.numCentroids)
	binary.LittleEndian.PutUint32(buf[40:], h.subspaceDim)
	binary.LittleEndian.PutUint64(buf[48:], h.offset)
	binary.LittleEndian.PutUint64(buf[56:], h.count)
	return buf
}

func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, errors.New("shardio: buffer too small for header")
	}
	if binary.LittleEndian.Uint32(buf[0:]) != Magic {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint16(buf[4:]); v != Version {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}

	return &header{
		kind:         buf[6],
		codec:        Codec(buf[7]),
		rawSize:      binary.LittleEndian.Uint64(buf[8:]),
		payloadSize:  binary.LittleEndian.Uint64(buf[16:]),
		checksum:     binary.LittleEndian.Uint32(buf[24:]),
		numSubspaces: binary.LittleEndian.Uint32(buf[32:]),
		numCentroids: binary.LittleEndian.Uint32(buf[36:]),
		subspaceDim:  binary.LittleEndian.Uint32(buf[40:]),
		offset:       binary.LittleEndian.Uint64(buf[48:]),
		count:        binary.LittleEndian.Uint64(buf[56:]),
	}, nil
}

func writeBlob(w io.Writer, h *header, raw []byte, codec Codec) error {
	payload, used, err := compress(raw, codec)
	if err != nil {
		return err
	}

	h.codec = used
	h.rawSize = uint64(len(raw))
	h.payloadSize = uint64(len(payload))
	h.checksum = crc32.Checksum(payload, crcTable)

	if _, err := w.Write(h.encode()); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func readBlob(r io.ReaderAt, size int64, wantKind uint8) (*header, []byte, error) {
	buf := make([]byte, headerSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, nil, err
	}

	h, err := decodeHeader(buf)
	if err != nil {
		return nil, nil, err
	}
	if h.kind != wantKind {
		return nil, nil, fmt.Errorf("shardio: unexpected blob kind %d", h.kind)
	}
	if int64(headerSize+h.payloadSize) > size {
		return nil, nil, errors.New("shardio: payload extends beyond blob")
	}

	payload := make([]byte, h.payloadSize)
	if h.payloadSize > 0 {
		if _, err := r.ReadAt(payload, headerSize); err != nil {
			return nil, nil, err
		}
	}
	if crc32.Checksum(payload, crcTable) != h.checksum {
		return nil, nil, ErrChecksum
	}

	raw, err := decompress(payload, h.codec, int(h.rawSize))
	if err != nil {
		return nil, nil, err
	}
	return h, raw, nil
}

// WriteShard writes a shard's code blob. numSubspaces must match the
// codebook the codes were quantized against.
func WriteShard(w io.Writer, sh pqscan.Shard, numSubspaces int, codec Codec) error {
	if want := sh.Count * numSubspaces; len(sh.Codes) != want {
		return fmt.Errorf("shardio: code buffer holds %d bytes, expected %d", len(sh.Codes), want)
	}

	h := &header{
		kind:         kindCodes,
		numSubspaces: uint32(numSubspaces),
		offset:       uint64(sh.Offset),
		count:        uint64(sh.Count),
	}
	return writeBlob(w, h, sh.Codes, codec)
}

// ReadShard reads a code blob back into a shard.
func ReadShard(r io.ReaderAt, size int64) (pqscan.Shard, error) {
	h, raw, err := readBlob(r, size, kindCodes)
	if err != nil {
		return pqscan.Shard{}, err
	}
	if uint64(len(raw)) != h.count*uint64(h.numSubspaces) {
		return pqscan.Shard{}, errors.New("shardio: code payload size mismatch")
	}

	return pqscan.Shard{
		Codes:  raw,
		Offset: int(h.offset),
		Count:  int(h.count),
	}, nil
}

// NumSubspaces reads just the subspace count of a code blob, letting a
// loader cross-check shards against the codebook without decoding payloads.
func NumSubspaces(r io.ReaderAt) (int, error) {
	buf := make([]byte, headerSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return 0, err
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return 0, err
	}
	if h.kind != kindCodes {
		return 0, fmt.Errorf("shardio: unexpected blob kind %d", h.kind)
	}
	return int(h.numSubspaces), nil
}

// WriteFacets writes a facet column blob.
func WriteFacets(w io.Writer, facets pqscan.FacetColumn, codec Codec) error {
	raw := make([]byte, 4*len(facets))
	for i, v := range facets {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}

	h := &header{
		kind:  kindFacets,
		count: uint64(len(facets)),
	}
	return writeBlob(w, h, raw, codec)
}

// ReadFacets reads a facet column blob.
func ReadFacets(r io.ReaderAt, size int64) (pqscan.FacetColumn, error) {
	h, raw, err := readBlob(r, size, kindFacets)
	if err != nil {
		return nil, err
	}
	if uint64(len(raw)) != 4*h.count {
		return nil, errors.New("shardio: facet payload size mismatch")
	}

	facets := make(pqscan.FacetColumn, h.count)
	for i := range facets {
		facets[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return facets, nil
}

// WriteCodebook writes a flattened codebook blob.
func WriteCodebook(w io.Writer, flat *codebook.Flat, codec Codec) error {
	raw := make([]byte, 4*len(flat.Data))
	for i, v := range flat.Data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}

	h := &header{
		kind:         kindCodebook,
		numSubspaces: uint32(flat.Shape.NumSubspaces),
		numCentroids: uint32(flat.Shape.NumCentroids),
		subspaceDim:  uint32(flat.Shape.SubspaceDim),
	}
	return writeBlob(w, h, raw, codec)
}

// ReadCodebook reads a flattened codebook blob.
func ReadCodebook(r io.ReaderAt, size int64) (*codebook.Flat, error) {
	h, raw, err := readBlob(r, size, kindCodebook)
	if err != nil {
		return nil, err
	}

	shape := codebook.Shape{
		NumSubspaces: int(h.numSubspaces),
		NumCentroids: int(h.numCentroids),
		SubspaceDim:  int(h.subspaceDim),
	}
	flatLen := shape.NumSubspaces * shape.NumCentroids * shape.SubspaceDim
	if len(raw) != 4*flatLen {
		return nil, errors.New("shardio: codebook payload size mismatch")
	}

	data := make([]float32, flatLen)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return &codebook.Flat{Data: data, Shape: shape}, nil
}
