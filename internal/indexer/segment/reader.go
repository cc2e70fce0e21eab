package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/errors"
)

// Read loads the segment stored in dataDir. A missing or unreadable file is
// reported as ErrPersistenceUnavailable; anything malformed inside it as
// ErrCorruptState. No partial snapshot is ever returned.
func Read(dataDir string) (*index.Snapshot, Header, error) {
	path := filepath.Join(dataDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%w: reading %s: %v", apperrors.ErrPersistenceUnavailable, path, err)
	}
	snap, header, err := Decode(data)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%w: %s: %v", apperrors.ErrCorruptState, path, err)
	}
	return snap, header, nil
}

// Decode parses a complete segment image.
func Decode(data []byte) (*index.Snapshot, Header, error) {
	if len(data) < HeaderSize {
		return nil, Header{}, fmt.Errorf("truncated header: %d bytes", len(data))
	}
	header := Header{
		Magic:        binary.LittleEndian.Uint32(data[0:4]),
		Version:      binary.LittleEndian.Uint32(data[4:8]),
		SectionCount: binary.LittleEndian.Uint32(data[8:12]),
		DocCount:     binary.LittleEndian.Uint32(data[12:16]),
		CreatedAt:    int64(binary.LittleEndian.Uint64(data[16:24])),
	}
	if header.Magic != MagicBytes {
		return nil, Header{}, fmt.Errorf("bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, Header{}, fmt.Errorf("unsupported format version %d", header.Version)
	}
	if int(header.SectionCount) != len(sectionOrder) {
		return nil, Header{}, fmt.Errorf("expected %d sections, header declares %d", len(sectionOrder), header.SectionCount)
	}

	raw := make(map[SectionID][]byte, len(sectionOrder))
	offset := HeaderSize
	for i := 0; i < int(header.SectionCount); i++ {
		if len(data)-offset < SectionHeader {
			return nil, Header{}, fmt.Errorf("truncated section header at offset %d", offset)
		}
		id := SectionID(binary.LittleEndian.Uint32(data[offset : offset+4]))
		storedLen := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		rawLen := int(binary.LittleEndian.Uint32(data[offset+8 : offset+12]))
		checksum := binary.LittleEndian.Uint32(data[offset+12 : offset+16])
		offset += SectionHeader

		if storedLen > len(data)-offset {
			return nil, Header{}, fmt.Errorf("truncated %s section: want %d bytes, have %d", id, storedLen, len(data)-offset)
		}
		payload := data[offset : offset+storedLen]
		offset += storedLen
		if crc32.ChecksumIEEE(payload) != checksum {
			return nil, Header{}, fmt.Errorf("%s section checksum mismatch", id)
		}
		if _, dup := raw[id]; dup {
			return nil, Header{}, fmt.Errorf("duplicate %s section", id)
		}
		decoded, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, Header{}, fmt.Errorf("decompressing %s section: %w", id, err)
		}
		if len(decoded) != rawLen {
			return nil, Header{}, fmt.Errorf("%s section: got %d bytes, expected %d", id, len(decoded), rawLen)
		}
		raw[id] = decoded
	}
	if offset != len(data) {
		return nil, Header{}, fmt.Errorf("%d trailing bytes after last section", len(data)-offset)
	}
	for _, id := range sectionOrder {
		if _, ok := raw[id]; !ok {
			return nil, Header{}, fmt.Errorf("missing %s section", id)
		}
	}

	snap, err := decodeSections(raw)
	if err != nil {
		return nil, Header{}, err
	}
	if snap.DocumentCount() != int(header.DocCount) {
		return nil, Header{}, fmt.Errorf("header declares %d documents, found %d", header.DocCount, snap.DocumentCount())
	}
	return snap, header, nil
}

func decodeSections(raw map[SectionID][]byte) (*index.Snapshot, error) {
	var postings map[string][]byte
	snap := &index.Snapshot{}
	targets := map[SectionID]any{
		SectionPostings:        &postings,
		SectionDocuments:       &snap.Documents,
		SectionTermFrequencies: &snap.TermFrequencies,
		SectionDocLengths:      &snap.DocLengths,
	}
	for _, id := range sectionOrder {
		if err := decMode.Unmarshal(raw[id], targets[id]); err != nil {
			return nil, fmt.Errorf("decoding %s section: %w", id, err)
		}
	}

	snap.Postings = make(map[string]*roaring64.Bitmap, len(postings))
	for term, data := range postings {
		bm := roaring64.New()
		if err := bm.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("decoding postings for term %q: %w", term, err)
		}
		snap.Postings[term] = bm
	}
	// An empty map encodes as an empty CBOR map, but guard against nil for
	// callers that range over the tables.
	if snap.Documents == nil {
		snap.Documents = make(map[int]index.Document)
	}
	if snap.TermFrequencies == nil {
		snap.TermFrequencies = make(map[int]map[string]int)
	}
	if snap.DocLengths == nil {
		snap.DocLengths = make(map[int]int)
	}
	return snap, nil
}
