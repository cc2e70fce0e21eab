package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/index"
)

// Writer serialises index snapshots into a segment file in one directory.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes the segment into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Path is the location of the segment file.
func (w *Writer) Path() string {
	return filepath.Join(w.dataDir, FileName)
}

// Write replaces the segment with the given snapshot. It writes a .tmp file,
// syncs it and renames it over the final path, so a reader sees either the
// old file or the new one in full.
func (w *Writer) Write(snap *index.Snapshot) (string, error) {
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating index cache directory: %w", err)
	}
	sections, err := encodeSections(snap)
	if err != nil {
		return "", err
	}

	finalPath := w.Path()
	tmpPath := finalPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(headerBytes[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(headerBytes[8:12], uint32(len(sections)))
	binary.LittleEndian.PutUint32(headerBytes[12:16], uint32(snap.DocumentCount()))
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(time.Now().Unix()))
	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	for _, s := range sections {
		compressed := zstdEncoder.EncodeAll(s.raw, nil)
		sh := make([]byte, SectionHeader)
		binary.LittleEndian.PutUint32(sh[0:4], uint32(s.id))
		binary.LittleEndian.PutUint32(sh[4:8], uint32(len(compressed)))
		binary.LittleEndian.PutUint32(sh[8:12], uint32(len(s.raw)))
		binary.LittleEndian.PutUint32(sh[12:16], crc32.ChecksumIEEE(compressed))
		if _, err := f.Write(sh); err != nil {
			return "", fmt.Errorf("writing %s section header: %w", s.id, err)
		}
		if _, err := f.Write(compressed); err != nil {
			return "", fmt.Errorf("writing %s section: %w", s.id, err)
		}
	}

	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return finalPath, nil
}

type encodedSection struct {
	id  SectionID
	raw []byte
}

func encodeSections(snap *index.Snapshot) ([]encodedSection, error) {
	postings := make(map[string][]byte, len(snap.Postings))
	for term, bm := range snap.Postings {
		data, err := bm.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("serialising postings for term %q: %w", term, err)
		}
		postings[term] = data
	}
	values := map[SectionID]any{
		SectionPostings:        postings,
		SectionDocuments:       snap.Documents,
		SectionTermFrequencies: snap.TermFrequencies,
		SectionDocLengths:      snap.DocLengths,
	}
	out := make([]encodedSection, 0, len(sectionOrder))
	for _, id := range sectionOrder {
		raw, err := encMode.Marshal(values[id])
		if err != nil {
			return nil, fmt.Errorf("encoding %s section: %w", id, err)
		}
		out = append(out, encodedSection{id: id, raw: raw})
	}
	return out, nil
}
