package segment

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/errors"
)

func sampleStore(t *testing.T, docs ...index.Document) *index.Store {
	t.Helper()
	if len(docs) == 0 {
		docs = []index.Document{
			{ID: 1, Title: "The Matrix", Description: "A hacker learns reality is a simulation"},
			{ID: 2, Title: "The Matrix Reloaded", Description: "Neo fights more machines"},
			{ID: 40, Title: "Alien", Description: "In space no one can hear you scream"},
		}
	}
	s := index.NewStore()
	require.NoError(t, s.Build(tokenizer.NewDefault(), docs))
	return s
}

func assertSameStore(t *testing.T, want, got *index.Store) {
	t.Helper()
	assert.Equal(t, want.Terms(), got.Terms())
	assert.Equal(t, want.DocumentIDs(), got.DocumentIDs())
	for _, term := range want.Terms() {
		assert.Equal(t, want.Postings(term), got.Postings(term), "postings for %q", term)
	}
	for _, id := range want.DocumentIDs() {
		wantDoc, _ := want.Document(id)
		gotDoc, ok := got.Document(id)
		assert.True(t, ok)
		assert.Equal(t, wantDoc, gotDoc)
		assert.Equal(t, want.TermFrequencies(id), got.TermFrequencies(id))
		assert.Equal(t, want.DocumentLength(id), got.DocumentLength(id))
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	store := sampleStore(t)

	path, err := NewWriter(dir).Write(store.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not survive a successful write")

	snap, header, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, header.Version)
	assert.Equal(t, uint32(3), header.DocCount)

	restored, err := index.FromSnapshot(snap)
	require.NoError(t, err)
	assertSameStore(t, store, restored)
}

func TestWriteEmptyStore(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(dir).Write(index.NewStore().Snapshot())
	require.NoError(t, err)

	snap, _, err := Read(dir)
	require.NoError(t, err)
	restored, err := index.FromSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, 0, restored.DocumentCount())
	assert.Equal(t, 0, restored.TermCount())
}

func TestWriteReplacesPreviousSegment(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	_, err := w.Write(sampleStore(t).Snapshot())
	require.NoError(t, err)

	small := sampleStore(t, index.Document{ID: 9, Title: "Heat"})
	_, err = w.Write(small.Snapshot())
	require.NoError(t, err)

	snap, _, err := Read(dir)
	require.NoError(t, err)
	restored, err := index.FromSnapshot(snap)
	require.NoError(t, err)
	assertSameStore(t, small, restored)
}

func TestReadMissingFile(t *testing.T) {
	_, _, err := Read(t.TempDir())
	assert.ErrorIs(t, err, apperrors.ErrPersistenceUnavailable)
}

func TestReadCorruptFile(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"empty", func(b []byte) []byte { return nil }},
		{"truncated header", func(b []byte) []byte { return b[:HeaderSize-1] }},
		{"truncated payload", func(b []byte) []byte { return b[:len(b)-3] }},
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xFF; return b }},
		{"future version", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[4:8], FormatVersion+1)
			return b
		}},
		{"flipped payload byte", func(b []byte) []byte { b[HeaderSize+SectionHeader] ^= 0x01; return b }},
		{"wrong doc count", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[12:16], 7)
			return b
		}},
		{"inflated raw length", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[HeaderSize+8:HeaderSize+12], 0xFFFFFF00)
			return b
		}},
		{"appended second image", func(b []byte) []byte { return append(b, b...) }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path, err := NewWriter(dir).Write(sampleStore(t).Snapshot())
			require.NoError(t, err)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, tc.mutate(data), 0o644))

			snap, _, err := Read(dir)
			assert.ErrorIs(t, err, apperrors.ErrCorruptState)
			assert.Nil(t, snap)
		})
	}
}

func TestSectionIDString(t *testing.T) {
	assert.Equal(t, "postings", SectionPostings.String())
	assert.Equal(t, "doc_lengths", SectionDocLengths.String())
	assert.Equal(t, "section(9)", SectionID(9).String())
}
