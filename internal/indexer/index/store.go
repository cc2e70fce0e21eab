// Package index holds the in-memory inverted index: term postings, per-document
// term frequencies, document lengths and the document map. A Store is filled
// in one pass by Build and is read-only afterwards. It does no locking.
package index

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/errors"
)

type Store struct {
	postings    map[string]*roaring64.Bitmap
	termFreqs   map[int]map[string]int
	docLengths  map[int]int
	docs        map[int]Document
	totalLength int
}

func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset discards every structure, leaving an empty store.
func (s *Store) Reset() {
	s.postings = make(map[string]*roaring64.Bitmap)
	s.termFreqs = make(map[int]map[string]int)
	s.docLengths = make(map[int]int)
	s.docs = make(map[int]Document)
	s.totalLength = 0
}

// Build replaces the store's content with an index of docs. Previous content
// is discarded, never merged. Negative or duplicate IDs are rejected before
// anything is touched.
func (s *Store) Build(tok *tokenizer.Tokenizer, docs []Document) error {
	seen := make(map[int]struct{}, len(docs))
	for _, doc := range docs {
		if doc.ID < 0 {
			return apperrors.InvalidArgumentf("document id %d is negative", doc.ID)
		}
		if _, dup := seen[doc.ID]; dup {
			return apperrors.InvalidArgumentf("duplicate document id %d", doc.ID)
		}
		seen[doc.ID] = struct{}{}
	}

	s.Reset()
	for _, doc := range docs {
		s.addDocument(tok, doc)
	}
	return nil
}

func (s *Store) addDocument(tok *tokenizer.Tokenizer, doc Document) {
	terms := tok.Tokenize(doc.Text())
	freqs := make(map[string]int, len(terms))
	for _, term := range terms {
		freqs[term]++
		bm, ok := s.postings[term]
		if !ok {
			bm = roaring64.New()
			s.postings[term] = bm
		}
		bm.Add(uint64(doc.ID))
	}
	s.termFreqs[doc.ID] = freqs
	s.docLengths[doc.ID] = len(terms)
	s.docs[doc.ID] = doc
	s.totalLength += len(terms)
}

// Postings returns the IDs of documents containing term, ascending. The term
// must already be normalised.
func (s *Store) Postings(term string) PostingList {
	return postingList(s.postings[term])
}

// DocumentFrequency is the number of documents containing term.
func (s *Store) DocumentFrequency(term string) int {
	bm, ok := s.postings[term]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// TermFrequency is the count of term in document docID; 0 for unknown
// documents.
func (s *Store) TermFrequency(docID int, term string) int {
	return s.termFreqs[docID][term]
}

// TermFrequencies returns a copy of the term counts of docID, or nil when
// the document is unknown.
func (s *Store) TermFrequencies(docID int) map[string]int {
	freqs, ok := s.termFreqs[docID]
	if !ok {
		return nil
	}
	out := make(map[string]int, len(freqs))
	for term, n := range freqs {
		out[term] = n
	}
	return out
}

// DocumentLength is the token count of docID; 0 for unknown documents.
func (s *Store) DocumentLength(docID int) int {
	return s.docLengths[docID]
}

func (s *Store) Document(docID int) (Document, bool) {
	doc, ok := s.docs[docID]
	return doc, ok
}

func (s *Store) DocumentCount() int {
	return len(s.docs)
}

func (s *Store) TermCount() int {
	return len(s.postings)
}

// TotalLength is the sum of all document lengths.
func (s *Store) TotalLength() int {
	return s.totalLength
}

// DocumentIDs returns every indexed ID in ascending order.
func (s *Store) DocumentIDs() []int {
	ids := make([]int, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Terms returns the indexed vocabulary in lexical order.
func (s *Store) Terms() []string {
	terms := make([]string, 0, len(s.postings))
	for term := range s.postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Snapshot exposes the store's tables for persistence. The returned maps are
// shared with the store and must not be modified.
func (s *Store) Snapshot() *Snapshot {
	return &Snapshot{
		Postings:        s.postings,
		Documents:       s.docs,
		TermFrequencies: s.termFreqs,
		DocLengths:      s.docLengths,
	}
}

// FromSnapshot builds a Store from persisted tables after checking that they
// agree with one another. A snapshot whose tables disagree is reported as
// ErrCorruptState.
func FromSnapshot(snap *Snapshot) (*Store, error) {
	if err := validateSnapshot(snap); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptState, err)
	}
	s := &Store{
		postings:   snap.Postings,
		termFreqs:  snap.TermFrequencies,
		docLengths: snap.DocLengths,
		docs:       snap.Documents,
	}
	for _, n := range s.docLengths {
		s.totalLength += n
	}
	return s, nil
}

func validateSnapshot(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	if snap.Postings == nil || snap.Documents == nil || snap.TermFrequencies == nil || snap.DocLengths == nil {
		return fmt.Errorf("snapshot is missing a table")
	}
	n := len(snap.Documents)
	if len(snap.TermFrequencies) != n || len(snap.DocLengths) != n {
		return fmt.Errorf("table sizes disagree: %d documents, %d frequency rows, %d lengths",
			n, len(snap.TermFrequencies), len(snap.DocLengths))
	}
	for id, doc := range snap.Documents {
		if doc.ID != id {
			return fmt.Errorf("document keyed %d has id %d", id, doc.ID)
		}
		freqs, ok := snap.TermFrequencies[id]
		if !ok {
			return fmt.Errorf("document %d has no term frequencies", id)
		}
		length, ok := snap.DocLengths[id]
		if !ok {
			return fmt.Errorf("document %d has no length", id)
		}
		sum := 0
		for term, count := range freqs {
			bm, ok := snap.Postings[term]
			if !ok || !bm.Contains(uint64(id)) {
				return fmt.Errorf("term %q of document %d missing from postings", term, id)
			}
			sum += count
		}
		if sum != length {
			return fmt.Errorf("document %d length %d does not match term count %d", id, length, sum)
		}
	}
	for term, bm := range snap.Postings {
		if bm == nil || bm.IsEmpty() {
			return fmt.Errorf("term %q has an empty posting list", term)
		}
		it := bm.Iterator()
		for it.HasNext() {
			id := int(it.Next())
			if snap.TermFrequencies[id][term] == 0 {
				return fmt.Errorf("posting %d for term %q has no frequency", id, term)
			}
		}
	}
	return nil
}
