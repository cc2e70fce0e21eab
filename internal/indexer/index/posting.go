package index

import "github.com/RoaringBitmap/roaring/v2/roaring64"

// Document is a record of the indexed collection. The store keeps the whole
// record so that ranked IDs can be resolved back to display data.
type Document struct {
	ID          int    `json:"id" cbor:"1,keyasint"`
	Title       string `json:"title" cbor:"2,keyasint"`
	Description string `json:"description" cbor:"3,keyasint"`
}

// Text is the string indexed for the document: title and description joined
// by a single space.
func (d Document) Text() string {
	return d.Title + " " + d.Description
}

// PostingList is the ascending, duplicate-free set of document IDs that
// contain a term.
type PostingList []int

// Snapshot is the full content of a Store, grouped the way the persistence
// layer writes it. The four tables must describe the same document-ID space.
type Snapshot struct {
	Postings        map[string]*roaring64.Bitmap
	Documents       map[int]Document
	TermFrequencies map[int]map[string]int
	DocLengths      map[int]int
}

// DocumentCount is the number of documents in the snapshot.
func (s *Snapshot) DocumentCount() int {
	return len(s.Documents)
}

func postingList(bm *roaring64.Bitmap) PostingList {
	if bm == nil || bm.IsEmpty() {
		return PostingList{}
	}
	ids := bm.ToArray()
	out := make(PostingList, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
