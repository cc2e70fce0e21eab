package ranker

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/scoring"
)

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// Corpus is what the ranker reads: the scoring view plus posting lookup and
// document resolution.
type Corpus interface {
	scoring.Index
	Postings(term string) index.PostingList
	Document(docID int) (index.Document, bool)
	DocumentIDs() []int
}

// Rank accumulates the BM25 score of every query term into each document of
// that term's posting list, then returns the top limit documents by score.
// Query terms are used as given, so a repeated term counts twice. Equal
// scores are ordered by ascending document ID.
func Rank(c Corpus, queryTerms []string, limit int, p scoring.Params) []ScoredDoc {
	if limit <= 0 || len(queryTerms) == 0 {
		return []ScoredDoc{}
	}
	scores := make(map[int]float64)
	for _, term := range queryTerms {
		postings := c.Postings(term)
		if len(postings) == 0 {
			continue
		}
		idf := scoring.BM25IDF(c, term)
		for _, docID := range postings {
			scores[docID] += idf * scoring.BM25TF(c, docID, term, p)
		}
	}
	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{DocID: docID, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Search tokenizes query with tok and ranks it with Rank.
func Search(c Corpus, tok *tokenizer.Tokenizer, query string, limit int, p scoring.Params) []ScoredDoc {
	return Rank(c, tok.Tokenize(query), limit, p)
}

// MatchTitles is the unranked title lookup: a document matches when any raw
// query word is a substring of any raw title word. Words are only stripped
// and lower-cased, not stemmed or stop-word filtered. Matches are returned
// in ascending ID order, at most max of them.
func MatchTitles(c Corpus, query string, max int) []index.Document {
	queryWords := tokenizer.Split(query)
	if max <= 0 || len(queryWords) == 0 {
		return []index.Document{}
	}
	matches := make([]index.Document, 0, max)
	for _, id := range c.DocumentIDs() {
		doc, ok := c.Document(id)
		if !ok {
			continue
		}
		if titleMatches(tokenizer.Split(doc.Title), queryWords) {
			matches = append(matches, doc)
			if len(matches) == max {
				break
			}
		}
	}
	return matches
}

func titleMatches(titleWords, queryWords []string) bool {
	for _, q := range queryWords {
		for _, w := range titleWords {
			if strings.Contains(w, q) {
				return true
			}
		}
	}
	return false
}
