// Package scoring implements the relevance functions used by the ranker:
// raw term frequency, classic smoothed IDF, TF-IDF and Okapi BM25. Every
// function is pure and reads only the index it is given.
package scoring

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/errors"
)

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Index is the read-only view of an inverted index the scoring functions
// need. Terms passed to it are already normalised.
type Index interface {
	TermFrequency(docID int, term string) int
	DocumentFrequency(term string) int
	DocumentLength(docID int) int
	DocumentCount() int
	TotalLength() int
}

// Params are the BM25 tunables: K1 controls term-frequency saturation and B
// the strength of document-length normalisation.
type Params struct {
	K1 float64
	B  float64
}

func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}

// Validate rejects tunables outside k1 >= 0 and 0 <= b <= 1, where the
// length normalisation can reach zero or go negative.
func (p Params) Validate() error {
	if p.K1 < 0 || math.IsNaN(p.K1) || math.IsInf(p.K1, 0) {
		return apperrors.InvalidArgumentf("k1 must be a non-negative number, got %v", p.K1)
	}
	if !(p.B >= 0 && p.B <= 1) {
		return apperrors.InvalidArgumentf("b must be within [0, 1], got %v", p.B)
	}
	return nil
}

// Scorer binds an Index to the tokenizer that produced it, so raw terms can
// be normalised the same way they were indexed.
type Scorer struct {
	idx Index
	tok *tokenizer.Tokenizer
}

func New(idx Index, tok *tokenizer.Tokenizer) *Scorer {
	return &Scorer{idx: idx, tok: tok}
}

// TermFrequency counts term in docID. term must normalise to exactly one
// token; unknown documents yield 0.
func (s *Scorer) TermFrequency(docID int, term string) (int, error) {
	normalized, err := s.tok.Single(term)
	if err != nil {
		return 0, err
	}
	return s.idx.TermFrequency(docID, normalized), nil
}

// DocumentFrequency is the number of documents containing the normalised
// single-token term.
func (s *Scorer) DocumentFrequency(term string) (int, error) {
	normalized, err := s.tok.Single(term)
	if err != nil {
		return 0, err
	}
	return s.idx.DocumentFrequency(normalized), nil
}

// IDF is ClassicIDF over the whole index for a single-token term.
func (s *Scorer) IDF(term string) (float64, error) {
	df, err := s.DocumentFrequency(term)
	if err != nil {
		return 0, err
	}
	return ClassicIDF(s.idx.DocumentCount(), df), nil
}

// TFIDF combines TermFrequency and IDF for one document.
func (s *Scorer) TFIDF(docID int, term string) (float64, error) {
	tf, err := s.TermFrequency(docID, term)
	if err != nil {
		return 0, err
	}
	idf, err := s.IDF(term)
	if err != nil {
		return 0, err
	}
	return TFIDF(tf, idf), nil
}

// BM25IDF is the BM25 inverse document frequency of a single-token term.
func (s *Scorer) BM25IDF(term string) (float64, error) {
	normalized, err := s.tok.Single(term)
	if err != nil {
		return 0, err
	}
	return BM25IDF(s.idx, normalized), nil
}

// BM25TF is the saturated, length-normalised frequency of a single-token
// term in docID.
func (s *Scorer) BM25TF(docID int, term string, p Params) (float64, error) {
	normalized, err := s.tok.Single(term)
	if err != nil {
		return 0, err
	}
	return BM25TF(s.idx, docID, normalized, p), nil
}

// BM25Score is BM25IDF * BM25TF for a single-token term.
func (s *Scorer) BM25Score(docID int, term string, p Params) (float64, error) {
	normalized, err := s.tok.Single(term)
	if err != nil {
		return 0, err
	}
	return BM25Score(s.idx, docID, normalized, p), nil
}

// ClassicIDF is ln((totalDocs+1)/(matchingDocs+1)). It is finite for every
// input and non-negative whenever matchingDocs <= totalDocs.
func ClassicIDF(totalDocs, matchingDocs int) float64 {
	return math.Log(float64(totalDocs+1) / float64(matchingDocs+1))
}

func TFIDF(tf int, idf float64) float64 {
	return float64(tf) * idf
}

// BM25IDF is ln((N-df+0.5)/(df+0.5)+1) for an already normalised term. It
// is not clamped and goes negative for very common terms.
func BM25IDF(idx Index, term string) float64 {
	n := float64(idx.DocumentCount())
	df := float64(idx.DocumentFrequency(term))
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

// AverageDocumentLength is the mean token count; 0 for an empty index.
func AverageDocumentLength(idx Index) float64 {
	n := idx.DocumentCount()
	if n == 0 {
		return 0
	}
	return float64(idx.TotalLength()) / float64(n)
}

// BM25TF is (tf*(k1+1)) / (tf + k1*norm) with
// norm = 1 - b + b*docLen/avgLen, or 1 when the average length is 0.
func BM25TF(idx Index, docID int, term string, p Params) float64 {
	tf := idx.TermFrequency(docID, term)
	return SaturatedTF(tf, idx.DocumentLength(docID), AverageDocumentLength(idx), p)
}

// SaturatedTF is the BM25 term-frequency component for explicit inputs.
func SaturatedTF(tf, docLen int, avgLen float64, p Params) float64 {
	if tf == 0 {
		return 0
	}
	lengthNorm := 1.0
	if avgLen > 0 {
		lengthNorm = 1 - p.B + p.B*(float64(docLen)/avgLen)
	}
	f := float64(tf)
	return (f * (p.K1 + 1)) / (f + p.K1*lengthNorm)
}

func BM25Score(idx Index, docID int, term string, p Params) float64 {
	return BM25IDF(idx, term) * BM25TF(idx, docID, term, p)
}
