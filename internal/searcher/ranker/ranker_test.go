package ranker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/scoring"
)

func corpus(t *testing.T, docs []index.Document) (*index.Store, *tokenizer.Tokenizer) {
	t.Helper()
	tok := tokenizer.NewDefault()
	s := index.NewStore()
	require.NoError(t, s.Build(tok, docs))
	return s, tok
}

func movies() []index.Document {
	return []index.Document{
		{ID: 1, Title: "The Matrix", Description: "A hacker learns reality is a simulation"},
		{ID: 2, Title: "The Matrix Reloaded", Description: "Neo fights more machines"},
		{ID: 3, Title: "Alien", Description: "A crew meets a hostile alien"},
		{ID: 4, Title: "Aliens", Description: "Marines fight aliens"},
		{ID: 5, Title: "Heat", Description: "A thief and a detective"},
		{ID: 6, Title: "The Terminator", Description: "A machine hunts a woman"},
	}
}

func TestSearchMatrixScenario(t *testing.T) {
	s, tok := corpus(t, movies()[:2])
	got := Search(s, tok, "matrix", 1, scoring.DefaultParams())
	require.Len(t, got, 1)
	// Both documents hold "matrix" once; the shorter one wins on length
	// normalisation.
	assert.Equal(t, 1, got[0].DocID)
	assert.InDelta(t, scoring.BM25Score(s, 1, "matrix", scoring.DefaultParams()), got[0].Score, 1e-12)
}

func TestSearchLimitAndOrdering(t *testing.T) {
	s, tok := corpus(t, movies())
	for _, query := range []string{"alien", "matrix machines", "fight alien matrix", "the a"} {
		for limit := 0; limit <= 7; limit++ {
			got := Search(s, tok, query, limit, scoring.DefaultParams())
			assert.LessOrEqual(t, len(got), limit)
			assert.True(t, isNonIncreasing(got), "query %q limit %d: %v", query, limit, got)
		}
	}
}

func isNonIncreasing(docs []ScoredDoc) bool {
	for i := 1; i < len(docs); i++ {
		if docs[i].Score > docs[i-1].Score {
			return false
		}
	}
	return true
}

func TestSearchAccumulatesAcrossTerms(t *testing.T) {
	s, tok := corpus(t, movies())
	p := scoring.DefaultParams()
	got := Search(s, tok, "matrix machines", 10, p)

	want := map[int]float64{
		1: scoring.BM25Score(s, 1, "matrix", p),
		2: scoring.BM25Score(s, 2, "matrix", p) + scoring.BM25Score(s, 2, "machin", p),
		6: scoring.BM25Score(s, 6, "machin", p),
	}
	require.Len(t, got, len(want))
	for _, d := range got {
		assert.InDelta(t, want[d.DocID], d.Score, 1e-12, "doc %d", d.DocID)
	}
	assert.Equal(t, 2, got[0].DocID)
}

func TestSearchRepeatedQueryTermCountsTwice(t *testing.T) {
	s, tok := corpus(t, movies())
	p := scoring.DefaultParams()
	once := Search(s, tok, "heat", 10, p)
	twice := Search(s, tok, "heat heat", 10, p)
	require.Len(t, once, 1)
	require.Len(t, twice, 1)
	assert.InDelta(t, 2*once[0].Score, twice[0].Score, 1e-12)
}

func TestSearchIsCommutativeAcrossTerms(t *testing.T) {
	s, tok := corpus(t, movies())
	p := scoring.DefaultParams()
	a := Search(s, tok, "alien matrix", 10, p)
	b := Search(s, tok, "matrix alien", 10, p)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].DocID, b[i].DocID)
		assert.InDelta(t, a[i].Score, b[i].Score, 1e-12)
	}
}

func TestSearchEmptyResults(t *testing.T) {
	s, tok := corpus(t, movies())
	assert.Empty(t, Search(s, tok, "", 5, scoring.DefaultParams()))
	assert.Empty(t, Search(s, tok, "the of a", 5, scoring.DefaultParams()))
	assert.Empty(t, Search(s, tok, "zeppelin", 5, scoring.DefaultParams()))
	assert.NotNil(t, Search(s, tok, "zeppelin", 5, scoring.DefaultParams()))

	empty, tok := corpus(t, nil)
	assert.Empty(t, Search(empty, tok, "matrix", 5, scoring.DefaultParams()))
}

func TestSearchTieBreaksOnAscendingID(t *testing.T) {
	docs := make([]index.Document, 0, 6)
	for _, id := range []int{42, 7, 19, 3, 100, 8} {
		docs = append(docs, index.Document{ID: id, Title: fmt.Sprintf("heist %d", id), Description: "crew"})
	}
	s, tok := corpus(t, docs)
	got := Search(s, tok, "heist crew", 10, scoring.DefaultParams())
	ids := make([]int, len(got))
	for i, d := range got {
		ids[i] = d.DocID
	}
	assert.Equal(t, []int{3, 7, 8, 19, 42, 100}, ids)
	assert.Equal(t, []int{3, 7}, idsOf(Search(s, tok, "heist crew", 2, scoring.DefaultParams())))
}

func idsOf(docs []ScoredDoc) []int {
	out := make([]int, len(docs))
	for i, d := range docs {
		out[i] = d.DocID
	}
	return out
}

func TestMatchTitles(t *testing.T) {
	s, _ := corpus(t, movies())

	got := MatchTitles(s, "ALIEN", 4)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].ID)
	assert.Equal(t, 4, got[1].ID)

	got = MatchTitles(s, "the", 4)
	assert.Equal(t, []int{1, 2, 6}, docIDs(got))

	got = MatchTitles(s, "e", 4)
	assert.Equal(t, []int{1, 2, 3, 4}, docIDs(got), "capped at max, ascending by id")

	assert.Empty(t, MatchTitles(s, "", 4))
	assert.Empty(t, MatchTitles(s, "matrix", 0))
}

func docIDs(docs []index.Document) []int {
	out := make([]int, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func BenchmarkSearch(b *testing.B) {
	tok := tokenizer.NewDefault()
	terms := []string{"distributed", "search", "analytics", "platform", "indexing", "query", "engine", "ranking"}
	docs := make([]index.Document, 5000)
	for i := range docs {
		docs[i] = index.Document{
			ID:          i,
			Title:       fmt.Sprintf("document about %s and %s", terms[i%len(terms)], terms[(i+1)%len(terms)]),
			Description: fmt.Sprintf("covers %s %s in production", terms[(i+2)%len(terms)], terms[(i+3)%len(terms)]),
		}
	}
	s := index.NewStore()
	if err := s.Build(tok, docs); err != nil {
		b.Fatal(err)
	}
	p := scoring.DefaultParams()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Search(s, tok, terms[i%len(terms)]+" "+terms[(i+3)%len(terms)], 10, p)
	}
}
