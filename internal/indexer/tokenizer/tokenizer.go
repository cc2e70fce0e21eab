// Package tokenizer turns raw text into index terms. It strips punctuation,
// lower-cases, splits on whitespace, drops stop-words and reduces each word
// to its Snowball (Porter2) English stem.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"

	apperrors "github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/errors"
)

// keepRune reports whether r survives stripping: Unicode letters, numbers,
// underscore and any Unicode whitespace.
func keepRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || unicode.IsSpace(r)
}

var defaultStopWords = []string{
	"a", "about", "after", "all", "also", "an", "and", "any", "are", "as", "at",
	"be", "been", "but", "by", "can", "could", "did", "do", "does", "for",
	"from", "had", "has", "have", "he", "her", "him", "his", "how", "i", "if",
	"in", "into", "is", "it", "its", "just", "me", "my", "no", "not", "of",
	"on", "one", "only", "or", "our", "out", "she", "so", "some", "than",
	"that", "the", "their", "them", "then", "there", "these", "they", "this",
	"to", "up", "us", "was", "we", "were", "what", "when", "where", "which",
	"who", "will", "with", "would", "you", "your",
}

// DefaultStopWords returns a copy of the built-in English stop-word list.
func DefaultStopWords() []string {
	out := make([]string, len(defaultStopWords))
	copy(out, defaultStopWords)
	return out
}

// Tokenizer is an immutable normalisation pipeline. The zero value has no
// stop-words; use New to supply a list.
type Tokenizer struct {
	stopWords map[string]struct{}
}

// New builds a Tokenizer whose stop-word set is the lower-cased contents of
// stopWords.
func New(stopWords []string) *Tokenizer {
	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		set[w] = struct{}{}
	}
	return &Tokenizer{stopWords: set}
}

// NewDefault is New(DefaultStopWords()).
func NewDefault() *Tokenizer {
	return New(defaultStopWords)
}

// Tokenize returns the ordered terms of text. Repeated words yield repeated
// terms.
func (t *Tokenizer) Tokenize(text string) []string {
	words := Split(text)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if t.IsStopWord(word) {
			continue
		}
		terms = append(terms, english.Stem(word, true))
	}
	return terms
}

// Single normalises term and returns its only resulting term. Input that
// yields zero terms, or more than one, is rejected with ErrInvalidArgument.
func (t *Tokenizer) Single(term string) (string, error) {
	terms := t.Tokenize(term)
	if len(terms) != 1 {
		return "", apperrors.InvalidArgumentf("term %q must normalize to exactly one token, got %d", term, len(terms))
	}
	return terms[0], nil
}

// IsStopWord reports whether the lower-cased word is in the stop-word set.
func (t *Tokenizer) IsStopWord(word string) bool {
	_, ok := t.stopWords[word]
	return ok
}

// StopWordCount returns the size of the stop-word set.
func (t *Tokenizer) StopWordCount() int {
	return len(t.stopWords)
}

// Split strips non-word characters, lower-cases and splits on whitespace. It
// performs no stop-word removal or stemming.
func Split(text string) []string {
	text = strings.Map(func(r rune) rune {
		if keepRune(r) {
			return r
		}
		return -1
	}, text)
	return strings.Fields(strings.ToLower(text))
}
