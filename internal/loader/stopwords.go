package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/tokenizer"
)

// StopWords reads a stop-word file, one word per line. Blank lines and lines
// starting with '#' are skipped. An empty path returns the built-in list.
func StopWords(path string) ([]string, error) {
	if path == "" {
		return tokenizer.DefaultStopWords(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop-word file: %w", err)
	}
	defer f.Close()
	words, err := ParseStopWords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return words, nil
}

func ParseStopWords(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, strings.ToLower(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading stop words: %w", err)
	}
	return words, nil
}

// Tokenizer builds the tokenizer for the stop-word file at path.
func Tokenizer(path string) (*tokenizer.Tokenizer, error) {
	words, err := StopWords(path)
	if err != nil {
		return nil, err
	}
	return tokenizer.New(words), nil
}
