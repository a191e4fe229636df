package recognizer

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Charset maps CTC class indices to tokens. Class 0 is the blank, so
// token i is emitted for class i+1.
type Charset struct {
	Tokens []string
}

// LoadCharset reads a dictionary file with one token per line. Blank lines
// are skipped and a UTF-8 BOM on the first line is removed. A line holding
// a single space is kept as the space token.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() { _ = f.Close() }()

	tokens := make([]string, 0, 512)
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		if line != " " {
			line = strings.TrimSpace(line)
		}
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("dictionary is empty: %s", path)
	}
	return &Charset{Tokens: tokens}, nil
}

// Size returns the number of tokens, excluding the blank.
func (c *Charset) Size() int { return len(c.Tokens) }

// Decode maps collapsed class indices to text. Unknown indices are dropped.
func (c *Charset) Decode(classes []int) string {
	var b strings.Builder
	for _, idx := range classes {
		i := idx - 1
		if i >= 0 && i < len(c.Tokens) {
			b.WriteString(c.Tokens[i])
		}
	}
	return b.String()
}
