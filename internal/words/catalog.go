// Package words holds the pool of drawable words offered to drawers.
package words

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// MinSize is the smallest catalog able to offer a full set of choices.
const MinSize = 3

var ErrTooSmall = errors.New("word catalog needs at least 3 distinct words")

// Rand is the random source used for sampling.
type Rand interface {
	IntN(n int) int
}

type Catalog struct {
	words []string
}

// New trims and de-duplicates words (case-insensitively, first spelling wins).
func New(words []string) (*Catalog, error) {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		k := strings.ToLower(w)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, w)
	}
	if len(out) < MinSize {
		return nil, fmt.Errorf("%w: got %d", ErrTooSmall, len(out))
	}
	return &Catalog{words: out}, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultWords)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads one word per line; blank lines and lines starting with # are skipped.
func Load(r io.Reader) (*Catalog, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	return New(words)
}

func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (c *Catalog) Len() int {
	return len(c.words)
}

func (c *Catalog) Contains(word string) bool {
	for _, w := range c.words {
		if strings.EqualFold(w, word) {
			return true
		}
	}
	return false
}

// Sample draws n distinct words without replacement (partial Fisher-Yates).
func (c *Catalog) Sample(n int, rng Rand) ([]string, error) {
	if n > len(c.words) {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrTooSmall, n, len(c.words))
	}
	pool := make([]string, len(c.words))
	copy(pool, c.words)
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n], nil
}
