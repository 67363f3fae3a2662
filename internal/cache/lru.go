// Package cache memoizes tokenizer output in a bounded LRU.
package cache

import (
	"crypto/sha256"
	"slices"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fractal-lba/nbeval/pkg/text"
)

// DefaultSize bounds the number of memoized documents.
const DefaultSize = 16384

type key [sha256.Size]byte

// TokenCache wraps a Tokenizer and remembers the token sequence of recently
// seen documents. Keys hash the tokenizer signature with the text, so one
// cache never serves tokens produced under a different configuration.
//
// Safe for concurrent use.
type TokenCache struct {
	tokenizer *text.Tokenizer
	signature string
	cache     *lru.Cache[key, []string]
	hits      atomic.Uint64
	misses    atomic.Uint64
	evicted   atomic.Uint64
}

// NewTokenCache creates a cache holding at most size documents.
func NewTokenCache(tok *text.Tokenizer, size int) (*TokenCache, error) {
	c := &TokenCache{
		tokenizer: tok,
		signature: tok.Signature(),
	}

	cache, err := lru.NewWithEvict[key, []string](size, func(key, []string) {
		c.evicted.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.cache = cache
	return c, nil
}

// Tokenizer returns the wrapped tokenizer.
func (c *TokenCache) Tokenizer() *text.Tokenizer {
	return c.tokenizer
}

// Tokenize returns the tokens of doc, from the cache when possible. The
// returned slice is owned by the caller.
func (c *TokenCache) Tokenize(doc string) []string {
	k := c.key(doc)
	if tokens, ok := c.cache.Get(k); ok {
		c.hits.Add(1)
		return slices.Clone(tokens)
	}
	c.misses.Add(1)

	tokens := c.tokenizer.Tokenize(doc)
	c.cache.Add(k, slices.Clone(tokens))
	return tokens
}

// TokenizeAll tokenizes every document, preserving order.
func (c *TokenCache) TokenizeAll(docs []string) [][]string {
	out := make([][]string, len(docs))
	for i, doc := range docs {
		out[i] = c.Tokenize(doc)
	}
	return out
}

func (c *TokenCache) key(doc string) key {
	h := sha256.New()
	h.Write([]byte(c.signature))
	h.Write([]byte{0})
	h.Write([]byte(doc))
	var k key
	copy(k[:], h.Sum(nil))
	return k
}

// Len returns the number of memoized documents.
func (c *TokenCache) Len() int {
	return c.cache.Len()
}

// Purge drops every entry. Counters are kept.
func (c *TokenCache) Purge() {
	c.cache.Purge()
}

// Stats returns cache statistics for observability.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Evicted uint64  `json:"evicted"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns current cache statistics.
func (c *TokenCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()

	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:    hits,
		Misses:  misses,
		Evicted: c.evicted.Load(),
		Size:    c.cache.Len(),
		HitRate: hitRate,
	}
}

// ResetStats resets hit/miss/evicted counters to zero.
func (c *TokenCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evicted.Store(0)
}
