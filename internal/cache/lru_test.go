package cache

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/fractal-lba/nbeval/pkg/text"
)

func TestTokenCache_BasicOperations(t *testing.T) {
	tok := text.NewTokenizer(true, true, 2)
	c, err := NewTokenCache(tok, 8)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	doc := "The cats were running home"
	want := tok.Tokenize(doc)

	first := c.Tokenize(doc)
	second := c.Tokenize(doc)
	if !reflect.DeepEqual(first, want) || !reflect.DeepEqual(second, want) {
		t.Errorf("Tokenize = %v / %v, want %v", first, second, want)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", stats.HitRate)
	}
}

func TestTokenCache_CallerOwnsResult(t *testing.T) {
	c, err := NewTokenCache(text.NewTokenizer(false, false, 2), 8)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	got := c.Tokenize("alpha beta")
	got[0] = "mutated"

	again := c.Tokenize("alpha beta")
	if again[0] != "alpha" {
		t.Errorf("cached tokens were mutated through a returned slice: %v", again)
	}
}

func TestTokenCache_SignatureIsolation(t *testing.T) {
	// Same text, different configuration: keys must not collide.
	stemmed, _ := NewTokenCache(text.NewTokenizer(false, true, 2), 8)
	plain, _ := NewTokenCache(text.NewTokenizer(false, false, 2), 8)

	if stemmed.key("running") == plain.key("running") {
		t.Error("keys for different tokenizer signatures collide")
	}
	if got := stemmed.Tokenize("running"); got[0] != "run" {
		t.Errorf("stemmed = %v", got)
	}
	if got := plain.Tokenize("running"); got[0] != "running" {
		t.Errorf("plain = %v", got)
	}
}

func TestTokenCache_Eviction(t *testing.T) {
	c, err := NewTokenCache(text.NewTokenizer(false, false, 2), 3)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	for i := 0; i < 5; i++ {
		c.Tokenize(fmt.Sprintf("document %c", 'a'+i))
	}

	stats := c.Stats()
	if stats.Size != 3 {
		t.Errorf("Size = %d, want 3", stats.Size)
	}
	if stats.Evicted != 2 {
		t.Errorf("Evicted = %d, want 2", stats.Evicted)
	}

	c.ResetStats()
	if s := c.Stats(); s.Hits != 0 || s.Misses != 0 || s.Evicted != 0 {
		t.Errorf("stats not reset: %+v", s)
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len after Purge = %d", c.Len())
	}
}

func TestTokenCache_InvalidSize(t *testing.T) {
	if _, err := NewTokenCache(text.NewTokenizer(false, false, 2), 0); err == nil {
		t.Error("expected error for size 0")
	}
}

func TestTokenCache_Concurrent(t *testing.T) {
	c, err := NewTokenCache(text.NewTokenizer(true, true, 2), 64)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	docs := []string{"free prize money", "meeting at noon", "win a free cruise", "lunch tomorrow"}
	want := make([][]string, len(docs))
	for i, d := range docs {
		want[i] = c.Tokenizer().Tokenize(d)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := c.TokenizeAll(docs)
			for i := range docs {
				if !reflect.DeepEqual(got[i], want[i]) {
					t.Errorf("doc %d: got %v, want %v", i, got[i], want[i])
				}
			}
		}()
	}
	wg.Wait()

	if s := c.Stats(); s.Hits+s.Misses != 8*uint64(len(docs)) {
		t.Errorf("lookups = %d, want %d", s.Hits+s.Misses, 8*len(docs))
	}
}
