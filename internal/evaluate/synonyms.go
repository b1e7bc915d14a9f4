package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SynonymSource resolves single-word synonyms for an expected answer.
type SynonymSource interface {
	Lookup(ctx context.Context, word string) ([]string, error)
}

// CachedSynonyms wraps a SynonymSource with a process-wide cache keyed by
// normalized word. Entries are immutable once computed, so the cache is
// shared across all sessions without invalidation. Concurrent misses for the
// same word are collapsed into one upstream call.
type CachedSynonyms struct {
	source SynonymSource
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string][]string
}

func NewCachedSynonyms(source SynonymSource) *CachedSynonyms {
	return &CachedSynonyms{
		source: source,
		cache:  map[string][]string{},
	}
}

func (c *CachedSynonyms) Lookup(ctx context.Context, word string) ([]string, error) {
	key := Normalize(word)

	c.mu.RLock()
	if syns, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return syns, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		if syns, ok := c.cache[key]; ok {
			c.mu.RUnlock()
			return syns, nil
		}
		c.mu.RUnlock()

		syns, err := c.source.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[key] = syns
		c.mu.Unlock()
		return syns, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// HTTPSynonyms looks synonyms up from a Datamuse-style endpoint that answers
// GET {base}?ml={word} with [{"word": "..."}].
type HTTPSynonyms struct {
	base   string
	client *http.Client
}

func NewHTTPSynonyms(base string) *HTTPSynonyms {
	return &HTTPSynonyms{
		base:   base,
		client: &http.Client{Timeout: 3 * time.Second},
	}
}

func (h *HTTPSynonyms) Lookup(ctx context.Context, word string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"?ml="+url.QueryEscape(word), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synonym lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synonym lookup: unexpected status %d", resp.StatusCode)
	}

	var entries []struct {
		Word string `json:"word"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("synonym lookup: decode: %w", err)
	}

	words := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Word != "" {
			words = append(words, entry.Word)
		}
	}
	return words, nil
}
