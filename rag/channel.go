package rag

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Channel is one retrieval backend: a vector-similarity index, a keyword or
// web search service, or anything else that ranks documents for a query.
// Implementations must be safe to call concurrently from multiple runs.
type Channel interface {
	// Name identifies the channel; it is stamped into Document.Source.
	Name() string
	// Search returns up to limit documents ranked by relevance.
	Search(ctx context.Context, query string, limit int) ([]Document, error)
}

// MemoryChannel is an in-process channel over a fixed corpus, scored by
// query-term overlap. It backs local corpora on the CLI and deterministic
// fixtures in tests; production deployments plug real index clients into
// the Channel interface instead.
type MemoryChannel struct {
	name string

	mu   sync.RWMutex
	docs []Document
}

// NewMemoryChannel creates a channel over the given corpus.
func NewMemoryChannel(name string, docs []Document) *MemoryChannel {
	c := &MemoryChannel{name: name}
	c.Add(docs)
	return c
}

func (c *MemoryChannel) Name() string { return c.name }

// Add appends documents to the corpus.
func (c *MemoryChannel) Add(docs []Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		if d.Source == "" {
			d.Source = c.name
		}
		if d.ContentHash == "" {
			d.ContentHash = HashContent(d.Content)
		}
		c.docs = append(c.docs, d)
	}
}

// Search scores every corpus document by the fraction of query terms it
// contains and returns the top limit matches.
func (c *MemoryChannel) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := strings.Fields(NormalizeContent(query))
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	scored := make([]Document, 0, len(c.docs))
	for _, d := range c.docs {
		content := NormalizeContent(d.Content)
		hits := 0
		for _, t := range terms {
			if strings.Contains(content, t) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		d.RelevanceScore = float64(hits) / float64(len(terms))
		scored = append(scored, d)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RelevanceScore > scored[j].RelevanceScore
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
