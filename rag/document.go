package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Document is one retrieved context item. Documents are immutable once
// created and owned by the single run state that holds them.
type Document struct {
	Content        string  `json:"content"`
	Source         string  `json:"source"`
	RelevanceScore float64 `json:"relevance_score"`
	// ContentHash is the stable hash of the normalized content, used for
	// deduplication. Channels may leave it empty; Fuse fills it in.
	ContentHash string `json:"content_hash"`
}

// NormalizeContent lowercases text and collapses runs of whitespace so that
// trivially reformatted copies of the same passage hash identically.
func NormalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// HashContent returns the dedup hash of a document's content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(NormalizeContent(content)))
	return hex.EncodeToString(sum[:])
}

// NormalizeQuery derives the cache key form of a user query. Two queries
// that normalize identically share a cached fused set.
func NormalizeQuery(q string) string {
	return NormalizeContent(q)
}
