package rag

import "sort"

// Fuse merges two ranked retrieval result lists into one deduplicated,
// relevance-ordered list of at most cap documents.
//
// The inputs are concatenated primary-first, preserving each list's internal
// order. Exact-hash duplicates (normalized content) keep their earliest
// occurrence and drop the rest. Survivors are stable-sorted by relevance
// score descending, so equal scores keep encounter order. Fuse is pure:
// the inputs are not mutated.
func Fuse(primary, secondary []Document, cap int) []Document {
	if cap <= 0 {
		return nil
	}

	seen := make(map[string]bool, len(primary)+len(secondary))
	merged := make([]Document, 0, len(primary)+len(secondary))
	for _, doc := range append(append([]Document{}, primary...), secondary...) {
		if doc.ContentHash == "" {
			doc.ContentHash = HashContent(doc.Content)
		}
		if seen[doc.ContentHash] {
			continue
		}
		seen[doc.ContentHash] = true
		merged = append(merged, doc)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RelevanceScore > merged[j].RelevanceScore
	})

	if len(merged) > cap {
		merged = merged[:cap]
	}
	return merged
}
