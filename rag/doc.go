// Package rag provides the retrieval side of the pipeline: the channel
// interface over vector and keyword search backends, the fan-out hybrid
// retriever that queries both concurrently, and the fusion step that merges
// the two ranked result lists into one deduplicated, capped context set.
//
// Fusion is a pure function and the only place deduplication happens:
// documents are keyed by a hash of their normalized content and the earliest
// occurrence wins. Retrieval results may additionally be memoized by
// normalized query through a DocumentCache, short-circuiting both channels
// on a hit.
package rag
