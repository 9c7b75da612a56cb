package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HybridConfig tunes the fan-out retriever.
type HybridConfig struct {
	// PrimaryLimit caps results requested from the primary channel.
	PrimaryLimit int `yaml:"primary_limit" json:"primary_limit"`
	// SecondaryLimit caps results requested from the secondary channel.
	SecondaryLimit int `yaml:"secondary_limit" json:"secondary_limit"`
	// Cap bounds the fused result set.
	Cap int `yaml:"cap" json:"cap"`
	// ChannelTimeout bounds each channel call.
	ChannelTimeout time.Duration `yaml:"channel_timeout" json:"channel_timeout"`
	// CacheTTL is the fused-set memoization window. Zero disables caching
	// even when a cache is attached.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// DefaultHybridConfig returns production defaults.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		PrimaryLimit:   5,
		SecondaryLimit: 5,
		Cap:            8,
		ChannelTimeout: 15 * time.Second,
		CacheTTL:       30 * time.Minute,
	}
}

// RetrieveError reports that both channels failed, leaving nothing to fuse.
// A single-channel failure degrades to an empty result from that channel
// and is not an error.
type RetrieveError struct {
	PrimaryErr   error
	SecondaryErr error
}

func (e *RetrieveError) Error() string {
	return fmt.Sprintf("all retrieval channels failed: primary=%v, secondary=%v", e.PrimaryErr, e.SecondaryErr)
}

// Timeout reports whether either channel failure was a deadline expiry.
func (e *RetrieveError) Timeout() bool {
	return errors.Is(e.PrimaryErr, context.DeadlineExceeded) ||
		errors.Is(e.SecondaryErr, context.DeadlineExceeded)
}

// CacheStats receives cache hit/miss signals. Nil is tolerated.
type CacheStats interface {
	CacheHit()
	CacheMiss()
}

// HybridRetriever queries the primary (vector-similarity) and secondary
// (keyword/web) channels concurrently, joins on both, and fuses the results.
// It is safe for concurrent use across runs.
type HybridRetriever struct {
	primary   Channel
	secondary Channel
	cache     DocumentCache
	stats     CacheStats
	config    HybridConfig
	logger    *zap.Logger
}

// NewHybridRetriever creates a hybrid retriever. secondary and cache may be
// nil; a nil logger disables logging.
func NewHybridRetriever(primary, secondary Channel, cache DocumentCache, config HybridConfig, logger *zap.Logger) *HybridRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridRetriever{
		primary:   primary,
		secondary: secondary,
		cache:     cache,
		config:    config,
		logger:    logger.With(zap.String("component", "hybrid_retriever")),
	}
}

// SetStats attaches a cache statistics sink.
func (r *HybridRetriever) SetStats(stats CacheStats) { r.stats = stats }

// Retrieve returns the fused context set for a query. A cache hit returns
// the previously fused set without touching either channel.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	key := NormalizeQuery(query)
	if r.cache != nil && r.config.CacheTTL > 0 {
		if docs, ok := r.cache.Get(ctx, key); ok {
			if r.stats != nil {
				r.stats.CacheHit()
			}
			r.logger.Debug("fused set served from cache", zap.String("key", key))
			return docs, nil
		}
		if r.stats != nil {
			r.stats.CacheMiss()
		}
	}

	var primaryDocs, secondaryDocs []Document
	var primaryErr, secondaryErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		primaryDocs, primaryErr = r.search(gctx, r.primary, query, r.config.PrimaryLimit)
		return nil
	})
	g.Go(func() error {
		if r.secondary == nil {
			return nil
		}
		secondaryDocs, secondaryErr = r.search(gctx, r.secondary, query, r.config.SecondaryLimit)
		return nil
	})
	_ = g.Wait()

	if primaryErr != nil && r.secondary != nil && secondaryErr != nil {
		return nil, &RetrieveError{PrimaryErr: primaryErr, SecondaryErr: secondaryErr}
	}
	if r.secondary == nil && primaryErr != nil {
		return nil, &RetrieveError{PrimaryErr: primaryErr}
	}

	fused := Fuse(primaryDocs, secondaryDocs, r.config.Cap)
	r.logger.Debug("retrieval fused",
		zap.Int("primary", len(primaryDocs)),
		zap.Int("secondary", len(secondaryDocs)),
		zap.Int("fused", len(fused)),
	)

	if r.cache != nil && r.config.CacheTTL > 0 {
		r.cache.Put(ctx, key, fused, r.config.CacheTTL)
	}
	return fused, nil
}

// search runs one channel call under the per-channel timeout. A failed
// channel degrades to an empty result set; the error is kept only to detect
// the both-channels-failed case.
func (r *HybridRetriever) search(ctx context.Context, ch Channel, query string, limit int) ([]Document, error) {
	if r.config.ChannelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.ChannelTimeout)
		defer cancel()
	}
	docs, err := ch.Search(ctx, query, limit)
	if err != nil {
		// Map a local deadline expiry so callers can classify the failure
		// even when the channel wraps its own error.
		if ctx.Err() == context.DeadlineExceeded && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		r.logger.Warn("retrieval channel failed, degrading to empty set",
			zap.String("channel", ch.Name()),
			zap.Error(err),
		)
		return nil, err
	}
	for i := range docs {
		if docs[i].Source == "" {
			docs[i].Source = ch.Name()
		}
	}
	return docs, nil
}
