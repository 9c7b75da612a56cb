// quill command entry point.
//
// Usage:
//
//	quill ask "question" [--config config.yaml] [--corpus corpus.yaml]
//	quill search "query" [--config config.yaml] [--corpus corpus.yaml]
//	quill version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/scribeworks/quill/config"
	"github.com/scribeworks/quill/internal/cache"
	"github.com/scribeworks/quill/internal/metrics"
	"github.com/scribeworks/quill/llm"
	"github.com/scribeworks/quill/rag"
	"github.com/scribeworks/quill/service"
	"github.com/scribeworks/quill/stages"
	"github.com/scribeworks/quill/workflow"
)

// Build metadata, injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "ask":
		runQuery(os.Args[2:], false)
	case "search":
		runQuery(os.Args[2:], true)
	case "version":
		fmt.Printf("quill %s (%s)\n", Version, GitCommit)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  quill ask "question"    run the full answer pipeline
  quill search "query"    retrieval and fusion only
  quill version           print version`)
}

func runQuery(args []string, searchOnly bool) {
	fs := flag.NewFlagSet("quill", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config YAML")
	corpusPath := fs.String("corpus", "", "path to local corpus YAML")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	query := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fatal(err)
	}
	defer logger.Sync() //nolint:errcheck

	corpus, err := loadCorpus(*corpusPath)
	if err != nil {
		fatal(err)
	}

	svc, cleanup, err := buildService(cfg, logger, corpus, nil)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if searchOnly {
		docs, err := svc.SearchDocuments(ctx, query)
		if err != nil {
			fatal(err)
		}
		for i, d := range docs {
			fmt.Printf("%2d. [%.2f] (%s) %s\n", i+1, d.RelevanceScore, d.Source, d.Content)
		}
		return
	}

	runID, err := svc.Submit(ctx, query)
	if err != nil {
		fatal(err)
	}
	go func() {
		<-ctx.Done()
		svc.Cancel(runID)
	}()

	snap := waitForRun(svc, runID)
	if snap.Status == workflow.StatusFailed {
		fmt.Fprintf(os.Stderr, "run %s failed at stage %q (%s)\n", snap.RunID, snap.FailedStage, snap.ErrorKind)
		os.Exit(1)
	}

	fmt.Println(snap.Answer)
	fmt.Fprintf(os.Stderr, "\n-- run %s: %d revision(s), %d source document(s)\n",
		snap.RunID, snap.RevisionCount, len(snap.Documents))
}

// buildService assembles the full engine from configuration: retrieval over
// the local corpus, the rate-limited provider, the standard graph, the
// metrics collector and the cache/store backends. reg is the prometheus
// registerer; nil uses the default.
func buildService(cfg *config.Config, logger *zap.Logger, corpus []rag.Document, reg prometheus.Registerer) (*service.Service, func(), error) {
	docCache, store, closeBackends, err := buildBackends(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	collector := metrics.NewCollector("quill", reg)
	retriever := rag.NewHybridRetriever(
		rag.NewMemoryChannel("local_corpus", corpus),
		nil,
		docCache,
		cfg.Retrieval,
		logger,
	)
	retriever.SetStats(collector)

	var provider llm.Provider = llm.NewHTTPProvider(cfg.Provider, logger)
	if cfg.ProviderRPS > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.ProviderRPS, cfg.ProviderBurst, logger)
	}
	prompts := llm.NewPromptBuilder(cfg.Provider.Model)

	graph, err := stages.BuildGraph(
		stages.NewRetrieveStage(retriever, logger),
		stages.NewResearchStage(provider, prompts, cfg.Generation, logger),
		stages.NewWriteStage(provider, prompts, cfg.Generation, logger),
		stages.NewReviewStage(provider, prompts, cfg.Generation, cfg.Revision.QualityThreshold, logger),
		&cfg.Retry,
	)
	if err != nil {
		closeBackends()
		return nil, nil, err
	}

	executor := workflow.NewExecutor(logger,
		workflow.WithDefaultRetry(cfg.Retry),
		workflow.WithMetrics(collector),
	)
	svc, err := service.New(graph, cfg.Revision, executor, retriever, store, cfg.Workers, cfg.QueueSize, logger)
	if err != nil {
		closeBackends()
		return nil, nil, err
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
		closeBackends()
	}
	return svc, cleanup, nil
}

// buildBackends selects the fused-set cache and run store. A configured
// Redis addr shares both across replicas; otherwise they stay in-process.
func buildBackends(cfg *config.Config, logger *zap.Logger) (rag.DocumentCache, service.RunStore, func(), error) {
	if cfg.Redis.Addr == "" {
		return rag.NewMemoryCache(), service.NewMemoryStore(), func() {}, nil
	}
	manager, err := cache.NewManager(cfg.Redis, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() { _ = manager.Close() }
	return rag.NewRedisCache(manager, logger), service.NewRedisStore(manager, 0), closeFn, nil
}

// waitForRun polls the run store until the run reaches a terminal status.
func waitForRun(svc *service.Service, runID string) *service.Snapshot {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		snap, err := svc.Status(context.Background(), runID)
		if err == nil && snap.Status != workflow.StatusRunning {
			return snap
		}
		<-ticker.C
	}
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// corpusFile is the on-disk shape of a local document corpus.
type corpusFile struct {
	Documents []struct {
		Content string `yaml:"content"`
		Source  string `yaml:"source"`
	} `yaml:"documents"`
}

func loadCorpus(path string) ([]rag.Document, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	var file corpusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}
	docs := make([]rag.Document, 0, len(file.Documents))
	for _, d := range file.Documents {
		docs = append(docs, rag.Document{Content: d.Content, Source: d.Source})
	}
	return docs, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
