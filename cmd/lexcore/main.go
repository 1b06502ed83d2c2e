package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/overthelex/secondlayer-sub006/internal/background"
	"github.com/overthelex/secondlayer-sub006/internal/cache"
	"github.com/overthelex/secondlayer-sub006/internal/config"
	"github.com/overthelex/secondlayer-sub006/internal/contextpack/history"
	"github.com/overthelex/secondlayer-sub006/internal/contextpack/packer"
	"github.com/overthelex/secondlayer-sub006/internal/contextpack/rerank"
	"github.com/overthelex/secondlayer-sub006/internal/llm"
	"github.com/overthelex/secondlayer-sub006/internal/llm/embedding"
	"github.com/overthelex/secondlayer-sub006/internal/logging"
	"github.com/overthelex/secondlayer-sub006/internal/orchestrator"
	"github.com/overthelex/secondlayer-sub006/internal/server"
	"github.com/overthelex/secondlayer-sub006/internal/store"
	"github.com/overthelex/secondlayer-sub006/internal/tools"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
	// Commit is set via -ldflags at build time.
	Commit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd(os.Args[2:])
	case "version":
		fmt.Printf("lexcore %s (%s)\n", Version, Commit)
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `lexcore

Usage:
  lexcore serve [flags]
  lexcore version

Commands:
  serve     Run the research orchestration service.
  version   Print build information.

`)
}

func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Optional YAML config file overlaying LEXCORE_* env vars")
	envFile := fs.String("env-file", "", "Optional .env file loaded before reading config")
	_ = fs.Parse(args)

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file: %v\n", err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Environment)

	client, err := llm.New(cfg.Provider.Type, cfg.Provider.BaseURL, cfg.Provider.APIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build llm client")
	}

	var summaryCache cache.SummaryCache
	var resultCache cache.ResultCache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer func() { _ = redisCache.Close() }()
		summaryCache, resultCache = redisCache, redisCache
	} else {
		memCache, err := cache.NewMemory(0, 0)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build memory cache")
		}
		summaryCache, resultCache = memCache, memCache
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open store")
	}
	defer func() { _ = st.Close() }()

	executor, err := tools.NewRemoteExecutor(cfg.ToolGatewayURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build tool executor")
	}
	registry, err := tools.NewRegistry(executor, tools.Catalog()...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build tool registry")
	}

	queue := background.NewQueue(0)
	defer queue.Close()

	// Sub-calls outside the orchestrator (summaries, embeddings) report
	// their spend to the same ledger through this hook.
	recordUsage := func(purpose string, model string, conversationID string, usage llm.Usage, failed bool) {
		rec := store.CostRecord{
			ConversationID: conversationID,
			Model:          model,
			Purpose:        purpose,
			InputTokens:    usage.InputTokens,
			OutputTokens:   usage.OutputTokens,
			CostUSD:        llm.ComputeCost(model, usage),
			Failed:         failed,
		}
		queue.Submit("cost_record", func(ctx context.Context) error {
			return st.RecordCost(ctx, rec)
		})
	}

	var reranker *rerank.Reranker
	if cfg.Provider.Type != "anthropic" {
		embedder, err := embedding.NewOpenAI(cfg.Provider.APIKey, cfg.Provider.BaseURL, cfg.Provider.EmbedModel)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build embedder")
		}
		embedder.OnUsage = func(tokens int64) {
			recordUsage("embed", cfg.Provider.EmbedModel, "", llm.Usage{InputTokens: tokens}, false)
		}
		reranker = rerank.New(embedder)
	}

	compressor := history.NewCompressor(client, cfg.Provider.FastModel, summaryCache)
	compressor.OnUsage = func(conversationID string, usage llm.Usage, failed bool) {
		recordUsage("summarize", cfg.Provider.FastModel, conversationID, usage, failed)
	}

	orch := orchestrator.New(orchestrator.Config{
		Client:        client,
		Model:         cfg.Provider.Model,
		FastModel:     cfg.Provider.FastModel,
		Registry:      registry,
		Packer:        packer.NewBuilder(compressor),
		Reranker:      reranker,
		ResultCache:   resultCache,
		Store:         st,
		Queue:         queue,
		CitationCheck: cfg.CitationCheckEnabled,
	})

	srv := server.New(cfg.ListenAddr, orch, st)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}
}
