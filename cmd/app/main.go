// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edu-ai-generation/internal/config"
	"edu-ai-generation/internal/domain/ports/adapter"
	"edu-ai-generation/internal/domain/ports/repository"
	aiAdapters "edu-ai-generation/internal/infra/adapters/ai"
	ttsAdapters "edu-ai-generation/internal/infra/adapters/tts"
	pg "edu-ai-generation/internal/infra/db/postgres"
	"edu-ai-generation/internal/infra/logging"
	"edu-ai-generation/internal/infra/memstore"
	"edu-ai-generation/internal/infra/metrics"
	red "edu-ai-generation/internal/infra/redis"
	"edu-ai-generation/internal/infra/web"
	"edu-ai-generation/internal/infra/worker"
	"edu-ai-generation/internal/infra/ws"
	"edu-ai-generation/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (in-process fallbacks, noop providers)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- Job store: shared Redis, or the flagged in-process fallback ----
	var store repository.JobStore
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			if !cfg.Runtime.Dev {
				logger.Fatal().Err(err).Msg("redis unreachable; refusing to start without a shared job store")
			}
			logger.Warn().Err(err).Msg("redis unreachable, falling back to in-process job store")
			store = memstore.NewJobStore(cfg.Store.TTL, logger)
		} else {
			defer redisClient.Close()
			store = red.NewJobStore(redisClient, cfg.Store.TTL)
		}
	} else {
		store = memstore.NewJobStore(cfg.Store.TTL, logger)
	}

	// ---- Result store: Postgres when configured ----
	var results repository.ResultStore
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		results = pg.NewResultStore(pool)
	} else {
		logger.Warn().Msg("no database.url configured, results held in memory")
		results = memstore.NewResultStore()
	}

	// ---- Generation collaborator ----
	var gen adapter.GenerationService
	if cfg.Generation.APIKey != "" {
		gen, err = aiAdapters.NewOpenAIAdapter(cfg.Generation.APIKey, cfg.Generation.Model, cfg.Generation.BaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("generation adapter")
		}
		logger.Info().Str("model", cfg.Generation.Model).Str("base", cfg.Generation.BaseURL).Msg("generation adapter: openai-compatible")
	} else {
		gen = aiAdapters.NewNoopGeneration()
		logger.Warn().Msg("generation adapter: noop (dev)")
	}
	gen = aiAdapters.NewLimitedGeneration(gen, cfg.Generation.ConcurrentLimit)

	// ---- Synthesis collaborator ----
	var tts adapter.SpeechSynthesizer
	if cfg.Synthesis.APIKey != "" {
		tts, err = ttsAdapters.NewHTTPAdapter(cfg.Synthesis.APIKey, cfg.Synthesis.BaseURL, cfg.Synthesis.Voice, "audio-assets", cfg.Synthesis.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("synthesis adapter")
		}
	} else {
		tts = ttsAdapters.NewNoopSynthesizer()
	}

	// ---- Delivery + pipeline + orchestrator ----
	hub := ws.NewHub(ws.NewLogActionHandler(logger), logger)

	policy := usecase.ClassifierPolicy{
		MinInspect: cfg.Pipeline.ClassifierMinInspect,
		MaxInspect: cfg.Pipeline.ClassifierMaxInspect,
	}
	pipeline, err := usecase.NewPipeline(gen, tts, cfg.Generation.Model, cfg.Pipeline.StageTimeout, policy, hub, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline")
	}

	pool := worker.NewPool(cfg.Pipeline.MaxConcurrent, logger)
	pool.Start(ctx)

	orch := usecase.NewOrchestrator(store, results, pipeline, pool, gen, hub,
		cfg.Generation.Model, cfg.Generation.MaxPromptTokens, logger)

	// ---- HTTP server ----
	srv := web.NewServer(orch, hub, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = server.Shutdown(shutCtx)

	// Stop intake, cancel running pipelines, and give them the drain window
	// to record their terminal state.
	pool.Stop()
	cancel()
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Pipeline.DrainTimeout)
	defer drainCancel()
	orch.Drain(drainCtx)
}
