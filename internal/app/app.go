package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"WeeklyIntel/internal/config"
	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/infrastructure/embcache"
	"WeeklyIntel/internal/infrastructure/embedding"
	"WeeklyIntel/internal/infrastructure/llm"
	"WeeklyIntel/internal/infrastructure/ml"
	"WeeklyIntel/internal/infrastructure/parser"
	"WeeklyIntel/internal/infrastructure/scheduler"
	"WeeklyIntel/internal/infrastructure/storage"
	"WeeklyIntel/internal/infrastructure/telegram"
	"WeeklyIntel/internal/logging"
	"WeeklyIntel/internal/metrics"
	"WeeklyIntel/internal/ports"
	"WeeklyIntel/internal/transport/httpapi"
	"WeeklyIntel/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	server    *http.Server
	db        *sql.DB
	cache     *embcache.RedisStore
	topics    []domain.Topic
}

// New builds the application: connectors, stage components, storage and surfaces.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger, topics: topicsFromConfig(cfg.Run.Topics)}

	httpClient := &http.Client{Timeout: cfg.Run.SourceTimeout}
	registry, err := parser.BuildRegistry(cfg.Sources, httpClient, baseLogger.With("component", "source"))
	if err != nil {
		return nil, fmt.Errorf("build sources: %w", err)
	}

	embedder, err := a.buildEmbedder()
	if err != nil {
		a.Close()
		return nil, err
	}

	var generator ports.Generator
	if cfg.Generation.APIKey != "" {
		generator = llm.NewChatGPTClient(cfg.Generation)
	} else {
		baseLogger.Info("generation disabled, reports use the deterministic layout")
	}

	var repository *storage.Repository
	if cfg.Database.DSN != "" {
		db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = db
		repository = storage.NewRepository(db, cfg.Database.Driver)
		if err := repository.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	deps := usecase.PipelineDeps{
		Fetcher: usecase.NewCoordinator(registry.Sources(), cfg.Run.SourceTimeout, baseLogger.With("component", "coordinator")),
		Enricher: usecase.NewEnricher(embedder, usecase.EnricherConfig{
			MinContentLength: cfg.Run.MinContentLength,
			Dimensions:       cfg.Embedding.Dimensions,
			TrustedSources:   cfg.Run.TrustedSources,
			Policy:           usecase.FailurePolicy(cfg.Run.EnrichmentPolicy),
		}, baseLogger.With("component", "enricher")),
		Ranker:     usecase.NewRanker(embedder, baseLogger.With("component", "ranker")),
		Summarizer: usecase.NewSummarizer(generator, baseLogger.With("component", "summarizer")),
		Composer:   usecase.NewComposer(generator, cfg.Run.TopN, baseLogger.With("component", "composer")),
		Notifier:   notifier,
		RunTimeout: cfg.Run.RunTimeout,
		Logger:     baseLogger.With("component", "pipeline"),
	}
	var store httpapi.ReportStore
	if repository != nil {
		deps.Repository = repository
		store = repository
	}
	a.pipeline = usecase.NewPipeline(deps)

	driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, cfg.Scheduler.RunOnStart, cfg.Scheduler.Location())
	a.scheduler = usecase.NewScheduler(driver, a.pipeline, a.topics, cfg.Run.WindowDays, baseLogger.With("component", "scheduler"))

	if store == nil {
		baseLogger.Warn("database not configured, report endpoints will return 503")
	}
	api := httpapi.NewServer(a.pipeline, store, a.topics, cfg.Run.WindowDays, baseLogger.With("component", "http"))
	a.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// buildEmbedder assembles provider -> cache; nil means keyword-only relevance.
func (a *Application) buildEmbedder() (ports.Embedder, error) {
	var base ports.Embedder
	switch a.cfg.Embedding.Provider {
	case "openai":
		if a.cfg.Embedding.APIKey == "" {
			a.logger.Warn("openai embedding provider has no api key, embeddings disabled")
			return nil, nil
		}
		base = embedding.NewOpenAI(embedding.Config{
			APIKey:     a.cfg.Embedding.APIKey,
			BaseURL:    a.cfg.Embedding.BaseURL,
			Model:      a.cfg.Embedding.Model,
			Dimensions: a.cfg.Embedding.Dimensions,
		})
	case "ml":
		if a.cfg.ML.InferenceURL == "" {
			return nil, fmt.Errorf("ml embedding provider requires ml.inferenceUrl")
		}
		base = ml.NewClient(a.cfg.ML.InferenceURL, a.cfg.ML.APIKey)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", a.cfg.Embedding.Provider)
	}

	if a.cfg.Cache.RedisAddr == "" {
		return base, nil
	}
	store, err := embcache.NewRedisStore(a.cfg.Cache.RedisAddr, a.cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	a.cache = store
	return embcache.New(base, store, a.cfg.Cache.Prefix, metrics.EmbeddingCacheTotal, a.logger.With("component", "embcache")), nil
}

// RunOnce executes a single workflow over the configured topics.
func (a *Application) RunOnce(ctx context.Context) (usecase.RunState, error) {
	return a.pipeline.Run(ctx, a.topics, a.cfg.Run.WindowDays)
}

// Serve starts the scheduler and the HTTP API, blocking until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval, "run_on_start", a.cfg.Scheduler.RunOnStart)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		serveErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("error during http shutdown", "error", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Error("error stopping scheduler", "error", err)
	}
	return serveErr
}

// Close releases the embedding cache and database handles.
func (a *Application) Close() {
	if a.cache != nil {
		a.cache.Close()
		a.cache = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
		a.db = nil
	}
}

func topicsFromConfig(cfg []config.TopicConfig) []domain.Topic {
	topics := make([]domain.Topic, 0, len(cfg))
	for _, t := range cfg {
		if t.Name == "" {
			continue
		}
		topics = append(topics, domain.Topic{Name: t.Name, Keywords: t.Keywords})
	}
	return topics
}
