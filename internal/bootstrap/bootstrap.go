package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/requirements-guard/internal/config"
	"github.com/kirillkom/requirements-guard/internal/core/ports"
	"github.com/kirillkom/requirements-guard/internal/core/usecase"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/classifier/remote"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/httpapi"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/lexical"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/llm/openaicompat"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/parser"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/queue/nats"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/rerank"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/resilience"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/requirements-guard/internal/observability/metrics"
)

// App is the constructed engine. It is built once per process and shared by
// reference; Close releases its connections.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Knowledge *usecase.KnowledgeBase
	Runner    *usecase.BatchRunner
	Analysis  *usecase.AnalysisService
	Search    *usecase.KnowledgeSearchUseCase
	Ingest    *usecase.IngestKnowledgeUseCase
	Queue     ports.MessageQueue

	db       *sql.DB
	closeFns []func()
}

type Options struct {
	// Service labels metrics and logs.
	Service string
	// ConnectQueue connects NATS for upload events.
	ConnectQueue bool
	// SeedIfEmpty ingests STATIC_KNOWLEDGE_PATH when the store is empty.
	SeedIfEmpty bool
	// Metrics registers analysis metrics when set.
	Metrics prometheus.Registerer
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	executor := resilience.NewExecutor(cfg.ResilienceConfig())

	store, err := app.openStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: executor,
	})
	embedder, err := ollama.NewEmbedder(ollamaClient)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	generator, err := newGenerator(cfg, ollamaClient, executor)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init generator: %w", err)
	}
	classifier, err := newClassifier(cfg, ollamaClient, executor)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init classifier: %w", err)
	}
	scorer := newCrossEncoder(cfg, executor, logger)

	storage, err := localfs.New(cfg.UploadDir)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init upload storage: %w", err)
	}
	if opts.ConnectQueue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closeFns = append(app.closeFns, queue.Close)
	}

	docParser := parser.New(parser.PDFPages{}, logger)
	kb := usecase.NewKnowledgeBase(store, embedder, lexical.NewBuilder(), logger)
	retriever := usecase.NewHybridRetriever(kb, embedder)
	reranker := usecase.NewReranker(scorer)
	resolver := usecase.NewResolveUseCase(kb, retriever, reranker, generator, logger, usecase.ResolveOptions{
		TopK:       cfg.RAGTopK,
		RerankTopN: cfg.RAGRerankTopN,
	})
	runner := usecase.NewBatchRunner(classifier, resolver, logger)
	if opts.Metrics != nil {
		service := opts.Service
		if service == "" {
			service = "requirements-guard"
		}
		m := metrics.NewAnalysisMetrics(service, opts.Metrics)
		kb.SetObserver(m)
		runner.SetObserver(m)
	}

	app.Knowledge = kb
	app.Runner = runner
	app.Analysis = usecase.NewAnalysisService(kb, runner, logger)
	if cfg.RunHistory {
		history, err := app.openRunHistory(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Analysis.SetHistory(history)
	}
	app.Search = usecase.NewKnowledgeSearchUseCase(kb, retriever, reranker, cfg.RAGRerankTopN)
	app.Ingest = usecase.NewIngestKnowledgeUseCase(kb, docParser, storage, app.Queue, logger)

	if err := kb.Sync(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("load knowledge mirror: %w", err)
	}
	if opts.SeedIfEmpty {
		added, err := app.Ingest.SeedIfEmpty(ctx, cfg.StaticKnowledgePath)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("seed knowledge: %w", err)
		}
		if added > 0 {
			logger.Info("knowledge_seeded", "dir", cfg.StaticKnowledgePath, "chunks", added)
		}
	}
	return app, nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config) (ports.ChunkStore, error) {
	switch cfg.KnowledgeStore {
	case config.StorePostgres:
		db, err := a.postgresDB(cfg)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewChunkRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	default:
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), nil
	}
}

func (a *App) openRunHistory(ctx context.Context, cfg config.Config) (*postgres.RunRepository, error) {
	db, err := a.postgresDB(cfg)
	if err != nil {
		return nil, err
	}
	repo := postgres.NewRunRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure run history schema: %w", err)
	}
	return repo, nil
}

// postgresDB opens the pool once; the chunk store and run history share it.
func (a *App) postgresDB(cfg config.Config) (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.db = db
	a.closeFns = append(a.closeFns, func() { _ = db.Close() })
	return db, nil
}

func newGenerator(cfg config.Config, client *ollama.Client, executor *resilience.Executor) (ports.Generator, error) {
	if cfg.GenerationProvider == config.ProviderOllama {
		return ollama.NewGenerator(client)
	}
	return openaicompat.New(openaicompat.Config{
		APIKey:  cfg.GenerationAPIKey,
		BaseURL: cfg.GenerationBaseURL,
		Model:   cfg.GenerationModel,
	}, executor)
}

func newClassifier(cfg config.Config, client *ollama.Client, executor *resilience.Executor) (ports.Classifier, error) {
	if cfg.ClassifierProvider == config.ProviderOllama {
		return ollama.NewClassifier(client)
	}
	return remote.New(httpapi.New("classifier", cfg.ClassifierURL, httpapi.Options{ResilienceExecutor: executor}))
}

func newCrossEncoder(cfg config.Config, executor *resilience.Executor, logger *slog.Logger) ports.CrossEncoder {
	if cfg.RerankerURL == "" {
		logger.Warn("reranker_fallback", "scorer", "overlap", "reason", "RERANKER_URL is empty")
		return rerank.OverlapScorer{}
	}
	return rerank.NewHTTPCrossEncoder(httpapi.New("reranker", cfg.RerankerURL, httpapi.Options{ResilienceExecutor: executor}))
}

// MetricsServer serves a registry on its own port, as the worker does.
func MetricsServer(port string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{Addr: ":" + port, Handler: mux}
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
