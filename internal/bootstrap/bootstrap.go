package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkravets/rag-retrieval/internal/config"
	"github.com/mkravets/rag-retrieval/internal/core/domain"
	"github.com/mkravets/rag-retrieval/internal/core/ports"
	"github.com/mkravets/rag-retrieval/internal/core/usecase"
	"github.com/mkravets/rag-retrieval/internal/infrastructure/chunking"
	"github.com/mkravets/rag-retrieval/internal/infrastructure/embeddingcache"
	"github.com/mkravets/rag-retrieval/internal/infrastructure/extractor"
	"github.com/mkravets/rag-retrieval/internal/infrastructure/extractor/pdf"
	"github.com/mkravets/rag-retrieval/internal/infrastructure/extractor/plaintext"
	"github.com/mkravets/rag-retrieval/internal/infrastructure/llm/ollama"
	"github.com/mkravets/rag-retrieval/internal/infrastructure/queue/nats"
	"github.com/mkravets/rag-retrieval/internal/infrastructure/repository/postgres"
	"github.com/mkravets/rag-retrieval/internal/infrastructure/resilience"
	"github.com/mkravets/rag-retrieval/internal/infrastructure/storage/localfs"
	"github.com/mkravets/rag-retrieval/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue         ports.MessageQueue
	Repo          ports.DocumentRepository
	SearchUC      ports.Searcher
	IngestUC      ports.DocumentIngestor
	ProcessUC     ports.DocumentProcessor
	SearchMetrics *metrics.SearchMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	pool := postgres.NewPoolManager(cfg.PostgresDSN, logger)

	repo := postgres.NewDocumentRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure document schema: %w", err)
	}

	searchMetrics := metrics.NewSearchMetrics("rag-retrieval")
	workerMetrics := metrics.NewWorkerMetrics("rag-retrieval")

	chunkStore, err := postgres.NewChunkStore(pool, cfg.TextSearchLanguage, logger)
	if err != nil {
		return nil, fmt.Errorf("init chunk store: %w", err)
	}
	if err := chunkStore.EnsureBaseSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure chunk schema: %w", err)
	}
	lexical, err := postgres.NewLexicalSearcher(pool, chunkStore, cfg.TextSearchLanguage, searchMetrics.ObserveLexical, logger)
	if err != nil {
		return nil, fmt.Errorf("init lexical search: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Policy{
		MaxAttempts:    cfg.MaxRetries,
		BreakerEnabled: true,
	}, logger)
	syncer := postgres.NewTextSyncer(pool, executor, logger)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel)
	rawEmbedder := ollama.NewEmbedder(ollamaClient, cfg.EmbedRatePerSecond, executor)
	embedder, err := embeddingcache.NewCachedEmbedder(rawEmbedder, cfg.EmbedCacheSize, logger)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.NewDispatcher(plaintext.NewExtractor(storage), pdf.NewExtractor(storage))

	searchType, _ := domain.ParseSearchType(cfg.DefaultSearchType)
	searchUC := usecase.NewSearchUseCase(
		chunkStore,
		lexical,
		embedder,
		usecase.NewRRFFuser(),
		searchMetrics,
		logger,
		usecase.SearchConfig{
			HybridEnabled:   cfg.HybridEnabled,
			DefaultType:     searchType,
			DefaultWeight:   cfg.DefaultSemanticWeight,
			RankOffset:      cfg.FusionRankOffset,
			ExpansionFactor: cfg.ExpansionFactor,
			SearchTimeout:   cfg.SearchTimeout(),
			AuthPerResult:   cfg.AuthPerResult,
			ServiceName:     "rag-retrieval",
		},
		pool.Close,
	)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, extract, chunker, embedder, chunkStore, syncer, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:         queue,
		Repo:          repo,
		SearchUC:      searchUC,
		IngestUC:      ingestUC,
		ProcessUC:     processUC,
		SearchMetrics: searchMetrics,
		WorkerMetrics: workerMetrics,

		closeFn: func() {
			queue.Close()
			_ = pool.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
