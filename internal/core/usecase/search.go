package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
	"github.com/mkravets/rag-retrieval/internal/core/ports"
	"github.com/mkravets/rag-retrieval/internal/observability/metrics"
)

const defaultK = 4

// SearchConfig carries the tuning knobs for the orchestrator. Values
// arrive already clamped by the configuration layer.
type SearchConfig struct {
	HybridEnabled   bool
	DefaultType     domain.SearchType
	DefaultWeight   float64
	RankOffset      int
	ExpansionFactor float64
	SearchTimeout   time.Duration
	AuthPerResult   bool
	ServiceName     string
}

// SearchUseCase orchestrates semantic, lexical and hybrid retrieval.
type SearchUseCase struct {
	store    ports.ChunkVectorStore
	lexical  ports.LexicalSearcher
	embedder ports.Embedder
	fuser    Fuser
	metrics  *metrics.SearchMetrics
	logger   *slog.Logger
	cfg      SearchConfig
	cleanup  func() error
}

func NewSearchUseCase(
	store ports.ChunkVectorStore,
	lexical ports.LexicalSearcher,
	embedder ports.Embedder,
	fuser Fuser,
	m *metrics.SearchMetrics,
	logger *slog.Logger,
	cfg SearchConfig,
	cleanup func() error,
) *SearchUseCase {
	if fuser == nil {
		fuser = NewRRFFuser()
	}
	if cleanup == nil {
		cleanup = func() error { return nil }
	}
	return &SearchUseCase{
		store:    store,
		lexical:  lexical,
		embedder: embedder,
		fuser:    fuser,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		cleanup:  cleanup,
	}
}

// Initialize prepares the lexical engine eagerly. Failure is not fatal:
// later hybrid requests retry initialization and degrade on failure.
func (uc *SearchUseCase) Initialize(ctx context.Context) error {
	if !uc.cfg.HybridEnabled {
		return nil
	}
	if err := uc.lexical.Initialize(ctx); err != nil {
		uc.logger.Warn("lexical_init_failed", "error", err)
		return err
	}
	return nil
}

func (uc *SearchUseCase) Cleanup() error {
	return uc.cleanup()
}

func (uc *SearchUseCase) Metrics() domain.SearchMetricsSnapshot {
	searches, avgSeconds, fusions := uc.metrics.Snapshot()
	return domain.SearchMetricsSnapshot{
		SearchCount:      searches,
		AvgSearchLatency: time.Duration(avgSeconds * float64(time.Second)),
		FusionCount:      fusions,
	}
}

// Query retrieves over one optional file scope.
func (uc *SearchUseCase) Query(ctx context.Context, req domain.SearchRequest) (*domain.SearchOutcome, error) {
	req.FileIDs = nil
	return uc.search(ctx, req)
}

// QueryMultiple retrieves over an explicit file set. Duplicate IDs are
// rejected rather than silently deduplicated so callers learn about
// malformed requests.
func (uc *SearchUseCase) QueryMultiple(ctx context.Context, req domain.SearchRequest) (*domain.SearchOutcome, error) {
	req.FileID = ""
	if req.FileIDs == nil {
		req.FileIDs = []string{}
	}
	seen := make(map[string]struct{}, len(req.FileIDs))
	for _, id := range req.FileIDs {
		if _, dup := seen[id]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "search.query_multiple", fmt.Errorf("duplicate file id %q", id))
		}
		seen[id] = struct{}{}
	}
	return uc.search(ctx, req)
}

// Lookup fetches stored chunks by custom ID, with the same metadata
// cleaning search results get.
func (uc *SearchUseCase) Lookup(ctx context.Context, ids []string) ([]domain.DocumentChunk, error) {
	if len(ids) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search.lookup", errors.New("no chunk ids given"))
	}
	chunks, err := uc.store.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackend, "search.lookup", err)
	}
	for i := range chunks {
		chunks[i] = cleanMetadata(chunks[i])
	}
	return chunks, nil
}

func (uc *SearchUseCase) search(ctx context.Context, req domain.SearchRequest) (*domain.SearchOutcome, error) {
	start := time.Now()
	uc.metrics.StartSearch()

	outcome, err := uc.searchInner(ctx, req)

	status := "ok"
	mode := string(req.Type)
	results := 0
	if outcome != nil {
		mode = string(outcome.Mode)
		results = len(outcome.Results)
	}
	if err != nil {
		status = "error"
	}
	uc.metrics.ObserveSearch(uc.cfg.ServiceName, mode, status, results, time.Since(start))
	return outcome, err
}

func (uc *SearchUseCase) searchInner(ctx context.Context, req domain.SearchRequest) (*domain.SearchOutcome, error) {
	if req.Query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search.query", errors.New("empty query"))
	}
	if req.K <= 0 {
		req.K = defaultK
	}
	if req.Type == "" {
		req.Type = uc.cfg.DefaultType
	}
	if req.SemanticWeight == 0 {
		req.SemanticWeight = uc.cfg.DefaultWeight
	}
	if req.SemanticWeight < 0 || req.SemanticWeight > 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search.query", fmt.Errorf("semantic weight %f outside [0,1]", req.SemanticWeight))
	}

	mode := req.Type
	if mode != domain.SearchSemantic && !uc.cfg.HybridEnabled {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search.query", fmt.Errorf("search type %q requires hybrid search to be enabled", mode))
	}

	outcome := &domain.SearchOutcome{Mode: mode}

	if mode != domain.SearchSemantic && !uc.lexical.Ready() {
		if err := uc.lexical.Initialize(ctx); err != nil {
			uc.logger.Warn("lexical_unavailable_downgrade", "requested_mode", string(mode), "error", err)
			uc.metrics.IncDegraded(uc.cfg.ServiceName, "lexical_unavailable")
			mode = domain.SearchSemantic
			outcome.Mode = mode
			outcome.Degraded = true
			outcome.DegradedReason = "lexical unavailable"
		}
	}

	var results []domain.ScoredChunk
	var err error
	switch mode {
	case domain.SearchSemantic:
		results, err = uc.runSemantic(ctx, req, req.K)
	case domain.SearchBM25:
		results, err = uc.runLexicalTimed(ctx, req)
	case domain.SearchHybrid:
		results, err = uc.runHybrid(ctx, req, outcome)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "search.query", fmt.Errorf("unknown search type %q", mode))
	}
	if err != nil {
		return nil, err
	}

	results = uc.gateByOwner(req, results)

	for i, sc := range results {
		results[i].Chunk = cleanMetadata(sc.Chunk)
	}
	if len(results) > req.K {
		results = results[:req.K]
	}
	outcome.Results = results
	return outcome, nil
}

func (uc *SearchUseCase) runSemantic(ctx context.Context, req domain.SearchRequest, k int) ([]domain.ScoredChunk, error) {
	embedding, err := uc.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackend, "search.embed_query", err)
	}
	exec := semanticExecutor{store: uc.store}
	results, err := exec.run(ctx, embedding, k, planSemantic(req))
	if err != nil {
		return nil, uc.backendOrTimeout(ctx, "search.semantic", err)
	}
	return results, nil
}

func (uc *SearchUseCase) runLexicalTimed(ctx context.Context, req domain.SearchRequest) ([]domain.ScoredChunk, error) {
	tctx, cancel := context.WithTimeout(ctx, uc.cfg.SearchTimeout)
	defer cancel()

	results, err := uc.lexical.Search(tctx, req.Query, req.K, lexicalFilters(req), true)
	if err != nil {
		return nil, uc.backendOrTimeout(tctx, "search.lexical", err)
	}
	return results, nil
}

// runHybrid executes both branches under one deadline and fuses their
// rankings. A timeout fails the whole request: partial results would
// silently change ranking semantics. A fusion failure degrades to the
// unfused semantic ranking instead.
func (uc *SearchUseCase) runHybrid(ctx context.Context, req domain.SearchRequest, outcome *domain.SearchOutcome) ([]domain.ScoredChunk, error) {
	tctx, cancel := context.WithTimeout(ctx, uc.cfg.SearchTimeout)
	defer cancel()

	kExp := int(float64(req.K) * uc.cfg.ExpansionFactor)
	if kExp < req.K {
		kExp = req.K
	}

	var semantic, lexical []domain.ScoredChunk
	g, gctx := errgroup.WithContext(tctx)
	g.Go(func() error {
		results, err := uc.runSemantic(gctx, req, kExp)
		if err != nil {
			return err
		}
		semantic = results
		return nil
	})
	g.Go(func() error {
		results, err := uc.lexical.Search(gctx, req.Query, kExp, lexicalFilters(req), true)
		if err != nil {
			return err
		}
		lexical = results
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, uc.backendOrTimeout(tctx, "search.hybrid", err)
	}

	fused, err := uc.fuser.Fuse(semantic, lexical, req.SemanticWeight, uc.cfg.RankOffset)
	if err != nil {
		uc.logger.Error("rank_fusion_failed", "error", err)
		uc.metrics.IncDegraded(uc.cfg.ServiceName, "fusion_failed")
		outcome.Degraded = true
		outcome.DegradedReason = "fusion failed"
		return semantic, nil
	}
	uc.metrics.IncFusion()
	return fused, nil
}

func (uc *SearchUseCase) backendOrTimeout(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrSearchTimeout, op, err)
	}
	if domain.IsKind(err, domain.ErrInvalidInput) {
		return err
	}
	return domain.WrapError(domain.ErrBackend, op, err)
}

// gateByOwner enforces result ownership. The default check looks at the
// first result only, mirroring single-owner scopes cheaply; per-result
// filtering is available for mixed-owner stores.
func (uc *SearchUseCase) gateByOwner(req domain.SearchRequest, results []domain.ScoredChunk) []domain.ScoredChunk {
	if req.RequestorID == "" || req.Elevated || len(results) == 0 {
		return results
	}

	if uc.cfg.AuthPerResult {
		kept := results[:0]
		for _, sc := range results {
			owner := sc.Chunk.UserID()
			if owner == "" || owner == req.RequestorID {
				kept = append(kept, sc)
			}
		}
		if len(kept) < len(results) {
			uc.logger.Warn("unauthorized_results_filtered",
				"requestor", req.RequestorID,
				"removed", len(results)-len(kept),
			)
		}
		return kept
	}

	owner := results[0].Chunk.UserID()
	if owner != "" && owner != req.RequestorID {
		uc.logger.Warn("unauthorized_result_owner",
			"requestor", req.RequestorID,
			"owner", owner,
		)
		return nil
	}
	return results
}
