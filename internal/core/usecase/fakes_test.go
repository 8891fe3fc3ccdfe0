package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
)

type vectorCall struct {
	k      int
	filter domain.FieldFilter
}

type fakeVectorStore struct {
	mu      sync.Mutex
	calls   []vectorCall
	results map[string][]domain.ScoredChunk
	err     error
	delay   time.Duration

	added   []domain.DocumentChunk
	deleted []string
	byFile  map[string][]string
	stored  map[string]domain.DocumentChunk
}

func (f *fakeVectorStore) SimilaritySearchByVector(ctx context.Context, _ []float32, k int, filter domain.FieldFilter) ([]domain.ScoredChunk, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, vectorCall{k: k, filter: filter})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.results == nil {
		return nil, nil
	}
	return f.results[filter.Value], nil
}

func (f *fakeVectorStore) AddChunks(_ context.Context, chunks []domain.DocumentChunk, _ [][]float32) ([]string, error) {
	f.added = append(f.added, chunks...)
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.CustomID
	}
	return ids, nil
}

func (f *fakeVectorStore) GetChunksByIDs(_ context.Context, ids []string) ([]domain.DocumentChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.DocumentChunk, 0, len(ids))
	for _, id := range ids {
		if chunk, ok := f.stored[id]; ok {
			out = append(out, chunk)
		}
	}
	return out, nil
}

func (f *fakeVectorStore) FilterExistingIDs(context.Context, []string) ([]string, error) {
	return nil, nil
}

func (f *fakeVectorStore) IDsByFileIDPrefix(_ context.Context, fileID string) ([]string, error) {
	return f.byFile[fileID], nil
}

func (f *fakeVectorStore) DeleteByIDs(_ context.Context, ids []string) error {
	f.deleted = append(f.deleted, ids...)
	return nil
}

type fakeLexical struct {
	ready    bool
	initErr  error
	results  []domain.ScoredChunk
	err      error
	delay    time.Duration
	searches int
}

func (f *fakeLexical) Initialize(context.Context) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.ready = true
	return nil
}

func (f *fakeLexical) Ready() bool { return f.ready }

func (f *fakeLexical) Search(ctx context.Context, _ string, _ int, _ []domain.FieldFilter, _ bool) ([]domain.ScoredChunk, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type failingFuser struct{}

func (failingFuser) Fuse([]domain.ScoredChunk, []domain.ScoredChunk, float64, int) ([]domain.ScoredChunk, error) {
	return nil, errors.New("forced fusion failure")
}

type fakeRepo struct {
	docs     map[string]*domain.Document
	statuses []domain.DocumentStatus
	counts   map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: map[string]*domain.Document{}, counts: map[string]int{}}
}

func (f *fakeRepo) Create(_ context.Context, doc *domain.Document) error {
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "fake.get", errors.New(id))
	}
	return doc, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, _ string) error {
	f.statuses = append(f.statuses, status)
	if doc, ok := f.docs[id]; ok {
		doc.Status = status
	}
	return nil
}

func (f *fakeRepo) SetChunkCount(_ context.Context, id string, count int) error {
	f.counts[id] = count
	return nil
}

type fakeStorage struct {
	saved map[string][]byte
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = raw
	return nil
}

func (f *fakeStorage) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

type fakeQueue struct {
	published []string
}

func (f *fakeQueue) PublishDocumentIngested(_ context.Context, documentID string) error {
	f.published = append(f.published, documentID)
	return nil
}

func (f *fakeQueue) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(context.Context, *domain.Document) (string, error) {
	return f.text, f.err
}

type fakeChunker struct {
	pieces []string
}

func (f *fakeChunker) Split(string) []string { return f.pieces }

type fakeSyncer struct {
	synced bool
	err    error
	calls  int
}

func (f *fakeSyncer) Sync(context.Context, []domain.DocumentChunk, string, []string) (bool, error) {
	f.calls++
	return f.synced, f.err
}
