package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkravets/rag-retrieval/internal/infrastructure/resilience"
)

func newSyncerWithMock(t *testing.T, attempts int) (*TextSyncer, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, done := newMockDB(t)
	exec := resilience.NewExecutor(resilience.Policy{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}, nil)
	return NewTextSyncer(StaticPool{DB: db}, exec, testLogger()), mock, done
}

func expectChunkUpdate(mock sqlmock.Sqlmock, rowsAffected int64) {
	mock.ExpectExec("UPDATE document_chunks").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, rowsAffected))
}

func TestSyncPartialMatchCountsAsSuccess(t *testing.T) {
	syncer, mock, done := newSyncerWithMock(t, 3)
	defer done()

	mock.ExpectBegin()
	expectChunkUpdate(mock, 1)
	expectChunkUpdate(mock, 1)
	expectChunkUpdate(mock, 0)
	expectChunkUpdate(mock, 1)
	expectChunkUpdate(mock, 0)
	mock.ExpectCommit()

	chunks := toDomainChunks([]testChunk{
		{"a", "uno"}, {"b", "dos"}, {"c", "tres"}, {"d", "cuatro"}, {"e", "cinco"},
	}, "f1")

	ok, err := syncer.Sync(context.Background(), chunks, "f1", []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !ok {
		t.Fatal("expected partial match to count as success")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSyncZeroMatchesReturnsFalseWithoutRetry(t *testing.T) {
	syncer, mock, done := newSyncerWithMock(t, 3)
	defer done()

	mock.ExpectBegin()
	expectChunkUpdate(mock, 0)
	mock.ExpectCommit()

	chunks := toDomainChunks([]testChunk{{"a", "uno"}}, "f1")
	ok, err := syncer.Sync(context.Background(), chunks, "f1", []string{"a"})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if ok {
		t.Fatal("expected false when nothing matched")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSyncRetriesTransientFailure(t *testing.T) {
	syncer, mock, done := newSyncerWithMock(t, 2)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE document_chunks").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	mock.ExpectBegin()
	expectChunkUpdate(mock, 1)
	mock.ExpectCommit()

	chunks := toDomainChunks([]testChunk{{"a", "uno"}}, "f1")
	ok, err := syncer.Sync(context.Background(), chunks, "f1", []string{"a"})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !ok {
		t.Fatal("expected success after retry")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSyncMatchesRowsByGeneratedIDs(t *testing.T) {
	syncer, mock, done := newSyncerWithMock(t, 1)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE document_chunks").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "g1", "f1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE document_chunks").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "g2", "f1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Insert handed back different ids than the ones the chunks carry;
	// the update must match on the returned ids.
	chunks := toDomainChunks([]testChunk{{"a", "uno"}, {"b", "dos"}}, "f1")
	ok, err := syncer.Sync(context.Background(), chunks, "f1", []string{"g1", "g2"})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !ok {
		t.Fatal("expected success")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSyncRejectsMismatchedIDCount(t *testing.T) {
	syncer, mock, done := newSyncerWithMock(t, 3)
	defer done()

	chunks := toDomainChunks([]testChunk{{"a", "uno"}, {"b", "dos"}}, "f1")
	if _, err := syncer.Sync(context.Background(), chunks, "f1", []string{"g1"}); err == nil {
		t.Fatal("expected error for mismatched id count")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSyncEmptyChunksIsNoOp(t *testing.T) {
	syncer, mock, done := newSyncerWithMock(t, 3)
	defer done()

	ok, err := syncer.Sync(context.Background(), nil, "f1", nil)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if ok {
		t.Fatal("expected false for empty batch")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
