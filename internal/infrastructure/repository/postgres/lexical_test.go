package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkravets/rag-retrieval/internal/core/domain"
)

func newLexicalWithMock(t *testing.T) (*LexicalSearcher, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, done := newMockDB(t)
	store, err := NewChunkStore(StaticPool{DB: db}, "spanish", testLogger())
	if err != nil {
		t.Fatalf("NewChunkStore() error = %v", err)
	}
	searcher, err := NewLexicalSearcher(StaticPool{DB: db}, store, "spanish", nil, testLogger())
	if err != nil {
		t.Fatalf("NewLexicalSearcher() error = %v", err)
	}
	return searcher, mock, done
}

func TestCleanQuery(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"¿Cuánto cuesta la TARIFA?", "cuánto cuesta la tarifa"},
		{"  spaced    out  ", "spaced out"},
		{"symbols!@#$%^&*()", "symbols"},
		{"!!!", ""},
	}
	for _, tc := range cases {
		if got := CleanQuery(tc.in); got != tc.want {
			t.Fatalf("CleanQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSearchEmptyCleanedQueryHitsNoDatabase(t *testing.T) {
	searcher, mock, done := newLexicalWithMock(t)
	defer done()

	results, err := searcher.Search(context.Background(), "???", 4, nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchEmptyInFilterHitsNoDatabase(t *testing.T) {
	searcher, mock, done := newLexicalWithMock(t)
	defer done()

	results, err := searcher.Search(context.Background(), "tarifa", 4, []domain.FieldFilter{inFilter("file_id")}, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchAndModeUsesPlainToTsquery(t *testing.T) {
	searcher, mock, done := newLexicalWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"custom_id", "content", "metadata", "rank"}).
		AddRow("c1", "la tarifa sube", []byte(`{"file_id":"f1","chunk_index":0}`), 0.42)

	mock.ExpectQuery(`ts_rank_cd\(search_vector, plainto_tsquery\('spanish', \$1\), 32\)`).
		WithArgs("tarifa eléctrica", 4).
		WillReturnRows(rows)

	results, err := searcher.Search(context.Background(), "Tarifa ELÉCTRICA", 4, nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Score != 0.42 {
		t.Fatalf("unexpected results: %+v", results)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchOrModeJoinsTermsWithPipe(t *testing.T) {
	searcher, mock, done := newLexicalWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"custom_id", "content", "metadata", "rank"})
	mock.ExpectQuery(`to_tsquery\('spanish', \$1\)`).
		WithArgs("tarifa | peaje | acceso", 4).
		WillReturnRows(rows)

	if _, err := searcher.Search(context.Background(), "tarifa peaje acceso", 4, nil, true); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchInFilterUsesNativeAnyClause(t *testing.T) {
	searcher, mock, done := newLexicalWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"custom_id", "content", "metadata", "rank"})
	mock.ExpectQuery(`AND metadata->>\$3 = ANY\(\$4\)`).
		WithArgs("tarifa", 4, "file_id", stringSliceArg{"f1", "f2"}).
		WillReturnRows(rows)

	filters := []domain.FieldFilter{inFilter("file_id", "f1", "f2")}
	if _, err := searcher.Search(context.Background(), "tarifa", 4, filters, false); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	searcher, mock, done := newLexicalWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS document_chunks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_document_chunks_file_id").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ADD COLUMN IF NOT EXISTS search_text").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ADD COLUMN IF NOT EXISTS search_vector").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_document_chunks_search_vector").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE document_chunks SET search_text").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := searcher.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !searcher.Ready() {
		t.Fatal("expected Ready() after Initialize")
	}

	// Second call must not touch the database again.
	if err := searcher.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
