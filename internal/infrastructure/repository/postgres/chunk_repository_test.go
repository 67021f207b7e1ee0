package postgres

import (
	"context"
	"database/sql"
	"math"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ChunkRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ChunkRepository{db: db}, mock, func() { _ = db.Close() }
}

var chunkColumns = []string{"id", "text", "source", "source_type", "content_type", "locator_kind", "pages", "locator_index"}

func ruleChunk(id string) domain.KnowledgeChunk {
	return domain.KnowledgeChunk{
		ID:        id,
		Text:      "Rule " + id,
		Embedding: []float32{1, 0},
		Metadata: domain.Provenance{
			Source:      "rules.json",
			Type:        domain.SourceTypeJSON,
			ContentType: domain.ContentAmbiguityRule,
			Locator:     domain.Locator{Kind: domain.LocatorItemIndex, Index: 0},
		},
	}
}

func TestUpsertReturnsOnlyInsertedChunks(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO knowledge_chunks").
		WithArgs("rules.json_item_0", "Rule rules.json_item_0", "rules.json", "json", "ambiguity_rule", "item_index", "", 0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rules.json_item_0"))
	mock.ExpectQuery("INSERT INTO knowledge_chunks").
		WithArgs("rules.json_item_1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	fresh, err := repo.Upsert(context.Background(), []domain.KnowledgeChunk{ruleChunk("rules.json_item_0"), ruleChunk("rules.json_item_1")})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(fresh) != 1 || fresh[0].ID != "rules.json_item_0" {
		t.Fatalf("unexpected fresh chunks %+v", fresh)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertRollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO knowledge_chunks").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	if _, err := repo.Upsert(context.Background(), []domain.KnowledgeChunk{ruleChunk("x")}); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCount(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	n, err := repo.Count(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("Count() = %d, %v", n, err)
	}
}

func TestScanMapsProvenance(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, text, source").
		WillReturnRows(sqlmock.NewRows(chunkColumns).
			AddRow("srs.pdf_chunk_0", "text a", "srs.pdf", "pdf", "document", "page_range", "3-5", 0).
			AddRow("t.md_chunk_1", "text b", "t.md", "template", "template", "chunk_index", "", 1))

	chunks, err := repo.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Metadata.Location() != "Page 3-5" || chunks[1].Metadata.Location() != "Chunk 1" {
		t.Fatalf("unexpected locations %s / %s", chunks[0].Metadata.Location(), chunks[1].Metadata.Location())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchRanksByCosine(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	cols := append(append([]string{}, chunkColumns...), "embedding")
	mock.ExpectQuery("SELECT id, text, source").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a", "orthogonal", "f.json", "json", "structured_data", "item_index", "", 0, []byte(`[0,1]`)).
			AddRow("b", "aligned", "f.json", "json", "structured_data", "item_index", "", 1, []byte(`[2,0]`)).
			AddRow("c", "diagonal", "f.json", "json", "structured_data", "item_index", "", 2, []byte(`[1,1]`)))

	hits, err := repo.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 || hits[0].Chunk.ID != "b" || hits[1].Chunk.ID != "c" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if math.Abs(hits[1].Score-1/math.Sqrt2) > 1e-9 {
		t.Fatalf("unexpected score %v", hits[1].Score)
	}
}

func TestCosineHandlesZeroVectors(t *testing.T) {
	if got := cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Fatalf("cosine() = %v", got)
	}
}
