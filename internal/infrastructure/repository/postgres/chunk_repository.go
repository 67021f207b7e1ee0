package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

// ChunkRepository stores knowledge chunks in Postgres. Embeddings are kept as
// JSONB and searched by brute-force cosine similarity.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS knowledge_chunks (
	seq BIGSERIAL NOT NULL,
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	source TEXT NOT NULL,
	source_type TEXT NOT NULL,
	content_type TEXT NOT NULL,
	locator_kind TEXT NOT NULL,
	pages TEXT NOT NULL DEFAULT '',
	locator_index INTEGER NOT NULL DEFAULT 0,
	embedding JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_seq ON knowledge_chunks(seq);
CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_source ON knowledge_chunks(source);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Upsert inserts chunks in one transaction. Ids that already exist are left
// untouched and are not part of the returned slice.
func (r *ChunkRepository) Upsert(ctx context.Context, chunks []domain.KnowledgeChunk) ([]domain.KnowledgeChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	fresh := make([]domain.KnowledgeChunk, 0, len(chunks))
	for _, ch := range chunks {
		embedding, err := json.Marshal(ch.Embedding)
		if err != nil {
			return nil, fmt.Errorf("marshal embedding: %w", err)
		}
		m := ch.Metadata
		var id string
		err = tx.QueryRowContext(ctx, `
INSERT INTO knowledge_chunks (id, text, source, source_type, content_type, locator_kind, pages, locator_index, embedding)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO NOTHING
RETURNING id
`,
			ch.ID, ch.Text, m.Source, string(m.Type), string(m.ContentType), string(m.Locator.Kind), m.Locator.Pages, m.Locator.Index, embedding,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
		fresh = append(fresh, ch)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert tx: %w", err)
	}
	return fresh, nil
}

func (r *ChunkRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Scan returns every chunk in insertion order, without embeddings.
func (r *ChunkRepository) Scan(ctx context.Context) ([]domain.KnowledgeChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, text, source, source_type, content_type, locator_kind, pages, locator_index
FROM knowledge_chunks
ORDER BY seq ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.KnowledgeChunk
	for rows.Next() {
		ch, err := scanChunk(rows, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (r *ChunkRepository) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, text, source, source_type, content_type, locator_kind, pages, locator_index, embedding
FROM knowledge_chunks
ORDER BY seq ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query chunks for search: %w", err)
	}
	defer rows.Close()

	var hits []domain.ScoredChunk
	for rows.Next() {
		var raw []byte
		ch, err := scanChunk(rows, &raw)
		if err != nil {
			return nil, err
		}
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err != nil {
			return nil, fmt.Errorf("unmarshal embedding for %s: %w", ch.ID, err)
		}
		hits = append(hits, domain.ScoredChunk{Chunk: ch, Score: cosine(queryVector, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks for search: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func scanChunk(rows *sql.Rows, embedding *[]byte) (domain.KnowledgeChunk, error) {
	var (
		ch                                  domain.KnowledgeChunk
		sourceType, contentType, locatorKnd string
	)
	dest := []any{
		&ch.ID, &ch.Text, &ch.Metadata.Source, &sourceType, &contentType, &locatorKnd,
		&ch.Metadata.Locator.Pages, &ch.Metadata.Locator.Index,
	}
	if embedding != nil {
		dest = append(dest, embedding)
	}
	if err := rows.Scan(dest...); err != nil {
		return domain.KnowledgeChunk{}, fmt.Errorf("scan chunk: %w", err)
	}
	ch.Metadata.Type = domain.SourceType(sourceType)
	ch.Metadata.ContentType = domain.ContentType(contentType)
	ch.Metadata.Locator.Kind = domain.LocatorKind(locatorKnd)
	return ch, nil
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
