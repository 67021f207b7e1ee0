package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

// RunRepository keeps finished analysis runs. Results are stored as JSONB;
// listings read only the counters.
type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101602)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	total INTEGER NOT NULL,
	processed INTEGER NOT NULL,
	clear_count INTEGER NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	results JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_finished_at ON analysis_runs(finished_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RunRepository) SaveRun(ctx context.Context, record domain.RunRecord) error {
	results := record.Results
	if results == nil {
		results = []domain.AnalysisResult{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal run results: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO analysis_runs (id, state, total, processed, clear_count, started_at, finished_at, results)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE
SET state = EXCLUDED.state, processed = EXCLUDED.processed, clear_count = EXCLUDED.clear_count,
	finished_at = EXCLUDED.finished_at, results = EXCLUDED.results
`, record.ID, string(record.State), record.Total, record.Summary.Total, record.Summary.Clear,
		record.StartedAt.UTC(), record.FinishedAt.UTC(), raw)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, state, total, processed, clear_count, started_at, finished_at
FROM analysis_runs
ORDER BY finished_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RunRecord, 0)
	for rows.Next() {
		var (
			record             domain.RunRecord
			state              string
			processed, cleared int
		)
		if err := rows.Scan(&record.ID, &state, &record.Total, &processed, &cleared, &record.StartedAt, &record.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		record.State = domain.RunState(state)
		record.Summary = summaryFromCounts(processed, cleared)
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func (r *RunRepository) GetRun(ctx context.Context, id string) (domain.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, state, total, started_at, finished_at, results
FROM analysis_runs
WHERE id = $1
`, id)

	var (
		record     domain.RunRecord
		state      string
		rawResults []byte
		startedAt  time.Time
		finishedAt time.Time
	)
	if err := row.Scan(&record.ID, &state, &record.Total, &startedAt, &finishedAt, &rawResults); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RunRecord{}, domain.WrapError(domain.ErrNotFound, "get run", fmt.Errorf("id=%s", id))
		}
		return domain.RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	if err := json.Unmarshal(rawResults, &record.Results); err != nil {
		return domain.RunRecord{}, fmt.Errorf("decode run results: %w", err)
	}
	record.State = domain.RunState(state)
	record.StartedAt = startedAt
	record.FinishedAt = finishedAt
	record.Summary = domain.Summarize(record.Results)
	return record, nil
}

func summaryFromCounts(processed, cleared int) domain.Summary {
	s := domain.Summary{Total: processed, Clear: cleared, Ambiguous: processed - cleared}
	if processed > 0 {
		s.AmbiguityRate = float64(s.Ambiguous) / float64(processed) * 100
	}
	return s
}
