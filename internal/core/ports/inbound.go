package ports

import (
	"context"
	"io"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

// KnowledgeUploader is the inbound contract for user knowledge uploads.
type KnowledgeUploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (string, error)
}

// KnowledgeIngestor ingests a stored upload into the knowledge base.
type KnowledgeIngestor interface {
	IngestStored(ctx context.Context, key string) (int, error)
}

// KnowledgeSearcher exposes fused and reranked retrieval.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]domain.Evidence, error)
	Count(ctx context.Context) (int, error)
}

// AnalysisRunner is the inbound contract for batch analysis of requirement text.
type AnalysisRunner interface {
	Start(ctx context.Context, text string, includeExplanation bool) (domain.RunSnapshot, error)
	Snapshot() domain.RunSnapshot
	Stop() bool
	Clear() error
}

// AnalysisHistory reads finished runs back.
type AnalysisHistory interface {
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
	GetRun(ctx context.Context, id string) (domain.RunRecord, error)
}
