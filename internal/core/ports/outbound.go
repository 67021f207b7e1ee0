package ports

import (
	"context"
	"io"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

// ChunkStore is the durable knowledge store. Upsert reports how many chunks
// were new; re-sending an existing id must not create a duplicate.
type ChunkStore interface {
	Upsert(ctx context.Context, chunks []domain.KnowledgeChunk) ([]domain.KnowledgeChunk, error)
	Count(ctx context.Context) (int, error)
	Scan(ctx context.Context) ([]domain.KnowledgeChunk, error)
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Classifier labels a single requirement sentence.
type Classifier interface {
	Classify(ctx context.Context, sentence string) (domain.Classification, error)
}

// CrossEncoder scores each (query, candidate) pair; one score per candidate.
type CrossEncoder interface {
	Score(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PageSource yields the text of each page of a paged document, in order.
type PageSource interface {
	Pages(ctx context.Context, path string) ([]string, error)
}

// DocumentParser turns a knowledge file into chunks. Unparseable files yield
// an empty result.
type DocumentParser interface {
	Supports(filename string) bool
	ParseFile(ctx context.Context, path string) domain.ParsedFile
	LoadDirectory(ctx context.Context, dir string) domain.ParsedFile
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Path(key string) (string, error)
}

// MessageQueue publishes and consumes knowledge upload events.
type MessageQueue interface {
	PublishKnowledgeUploaded(ctx context.Context, key string) error
	SubscribeKnowledgeUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// LexicalIndex ranks corpus texts for a free-text query.
type LexicalIndex interface {
	TopN(query string, n int) []string
	Len() int
}

// LexicalIndexBuilder builds an index over the full corpus, in corpus order.
type LexicalIndexBuilder interface {
	Build(docs []string) LexicalIndex
}

// RunHistory keeps finished analysis runs. GetRun returns ErrNotFound for an
// unknown id.
type RunHistory interface {
	SaveRun(ctx context.Context, record domain.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
	GetRun(ctx context.Context, id string) (domain.RunRecord, error)
}
