package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/requirements-guard/internal/core/ports"
)

const DefaultTopK = 10

// HybridRetriever fuses semantic search over the store with BM25 over the
// corpus mirror.
type HybridRetriever struct {
	kb       *KnowledgeBase
	embedder ports.Embedder
	rrfK     int
}

func NewHybridRetriever(kb *KnowledgeBase, embedder ports.Embedder) *HybridRetriever {
	return &HybridRetriever{kb: kb, embedder: embedder, rrfK: DefaultRRFK}
}

// Retrieve returns up to topK candidate texts. An empty corpus returns
// nothing without calling any backend.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	var out []string
	err := r.kb.readView(func(size int, index ports.LexicalIndex) error {
		if size == 0 {
			return nil
		}

		queryVector, err := r.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		hits, err := r.kb.store.Search(ctx, queryVector, topK)
		if err != nil {
			return fmt.Errorf("search knowledge store: %w", err)
		}
		semantic := make([]string, 0, len(hits))
		for _, h := range hits {
			semantic = append(semantic, h.Chunk.Text)
		}

		lexical := index.TopN(query, topK)
		out = fuseRRF([][]string{semantic, lexical}, r.rrfK, topK)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
