package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/kirillkom/requirements-guard/internal/core/ports"
)

const DefaultRerankTopN = 5

// Reranker reorders fused candidates by pairwise cross-encoder relevance.
type Reranker struct {
	scorer ports.CrossEncoder
}

func NewReranker(scorer ports.CrossEncoder) *Reranker {
	return &Reranker{scorer: scorer}
}

// Rerank scores every candidate in one batch and returns the best topN, most
// relevant first. Equal scores keep input order.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []string, topN int) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if topN <= 0 {
		topN = DefaultRerankTopN
	}

	scores, err := r.scorer.Score(ctx, query, candidates)
	if err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("score candidates: got %d scores for %d candidates", len(scores), len(candidates))
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	if topN > len(order) {
		topN = len(order)
	}
	out := make([]string, 0, topN)
	for _, i := range order[:topN] {
		out = append(out, candidates[i])
	}
	return out, nil
}
