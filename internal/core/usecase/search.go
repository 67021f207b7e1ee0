package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

// KnowledgeSearchUseCase exposes the evidence selection used for
// resolution as a standalone query.
type KnowledgeSearchUseCase struct {
	kb        *KnowledgeBase
	retriever *HybridRetriever
	reranker  *Reranker
	topN      int
}

func NewKnowledgeSearchUseCase(kb *KnowledgeBase, retriever *HybridRetriever, reranker *Reranker, rerankTopN int) *KnowledgeSearchUseCase {
	if rerankTopN <= 0 {
		rerankTopN = DefaultRerankTopN
	}
	return &KnowledgeSearchUseCase{kb: kb, retriever: retriever, reranker: reranker, topN: rerankTopN}
}

// Search picks up chunks other processes added before querying.
func (uc *KnowledgeSearchUseCase) Search(ctx context.Context, query string, topK int) ([]domain.Evidence, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search knowledge", errors.New("query is empty"))
	}
	if err := uc.kb.Sync(ctx); err != nil {
		return nil, fmt.Errorf("sync knowledge mirror: %w", err)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	evidence, err := selectEvidence(ctx, uc.kb, uc.retriever, uc.reranker, query, topK, uc.topN)
	if err != nil {
		return nil, err
	}
	if evidence == nil {
		evidence = []domain.Evidence{}
	}
	return evidence, nil
}

func (uc *KnowledgeSearchUseCase) Count(ctx context.Context) (int, error) {
	return uc.kb.Count(ctx)
}
