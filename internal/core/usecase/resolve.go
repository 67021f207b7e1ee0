package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/core/ports"
)

// ResolveUseCase rewrites an ambiguous requirement using retrieved evidence.
type ResolveUseCase struct {
	kb        *KnowledgeBase
	retriever *HybridRetriever
	reranker  *Reranker
	generator ports.Generator
	logger    *slog.Logger

	topK int
	topN int
}

type ResolveOptions struct {
	TopK       int
	RerankTopN int
}

func NewResolveUseCase(
	kb *KnowledgeBase,
	retriever *HybridRetriever,
	reranker *Reranker,
	generator ports.Generator,
	logger *slog.Logger,
	opts ResolveOptions,
) *ResolveUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.RerankTopN <= 0 {
		opts.RerankTopN = DefaultRerankTopN
	}
	return &ResolveUseCase{
		kb:        kb,
		retriever: retriever,
		reranker:  reranker,
		generator: generator,
		logger:    logger,
		topK:      opts.TopK,
		topN:      opts.RerankTopN,
	}
}

// Resolve never fails on generation: a backend error becomes the rewrite
// text with empty evidence. Errors are returned only for retrieval and
// reranking failures.
func (uc *ResolveUseCase) Resolve(ctx context.Context, text string, includeExplanation bool) (domain.Resolution, error) {
	evidence, err := uc.SelectEvidence(ctx, text)
	if err != nil {
		return domain.Resolution{}, err
	}
	if len(evidence) == 0 {
		return domain.NoContextResolution(), nil
	}

	texts := make([]string, len(evidence))
	for i, ev := range evidence {
		texts[i] = ev.Text
	}
	rewrite, err := uc.generator.Generate(ctx, buildResolutionPrompt(text, texts, includeExplanation))
	if err != nil {
		uc.logger.Warn("generation_failed", "error", err)
		return domain.GenerationFailedResolution(err), nil
	}
	return domain.Resolution{Rewrite: rewrite, Evidence: evidence}, nil
}

// SelectEvidence runs retrieval and reranking and attaches provenance. A text
// with no recorded provenance gets an empty record.
func (uc *ResolveUseCase) SelectEvidence(ctx context.Context, text string) ([]domain.Evidence, error) {
	return selectEvidence(ctx, uc.kb, uc.retriever, uc.reranker, text, uc.topK, uc.topN)
}

func selectEvidence(
	ctx context.Context,
	kb *KnowledgeBase,
	retriever *HybridRetriever,
	reranker *Reranker,
	text string,
	topK, topN int,
) ([]domain.Evidence, error) {
	candidates, err := retriever.Retrieve(ctx, text, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	best, err := reranker.Rerank(ctx, text, candidates, topN)
	if err != nil {
		return nil, fmt.Errorf("rerank context: %w", err)
	}

	evidence := make([]domain.Evidence, 0, len(best))
	for _, doc := range best {
		meta, _ := kb.Lookup(doc)
		evidence = append(evidence, domain.Evidence{Text: doc, Provenance: meta})
	}
	return evidence, nil
}

func buildResolutionPrompt(requirement string, contextTexts []string, includeExplanation bool) string {
	var b strings.Builder
	b.WriteString("You are a QA Specialist. Rewrite the ambiguous requirement to be clear using the context.\n")
	b.WriteString("CONTEXT:\n")
	b.WriteString(strings.Join(contextTexts, "\n- "))
	b.WriteString("\n\nTASK:\n")
	if includeExplanation {
		b.WriteString("1. Explain specifically why the requirement is ambiguous.\n")
		b.WriteString("2. Provide the rewritten requirement clearly.\n")
	} else {
		b.WriteString("1. Output ONLY the rewritten requirement sentence.\n")
		b.WriteString("2. Do NOT provide explanations, notes, or introductory text.\n")
		b.WriteString("3. Do NOT use labels like \"Rewritten:\".\n")
	}
	b.WriteString("\nRequirement: \"" + requirement + "\"\n")
	return b.String()
}
