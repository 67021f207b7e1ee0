package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/core/ports"
)

// KnowledgeBase owns the durable chunk store together with an in-memory
// mirror of the corpus and the lexical index built over it. The mirror always
// has one entry per stored chunk once an Add or Sync has returned.
type KnowledgeBase struct {
	store    ports.ChunkStore
	embedder ports.Embedder
	lexical  ports.LexicalIndexBuilder
	logger   *slog.Logger
	observer KnowledgeObserver

	mu      sync.RWMutex
	texts   []string
	metas   []domain.Provenance
	byText  map[string]domain.Provenance
	index   ports.LexicalIndex
	version uint64
}

// KnowledgeObserver is notified with the corpus size after every change.
type KnowledgeObserver interface {
	SetKnowledgeChunks(n int)
}

func NewKnowledgeBase(
	store ports.ChunkStore,
	embedder ports.Embedder,
	lexical ports.LexicalIndexBuilder,
	logger *slog.Logger,
) *KnowledgeBase {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeBase{
		store:    store,
		embedder: embedder,
		lexical:  lexical,
		logger:   logger,
		byText:   make(map[string]domain.Provenance),
		index:    lexical.Build(nil),
	}
}

func (kb *KnowledgeBase) SetObserver(o KnowledgeObserver) {
	kb.observer = o
}

// Add embeds and persists a batch of chunks, then extends the mirror and
// rebuilds the lexical index. A failure before persistence leaves the mirror
// untouched. Returns the number of chunks the store accepted as new.
func (kb *KnowledgeBase) Add(ctx context.Context, docs, ids []string, metas []domain.Provenance) (int, error) {
	if len(docs) != len(ids) || len(ids) != len(metas) {
		return 0, domain.WrapError(domain.ErrInvalidInput, "add knowledge",
			fmt.Errorf("misaligned batch: %d docs, %d ids, %d metadatas", len(docs), len(ids), len(metas)))
	}
	if len(docs) == 0 {
		return 0, nil
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	vectors, err := kb.embedder.Embed(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(docs) {
		return 0, fmt.Errorf("embed chunks: vectors/chunks mismatch: %d/%d", len(vectors), len(docs))
	}

	chunks := make([]domain.KnowledgeChunk, len(docs))
	for i := range docs {
		chunks[i] = domain.KnowledgeChunk{ID: ids[i], Text: docs[i], Embedding: vectors[i], Metadata: metas[i]}
	}
	fresh, err := kb.store.Upsert(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("persist chunks: %w", err)
	}

	if len(fresh) > 0 {
		kb.appendLocked(fresh)
		kb.rebuildLocked()
	}
	kb.logger.Info("knowledge_added",
		"submitted", len(docs),
		"added", len(fresh),
		"corpus_size", len(kb.texts),
		"version", kb.version,
	)
	return len(fresh), nil
}

// AddParsed is Add for parser output.
func (kb *KnowledgeBase) AddParsed(ctx context.Context, parsed domain.ParsedFile) (int, error) {
	return kb.Add(ctx, parsed.Documents, parsed.IDs, parsed.Metadatas)
}

func (kb *KnowledgeBase) Count(ctx context.Context) (int, error) {
	n, err := kb.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Sync reloads the mirror from the store when another process has added
// chunks since the mirror was built.
func (kb *KnowledgeBase) Sync(ctx context.Context) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	n, err := kb.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	if n == len(kb.texts) {
		return nil
	}

	chunks, err := kb.store.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan chunks: %w", err)
	}
	kb.texts = kb.texts[:0]
	kb.metas = kb.metas[:0]
	kb.byText = make(map[string]domain.Provenance, len(chunks))
	kb.appendLocked(chunks)
	kb.rebuildLocked()
	kb.logger.Info("knowledge_synced", "corpus_size", len(kb.texts), "version", kb.version)
	return nil
}

// SeedIfEmpty loads the static knowledge only when the store holds nothing.
func (kb *KnowledgeBase) SeedIfEmpty(ctx context.Context, load func(context.Context) domain.ParsedFile) (int, error) {
	n, err := kb.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	parsed := load(ctx)
	if parsed.Len() == 0 {
		kb.logger.Warn("knowledge_seed_empty")
		return 0, nil
	}
	added, err := kb.AddParsed(ctx, parsed)
	if err != nil {
		return 0, fmt.Errorf("seed knowledge: %w", err)
	}
	return added, nil
}

// Lookup returns the provenance recorded for an exact chunk text. Identical
// texts share one entry: the most recently added one.
func (kb *KnowledgeBase) Lookup(text string) (domain.Provenance, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	meta, ok := kb.byText[text]
	return meta, ok
}

func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.texts)
}

func (kb *KnowledgeBase) Version() uint64 {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.version
}

func (kb *KnowledgeBase) appendLocked(chunks []domain.KnowledgeChunk) {
	for _, ch := range chunks {
		kb.texts = append(kb.texts, ch.Text)
		kb.metas = append(kb.metas, ch.Metadata)
		kb.byText[ch.Text] = ch.Metadata
	}
}

func (kb *KnowledgeBase) rebuildLocked() {
	kb.index = kb.lexical.Build(kb.texts)
	kb.version++
	if kb.observer != nil {
		kb.observer.SetKnowledgeChunks(len(kb.texts))
	}
}

// readView runs fn with the corpus under the shared lock.
func (kb *KnowledgeBase) readView(fn func(size int, index ports.LexicalIndex) error) error {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return fn(len(kb.texts), kb.index)
}
