package usecase

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/core/ports"
)

type storeFake struct {
	mu          sync.Mutex
	chunks      []domain.KnowledgeChunk
	upsertErr   error
	countErr    error
	searchHits  []string
	searchCalls int
	scanCalls   int
}

func (f *storeFake) Upsert(_ context.Context, chunks []domain.KnowledgeChunk) ([]domain.KnowledgeChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	seen := make(map[string]struct{}, len(f.chunks))
	for _, ch := range f.chunks {
		seen[ch.ID] = struct{}{}
	}
	var fresh []domain.KnowledgeChunk
	for _, ch := range chunks {
		if _, ok := seen[ch.ID]; ok {
			continue
		}
		seen[ch.ID] = struct{}{}
		f.chunks = append(f.chunks, ch)
		fresh = append(fresh, ch)
	}
	return fresh, nil
}

func (f *storeFake) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.chunks), nil
}

func (f *storeFake) Scan(context.Context) ([]domain.KnowledgeChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanCalls++
	return append([]domain.KnowledgeChunk(nil), f.chunks...), nil
}

func (f *storeFake) Search(_ context.Context, _ []float32, limit int) ([]domain.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	var out []domain.ScoredChunk
	for i, text := range f.searchHits {
		if i == limit {
			break
		}
		out = append(out, domain.ScoredChunk{Chunk: domain.KnowledgeChunk{Text: text}, Score: 1 / float64(i+1)})
	}
	return out, nil
}

type embedderFake struct {
	mu         sync.Mutex
	err        error
	calls      int
	queryCalls int
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

// containsIndex ranks documents sharing at least one lowercase token with the
// query, in corpus order.
type containsIndex struct {
	docs []string
}

func (i containsIndex) Len() int { return len(i.docs) }

func (i containsIndex) TopN(query string, n int) []string {
	tokens := strings.Fields(strings.ToLower(query))
	var out []string
	for _, doc := range i.docs {
		lower := strings.ToLower(doc)
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				out = append(out, doc)
				break
			}
		}
		if len(out) == n {
			break
		}
	}
	return out
}

type containsBuilder struct {
	builds int
}

func (b *containsBuilder) Build(docs []string) ports.LexicalIndex {
	b.builds++
	return containsIndex{docs: append([]string(nil), docs...)}
}

type crossEncoderFake struct {
	scores func(query string, candidates []string) []float64
	err    error
	calls  int
}

func (f *crossEncoderFake) Score(_ context.Context, query string, candidates []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.scores != nil {
		return f.scores(query, candidates), nil
	}
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		out[i] = float64(len(c))
	}
	return out, nil
}

type generatorFake struct {
	out     string
	err     error
	calls   int
	prompts []string
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

type classifierFunc func(ctx context.Context, sentence string) (domain.Classification, error)

func (f classifierFunc) Classify(ctx context.Context, sentence string) (domain.Classification, error) {
	return f(ctx, sentence)
}

type resolverFunc func(ctx context.Context, text string, includeExplanation bool) (domain.Resolution, error)

func (f resolverFunc) Resolve(ctx context.Context, text string, includeExplanation bool) (domain.Resolution, error) {
	return f(ctx, text, includeExplanation)
}

type storageFake struct {
	saved   map[string]string
	saveErr error
	pathErr error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = make(map[string]string)
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.saved[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *storageFake) Path(key string) (string, error) {
	if f.pathErr != nil {
		return "", f.pathErr
	}
	return "/uploads/" + key, nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishKnowledgeUploaded(_ context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, key)
	return nil
}

func (f *queueFake) SubscribeKnowledgeUploaded(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type parserFake struct {
	files     map[string]domain.ParsedFile
	dir       domain.ParsedFile
	parsed    []string
	supported map[string]bool
}

func (f *parserFake) Supports(filename string) bool {
	if f.supported == nil {
		return true
	}
	return f.supported[filename]
}

func (f *parserFake) ParseFile(_ context.Context, path string) domain.ParsedFile {
	f.parsed = append(f.parsed, path)
	return f.files[path]
}

func (f *parserFake) LoadDirectory(context.Context, string) domain.ParsedFile {
	return f.dir
}

func parsedOf(source string, texts ...string) domain.ParsedFile {
	var p domain.ParsedFile
	for i, text := range texts {
		p.Append(
			source+"_chunk_"+strconv.Itoa(i),
			text,
			domain.Provenance{
				Source:      source,
				Type:        domain.SourceTypeTemplate,
				ContentType: domain.ContentTemplate,
				Locator:     domain.Locator{Kind: domain.LocatorChunkIndex, Index: i},
			},
		)
	}
	return p
}

func newTestKB(store *storeFake, embedder *embedderFake) (*KnowledgeBase, *containsBuilder) {
	builder := &containsBuilder{}
	return NewKnowledgeBase(store, embedder, builder, nil), builder
}
