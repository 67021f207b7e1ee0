package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

// qdrantFake keeps points in memory and answers the endpoints the store uses.
type qdrantFake struct {
	mu          sync.Mutex
	points      map[string]map[string]any
	order       []string
	ensureCalls int32
	created     bool
}

func newQdrantFake() *qdrantFake {
	return &qdrantFake{points: make(map[string]map[string]any)}
}

func (f *qdrantFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	if r.Method == http.MethodPut && r.URL.Path == "/collections/kb" {
		atomic.AddInt32(&f.ensureCalls, 1)
		f.created = true
		w.WriteHeader(http.StatusOK)
		return
	}
	if !f.created {
		http.Error(w, "collection not found", http.StatusNotFound)
		return
	}

	switch {
	case r.Method == http.MethodPut && r.URL.Path == "/collections/kb/points":
		for _, raw := range body["points"].([]any) {
			p := raw.(map[string]any)
			id := p["id"].(string)
			if _, ok := f.points[id]; !ok {
				f.order = append(f.order, id)
			}
			f.points[id] = p["payload"].(map[string]any)
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/collections/kb/points":
		var result []map[string]any
		for _, raw := range body["ids"].([]any) {
			if _, ok := f.points[raw.(string)]; ok {
				result = append(result, map[string]any{"id": raw})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	case r.URL.Path == "/collections/kb/points/count":
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": len(f.points)}})
	case r.URL.Path == "/collections/kb/points/scroll":
		// Return in reverse insertion order, split across two pages.
		var pts []map[string]any
		for i := len(f.order) - 1; i >= 0; i-- {
			pts = append(pts, map[string]any{"id": f.order[i], "payload": f.points[f.order[i]]})
		}
		if body["offset"] == nil && len(pts) > 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"points": pts[:1], "next_page_offset": "p2"}})
			return
		}
		if body["offset"] != nil {
			pts = pts[1:]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"points": pts, "next_page_offset": nil}})
	case r.URL.Path == "/collections/kb/points/search":
		var result []map[string]any
		for i, id := range f.order {
			result = append(result, map[string]any{"score": 1.0 - float64(i)/10, "payload": f.points[id]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	default:
		http.NotFound(w, r)
	}
}

func chunk(id, text string) domain.KnowledgeChunk {
	return domain.KnowledgeChunk{
		ID:        id,
		Text:      text,
		Embedding: []float32{0.1, 0.2},
		Metadata: domain.Provenance{
			Source:      "rules.json",
			Type:        domain.SourceTypeJSON,
			ContentType: domain.ContentAmbiguityRule,
			Locator:     domain.Locator{Kind: domain.LocatorItemIndex, Index: 3},
		},
	}
}

func TestUpsertSkipsExistingIDs(t *testing.T) {
	fake := newQdrantFake()
	server := httptest.NewServer(fake)
	defer server.Close()

	store := New(server.URL, "kb")
	ctx := context.Background()

	fresh, err := store.Upsert(ctx, []domain.KnowledgeChunk{chunk("rules.json_item_0", "a"), chunk("rules.json_item_1", "b")})
	if err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("expected 2 new chunks, got %d", len(fresh))
	}

	fresh, err = store.Upsert(ctx, []domain.KnowledgeChunk{chunk("rules.json_item_1", "b"), chunk("rules.json_item_2", "c")})
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if len(fresh) != 1 || fresh[0].ID != "rules.json_item_2" {
		t.Fatalf("expected only item_2 to be new, got %+v", fresh)
	}
	if got := atomic.LoadInt32(&fake.ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}

	count, err := store.Count(ctx)
	if err != nil || count != 3 {
		t.Fatalf("Count() = %d, %v", count, err)
	}
}

func TestScanRestoresInsertionOrder(t *testing.T) {
	server := httptest.NewServer(newQdrantFake())
	defer server.Close()

	store := New(server.URL, "kb")
	ctx := context.Background()
	for _, id := range []string{"f_item_0", "f_item_1", "f_item_2"} {
		if _, err := store.Upsert(ctx, []domain.KnowledgeChunk{chunk(id, "text "+id)}); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	chunks, err := store.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, want := range []string{"f_item_0", "f_item_1", "f_item_2"} {
		if chunks[i].ID != want {
			t.Fatalf("chunk %d = %s, want %s", i, chunks[i].ID, want)
		}
	}
	if chunks[0].Metadata.ContentType != domain.ContentAmbiguityRule || chunks[0].Metadata.Location() != "Item 3" {
		t.Fatalf("metadata not restored: %+v", chunks[0].Metadata)
	}
}

func TestMissingCollectionReadsAsEmpty(t *testing.T) {
	server := httptest.NewServer(newQdrantFake())
	defer server.Close()

	store := New(server.URL, "kb")
	ctx := context.Background()
	if n, err := store.Count(ctx); err != nil || n != 0 {
		t.Fatalf("Count() = %d, %v", n, err)
	}
	if chunks, err := store.Scan(ctx); err != nil || len(chunks) != 0 {
		t.Fatalf("Scan() = %v, %v", chunks, err)
	}
	if hits, err := store.Search(ctx, []float32{1, 0}, 5); err != nil || len(hits) != 0 {
		t.Fatalf("Search() = %v, %v", hits, err)
	}
}

func TestSearchDecodesPayload(t *testing.T) {
	server := httptest.NewServer(newQdrantFake())
	defer server.Close()

	store := New(server.URL, "kb")
	ctx := context.Background()
	if _, err := store.Upsert(ctx, []domain.KnowledgeChunk{chunk("a_item_0", "first"), chunk("a_item_1", "second")}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	hits, err := store.Search(ctx, []float32{0.1, 0.2}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 || hits[0].Chunk.Text != "first" || hits[0].Score <= hits[1].Score {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/kb" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	store := New(server.URL, "kb")
	_, err := store.Upsert(context.Background(), []domain.KnowledgeChunk{chunk("x_item_0", "a")})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestPointIDIsDeterministic(t *testing.T) {
	if PointID("a.pdf_chunk_0") != PointID("a.pdf_chunk_0") {
		t.Fatalf("expected stable point id")
	}
	if PointID("a.pdf_chunk_0") == PointID("a.pdf_chunk_1") {
		t.Fatalf("expected distinct point ids")
	}
}
