package usecase

import (
	"context"
	"errors"
	"testing"
)

func TestRetrieveEmptyCorpusMakesNoBackendCalls(t *testing.T) {
	store := &storeFake{searchHits: []string{"ghost"}}
	embedder := &embedderFake{}
	kb, _ := newTestKB(store, embedder)

	got, err := NewHybridRetriever(kb, embedder).Retrieve(context.Background(), "anything", 10)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
	if embedder.queryCalls != 0 || store.searchCalls != 0 {
		t.Fatalf("expected no backend calls, embed=%d search=%d", embedder.queryCalls, store.searchCalls)
	}
}

func TestRetrieveFusesSemanticAndLexicalLists(t *testing.T) {
	store := &storeFake{}
	embedder := &embedderFake{}
	kb, _ := newTestKB(store, embedder)
	ctx := context.Background()
	if _, err := kb.AddParsed(ctx, parsedOf("kb.txt", "fast response", "secure login", "user friendly screen")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store.searchHits = []string{"user friendly screen", "secure login"}

	got, err := NewHybridRetriever(kb, embedder).Retrieve(ctx, "secure login", 10)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 fused candidates, got %v", got)
	}
	// "secure login" is ranked in both lists and must win.
	if got[0] != "secure login" || got[1] != "user friendly screen" {
		t.Fatalf("unexpected fused order: %v", got)
	}
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	store := &storeFake{}
	embedder := &embedderFake{}
	kb, _ := newTestKB(store, embedder)
	ctx := context.Background()
	if _, err := kb.AddParsed(ctx, parsedOf("kb.txt", "a x", "b x", "c x")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store.searchHits = []string{"c x", "b x", "a x"}

	got, err := NewHybridRetriever(kb, embedder).Retrieve(ctx, "x", 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %v", got)
	}
}

func TestRetrievePropagatesEmbeddingError(t *testing.T) {
	store := &storeFake{}
	embedder := &embedderFake{}
	kb, _ := newTestKB(store, embedder)
	if _, err := kb.AddParsed(context.Background(), parsedOf("kb.txt", "text")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	embedder.err = errors.New("embed failed")

	if _, err := NewHybridRetriever(kb, embedder).Retrieve(context.Background(), "text", 10); err == nil {
		t.Fatalf("expected error")
	}
}
