package usecase

import (
	"context"
	"reflect"
	"testing"
)

func TestRerankOrdersByScoreAndKeepsTopN(t *testing.T) {
	scorer := &crossEncoderFake{scores: func(_ string, c []string) []float64 {
		return []float64{0.1, 0.9, 0.5, 0.9}
	}}
	got, err := NewReranker(scorer).Rerank(context.Background(), "q", []string{"a", "b", "c", "d"}, 3)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if want := []string{"b", "d", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Rerank() = %v, want %v", got, want)
	}
	if scorer.calls != 1 {
		t.Fatalf("expected one batched scoring call, got %d", scorer.calls)
	}
}

func TestRerankFewerCandidatesThanTopN(t *testing.T) {
	got, err := NewReranker(&crossEncoderFake{}).Rerank(context.Background(), "q", []string{"aa", "a", "aaa"}, 5)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if want := []string{"aaa", "aa", "a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Rerank() = %v, want %v", got, want)
	}
}

func TestRerankScoreCountMismatch(t *testing.T) {
	scorer := &crossEncoderFake{scores: func(string, []string) []float64 { return []float64{1} }}
	if _, err := NewReranker(scorer).Rerank(context.Background(), "q", []string{"a", "b"}, 5); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestRerankEmptyCandidatesSkipsScorer(t *testing.T) {
	scorer := &crossEncoderFake{}
	got, err := NewReranker(scorer).Rerank(context.Background(), "q", nil, 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v err=%v", got, err)
	}
	if scorer.calls != 0 {
		t.Fatalf("expected no scorer calls, got %d", scorer.calls)
	}
}
