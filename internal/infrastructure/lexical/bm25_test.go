package lexical

import (
	"math"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("  The System\tSHALL\nrespond ")
	want := []string{"the", "system", "shall", "respond"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokenize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScoresMatchOkapiFormula(t *testing.T) {
	docs := []string{
		"response time shall be under two seconds",
		"the user interface shall be intuitive",
		"the system shall log every login attempt",
	}
	idx := Build(docs)
	scores := idx.Scores([]string{"response"})

	// "response" appears once in a 7-token doc; avgdl = (7+6+7)/3.
	avgdl := 20.0 / 3.0
	idf := math.Log(3-1+0.5) - math.Log(1+0.5)
	want := idf * (1 * (DefaultK1 + 1) / (1 + DefaultK1*(1-DefaultB+DefaultB*7/avgdl)))
	if math.Abs(scores[0]-want) > 1e-12 {
		t.Fatalf("score = %v, want %v", scores[0], want)
	}
	if scores[1] != 0 || scores[2] != 0 {
		t.Fatalf("expected zero scores for non-matching docs, got %v", scores)
	}
}

func TestNegativeIDFReplacedByEpsilon(t *testing.T) {
	docs := []string{"shall alpha", "shall beta", "shall gamma"}
	idx := Build(docs)

	shallRaw := math.Log(3-3+0.5) - math.Log(3+0.5)
	uniqueRaw := math.Log(3-1+0.5) - math.Log(1+0.5)
	avg := (shallRaw + 3*uniqueRaw) / 4
	if got := idx.idf["shall"]; math.Abs(got-DefaultEpsilon*avg) > 1e-12 {
		t.Fatalf("idf(shall) = %v, want %v", got, DefaultEpsilon*avg)
	}
}

func TestTopNOrdersByScoreAndKeepsZeroScores(t *testing.T) {
	docs := []string{"alpha beta", "gamma delta", "beta beta gamma", "epsilon", "zeta", "eta"}
	idx := Build(docs)

	got := idx.TopN("Beta", 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 docs, got %v", got)
	}
	if got[0] != "beta beta gamma" || got[1] != "alpha beta" {
		t.Fatalf("unexpected ranking %v", got)
	}
	if got[2] != "gamma delta" {
		t.Fatalf("expected first zero-score doc in corpus order, got %q", got[2])
	}
}

func TestEmptyIndex(t *testing.T) {
	idx := Build(nil)
	if idx.Len() != 0 {
		t.Fatalf("expected empty index")
	}
	if got := idx.TopN("x", 5); len(got) != 0 {
		t.Fatalf("expected no results, got %v", got)
	}
}

func TestBuilderSatisfiesPort(t *testing.T) {
	idx := NewBuilder().Build([]string{"reports are exported", "login attempts are logged", "exports run nightly"})
	if idx.Len() != 3 {
		t.Fatalf("Len() = %d", idx.Len())
	}
	if got := idx.TopN("LOGIN", 1); len(got) != 1 || got[0] != "login attempts are logged" {
		t.Fatalf("TopN() = %v", got)
	}
}
