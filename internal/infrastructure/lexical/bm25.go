// Package lexical implements the in-process Okapi BM25 keyword index used
// next to the semantic store.
package lexical

import (
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/requirements-guard/internal/core/ports"
)

const (
	DefaultK1      = 1.5
	DefaultB       = 0.75
	DefaultEpsilon = 0.25
)

// Tokenize lowercases and splits on whitespace.
func Tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// Builder builds BM25 indexes with fixed parameters.
type Builder struct {
	K1      float64
	B       float64
	Epsilon float64
}

func NewBuilder() Builder {
	return Builder{K1: DefaultK1, B: DefaultB, Epsilon: DefaultEpsilon}
}

func (b Builder) Build(docs []string) ports.LexicalIndex {
	return BuildWithParams(docs, b.K1, b.B, b.Epsilon)
}

// Index is an immutable BM25 Okapi index over a tokenized corpus. Rebuild it
// from the full corpus when documents are added.
type Index struct {
	k1      float64
	b       float64
	docs    []string
	freqs   []map[string]float64
	lengths []float64
	avgdl   float64
	idf     map[string]float64
}

// Build indexes docs with the default parameters.
func Build(docs []string) *Index {
	return BuildWithParams(docs, DefaultK1, DefaultB, DefaultEpsilon)
}

// BuildWithParams follows the Okapi variant where a negative idf is replaced
// by epsilon times the average idf.
func BuildWithParams(docs []string, k1, b, epsilon float64) *Index {
	idx := &Index{
		k1:      k1,
		b:       b,
		docs:    append([]string(nil), docs...),
		freqs:   make([]map[string]float64, len(docs)),
		lengths: make([]float64, len(docs)),
		idf:     make(map[string]float64),
	}
	if len(docs) == 0 {
		return idx
	}

	docFreq := make(map[string]int, 256)
	total := 0.0
	for i, doc := range docs {
		tokens := Tokenize(doc)
		tf := make(map[string]float64, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			docFreq[tok]++
		}
		idx.freqs[i] = tf
		idx.lengths[i] = float64(len(tokens))
		total += float64(len(tokens))
	}
	idx.avgdl = total / float64(len(docs))

	n := float64(len(docs))
	idfSum := 0.0
	var negative []string
	for tok, df := range docFreq {
		v := math.Log(n-float64(df)+0.5) - math.Log(float64(df)+0.5)
		idx.idf[tok] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, tok)
		}
	}
	if len(idx.idf) > 0 {
		eps := epsilon * idfSum / float64(len(idx.idf))
		for _, tok := range negative {
			idx.idf[tok] = eps
		}
	}
	return idx
}

func (x *Index) Len() int {
	return len(x.docs)
}

// Scores returns one score per corpus document. Repeated query tokens count
// once per occurrence.
func (x *Index) Scores(query []string) []float64 {
	scores := make([]float64, len(x.docs))
	if len(x.docs) == 0 || x.avgdl == 0 {
		return scores
	}
	for _, q := range query {
		idf := x.idf[q]
		if idf == 0 {
			continue
		}
		for i, tf := range x.freqs {
			f := tf[q]
			if f == 0 {
				continue
			}
			norm := f + x.k1*(1-x.b+x.b*x.lengths[i]/x.avgdl)
			scores[i] += idf * (f * (x.k1 + 1) / norm)
		}
	}
	return scores
}

// TopN tokenizes query and returns the texts of the n best documents.
// Documents scoring zero are still returned when fewer than n documents
// match; equal scores keep corpus order.
func (x *Index) TopN(query string, n int) []string {
	return x.TopNTokens(Tokenize(query), n)
}

func (x *Index) TopNTokens(query []string, n int) []string {
	if n <= 0 || len(x.docs) == 0 {
		return nil
	}
	scores := x.Scores(query)
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	if n > len(order) {
		n = len(order)
	}
	out := make([]string, 0, n)
	for _, i := range order[:n] {
		out = append(out, x.docs[i])
	}
	return out
}
