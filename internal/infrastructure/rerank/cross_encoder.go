// Package rerank provides relevance scorers for (query, candidate) pairs.
package rerank

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kirillkom/requirements-guard/internal/infrastructure/httpapi"
)

// HTTPCrossEncoder scores candidates with an external cross-encoder service.
//
// Request:  {"query":"...","candidates":[{"id":"0","text":"..."}]}
// Response: {"ranking":[{"id":"0","score":0.93}]}
//
// Candidate ids are positions in the input slice.
type HTTPCrossEncoder struct {
	client *httpapi.Client
	path   string
}

func NewHTTPCrossEncoder(client *httpapi.Client) *HTTPCrossEncoder {
	return &HTTPCrossEncoder{client: client, path: "/rerank"}
}

type scoreRequest struct {
	Query      string           `json:"query"`
	Candidates []scoreCandidate `json:"candidates"`
}

type scoreCandidate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type scoreResponse struct {
	Ranking []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"ranking"`
}

func (e *HTTPCrossEncoder) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	req := scoreRequest{Query: query, Candidates: make([]scoreCandidate, len(candidates))}
	for i, text := range candidates {
		req.Candidates[i] = scoreCandidate{ID: strconv.Itoa(i), Text: text}
	}

	var resp scoreResponse
	if err := e.client.PostJSON(ctx, e.path, req, &resp, "rerank"); err != nil {
		return nil, err
	}

	scores := make([]float64, len(candidates))
	seen := make([]bool, len(candidates))
	for _, r := range resp.Ranking {
		i, err := strconv.Atoi(r.ID)
		if err != nil || i < 0 || i >= len(candidates) {
			return nil, fmt.Errorf("cross-encoder returned unknown candidate id %q", r.ID)
		}
		scores[i] = r.Score
		seen[i] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("cross-encoder returned no score for candidate %d", i)
		}
	}
	return scores, nil
}
