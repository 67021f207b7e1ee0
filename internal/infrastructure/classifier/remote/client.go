// Package remote calls a hosted sequence-classification model that labels
// requirement sentences.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/httpapi"
)

// Classifier posts {"text": "..."} to /classify and expects
// {"label": "Clear"|"Ambiguous"|"LABEL_0"|..., "confidence": 0.97}.
type Classifier struct {
	client *httpapi.Client
}

func New(client *httpapi.Client) (*Classifier, error) {
	if client == nil || strings.TrimSpace(client.BaseURL()) == "" {
		return nil, domain.WrapError(domain.ErrMissingConfig, "remote classifier", errors.New("classifier url is required"))
	}
	return &Classifier{client: client}, nil
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
	Score      *float64 `json:"score"`
}

func (c *Classifier) Classify(ctx context.Context, sentence string) (domain.Classification, error) {
	var resp classifyResponse
	if err := c.client.PostJSON(ctx, "/classify", classifyRequest{Text: sentence}, &resp, "classify"); err != nil {
		return domain.Classification{}, err
	}

	label := strings.TrimSpace(resp.Label)
	if label == "" {
		return domain.Classification{}, fmt.Errorf("classifier response has no label")
	}
	confidence := 0.0
	switch {
	case resp.Confidence != nil:
		confidence = *resp.Confidence
	case resp.Score != nil:
		confidence = *resp.Score
	}
	confidence = min(max(confidence, 0), 1)
	return domain.Classification{Label: label, Confidence: confidence}, nil
}
