package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

const scrollPageSize = 256

// pointNamespace derives stable point ids from chunk ids, so re-ingesting a
// file addresses the same points.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("requirements-guard/knowledge-chunk"))

// ChunkStore keeps knowledge chunks in a Qdrant collection over REST.
type ChunkStore struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *ChunkStore {
	return &ChunkStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type statusError struct {
	op     string
	code   int
	status string
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.op, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.op, e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Upsert writes only chunks whose ids are not stored yet and returns them in
// input order.
func (c *ChunkStore) Upsert(ctx context.Context, chunks []domain.KnowledgeChunk) ([]domain.KnowledgeChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	for i, ch := range chunks {
		if len(ch.Embedding) == 0 {
			return nil, fmt.Errorf("chunk %d (%s) has no embedding", i, ch.ID)
		}
	}
	if err := c.ensureCollection(ctx, len(chunks[0].Embedding)); err != nil {
		return nil, err
	}

	existing, err := c.existingIDs(ctx, chunks)
	if err != nil {
		return nil, err
	}
	base, err := c.Count(ctx)
	if err != nil {
		return nil, err
	}

	fresh := make([]domain.KnowledgeChunk, 0, len(chunks))
	points := make([]point, 0, len(chunks))
	seen := make(map[string]bool, len(chunks))
	for _, ch := range chunks {
		pid := PointID(ch.ID)
		if existing[pid] || seen[pid] {
			continue
		}
		seen[pid] = true
		points = append(points, point{
			ID:      pid,
			Vector:  ch.Embedding,
			Payload: chunkPayload(ch, base+len(fresh)),
		})
		fresh = append(fresh, ch)
	}
	if len(points) == 0 {
		return nil, nil
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	if err := c.doJSON(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert"); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (c *ChunkStore) existingIDs(ctx context.Context, chunks []domain.KnowledgeChunk) (map[string]bool, error) {
	ids := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		ids = append(ids, PointID(ch.ID))
	}
	var resp struct {
		Result []struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	body := map[string]any{"ids": ids, "with_payload": false, "with_vector": false}
	path := fmt.Sprintf("/collections/%s/points", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp, "retrieve"); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(resp.Result))
	for _, r := range resp.Result {
		out[r.ID] = true
	}
	return out, nil
}

// Count reports zero for a collection that has not been created yet.
func (c *ChunkStore) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", c.collection)
	err := c.doJSON(ctx, http.MethodPost, path, map[string]any{"exact": true}, &resp, "count")
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Scan returns every stored chunk in insertion order.
func (c *ChunkStore) Scan(ctx context.Context) ([]domain.KnowledgeChunk, error) {
	type scrolled struct {
		chunk domain.KnowledgeChunk
		seq   int
	}

	var (
		all    []scrolled
		offset any
	)
	path := fmt.Sprintf("/collections/%s/points/scroll", c.collection)
	for {
		body := map[string]any{"limit": scrollPageSize, "with_payload": true, "with_vector": false}
		if offset != nil {
			body["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		err := c.doJSON(ctx, http.MethodPost, path, body, &resp, "scroll")
		if isNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			all = append(all, scrolled{chunk: chunkFromPayload(p.Payload), seq: getIntPayload(p.Payload, "seq")})
		}
		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	out := make([]domain.KnowledgeChunk, 0, len(all))
	for _, s := range all {
		out = append(out, s.chunk)
	}
	return out, nil
}

func (c *ChunkStore) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	err := c.doJSON(ctx, http.MethodPost, path, reqBody, &searchResp, "search")
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.ScoredChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.ScoredChunk{Chunk: chunkFromPayload(r.Payload), Score: r.Score})
	}
	return out, nil
}

func (c *ChunkStore) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := c.doJSON(ctx, http.MethodPut, "/collections/"+c.collection, reqBody, nil, "ensure collection")

	// 409 when the collection already exists.
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *ChunkStore) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *ChunkStore) doJSON(ctx context.Context, method, path string, payload any, out any, op string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{op: op, code: resp.StatusCode, status: resp.Status, body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
