package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/resilience"
)

func TestNewRequiresKeyAndModel(t *testing.T) {
	if _, err := New(Config{Model: "gemini-2.5-flash"}, nil); !errors.Is(err, domain.ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig for missing key, got %v", err)
	}
	if _, err := New(Config{APIKey: "k"}, nil); !errors.Is(err, domain.ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig for missing model, got %v", err)
	}
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gemini-2.5-flash" || len(req.Messages) != 1 || req.Messages[0].Content != "rewrite this" {
			t.Fatalf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gemini-2.5-flash",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  The system shall respond within 2 seconds.\n"}}]}`))
	}))
	defer server.Close()

	gen, err := New(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gemini-2.5-flash"}, resilience.NewExecutor(resilience.DefaultConfig()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got, err := gen.Generate(context.Background(), "rewrite this")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "The system shall respond within 2 seconds." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestGenerateDoesNotRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	cfg := resilience.DefaultConfig()
	cfg.RetryMaxAttempts = 3
	gen, err := New(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, resilience.NewExecutor(cfg))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := gen.Generate(context.Background(), "p"); !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one request, got %d", calls)
	}
}
