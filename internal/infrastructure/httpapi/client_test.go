package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/resilience"
)

func TestPostJSONSendsBearerAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/echo" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["text"]})
	}))
	defer server.Close()

	client := New("sidecar", server.URL+"/", Options{APIKey: "secret"})
	var out struct {
		Echo string `json:"echo"`
	}
	if err := client.PostJSON(context.Background(), "/v1/echo", map[string]string{"text": "hi"}, &out, "echo"); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if out.Echo != "hi" {
		t.Fatalf("unexpected echo %q", out.Echo)
	}
}

func TestPostJSONStatusErrors(t *testing.T) {
	cases := []struct {
		status    int
		temporary bool
	}{
		{status: http.StatusServiceUnavailable, temporary: true},
		{status: http.StatusBadRequest, temporary: false},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", tc.status)
		}))
		client := New("sidecar", server.URL, Options{ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig())})

		err := client.PostJSON(context.Background(), "/x", struct{}{}, &struct{}{}, "x")
		server.Close()

		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != tc.status {
			t.Fatalf("status %d: expected StatusError, got %v", tc.status, err)
		}
		if got := errors.Is(err, domain.ErrTemporary); got != tc.temporary {
			t.Fatalf("status %d: temporary = %v, want %v", tc.status, got, tc.temporary)
		}
	}
}

func TestClassifyCanceledIsNotRecorded(t *testing.T) {
	class := Classify(context.Canceled)
	if class.Retryable || class.RecordFailure {
		t.Fatalf("unexpected classification for cancel: %+v", class)
	}
}
