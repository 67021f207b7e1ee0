package localfs

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

func TestSaveAndOpenNestedKey(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	ctx := context.Background()
	if err := s.Save(ctx, "abc/rules.json", strings.NewReader(`[]`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	rc, err := s.Open(ctx, "abc/rules.json")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "[]" {
		t.Fatalf("unexpected body %q", body)
	}
	path, err := s.Path("abc/rules.json")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if filepath.Base(path) != "rules.json" {
		t.Fatalf("unexpected path %s", path)
	}
}

func TestPathRejectsEscapingKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	for _, key := range []string{"", "..", "../x", "/etc/passwd"} {
		if _, err := s.Path(key); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("key %q: expected invalid input, got %v", key, err)
		}
	}
}

func TestOpenMissingIsNotFound(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	if _, err := s.Open(context.Background(), "missing.txt"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
