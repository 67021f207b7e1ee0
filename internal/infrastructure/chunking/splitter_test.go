package chunking

import (
	"strings"
	"testing"
)

func TestWindowsUseStableIndexes(t *testing.T) {
	s := NewSplitter(800, 100)
	if s.Step() != 700 {
		t.Fatalf("expected step 700, got %d", s.Step())
	}

	text := strings.Repeat("a", 1500)
	windows := s.Windows(text, 200)
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if windows[0].Index != 0 || windows[1].Index != 1 {
		t.Fatalf("unexpected indexes: %+v", windows)
	}
	if len(windows[0].Text) != 800 || len(windows[1].Text) != 800 {
		t.Fatalf("unexpected window sizes %d %d", len(windows[0].Text), len(windows[1].Text))
	}
}

func TestWindowsDropShortTail(t *testing.T) {
	s := NewSplitter(800, 100)
	windows := s.Windows(strings.Repeat("b", 850), 200)
	if len(windows) != 1 {
		t.Fatalf("expected tail window to be dropped, got %d windows", len(windows))
	}
}

func TestWindowsCountRunes(t *testing.T) {
	s := NewSplitter(10, 0)
	windows := s.Windows(strings.Repeat("é", 25), 1)
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}
	if got := len([]rune(windows[2].Text)); got != 5 {
		t.Fatalf("expected 5 runes in tail, got %d", got)
	}
}
