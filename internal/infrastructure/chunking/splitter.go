package chunking

import "strings"

// Splitter cuts text into fixed rune windows that overlap by Overlap runes.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

// Window is one trimmed slice of the input. Index is the window's start
// offset divided by the hop size, so it stays stable when windows are dropped.
type Window struct {
	Index int
	Text  string
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Step() int {
	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}
	return step
}

// Windows returns every window whose trimmed text has at least minRunes runes.
func (s *Splitter) Windows(text string, minRunes int) []Window {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.Step()
	out := make([]Window, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk == "" || len([]rune(chunk)) < minRunes {
			continue
		}
		out = append(out, Window{Index: start / step, Text: chunk})
	}
	return out
}
