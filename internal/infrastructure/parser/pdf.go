package parser

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/ledongthuc/pdf"
)

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)

	tocMarkers       = []string{"table of contents", "contents", "page", "chapter", "section"}
	referenceMarkers = []string{"references", "bibliography", "works cited"}
)

// PDFPages reads page text with github.com/ledongthuc/pdf.
type PDFPages struct{}

func (PDFPages) Pages(ctx context.Context, path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// IsLowInformationPage flags pages that carry little usable content: very
// short pages, header/footer-only pages, tables of contents and reference
// lists. The verdict depends only on text.
func IsLowInformationPage(text string) bool {
	if runeLen(text) < minChunkRunes {
		return true
	}

	nonEmpty := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			nonEmpty++
		}
	}
	if nonEmpty < 5 {
		return true
	}

	lower := strings.ToLower(strings.TrimSpace(text))
	head := runePrefix(lower, 200)
	if runeLen(text) < 500 && containsAny(head, tocMarkers) {
		return true
	}
	return containsAny(runePrefix(lower, 300), referenceMarkers)
}

type pageChunk struct {
	text  string
	pages []int
}

// chunkPages accumulates paragraphs greedily into chunks of at most
// maxChunkRunes. A chunk below minChunkRunes is dropped when flushed.
// Page numbers are 1-based positions in the input.
func chunkPages(pages []string) []pageChunk {
	var (
		chunks  []pageChunk
		current string
		curLen  int
		curPgs  []int
	)

	for i, raw := range pages {
		text := strings.TrimSpace(raw)
		if IsLowInformationPage(text) {
			continue
		}
		pageNo := i + 1
		for _, para := range paragraphBreak.Split(text, -1) {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			paraLen := runeLen(para)
			if current != "" && curLen+paraLen > maxChunkRunes {
				if curLen >= minChunkRunes {
					chunks = append(chunks, pageChunk{text: current, pages: curPgs})
				}
				current, curLen, curPgs = "", 0, nil
			}
			if current == "" {
				current, curLen = para, paraLen
			} else {
				current += "\n\n" + para
				curLen += 2 + paraLen
			}
			if len(curPgs) == 0 || curPgs[len(curPgs)-1] != pageNo {
				curPgs = append(curPgs, pageNo)
			}
		}
	}
	if current != "" && curLen >= minChunkRunes {
		chunks = append(chunks, pageChunk{text: current, pages: curPgs})
	}
	return chunks
}

func pageRange(pages []int) string {
	if len(pages) == 0 {
		return ""
	}
	lo, hi := pages[0], pages[0]
	for _, p := range pages[1:] {
		lo = min(lo, p)
		hi = max(hi, p)
	}
	if len(pages) == 1 {
		return strconv.Itoa(lo)
	}
	return fmt.Sprintf("%d-%d", lo, hi)
}

func pdfContentType(name string) domain.ContentType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "iso"), strings.Contains(lower, "29148"):
		return domain.ContentStandard
	case strings.Contains(lower, "glossary"):
		return domain.ContentGlossary
	default:
		return domain.ContentDocument
	}
}

func (p *Parser) parsePDF(ctx context.Context, path, name string) (domain.ParsedFile, error) {
	pages, err := p.pages.Pages(ctx, path)
	if err != nil {
		return domain.ParsedFile{}, err
	}

	contentType := pdfContentType(name)
	var out domain.ParsedFile
	for idx, chunk := range chunkPages(pages) {
		out.Append(fmt.Sprintf("%s_chunk_%d", name, idx), chunk.text, domain.Provenance{
			Source:      name,
			Type:        domain.SourceTypePDF,
			ContentType: contentType,
			Locator: domain.Locator{
				Kind:  domain.LocatorPageRange,
				Pages: pageRange(chunk.pages),
				Index: idx,
			},
		})
	}
	return out, nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
