package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

// templateMarker matches "TEMPLATE: <title>" on its own line. The title must
// be on the same line as the marker.
var templateMarker = regexp.MustCompile(`(?m)^[ \t]*TEMPLATE:[ \t]*[^\n]*\S[^\n]*$`)

func (p *Parser) parseTemplatesFile(path, name string) (domain.ParsedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ParsedFile{}, fmt.Errorf("read template file: %w", err)
	}
	if !utf8.Valid(raw) {
		return domain.ParsedFile{}, domain.WrapError(domain.ErrUnsupportedFormat, "read template file", fmt.Errorf("%s is not valid utf-8", name))
	}
	return p.parseTemplates(string(raw), name), nil
}

// parseTemplates splits on TEMPLATE markers when present; text before the
// first marker is kept as its own chunk. Without markers the content is cut
// into overlapping windows.
func (p *Parser) parseTemplates(content, name string) domain.ParsedFile {
	var out domain.ParsedFile
	add := func(idx int, text string) {
		out.Append(fmt.Sprintf("%s_chunk_%d", name, idx), text, domain.Provenance{
			Source:      name,
			Type:        domain.SourceTypeTemplate,
			ContentType: domain.ContentTemplate,
			Locator:     domain.Locator{Kind: domain.LocatorChunkIndex, Index: idx},
		})
	}

	markers := templateMarker.FindAllStringIndex(content, -1)
	if len(markers) == 0 {
		for _, w := range p.splitter.Windows(content, minChunkRunes) {
			add(w.Index, w.Text)
		}
		return out
	}

	idx := 0
	if preamble := strings.TrimSpace(content[:markers[0][0]]); runeLen(preamble) >= minChunkRunes {
		add(idx, preamble)
		idx++
	}
	for i, m := range markers {
		end := len(content)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		section := strings.TrimSpace(content[m[0]:end])
		if runeLen(section) >= minChunkRunes {
			add(idx, section)
			idx++
		}
	}
	return out
}
