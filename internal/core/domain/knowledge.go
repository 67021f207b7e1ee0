package domain

import "fmt"

type SourceType string

const (
	SourceTypePDF      SourceType = "pdf"
	SourceTypeJSON     SourceType = "json"
	SourceTypeTemplate SourceType = "template"
)

type ContentType string

const (
	ContentStandard       ContentType = "standard"
	ContentGlossary       ContentType = "glossary"
	ContentGlossaryTerm   ContentType = "glossary_term"
	ContentAmbiguityRule  ContentType = "ambiguity_rule"
	ContentStructuredData ContentType = "structured_data"
	ContentTemplate       ContentType = "template"
	ContentDocument       ContentType = "document"
)

type LocatorKind string

const (
	LocatorPageRange  LocatorKind = "page_range"
	LocatorItemIndex  LocatorKind = "item_index"
	LocatorChunkIndex LocatorKind = "chunk_index"
)

// Locator points at a position inside the source file. Pages is only set for
// page ranges, Index for item and chunk positions.
type Locator struct {
	Kind  LocatorKind `json:"kind"`
	Pages string      `json:"pages,omitempty"`
	Index int         `json:"index"`
}

// Provenance describes where a knowledge chunk came from.
type Provenance struct {
	Source      string      `json:"source"`
	Type        SourceType  `json:"type"`
	ContentType ContentType `json:"content_type"`
	Locator     Locator     `json:"locator"`
}

// IsZero reports an empty record, which is what a metadata lookup miss yields.
func (p Provenance) IsZero() bool {
	return p.Source == "" && p.Type == "" && p.ContentType == "" && p.Locator.Kind == ""
}

// Location renders the locator for display.
func (p Provenance) Location() string {
	switch p.Locator.Kind {
	case LocatorPageRange:
		if p.Locator.Pages == "" {
			return "Page N/A"
		}
		return "Page " + p.Locator.Pages
	case LocatorItemIndex:
		return fmt.Sprintf("Item %d", p.Locator.Index)
	case LocatorChunkIndex:
		return fmt.Sprintf("Chunk %d", p.Locator.Index)
	default:
		return "N/A"
	}
}

// DisplaySource falls back to a placeholder for lookup misses.
func (p Provenance) DisplaySource() string {
	if p.Source == "" {
		return "Unknown"
	}
	return p.Source
}

// DisplayContentType prefers the content type, then the source type.
func (p Provenance) DisplayContentType() string {
	switch {
	case p.ContentType != "":
		return string(p.ContentType)
	case p.Type != "":
		return string(p.Type)
	default:
		return "General"
	}
}

// KnowledgeChunk is the atom of retrieval. Chunks are append-only.
type KnowledgeChunk struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Embedding []float32  `json:"-"`
	Metadata  Provenance `json:"metadata"`
}

// ScoredChunk is a nearest-neighbour hit.
type ScoredChunk struct {
	Chunk KnowledgeChunk `json:"chunk"`
	Score float64        `json:"score"`
}

// ParsedFile holds the positionally aligned output of a document parser.
type ParsedFile struct {
	Documents []string
	IDs       []string
	Metadatas []Provenance
}

func (p ParsedFile) Len() int {
	return len(p.Documents)
}

func (p *ParsedFile) Append(id, text string, meta Provenance) {
	p.Documents = append(p.Documents, text)
	p.IDs = append(p.IDs, id)
	p.Metadatas = append(p.Metadatas, meta)
}

func (p *ParsedFile) Extend(other ParsedFile) {
	p.Documents = append(p.Documents, other.Documents...)
	p.IDs = append(p.IDs, other.IDs...)
	p.Metadatas = append(p.Metadatas, other.Metadatas...)
}

// Evidence pairs a selected context text with its provenance.
type Evidence struct {
	Text       string     `json:"text"`
	Provenance Provenance `json:"provenance"`
}
