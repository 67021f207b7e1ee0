package qdrant

import (
	"fmt"
	"strconv"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

func chunkPayload(ch domain.KnowledgeChunk, seq int) map[string]any {
	return map[string]any{
		"chunk_id":     ch.ID,
		"text":         ch.Text,
		"source":       ch.Metadata.Source,
		"type":         string(ch.Metadata.Type),
		"content_type": string(ch.Metadata.ContentType),
		"locator_kind": string(ch.Metadata.Locator.Kind),
		"pages":        ch.Metadata.Locator.Pages,
		"index":        ch.Metadata.Locator.Index,
		"seq":          seq,
	}
}

func chunkFromPayload(payload map[string]any) domain.KnowledgeChunk {
	return domain.KnowledgeChunk{
		ID:   getStringPayload(payload, "chunk_id"),
		Text: getStringPayload(payload, "text"),
		Metadata: domain.Provenance{
			Source:      getStringPayload(payload, "source"),
			Type:        domain.SourceType(getStringPayload(payload, "type")),
			ContentType: domain.ContentType(getStringPayload(payload, "content_type")),
			Locator: domain.Locator{
				Kind:  domain.LocatorKind(getStringPayload(payload, "locator_kind")),
				Pages: getStringPayload(payload, "pages"),
				Index: getIntPayload(payload, "index"),
			},
		},
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
