package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

func recordsContentType(name string) domain.ContentType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "rule"):
		return domain.ContentAmbiguityRule
	case strings.Contains(lower, "glossary"):
		return domain.ContentGlossaryTerm
	default:
		return domain.ContentStructuredData
	}
}

func parseRecordsFile(path, name string) (domain.ParsedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ParsedFile{}, fmt.Errorf("read records: %w", err)
	}
	return parseRecords(raw, name)
}

// parseRecords accepts a top-level list or an object holding an "items"
// list. Any other shape yields no records.
func parseRecords(raw []byte, name string) (domain.ParsedFile, error) {
	items, err := recordItems(raw)
	if err != nil {
		return domain.ParsedFile{}, err
	}

	contentType := recordsContentType(name)
	var out domain.ParsedFile
	for idx, item := range items {
		text, err := renderRecord(item)
		if err != nil {
			return domain.ParsedFile{}, fmt.Errorf("render item %d: %w", idx, err)
		}
		out.Append(fmt.Sprintf("%s_item_%d", name, idx), text, domain.Provenance{
			Source:      name,
			Type:        domain.SourceTypeJSON,
			ContentType: contentType,
			Locator:     domain.Locator{Kind: domain.LocatorItemIndex, Index: idx},
		})
	}
	return out, nil
}

func recordItems(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode records: empty document")
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		return items, nil
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		inner, ok := wrapper["items"]
		if !ok {
			return nil, nil
		}
		var items []json.RawMessage
		if err := json.Unmarshal(inner, &items); err != nil {
			return nil, nil
		}
		return items, nil
	default:
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("decode records: invalid json")
		}
		return nil, nil
	}
}

func renderRecord(item json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return scalarText(trimmed)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return "", err
	}

	if _, ok := fields["rule_id"]; ok {
		return strings.Join([]string{
			fmt.Sprintf("Rule %s: %s", fieldText(fields, "rule_id"), fieldText(fields, "category")),
			"Description: " + fieldText(fields, "description"),
			"Bad Examples: " + joinList(fields["bad_examples"]),
			"Good Examples: " + joinList(fields["good_examples"]),
			"Correction Strategy: " + fieldText(fields, "correction_strategy"),
		}, "\n"), nil
	}
	_, hasTerm := fields["term"]
	_, hasDefinition := fields["definition"]
	if hasTerm && hasDefinition {
		return fieldText(fields, "term") + ": " + fieldText(fields, "definition"), nil
	}

	// Compacting the raw bytes keeps the source key order.
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func scalarText(raw []byte) (string, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func fieldText(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	return valueText(v)
}

func valueText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return ""
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func joinList(v any) string {
	list, ok := v.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		parts = append(parts, valueText(item))
	}
	return strings.Join(parts, ", ")
}
