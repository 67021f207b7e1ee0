// Package report renders analysis results for export.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

var (
	heavyRule = strings.Repeat("=", 80)
	lightRule = strings.Repeat("-", 80)
)

// WriteText writes the plain-text report. now stamps the header.
func WriteText(w io.Writer, results []domain.AnalysisResult, now time.Time) error {
	_, err := io.WriteString(w, Text(results, now))
	return err
}

func Text(results []domain.AnalysisResult, now time.Time) string {
	summary := domain.Summarize(results)

	lines := []string{
		heavyRule,
		"SRS AMBIGUITY ANALYSIS REPORT",
		"Generated: " + now.Format("2006-01-02 15:04:05"),
		heavyRule,
		"",
		"SUMMARY",
		lightRule,
		fmt.Sprintf("Total Requirements: %d", summary.Total),
		fmt.Sprintf("Clear Requirements: %d", summary.Clear),
		fmt.Sprintf("Ambiguous Requirements: %d", summary.Ambiguous),
		fmt.Sprintf("Ambiguity Rate: %.1f%%", summary.AmbiguityRate),
		"",
		"DETAILED RESULTS",
		heavyRule,
		"",
	}

	for idx, r := range results {
		lines = append(lines,
			fmt.Sprintf("Requirement %d", idx+1),
			lightRule,
			"Original: "+r.Sentence,
			"Status: "+string(r.Label),
			fmt.Sprintf("Confidence: %.2f%%", r.Confidence*100),
			"",
		)
		if r.Rewrite != nil && *r.Rewrite != "" {
			lines = append(lines, "Suggested Rewrite: "+*r.Rewrite, "")
		}
		if len(r.Evidence) > 0 {
			lines = append(lines, "Retrieved Context:")
			for i, ev := range r.Evidence {
				lines = append(lines, fmt.Sprintf("  %d. %s (%s) - %s",
					i+1, ev.DisplaySource(), ev.DisplayContentType(), ev.Location()))
			}
			lines = append(lines, "")
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
