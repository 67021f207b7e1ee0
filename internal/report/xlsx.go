package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

const (
	summarySheet = "Summary"
	resultsSheet = "Results"
)

var resultsHeader = []any{"#", "Requirement", "Status", "Label", "Confidence", "Suggested Rewrite", "Retrieved Context", "Error"}

// WriteXLSX writes the same data as WriteText as a two-sheet workbook.
func WriteXLSX(w io.Writer, results []domain.AnalysisResult, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := f.NewSheet(resultsSheet); err != nil {
		return fmt.Errorf("create results sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	summary := domain.Summarize(results)
	summaryRows := [][]any{
		{"SRS Ambiguity Analysis Report"},
		{"Generated", now.Format("2006-01-02 15:04:05")},
		{"Total Requirements", summary.Total},
		{"Clear Requirements", summary.Clear},
		{"Ambiguous Requirements", summary.Ambiguous},
		{"Ambiguity Rate (%)", roundTenth(summary.AmbiguityRate)},
	}
	for i, row := range summaryRows {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "A6", bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 28); err != nil {
		return fmt.Errorf("size summary: %w", err)
	}

	if err := setRow(f, resultsSheet, 1, resultsHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(resultsSheet, "A1", "H1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	for i, r := range results {
		rewrite := ""
		if r.Rewrite != nil {
			rewrite = *r.Rewrite
		}
		row := []any{i + 1, r.Sentence, string(r.Status), string(r.Label), r.Confidence, rewrite, contextCell(r.Evidence), r.Error}
		if err := setRow(f, resultsSheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(resultsSheet, "B", "B", 60); err != nil {
		return fmt.Errorf("size results: %w", err)
	}
	if err := f.SetColWidth(resultsSheet, "F", "G", 60); err != nil {
		return fmt.Errorf("size results: %w", err)
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func contextCell(evidence []domain.Provenance) string {
	lines := make([]string, 0, len(evidence))
	for i, ev := range evidence {
		lines = append(lines, fmt.Sprintf("%d. %s (%s) - %s", i+1, ev.DisplaySource(), ev.DisplayContentType(), ev.Location()))
	}
	return strings.Join(lines, "\n")
}

func roundTenth(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
