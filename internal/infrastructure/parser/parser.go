// Package parser turns knowledge source files into aligned chunk texts, ids
// and provenance records.
package parser

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/core/ports"
	"github.com/kirillkom/requirements-guard/internal/infrastructure/chunking"
)

const (
	minChunkRunes = 200
	maxChunkRunes = 1000

	windowSize    = 800
	windowOverlap = 100
)

type Parser struct {
	pages    ports.PageSource
	splitter *chunking.Splitter
	logger   *slog.Logger
}

func New(pages ports.PageSource, logger *slog.Logger) *Parser {
	if pages == nil {
		pages = PDFPages{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		pages:    pages,
		splitter: chunking.NewSplitter(windowSize, windowOverlap),
		logger:   logger,
	}
}

// Supports reports whether the file extension has a parser.
func Supports(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".json", ".txt", ".md":
		return true
	default:
		return false
	}
}

func (p *Parser) Supports(filename string) bool {
	return Supports(filename)
}

// ParseFile never fails: a file that cannot be parsed is logged and
// contributes nothing.
func (p *Parser) ParseFile(ctx context.Context, path string) domain.ParsedFile {
	name := filepath.Base(path)

	var (
		out domain.ParsedFile
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		out, err = p.parsePDF(ctx, path, name)
	case ".json":
		out, err = parseRecordsFile(path, name)
	case ".txt", ".md":
		out, err = p.parseTemplatesFile(path, name)
	default:
		p.logger.Debug("parse_skipped", "file", name, "reason", "unsupported extension")
		return domain.ParsedFile{}
	}
	if err != nil {
		p.logger.Error("parse_failed", "file", name, "error", err)
		return domain.ParsedFile{}
	}
	p.logger.Info("file_parsed", "file", name, "chunks", out.Len())
	return out
}

// LoadDirectory parses every regular file in dir in name order. A missing
// directory yields no chunks.
func (p *Parser) LoadDirectory(ctx context.Context, dir string) domain.ParsedFile {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Error("knowledge_dir_unreadable", "dir", dir, "error", err)
		}
		return domain.ParsedFile{}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var all domain.ParsedFile
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.Type().IsRegular() {
			continue
		}
		all.Extend(p.ParseFile(ctx, filepath.Join(dir, entry.Name())))
	}
	return all
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func runePrefix(s string, n int) string {
	if runeLen(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
