package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/core/ports"
)

// IngestKnowledgeUseCase accepts uploaded knowledge files and ingests them
// into the knowledge base. Upload and ingestion may run in different
// processes, joined by the message queue.
type IngestKnowledgeUseCase struct {
	kb      *KnowledgeBase
	parser  ports.DocumentParser
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	logger  *slog.Logger
}

func NewIngestKnowledgeUseCase(
	kb *KnowledgeBase,
	parser ports.DocumentParser,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *IngestKnowledgeUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestKnowledgeUseCase{
		kb:      kb,
		parser:  parser,
		storage: storage,
		queue:   queue,
		logger:  logger,
	}
}

// Upload stores the file under a fresh directory, keeping the sanitized
// original name so chunk ids stay stable across re-uploads, and queues it.
func (uc *IngestKnowledgeUseCase) Upload(ctx context.Context, filename string, body io.Reader) (string, error) {
	if uc.queue == nil {
		return "", domain.WrapError(domain.ErrMissingConfig, "upload knowledge", errors.New("message queue is not configured"))
	}
	name := sanitizeFilename(filename)
	if !uc.parser.Supports(name) {
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "upload knowledge",
			fmt.Errorf("file %q: supported types are pdf, json, txt, md", filename))
	}

	key := uuid.NewString() + "/" + name
	if err := uc.storage.Save(ctx, key, body); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := uc.queue.PublishKnowledgeUploaded(ctx, key); err != nil {
		return "", fmt.Errorf("publish upload event: %w", err)
	}
	uc.logger.Info("knowledge_uploaded", "key", key)
	return key, nil
}

// IngestStored parses a stored upload and adds its chunks. It returns the
// number of chunks that were new to the store.
func (uc *IngestKnowledgeUseCase) IngestStored(ctx context.Context, key string) (int, error) {
	path, err := uc.storage.Path(key)
	if err != nil {
		return 0, fmt.Errorf("resolve upload path: %w", err)
	}
	parsed := uc.parser.ParseFile(ctx, path)
	if parsed.Len() == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "ingest knowledge",
			errors.New("file produced no chunks"))
	}
	added, err := uc.kb.AddParsed(ctx, parsed)
	if err != nil {
		return 0, fmt.Errorf("add parsed chunks: %w", err)
	}
	uc.logger.Info("knowledge_ingested", "key", key, "chunks", parsed.Len(), "added", added)
	return added, nil
}

// IngestDirectory adds every supported file directly under dir, in name
// order. Chunks already in the store are skipped.
func (uc *IngestKnowledgeUseCase) IngestDirectory(ctx context.Context, dir string) (int, error) {
	parsed := uc.parser.LoadDirectory(ctx, dir)
	if parsed.Len() == 0 {
		uc.logger.Warn("knowledge_directory_empty", "dir", dir)
		return 0, nil
	}
	added, err := uc.kb.AddParsed(ctx, parsed)
	if err != nil {
		return 0, fmt.Errorf("add directory chunks: %w", err)
	}
	return added, nil
}

// SeedIfEmpty ingests dir only when the store holds no chunks yet.
func (uc *IngestKnowledgeUseCase) SeedIfEmpty(ctx context.Context, dir string) (int, error) {
	return uc.kb.SeedIfEmpty(ctx, func(ctx context.Context) domain.ParsedFile {
		return uc.parser.LoadDirectory(ctx, dir)
	})
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
