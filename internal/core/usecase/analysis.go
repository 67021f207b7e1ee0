package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/core/ports"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	historySaveTimeout  = 10 * time.Second
)

// AnalysisService owns the latest batch run. Only one run may be active.
type AnalysisService struct {
	kb      *KnowledgeBase
	runner  *BatchRunner
	history ports.RunHistory
	logger  *slog.Logger

	mu   sync.Mutex
	run  *BatchRun
	stop *StopToken
	done chan struct{}
}

func NewAnalysisService(kb *KnowledgeBase, runner *BatchRunner, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{kb: kb, runner: runner, logger: logger}
}

// SetHistory persists every finished run. Call before the first Start.
func (s *AnalysisService) SetHistory(h ports.RunHistory) {
	s.history = h
}

// Start splits text into sentences and processes them in the background.
// The run outlives ctx; use Stop to end it early.
func (s *AnalysisService) Start(ctx context.Context, text string, includeExplanation bool) (domain.RunSnapshot, error) {
	if strings.TrimSpace(text) == "" {
		return domain.RunSnapshot{}, domain.WrapError(domain.ErrInvalidInput, "start analysis", errors.New("text is empty"))
	}
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return domain.RunSnapshot{}, domain.WrapError(domain.ErrInvalidInput, "start analysis", errors.New("no sentences found"))
	}

	if s.running() {
		return domain.RunSnapshot{}, domain.ErrRunInProgress
	}
	// Sync may scan the whole store; Stop and Snapshot must not wait on it.
	if s.kb != nil {
		if err := s.kb.Sync(ctx); err != nil {
			s.logger.Warn("knowledge_sync_failed", "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != nil && s.run.State() == domain.RunRunning {
		return domain.RunSnapshot{}, domain.ErrRunInProgress
	}

	run := NewBatchRun(sentences)
	stop := &StopToken{}
	done := make(chan struct{})
	s.run, s.stop, s.done = run, stop, done

	// Mark running before returning so a second Start is rejected.
	run.start(s.runner.now())
	go func() {
		defer close(done)
		runCtx := context.WithoutCancel(ctx)
		s.runner.Execute(runCtx, run, BatchOptions{IncludeExplanation: includeExplanation}, stop)
		s.saveHistory(runCtx, run)
	}()
	return run.Snapshot(), nil
}

func (s *AnalysisService) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil && s.run.State() == domain.RunRunning
}

// Snapshot returns the latest run, or an idle snapshot when there is none.
func (s *AnalysisService) Snapshot() domain.RunSnapshot {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()
	if run == nil {
		return domain.RunSnapshot{State: domain.RunIdle, Results: []domain.AnalysisResult{}}
	}
	return run.Snapshot()
}

// Stop requests a stop after the current sentence. It reports whether a run
// was active.
func (s *AnalysisService) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil || s.run.State() != domain.RunRunning {
		return false
	}
	s.stop.Stop()
	return true
}

// Clear forgets the latest run.
func (s *AnalysisService) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != nil && s.run.State() == domain.RunRunning {
		return domain.ErrRunInProgress
	}
	s.run, s.stop, s.done = nil, nil, nil
	return nil
}

// Wait blocks until the active run finishes or ctx ends.
func (s *AnalysisService) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AnalysisService) saveHistory(ctx context.Context, run *BatchRun) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, historySaveTimeout)
	defer cancel()
	if err := s.history.SaveRun(ctx, domain.NewRunRecord(run.Snapshot())); err != nil {
		s.logger.Error("run_history_save_failed", "run_id", run.ID(), "error", err)
	}
}

// ListRuns returns the most recent finished runs, newest first.
func (s *AnalysisService) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if s.history == nil {
		return nil, domain.WrapError(domain.ErrMissingConfig, "list runs", errors.New("run history is disabled"))
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.history.ListRuns(ctx, limit)
}

func (s *AnalysisService) GetRun(ctx context.Context, id string) (domain.RunRecord, error) {
	if s.history == nil {
		return domain.RunRecord{}, domain.WrapError(domain.ErrMissingConfig, "get run", errors.New("run history is disabled"))
	}
	if strings.TrimSpace(id) == "" {
		return domain.RunRecord{}, domain.WrapError(domain.ErrInvalidInput, "get run", errors.New("run id is empty"))
	}
	return s.history.GetRun(ctx, id)
}
