package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
	"github.com/kirillkom/requirements-guard/internal/core/ports"
)

// Resolver rewrites an ambiguous sentence.
type Resolver interface {
	Resolve(ctx context.Context, text string, includeExplanation bool) (domain.Resolution, error)
}

// BatchObserver receives per-item and per-run outcomes.
type BatchObserver interface {
	ObserveItem(status domain.ResultStatus)
	ObserveResolution(d time.Duration)
	ObserveRun(state domain.RunState, items int, elapsed time.Duration)
}

// StopToken is a cooperative stop request shared with another goroutine.
// The runner checks it before each sentence.
type StopToken struct {
	stopped atomic.Bool
}

func (t *StopToken) Stop() {
	t.stopped.Store(true)
}

func (t *StopToken) Stopped() bool {
	return t != nil && t.stopped.Load()
}

type BatchOptions struct {
	IncludeExplanation bool
	// Progress is called before each sentence with its 0-based index.
	Progress func(index, total int, sentence string)
}

// BatchRun is the live state of one run. Readers take snapshots.
type BatchRun struct {
	id        string
	sentences []string

	mu         sync.RWMutex
	state      domain.RunState
	results    []domain.AnalysisResult
	startedAt  time.Time
	finishedAt time.Time
}

func NewBatchRun(sentences []string) *BatchRun {
	return &BatchRun{
		id:        uuid.NewString(),
		sentences: append([]string(nil), sentences...),
		state:     domain.RunIdle,
		results:   make([]domain.AnalysisResult, 0, len(sentences)),
	}
}

func (r *BatchRun) ID() string {
	return r.id
}

func (r *BatchRun) State() domain.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *BatchRun) Results() []domain.AnalysisResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.AnalysisResult(nil), r.results...)
}

func (r *BatchRun) Snapshot() domain.RunSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := domain.RunSnapshot{
		ID:        r.id,
		State:     r.state,
		Total:     len(r.sentences),
		Processed: len(r.results),
		StartedAt: r.startedAt,
		Results:   append([]domain.AnalysisResult(nil), r.results...),
	}
	switch {
	case r.startedAt.IsZero():
	case r.finishedAt.IsZero():
		snap.Elapsed = time.Since(r.startedAt)
	default:
		snap.Elapsed = r.finishedAt.Sub(r.startedAt)
	}
	return snap
}

func (r *BatchRun) start(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = domain.RunRunning
	r.startedAt = now
}

func (r *BatchRun) record(result domain.AnalysisResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *BatchRun) finish(state domain.RunState, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.finishedAt = now
}

// BatchRunner classifies sentences one at a time and resolves the ambiguous
// ones. A failing sentence never aborts the run.
type BatchRunner struct {
	classifier ports.Classifier
	resolver   Resolver
	logger     *slog.Logger
	observer   BatchObserver
	now        func() time.Time
}

func NewBatchRunner(classifier ports.Classifier, resolver Resolver, logger *slog.Logger) *BatchRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRunner{
		classifier: classifier,
		resolver:   resolver,
		logger:     logger,
		now:        time.Now,
	}
}

func (b *BatchRunner) SetObserver(o BatchObserver) {
	b.observer = o
}

// Run processes sentences synchronously and returns the finished run.
func (b *BatchRunner) Run(ctx context.Context, sentences []string, opts BatchOptions, stop *StopToken) *BatchRun {
	run := NewBatchRun(sentences)
	b.Execute(ctx, run, opts, stop)
	return run
}

// Execute drives an existing run to Completed or Stopped. Cancelling ctx is
// a stop request; the sentence in flight still finishes.
func (b *BatchRunner) Execute(ctx context.Context, run *BatchRun, opts BatchOptions, stop *StopToken) {
	itemCtx := context.WithoutCancel(ctx)
	total := len(run.sentences)

	run.start(b.now())
	b.logger.Info("batch_started", "run_id", run.id, "total", total)

	state := domain.RunCompleted
	for i, sentence := range run.sentences {
		if stop.Stopped() || ctx.Err() != nil {
			state = domain.RunStopped
			break
		}
		if opts.Progress != nil {
			opts.Progress(i, total, sentence)
		}
		result := b.analyze(itemCtx, run.id, i, sentence, opts.IncludeExplanation)
		run.record(result)
		if b.observer != nil {
			b.observer.ObserveItem(result.Status)
		}
	}

	run.finish(state, b.now())
	snap := run.Snapshot()
	if state == domain.RunStopped {
		b.logger.Info("batch_stopped", "run_id", run.id, "processed", snap.Processed, "total", total)
	} else {
		b.logger.Info("batch_completed",
			"run_id", run.id,
			"processed", snap.Processed,
			"elapsed_ms", snap.Elapsed.Milliseconds(),
		)
	}
	if b.observer != nil {
		b.observer.ObserveRun(state, snap.Processed, snap.Elapsed)
	}
}

func (b *BatchRunner) analyze(ctx context.Context, runID string, index int, sentence string, includeExplanation bool) domain.AnalysisResult {
	cls, err := b.classifier.Classify(ctx, sentence)
	if err != nil {
		b.logger.Warn("batch_item_failed", "run_id", runID, "index", index, "error", err)
		return domain.AnalysisResult{
			Sentence:   sentence,
			Label:      domain.LabelError,
			Confidence: 0,
			Status:     domain.StatusError,
			Evidence:   []domain.Provenance{},
			Error:      err.Error(),
		}
	}

	if cls.IsClear() {
		return domain.AnalysisResult{
			Sentence:   sentence,
			Label:      domain.LabelClear,
			Confidence: cls.Confidence,
			Status:     domain.StatusClear,
			Evidence:   []domain.Provenance{},
		}
	}

	result := domain.AnalysisResult{
		Sentence:   sentence,
		Label:      domain.LabelAmbiguous,
		Confidence: cls.Confidence,
		Status:     domain.StatusAmbiguous,
		Evidence:   []domain.Provenance{},
	}

	started := b.now()
	res, err := b.resolver.Resolve(ctx, sentence, includeExplanation)
	if b.observer != nil {
		b.observer.ObserveResolution(b.now().Sub(started))
	}
	if err != nil {
		b.logger.Warn("resolution_failed", "run_id", runID, "index", index, "error", err)
		rewrite := domain.ResolveErrorRewrite(err)
		result.Rewrite = &rewrite
		return result
	}

	rewrite := res.Rewrite
	result.Rewrite = &rewrite
	for i, ev := range res.Evidence {
		if i == domain.MaxEvidenceItems {
			break
		}
		result.Evidence = append(result.Evidence, ev.Provenance)
	}
	return result
}
