package workflow

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/services/invoice"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

// Document is one OCR text file queued for analysis.
type Document struct {
	Source string
	Path   string
}

type Result struct {
	Source string
	Report *domain.Report
	Err    error
}

type RunnerConfig struct {
	Concurrency int
}

type RunnerProgress struct {
	Processed       int64
	Failed          int64
	Total           int64
	LastSource      string
	LastProcessedAt time.Time
}

type Runner struct {
	documents []Document
	service   invoice.Service
	done      chan struct{}
	progress  chan RunnerProgress
	config    RunnerConfig

	mu      sync.Mutex
	results []Result
}

func NewRunner(documents []Document, service invoice.Service, config RunnerConfig) *Runner {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	return &Runner{
		documents: documents,
		service:   service,
		done:      make(chan struct{}),
		// sized so that Run never blocks on a slow consumer
		progress: make(chan RunnerProgress, len(documents)),
		config:   config,
		results:  make([]Result, len(documents)),
	}
}

func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) Progress() <-chan RunnerProgress {
	return r.progress
}

// Results is complete once Done is closed. Order follows the input documents.
func (r *Runner) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

// Run analyzes every document. A failing document is recorded in its Result and
// does not stop the batch; cancelling ctx does.
func (r *Runner) Run(ctx context.Context) {
	logger := zerolog.Ctx(ctx).With().Int("documents", len(r.documents)).Logger()
	defer close(r.done)
	defer close(r.progress)

	var (
		g         errgroup.Group
		processed int64
		failed    int64
	)
	g.SetLimit(r.config.Concurrency)

	for i, doc := range r.documents {
		if ctx.Err() != nil {
			r.record(i, Result{Source: doc.Source, Err: ctx.Err()})
			continue
		}

		g.Go(func() error {
			result := r.analyze(ctx, doc)
			r.record(i, result)

			r.mu.Lock()
			processed++
			if result.Err != nil {
				failed++
			}
			progress := RunnerProgress{
				Processed:       processed,
				Failed:          failed,
				Total:           int64(len(r.documents)),
				LastSource:      doc.Source,
				LastProcessedAt: time.Now().UTC(),
			}
			r.mu.Unlock()

			r.progress <- progress
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		logger.Info().Msg("batch stopped")
		return
	}
	logger.Info().Int64("failed", failed).Msg("batch finished")
}

func (r *Runner) analyze(ctx context.Context, doc Document) Result {
	logger := zerolog.Ctx(ctx).With().Str("source", doc.Source).Logger()

	text, err := os.ReadFile(doc.Path)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read document")
		return Result{Source: doc.Source, Err: fmt.Errorf("failed to read %s: %w", doc.Path, err)}
	}

	report, err := r.service.Process(logger.WithContext(ctx), doc.Source, string(text))
	if err != nil {
		logger.Error().Err(err).Msg("failed to analyze document")
		return Result{Source: doc.Source, Err: err}
	}
	return Result{Source: doc.Source, Report: report}
}

func (r *Runner) record(i int, result Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[i] = result
}
