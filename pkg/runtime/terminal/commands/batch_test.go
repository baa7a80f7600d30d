package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/models/store"
	"github.com/de-tools/carbon-atlas/pkg/services/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingService never finishes an analysis on its own.
type blockingService struct{}

func (blockingService) Process(ctx context.Context, _, _ string) (*domain.Report, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingService) Get(context.Context, string) (*store.ReportRecord, error) {
	return nil, nil
}

func (blockingService) List(context.Context, int) ([]domain.ReportSummary, error) {
	return nil, nil
}

func TestCancelOnSignal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("500 L Diesel"), 0o644))

	ctrl := workflow.NewController(blockingService{}, workflow.RunnerConfig{})
	runner, err := ctrl.Start(context.Background(), dir)
	require.NoError(t, err)

	signals := make(chan os.Signal, 1)
	signals <- os.Interrupt

	stopped := make(chan struct{})
	go func() {
		cancelOnSignal(context.Background(), ctrl, dir, runner, signals)
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("batch was not cancelled")
	}

	results := runner.Results()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestCancelOnSignal_FinishedBatch(t *testing.T) {
	dir := t.TempDir()
	ctrl := workflow.NewController(blockingService{}, workflow.RunnerConfig{})
	runner, err := ctrl.Start(context.Background(), dir)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		cancelOnSignal(context.Background(), ctrl, dir, runner, make(chan os.Signal))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not return after the batch finished")
	}
}
