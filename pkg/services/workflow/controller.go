package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/de-tools/carbon-atlas/pkg/services/invoice"
)

// Controller runs batch analyses over directories of OCR text files. At most one
// batch runs per directory.
type Controller interface {
	Start(ctx context.Context, dir string) (*Runner, error)
	Cancel(ctx context.Context, dir string) error
}

type batchDescriptor struct {
	cancelFunc context.CancelFunc
	runner     *Runner
}

type DefaultController struct {
	service invoice.Service
	config  RunnerConfig

	mu      sync.Mutex
	batches map[string]batchDescriptor
}

func NewController(service invoice.Service, config RunnerConfig) *DefaultController {
	return &DefaultController{
		service: service,
		config:  config,
		batches: make(map[string]batchDescriptor),
	}
}

func (ctrl *DefaultController) Start(ctx context.Context, dir string) (*Runner, error) {
	key := filepath.Clean(dir)
	documents, err := Discover(key)
	if err != nil {
		return nil, err
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	if _, ok := ctrl.batches[key]; ok {
		return nil, fmt.Errorf("batch already running: %s", key)
	}

	ctx, cancel := context.WithCancel(ctx)
	runner := NewRunner(documents, ctrl.service, ctrl.config)
	ctrl.batches[key] = batchDescriptor{cancelFunc: cancel, runner: runner}

	go runner.Run(ctx)
	go func() {
		<-runner.Done()
		cancel()
		ctrl.mu.Lock()
		if desc, ok := ctrl.batches[key]; ok && desc.runner == runner {
			delete(ctrl.batches, key)
		}
		ctrl.mu.Unlock()
	}()

	return runner, nil
}

func (ctrl *DefaultController) Cancel(_ context.Context, dir string) error {
	key := filepath.Clean(dir)

	ctrl.mu.Lock()
	desc, ok := ctrl.batches[key]
	ctrl.mu.Unlock()
	if !ok {
		return fmt.Errorf("batch not running: %s", key)
	}

	desc.cancelFunc()
	<-desc.runner.Done()
	return nil
}

// Discover lists the .txt files directly inside dir, sorted by name. The file name
// becomes the source reference.
func Discover(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	documents := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		documents = append(documents, Document{
			Source: entry.Name(),
			Path:   filepath.Join(dir, entry.Name()),
		})
	}
	sort.Slice(documents, func(i, j int) bool { return documents[i].Source < documents[j].Source })
	return documents, nil
}
