package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/de-tools/carbon-atlas/pkg/services/workflow"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type BatchCmd struct {
	concurrency int
	load        Loader
}

func NewBatchCmd(load Loader) *cobra.Command {
	bc := &BatchCmd{load: load}
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Analyze every .txt file in a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  bc.run,
	}

	cmd.Flags().IntVar(&bc.concurrency, "concurrency", workflow.DefaultConcurrency, "Number of documents analyzed in parallel")

	return cmd
}

func (bc *BatchCmd) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := bc.load(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ctrl := workflow.NewController(a.Invoices, workflow.RunnerConfig{Concurrency: bc.concurrency})
	runner, err := ctrl.Start(ctx, args[0])
	if err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go cancelOnSignal(ctx, ctrl, args[0], runner, signals)

	errOut := cmd.ErrOrStderr()
	for p := range runner.Progress() {
		fmt.Fprintf(errOut, "[%d/%d] %s\n", p.Processed, p.Total, p.LastSource)
	}
	<-runner.Done()

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range runner.Results() {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "FAILED     %s: %v\n", r.Source, r.Err)
			continue
		}
		fmt.Fprintf(out, "PROCESSED  %s: %s kg CO2e, %d items\n", r.Source, r.Report.TotalCO2Kg.StringFixed(2), len(r.Report.Items))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(runner.Results()))
	}
	return nil
}

// cancelOnSignal stops the batch on the first signal. Documents already analyzed
// keep their reports; the rest fail with context.Canceled.
func cancelOnSignal(ctx context.Context, ctrl workflow.Controller, dir string, runner *workflow.Runner, signals <-chan os.Signal) {
	select {
	case sig := <-signals:
		logger := zerolog.Ctx(ctx)
		logger.Warn().Str("signal", sig.String()).Str("dir", dir).Msg("cancelling batch")
		if err := ctrl.Cancel(ctx, dir); err != nil {
			logger.Debug().Err(err).Msg("batch already finished")
		}
	case <-runner.Done():
	}
}
