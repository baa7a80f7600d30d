package terminal

import (
	"context"
	"io"
	"os"

	"github.com/de-tools/carbon-atlas/pkg/runtime/app"
	"github.com/de-tools/carbon-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/carbon-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/carbon-atlas/pkg/services/config"
	"github.com/spf13/cobra"
)

// Builder wires the application from loaded settings.
type Builder func(ctx context.Context, settings config.Settings) (*app.App, error)

// CLI represents the command-line interface
type CLI struct {
	build   Builder
	output  io.Writer
	cfgPath string
	rootCmd *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	Build  Builder
	Output io.Writer
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Build == nil {
		opts.Build = app.Build
	}

	cli := &CLI{
		build:  opts.Build,
		output: opts.Output,
	}

	cli.rootCmd = cli.newRootCmd()
	return cli
}

func (cli *CLI) Execute() error {
	return cli.rootCmd.Execute()
}

func (cli *CLI) ExecuteContext(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}

// SetArgs overrides os.Args, mostly for tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) load(ctx context.Context) (*app.App, error) {
	settings, err := config.Load(cli.cfgPath)
	if err != nil {
		return nil, err
	}
	return cli.build(ctx, *settings)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "carbon",
		Short:         "Invoice carbon accounting tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(cli.output)
	cmd.PersistentFlags().StringVarP(&cli.cfgPath, "config", "c", "", "Path to a YAML settings file")

	reporters := map[string]commands.Reporter{
		"text":  NewReporter(cli.output),
		"table": export.NewReporter(cli.output),
	}

	cmd.AddCommand(commands.NewAnalyzeCmd(cli.load, reporters))
	cmd.AddCommand(commands.NewBatchCmd(cli.load))
	cmd.AddCommand(commands.NewReportsCmd(cli.load))
	cmd.AddCommand(commands.NewFactorsCmd(cli.load, export.NewReporter(cli.output)))

	return cmd
}
