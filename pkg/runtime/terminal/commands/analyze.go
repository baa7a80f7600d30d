package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

type AnalyzeCmd struct {
	source    string
	format    string
	load      Loader
	reporters map[string]Reporter
}

func NewAnalyzeCmd(load Loader, reporters map[string]Reporter) *cobra.Command {
	ac := &AnalyzeCmd{load: load, reporters: reporters}
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze the OCR text of one invoice",
		Args:  cobra.ExactArgs(1),
		RunE:  ac.run,
	}

	cmd.Flags().StringVar(&ac.source, "source", "", "Source reference to store the report under (default is the file name)")
	cmd.Flags().StringVar(&ac.format, "format", "text", fmt.Sprintf("Output format (%s)", strings.Join(ac.formats(), ", ")))

	return cmd
}

func (ac *AnalyzeCmd) formats() []string {
	names := make([]string, 0, len(ac.reporters))
	for name := range ac.reporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (ac *AnalyzeCmd) run(cmd *cobra.Command, args []string) error {
	reporter, ok := ac.reporters[ac.format]
	if !ok {
		return fmt.Errorf("unsupported format %q. Supported formats: %v", ac.format, ac.formats())
	}

	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read invoice text: %w", err)
	}
	source := ac.source
	if source == "" {
		source = filepath.Base(args[0])
	}

	ctx := cmd.Context()
	a, err := ac.load(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Invoices.Process(ctx, source, string(text))
	if err != nil {
		return fmt.Errorf("failed to analyze %s: %w", source, err)
	}

	return reporter.Handle(report)
}
