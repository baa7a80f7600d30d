package commands

import (
	"github.com/de-tools/carbon-atlas/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

func NewFactorsCmd(load Loader, reporter *export.Reporter) *cobra.Command {
	return &cobra.Command{
		Use:   "factors",
		Short: "List the emission factors in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return reporter.HandleFactors(a.Factors.Snapshot())
		},
	}
}
