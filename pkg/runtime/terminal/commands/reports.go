package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type ReportsCmd struct {
	limit int
	load  Loader
}

func NewReportsCmd(load Loader) *cobra.Command {
	rc := &ReportsCmd{load: load}
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List stored reports, newest first",
		Args:  cobra.NoArgs,
		RunE:  rc.run,
	}

	cmd.Flags().IntVar(&rc.limit, "limit", 20, "Maximum number of reports to list")

	return cmd
}

func (rc *ReportsCmd) run(cmd *cobra.Command, _ []string) error {
	a, err := rc.load(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	summaries, err := a.Invoices.List(cmd.Context(), rc.limit)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No reports stored.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(out, "%s  %-9s  %10s kg CO2e  %d items  %s\n",
			s.CreatedAt.Format("2006-01-02 15:04:05"), s.Status, s.TotalCO2Kg.StringFixed(2), s.ItemCount, s.SourceReference)
	}
	return nil
}
