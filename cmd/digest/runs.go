package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hyperjump/digest/internal/storage"
)

func newRunsCmd(g *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:          "runs",
		Short:        "List recent runs recorded in the ledger",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(g.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ledger, err := storage.Open(cfg.Storage.DatabasePath)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer ledger.Close()

			runs, err := ledger.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			total, err := ledger.CountEntries(cmd.Context())
			if err != nil {
				return err
			}
			writeRuns(cmd.OutOrStdout(), runs, total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	return cmd
}

func writeRuns(w io.Writer, runs []*storage.RunRecord, totalEntries int64) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSOURCE\tSTATUS\tENTRIES\tTOKENS\tRUN ID")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.Source, r.Status, r.Entries, r.Tokens, r.ID)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d entries in ledger\n", totalEntries)
}
