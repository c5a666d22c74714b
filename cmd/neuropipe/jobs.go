package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"neuropipe/internal/registry"
)

func newJobsCmd(c *cli) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "jobs <dataset-name>",
		Short: "List the jobs recorded for a dataset, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.open()
			if err != nil {
				return err
			}
			defer env.Close()

			ds, err := env.coord.DatasetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			jobs, err := env.coord.ListJobs(cmd.Context(), ds.ID, limit)
			if err != nil {
				return err
			}
			if asJSON {
				if jobs == nil {
					jobs = []*registry.Job{}
				}
				return writeJSON(cmd.OutOrStdout(), jobs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPROCESSOR\tSTATUS\tPROGRESS\tCREATED\tMESSAGE")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
					j.ID, j.Name, j.Processor, j.Status, j.Progress,
					j.CreatedAt.Local().Format(time.DateTime), j.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}
