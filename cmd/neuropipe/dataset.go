package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"neuropipe/internal/registry"
)

func newDatasetCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dataset",
		Aliases: []string{"ds"},
		Short:   "Register and list datasets",
	}
	cmd.AddCommand(newDatasetAddCmd(c), newDatasetListCmd(c))
	return cmd
}

func newDatasetAddCmd(c *cli) *cobra.Command {
	var name, format, description string
	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Register a raw table file as a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				base := filepath.Base(args[0])
				name = strings.TrimSuffix(base, filepath.Ext(base))
			}

			env, err := c.open()
			if err != nil {
				return err
			}
			defer env.Close()

			ds := &registry.Dataset{
				Name:        name,
				FilePath:    args[0],
				FileFormat:  format,
				Description: description,
			}
			if err := env.coord.RegisterDataset(cmd.Context(), ds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered dataset %d %q (%s, %d bytes)\n",
				ds.ID, ds.Name, ds.FileFormat, ds.FileSize)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Dataset name (default: file name without extension)")
	cmd.Flags().StringVar(&format, "format", "", "File format: csv, tsv, txt, xlsx, json (default: from extension)")
	cmd.Flags().StringVar(&description, "description", "", "Free-text description")
	return cmd
}

func newDatasetListCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered datasets",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.open()
			if err != nil {
				return err
			}
			defer env.Close()

			datasets, err := env.coord.Datasets(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if datasets == nil {
					datasets = []*registry.Dataset{}
				}
				return writeJSON(cmd.OutOrStdout(), datasets)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tFORMAT\tSIZE\tFILE")
			for _, ds := range datasets {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", ds.ID, ds.Name, ds.FileFormat, ds.FileSize, ds.FilePath)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}
