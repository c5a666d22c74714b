package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"neuropipe/internal/processing"
)

type paramFlags struct {
	pairs []string
	file  string
}

func (p *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&p.pairs, "param", "p", nil, "Processor parameter as key=value (repeatable; non-text parameters accept JSON values)")
	cmd.Flags().StringVar(&p.file, "params-file", "", "JSON file with processor parameters")
}

func newRunCmd(c *cli) *cobra.Command {
	var (
		flags paramFlags
		quiet bool
	)
	cmd := &cobra.Command{
		Use:   "run <dataset-name> <processor>",
		Short: "Run a processor against a dataset and print its result",
		Long: `Run a processor synchronously. Processor is a kind (extraction, modification,
annotation, indexing) or its display name. Progress goes to stderr and the
result envelope to stdout. The exit status is non-zero when the run fails.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// an unknown processor is reported by Run with the envelope
			kind, _ := processing.ParseKind(args[1])
			params, err := parseParams(flags.pairs, flags.file, kind)
			if err != nil {
				return err
			}

			env, err := c.open()
			if err != nil {
				return err
			}
			defer env.Close()

			ds, err := env.coord.DatasetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var progress processing.ProgressFunc
			if !quiet {
				progress = progressPrinter(cmd.ErrOrStderr(), args[1])
			}
			res := env.coord.Run(cmd.Context(), ds.ID, args[1], params, progress)
			if !quiet {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			return report(cmd.OutOrStdout(), res)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
	return cmd
}

func newPreviewCmd(c *cli) *cobra.Command {
	var flags paramFlags
	cmd := &cobra.Command{
		Use:   "preview <dataset-name>",
		Short: "Preview an extraction without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(flags.pairs, flags.file, processing.KindPreview)
			if err != nil {
				return err
			}

			env, err := c.open()
			if err != nil {
				return err
			}
			defer env.Close()

			ds, err := env.coord.DatasetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), env.coord.Preview(cmd.Context(), ds.ID, params))
		},
	}
	flags.register(cmd)
	return cmd
}

// report prints the envelope and turns a failed run into an error
func report(w io.Writer, res *processing.Result) error {
	if err := writeJSON(w, res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s: %s", res.ErrorType, res.Message)
	}
	return nil
}

func progressPrinter(w io.Writer, label string) processing.ProgressFunc {
	return func(p float64) {
		fmt.Fprintf(w, "\r%s %5.1f%%", label, p)
	}
}
