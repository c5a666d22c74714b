// Command neuropipe registers neuron-imaging tables, runs the matrix
// processors against them and serves the HTTP API.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"neuropipe/internal/config"
	"neuropipe/internal/infrastructure"
)

// cli carries state resolved once in PersistentPreRunE
type cli struct {
	cfg      *config.Config
	logger   *slog.Logger
	logLevel string
	dataDir  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "neuropipe",
		Short: "Neuron-imaging matrix pipeline",
		Long: `neuropipe turns raw neuron-imaging tables (CSV, TSV, TXT, XLSX, JSON) into
labelled matrix artifacts, derived matrices, annotation vectors and rank indices.

Examples:
  neuropipe dataset add recording.xlsx --name "session 1"
  neuropipe preview "session 1" --param matrix_range=B3:E8
  neuropipe run "session 1" extraction --param matrix_name=raster --param matrix_range=B3:E8
  neuropipe jobs "session 1"
  neuropipe serve`,
		Version:      config.AppVersion,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&c.dataDir, "data-dir", "", "Data directory holding datasets and the registry (overrides config)")

	root.AddCommand(
		newDatasetCmd(c),
		newRunCmd(c),
		newPreviewCmd(c),
		newJobsCmd(c),
		newServeCmd(c),
	)
	return root
}

// init loads configuration and builds the stderr logger used by the
// one-shot commands. serve replaces the logger with the configured one.
func (c *cli) init(stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.dataDir != "" {
		cfg.Paths.DataDir = c.dataDir
		cfg.Paths.RegistryDB = filepath.Join(c.dataDir, "registry.db")
		cfg.Paths.LogsDir = filepath.Join(c.dataDir, "logs")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.cfg = cfg
	c.logger = infrastructure.NewLogger(stderr, cfg.Logging.Level)
	return nil
}
