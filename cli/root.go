// Package cli wires the pricesim commands: the HTTP service, the candle
// recorder, and the archive importer.
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/archelon/pricesim/config"
	"github.com/archelon/pricesim/source"
)

type rootOptions struct {
	ConfigPath string
	LogLevel   string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "pricesim",
		Short:         "Simulated tick-level prices over historical candles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")

	cmd.AddCommand(
		newServeCmd(opts),
		newRecordCmd(opts),
		newImportCmd(opts),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("pricesim 0.1.0")
		},
	})

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.LoadFromFile(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// openSource builds the configured candle store. The second return value is
// non-nil only for the sqlite backend, which also accepts writes.
func openSource(cfg *config.Config) (source.CandleSource, *source.SQLite, error) {
	switch cfg.Data.Backend {
	case "sqlite":
		db, err := source.NewSQLite(cfg.Data.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store %s: %w", cfg.Data.DBPath, err)
		}
		return db, db, nil
	case "csv":
		return source.NewCSV(cfg.Data.Dir), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown data backend %q", cfg.Data.Backend)
}
