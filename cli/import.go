package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xyproto/unzip"

	"github.com/archelon/pricesim/market"
	"github.com/archelon/pricesim/source"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <archive.zip|file.csv> ...",
		Short: "Import candle CSV files or zipped CSV archives into the sqlite store",
		Long: `Import loads candle CSV files named <SYMBOL>_<window>_<interval>.csv
into the sqlite store. Zip archives are extracted first, so whole data
directories can be moved between hosts as a single file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			_, store, err := openSource(cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("import requires the sqlite backend, got %q", cfg.Data.Backend)
			}
			defer store.Close()

			var files []string
			for _, arg := range args {
				switch strings.ToLower(filepath.Ext(arg)) {
				case ".zip":
					dir, err := os.MkdirTemp("", "pricesim-import-*")
					if err != nil {
						return err
					}
					defer os.RemoveAll(dir)

					if err := unzip.Extract(arg, dir); err != nil {
						return fmt.Errorf("extract %s: %w", arg, err)
					}
					extracted, err := filepath.Glob(filepath.Join(dir, "*.csv"))
					if err != nil {
						return err
					}
					files = append(files, extracted...)
				case ".csv":
					files = append(files, arg)
				default:
					return fmt.Errorf("unsupported file %q (want .zip or .csv)", arg)
				}
			}

			total := 0
			for _, path := range files {
				symbol, interval, err := parseCandleFileName(path)
				if err != nil {
					return err
				}
				candles, err := source.ReadCandleCSV(path, symbol, interval)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				n, err := store.Insert(cmd.Context(), candles)
				if err != nil {
					return fmt.Errorf("store %s: %w", path, err)
				}
				log.WithField("file", filepath.Base(path)).
					WithField("inserted", n).
					Info("candles imported")
				total += n
			}

			log.WithField("total", total).Info("import finished")
			return nil
		},
	}
	return cmd
}

// parseCandleFileName extracts symbol and interval from
// <SYMBOL>_<window>_<interval>.csv; the window itself may contain
// underscores ("1year_ago").
func parseCandleFileName(path string) (string, market.Interval, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return "", "", fmt.Errorf("file name %q does not match <SYMBOL>_<window>_<interval>.csv", filepath.Base(path))
	}
	symbol := parts[0]
	interval := market.Interval(parts[len(parts)-1])
	if !interval.Valid() {
		return "", "", fmt.Errorf("file name %q carries unknown interval %q", filepath.Base(path), interval)
	}
	return symbol, interval, nil
}
