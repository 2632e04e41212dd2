package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archelon/pricesim/market"
	"github.com/archelon/pricesim/recorder"
	"github.com/archelon/pricesim/source"
)

func newRecordCmd(opts *rootOptions) *cobra.Command {
	var (
		symbols   []string
		intervals []string
		backfill  bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture historical candles from Binance into the sqlite store",
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
				return fmt.Errorf("record requires the sqlite backend, got %q", cfg.Data.Backend)
			}
			defer store.Close()

			if len(symbols) == 0 {
				symbols = cfg.Recorder.Symbols
			}
			if len(symbols) == 0 {
				return fmt.Errorf("no symbols: pass --symbol or set recorder.symbols")
			}
			if len(intervals) == 0 {
				intervals = cfg.Recorder.Intervals
			}
			ivs := make([]market.Interval, len(intervals))
			for i, raw := range intervals {
				iv := market.Interval(raw)
				if !iv.Valid() {
					return fmt.Errorf("unknown interval %q", raw)
				}
				ivs[i] = iv
			}

			rec := recorder.New(
				source.NewBinance(cfg.Recorder.BinanceURL),
				store, symbols, ivs, cfg.Recorder.Limit, log,
			)

			if backfill {
				return rec.Backfill(cmd.Context())
			}
			return rec.RunOnce(cmd.Context())
		},
	}

	cmd.Flags().StringSliceVar(&symbols, "symbol", nil, "Symbols to capture (e.g. AVAXUSDT), repeatable")
	cmd.Flags().StringSliceVar(&intervals, "interval", nil, "Intervals to capture (e.g. 1h), repeatable")
	cmd.Flags().BoolVar(&backfill, "backfill", false, "Capture the historical 10-day windows instead of recent candles")
	return cmd
}
