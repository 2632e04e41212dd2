package cli

import (
	"github.com/spf13/cobra"

	"github.com/archelon/pricesim/market"
	"github.com/archelon/pricesim/recorder"
	"github.com/archelon/pricesim/sim"
	"github.com/archelon/pricesim/source"
	"github.com/archelon/pricesim/web"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			src, store, err := openSource(cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			policy, err := sim.ParseExhaustPolicy(cfg.Simulation.ExhaustPolicy)
			if err != nil {
				return err
			}
			registry := sim.NewRegistry(src,
				sim.WithDensity(cfg.Simulation.Density),
				sim.WithExhaustPolicy(policy),
				sim.WithLogger(log),
			)

			if cfg.Recorder.Enabled {
				if store == nil {
					log.Warn("recorder enabled but the csv backend is read-only, skipping")
				} else {
					intervals := make([]market.Interval, len(cfg.Recorder.Intervals))
					for i, iv := range cfg.Recorder.Intervals {
						intervals[i] = market.Interval(iv)
					}
					rec := recorder.New(
						source.NewBinance(cfg.Recorder.BinanceURL),
						store,
						cfg.Recorder.Symbols,
						intervals,
						cfg.Recorder.Limit,
						log,
					)
					if err := rec.Register(cfg.Recorder.Schedule); err != nil {
						return err
					}
					rec.Start()
					defer rec.Stop()
				}
			}

			if addr == "" {
				addr = cfg.Server.Addr()
			}
			return web.NewServer(registry, src, log).Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
