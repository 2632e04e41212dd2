// Package recorder captures historical candles from the exchange into a
// local store, on a cron schedule or as a one-shot backfill.
package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/archelon/pricesim/market"
)

// Store is the write side of a candle store.
type Store interface {
	Insert(ctx context.Context, candles []market.Candle) (int, error)
}

// Fetcher pulls klines from an exchange.
type Fetcher interface {
	Klines(ctx context.Context, symbol string, interval market.Interval, limit int) ([]market.Candle, error)
	KlinesRange(ctx context.Context, symbol string, interval market.Interval, start, end time.Time) ([]market.Candle, error)
}

// runTimeout bounds one scheduled capture pass.
const runTimeout = 5 * time.Minute

// backfillWindowDays is the span of each historical backfill window.
const backfillWindowDays = 10

// Recorder manages scheduled candle capture for a set of keys.
type Recorder struct {
	cron      *cron.Cron
	fetcher   Fetcher
	store     Store
	symbols   []string
	intervals []market.Interval
	limit     int
	log       *logrus.Entry
}

func New(fetcher Fetcher, store Store, symbols []string, intervals []market.Interval, limit int, log *logrus.Logger) *Recorder {
	if limit <= 0 {
		limit = 500
	}
	return &Recorder{
		cron:      cron.New(cron.WithSeconds()),
		fetcher:   fetcher,
		store:     store,
		symbols:   symbols,
		intervals: intervals,
		limit:     limit,
		log:       log.WithField("component", "recorder"),
	}
}

// Register adds the capture task under the given cron spec (with seconds).
func (r *Recorder) Register(schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := r.RunOnce(ctx); err != nil {
			r.log.WithError(err).Error("scheduled capture failed")
		}
	})
	if err != nil {
		return fmt.Errorf("register capture task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (r *Recorder) Start() {
	r.cron.Start()
	r.log.Info("recorder started")
}

// Stop stops the scheduler and waits for a running capture to finish.
func (r *Recorder) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("recorder stopped")
}

// RunOnce captures the most recent candles for every configured key.
func (r *Recorder) RunOnce(ctx context.Context) error {
	for _, symbol := range r.symbols {
		for _, interval := range r.intervals {
			candles, err := r.fetcher.Klines(ctx, symbol, interval, r.limit)
			if err != nil {
				return fmt.Errorf("fetch %s %s: %w", symbol, interval, err)
			}
			n, err := r.store.Insert(ctx, candles)
			if err != nil {
				return fmt.Errorf("store %s %s: %w", symbol, interval, err)
			}
			r.log.WithFields(logrus.Fields{
				"symbol":   symbol,
				"interval": interval,
				"fetched":  len(candles),
				"inserted": n,
			}).Info("candles captured")
		}
	}
	return nil
}

// Backfill captures four 10-day windows spread over the last three years:
// the most recent days plus one window each at one, two and three years back.
func (r *Recorder) Backfill(ctx context.Context) error {
	now := time.Now().UTC()
	starts := []time.Time{
		now.AddDate(0, 0, -backfillWindowDays),
		now.AddDate(-1, 0, -backfillWindowDays),
		now.AddDate(-2, 0, -backfillWindowDays),
		now.AddDate(-3, 0, -backfillWindowDays),
	}

	for _, symbol := range r.symbols {
		for _, interval := range r.intervals {
			for _, start := range starts {
				end := start.AddDate(0, 0, backfillWindowDays)
				candles, err := r.fetcher.KlinesRange(ctx, symbol, interval, start, end)
				if err != nil {
					return fmt.Errorf("backfill %s %s from %s: %w",
						symbol, interval, start.Format("2006-01-02"), err)
				}
				n, err := r.store.Insert(ctx, candles)
				if err != nil {
					return fmt.Errorf("store %s %s: %w", symbol, interval, err)
				}
				r.log.WithFields(logrus.Fields{
					"symbol":   symbol,
					"interval": interval,
					"window":   start.Format("2006-01-02"),
					"inserted": n,
				}).Info("backfill window captured")
			}
		}
	}
	return nil
}
