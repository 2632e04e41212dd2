// Package source provides ordered, indexable historical candles for a
// (symbol, interval) key. Implementations are append-only: once a candle is
// visible at an index it stays at that index for the life of the source.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/archelon/pricesim/market"
)

var (
	// ErrUnknownKey means the source holds no data at all for the
	// (symbol, interval) key.
	ErrUnknownKey = errors.New("no candle data for key")

	// ErrOutOfRange means the key exists but the requested index is past
	// the end of the available history.
	ErrOutOfRange = errors.New("candle index out of range")
)

// CandleSource is the read interface the simulation core consumes.
type CandleSource interface {
	// Candle returns the bar at index (0-based, oldest first).
	// Returns ErrUnknownKey when the key has no data, ErrOutOfRange when
	// index is past the end of history.
	Candle(ctx context.Context, symbol string, interval market.Interval, index int) (market.Candle, error)

	// Count returns the number of bars available for the key.
	// Returns ErrUnknownKey when the key has no data.
	Count(ctx context.Context, symbol string, interval market.Interval) (int, error)
}

// Tail returns up to limit of the most recent candles for the key, oldest
// first. It is a convenience read for the candles API and does no simulation.
func Tail(ctx context.Context, src CandleSource, symbol string, interval market.Interval, limit int) ([]market.Candle, error) {
	n, err := src.Count(ctx, symbol, interval)
	if err != nil {
		return nil, err
	}
	start := 0
	if limit > 0 && n > limit {
		start = n - limit
	}
	out := make([]market.Candle, 0, n-start)
	for i := start; i < n; i++ {
		c, err := src.Candle(ctx, symbol, interval, i)
		if err != nil {
			return nil, fmt.Errorf("candle %d for %s %s: %w", i, symbol, interval, err)
		}
		out = append(out, c)
	}
	return out, nil
}
