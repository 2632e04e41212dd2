package market

import (
	"fmt"
	"time"
)

// Interval is a candle timeframe, using the exchange's spelling ("1m", "1h", ...).
type Interval string

const (
	M1  Interval = "1m"
	M5  Interval = "5m"
	M15 Interval = "15m"
	H1  Interval = "1h"
	H4  Interval = "4h"
	D1  Interval = "1d"
)

// Duration returns the wall-clock span of one candle at this interval.
// Unknown intervals return 0.
func (iv Interval) Duration() time.Duration {
	switch iv {
	case M1:
		return time.Minute
	case M5:
		return 5 * time.Minute
	case M15:
		return 15 * time.Minute
	case H1:
		return time.Hour
	case H4:
		return 4 * time.Hour
	case D1:
		return 24 * time.Hour
	}
	return 0
}

// Valid reports whether iv is one of the supported intervals.
func (iv Interval) Valid() bool {
	return iv.Duration() != 0
}

// Candle represents one OHLCV bar for a symbol at a fixed interval.
// Candles are immutable once read from a source.
type Candle struct {
	Symbol   string
	Interval Interval

	OpenTime  time.Time
	CloseTime time.Time

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate checks the OHLC envelope: low <= open <= high and low <= close <= high.
func (c Candle) Validate() error {
	if c.Low > c.High {
		return fmt.Errorf("low %g above high %g", c.Low, c.High)
	}
	if c.Open < c.Low || c.Open > c.High {
		return fmt.Errorf("open %g outside [%g, %g]", c.Open, c.Low, c.High)
	}
	if c.Close < c.Low || c.Close > c.High {
		return fmt.Errorf("close %g outside [%g, %g]", c.Close, c.Low, c.High)
	}
	return nil
}

// End returns the candle close time, deriving it from the interval when the
// source did not carry an explicit close timestamp.
func (c Candle) End() time.Time {
	if !c.CloseTime.IsZero() {
		return c.CloseTime
	}
	return c.OpenTime.Add(c.Interval.Duration())
}
