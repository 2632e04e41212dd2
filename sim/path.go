// Package sim synthesizes tick-level price movement inside historical
// candles and tracks per-key progression through it, so strategies can be
// exercised against a repeatable approximation of intra-bar movement.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/archelon/pricesim/market"
)

// DefaultDensity is the number of price points generated per candle.
const DefaultDensity = 60

// noiseFraction scales the random perturbation around the linear baseline
// within a segment, relative to that segment's price span.
const noiseFraction = 0.1

// Generate produces the tick path for one candle: the first point is the
// open, the last is the close, both extremes are visited exactly, and every
// point stays inside [low, high]. The same candle, density and rng state
// always yield the same path.
//
// When high == low the path is constant at that price. A candle outside its
// own envelope fails with ErrDataIntegrity. Density must leave room for the
// endpoints plus any extreme not already satisfied by open or close.
func Generate(c market.Candle, density int, rng *rand.Rand) (market.Path, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s %s at %s: %v",
			ErrDataIntegrity, c.Symbol, c.Interval, c.OpenTime, err)
	}
	if density < 2 {
		return nil, fmt.Errorf("density must be at least 2, got %d", density)
	}

	prices := make([]float64, density)

	if c.High == c.Low {
		for i := range prices {
			prices[i] = c.Open
		}
		return toPath(prices), nil
	}

	// An extreme already sitting on an endpoint needs no interior visit.
	needHigh := c.Open != c.High && c.Close != c.High
	needLow := c.Open != c.Low && c.Close != c.Low

	need := 0
	if needHigh {
		need++
	}
	if needLow {
		need++
	}
	interior := density - 2
	if interior < need {
		return nil, fmt.Errorf("density %d too small to visit extremes of %s %s", density, c.Symbol, c.Interval)
	}

	type anchor struct {
		offset int
		price  float64
	}
	anchors := []anchor{{0, c.Open}}

	switch {
	case needHigh && needLow:
		a := 1 + rng.Intn(interior)
		b := 1 + rng.Intn(interior)
		for b == a {
			b = 1 + rng.Intn(interior)
		}
		if a > b {
			a, b = b, a
		}
		// Visiting order of the two extremes is a fair coin flip.
		first, second := c.High, c.Low
		if rng.Intn(2) == 1 {
			first, second = second, first
		}
		anchors = append(anchors, anchor{a, first}, anchor{b, second})
	case needHigh:
		anchors = append(anchors, anchor{1 + rng.Intn(interior), c.High})
	case needLow:
		anchors = append(anchors, anchor{1 + rng.Intn(interior), c.Low})
	}

	anchors = append(anchors, anchor{density - 1, c.Close})

	// Fill each segment with a linear baseline plus bounded noise. Clamping
	// into the envelope, never resampling, is what keeps every draw legal.
	// Anchor offsets are written last so extremes and endpoints stay exact.
	for s := 0; s+1 < len(anchors); s++ {
		from, to := anchors[s], anchors[s+1]

		span := to.price - from.price
		if span < 0 {
			span = -span
		}
		steps := to.offset - from.offset
		for i := from.offset + 1; i < to.offset; i++ {
			t := float64(i-from.offset) / float64(steps)
			base := from.price + t*(to.price-from.price)
			noise := (rng.Float64()*2 - 1) * noiseFraction * span
			prices[i] = clamp(base+noise, c.Low, c.High)
		}

		prices[from.offset] = from.price
		prices[to.offset] = to.price
	}

	return toPath(prices), nil
}

func toPath(prices []float64) market.Path {
	path := make(market.Path, len(prices))
	for i, p := range prices {
		path[i] = market.PricePoint{Offset: i, Price: p}
	}
	return path
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
