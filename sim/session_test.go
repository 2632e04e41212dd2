package sim

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archelon/pricesim/market"
	"github.com/archelon/pricesim/source"
)

// twoCandles returns a source with two bars whose endpoints carry the
// extremes, so small densities stay valid.
func twoCandles(t *testing.T) *source.Memory {
	t.Helper()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	src := source.NewMemory()
	src.Add(
		market.Candle{Symbol: "AVAXUSDT", Interval: market.H1, OpenTime: base,
			Open: 12, High: 12, Low: 9, Close: 9, Volume: 10},
		market.Candle{Symbol: "AVAXUSDT", Interval: market.H1, OpenTime: base.Add(time.Hour),
			Open: 9, High: 11, Low: 9, Close: 11, Volume: 12},
	)
	return src
}

func newTestSession(t *testing.T, src *source.Memory, density int, policy ExhaustPolicy, seed int64) *Session {
	t.Helper()
	return NewSession(src, "AVAXUSDT", market.H1, density, policy, rand.New(rand.NewSource(seed)))
}

func TestSessionUninitialized(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, twoCandles(t), 8, ExhaustWrap, 1)
	ctx := context.Background()

	_, err := s.Advance(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.Peek(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, StateUninitialized, s.State())
}

func TestSessionResetShape(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, twoCandles(t), 8, ExhaustWrap, 1)
	ctx := context.Background()

	res, err := s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CandleIndex)
	assert.Equal(t, 0, res.Cursor)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, StateActive, s.State())

	// Advance partway, then reset from ACTIVE: back to (0, 0) with a new run.
	for i := 0; i < 5; i++ {
		_, err := s.Advance(ctx)
		require.NoError(t, err)
	}
	res2, err := s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res2.CandleIndex)
	assert.Equal(t, 0, res2.Cursor)
	assert.NotEqual(t, res.RunID, res2.RunID)

	tick, err := s.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, tick.CandleIndex)
	assert.Equal(t, 0, tick.Cursor)
}

func TestSessionResetUnknownKey(t *testing.T) {
	t.Parallel()

	s := NewSession(source.NewMemory(), "NOPEUSDT", market.H1, 8, ExhaustWrap, rand.New(rand.NewSource(1)))
	_, err := s.Reset(context.Background())
	assert.ErrorIs(t, err, source.ErrUnknownKey)
	assert.Equal(t, StateUninitialized, s.State())
}

func TestSessionAdvanceRollsToNextCandle(t *testing.T) {
	t.Parallel()

	const density = 8
	s := newTestSession(t, twoCandles(t), density, ExhaustWrap, 2)
	ctx := context.Background()

	_, err := s.Reset(ctx)
	require.NoError(t, err)

	for i := 0; i < density; i++ {
		tick, err := s.Advance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, tick.CandleIndex)
		assert.Equal(t, i, tick.Cursor)
	}

	// Path exhausted: the next advance serves point 0 of candle 1.
	tick, err := s.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, tick.CandleIndex)
	assert.Equal(t, 0, tick.Cursor)
}

func TestSessionWrapAtEndOfHistory(t *testing.T) {
	t.Parallel()

	const density = 8
	s := newTestSession(t, twoCandles(t), density, ExhaustWrap, 3)
	ctx := context.Background()

	_, err := s.Reset(ctx)
	require.NoError(t, err)

	first := make([]float64, density)
	for i := 0; i < density; i++ {
		tick, err := s.Advance(ctx)
		require.NoError(t, err)
		first[i] = tick.Price
	}
	for i := 0; i < density; i++ {
		_, err := s.Advance(ctx)
		require.NoError(t, err)
	}

	// Both candles consumed: wrap back to candle 0 with a fresh draw.
	second := make([]float64, density)
	for i := 0; i < density; i++ {
		tick, err := s.Advance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, tick.CandleIndex)
		assert.Equal(t, i, tick.Cursor)
		second[i] = tick.Price
	}
	assert.Equal(t, StateActive, s.State())
	assert.NotEqual(t, first, second, "wrap should regenerate the path, not replay it")
}

func TestSessionStrictExhaustion(t *testing.T) {
	t.Parallel()

	const density = 8
	s := newTestSession(t, twoCandles(t), density, ExhaustStrict, 4)
	ctx := context.Background()

	_, err := s.Reset(ctx)
	require.NoError(t, err)

	for i := 0; i < 2*density; i++ {
		_, err := s.Advance(ctx)
		require.NoError(t, err)
	}

	_, err = s.Advance(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, StateExhausted, s.State())

	// Still exhausted on retry; only a reset recovers.
	_, err = s.Advance(ctx)
	assert.ErrorIs(t, err, ErrExhausted)

	_, err = s.Reset(ctx)
	require.NoError(t, err)
	tick, err := s.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, tick.CandleIndex)
	assert.Equal(t, 0, tick.Cursor)
}

func TestSessionPeekDoesNotConsume(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, twoCandles(t), 8, ExhaustWrap, 5)
	ctx := context.Background()

	_, err := s.Reset(ctx)
	require.NoError(t, err)

	p1, err := s.Peek(ctx)
	require.NoError(t, err)
	p2, err := s.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	got, err := s.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, p1.Price, got.Price)
	assert.Equal(t, p1.Cursor, got.Cursor)
}

func TestSessionTouchTracking(t *testing.T) {
	t.Parallel()

	const density = 16
	s := newTestSession(t, twoCandles(t), density, ExhaustWrap, 6)
	ctx := context.Background()

	_, err := s.Reset(ctx)
	require.NoError(t, err)

	var last Tick
	for i := 0; i < density; i++ {
		last, err = s.Advance(ctx)
		require.NoError(t, err)
	}
	// Candle 0 opens on its high and closes on its low, so by the end of
	// its path both extremes must have been served.
	assert.True(t, last.HighTouched)
	assert.True(t, last.LowTouched)
}

func TestSessionTickTimestamps(t *testing.T) {
	t.Parallel()

	const density = 8
	s := newTestSession(t, twoCandles(t), density, ExhaustWrap, 7)
	ctx := context.Background()

	_, err := s.Reset(ctx)
	require.NoError(t, err)

	first, err := s.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.CandleOpenTime, first.Time)

	var last Tick
	for i := 1; i < density; i++ {
		last, err = s.Advance(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, last.CandleCloseTime, last.Time)
	assert.True(t, last.Time.After(first.Time))
}
