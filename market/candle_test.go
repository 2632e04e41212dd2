package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Minute, M1.Duration())
	assert.Equal(t, time.Hour, H1.Duration())
	assert.Equal(t, 24*time.Hour, D1.Duration())
	assert.True(t, H4.Valid())
	assert.False(t, Interval("2q").Valid())
}

func TestCandleValidate(t *testing.T) {
	t.Parallel()

	ok := Candle{Open: 10, High: 12, Low: 9, Close: 11}
	assert.NoError(t, ok.Validate())

	assert.Error(t, Candle{Open: 10, High: 9, Low: 12, Close: 11}.Validate())
	assert.Error(t, Candle{Open: 13, High: 12, Low: 9, Close: 11}.Validate())
	assert.Error(t, Candle{Open: 10, High: 12, Low: 9, Close: 8}.Validate())
}

func TestCandleEnd(t *testing.T) {
	t.Parallel()

	open := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	explicit := Candle{Interval: H1, OpenTime: open, CloseTime: open.Add(59 * time.Minute)}
	assert.Equal(t, open.Add(59*time.Minute), explicit.End())

	derived := Candle{Interval: H1, OpenTime: open}
	assert.Equal(t, open.Add(time.Hour), derived.End())
}

func TestPathMinMax(t *testing.T) {
	t.Parallel()

	p := Path{{0, 10}, {1, 12}, {2, 9}, {3, 11}}
	assert.Equal(t, 9.0, p.MinPrice())
	assert.Equal(t, 12.0, p.MaxPrice())

	assert.Equal(t, 0.0, Path{}.MinPrice())
	assert.Equal(t, 0.0, Path{}.MaxPrice())
}
