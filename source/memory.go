package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/archelon/pricesim/market"
)

type key struct {
	symbol   string
	interval market.Interval
}

// Memory is an in-memory CandleSource. It backs tests and acts as the write
// target for the recorder before candles are flushed to a durable store.
type Memory struct {
	mu   sync.RWMutex
	data map[key][]market.Candle
}

func NewMemory() *Memory {
	return &Memory{data: make(map[key][]market.Candle)}
}

// Add appends candles for their (symbol, interval) keys. Candles must be
// supplied oldest first; indices of previously added candles never change.
func (m *Memory) Add(candles ...market.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candles {
		k := key{c.Symbol, c.Interval}
		m.data[k] = append(m.data[k], c)
	}
}

func (m *Memory) Candle(ctx context.Context, symbol string, interval market.Interval, index int) (market.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bars, ok := m.data[key{symbol, interval}]
	if !ok || len(bars) == 0 {
		return market.Candle{}, fmt.Errorf("%s %s: %w", symbol, interval, ErrUnknownKey)
	}
	if index < 0 || index >= len(bars) {
		return market.Candle{}, fmt.Errorf("%s %s index %d of %d: %w", symbol, interval, index, len(bars), ErrOutOfRange)
	}
	return bars[index], nil
}

func (m *Memory) Count(ctx context.Context, symbol string, interval market.Interval) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bars, ok := m.data[key{symbol, interval}]
	if !ok || len(bars) == 0 {
		return 0, fmt.Errorf("%s %s: %w", symbol, interval, ErrUnknownKey)
	}
	return len(bars), nil
}
