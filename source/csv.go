package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/archelon/pricesim/market"
)

// dataWindows are the file name suffixes the recorder writes, newest first.
// Lookup falls back through older windows when no recent file exists.
var dataWindows = []string{"recent", "1year_ago", "2years_ago", "3years_ago"}

// CSV is a CandleSource backed by a directory of kline CSV files named
// <SYMBOL>_<window>_<interval>.csv. Files are parsed once per key and the
// decoded bars are cached for the life of the source.
type CSV struct {
	dir string

	mu    sync.Mutex
	cache map[key][]market.Candle
}

func NewCSV(dir string) *CSV {
	return &CSV{dir: dir, cache: make(map[key][]market.Candle)}
}

func (s *CSV) Candle(ctx context.Context, symbol string, interval market.Interval, index int) (market.Candle, error) {
	bars, err := s.load(symbol, interval)
	if err != nil {
		return market.Candle{}, err
	}
	if index < 0 || index >= len(bars) {
		return market.Candle{}, fmt.Errorf("%s %s index %d of %d: %w", symbol, interval, index, len(bars), ErrOutOfRange)
	}
	return bars[index], nil
}

func (s *CSV) Count(ctx context.Context, symbol string, interval market.Interval) (int, error) {
	bars, err := s.load(symbol, interval)
	if err != nil {
		return 0, err
	}
	return len(bars), nil
}

func (s *CSV) load(symbol string, interval market.Interval) ([]market.Candle, error) {
	k := key{symbol, interval}

	s.mu.Lock()
	defer s.mu.Unlock()

	if bars, ok := s.cache[k]; ok {
		return bars, nil
	}

	path := ""
	for _, window := range dataWindows {
		p := filepath.Join(s.dir, fmt.Sprintf("%s_%s_%s.csv", symbol, window, interval))
		if _, err := os.Stat(p); err == nil {
			path = p
			break
		}
	}
	if path == "" {
		return nil, fmt.Errorf("%s %s in %s: %w", symbol, interval, s.dir, ErrUnknownKey)
	}

	bars, err := ReadCandleCSV(path, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s: empty file %s: %w", symbol, interval, path, ErrUnknownKey)
	}

	s.cache[k] = bars
	return bars, nil
}

// ReadCandleCSV parses one kline CSV file. The header names the columns; only
// time, open, high, low, close, volume and close_time are consumed, extra
// columns (quote volume, trade counts) are ignored. Timestamps are unix
// milliseconds. Empty and short rows are skipped.
func ReadCandleCSV(path string, symbol string, interval market.Interval) ([]market.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q in %s", required, path)
		}
	}

	var bars []market.Candle
	for {
		row, err := r.Read()
		if err == io.EOF {
			return bars, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) < len(header) {
			continue
		}

		c := market.Candle{Symbol: symbol, Interval: interval}

		openMs, err := strconv.ParseInt(strings.TrimSpace(row[col["time"]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad time %q: %w", row[col["time"]], err)
		}
		c.OpenTime = time.UnixMilli(openMs).UTC()

		if idx, ok := col["close_time"]; ok {
			if closeMs, err := strconv.ParseInt(strings.TrimSpace(row[idx]), 10, 64); err == nil {
				c.CloseTime = time.UnixMilli(closeMs).UTC()
			}
		}

		if c.Open, err = parsePrice(row, col, "open"); err != nil {
			return nil, err
		}
		if c.High, err = parsePrice(row, col, "high"); err != nil {
			return nil, err
		}
		if c.Low, err = parsePrice(row, col, "low"); err != nil {
			return nil, err
		}
		if c.Close, err = parsePrice(row, col, "close"); err != nil {
			return nil, err
		}
		if idx, ok := col["volume"]; ok {
			if c.Volume, err = strconv.ParseFloat(strings.TrimSpace(row[idx]), 64); err != nil {
				return nil, fmt.Errorf("bad volume %q: %w", row[idx], err)
			}
		}

		bars = append(bars, c)
	}
}

func parsePrice(row []string, col map[string]int, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(row[col[name]]), 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", name, row[col[name]], err)
	}
	return v, nil
}
