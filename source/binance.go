package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/archelon/pricesim/market"
)

// DefaultBinanceURL is the public spot API endpoint.
const DefaultBinanceURL = "https://api.binance.com"

// maxKlinesPerRequest is the exchange-imposed page size for /api/v3/klines.
const maxKlinesPerRequest = 1000

// Binance fetches historical klines over the public REST API. It is a data
// acquisition client used by the recorder, not a CandleSource: index-based
// random access over REST would hammer the exchange, so fetched candles are
// persisted into a store first.
type Binance struct {
	baseURL    string
	httpClient *http.Client
}

func NewBinance(baseURL string) *Binance {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	return &Binance{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Klines returns up to limit of the most recent candles for the key,
// oldest first.
func (b *Binance) Klines(ctx context.Context, symbol string, interval market.Interval, limit int) ([]market.Candle, error) {
	return b.klines(ctx, symbol, interval, limit, time.Time{}, time.Time{})
}

// KlinesRange returns candles with open times in [start, end), paging through
// the exchange limit as needed.
func (b *Binance) KlinesRange(ctx context.Context, symbol string, interval market.Interval, start, end time.Time) ([]market.Candle, error) {
	var all []market.Candle
	cursor := start
	for cursor.Before(end) {
		page, err := b.klines(ctx, symbol, interval, maxKlinesPerRequest, cursor, end)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		next := page[len(page)-1].OpenTime.Add(interval.Duration())
		if !next.After(cursor) {
			break
		}
		cursor = next
	}
	return all, nil
}

func (b *Binance) klines(ctx context.Context, symbol string, interval market.Interval, limit int, start, end time.Time) ([]market.Candle, error) {
	if limit <= 0 || limit > maxKlinesPerRequest {
		limit = maxKlinesPerRequest
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", string(interval))
	q.Set("limit", strconv.Itoa(limit))
	if !start.IsZero() {
		q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		q.Set("endTime", strconv.FormatInt(end.UnixMilli()-1, 10))
	}

	endpoint := b.baseURL + "/api/v3/klines?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, interval, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read klines response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("klines %s %s: status %d: %s", symbol, interval, resp.StatusCode, truncate(body, 200))
	}

	// Each kline is a heterogeneous array:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines %s %s: %w", symbol, interval, err)
	}

	candles := make([]market.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 7 {
			return nil, fmt.Errorf("kline row too short: %d fields", len(k))
		}
		c := market.Candle{Symbol: symbol, Interval: interval}

		var openMs, closeMs int64
		if err := json.Unmarshal(k[0], &openMs); err != nil {
			return nil, fmt.Errorf("bad kline open time: %w", err)
		}
		if err := json.Unmarshal(k[6], &closeMs); err != nil {
			return nil, fmt.Errorf("bad kline close time: %w", err)
		}
		c.OpenTime = time.UnixMilli(openMs).UTC()
		c.CloseTime = time.UnixMilli(closeMs).UTC()

		fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for i, dst := range fields {
			var s string
			if err := json.Unmarshal(k[i+1], &s); err != nil {
				return nil, fmt.Errorf("bad kline field %d: %w", i+1, err)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("bad kline price %q: %w", s, err)
			}
			*dst = v
		}

		candles = append(candles, c)
	}
	return candles, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
