package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/archelon/pricesim/market"
	"github.com/archelon/pricesim/sim"
	"github.com/archelon/pricesim/source"
)

const (
	defaultSymbol   = "AVAXUSDT"
	defaultInterval = market.H1
	defaultLimit    = 100
	maxLimit        = 1000
)

type candleJSON struct {
	Time      int64   `json:"time"`
	Datetime  string  `json:"datetime"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"close_time"`
}

type progressJSON struct {
	CandleIndex  int    `json:"candle_index"`
	PointIndex   int    `json:"point_index"`
	TotalCandles int    `json:"total_candles"`
	TotalPoints  int    `json:"total_points"`
	HighTouched  bool   `json:"high_touched"`
	LowTouched   bool   `json:"low_touched"`
	RunID        string `json:"run_id,omitempty"`
}

func (s *Server) keyParams(c *gin.Context) (string, market.Interval, bool) {
	symbol := c.DefaultQuery("symbol", defaultSymbol)
	interval := market.Interval(c.DefaultQuery("interval", string(defaultInterval)))
	if !interval.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unknown interval %q", interval),
		})
		return "", "", false
	}
	return symbol, interval, true
}

func (s *Server) getCandles(c *gin.Context) {
	symbol, interval, ok := s.keyParams(c)
	if !ok {
		return
	}

	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("limit must be an integer in [1, %d]", maxLimit),
			})
			return
		}
		limit = n
	}

	candles, err := source.Tail(c.Request.Context(), s.src, symbol, interval, limit)
	if err != nil {
		s.renderError(c, symbol, interval, err)
		return
	}

	out := make([]candleJSON, len(candles))
	for i, cd := range candles {
		out[i] = candleJSON{
			Time:      cd.OpenTime.UnixMilli(),
			Datetime:  cd.OpenTime.UTC().Format(time.RFC3339),
			Open:      cd.Open,
			High:      cd.High,
			Low:       cd.Low,
			Close:     cd.Close,
			Volume:    cd.Volume,
			CloseTime: cd.End().UnixMilli(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"interval": interval,
		"candles":  out,
	})
}

func (s *Server) getPrice(c *gin.Context) {
	symbol, interval, ok := s.keyParams(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	tick, err := s.registry.Advance(ctx, symbol, interval)
	if errors.Is(err, sim.ErrNotInitialized) {
		// First request for this key starts the simulation implicitly.
		if _, err = s.registry.Reset(ctx, symbol, interval); err == nil {
			tick, err = s.registry.Advance(ctx, symbol, interval)
		}
	}
	if err != nil {
		s.renderError(c, symbol, interval, err)
		return
	}

	totalCandles, err := s.registry.CandleCount(ctx, symbol, interval)
	if err != nil {
		s.renderError(c, symbol, interval, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":                 symbol,
		"interval":               interval,
		"price":                  tick.Price,
		"timestamp":              tick.Time.UTC().Format(time.RFC3339),
		"candle_timestamp":       tick.CandleOpenTime.UTC().Format(time.RFC3339),
		"candle_close_timestamp": tick.CandleCloseTime.UTC().Format(time.RFC3339),
		"is_open":                tick.Cursor == 0,
		"is_close":               tick.Cursor == tick.PathLen-1,
		"is_high":                tick.IsHigh,
		"is_low":                 tick.IsLow,
		"simulation_progress": progressJSON{
			CandleIndex:  tick.CandleIndex,
			PointIndex:   tick.Cursor,
			TotalCandles: totalCandles,
			TotalPoints:  tick.PathLen,
			HighTouched:  tick.HighTouched,
			LowTouched:   tick.LowTouched,
			RunID:        tick.RunID,
		},
	})
}

func (s *Server) resetSimulation(c *gin.Context) {
	symbol, interval, ok := s.keyParams(c)
	if !ok {
		return
	}

	res, err := s.registry.Reset(c.Request.Context(), symbol, interval)
	if err != nil {
		s.renderError(c, symbol, interval, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"message":      fmt.Sprintf("Simulation reset for %s at %s interval", symbol, interval),
		"run_id":       res.RunID,
		"candle_index": res.CandleIndex,
		"cursor":       res.Cursor,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// renderError maps the simulation error taxonomy onto HTTP statuses. All of
// these are caller-recoverable; none take the process down.
func (s *Server) renderError(c *gin.Context, symbol string, interval market.Interval, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, source.ErrUnknownKey):
		status = http.StatusNotFound
	case errors.Is(err, sim.ErrExhausted):
		status = http.StatusConflict
	case errors.Is(err, sim.ErrDataIntegrity):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, sim.ErrNotInitialized):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithFields(logrus.Fields{
			"symbol":   symbol,
			"interval": interval,
		}).Error("request failed")
	}

	c.JSON(status, gin.H{
		"error":    err.Error(),
		"symbol":   symbol,
		"interval": interval,
	})
}
