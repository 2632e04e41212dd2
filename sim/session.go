package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/archelon/pricesim/internal/id"
	"github.com/archelon/pricesim/market"
	"github.com/archelon/pricesim/source"
)

// ExhaustPolicy names what a session does when it runs off the end of
// history: wrap back to candle 0 (simulated time is unbounded) or stop and
// reject further advances until a reset.
type ExhaustPolicy string

const (
	ExhaustWrap   ExhaustPolicy = "wrap"
	ExhaustStrict ExhaustPolicy = "strict"
)

// ParseExhaustPolicy converts a config string into a policy.
func ParseExhaustPolicy(s string) (ExhaustPolicy, error) {
	switch ExhaustPolicy(s) {
	case ExhaustWrap, "":
		return ExhaustWrap, nil
	case ExhaustStrict:
		return ExhaustStrict, nil
	}
	return "", fmt.Errorf("unknown exhaust policy %q (want wrap or strict)", s)
}

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Tick is one simulated price sample returned by Advance or Peek.
type Tick struct {
	Symbol   string
	Interval market.Interval

	Price float64
	Time  time.Time // interpolated position within the candle's span

	CandleIndex     int
	Cursor          int // offset of this point within the path
	PathLen         int
	CandleOpenTime  time.Time
	CandleCloseTime time.Time

	IsHigh bool
	IsLow  bool

	// HighTouched/LowTouched report whether the extremes have been served
	// at least once since the last reset.
	HighTouched bool
	LowTouched  bool

	RunID string
}

// ResetResult reports the state a session was reset into.
type ResetResult struct {
	RunID       string
	CandleIndex int
	Cursor      int
}

// Session tracks simulation progress for one (symbol, interval) key: the
// current candle index, the materialized path for that candle, and a cursor
// into it. All methods serialize on the session's own mutex, so sessions for
// different keys never contend.
type Session struct {
	symbol   string
	interval market.Interval
	src      source.CandleSource
	density  int
	policy   ExhaustPolicy

	mu          sync.Mutex
	rng         *rand.Rand
	state       State
	candle      market.Candle
	candleIndex int
	path        market.Path
	cursor      int
	highTouched bool
	lowTouched  bool
	runID       string
}

// NewSession allocates an UNINITIALIZED session. No candle is loaded until
// the first Reset.
func NewSession(src source.CandleSource, symbol string, interval market.Interval, density int, policy ExhaustPolicy, rng *rand.Rand) *Session {
	if density <= 0 {
		density = DefaultDensity
	}
	if policy == "" {
		policy = ExhaustWrap
	}
	return &Session{
		symbol:   symbol,
		interval: interval,
		src:      src,
		density:  density,
		policy:   policy,
		rng:      rng,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset moves the session to candle 0 with a freshly generated path and a new
// run id, from any prior state. Source errors (including an unknown key)
// leave the session untouched.
func (s *Session) Reset(ctx context.Context) (ResetResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.src.Candle(ctx, s.symbol, s.interval, 0)
	if err != nil {
		return ResetResult{}, err
	}
	path, err := Generate(c, s.density, s.rng)
	if err != nil {
		return ResetResult{}, err
	}

	s.state = StateActive
	s.candle = c
	s.candleIndex = 0
	s.path = path
	s.cursor = 0
	s.highTouched = false
	s.lowTouched = false
	s.runID = id.New()

	return ResetResult{RunID: s.runID, CandleIndex: 0, Cursor: 0}, nil
}

// Advance returns the point at the cursor and moves the cursor forward,
// rolling to the next candle when the current path is exhausted. Rollover
// happens lazily at the start of the advance that needs it, so a failed
// candle fetch mutates nothing and the call is safe to retry.
func (s *Session) Advance(ctx context.Context) (Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(ctx); err != nil {
		return Tick{}, err
	}

	tick := s.tickLocked()
	if tick.IsHigh {
		s.highTouched = true
		tick.HighTouched = true
	}
	if tick.IsLow {
		s.lowTouched = true
		tick.LowTouched = true
	}
	s.cursor++
	return tick, nil
}

// Peek returns the point the next Advance would serve without consuming it.
func (s *Session) Peek(ctx context.Context) (Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(ctx); err != nil {
		return Tick{}, err
	}
	return s.tickLocked(), nil
}

// readyLocked verifies the session can serve a point, performing candle
// rollover when the cursor sits at the end of the current path.
func (s *Session) readyLocked(ctx context.Context) error {
	switch s.state {
	case StateUninitialized:
		return fmt.Errorf("%s %s: %w", s.symbol, s.interval, ErrNotInitialized)
	case StateExhausted:
		return fmt.Errorf("%s %s after candle %d: %w", s.symbol, s.interval, s.candleIndex, ErrExhausted)
	}
	if s.cursor < len(s.path) {
		return nil
	}
	return s.rollLocked(ctx)
}

func (s *Session) rollLocked(ctx context.Context) error {
	next := s.candleIndex + 1
	c, err := s.src.Candle(ctx, s.symbol, s.interval, next)
	if errors.Is(err, source.ErrOutOfRange) {
		if s.policy == ExhaustStrict {
			s.state = StateExhausted
			return fmt.Errorf("%s %s after candle %d: %w", s.symbol, s.interval, s.candleIndex, ErrExhausted)
		}
		next = 0
		c, err = s.src.Candle(ctx, s.symbol, s.interval, 0)
	}
	if err != nil {
		return fmt.Errorf("fetch candle %d for %s %s: %w", next, s.symbol, s.interval, err)
	}

	path, err := Generate(c, s.density, s.rng)
	if err != nil {
		return err
	}

	s.candle = c
	s.candleIndex = next
	s.path = path
	s.cursor = 0
	return nil
}

func (s *Session) tickLocked() Tick {
	pt := s.path[s.cursor]

	start, end := s.candle.OpenTime, s.candle.End()
	ts := start
	if n := len(s.path); n > 1 {
		frac := float64(pt.Offset) / float64(n-1)
		ts = start.Add(time.Duration(frac * float64(end.Sub(start))))
	}

	return Tick{
		Symbol:          s.symbol,
		Interval:        s.interval,
		Price:           pt.Price,
		Time:            ts,
		CandleIndex:     s.candleIndex,
		Cursor:          pt.Offset,
		PathLen:         len(s.path),
		CandleOpenTime:  s.candle.OpenTime,
		CandleCloseTime: s.candle.End(),
		IsHigh:          pt.Price == s.candle.High,
		IsLow:           pt.Price == s.candle.Low,
		HighTouched:     s.highTouched,
		LowTouched:      s.lowTouched,
		RunID:           s.runID,
	}
}
