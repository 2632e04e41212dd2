package sim

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/archelon/pricesim/market"
	"github.com/archelon/pricesim/source"
)

type sessionKey struct {
	symbol   string
	interval market.Interval
}

// Registry owns the sessions, exactly one per (symbol, interval) key for its
// lifetime. Each session serializes its own mutations, so advances on
// different keys never block each other; the registry lock only guards the
// map itself.
type Registry struct {
	src     source.CandleSource
	density int
	policy  ExhaustPolicy
	seed    func() int64
	log     *logrus.Entry

	mu       sync.RWMutex
	sessions map[sessionKey]*Session
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithDensity sets the number of points generated per candle.
func WithDensity(n int) Option {
	return func(r *Registry) { r.density = n }
}

// WithExhaustPolicy sets what sessions do at the end of history.
func WithExhaustPolicy(p ExhaustPolicy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithSeed makes every session use the same fixed RNG seed, giving
// byte-identical paths across resets. Tests only.
func WithSeed(seed int64) Option {
	return func(r *Registry) { r.seed = func() int64 { return seed } }
}

// WithLogger attaches a structured logger for reset events.
func WithLogger(log *logrus.Logger) Option {
	return func(r *Registry) { r.log = log.WithField("component", "sim") }
}

var seedCounter atomic.Int64

func defaultSeed() int64 {
	return time.Now().UnixNano() + seedCounter.Add(1)
}

func NewRegistry(src source.CandleSource, opts ...Option) *Registry {
	r := &Registry{
		src:      src,
		density:  DefaultDensity,
		policy:   ExhaustWrap,
		seed:     defaultSeed,
		sessions: make(map[sessionKey]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the session for the key, allocating an UNINITIALIZED
// one on first access. It never implicitly resets.
func (r *Registry) GetOrCreate(symbol string, interval market.Interval) *Session {
	k := sessionKey{symbol, interval}

	r.mu.RLock()
	s, ok := r.sessions[k]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[k]; ok {
		return s
	}
	s = NewSession(r.src, symbol, interval, r.density, r.policy, rand.New(rand.NewSource(r.seed())))
	r.sessions[k] = s
	return s
}

// Advance returns the next simulated price for the key.
func (r *Registry) Advance(ctx context.Context, symbol string, interval market.Interval) (Tick, error) {
	return r.GetOrCreate(symbol, interval).Advance(ctx)
}

// Peek returns the point the next Advance would serve, without consuming it.
func (r *Registry) Peek(ctx context.Context, symbol string, interval market.Interval) (Tick, error) {
	return r.GetOrCreate(symbol, interval).Peek(ctx)
}

// Reset rewinds the key to candle 0 with a fresh path and run id.
func (r *Registry) Reset(ctx context.Context, symbol string, interval market.Interval) (ResetResult, error) {
	res, err := r.GetOrCreate(symbol, interval).Reset(ctx)
	if err != nil {
		return ResetResult{}, err
	}
	if r.log != nil {
		r.log.WithFields(logrus.Fields{
			"symbol":   symbol,
			"interval": interval,
			"run_id":   res.RunID,
		}).Info("simulation reset")
	}
	return res, nil
}

// Candles is a read-only pass-through to the candle source, returning up to
// limit of the most recent bars, oldest first.
func (r *Registry) Candles(ctx context.Context, symbol string, interval market.Interval, limit int) ([]market.Candle, error) {
	return source.Tail(ctx, r.src, symbol, interval, limit)
}

// CandleCount reports how many bars the source holds for the key.
func (r *Registry) CandleCount(ctx context.Context, symbol string, interval market.Interval) (int, error) {
	return r.src.Count(ctx, symbol, interval)
}
