package sim

import "errors"

var (
	// ErrDataIntegrity means a candle violates low <= {open, close} <= high.
	// The offending candle never yields a path; the request fails instead.
	ErrDataIntegrity = errors.New("candle violates OHLC envelope")

	// ErrNotInitialized means Advance or Peek was called before the first
	// Reset. The caller resets and retries.
	ErrNotInitialized = errors.New("session not initialized")

	// ErrExhausted means the session ran off the end of history under the
	// strict exhaust policy. Reset re-arms the session.
	ErrExhausted = errors.New("simulation exhausted")
)
