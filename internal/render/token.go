package render

import "go.uber.org/atomic"

// Token identifies one navigation attempt. Tokens are strictly increasing and
// never reused; only the latest one may commit.
type Token int64

// TokenClock mints render tokens.
//
// Thread-safety: TokenClock is safe for concurrent use. The orchestrator
// mints under its commit lock so that minting order and placeholder paint
// order agree.
type TokenClock struct {
	seq *atomic.Int64
}

// NewTokenClock creates a clock whose first token is 1.
func NewTokenClock() *TokenClock {
	return &TokenClock{seq: atomic.NewInt64(0)}
}

// NewTokenClockAt creates a clock that resumes after start.
func NewTokenClockAt(start int64) *TokenClock {
	return &TokenClock{seq: atomic.NewInt64(start)}
}

// Next mints the next token.
func (c *TokenClock) Next() Token {
	return Token(c.seq.Inc())
}

// Current returns the most recently minted token, or 0 before the first.
func (c *TokenClock) Current() Token {
	return Token(c.seq.Load())
}

// IsCurrent reports whether t is still the latest minted token.
func (c *TokenClock) IsCurrent(t Token) bool {
	return c.Current() == t
}
