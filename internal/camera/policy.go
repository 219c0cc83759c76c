package camera

import "time"

// Policy holds the reconnect and liveness thresholds of a worker.
type Policy struct {
	// MaxRetries is the number of failed connect attempts in one
	// (re)connect cycle after which the worker gives up.
	MaxRetries int
	// RetryDelay is the wait after the first failed attempt; it doubles
	// after each further failure up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// ReadFailureLimit is the number of consecutive failed reads that
	// forces a reconnect; the worker tolerates ReadFailureLimit-1 in a row.
	ReadFailureLimit int
	// StaleAfter is how long a streaming camera may go without publishing
	// a frame before the connection is considered dead.
	StaleAfter time.Duration
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:       5,
		RetryDelay:       time.Second,
		MaxRetryDelay:    30 * time.Second,
		ReadFailureLimit: 3,
		StaleAfter:       5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = d.MaxRetries
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = d.RetryDelay
	}
	if p.MaxRetryDelay <= 0 {
		p.MaxRetryDelay = d.MaxRetryDelay
	}
	if p.MaxRetryDelay < p.RetryDelay {
		p.MaxRetryDelay = p.RetryDelay
	}
	if p.ReadFailureLimit <= 0 {
		p.ReadFailureLimit = d.ReadFailureLimit
	}
	if p.StaleAfter <= 0 {
		p.StaleAfter = d.StaleAfter
	}
	return p
}

// Backoff returns the delay after the given failed attempt (1-based):
// RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxRetryDelay || delay <= 0 {
			return p.MaxRetryDelay
		}
	}
	return min(delay, p.MaxRetryDelay)
}
