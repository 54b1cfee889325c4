// Package clock abstracts the time operations used by pollers and cards so
// tests can drive ticks deterministically.
package clock

import "time"

// Clock is implemented by Real and *FakeClock.
type Clock interface {
	Now() time.Time

	// NewTicker panics if d <= 0, matching time.NewTicker. Ticks are
	// dropped, not queued, when the consumer falls behind.
	NewTicker(d time.Duration) *Ticker
}

// Ticker wraps a periodic timer. Read ticks from C; Stop releases it.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. It does not close C.
func (t *Ticker) Stop() { t.stopFunc() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stopFunc: ticker.Stop}
}
