// Package poller keeps the latest known telemetry sample of one card fresh by
// polling a TelemetrySource on a fixed cadence.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ght123247/UIproj/internal/adapters/observability"
	"github.com/ght123247/UIproj/internal/clock"
	"github.com/ght123247/UIproj/internal/domain"
	"github.com/ght123247/UIproj/internal/ports"
)

var (
	ErrClosed          = errors.New("poller: closed")
	ErrAlreadyStarted  = errors.New("poller: already started")
	ErrInvalidInterval = errors.New("poller: interval must be positive")
)

// Section names the snapshot section a poller needs before it considers a
// response to carry data.
type Section int

const (
	RequireAny Section = iota
	RequireMotor
	RequireVibration
)

func (s Section) satisfiedBy(snap *domain.LatestSnapshot) bool {
	if snap == nil {
		return false
	}
	switch s {
	case RequireMotor:
		return snap.MotorStatus != nil
	case RequireVibration:
		return snap.VibrationMetrics != nil
	default:
		return snap.MotorStatus != nil || snap.VibrationMetrics != nil
	}
}

// State is a copy of the poller's view. Sample is nil until the first
// response that carried the required section.
type State struct {
	Sample       *domain.TelemetrySample
	Connectivity domain.Connectivity
	Seq          uint64 // bumped on every applied sample
	LastError    error
	UpdatedAt    time.Time
}

func (s State) HasSample() bool { return s.Sample != nil }

type Option func(*Poller)

func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

func WithObservability(obs ports.Observability) Option {
	return func(p *Poller) {
		if obs != nil {
			p.obs = obs
		}
	}
}

func WithRequired(s Section) Option {
	return func(p *Poller) { p.required = s }
}

// WithListener registers fn to be called from the poll loop after every
// state change. fn must not block for long; it delays the next tick.
func WithListener(fn func(State)) Option {
	return func(p *Poller) { p.listener = fn }
}

// Poller runs one timer and at most one live request. Results are applied
// only by the loop goroutine, and only when they belong to the newest
// request, so a slow response can never overwrite a faster later one.
type Poller struct {
	name     string
	source   ports.TelemetrySource
	clock    clock.Clock
	obs      ports.Observability
	required Section
	listener func(State)

	mu    sync.RWMutex
	state State

	lifeMu  sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type result struct {
	gen       uint64
	snap      *domain.LatestSnapshot
	err       error
	cancelled bool
	latency   time.Duration
}

// New builds a stopped poller. name labels logs and metrics, usually the
// owning card ID.
func New(name string, source ports.TelemetrySource, opts ...Option) *Poller {
	p := &Poller{
		name:   name,
		source: source,
		clock:  clock.Real(),
		obs:    observability.Discard{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Poller) Name() string { return p.name }

// Start issues the first request immediately and then one per interval.
func (p *Poller) Start(interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	ticker := p.clock.NewTicker(interval)

	p.wg.Add(1)
	go p.loop(ctx, ticker)

	p.obs.LogInfo("poller_started",
		ports.Field{Key: "component", Value: p.name},
		ports.Field{Key: "source", Value: p.source.Name()},
		ports.Field{Key: "interval", Value: interval.String()},
	)
	return nil
}

// Stop cancels the in-flight request, stops the timer and waits for every
// goroutine the poller started. It is safe to call more than once and
// before Start.
func (p *Poller) Stop() {
	p.lifeMu.Lock()
	if p.closed {
		p.lifeMu.Unlock()
		return
	}
	p.closed = true
	cancel := p.cancel
	p.lifeMu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *Poller) Close() error {
	p.Stop()
	return nil
}

// State returns a copy of the current state.
func (p *Poller) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := p.state
	if st.Sample != nil {
		sample := *st.Sample
		st.Sample = &sample
	}
	return st
}

func (p *Poller) loop(ctx context.Context, ticker *clock.Ticker) {
	defer p.wg.Done()
	defer ticker.Stop()

	results := make(chan result)
	var gen uint64
	cancelFetch := context.CancelFunc(func() {})

	issue := func() {
		cancelFetch()
		gen++
		fctx, cancel := context.WithCancel(ctx)
		cancelFetch = cancel
		p.obs.IncCounter(observability.PollsTotal, p.name, 1)

		p.wg.Add(1)
		go p.fetch(ctx, fctx, gen, results)
	}

	issue()
	for {
		select {
		case <-ctx.Done():
			cancelFetch()
			return
		case <-ticker.C:
			issue()
		case r := <-results:
			if r.gen != gen || r.cancelled {
				p.obs.IncCounter(observability.PollsSupersededTotal, p.name, 1)
				continue
			}
			p.apply(r)
		}
	}
}

func (p *Poller) fetch(loopCtx, ctx context.Context, gen uint64, out chan<- result) {
	defer p.wg.Done()

	start := p.clock.Now()
	snap, err := p.source.Fetch(ctx)
	r := result{
		gen:     gen,
		snap:    snap,
		err:     err,
		latency: p.clock.Now().Sub(start),
		// A request is self-cancelled when its own context ended, whatever
		// error the source produced while unwinding.
		cancelled: ctx.Err() != nil,
	}

	select {
	case out <- r:
	case <-loopCtx.Done():
	}
}

func (p *Poller) apply(r result) {
	now := p.clock.Now()

	if r.err != nil {
		p.mu.Lock()
		p.state.Connectivity = domain.Disconnected
		p.state.LastError = r.err
		p.state.UpdatedAt = now
		p.mu.Unlock()

		p.obs.IncCounter(observability.PollFailuresTotal, p.name, 1)
		p.obs.SetGauge(observability.Connected, p.name, 0)
		p.obs.LogError("poll_failed", r.err,
			ports.Field{Key: "component", Value: p.name},
			ports.Field{Key: "source", Value: p.source.Name()},
		)
		p.notify()
		return
	}

	if !p.required.satisfiedBy(r.snap) {
		p.obs.IncCounter(observability.PollsNoDataTotal, p.name, 1)
		return
	}

	sample := domain.NewSample(r.snap, now)
	p.mu.Lock()
	p.state.Sample = &sample
	p.state.Connectivity = domain.Connected
	p.state.LastError = nil
	p.state.Seq++
	p.state.UpdatedAt = now
	p.mu.Unlock()

	p.obs.ObserveLatency(observability.PollLatencySeconds, p.name, r.latency.Seconds())
	p.obs.SetGauge(observability.Connected, p.name, 1)
	p.notify()
}

func (p *Poller) notify() {
	if p.listener != nil {
		p.listener(p.State())
	}
}
