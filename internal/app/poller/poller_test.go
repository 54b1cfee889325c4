package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ght123247/UIproj/internal/adapters/observability"
	"github.com/ght123247/UIproj/internal/clock"
	"github.com/ght123247/UIproj/internal/domain"
	"github.com/ght123247/UIproj/internal/ports"
)

const interval = 100 * time.Millisecond

func TestOverlappingPollsApplyNewest(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	src := newScriptedSource(true)
	obs := newMockObs()
	states := make(chan State, 16)
	p := New("motor-status", src, WithClock(fc), WithObservability(obs), WithRequired(RequireMotor),
		WithListener(func(s State) { states <- s }))
	if err := p.Start(interval); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()

	callA := src.next(t)
	fc.Advance(interval)
	callB := src.next(t)

	if callA.ctx.Err() == nil {
		t.Fatalf("expected request A to be cancelled before B was issued")
	}

	callB.reply <- reply{snap: motorSnap(2000)}
	st := waitState(t, states)
	if st.Sample == nil || st.Sample.RPM != 2000 {
		t.Fatalf("expected B's sample, got %+v", st.Sample)
	}

	callA.reply <- reply{snap: motorSnap(1000)}
	obs.waitCounter(t, observability.PollsSupersededTotal)

	final := p.State()
	if final.Sample == nil || final.Sample.RPM != 2000 {
		t.Fatalf("stale response overwrote newer sample: %+v", final.Sample)
	}
	if final.Seq != 1 {
		t.Fatalf("expected exactly one applied sample, got %d", final.Seq)
	}
	select {
	case s := <-states:
		t.Fatalf("unexpected state change from stale response: %+v", s)
	default:
	}
}

func TestCancellationIsNotAFailure(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	src := newScriptedSource(false)
	obs := newMockObs()
	p := New("vibration", src, WithClock(fc), WithObservability(obs))
	if err := p.Start(interval); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()

	src.next(t)
	fc.Advance(interval)
	src.next(t)
	obs.waitCounter(t, observability.PollsSupersededTotal)

	if errs := obs.errorCount(); errs != 0 {
		t.Fatalf("cancellation logged as error %d times", errs)
	}
	if got := obs.count(observability.PollFailuresTotal); got != 0 {
		t.Fatalf("cancellation counted as failure: %f", got)
	}
	st := p.State()
	if st.LastError != nil || st.Connectivity != domain.Disconnected || st.Sample != nil {
		t.Fatalf("cancellation changed state: %+v", st)
	}
}

func TestFailureThenRecoveryWithinOneInterval(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	src := newScriptedSource(false)
	obs := newMockObs()
	states := make(chan State, 16)
	p := New("motor-status", src, WithClock(fc), WithObservability(obs),
		WithListener(func(s State) { states <- s }))
	if err := p.Start(interval); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()

	src.next(t).reply <- reply{snap: motorSnap(1500)}
	if st := waitState(t, states); st.Connectivity != domain.Connected {
		t.Fatalf("expected connected after success, got %s", st.Connectivity)
	}

	fc.Advance(interval)
	src.next(t).reply <- reply{err: errors.New("fetch latest: unexpected status 500")}
	st := waitState(t, states)
	if st.Connectivity != domain.Disconnected {
		t.Fatalf("expected disconnected after failure, got %s", st.Connectivity)
	}
	if st.Sample == nil || st.Sample.RPM != 1500 {
		t.Fatalf("expected last sample to be retained, got %+v", st.Sample)
	}
	if st.LastError == nil {
		t.Fatalf("expected failure to be recorded")
	}
	if obs.errorCount() != 1 {
		t.Fatalf("expected failure to be logged once, got %d", obs.errorCount())
	}

	fc.Advance(interval)
	src.next(t).reply <- reply{snap: motorSnap(1600)}
	st = waitState(t, states)
	if st.Connectivity != domain.Connected || st.LastError != nil {
		t.Fatalf("expected recovery on next poll, got %+v", st)
	}
	if st.Sample.RPM != 1600 {
		t.Fatalf("expected fresh sample, got %f", st.Sample.RPM)
	}
}

func TestMissingSectionIsNoData(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	src := newScriptedSource(false)
	obs := newMockObs()
	p := New("motor-status", src, WithClock(fc), WithObservability(obs), WithRequired(RequireMotor))
	if err := p.Start(interval); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()

	src.next(t).reply <- reply{snap: &domain.LatestSnapshot{
		VibrationMetrics: &domain.VibrationMetrics{MainFreq: 50},
	}}
	obs.waitCounter(t, observability.PollsNoDataTotal)

	st := p.State()
	if st.HasSample() {
		t.Fatalf("expected no sample, got %+v", st.Sample)
	}
	if st.Connectivity != domain.Disconnected || st.LastError != nil {
		t.Fatalf("no-data response changed connectivity: %+v", st)
	}
}

func TestStopCancelsInFlightAndIsIdempotent(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	src := newScriptedSource(false)
	p := New("activity-overview", src, WithClock(fc))
	if err := p.Start(interval); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Start(interval); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	call := src.next(t)
	p.Stop()
	if call.ctx.Err() == nil {
		t.Fatalf("expected in-flight request to be cancelled")
	}
	if n := fc.Tickers(); n != 0 {
		t.Fatalf("expected ticker to be stopped, %d still running", n)
	}
	p.Stop()
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Start(interval); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after stop, got %v", err)
	}
}

func TestStartRejectsNonPositiveInterval(t *testing.T) {
	p := New("x", newScriptedSource(false))
	if err := p.Start(0); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	p.Stop()
}

func motorSnap(rpm float64) *domain.LatestSnapshot {
	return &domain.LatestSnapshot{MotorStatus: &domain.MotorStatus{RPM: rpm, Torque: 2.5, Load: 40}}
}

type reply struct {
	snap *domain.LatestSnapshot
	err  error
}

type call struct {
	ctx   context.Context
	reply chan reply
}

// scriptedSource hands every Fetch to the test. With ignoreCancel set the
// fetch keeps waiting for its reply after its context ends, like a server
// that answers a request the client already gave up on.
type scriptedSource struct {
	calls        chan *call
	ignoreCancel bool
}

func newScriptedSource(ignoreCancel bool) *scriptedSource {
	return &scriptedSource{calls: make(chan *call, 16), ignoreCancel: ignoreCancel}
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Fetch(ctx context.Context) (*domain.LatestSnapshot, error) {
	c := &call{ctx: ctx, reply: make(chan reply, 1)}
	s.calls <- c
	if s.ignoreCancel {
		r := <-c.reply
		return r.snap, r.err
	}
	select {
	case r := <-c.reply:
		return r.snap, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *scriptedSource) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-s.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fetch")
		return nil
	}
}

func waitState(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for state change")
		return State{}
	}
}

type mockObs struct {
	mu     sync.Mutex
	counts map[string]float64
	errors []string
	events chan string
}

func newMockObs() *mockObs {
	return &mockObs{counts: map[string]float64{}, events: make(chan string, 256)}
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}

func (m *mockObs) LogError(msg string, _ error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockObs) IncCounter(name, _ string, v float64) {
	m.mu.Lock()
	m.counts[name] += v
	m.mu.Unlock()
	m.events <- name
}

func (m *mockObs) ObserveLatency(string, string, float64) {}
func (m *mockObs) SetGauge(string, string, float64)       {}

func (m *mockObs) count(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

func (m *mockObs) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func (m *mockObs) waitCounter(t *testing.T, name string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-m.events:
			if got == name {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for counter %s", name)
		}
	}
}
