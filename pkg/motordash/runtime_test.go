package motordash

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewRuntimeWithCustomAdapters(t *testing.T) {
	cfg := DefaultConfig()
	src := &stubSource{}
	sender := &stubSender{}
	sampler := &stubSampler{}
	extra := &stubCard{id: "spindle"}

	rt, err := NewRuntime(cfg,
		WithTelemetrySource(src),
		WithCommandSender(sender),
		WithHostSampler(sampler),
		WithObservability(&stubObservability{}),
		WithCard(extra),
	)
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}

	if rt.source != src {
		t.Fatalf("expected custom source to be used")
	}
	if _, ok := rt.obs.(*stubObservability); !ok {
		t.Fatalf("expected custom observability to be used")
	}
	if rt.tap != nil {
		t.Fatalf("expected no subscriber poller without sinks")
	}
	want := []string{"motor-status", "vibration", "activity-overview", "system-health", "spindle"}
	if got := rt.deck.IDs(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected cards %v", got)
	}

	if err := rt.Panel().SetRPM(1200); err != nil {
		t.Fatalf("SetRPM: %v", err)
	}
	if _, err := rt.Panel().Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("expected custom sender to receive the command")
	}
}

func TestNewRuntimeRequiresConfig(t *testing.T) {
	if _, err := NewRuntime(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestNewRuntimeRejectsDuplicateCard(t *testing.T) {
	_, err := NewRuntime(DefaultConfig(),
		WithTelemetrySource(&stubSource{}),
		WithCommandSender(&stubSender{}),
		WithHostSampler(&stubSampler{}),
		WithObservability(&stubObservability{}),
		WithCard(&stubCard{id: "vibration"}),
	)
	if err == nil {
		t.Fatalf("expected duplicate card error")
	}
}

func TestRuntimeServesAndDeliversSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.Policy.PollInterval = 10 * time.Millisecond
	cfg.Log.Level = "error"

	sink, samples, closeSamples := NewChannelSink("test", 8)
	defer closeSamples()

	rt, err := NewRuntime(cfg,
		WithTelemetrySource(&stubSource{}),
		WithCommandSender(&stubSender{}),
		WithHostSampler(&stubSampler{}),
		WithSink(sink),
	)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rt.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	addr := rt.Addr()

	select {
	case s := <-samples:
		if s.RPM != 1500 || !s.HasVibration {
			t.Fatalf("unexpected sample %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a subscriber sample")
	}

	resp, err := http.Get("http://" + rt.Addr() + "/api/cards")
	if err != nil {
		t.Fatalf("GET cards: %v", err)
	}
	var body struct {
		Cards []CardView `json:"cards"`
	}
	err = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode cards: %v", err)
	}
	if len(body.Cards) != 4 {
		t.Fatalf("expected 4 cards, got %d", len(body.Cards))
	}

	resp, err = http.Get("http://" + rt.MetricsAddr() + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(raw), "motordash_polls_total") {
		t.Fatalf("expected poll counter in metrics output")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := rt.Shutdown(ctx); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if err := rt.Start(); !errors.Is(err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown on restart, got %v", err)
	}
	if rt.Addr() != addr {
		t.Fatalf("expected restart to leave listeners untouched")
	}
}

type stubSource struct{}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(ctx context.Context) (*Snapshot, error) {
	return &Snapshot{
		MotorStatus:      &MotorStatus{RPM: 1500, Torque: 1.2, Load: 40, Temperature: 35, Power: 300},
		VibrationMetrics: &VibrationMetrics{MainFreq: 120, Amplitude: 0.2, RMS: 0.1, HealthIndex: 90},
	}, ctx.Err()
}

type stubSender struct {
	mu   sync.Mutex
	sent []ControlCommand
}

func (s *stubSender) Send(_ context.Context, cmd ControlCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, cmd)
	return nil
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type stubSampler struct{}

func (s *stubSampler) Sample(context.Context) (HostSnapshot, error) {
	return HostSnapshot{CPUPercent: 10, MemoryPercent: 20, DiskPercent: 30, HealthPercent: 80}, nil
}

type stubCard struct{ id string }

func (c *stubCard) ID() string              { return c.id }
func (c *stubCard) Title() string           { return c.id }
func (c *stubCard) Start() error            { return nil }
func (c *stubCard) Close() error            { return nil }
func (c *stubCard) View() (CardView, error) { return CardView{ID: c.id, Title: c.id}, nil }

type stubObservability struct{}

func (s *stubObservability) LogInfo(string, ...Field)               {}
func (s *stubObservability) LogError(string, error, ...Field)       {}
func (s *stubObservability) IncCounter(string, string, float64)     {}
func (s *stubObservability) ObserveLatency(string, string, float64) {}
func (s *stubObservability) SetGauge(string, string, float64)       {}
