package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ght123247/UIproj/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(reg, nil)

	obs.IncCounter(PollsTotal, "motor-status", 5)
	if got := testutil.ToFloat64(obs.counters[PollsTotal].WithLabelValues("motor-status")); got != 5 {
		t.Fatalf("expected polls counter 5, got %f", got)
	}

	obs.IncCounter(PollsSupersededTotal, "vibration", 2)
	if got := testutil.ToFloat64(obs.counters[PollsSupersededTotal].WithLabelValues("vibration")); got != 2 {
		t.Fatalf("expected superseded counter 2, got %f", got)
	}

	obs.SetGauge(Connected, "activity-overview", 1)
	if got := testutil.ToFloat64(obs.gauges[Connected].WithLabelValues("activity-overview")); got != 1 {
		t.Fatalf("expected connected gauge 1, got %f", got)
	}

	obs.ObserveLatency(PollLatencySeconds, "motor-status", 0.02)
	if samples := testutil.CollectAndCount(obs.histos[PollLatencySeconds]); samples != 1 {
		t.Fatalf("expected latency histogram to expose 1 series, got %d", samples)
	}

	obs.IncCounter("unknown_metric", "x", 1)
}

func TestPromObsLogsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "info", "text")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	obs := NewPromObs(prometheus.NewRegistry(), logger)

	obs.LogError("poll_failed", errors.New("boom"), ports.Field{Key: "component", Value: "motor-status"})
	out := buf.String()
	if !strings.Contains(out, "poll_failed") || !strings.Contains(out, "component=motor-status") || !strings.Contains(out, "error=boom") {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := NewLogger(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
