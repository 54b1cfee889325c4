package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ght123247/UIproj/internal/ports"
)

const componentLabel = "component"

// Metric names shared by the pollers, cards and control panel.
const (
	PollsTotal           = "motordash_polls_total"
	PollFailuresTotal    = "motordash_poll_failures_total"
	PollsSupersededTotal = "motordash_polls_superseded_total"
	PollsNoDataTotal     = "motordash_polls_no_data_total"
	PollLatencySeconds   = "motordash_poll_latency_seconds"
	Connected            = "motordash_connected"
	WindowPoints         = "motordash_window_points"
	ControlCommandsTotal = "motordash_control_commands_total"
	ControlFailuresTotal = "motordash_control_failures_total"
	WebsocketClients     = "motordash_websocket_clients"
	SamplesDelivered     = "motordash_samples_delivered_total"
	SinkFailuresTotal    = "motordash_sink_failures_total"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
	histos   map[string]*prometheus.HistogramVec
}

// NewPromObs registers the dashboard metrics on reg (the default registerer
// when nil) and logs through logger (slog.Default when nil).
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}

	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, []string{componentLabel})
	}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, []string{componentLabel})
	}

	polls := counter(PollsTotal, "Telemetry requests issued.")
	failures := counter(PollFailuresTotal, "Telemetry requests that ended in a transport failure or non-2xx status.")
	superseded := counter(PollsSupersededTotal, "Telemetry requests cancelled or discarded because a newer poll replaced them.")
	noData := counter(PollsNoDataTotal, "Successful polls whose expected section was not available yet.")
	commands := counter(ControlCommandsTotal, "Control commands submitted to the backend.")
	commandFailures := counter(ControlFailuresTotal, "Control commands rejected by the backend or lost in transit.")
	connected := gauge(Connected, "1 when the last poll of the component succeeded, 0 otherwise.")
	windowPoints := gauge(WindowPoints, "Points currently held in the component's rolling chart window.")
	delivered := counter(SamplesDelivered, "Samples handed to embedded subscribers.")
	sinkFailures := counter(SinkFailuresTotal, "Samples a subscriber rejected or had no room for.")
	wsClients := gauge(WebsocketClients, "Connected dashboard websocket clients.")
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    PollLatencySeconds,
		Help:    "Round-trip time of successful telemetry requests.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{componentLabel})

	reg.MustRegister(polls, failures, superseded, noData, commands, commandFailures,
		delivered, sinkFailures, connected, windowPoints, wsClients, latency)

	return &PromObs{
		logger: logger,
		counters: map[string]*prometheus.CounterVec{
			PollsTotal:           polls,
			PollFailuresTotal:    failures,
			PollsSupersededTotal: superseded,
			PollsNoDataTotal:     noData,
			ControlCommandsTotal: commands,
			ControlFailuresTotal: commandFailures,
			SamplesDelivered:     delivered,
			SinkFailuresTotal:    sinkFailures,
		},
		gauges: map[string]*prometheus.GaugeVec{
			Connected:        connected,
			WindowPoints:     windowPoints,
			WebsocketClients: wsClients,
		},
		histos: map[string]*prometheus.HistogramVec{
			PollLatencySeconds: latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	args := attrs(fields)
	if err != nil {
		args = append(args, slog.Any("error", err))
	}
	p.logger.Error(msg, args...)
}

func (p *PromObs) IncCounter(name, component string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.WithLabelValues(component).Add(v)
	}
}

func (p *PromObs) ObserveLatency(name, component string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.WithLabelValues(component).Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name, component string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.WithLabelValues(component).Set(v)
	}
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
