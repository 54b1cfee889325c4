// Package motordash embeds the motor polishing operator dashboard: telemetry
// cards, the control panel and the web server, wired from a Config.
package motordash

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ght123247/UIproj/internal/adapters/hosthealth"
	"github.com/ght123247/UIproj/internal/adapters/httpapi"
	"github.com/ght123247/UIproj/internal/adapters/observability"
	"github.com/ght123247/UIproj/internal/adapters/opcua"
	"github.com/ght123247/UIproj/internal/app/cards"
	"github.com/ght123247/UIproj/internal/app/control"
	"github.com/ght123247/UIproj/internal/app/poller"
	"github.com/ght123247/UIproj/internal/clock"
	"github.com/ght123247/UIproj/internal/ports"
	"github.com/ght123247/UIproj/internal/server"
)

const (
	subscriberComponent = "subscribers"
	shutdownTimeout     = 5 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("motordash: runtime already started")
	ErrNotStarted     = errors.New("motordash: runtime not started")
	ErrShutdown       = errors.New("motordash: runtime shut down")
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        TelemetrySource
	sender        CommandSender
	observability Observability
	sampler       HostSampler
	clock         Clock
	sinks         []SampleSink
	cards         []Card
}

// WithTelemetrySource replaces the configured source (HTTP backend or OPC UA).
func WithTelemetrySource(src TelemetrySource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithCommandSender replaces the HTTP backend as the target of control commands.
func WithCommandSender(s CommandSender) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sender = s
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithHostSampler replaces the gopsutil sampler behind the system health card.
func WithHostSampler(s HostSampler) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sampler = s
	}
}

func WithClock(c Clock) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = c
	}
}

// WithSink subscribes s to every new sample. Subscribers share one extra
// poller, separate from the cards.
func WithSink(s SampleSink) RuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithCard appends a custom card after the built-in ones.
func WithCard(c Card) RuntimeOption {
	return func(o *runtimeOverrides) {
		if c != nil {
			o.cards = append(o.cards, c)
		}
	}
}

// Runtime wires source → cards → dashboard server and exposes simple
// lifecycle hooks for embedding the dashboard inside any Go service.
// A Runtime is single-use: once shut down it cannot be started again.
type Runtime struct {
	cfg      *Config
	obs      ports.Observability
	gatherer prometheus.Gatherer
	source   ports.TelemetrySource
	deck     *cards.Deck
	panel    *control.Panel
	server   *server.Server
	tap      *poller.Poller
	sinks    []SampleSink
	closers  []io.Closer

	lastSeq uint64 // only touched from the tap's poll loop

	mu         sync.Mutex
	started    bool
	stopped    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	httpSrv    *http.Server
	metricsSrv *http.Server
	httpLn     net.Listener
	metricsLn  net.Listener
}

// NewRuntime bootstraps the default adapters (HTTP backend client or OPC UA
// source, gopsutil host sampler, Prometheus observability) and the built-in
// cards. RuntimeOption values override any dependency.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs := overrides.observability
	if obs == nil {
		logger, err := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, err
		}
		obs = observability.NewPromObs(reg, logger)
	}

	clk := overrides.clock
	if clk == nil {
		clk = clock.Real()
	}

	r := &Runtime{cfg: cfg, obs: obs, gatherer: reg, sinks: overrides.sinks}

	var backend *httpapi.Client
	if overrides.source == nil || overrides.sender == nil {
		endpoints, err := httpapi.ResolveEndpoints(cfg.API.Host, cfg.API.BasePath)
		if err != nil {
			return nil, err
		}
		backend = httpapi.New(endpoints)
	}

	src := overrides.source
	if src == nil {
		switch cfg.Source.Kind {
		case SourceOPCUA:
			opcSrc, err := opcua.NewSource(cfg.OPCUA)
			if err != nil {
				return nil, err
			}
			r.closers = append(r.closers, opcSrc)
			src = opcSrc
		default:
			src = backend
		}
	}
	r.source = src

	sender := overrides.sender
	if sender == nil {
		sender = backend
	}

	deps := cards.Deps{Source: src, Clock: clk, Obs: obs, Interval: cfg.Policy.PollInterval}
	r.deck = cards.NewDeck(obs)
	builtin := []Card{
		cards.NewMotorStatusCard(deps, cfg.Cards.Motor),
		cards.NewVibrationCard(deps, cfg.Cards.Vibration),
		cards.NewActivityCard(deps, cfg.WindowOptions(), cfg.Activity.Channels),
	}
	if cfg.Cards.SystemHealth {
		sampler := overrides.sampler
		if sampler == nil {
			sampler = hosthealth.NewSampler(cfg.Cards.DiskPath)
		}
		builtin = append(builtin, cards.NewSystemHealthCard(sampler, clk, obs, cfg.Cards.HealthInterval))
	}
	for _, c := range append(builtin, overrides.cards...) {
		if err := r.deck.Register(c); err != nil {
			return nil, err
		}
	}

	r.panel = control.NewPanel(sender, cfg.Control,
		control.WithClock(clk),
		control.WithObservability(obs),
	)
	r.server = server.New(r.deck, r.panel, server.Options{
		RefreshInterval: cfg.Policy.RefreshInterval,
		ControlRate:     cfg.Server.ControlRate,
		ControlBurst:    cfg.Server.ControlBurst,
		Obs:             obs,
	})

	if len(r.sinks) > 0 {
		r.tap = poller.New(subscriberComponent, src,
			poller.WithClock(clk),
			poller.WithObservability(obs),
			poller.WithListener(r.deliver),
		)
	}
	return r, nil
}

// Start launches the cards, the subscriber poller, the dashboard server and
// the metrics server. It returns immediately; call Run to block on a
// context instead.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrShutdown
	}
	if r.started {
		return ErrAlreadyStarted
	}

	httpLn, err := net.Listen("tcp", r.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", r.cfg.Server.Addr, err)
	}
	metricsLn, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		_ = httpLn.Close()
		return fmt.Errorf("listen %s: %w", r.cfg.Metrics.Addr, err)
	}

	if err := r.deck.Start(); err != nil {
		_ = httpLn.Close()
		_ = metricsLn.Close()
		return err
	}
	if r.tap != nil {
		if err := r.tap.Start(r.cfg.Policy.PollInterval); err != nil {
			_ = r.deck.Close()
			_ = httpLn.Close()
			_ = metricsLn.Close()
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.server.Run(ctx)
	}()

	r.httpLn, r.metricsLn = httpLn, metricsLn
	r.httpSrv = &http.Server{Handler: r.server.Handler(), ReadHeaderTimeout: 10 * time.Second}
	r.metricsSrv = &http.Server{Handler: r.metricsHandler(), ReadHeaderTimeout: 10 * time.Second}
	r.serve("dashboard", r.httpSrv, httpLn)
	r.serve("metrics", r.metricsSrv, metricsLn)

	r.started = true
	r.obs.LogInfo("runtime_started",
		Field{Key: "addr", Value: httpLn.Addr().String()},
		Field{Key: "metrics_addr", Value: metricsLn.Addr().String()},
		Field{Key: "source", Value: r.source.Name()},
		Field{Key: "cards", Value: r.deck.IDs()},
	)
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops the servers, the cards and the subscriber poller, then
// closes the telemetry source.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return ErrNotStarted
	}
	r.started = false
	r.stopped = true

	var errs []error
	for _, srv := range []*http.Server{r.httpSrv, r.metricsSrv} {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	r.cancel()
	r.wg.Wait()

	if err := r.deck.Close(); err != nil {
		errs = append(errs, err)
	}
	if r.tap != nil {
		if err := r.tap.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Addr is the dashboard listen address, useful with ":0". Empty until Start.
func (r *Runtime) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.httpLn == nil {
		return ""
	}
	return r.httpLn.Addr().String()
}

// MetricsAddr is the metrics listen address. Empty until Start.
func (r *Runtime) MetricsAddr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metricsLn == nil {
		return ""
	}
	return r.metricsLn.Addr().String()
}

// Handler serves the dashboard without starting a listener.
func (r *Runtime) Handler() http.Handler { return r.server.Handler() }

func (r *Runtime) Panel() *ControlPanel { return r.panel }

func (r *Runtime) Views() []CardView { return r.deck.Views() }

func (r *Runtime) View(id string) (CardView, bool) { return r.deck.View(id) }

func (r *Runtime) serve(name string, srv *http.Server, ln net.Listener) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("server_exited", err, Field{Key: "server", Value: name})
		}
	}()
}

func (r *Runtime) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (r *Runtime) deliver(st poller.State) {
	if st.Sample == nil || st.Seq == r.lastSeq {
		return
	}
	r.lastSeq = st.Seq
	for _, s := range r.sinks {
		if err := s.WriteSample(*st.Sample); err != nil {
			r.obs.IncCounter(observability.SinkFailuresTotal, s.Name(), 1)
			r.obs.LogError("sink_write_failed", err, Field{Key: "sink", Value: s.Name()})
			continue
		}
		r.obs.IncCounter(observability.SamplesDelivered, s.Name(), 1)
	}
}
