// Package cards renders live telemetry as dashboard cards. Each card owns
// its own poller and, for chart cards, its own rolling window.
package cards

import (
	"math"
	"time"

	"github.com/ght123247/UIproj/internal/adapters/observability"
	"github.com/ght123247/UIproj/internal/app/poller"
	"github.com/ght123247/UIproj/internal/clock"
	"github.com/ght123247/UIproj/internal/domain"
	"github.com/ght123247/UIproj/internal/ports"
	"github.com/ght123247/UIproj/internal/window"
)

// DefaultInterval is the poll cadence of the live cards.
const DefaultInterval = 100 * time.Millisecond

// Status is the card state machine: Loading until the first sample, then
// Connected or Disconnected, flipping freely.
type Status string

const (
	StatusLoading      Status = "loading"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

func StatusOf(st poller.State) Status {
	switch {
	case !st.HasSample():
		return StatusLoading
	case st.Connectivity == domain.Connected:
		return StatusConnected
	default:
		return StatusDisconnected
	}
}

// Card is a renderable dashboard component with its own lifecycle.
type Card interface {
	ID() string
	Title() string
	Start() error
	Close() error
	View() (View, error)
}

// View is the JSON shape pushed to the page. Bars and Series are empty
// while the card is loading.
type View struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Status    Status               `json:"status"`
	UpdatedAt time.Time            `json:"updated_at"`
	LastError string               `json:"last_error,omitempty"`
	Bars      []Bar                `json:"bars,omitempty"`
	Stats     map[string]any       `json:"stats,omitempty"`
	Series    []window.SeriesPoint `json:"series,omitempty"`
	Channels  []string             `json:"channels,omitempty"`
	Domain    []float64            `json:"domain,omitempty"`
}

type Bar struct {
	Label   string  `json:"label"`
	Unit    string  `json:"unit,omitempty"`
	Value   float64 `json:"value"`
	Max     float64 `json:"max"`
	Percent float64 `json:"percent"`
}

// PercentBar builds a bar whose fill never leaves [0, 100], even when value
// exceeds max.
func PercentBar(label, unit string, value, max float64) Bar {
	var pct float64
	if max > 0 {
		pct = value / max * 100
	}
	return Bar{Label: label, Unit: unit, Value: value, Max: max, Percent: ClampPercent(pct)}
}

func ClampPercent(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, -1) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Deps are the collaborators shared by the card constructors. Each card
// still builds its own poller from them.
type Deps struct {
	Source   ports.TelemetrySource
	Clock    clock.Clock
	Obs      ports.Observability
	Interval time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Obs == nil {
		d.Obs = observability.Discard{}
	}
	if d.Interval <= 0 {
		d.Interval = DefaultInterval
	}
	return d
}

// pollingCard carries the lifecycle shared by every telemetry card.
type pollingCard struct {
	id       string
	title    string
	interval time.Duration
	poller   *poller.Poller
}

func newPollingCard(id, title string, deps Deps, required poller.Section, extra ...poller.Option) pollingCard {
	opts := append([]poller.Option{
		poller.WithClock(deps.Clock),
		poller.WithObservability(deps.Obs),
		poller.WithRequired(required),
	}, extra...)
	return pollingCard{
		id:       id,
		title:    title,
		interval: deps.Interval,
		poller:   poller.New(id, deps.Source, opts...),
	}
}

func (c *pollingCard) ID() string    { return c.id }
func (c *pollingCard) Title() string { return c.title }

func (c *pollingCard) Start() error { return c.poller.Start(c.interval) }

func (c *pollingCard) Close() error { return c.poller.Close() }

func (c *pollingCard) State() poller.State { return c.poller.State() }

// header fills the fields every card view shares and returns the sample,
// which is nil while loading.
func (c *pollingCard) header() (View, *domain.TelemetrySample) {
	st := c.poller.State()
	v := View{
		ID:        c.id,
		Title:     c.title,
		Status:    StatusOf(st),
		UpdatedAt: st.UpdatedAt,
	}
	if st.LastError != nil {
		v.LastError = st.LastError.Error()
	}
	return v, st.Sample
}
