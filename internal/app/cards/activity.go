package cards

import (
	"slices"
	"sync"

	"github.com/ght123247/UIproj/internal/adapters/observability"
	"github.com/ght123247/UIproj/internal/app/poller"
	"github.com/ght123247/UIproj/internal/clock"
	"github.com/ght123247/UIproj/internal/domain"
	"github.com/ght123247/UIproj/internal/ports"
	"github.com/ght123247/UIproj/internal/window"
)

const (
	ActivityOverviewID = "activity-overview"

	ChannelRPM    = "rpm"
	ChannelTorque = "torque"
)

// DefaultActivityChannels clamps RPM to [0, 8000] and converts torque to
// mN·m clamped to [0, 6000] before buffering.
func DefaultActivityChannels() window.Channels {
	return window.Channels{
		{Name: ChannelRPM, Clamp: &window.Range{Min: 0, Max: 8000}},
		{Name: ChannelTorque, Scale: domain.TorqueDisplayScale, Clamp: &window.Range{Min: 0, Max: 6000}},
	}
}

// ActivityCard charts RPM and torque over the trailing window. Samples are
// pushed as they arrive; a separate chart tick evicts old points so the
// window keeps sliding while the backend is silent.
type ActivityCard struct {
	pollingCard
	clock    clock.Clock
	obs      ports.Observability
	channels window.Channels
	buffer   *window.Buffer

	lastSeq uint64 // only touched from the poll loop

	lifeMu sync.Mutex
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewActivityCard(deps Deps, opts window.Options, channels window.Channels) *ActivityCard {
	deps = deps.withDefaults()
	if len(channels) == 0 {
		channels = DefaultActivityChannels()
	}
	c := &ActivityCard{
		clock:    deps.Clock,
		obs:      deps.Obs,
		channels: channels,
		buffer:   window.New(opts),
	}
	c.pollingCard = newPollingCard(ActivityOverviewID, "Activity Overview", deps, poller.RequireMotor,
		poller.WithListener(c.onState))
	return c
}

func (c *ActivityCard) Buffer() *window.Buffer { return c.buffer }

func (c *ActivityCard) Start() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.stop != nil {
		return poller.ErrAlreadyStarted
	}
	if err := c.pollingCard.Start(); err != nil {
		return err
	}

	stop := make(chan struct{})
	c.stop = stop
	ticker := c.clock.NewTicker(c.interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.buffer.Evict(c.clock.Now().UnixMilli())
				c.obs.SetGauge(observability.WindowPoints, c.id, float64(c.buffer.Len()))
			}
		}
	}()
	return nil
}

func (c *ActivityCard) Close() error {
	c.lifeMu.Lock()
	stop := c.stop
	c.stop = nil
	c.lifeMu.Unlock()
	if stop != nil {
		close(stop)
	}
	c.wg.Wait()
	return c.pollingCard.Close()
}

func (c *ActivityCard) onState(st poller.State) {
	if st.Sample == nil || st.Seq == c.lastSeq {
		return
	}
	c.lastSeq = st.Seq
	s := st.Sample
	p := c.channels.Ingest(c.clock.Now().UnixMilli(), map[string]float64{
		ChannelRPM:    s.RPM,
		ChannelTorque: s.Torque,
	})
	c.buffer.Push(p)
	c.obs.SetGauge(observability.WindowPoints, c.id, float64(c.buffer.Len()))
}

func (c *ActivityCard) View() (View, error) {
	v, s := c.header()
	minS, maxS := c.buffer.Domain()
	v.Domain = []float64{minS, maxS}
	v.Channels = c.channels.Names()
	if s == nil {
		return v, nil
	}
	now := c.clock.Now().UnixMilli()
	c.buffer.Evict(now)
	v.Series = slices.Collect(c.buffer.Series(now))
	if last, ok := c.buffer.Last(); ok {
		v.Stats = map[string]any{
			ChannelRPM:    last.Values[ChannelRPM],
			ChannelTorque: last.Values[ChannelTorque],
			"points":      c.buffer.Len(),
		}
	}
	return v, nil
}
