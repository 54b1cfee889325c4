package cards

import (
	"context"
	"sync"
	"time"

	"github.com/ght123247/UIproj/internal/adapters/hosthealth"
	"github.com/ght123247/UIproj/internal/adapters/observability"
	"github.com/ght123247/UIproj/internal/app/poller"
	"github.com/ght123247/UIproj/internal/clock"
	"github.com/ght123247/UIproj/internal/ports"
)

const (
	SystemHealthID = "system-health"

	DefaultHealthInterval = 5 * time.Second
)

type HostSampler interface {
	Sample(ctx context.Context) (hosthealth.Snapshot, error)
}

// SystemHealthCard shows the resources of the host running the dashboard.
// It follows the same Loading/Connected/Disconnected rules as the
// telemetry cards, with a failed sample standing in for a failed poll.
type SystemHealthCard struct {
	sampler  HostSampler
	clock    clock.Clock
	obs      ports.Observability
	interval time.Duration

	mu        sync.RWMutex
	snap      *hosthealth.Snapshot
	lastErr   error
	updatedAt time.Time

	lifeMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSystemHealthCard(sampler HostSampler, clk clock.Clock, obs ports.Observability, interval time.Duration) *SystemHealthCard {
	if clk == nil {
		clk = clock.Real()
	}
	if obs == nil {
		obs = observability.Discard{}
	}
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	return &SystemHealthCard{sampler: sampler, clock: clk, obs: obs, interval: interval}
}

func (c *SystemHealthCard) ID() string    { return SystemHealthID }
func (c *SystemHealthCard) Title() string { return "System Health" }

func (c *SystemHealthCard) Start() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.cancel != nil {
		return poller.ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	ticker := c.clock.NewTicker(c.interval)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		c.refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.refresh(ctx)
			}
		}
	}()
	return nil
}

func (c *SystemHealthCard) Close() error {
	c.lifeMu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.lifeMu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	return nil
}

func (c *SystemHealthCard) refresh(ctx context.Context) {
	snap, err := c.sampler.Sample(ctx)
	if ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	c.updatedAt = c.clock.Now()
	c.lastErr = err
	if err == nil {
		c.snap = &snap
	}
	c.mu.Unlock()

	if err != nil {
		c.obs.LogError("host_sample_failed", err, ports.Field{Key: "component", Value: SystemHealthID})
		c.obs.SetGauge(observability.Connected, SystemHealthID, 0)
		return
	}
	c.obs.SetGauge(observability.Connected, SystemHealthID, 1)
}

func (c *SystemHealthCard) View() (View, error) {
	c.mu.RLock()
	snap, lastErr, updatedAt := c.snap, c.lastErr, c.updatedAt
	c.mu.RUnlock()

	v := View{ID: SystemHealthID, Title: c.Title(), UpdatedAt: updatedAt}
	switch {
	case snap == nil:
		v.Status = StatusLoading
	case lastErr != nil:
		v.Status = StatusDisconnected
	default:
		v.Status = StatusConnected
	}
	if lastErr != nil {
		v.LastError = lastErr.Error()
	}
	if snap == nil {
		return v, nil
	}
	v.Bars = []Bar{
		PercentBar("CPU", "%", snap.CPUPercent, 100),
		PercentBar("Memory", "%", snap.MemoryPercent, 100),
		PercentBar("Disk", "%", snap.DiskPercent, 100),
		PercentBar("Health", "%", snap.HealthPercent, 100),
	}
	v.Stats = map[string]any{
		"load1":          snap.Load1,
		"uptime_seconds": snap.UptimeSeconds,
		"memory_used":    snap.MemoryUsed,
		"memory_total":   snap.MemoryTotal,
	}
	return v, nil
}
