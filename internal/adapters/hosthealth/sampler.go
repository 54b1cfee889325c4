// Package hosthealth samples CPU, memory, disk and load of the machine the
// dashboard runs on.
package hosthealth

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

var ErrUnavailable = errors.New("hosthealth: no metrics available")

type Snapshot struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsed    uint64    `json:"memory_used"`
	MemoryTotal   uint64    `json:"memory_total"`
	DiskPercent   float64   `json:"disk_percent"`
	DiskUsed      uint64    `json:"disk_used"`
	DiskTotal     uint64    `json:"disk_total"`
	Load1         float64   `json:"load1"`
	UptimeSeconds uint64    `json:"uptime_seconds"`
	HealthPercent float64   `json:"health_percent"`
	SampledAt     time.Time `json:"sampled_at"`
}

// Sampler derives CPU usage from the delta between consecutive calls, so
// the first sample always reports 0% CPU.
type Sampler struct {
	diskPath string

	mu        sync.Mutex
	prevTotal float64
	prevIdle  float64
	hasPrev   bool
}

func NewSampler(diskPath string) *Sampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Sampler{diskPath: diskPath}
}

// Sample reads every metric it can. Individual probe failures leave their
// fields at zero; only a sample with no usable probe is an error.
func (s *Sampler) Sample(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{SampledAt: time.Now()}
	ok := false

	if times, err := cpu.TimesWithContext(ctx, false); err == nil && len(times) > 0 {
		ok = true
		snap.CPUPercent = s.cpuPercent(times[0])
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		ok = true
		snap.MemoryPercent = clamp(vm.UsedPercent)
		snap.MemoryUsed = vm.Used
		snap.MemoryTotal = vm.Total
	}
	if du, err := disk.UsageWithContext(ctx, s.diskPath); err == nil && du != nil {
		ok = true
		snap.DiskPercent = clamp(du.UsedPercent)
		snap.DiskUsed = du.Used
		snap.DiskTotal = du.Total
	}
	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		snap.Load1 = avg.Load1
	}
	if info, err := host.InfoWithContext(ctx); err == nil && info != nil {
		snap.UptimeSeconds = info.Uptime
	}

	if !ok {
		return Snapshot{}, ErrUnavailable
	}
	snap.HealthPercent = Health(snap.CPUPercent, snap.MemoryPercent, snap.DiskPercent)
	return snap, nil
}

func (s *Sampler) cpuPercent(t cpu.TimesStat) float64 {
	total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
	idle := t.Idle + t.Iowait

	s.mu.Lock()
	defer s.mu.Unlock()
	prevTotal, prevIdle, hasPrev := s.prevTotal, s.prevIdle, s.hasPrev
	s.prevTotal, s.prevIdle, s.hasPrev = total, idle, true

	deltaTotal := total - prevTotal
	if !hasPrev || deltaTotal <= 0 {
		return 0
	}
	used := deltaTotal - (idle - prevIdle)
	if used < 0 {
		used = 0
	}
	return clamp(used / deltaTotal * 100)
}

// Health scores the host from 100 (idle) down to 0, weighting the busiest
// resource the most.
func Health(cpuPercent, memPercent, diskPercent float64) float64 {
	worst := math.Max(cpuPercent, math.Max(memPercent, diskPercent))
	avg := (cpuPercent + memPercent + diskPercent) / 3
	return clamp(100 - (0.7*worst + 0.3*avg))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
