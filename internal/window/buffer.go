// Package window keeps the short, bounded time series behind the chart
// cards.
//
// A Buffer holds points in ascending timestamp order. It tracks the newest
// time it has seen through Push or Evict, and enforces two bounds against it:
// no point older than Span, and no more than MaxPoints points. With Dedup enabled, a point whose values
// equal the last point's values refreshes that point's timestamp instead of
// being appended, so a flat signal still slides across the chart.
package window

import (
	"iter"
	"maps"
	"sync"
	"time"
)

const (
	DefaultSpan      = 10 * time.Second
	DefaultMaxPoints = 100
)

// Point is one buffered sample. Values are already in display units.
type Point struct {
	TimestampMillis int64              `json:"timestamp_ms"`
	Values          map[string]float64 `json:"values"`
}

// SeriesPoint is a point positioned relative to a render time: 0 is now,
// negative seconds are in the past.
type SeriesPoint struct {
	Seconds float64            `json:"seconds"`
	Values  map[string]float64 `json:"values"`
}

type Options struct {
	Span      time.Duration
	MaxPoints int
	Dedup     bool
}

// DefaultOptions returns the 10s / 100 point window with dedup enabled.
func DefaultOptions() Options {
	return Options{Span: DefaultSpan, MaxPoints: DefaultMaxPoints, Dedup: true}
}

// Buffer is safe for concurrent use; one owner writes, HTTP handlers read.
type Buffer struct {
	mu     sync.Mutex
	opts   Options
	points []Point
	latest int64 // newest timestamp seen by Push or Evict
}

func New(opts Options) *Buffer {
	if opts.Span <= 0 {
		opts.Span = DefaultSpan
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = DefaultMaxPoints
	}
	return &Buffer{
		opts:   opts,
		points: make([]Point, 0, opts.MaxPoints+1),
	}
}

// Push inserts p and evicts. Timestamps older than the current last point
// are raised to it so ordering holds. A point already outside the window
// is dropped.
func (b *Buffer) Push(p Point) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ts := p.TimestampMillis
	if ts < b.cutoff() {
		return
	}
	if n := len(b.points); n > 0 {
		last := &b.points[n-1]
		if ts < last.TimestampMillis {
			ts = last.TimestampMillis
		}
		if b.opts.Dedup && maps.Equal(last.Values, p.Values) {
			last.TimestampMillis = ts
			b.evictLocked(ts)
			return
		}
	}
	b.points = append(b.points, Point{TimestampMillis: ts, Values: maps.Clone(p.Values)})
	b.evictLocked(ts)
}

// Evict drops points older than now-Span, then trims the front down to
// MaxPoints. A now earlier than one already seen does not move the window
// back.
func (b *Buffer) Evict(now int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evictLocked(now)
}

func (b *Buffer) cutoff() int64 {
	return b.latest - b.opts.Span.Milliseconds()
}

func (b *Buffer) evictLocked(now int64) {
	if now > b.latest {
		b.latest = now
	}
	cutoff := b.cutoff()
	drop := 0
	for drop < len(b.points) && b.points[drop].TimestampMillis < cutoff {
		drop++
	}
	if over := len(b.points) - drop - b.opts.MaxPoints; over > 0 {
		drop += over
	}
	if drop > 0 {
		b.points = append(b.points[:0], b.points[drop:]...)
	}
}

// Series yields the buffered points relative to now, skipping any that fall
// outside the window ending at now. Each iteration reads the buffer afresh,
// so the sequence can be ranged over repeatedly.
func (b *Buffer) Series(now int64) iter.Seq[SeriesPoint] {
	span := b.opts.Span.Milliseconds()
	return func(yield func(SeriesPoint) bool) {
		for _, p := range b.Points() {
			if now-p.TimestampMillis > span {
				continue
			}
			sp := SeriesPoint{
				Seconds: -float64(now-p.TimestampMillis) / 1000,
				Values:  p.Values,
			}
			if !yield(sp) {
				return
			}
		}
	}
}

// Domain is the fixed chart axis in seconds, e.g. [-10, 0].
func (b *Buffer) Domain() (minSeconds, maxSeconds float64) {
	return -b.opts.Span.Seconds(), 0
}

// Points returns a copy of the buffered points, oldest first.
func (b *Buffer) Points() []Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Point, len(b.points))
	for i, p := range b.points {
		out[i] = Point{TimestampMillis: p.TimestampMillis, Values: maps.Clone(p.Values)}
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.points)
}

// Last returns the newest point.
func (b *Buffer) Last() (Point, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.points) == 0 {
		return Point{}, false
	}
	p := b.points[len(b.points)-1]
	return Point{TimestampMillis: p.TimestampMillis, Values: maps.Clone(p.Values)}, true
}

// Reset empties the buffer and forgets the newest time seen, e.g. when its
// owning card is torn down.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.points = b.points[:0]
	b.latest = 0
}
