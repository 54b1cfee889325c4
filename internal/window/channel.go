package window

import "math"

// Range is an inclusive clamp interval.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Channel converts one raw metric into display units at ingestion time.
// Scale of zero means 1. Clamp is per metric and optional; some metrics
// (RPM, torque) are clamped before buffering while others are not.
type Channel struct {
	Name  string  `yaml:"name"`
	Scale float64 `yaml:"scale"`
	Clamp *Range  `yaml:"clamp"`
}

func (c Channel) Apply(v float64) float64 {
	if c.Scale != 0 {
		v *= c.Scale
	}
	if math.IsNaN(v) {
		v = 0
	}
	if c.Clamp != nil {
		v = math.Max(c.Clamp.Min, math.Min(c.Clamp.Max, v))
	}
	return v
}

type Channels []Channel

// Ingest builds a Point from raw values. Metrics without a channel are
// ignored; channels without a raw value read as zero.
func (cs Channels) Ingest(ts int64, raw map[string]float64) Point {
	values := make(map[string]float64, len(cs))
	for _, c := range cs {
		values[c.Name] = c.Apply(raw[c.Name])
	}
	return Point{TimestampMillis: ts, Values: values}
}

// Names lists the channel names in order.
func (cs Channels) Names() []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return names
}
