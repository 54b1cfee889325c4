package ports

import "time"

type Policy struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	WindowSpan      time.Duration `yaml:"window_span"`
	WindowMaxPoints int           `yaml:"window_max_points"`
	RefreshInterval time.Duration `yaml:"refresh_interval"` // websocket push cadence

	Dedup bool `yaml:"dedup"` // refresh the last point instead of appending identical values
}
