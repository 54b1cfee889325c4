package motordash

import (
	base "github.com/ght123247/UIproj/pkg/motordash"
)

// Re-exported errors for convenience.
var (
	ErrAlreadyStarted    = base.ErrAlreadyStarted
	ErrNotStarted        = base.ErrNotStarted
	ErrShutdown          = base.ErrShutdown
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrChannelSinkFull   = base.ErrChannelSinkFull
)

// Type aliases so consumers can import github.com/ght123247/UIproj directly.
type (
	Config           = base.Config
	Policy           = base.Policy
	APIConfig        = base.APIConfig
	OPCUAConfig      = base.OPCUAConfig
	OPCUANodeConfig  = base.OPCUANodeConfig
	ServerConfig     = base.ServerConfig
	MetricsConfig    = base.MetricsConfig
	MotorLimits      = base.MotorLimits
	VibrationLimits  = base.VibrationLimits
	ControlLimits    = base.ControlLimits
	Runtime          = base.Runtime
	RuntimeOption    = base.RuntimeOption
	Sample           = base.Sample
	Snapshot         = base.Snapshot
	MotorStatus      = base.MotorStatus
	VibrationMetrics = base.VibrationMetrics
	ControlCommand   = base.ControlCommand
	ControlMode      = base.ControlMode
	TelemetrySource  = base.TelemetrySource
	CommandSender    = base.CommandSender
	Observability    = base.Observability
	Field            = base.Field
	Card             = base.Card
	CardView         = base.CardView
	HostSampler      = base.HostSampler
	HostSnapshot     = base.HostSnapshot
	ControlPanel     = base.ControlPanel
	ControlSnapshot  = base.ControlSnapshot
	Clock            = base.Clock
	SampleSink       = base.SampleSink
	SampleFunc       = base.SampleFunc
)

const (
	ModeSpeed   = base.ModeSpeed
	ModeTorque  = base.ModeTorque
	SourceHTTP  = base.SourceHTTP
	SourceOPCUA = base.SourceOPCUA
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithTelemetrySource(src TelemetrySource) RuntimeOption {
	return base.WithTelemetrySource(src)
}

func WithCommandSender(s CommandSender) RuntimeOption {
	return base.WithCommandSender(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithHostSampler(s HostSampler) RuntimeOption {
	return base.WithHostSampler(s)
}

func WithClock(c Clock) RuntimeOption {
	return base.WithClock(c)
}

func WithSink(s SampleSink) RuntimeOption {
	return base.WithSink(s)
}

func WithCard(c Card) RuntimeOption {
	return base.WithCard(c)
}

// Sample sinks.
func NewCallbackSink(name string, fn SampleFunc) SampleSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (SampleSink, <-chan Sample, func()) {
	return base.NewChannelSink(name, buffer)
}
