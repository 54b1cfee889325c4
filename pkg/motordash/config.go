package motordash

import (
	"github.com/ght123247/UIproj/internal/adapters/opcua"
	"github.com/ght123247/UIproj/internal/app/cards"
	"github.com/ght123247/UIproj/internal/app/config"
	"github.com/ght123247/UIproj/internal/app/control"
	"github.com/ght123247/UIproj/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls poll cadence and the chart window.
	Policy = ports.Policy
	// APIConfig locates the backend.
	APIConfig = config.APIConfig
	// OPCUAConfig holds connection + node details for the OPC UA source.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig maps one OPC UA node onto a snapshot field.
	OPCUANodeConfig = opcua.NodeConfig
	// ServerConfig configures the dashboard listener.
	ServerConfig = config.ServerConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// MotorLimits are the bar maxima of the motor status card.
	MotorLimits = cards.MotorLimits
	// VibrationLimits are the bar maxima of the vibration card.
	VibrationLimits = cards.VibrationLimits
	// ControlLimits bound the control panel sliders.
	ControlLimits = control.Limits
)

const (
	SourceHTTP  = config.SourceHTTP
	SourceOPCUA = config.SourceOPCUA
)

// LoadConfig loads YAML from disk and applies MOTORDASH_* environment
// overrides. An empty path starts from DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a config pointing at a backend on localhost.
func DefaultConfig() *Config {
	cfg := config.Default()
	return &cfg
}
