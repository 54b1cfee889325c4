package cards

import "github.com/ght123247/UIproj/internal/app/poller"

const VibrationID = "vibration"

type VibrationLimits struct {
	Frequency    float64 `yaml:"frequency"`
	Amplitude    float64 `yaml:"amplitude"`
	RMS          float64 `yaml:"rms"`
	ImpulseCount float64 `yaml:"impulse_count"`
	HealthIndex  float64 `yaml:"health_index"`
	ToolWear     float64 `yaml:"tool_wear"`
}

func DefaultVibrationLimits() VibrationLimits {
	return VibrationLimits{Frequency: 500, Amplitude: 1, RMS: 1, ImpulseCount: 100, HealthIndex: 100, ToolWear: 100}
}

type VibrationCard struct {
	pollingCard
	limits VibrationLimits
}

func NewVibrationCard(deps Deps, limits VibrationLimits) *VibrationCard {
	deps = deps.withDefaults()
	return &VibrationCard{
		pollingCard: newPollingCard(VibrationID, "Vibration Analysis", deps, poller.RequireVibration),
		limits:      limits,
	}
}

func (c *VibrationCard) View() (View, error) {
	v, s := c.header()
	if s == nil {
		return v, nil
	}
	v.Bars = []Bar{
		PercentBar("Main Frequency", "Hz", s.VibrationFrequency, c.limits.Frequency),
		PercentBar("Amplitude", "", s.Amplitude, c.limits.Amplitude),
		PercentBar("RMS", "", s.RMS, c.limits.RMS),
		PercentBar("Impact Count", "", float64(s.ImpulseCount), c.limits.ImpulseCount),
		PercentBar("Health Index", "%", s.HealthIndex, c.limits.HealthIndex),
		PercentBar("Tool Wear", "%", s.ToolWear, c.limits.ToolWear),
	}
	return v, nil
}
