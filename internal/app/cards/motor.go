package cards

import "github.com/ght123247/UIproj/internal/app/poller"

const MotorStatusID = "motor-status"

// MotorLimits are the full-scale values of the motor bars. Torque is in
// display units (mN·m).
type MotorLimits struct {
	RPM         float64 `yaml:"rpm"`
	Torque      float64 `yaml:"torque"`
	Power       float64 `yaml:"power"`
	Load        float64 `yaml:"load"`
	Temperature float64 `yaml:"temperature"`
}

func DefaultMotorLimits() MotorLimits {
	return MotorLimits{RPM: 6000, Torque: 6000, Power: 1000, Load: 100, Temperature: 100}
}

type MotorStatusCard struct {
	pollingCard
	limits MotorLimits
}

func NewMotorStatusCard(deps Deps, limits MotorLimits) *MotorStatusCard {
	deps = deps.withDefaults()
	return &MotorStatusCard{
		pollingCard: newPollingCard(MotorStatusID, "Motor Status", deps, poller.RequireMotor),
		limits:      limits,
	}
}

func (c *MotorStatusCard) View() (View, error) {
	v, s := c.header()
	if s == nil {
		return v, nil
	}
	v.Bars = []Bar{
		PercentBar("RPM", "rpm", s.RPM, c.limits.RPM),
		PercentBar("Torque", "mN·m", s.TorqueDisplay(), c.limits.Torque),
		PercentBar("Power", "W", s.Power, c.limits.Power),
		PercentBar("Load", "%", s.Load, c.limits.Load),
		PercentBar("Temperature", "°C", s.Temperature, c.limits.Temperature),
	}
	return v, nil
}
