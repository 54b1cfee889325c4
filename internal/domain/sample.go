package domain

import "time"

// MotorStatus is the motor_status section of the backend snapshot.
type MotorStatus struct {
	RPM         float64 `json:"rpm"`
	Torque      float64 `json:"torque"` // N·m
	Load        float64 `json:"load"`
	Temperature float64 `json:"temperature"`
	Power       float64 `json:"power"`
}

// VibrationMetrics is the vibration_metrics section of the backend snapshot.
type VibrationMetrics struct {
	MainFreq     float64 `json:"main_freq"`
	Amplitude    float64 `json:"amplitude"`
	RMS          float64 `json:"rms"`
	ImpulseCount int64   `json:"impulse_count"`
	HealthIndex  float64 `json:"health_index"`
	ToolWear     float64 `json:"tool_wear"`
}

// LatestSnapshot is the body of GET {base}/control/latest. Either section may
// be absent while the backend has not produced data yet.
type LatestSnapshot struct {
	MotorStatus      *MotorStatus      `json:"motor_status,omitempty"`
	VibrationMetrics *VibrationMetrics `json:"vibration_metrics,omitempty"`
	Timestamp        string            `json:"timestamp,omitempty"`
}

// TelemetrySample is one parsed poll response. It is built once per
// successful poll and never modified afterwards; callers receive copies.
type TelemetrySample struct {
	RPM         float64
	Torque      float64 // backend unit, N·m
	Load        float64
	Temperature float64
	Power       float64

	VibrationFrequency float64
	Amplitude          float64
	RMS                float64
	ImpulseCount       int64
	HealthIndex        float64
	ToolWear           float64

	HasMotor     bool
	HasVibration bool
	ReceivedAt   time.Time
}

// TorqueDisplayScale converts backend N·m into display mN·m.
const TorqueDisplayScale = 1000.0

// NewSample flattens a snapshot into a TelemetrySample. Sections that are
// missing leave their fields at zero and their Has flag false.
func NewSample(snap *LatestSnapshot, receivedAt time.Time) TelemetrySample {
	s := TelemetrySample{ReceivedAt: receivedAt}
	if snap == nil {
		return s
	}
	if m := snap.MotorStatus; m != nil {
		s.HasMotor = true
		s.RPM = m.RPM
		s.Torque = m.Torque
		s.Load = m.Load
		s.Temperature = m.Temperature
		s.Power = m.Power
	}
	if v := snap.VibrationMetrics; v != nil {
		s.HasVibration = true
		s.VibrationFrequency = v.MainFreq
		s.Amplitude = v.Amplitude
		s.RMS = v.RMS
		s.ImpulseCount = v.ImpulseCount
		s.HealthIndex = v.HealthIndex
		s.ToolWear = v.ToolWear
	}
	return s
}

// TorqueDisplay returns the torque in display units (mN·m).
func (s TelemetrySample) TorqueDisplay() float64 {
	return s.Torque * TorqueDisplayScale
}

// Connectivity reflects whether the most recent poll succeeded.
type Connectivity int

const (
	Disconnected Connectivity = iota
	Connected
)

func (c Connectivity) String() string {
	if c == Connected {
		return "connected"
	}
	return "disconnected"
}
