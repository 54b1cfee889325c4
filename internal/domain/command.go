package domain

// ControlMode selects which setpoint the backend drives.
type ControlMode string

const (
	ModeSpeed  ControlMode = "speed"
	ModeTorque ControlMode = "torque"
)

// ControlCommand is the body of POST {base}/control/set-parameters.
// Both targets are always serialized; the one that does not apply to Mode is
// null so the backend can tell "zero" apart from "not applicable".
type ControlCommand struct {
	Mode         ControlMode `json:"mode" validate:"required,oneof=speed torque"`
	TargetRPM    *float64    `json:"target_rpm" validate:"omitnil,gte=0"`
	TargetTorque *float64    `json:"target_torque" validate:"omitnil,gte=0"`
}

// StopCommand is the fixed payload that halts the motor in any mode.
func StopCommand() ControlCommand {
	zeroRPM, zeroTorque := 0.0, 0.0
	return ControlCommand{
		Mode:         ModeSpeed,
		TargetRPM:    &zeroRPM,
		TargetTorque: &zeroTorque,
	}
}

// IsStop reports whether c is the STOP payload.
func (c ControlCommand) IsStop() bool {
	return c.Mode == ModeSpeed &&
		c.TargetRPM != nil && *c.TargetRPM == 0 &&
		c.TargetTorque != nil && *c.TargetTorque == 0
}
