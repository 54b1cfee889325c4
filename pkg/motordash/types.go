package motordash

import (
	"github.com/ght123247/UIproj/internal/adapters/hosthealth"
	"github.com/ght123247/UIproj/internal/app/cards"
	"github.com/ght123247/UIproj/internal/app/control"
	"github.com/ght123247/UIproj/internal/clock"
	"github.com/ght123247/UIproj/internal/domain"
	"github.com/ght123247/UIproj/internal/ports"
)

// Sample is one parsed poll of the backend. Torque is in N·m.
type Sample = domain.TelemetrySample

// Snapshot is the raw body of GET {base}/control/latest.
type Snapshot = domain.LatestSnapshot

type (
	MotorStatus      = domain.MotorStatus
	VibrationMetrics = domain.VibrationMetrics
)

// ControlCommand is the body of POST {base}/control/set-parameters.
type ControlCommand = domain.ControlCommand

// ControlMode selects speed or torque control.
type ControlMode = domain.ControlMode

const (
	ModeSpeed  = domain.ModeSpeed
	ModeTorque = domain.ModeTorque
)

// TelemetrySource fetches the latest snapshot (HTTP backend, OPC UA, simulators, etc.).
type TelemetrySource = ports.TelemetrySource

// CommandSender delivers setpoint commands to the motor controller.
type CommandSender = ports.CommandSender

// Observability receives logs and metrics from every component.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Card is a dashboard card; custom cards can be added with WithCard.
type Card = cards.Card

// CardView is the rendered state of a card.
type CardView = cards.View

// HostSampler reads the resources of the dashboard host.
type HostSampler = cards.HostSampler

// HostSnapshot is one HostSampler reading.
type HostSnapshot = hosthealth.Snapshot

// ControlPanel holds the operator's mode and slider state.
type ControlPanel = control.Panel

// ControlSnapshot is the rendered state of the ControlPanel.
type ControlSnapshot = control.Snapshot

// Clock drives pollers and chart ticks.
type Clock = clock.Clock
