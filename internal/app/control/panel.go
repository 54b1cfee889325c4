// Package control turns the operator's mode selector and slider into
// setpoint commands for the control backend.
package control

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ght123247/UIproj/internal/adapters/observability"
	"github.com/ght123247/UIproj/internal/clock"
	"github.com/ght123247/UIproj/internal/domain"
	"github.com/ght123247/UIproj/internal/ports"
)

const component = "control-panel"

var (
	ErrInvalidMode   = errors.New("control: mode must be speed or torque")
	ErrOutOfRange    = errors.New("control: value out of slider range")
	ErrMissingTarget = errors.New("control: command has no target for its mode")
)

var validate = validator.New()

// Limits are the slider ranges. MaxTorque is in display units (mN·m).
type Limits struct {
	MaxRPM    float64 `yaml:"max_rpm" json:"max_rpm"`
	MaxTorque float64 `yaml:"max_torque" json:"max_torque"`
}

func DefaultLimits() Limits {
	return Limits{MaxRPM: 8000, MaxTorque: 6000}
}

// Result records the outcome of the last command sent.
type Result struct {
	Command domain.ControlCommand `json:"command"`
	OK      bool                  `json:"ok"`
	Error   string                `json:"error,omitempty"`
	At      time.Time             `json:"at"`
}

// Snapshot is a copy of the panel state for rendering.
type Snapshot struct {
	Mode   domain.ControlMode `json:"mode"`
	RPM    float64            `json:"rpm"`
	Torque float64            `json:"torque"` // mN·m
	Limits Limits             `json:"limits"`
	Last   *Result            `json:"last,omitempty"`
}

type Option func(*Panel)

func WithClock(c clock.Clock) Option {
	return func(p *Panel) {
		if c != nil {
			p.clock = c
		}
	}
}

func WithObservability(obs ports.Observability) Option {
	return func(p *Panel) {
		if obs != nil {
			p.obs = obs
		}
	}
}

// Panel holds one mode selector and two sliders. Commands are sent once;
// failures are recorded and logged but never retried.
type Panel struct {
	sender ports.CommandSender
	limits Limits
	clock  clock.Clock
	obs    ports.Observability

	mu     sync.Mutex
	mode   domain.ControlMode
	rpm    float64
	torque float64
	last   *Result
}

func NewPanel(sender ports.CommandSender, limits Limits, opts ...Option) *Panel {
	if limits.MaxRPM <= 0 {
		limits.MaxRPM = DefaultLimits().MaxRPM
	}
	if limits.MaxTorque <= 0 {
		limits.MaxTorque = DefaultLimits().MaxTorque
	}
	p := &Panel{
		sender: sender,
		limits: limits,
		clock:  clock.Real(),
		obs:    observability.Discard{},
		mode:   domain.ModeSpeed,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Panel) SetMode(mode domain.ControlMode) error {
	if mode != domain.ModeSpeed && mode != domain.ModeTorque {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
	return nil
}

// SetRPM moves the speed slider.
func (p *Panel) SetRPM(v float64) error {
	if err := checkRange(v, p.limits.MaxRPM); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rpm = v
	return nil
}

// SetTorque moves the torque slider, in mN·m.
func (p *Panel) SetTorque(v float64) error {
	if err := checkRange(v, p.limits.MaxTorque); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.torque = v
	return nil
}

// Command builds the payload for the current selection. The torque slider
// is divided down to backend units here and nowhere else.
func (p *Panel) Command() domain.ControlCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commandLocked()
}

func (p *Panel) commandLocked() domain.ControlCommand {
	if p.mode == domain.ModeTorque {
		target := p.torque / domain.TorqueDisplayScale
		return domain.ControlCommand{Mode: domain.ModeTorque, TargetTorque: &target}
	}
	target := p.rpm
	return domain.ControlCommand{Mode: domain.ModeSpeed, TargetRPM: &target}
}

// Submit sends the current selection.
func (p *Panel) Submit(ctx context.Context) (domain.ControlCommand, error) {
	cmd := p.Command()
	return cmd, p.send(ctx, cmd)
}

// Stop sends the STOP payload whatever the selected mode and zeroes both
// sliders once the backend accepted it.
func (p *Panel) Stop(ctx context.Context) error {
	if err := p.send(ctx, domain.StopCommand()); err != nil {
		return err
	}
	p.mu.Lock()
	p.rpm = 0
	p.torque = 0
	p.mu.Unlock()
	return nil
}

func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{Mode: p.mode, RPM: p.rpm, Torque: p.torque, Limits: p.limits}
	if p.last != nil {
		last := *p.last
		s.Last = &last
	}
	return s
}

func (p *Panel) send(ctx context.Context, cmd domain.ControlCommand) error {
	if err := Validate(cmd); err != nil {
		return err
	}
	p.obs.IncCounter(observability.ControlCommandsTotal, component, 1)

	err := p.sender.Send(ctx, cmd)
	res := &Result{Command: cmd, OK: err == nil, At: p.clock.Now()}
	if err != nil {
		err = fmt.Errorf("submit %s command: %w", cmd.Mode, err)
		res.Error = err.Error()
		p.obs.IncCounter(observability.ControlFailuresTotal, component, 1)
		p.obs.LogError("control_submit_failed", err,
			ports.Field{Key: "component", Value: component},
			ports.Field{Key: "mode", Value: string(cmd.Mode)},
		)
	} else {
		p.obs.LogInfo("control_submitted",
			ports.Field{Key: "component", Value: component},
			ports.Field{Key: "mode", Value: string(cmd.Mode)},
			ports.Field{Key: "stop", Value: cmd.IsStop()},
		)
	}

	p.mu.Lock()
	p.last = res
	p.mu.Unlock()
	return err
}

// Validate checks a command before it leaves the process: known mode,
// non-negative targets, and a target for the selected mode.
func Validate(cmd domain.ControlCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}
	switch cmd.Mode {
	case domain.ModeSpeed:
		if cmd.TargetRPM == nil {
			return fmt.Errorf("%w: target_rpm", ErrMissingTarget)
		}
	case domain.ModeTorque:
		if cmd.TargetTorque == nil {
			return fmt.Errorf("%w: target_torque", ErrMissingTarget)
		}
	}
	return nil
}

func checkRange(v, max float64) error {
	if math.IsNaN(v) || v < 0 || v > max {
		return fmt.Errorf("%w: %g not in [0, %g]", ErrOutOfRange, v, max)
	}
	return nil
}
