package ports

import (
	"context"

	"github.com/ght123247/UIproj/internal/domain"
)

// CommandSender delivers one setpoint command to the control backend.
type CommandSender interface {
	Send(ctx context.Context, cmd domain.ControlCommand) error
}
