package ports

import (
	"context"

	"github.com/ght123247/UIproj/internal/domain"
)

// TelemetrySource fetches the latest backend snapshot. Implementations must
// honor ctx cancellation so a superseded poll can be abandoned.
type TelemetrySource interface {
	Fetch(ctx context.Context) (*domain.LatestSnapshot, error)
	Name() string
}
