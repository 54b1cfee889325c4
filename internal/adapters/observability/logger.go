package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ght123247/UIproj/internal/ports"
)

// NewLogger builds the process logger. format is "text" or "json".
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		lvl = slog.LevelInfo
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Discard drops logs and metrics. Used by CLI one-shot commands and tests.
type Discard struct{}

func (Discard) LogInfo(string, ...ports.Field)         {}
func (Discard) LogError(string, error, ...ports.Field) {}
func (Discard) IncCounter(string, string, float64)     {}
func (Discard) ObserveLatency(string, string, float64) {}
func (Discard) SetGauge(string, string, float64)       {}

var _ ports.Observability = Discard{}
