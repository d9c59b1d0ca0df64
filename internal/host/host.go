package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/media-state-bridge/internal/infrastructure/config"
)

// ErrSourceUnavailable is returned when a source cannot deliver notifications.
var ErrSourceUnavailable = errors.New("host: notification source unavailable")

// Source delivers raw foreground-app notifications.
type Source interface {
	// Name identifies the subscription in logs.
	Name() string

	// Subscribe starts delivering payloads to handler until ctx ends.
	Subscribe(ctx context.Context, handler func(payload []byte)) error
}

// Logger defines the logging interface for host sources.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// New returns the source selected by cfg.Source. logger may be nil.
func New(cfg config.HostConfig, logger Logger) (Source, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	switch cfg.Source {
	case config.SourceLuna:
		return NewLunaSource(cfg.Luna, logger), nil
	case config.SourceMPRIS:
		return NewMPRISSource(cfg.MPRIS, logger), nil
	case config.SourceWebhook:
		return NewWebhookSource(), nil
	default:
		return nil, fmt.Errorf("%w: unknown source %q", ErrSourceUnavailable, cfg.Source)
	}
}
