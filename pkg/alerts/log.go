package alerts

import (
	"context"
	"log/slog"
)

// LogNotifier writes alerts to a structured logger. It is the default
// notifier when no external channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs each alert.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Send(ctx context.Context, alert Alert) error {
	level := slog.LevelInfo
	if alert.Level == LevelCritical || alert.Level == LevelExceeded {
		level = slog.LevelWarn
	}
	attrs := []any{
		"id", alert.ID,
		"kind", string(alert.Kind),
		"subject", alert.SubjectID,
		"label", alert.Payload.Label,
		"value", alert.Payload.Value.String(),
		"target", alert.Payload.TargetLabel,
		"message", alert.Message,
	}
	if len(alert.Items) > 0 {
		attrs = append(attrs, "items", len(alert.Items))
	}
	l.logger.Log(ctx, level, alert.Title, attrs...)
	return nil
}
