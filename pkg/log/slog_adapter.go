package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol trace events to an slog.Logger.
// Useful for development when you want to see device traffic in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given
// slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.Model != "" {
		attrs = append(attrs, slog.String("model", event.Model))
	}
	if event.Serial != "" {
		attrs = append(attrs, slog.String("serial", event.Serial))
	}

	switch {
	case event.Packet != nil:
		attrs = append(attrs,
			slog.Int("packet_size", event.Packet.Size),
			slog.Bool("truncated", event.Packet.Truncated),
		)
	case event.Command != nil:
		attrs = append(attrs,
			slog.String("command", event.Command.CommandName),
			slog.Uint64("seq", uint64(event.Command.Sequence)),
			slog.Int("body_size", event.Command.BodySize),
		)
		if event.Command.Matched != nil {
			attrs = append(attrs, slog.Bool("matched", *event.Command.Matched))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "jensen", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
