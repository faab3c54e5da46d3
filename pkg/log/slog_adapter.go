package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see netlink traffic in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
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

	// Add type-specific attributes
	switch {
	case event.Message != nil:
		attrs = append(attrs,
			slog.Uint64("seq", uint64(event.Message.Sequence)),
			slog.Uint64("family", uint64(event.Message.Family)),
			slog.Uint64("command", uint64(event.Message.Command)),
			slog.Uint64("version", uint64(event.Message.Version)),
		)
		if event.Message.Multipart {
			attrs = append(attrs, slog.Bool("multipart", true))
		}
		if event.Message.PayloadLen > 0 {
			attrs = append(attrs, slog.Int("payload_len", event.Message.PayloadLen))
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
			slog.Uint64("seq", uint64(event.Error.Sequence)),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int64("errno", int64(*event.Error.Code)))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "netlink", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
