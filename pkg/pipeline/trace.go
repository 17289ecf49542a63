package pipeline

import (
	"context"
	"log/slog"

	"github.com/sirosfoundation/go-soapmep/pkg/message"
)

// TraceName is the registry name of the trace phase
const TraceName = "trace"

// Trace returns a phase that logs every message passing through it
func Trace(logger *slog.Logger) Phase {
	if logger == nil {
		logger = slog.Default()
	}
	return NewPhase(TraceName, func(ctx context.Context, msg *message.Message) (*message.Message, error) {
		logger.DebugContext(ctx, "message in flow",
			slog.String("message_id", msg.ID),
			slog.String("direction", msg.Direction().String()),
			slog.String("action", msg.Action),
			slog.String("relates_to", msg.RelatesTo))
		return msg, nil
	})
}
