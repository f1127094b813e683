package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
)

// RunLogSink drains messages and logs each decoded event until ctx is done
// or the channel closes. Every message is acked, malformed ones included.
func RunLogSink(ctx context.Context, messages <-chan *message.Message, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event RunnerEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logger.Warn("Dropping malformed runner event", "message_uuid", msg.UUID, "error", err)
			} else {
				logger.Info("Runner event",
					"event_id", event.ID,
					"event_type", event.Type,
					"data", event.Data)
			}
			msg.Ack()
		}
	}
}
