package events

import (
	"context"
	"log/slog"
)

const logSubscriberID = "event-log"

// LogSubscriber subscribes to p right away and returns a loop that writes
// each event to logger until ctx is done. The loop unsubscribes on exit.
func LogSubscriber(p *Publisher, logger *slog.Logger) func(ctx context.Context) {
	ch := p.Subscribe(logSubscriberID, 256)
	return func(ctx context.Context) {
		defer p.Unsubscribe(logSubscriberID)
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-ch:
				if !ok {
					return
				}
				logger.InfoContext(ctx, "event",
					slog.String("type", string(env.Type)),
					slog.String("source", env.Source),
					slog.String("session_id", env.SessionID),
					slog.String("event_id", env.ID),
					slog.String("data", string(env.Data)))
			}
		}
	}
}
