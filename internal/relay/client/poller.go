package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultPollInterval is the cadence of background polls.
const DefaultPollInterval = 500 * time.Millisecond

// Poller periodically polls a Client and prints bot replies.
type Poller struct {
	client   *Client
	out      io.Writer
	interval time.Duration
}

// NewPoller creates a poller writing replies to out. A non-positive
// interval uses DefaultPollInterval.
func NewPoller(c *Client, out io.Writer, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{client: c, out: out, interval: interval}
}

// Run polls until ctx is cancelled. Poll failures are logged and the
// cadence continues.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
				slog.WarnContext(ctx, "polling for messages failed", slog.Any("error", err))
			}
		}
	}
}

// PollOnce runs a single poll and prints each reply as "Bot: <text>".
func (p *Poller) PollOnce(ctx context.Context) error {
	activities, err := p.client.PollForMessages(ctx)
	if err != nil {
		return err
	}
	for _, a := range activities {
		fmt.Fprintf(p.out, "Bot: %s\n", a.Text)
	}
	return nil
}
