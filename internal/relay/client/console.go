package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	banner       = "Start chatting with the bot. Type 'exit' to end the conversation."
	initialText  = "initial"
	exitCommand  = "exit"
	initialPause = time.Second
	sendPause    = 500 * time.Millisecond
	maxLineSize  = 1 << 20
)

// ConsoleOptions tune the console pacing. Zero values use the defaults.
type ConsoleOptions struct {
	PollInterval time.Duration
	InitialPause time.Duration
	SendPause    time.Duration
}

// RunConsole runs an interactive chat over in and out until the user types
// exit, in reaches EOF, or ctx is cancelled. Background polling stops
// before it returns.
func RunConsole(ctx context.Context, c *Client, in io.Reader, out io.Writer, opts ConsoleOptions) error {
	if opts.InitialPause <= 0 {
		opts.InitialPause = initialPause
	}
	if opts.SendPause <= 0 {
		opts.SendPause = sendPause
	}

	// Replies printed by the poller and prompts printed here share out.
	w := &lockedWriter{w: out}

	fmt.Fprintln(w, banner)

	if _, err := c.StartConversation(ctx); err != nil {
		slog.WarnContext(ctx, "start conversation failed", slog.Any("error", err))
		fmt.Fprintln(w, "Failed to start conversation.")
	} else {
		fmt.Fprintln(w, "Conversation started successfully.")
	}

	pollCtx, stopPolling := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		NewPoller(c, w, opts.PollInterval).Run(pollCtx)
	}()
	defer func() {
		stopPolling()
		wg.Wait()
	}()

	send := func(text string) {
		if err := c.SendMessage(ctx, text); err != nil {
			slog.WarnContext(ctx, "send message failed", slog.Any("error", err))
			fmt.Fprintln(w, "Error posting message to bot.")
		}
	}

	send(initialText)
	if !sleep(ctx, opts.InitialPause) {
		return ctx.Err()
	}

	lines, readErr := readLines(ctx, in)
	for {
		fmt.Fprint(w, "You: ")
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			if err := readErr(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		}
		if strings.EqualFold(line, exitCommand) {
			return nil
		}
		send(line)
		if !sleep(ctx, opts.SendPause) {
			return ctx.Err()
		}
	}
}

// readLines feeds in line by line so the console loop can also watch ctx.
// The returned func reports the read error, if any, once lines is closed.
func readLines(ctx context.Context, in io.Reader) (<-chan string, func() error) {
	lines := make(chan string)
	var err error
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimRight(scanner.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
		err = scanner.Err()
	}()
	return lines, func() error { return err }
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
