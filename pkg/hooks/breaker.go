package hooks

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

const maxBreakers = 1000

// BreakerConfig controls the per-URL circuit breaker in front of hook calls.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that open the
	// breaker. Zero disables breaking.
	FailureThreshold int
	// ResetTimeout is how long an open breaker waits before a trial call.
	ResetTimeout time.Duration
}

// DefaultBreakerConfig opens after five straight failures for a minute.
var DefaultBreakerConfig = BreakerConfig{FailureThreshold: 5, ResetTimeout: time.Minute}

type breakers struct {
	cfg BreakerConfig

	mu    sync.Mutex
	byURL map[string]*gobreaker.CircuitBreaker[*HookResponse]
}

func newBreakers(cfg BreakerConfig) *breakers {
	return &breakers{cfg: cfg, byURL: make(map[string]*gobreaker.CircuitBreaker[*HookResponse])}
}

// get returns the breaker for url, or nil when breaking is disabled.
func (b *breakers) get(url string) *gobreaker.CircuitBreaker[*HookResponse] {
	if b.cfg.FailureThreshold <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.byURL[url]; ok {
		return cb
	}
	if len(b.byURL) >= maxBreakers {
		for k := range b.byURL {
			delete(b.byURL, k)
			break
		}
	}

	threshold := uint32(b.cfg.FailureThreshold)
	cb := gobreaker.NewCircuitBreaker[*HookResponse](gobreaker.Settings{
		Name:        url,
		MaxRequests: 1,
		Timeout:     b.cfg.ResetTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("hook circuit breaker state changed",
				slog.String("url", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	b.byURL[url] = cb
	return cb
}

func (b *breakers) state(url string) gobreaker.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.byURL[url]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}
