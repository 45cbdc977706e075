package hooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/voicetyped/profilebot/pkg/events"
	"github.com/voicetyped/profilebot/pkg/urlvalidation"
)

// SignatureHeader carries the HMAC of the request body for "hmac" hooks.
const SignatureHeader = "X-Hook-Signature"

// ErrCircuitOpen is returned while a hook URL's breaker is open.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Executor calls external hook endpoints.
type Executor struct {
	httpClient   *http.Client
	publisher    *events.Publisher
	validateOpts []urlvalidation.Option
	breakers     *breakers
}

// NewExecutor creates a new hook executor.
func NewExecutor(publisher *events.Publisher, validateOpts ...urlvalidation.Option) *Executor {
	return &Executor{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		publisher:    publisher,
		validateOpts: validateOpts,
		breakers:     newBreakers(DefaultBreakerConfig),
	}
}

// WithBreaker replaces the circuit breaker settings and returns e.
func (e *Executor) WithBreaker(cfg BreakerConfig) *Executor {
	e.breakers = newBreakers(cfg)
	return e
}

// BreakerState reports the breaker state for url as "closed", "open" or
// "half-open".
func (e *Executor) BreakerState(url string) string {
	return e.breakers.state(url).String()
}

// Execute posts req to the hook endpoint and decodes its response.
// An empty response body is a valid reply.
func (e *Executor) Execute(ctx context.Context, cfg HookConfig, req CompletionRequest) (*HookResponse, error) {
	if err := urlvalidation.ValidateHookURL(cfg.URL, e.validateOpts...); err != nil {
		return nil, fmt.Errorf("hook URL validation: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal hook request: %w", err)
	}

	cb := e.breakers.get(cfg.URL)
	if cb == nil {
		return e.post(ctx, cfg, req.SessionID, body)
	}
	resp, err := cb.Execute(func() (*HookResponse, error) {
		return e.post(ctx, cfg, req.SessionID, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		e.emitError(ctx, req.SessionID, cfg.URL, err.Error())
		return nil, fmt.Errorf("hook %s: %w", cfg.URL, err)
	}
	return resp, err
}

func (e *Executor) post(ctx context.Context, cfg HookConfig, sessionID string, body []byte) (*HookResponse, error) {

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create hook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	switch cfg.AuthType {
	case "bearer":
		httpReq.Header.Set("Authorization", "Bearer "+cfg.AuthSecret)
	case "hmac":
		httpReq.Header.Set(SignatureHeader, Sign(cfg.AuthSecret, body))
	}

	for k, v := range cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		e.emitError(ctx, sessionID, cfg.URL, err.Error())
		return nil, fmt.Errorf("hook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	// Drain remainder for connection reuse.
	io.Copy(io.Discard, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read hook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMsg := fmt.Sprintf("hook returned HTTP %d: %s", resp.StatusCode, string(respBody))
		e.emitError(ctx, sessionID, cfg.URL, errMsg)
		return nil, fmt.Errorf("%s", errMsg)
	}

	var hookResp HookResponse
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &hookResp); err != nil {
			return nil, fmt.Errorf("unmarshal hook response: %w", err)
		}
	}

	if e.publisher != nil {
		_ = e.publisher.Emit(ctx, events.HookResult, sessionID, &events.HookResultData{
			HookURL:    cfg.URL,
			StatusCode: resp.StatusCode,
			Response:   hookResp.Data,
		})
	}

	return &hookResp, nil
}

func (e *Executor) emitError(ctx context.Context, sessionID, url, msg string) {
	if e.publisher == nil {
		return
	}
	_ = e.publisher.Emit(ctx, events.HookError, sessionID, &events.HookErrorData{
		HookURL: url,
		Error:   msg,
	})
}

// Sign produces an HMAC-SHA256 signature in the format "sha256=<hex>".
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%x", mac.Sum(nil))
}
