// Package client talks to a Direct Line style relay: it opens a
// conversation, posts user messages and polls for bot replies.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/voicetyped/profilebot/pkg/directline"
)

const (
	// DefaultEndpoint is the public Direct Line conversations URL.
	DefaultEndpoint = "https://directline.botframework.com/v3/directline/conversations"
	DefaultUserID   = "user1"
	DefaultTimeout  = 10 * time.Second

	maxResponseSize = 4 << 20
	errorBodyLimit  = 512
)

// Options configure a Client.
type Options struct {
	// Endpoint is the conversations collection URL.
	Endpoint string
	// Secret is sent as the bearer credential on every call.
	Secret     string
	UserID     string
	HTTPClient *http.Client
	// Timeout bounds each HTTP call.
	Timeout time.Duration
}

// Client holds one relay conversation. It is safe for concurrent use.
type Client struct {
	endpoint string
	secret   string
	userID   string
	http     *http.Client
	timeout  time.Duration

	mu             sync.Mutex
	conversationID string
	watermark      string

	// pollMu serialises polls so the watermark read and update of one poll
	// cannot interleave with another.
	pollMu sync.Mutex
}

// New creates a client. Zero option fields take their defaults.
func New(opts Options) *Client {
	c := &Client{
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		secret:   opts.Secret,
		userID:   opts.UserID,
		http:     opts.HTTPClient,
		timeout:  opts.Timeout,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.userID == "" {
		c.userID = DefaultUserID
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// UserID returns the local user id messages are sent as.
func (c *Client) UserID() string {
	return c.userID
}

// ConversationID returns the current conversation id, or "" before start.
func (c *Client) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// Watermark returns the last watermark received from the relay.
func (c *Client) Watermark() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watermark
}

// StartConversation opens a conversation and remembers its id. On failure
// the client stays without a conversation.
func (c *Client) StartConversation(ctx context.Context) (directline.Conversation, error) {
	var conv directline.Conversation
	status, err := c.do(ctx, http.MethodPost, c.endpoint, nil, &conv)
	if err != nil {
		return directline.Conversation{}, &TransportError{Op: ErrStartFailed, StatusCode: status, Err: err}
	}
	if conv.ConversationID == "" {
		return directline.Conversation{}, &TransportError{Op: ErrStartFailed, StatusCode: status, Err: errors.New("response has no conversationId")}
	}

	c.mu.Lock()
	c.conversationID = conv.ConversationID
	c.watermark = ""
	c.mu.Unlock()
	return conv, nil
}

// SendMessage posts text as a message from the local user.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	id := c.ConversationID()
	if id == "" {
		return &TransportError{Op: ErrSendFailed, Err: ErrNoConversation}
	}
	activity := directline.Activity{
		Type: directline.ActivityTypeMessage,
		From: directline.ChannelAccount{ID: c.userID},
		Text: text,
	}
	if status, err := c.do(ctx, http.MethodPost, c.activitiesURL(id), activity, nil); err != nil {
		return &TransportError{Op: ErrSendFailed, StatusCode: status, Err: err}
	}
	return nil
}

// PollForMessages fetches activities after the stored watermark, advances
// the watermark, and returns the ones not sent by the local user that carry
// text. Before a conversation exists it returns nil without a request.
func (c *Client) PollForMessages(ctx context.Context) ([]directline.Activity, error) {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	c.mu.Lock()
	id, watermark := c.conversationID, c.watermark
	c.mu.Unlock()
	if id == "" {
		return nil, nil
	}

	activities, next, err := c.FetchActivities(ctx, id, watermark)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.conversationID == id {
		c.watermark = next
	}
	c.mu.Unlock()

	var out []directline.Activity
	for _, a := range activities {
		if a.From.ID == c.userID || a.Text == "" {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// FetchActivities performs one unfiltered activities GET without touching
// the client's stored watermark.
func (c *Client) FetchActivities(ctx context.Context, conversationID, watermark string) ([]directline.Activity, string, error) {
	u := c.activitiesURL(conversationID) + "?watermark=" + url.QueryEscape(watermark)
	var set directline.ActivitySet
	if status, err := c.do(ctx, http.MethodGet, u, nil, &set); err != nil {
		return nil, "", &TransportError{Op: ErrPollFailed, StatusCode: status, Err: err}
	}
	return set.Activities, set.Watermark, nil
}

func (c *Client) activitiesURL(conversationID string) string {
	return c.endpoint + "/" + url.PathEscape(conversationID) + "/activities"
}

// do sends one request under the per-call timeout and decodes a 2xx JSON
// body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, u string, in, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, errorFromBody(resp)
	}
	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func errorFromBody(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	var apiErr directline.ErrorResponse
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("%s: %s", apiErr.Error.Code, apiErr.Error.Message)
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return fmt.Errorf("%s: %s", resp.Status, msg)
	}
	return errors.New(resp.Status)
}
