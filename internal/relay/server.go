package relay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pitabwire/frame/workerpool"
	"github.com/rs/xid"

	"github.com/voicetyped/profilebot/pkg/dialog"
	"github.com/voicetyped/profilebot/pkg/directline"
	"github.com/voicetyped/profilebot/pkg/events"
	"github.com/voicetyped/profilebot/pkg/metrics"
)

const (
	maxRequestBodySize     = 1 << 20 // 1 MiB
	defaultConversationTTL = time.Hour
	defaultReaperInterval  = time.Minute
	defaultBotID           = "profilebot"
	channelID              = "directline"
)

// Turner runs dialog turns for a conversation. *dialog.Engine implements it.
type Turner interface {
	HandleTurn(ctx context.Context, key, text string, send dialog.SendFunc) (dialog.Directive, error)
	Reset(ctx context.Context, key string) error
}

// Config holds the relay's credentials and limits.
type Config struct {
	// Secret is the shared key clients present as a bearer credential.
	Secret string
	// SigningKey signs conversation tokens. Defaults to Secret.
	SigningKey      string
	TokenTTL        time.Duration
	ConversationTTL time.Duration
	ReaperInterval  time.Duration
	BotID           string
	BotName         string
}

func (c Config) withDefaults() Config {
	if c.SigningKey == "" {
		c.SigningKey = c.Secret
	}
	if c.ConversationTTL <= 0 {
		c.ConversationTTL = defaultConversationTTL
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = defaultReaperInterval
	}
	if c.BotID == "" {
		c.BotID = defaultBotID
	}
	return c
}

// Option configures a Server.
type Option func(*Server)

// WithWorkerPool runs background work on pool instead of bare goroutines.
func WithWorkerPool(pool workerpool.WorkerPool) Option {
	return func(s *Server) { s.pool = pool }
}

// WithPublisher emits conversation events on pub.
func WithPublisher(pub *events.Publisher) Option {
	return func(s *Server) { s.publisher = pub }
}

// WithMetrics records relay metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
		s.tokens.now = now
	}
}

// Server exposes the Direct Line style REST API and feeds user messages to
// the dialog engine.
type Server struct {
	cfg       Config
	engine    Turner
	convs     *conversationStore
	tokens    *TokenIssuer
	pool      workerpool.WorkerPool
	publisher *events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewServer creates a relay server. cfg.Secret is required.
func NewServer(cfg Config, engine Turner, opts ...Option) (*Server, error) {
	if cfg.Secret == "" {
		return nil, errors.New("relay: secret is required")
	}
	if engine == nil {
		return nil, errors.New("relay: engine is required")
	}
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:    cfg,
		engine: engine,
		convs:  newConversationStore(),
		tokens: NewTokenIssuer(cfg.SigningKey, cfg.TokenTTL),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterRoutes registers all relay routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v3/directline/tokens/generate", s.GenerateToken)
	mux.HandleFunc("POST /v3/directline/conversations", s.StartConversation)
	mux.HandleFunc("POST /v3/directline/conversations/{id}/activities", s.PostActivity)
	mux.HandleFunc("GET /v3/directline/conversations/{id}/activities", s.GetActivities)
	mux.HandleFunc("GET /healthz", s.Health)
	mux.Handle("GET /metrics", s.metrics.Handler())
}

// StartReaper begins the background conversation TTL reaper.
func (s *Server) StartReaper(ctx context.Context) {
	reap := func() {
		ticker := time.NewTicker(s.cfg.ReaperInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reapIdle(ctx)
			}
		}
	}
	if s.pool != nil {
		if err := s.pool.Submit(ctx, reap); err == nil {
			return
		}
	}
	go reap()
}

func (s *Server) reapIdle(ctx context.Context) {
	ids := s.convs.reap(s.now().Add(-s.cfg.ConversationTTL))
	for _, id := range ids {
		slog.Info("reaping idle conversation", slog.String("conversation_id", id))
		if err := s.engine.Reset(ctx, id); err != nil {
			slog.Warn("reset dialog state failed",
				slog.String("conversation_id", id), slog.Any("error", err))
		}
	}
	if len(ids) > 0 {
		s.metrics.Reaped(len(ids))
		s.metrics.SetConversations(s.convs.len())
	}
}

// principal is the authenticated caller. An empty conversationID means the
// caller presented the shared secret.
type principal struct {
	conversationID string
}

func (p principal) canAccess(id string) bool {
	return p.conversationID == "" || p.conversationID == id
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (principal, bool) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		writeError(w, http.StatusUnauthorized, directline.CodeUnauthorized, "missing bearer credential")
		return principal{}, false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Secret)) == 1 {
		return principal{}, true
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		writeError(w, http.StatusForbidden, directline.CodeForbidden, "invalid credential")
		return principal{}, false
	}
	return principal{conversationID: id}, true
}

// GenerateToken issues a token bound to a new conversation id.
func (s *Server) GenerateToken(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if p.conversationID != "" {
		writeError(w, http.StatusForbidden, directline.CodeForbidden, "tokens can only be generated with the secret")
		return
	}

	id := xid.New().String()
	token, err := s.tokens.Issue(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, directline.CodeServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, directline.Conversation{
		ConversationID: id,
		Token:          token,
		ExpiresIn:      int(s.tokens.TTL().Seconds()),
	})
}

// StartConversation opens a conversation. With a token the conversation id
// comes from the token; with the secret a new id is allocated.
func (s *Server) StartConversation(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	id := p.conversationID
	if id == "" {
		id = xid.New().String()
	}
	s.convs.create(id, s.now())
	s.metrics.SetConversations(s.convs.len())

	token, err := s.tokens.Issue(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, directline.CodeServerError, err.Error())
		return
	}

	if err := s.publisher.Emit(r.Context(), events.ConversationCreated, id, &events.ConversationCreatedData{ConversationID: id}); err != nil {
		slog.WarnContext(r.Context(), "emit event failed", slog.Any("error", err))
	}

	writeJSON(w, http.StatusCreated, directline.Conversation{
		ConversationID: id,
		Token:          token,
		ExpiresIn:      int(s.tokens.TTL().Seconds()),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*conversation, bool) {
	p, ok := s.authenticate(w, r)
	if !ok {
		return nil, false
	}
	id := r.PathValue("id")
	if !p.canAccess(id) {
		writeError(w, http.StatusForbidden, directline.CodeForbidden, "token is not valid for this conversation")
		return nil, false
	}
	c, ok := s.convs.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, directline.CodeNotFound, fmt.Sprintf("conversation %q not found", id))
		return nil, false
	}
	return c, true
}

// PostActivity appends a user activity and, for messages, runs one dialog
// turn whose replies are appended as bot activities.
func (s *Server) PostActivity(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var in directline.Activity
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, directline.CodeBadArgument, "invalid request body")
		return
	}
	if in.Type == "" {
		writeError(w, http.StatusBadRequest, directline.CodeBadArgument, "activity type is required")
		return
	}
	if in.From.ID == "" {
		writeError(w, http.StatusBadRequest, directline.CodeBadArgument, "from.id is required")
		return
	}
	if in.From.ID == s.cfg.BotID {
		writeError(w, http.StatusBadRequest, directline.CodeBadArgument, "from.id is reserved")
		return
	}
	in.ChannelID = channelID
	in.ReplyToID = ""

	userAct, err := c.append(in, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, directline.CodeBadArgument, err.Error())
		return
	}

	if userAct.Type == directline.ActivityTypeMessage {
		send := func(text string) error {
			_, err := c.append(directline.Activity{
				Type:      directline.ActivityTypeMessage,
				ChannelID: channelID,
				From:      directline.ChannelAccount{ID: s.cfg.BotID, Name: s.cfg.BotName},
				Text:      text,
				ReplyToID: userAct.ID,
			}, s.now())
			return err
		}
		if _, err := s.engine.HandleTurn(r.Context(), c.id, userAct.Text, send); err != nil {
			slog.ErrorContext(r.Context(), "dialog turn failed",
				slog.String("conversation_id", c.id), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, directline.CodeServerError, "dialog turn failed")
			return
		}
	}

	writeJSON(w, http.StatusOK, directline.ResourceResponse{ID: userAct.ID})
}

// GetActivities returns the activities after the watermark query parameter.
func (s *Server) GetActivities(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}

	wm, err := parseWatermark(r.URL.Query().Get("watermark"))
	if err != nil {
		writeError(w, http.StatusBadRequest, directline.CodeBadArgument, err.Error())
		return
	}

	activities, watermark := c.since(wm, s.now())
	writeJSON(w, http.StatusOK, directline.ActivitySet{
		Activities: activities,
		Watermark:  watermark,
	})
}

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"conversations": s.convs.len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, directline.ErrorResponse{Error: directline.APIError{Code: code, Message: msg}})
}
