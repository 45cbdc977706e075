package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voicetyped/profilebot/pkg/events"
	"github.com/voicetyped/profilebot/pkg/hooks"
	"github.com/voicetyped/profilebot/pkg/metrics"
)

// SendFunc delivers one outgoing message to the user.
type SendFunc func(text string) error

// DialogSource resolves waterfalls by name. *Loader and Dialogs implement it.
type DialogSource interface {
	Get(name string) (*StateMachine, bool)
}

// Dialogs is a fixed set of state machines keyed by waterfall name.
type Dialogs map[string]*StateMachine

func (d Dialogs) Get(name string) (*StateMachine, bool) {
	sm, ok := d[name]
	return sm, ok
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithHooks enables on_complete hooks.
func WithHooks(exec *hooks.Executor) EngineOption {
	return func(e *Engine) { e.hooks = exec }
}

// WithPublisher emits dialog events on pub.
func WithPublisher(pub *events.Publisher) EngineOption {
	return func(e *Engine) { e.publisher = pub }
}

// WithMetrics records turn metrics on m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// Engine drives waterfalls for many conversations. Turns for the same
// conversation key run one at a time.
type Engine struct {
	dialogs       DialogSource
	defaultDialog string
	states        StateStore
	profiles      ProfileStore

	hooks     *hooks.Executor
	publisher *events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time

	locks *keyLocks
}

// NewEngine creates an engine that starts new conversations on defaultDialog.
func NewEngine(dialogs DialogSource, defaultDialog string, states StateStore, profiles ProfileStore, opts ...EngineOption) *Engine {
	e := &Engine{
		dialogs:       dialogs,
		defaultDialog: defaultDialog,
		states:        states,
		profiles:      profiles,
		now:           time.Now,
		locks:         newKeyLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleTurn runs one user turn for key. Messages are passed to send in
// order after the new state has been stored.
func (e *Engine) HandleTurn(ctx context.Context, key, text string, send SendFunc) (Directive, error) {
	unlock := e.locks.lock(key)
	defer unlock()

	start := e.now()

	state, err := e.states.Load(ctx, key)
	if err != nil {
		return Directive{}, fmt.Errorf("load state %q: %w", key, err)
	}

	var (
		sm  *StateMachine
		out Outcome
	)
	if state != nil {
		var ok bool
		sm, ok = e.dialogs.Get(state.Dialog)
		if !ok {
			slog.Warn("dialog no longer loaded, restarting conversation",
				slog.String("key", key), slog.String("dialog", state.Dialog))
			state = nil
		}
	}

	if state == nil {
		var ok bool
		sm, ok = e.dialogs.Get(e.defaultDialog)
		if !ok {
			return Directive{}, fmt.Errorf("dialog %q not found", e.defaultDialog)
		}
		out = sm.Start(key, start)
		e.metrics.DialogStarted()
		e.emit(ctx, events.DialogStarted, key, &events.DialogStartedData{DialogName: sm.Name()})
	} else {
		e.emit(ctx, events.TurnReceived, key, &events.TurnReceivedData{
			DialogName: sm.Name(),
			State:      state.Label(),
			Length:     len(text),
		})
		out, err = sm.Step(*state, text, start)
		if err != nil {
			e.emit(ctx, events.SystemError, key, &events.ErrorData{Op: "step", Error: err.Error()})
			return Directive{}, fmt.Errorf("step %q: %w", key, err)
		}
		e.recordOutcome(ctx, sm, *state, out)
	}

	saved, err := e.applyEffect(ctx, sm, out)
	if err != nil {
		return Directive{}, err
	}

	if out.State.Phase == PhaseCompleted {
		if err := e.states.Delete(ctx, key); err != nil {
			return Directive{}, fmt.Errorf("delete state %q: %w", key, err)
		}
	} else {
		if err := e.states.Save(ctx, &out.State); err != nil {
			return Directive{}, fmt.Errorf("save state %q: %w", key, err)
		}
	}

	e.metrics.ObserveTurn(sm.Name(), string(out.State.Phase), e.now().Sub(start))

	for _, msg := range out.Messages {
		if send == nil {
			break
		}
		if err := send(msg); err != nil {
			return Directive{}, fmt.Errorf("send message: %w", err)
		}
	}

	// Detached from the caller: the turn is already committed.
	if saved {
		e.runHook(context.WithoutCancel(ctx), sm, key, out.State.FieldMap())
	}

	return sm.Directive(out), nil
}

// Reset drops any in-flight state for key. The next turn starts over.
func (e *Engine) Reset(ctx context.Context, key string) error {
	unlock := e.locks.lock(key)
	defer unlock()
	if err := e.states.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete state %q: %w", key, err)
	}
	return nil
}

func (e *Engine) recordOutcome(ctx context.Context, sm *StateMachine, prev ConversationState, out Outcome) {
	if out.Result != nil {
		e.metrics.ObserveValidation(out.Field, out.Result.Accepted)
		if out.Result.Accepted {
			e.emit(ctx, events.FieldAccepted, prev.Key, &events.FieldData{
				DialogName: sm.Name(),
				Field:      out.Field,
			})
		} else {
			e.emit(ctx, events.FieldRejected, prev.Key, &events.FieldData{
				DialogName: sm.Name(),
				Field:      out.Field,
				Reason:     out.Result.RejectionMessage,
			})
		}
	}

	if from, to := prev.Label(), out.State.Label(); from != to {
		e.emit(ctx, events.StateTransition, prev.Key, &events.StateTransitionData{
			FromState:    from,
			ToState:      to,
			TriggerEvent: lastTrigger(out.State),
			DialogName:   sm.Name(),
		})
	}
}

func lastTrigger(s ConversationState) string {
	if n := len(s.History); n > 0 {
		return s.History[n-1].Trigger
	}
	return ""
}

// applyEffect stores or discards the collected profile. It reports whether
// a profile was saved.
func (e *Engine) applyEffect(ctx context.Context, sm *StateMachine, out Outcome) (bool, error) {
	key := out.State.Key
	fields := out.State.FieldMap()

	switch out.Effect {
	case EffectSaveProfile:
		profile, ok, err := e.profiles.Get(ctx, key)
		if err != nil {
			return false, fmt.Errorf("get profile %q: %w", key, err)
		}
		if !ok || profile == nil {
			profile = &UserProfile{Key: key}
		}
		profile.Dialog = sm.Name()
		profile.Merge(fields, e.now())
		if err := e.profiles.Set(ctx, profile); err != nil {
			return false, fmt.Errorf("set profile %q: %w", key, err)
		}

		e.emit(ctx, events.ProfileSaved, key, &events.ProfileData{DialogName: sm.Name(), Fields: fields})
		e.finish(ctx, sm, out, true)
		return true, nil

	case EffectDiscardProfile:
		e.emit(ctx, events.ProfileDiscarded, key, &events.ProfileData{DialogName: sm.Name()})
		e.finish(ctx, sm, out, false)
	}
	return false, nil
}

func (e *Engine) finish(ctx context.Context, sm *StateMachine, out Outcome, saved bool) {
	e.metrics.DialogCompleted(sm.Name(), saved)
	e.emit(ctx, events.DialogCompleted, out.State.Key, &events.DialogCompletedData{
		DialogName:  sm.Name(),
		Saved:       saved,
		Transitions: len(out.State.History),
	})
}

// runHook calls the waterfall's on_complete hook after the turn has been
// committed and its messages sent. Hook errors are non-fatal.
func (e *Engine) runHook(ctx context.Context, sm *StateMachine, key string, fields map[string]string) {
	cfg := sm.Waterfall().OnComplete
	if e.hooks == nil || cfg == nil {
		return
	}
	_, err := e.hooks.Execute(ctx, *cfg, hooks.CompletionRequest{
		SessionID: key,
		Dialog:    sm.Name(),
		Fields:    fields,
	})
	if err != nil {
		e.metrics.HookFailed()
		slog.Warn("on_complete hook failed",
			slog.String("key", key), slog.String("dialog", sm.Name()), slog.Any("error", err))
	}
}

func (e *Engine) emit(ctx context.Context, t events.EventType, key string, data any) {
	if err := e.publisher.Emit(ctx, t, key, data); err != nil {
		slog.Warn("emit event failed", slog.String("type", string(t)), slog.Any("error", err))
	}
}
