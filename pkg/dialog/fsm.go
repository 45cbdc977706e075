package dialog

import (
	"fmt"
	"time"
)

// Effect is a side effect the caller must apply after a transition.
type Effect int

const (
	EffectNone Effect = iota
	// EffectSaveProfile asks the caller to merge the collected answers into
	// the stored profile.
	EffectSaveProfile
	// EffectDiscardProfile marks a declined confirmation; nothing is stored.
	EffectDiscardProfile
)

func (e Effect) String() string {
	switch e {
	case EffectSaveProfile:
		return "save_profile"
	case EffectDiscardProfile:
		return "discard_profile"
	default:
		return "none"
	}
}

// Outcome is the result of one transition.
type Outcome struct {
	State    ConversationState
	Messages []string
	Effect   Effect

	// Started is set when the turn opened a new conversation.
	Started bool
	// Field and Result describe the validation run this turn, if any.
	Field  string
	Result *ValidationResult
	// Confirmed holds a recognized yes/no answer.
	Confirmed *bool
}

// Directive tells the transport whether the dialog expects another turn.
type Directive struct {
	Continue bool
	Prompt   string
}

// Ended reports whether the dialog finished on this turn.
func (d Directive) Ended() bool { return !d.Continue }

// StateMachine validates a waterfall and computes its transitions.
type StateMachine struct {
	waterfall Waterfall
	specs     []FieldSpec
}

// NewStateMachine creates a state machine from a waterfall definition.
func NewStateMachine(w *Waterfall) *StateMachine {
	full := w.withDefaults()
	specs := make([]FieldSpec, len(full.Fields))
	for i, f := range full.Fields {
		specs[i] = f.Spec()
	}
	return &StateMachine{waterfall: full, specs: specs}
}

// Validate checks the waterfall definition for consistency.
func (sm *StateMachine) Validate() error {
	w := sm.waterfall
	if w.Name == "" {
		return fmt.Errorf("waterfall: name is required")
	}
	if len(w.Fields) == 0 {
		return fmt.Errorf("waterfall %q: at least one field is required", w.Name)
	}

	seen := make(map[string]bool, len(w.Fields))
	for i, f := range w.Fields {
		if f.Name == "" {
			return fmt.Errorf("waterfall %q field %d: name is required", w.Name, i)
		}
		if seen[f.Name] {
			return fmt.Errorf("waterfall %q field %d: duplicate name %q", w.Name, i, f.Name)
		}
		seen[f.Name] = true
		if f.Prompt == "" {
			return fmt.Errorf("waterfall %q field %q: prompt is required", w.Name, f.Name)
		}
		if f.MaxLength < 0 {
			return fmt.Errorf("waterfall %q field %q: max_length must not be negative", w.Name, f.Name)
		}
	}

	if _, err := parseTemplate(w.Summary); err != nil {
		return fmt.Errorf("waterfall %q: summary template: %w", w.Name, err)
	}
	if w.OnComplete != nil && w.OnComplete.URL == "" {
		return fmt.Errorf("waterfall %q: on_complete url is required", w.Name)
	}

	return nil
}

// Waterfall returns the definition with defaults applied.
func (sm *StateMachine) Waterfall() Waterfall {
	return sm.waterfall
}

// Name returns the waterfall name.
func (sm *StateMachine) Name() string {
	return sm.waterfall.Name
}

// Fields returns the compiled field specs in step order.
func (sm *StateMachine) Fields() []FieldSpec {
	return sm.specs
}

// Start opens a conversation and asks the first question.
func (sm *StateMachine) Start(key string, at time.Time) Outcome {
	state := NewConversationState(key, sm.waterfall.Name, at)
	state.recordTransition("", state.Label(), "start", at)
	return Outcome{
		State:    state,
		Messages: []string{sm.specs[0].Prompt},
		Started:  true,
	}
}

// Step applies one user turn to state. It never mutates its argument.
func (sm *StateMachine) Step(state ConversationState, input string, at time.Time) (Outcome, error) {
	switch state.Phase {
	case PhaseAwaitingField:
		return sm.stepField(state.Clone(), input, at)
	case PhaseAwaitingConfirmation:
		return sm.stepConfirm(state.Clone(), input, at), nil
	case PhaseCompleted:
		return Outcome{State: state.Clone()}, nil
	default:
		return Outcome{}, fmt.Errorf("waterfall %q: unknown phase %q", sm.waterfall.Name, state.Phase)
	}
}

func (sm *StateMachine) stepField(state ConversationState, input string, at time.Time) (Outcome, error) {
	i := state.StepIndex
	if i < 0 || i >= len(sm.specs) {
		return Outcome{}, fmt.Errorf("waterfall %q: step %d out of range", sm.waterfall.Name, i)
	}
	if len(state.Answers) != i {
		return Outcome{}, fmt.Errorf("waterfall %q: step %d has %d answers", sm.waterfall.Name, i, len(state.Answers))
	}

	spec := sm.specs[i]
	res := spec.Validate(input)
	out := Outcome{Field: spec.Name, Result: &res}

	if !res.Accepted {
		out.State = state
		out.Messages = []string{res.RejectionMessage, spec.Prompt}
		return out, nil
	}

	from := state.Label()
	state.Answers = append(state.Answers, Answer{Name: spec.Name, Value: input})

	if i+1 < len(sm.specs) {
		state.StepIndex = i + 1
		state.recordTransition(from, state.Label(), spec.Name, at)
		out.State = state
		out.Messages = []string{sm.specs[i+1].Prompt}
		return out, nil
	}

	summary, err := RenderSummary(sm.waterfall.Summary, state)
	if err != nil {
		return Outcome{}, fmt.Errorf("waterfall %q: render summary: %w", sm.waterfall.Name, err)
	}
	state.StepIndex = i + 1
	state.Phase = PhaseAwaitingConfirmation
	state.recordTransition(from, state.Label(), spec.Name, at)
	out.State = state
	out.Messages = []string{summary, sm.waterfall.ConfirmPrompt}
	return out, nil
}

func (sm *StateMachine) stepConfirm(state ConversationState, input string, at time.Time) Outcome {
	confirmed, ok := ParseConfirmation(input)
	if !ok {
		return Outcome{
			State:    state,
			Messages: []string{sm.waterfall.ConfirmRetryPrompt, sm.waterfall.ConfirmPrompt},
		}
	}

	from := state.Label()
	state.Phase = PhaseCompleted
	out := Outcome{Confirmed: &confirmed}
	if confirmed {
		out.Effect = EffectSaveProfile
		out.Messages = []string{sm.waterfall.SavedMessage}
		state.recordTransition(from, state.Label(), "confirmed", at)
	} else {
		out.Effect = EffectDiscardProfile
		out.Messages = []string{sm.waterfall.NotSavedMessage}
		state.recordTransition(from, state.Label(), "declined", at)
	}
	out.State = state
	return out
}

// Directive describes what the transport should expect after o.
func (sm *StateMachine) Directive(o Outcome) Directive {
	switch o.State.Phase {
	case PhaseAwaitingField:
		return Directive{Continue: true, Prompt: sm.specs[o.State.StepIndex].Prompt}
	case PhaseAwaitingConfirmation:
		return Directive{Continue: true, Prompt: sm.waterfall.ConfirmPrompt}
	default:
		return Directive{}
	}
}
