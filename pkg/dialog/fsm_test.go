package dialog

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/voicetyped/profilebot/pkg/hooks"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func defaultMachine(t *testing.T) *StateMachine {
	t.Helper()
	sm := NewStateMachine(DefaultWaterfall())
	if err := sm.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return sm
}

func step(t *testing.T, sm *StateMachine, s ConversationState, input string) Outcome {
	t.Helper()
	out, err := sm.Step(s, input, t0)
	if err != nil {
		t.Fatalf("Step(%q): %v", input, err)
	}
	return out
}

func TestStateMachineValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(w *Waterfall)
	}{
		{
			name:   "missing name",
			modify: func(w *Waterfall) { w.Name = "" },
		},
		{
			name:   "no fields",
			modify: func(w *Waterfall) { w.Fields = nil },
		},
		{
			name:   "empty field name",
			modify: func(w *Waterfall) { w.Fields[1].Name = "" },
		},
		{
			name:   "duplicate field name",
			modify: func(w *Waterfall) { w.Fields[2].Name = "name" },
		},
		{
			name:   "empty prompt",
			modify: func(w *Waterfall) { w.Fields[0].Prompt = "" },
		},
		{
			name:   "negative max length",
			modify: func(w *Waterfall) { w.Fields[0].MaxLength = -1 },
		},
		{
			name:   "bad summary template",
			modify: func(w *Waterfall) { w.Summary = "{{.Fields.name" },
		},
		{
			name:   "hook without url",
			modify: func(w *Waterfall) { w.OnComplete = &hooks.HookConfig{} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWaterfall()
			tt.modify(w)
			if err := NewStateMachine(w).Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestStartAsksFirstQuestion(t *testing.T) {
	sm := defaultMachine(t)
	out := sm.Start("c1", t0)

	if !out.Started {
		t.Error("expected Started")
	}
	if out.State.Phase != PhaseAwaitingField || out.State.StepIndex != 0 {
		t.Errorf("state = %s, want awaiting_field:0", out.State.Label())
	}
	if !slices.Equal(out.Messages, []string{"Please enter Your first name:"}) {
		t.Errorf("messages = %q", out.Messages)
	}
	if len(out.State.History) != 1 {
		t.Errorf("history length = %d, want 1", len(out.State.History))
	}
}

func TestHappyPath(t *testing.T) {
	sm := defaultMachine(t)
	s := sm.Start("c1", t0).State

	out := step(t, sm, s, "Alice")
	if !slices.Equal(out.Messages, []string{"Please enter Your location:"}) {
		t.Errorf("after name: %q", out.Messages)
	}

	out = step(t, sm, out.State, "Paris")
	if !slices.Equal(out.Messages, []string{"Please enter Your destination:"}) {
		t.Errorf("after location: %q", out.Messages)
	}

	out = step(t, sm, out.State, "Rome")
	want := []string{
		"I have Your name as Alice, location: Paris, destination: Rome.",
		"Is collected data correct?",
	}
	if !slices.Equal(out.Messages, want) {
		t.Errorf("summary messages = %q, want %q", out.Messages, want)
	}
	if out.State.Phase != PhaseAwaitingConfirmation {
		t.Fatalf("phase = %q, want awaiting_confirmation", out.State.Phase)
	}
	if d := sm.Directive(out); !d.Continue || d.Prompt != "Is collected data correct?" {
		t.Errorf("directive = %+v", d)
	}

	out = step(t, sm, out.State, "yes")
	if out.Effect != EffectSaveProfile {
		t.Errorf("effect = %v, want save_profile", out.Effect)
	}
	if !slices.Equal(out.Messages, []string{"Your profile was saved successfully."}) {
		t.Errorf("confirm messages = %q", out.Messages)
	}
	if out.State.Phase != PhaseCompleted {
		t.Errorf("phase = %q, want completed", out.State.Phase)
	}
	if !sm.Directive(out).Ended() {
		t.Error("expected directive to end the dialog")
	}
}

func TestDeclinedConfirmation(t *testing.T) {
	sm := defaultMachine(t)
	s := sm.Start("c1", t0).State
	for _, in := range []string{"Alice", "Paris", "Rome"} {
		s = step(t, sm, s, in).State
	}

	out := step(t, sm, s, "no")
	if out.Effect != EffectDiscardProfile {
		t.Errorf("effect = %v, want discard_profile", out.Effect)
	}
	if !slices.Equal(out.Messages, []string{"Your profile was not saved."}) {
		t.Errorf("messages = %q", out.Messages)
	}
	if out.Confirmed == nil || *out.Confirmed {
		t.Error("expected Confirmed=false")
	}
}

func TestUnrecognizedConfirmationRetries(t *testing.T) {
	sm := defaultMachine(t)
	s := sm.Start("c1", t0).State
	for _, in := range []string{"Alice", "Paris", "Rome"} {
		s = step(t, sm, s, in).State
	}

	out := step(t, sm, s, "perhaps")
	want := []string{"Please answer yes or no.", "Is collected data correct?"}
	if !slices.Equal(out.Messages, want) {
		t.Errorf("messages = %q, want %q", out.Messages, want)
	}
	if out.Effect != EffectNone || out.State.Phase != PhaseAwaitingConfirmation {
		t.Errorf("effect = %v phase = %q", out.Effect, out.State.Phase)
	}
}

func TestRejectionRepromptsWithoutStoring(t *testing.T) {
	sm := defaultMachine(t)
	s := sm.Start("c1", t0).State

	out := step(t, sm, s, "R2D2")
	want := []string{"Your name cannot contain numbers!", "Please enter Your first name:"}
	if !slices.Equal(out.Messages, want) {
		t.Errorf("messages = %q, want %q", out.Messages, want)
	}
	if out.Result == nil || out.Result.Accepted {
		t.Error("expected a rejected result")
	}
	if out.State.StepIndex != 0 || len(out.State.Answers) != 0 {
		t.Errorf("state advanced: %s answers=%v", out.State.Label(), out.State.Answers)
	}
}

func TestRepeatedRejectionsAreIdempotent(t *testing.T) {
	sm := defaultMachine(t)
	s := step(t, sm, sm.Start("c1", t0).State, "Alice").State

	long := strings.Repeat("x", 301)
	first := step(t, sm, s, long)
	second := step(t, sm, first.State, long)

	if !slices.Equal(first.Messages, second.Messages) {
		t.Errorf("messages differ: %q vs %q", first.Messages, second.Messages)
	}
	if first.State.Label() != second.State.Label() ||
		!slices.Equal(first.State.Answers, second.State.Answers) {
		t.Error("repeated rejection changed state")
	}
	if len(second.Messages) != 2 || second.Messages[0] != "Location is too long!" {
		t.Errorf("messages = %q", second.Messages)
	}
}

func TestCollectedFieldsFollowStepOrder(t *testing.T) {
	sm := defaultMachine(t)
	s := sm.Start("c1", t0).State
	inputs := []string{"Bad1", "Alice", strings.Repeat("y", 301), "Paris", "Rome"}
	names := []string{"name", "location", "destination"}

	for _, in := range inputs {
		s = step(t, sm, s, in).State
		if s.Phase != PhaseAwaitingField {
			break
		}
		if len(s.Answers) != s.StepIndex {
			t.Fatalf("step %d has %d answers", s.StepIndex, len(s.Answers))
		}
		for i, a := range s.Answers {
			if a.Name != names[i] {
				t.Errorf("answer %d = %q, want %q", i, a.Name, names[i])
			}
		}
	}

	got := s.FieldMap()
	want := map[string]string{"name": "Alice", "location": "Paris", "destination": "Rome"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %q = %q, want %q", k, got[k], v)
		}
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	sm := defaultMachine(t)
	s := sm.Start("c1", t0).State

	_ = step(t, sm, s, "Alice")
	if len(s.Answers) != 0 || s.StepIndex != 0 {
		t.Errorf("input state mutated: %s answers=%v", s.Label(), s.Answers)
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	sm := defaultMachine(t)
	s := ConversationState{Key: "c1", Dialog: sm.Name(), Phase: PhaseCompleted}

	out := step(t, sm, s, "anything")
	if len(out.Messages) != 0 || out.Effect != EffectNone {
		t.Errorf("completed state produced output: %+v", out)
	}
}

func TestStepRejectsInconsistentState(t *testing.T) {
	sm := defaultMachine(t)

	bad := []ConversationState{
		{Phase: PhaseAwaitingField, StepIndex: 5},
		{Phase: PhaseAwaitingField, StepIndex: 1},
		{Phase: "bogus"},
	}
	for _, s := range bad {
		if _, err := sm.Step(s, "x", t0); err == nil {
			t.Errorf("Step(%+v) expected error", s)
		}
	}
}

func TestDefaultSummaryListsAnswers(t *testing.T) {
	sm := NewStateMachine(&Waterfall{
		Name: "two",
		Fields: []Field{
			{Name: "a", Prompt: "A?"},
			{Name: "b", Prompt: "B?"},
		},
	})
	s := sm.Start("k", t0).State
	s = step(t, sm, s, "1").State
	out := step(t, sm, s, "2")

	if out.Messages[0] != "I have a: 1, b: 2." {
		t.Errorf("summary = %q", out.Messages[0])
	}
}

func TestHistoryIsBounded(t *testing.T) {
	s := NewConversationState("k", "d", t0)
	for i := range DefaultMaxHistory + 5 {
		s.recordTransition("a", "b", "t", t0.Add(time.Duration(i)*time.Second))
	}
	if len(s.History) > DefaultMaxHistory {
		t.Errorf("history length = %d, want <= %d", len(s.History), DefaultMaxHistory)
	}
}
