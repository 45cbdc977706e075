package dialog

import (
	"strconv"
	"strings"
	"testing"
)

func TestRenderSummaryMissingFieldIsEmpty(t *testing.T) {
	s := NewConversationState("k", "d", t0)
	s.Answers = []Answer{{Name: "name", Value: "Alice"}}

	got, err := RenderSummary("{{.Fields.name}}/{{.Fields.location}}", s)
	if err != nil {
		t.Fatalf("RenderSummary: %v", err)
	}
	if got != "Alice/" {
		t.Errorf("got %q, want %q", got, "Alice/")
	}
}

func TestRenderSummaryDoesNotEscape(t *testing.T) {
	s := NewConversationState("k", "d", t0)
	s.Answers = []Answer{{Name: "location", Value: "<Rock & Roll>"}}

	got, err := RenderSummary("{{.Fields.location}}", s)
	if err != nil {
		t.Fatalf("RenderSummary: %v", err)
	}
	if got != "<Rock & Roll>" {
		t.Errorf("got %q", got)
	}
}

func TestRenderSummaryOutputCap(t *testing.T) {
	s := NewConversationState("k", "d", t0)
	for i := range 70 {
		s.Answers = append(s.Answers, Answer{Name: strconv.Itoa(i), Value: strings.Repeat("a", 1024)})
	}

	if _, err := RenderSummary(defaultSummary, s); err == nil {
		t.Error("expected output cap error")
	}
}
