package dialog

import (
	"strings"
	"testing"
)

func TestNameValidator(t *testing.T) {
	name := DefaultWaterfall().withDefaults().Fields[0].Spec()

	tests := []struct {
		input string
		want  ValidationResult
	}{
		{"Alice", Accept()},
		{"Mary Jane", Accept()},
		{"Zoë", Accept()},
		{"", Accept()},
		{strings.Repeat("a", 35), Accept()},
		{strings.Repeat("a", 36), Reject("Your name is too long!")},
		{strings.Repeat("é", 35), Accept()},
		{"R2D2", Reject("Your name cannot contain numbers!")},
		{"O'Brien", Reject("Your name cannot contain punctuation!")},
		{"Anne-Marie", Reject("Your name cannot contain punctuation!")},
		{"Bob!", Reject("Your name cannot contain punctuation!")},
		// Length is checked before digits, digits before punctuation.
		{strings.Repeat("1", 40), Reject("Your name is too long!")},
		{"B0b.", Reject("Your name cannot contain numbers!")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := name.Validate(tt.input); got != tt.want {
				t.Errorf("Validate(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFreeTextValidators(t *testing.T) {
	fields := DefaultWaterfall().withDefaults().Fields

	tests := []struct {
		field int
		input string
		want  ValidationResult
	}{
		{1, "Paris, France", Accept()},
		{1, strings.Repeat("x", 300), Accept()},
		{1, strings.Repeat("x", 301), Reject("Location is too long!")},
		{2, "Gate 42!", Accept()},
		{2, strings.Repeat("x", 301), Reject("Destination is too long!")},
	}

	for _, tt := range tests {
		spec := fields[tt.field].Spec()
		if got := spec.Validate(tt.input); got != tt.want {
			t.Errorf("%s.Validate(len %d) = %+v, want %+v", spec.Name, len(tt.input), got, tt.want)
		}
	}
}

func TestFieldWithoutRulesAcceptsAnything(t *testing.T) {
	spec := Field{Name: "note", Prompt: "Note?"}.Spec()
	if res := spec.Validate(strings.Repeat("1!", 1000)); !res.Accepted {
		t.Errorf("expected acceptance, got %+v", res)
	}
}

func TestParseConfirmation(t *testing.T) {
	tests := []struct {
		input    string
		want, ok bool
	}{
		{"yes", true, true},
		{" Yes ", true, true},
		{"YES!", true, true},
		{"y", true, true},
		{"ok", true, true},
		{"no", false, true},
		{"No.", false, true},
		{"nope", false, true},
		{"maybe", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		got, ok := ParseConfirmation(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseConfirmation(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}
