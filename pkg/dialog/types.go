package dialog

import "github.com/voicetyped/profilebot/pkg/hooks"

// Waterfall is a YAML-mappable definition of a linear data-collection dialog.
type Waterfall struct {
	Name               string            `yaml:"name"                 json:"name"`
	Version            string            `yaml:"version"              json:"version"`
	Description        string            `yaml:"description"          json:"description"`
	Fields             []Field           `yaml:"fields"               json:"fields"`
	Summary            string            `yaml:"summary"              json:"summary,omitempty"`
	ConfirmPrompt      string            `yaml:"confirm_prompt"       json:"confirm_prompt,omitempty"`
	ConfirmRetryPrompt string            `yaml:"confirm_retry_prompt" json:"confirm_retry_prompt,omitempty"`
	SavedMessage       string            `yaml:"saved_message"        json:"saved_message,omitempty"`
	NotSavedMessage    string            `yaml:"not_saved_message"    json:"not_saved_message,omitempty"`
	OnComplete         *hooks.HookConfig `yaml:"on_complete"          json:"on_complete,omitempty"`
}

// Field is one question of a waterfall together with its validation rules.
// Rules run in a fixed order: length, digits, punctuation.
type Field struct {
	Name               string `yaml:"name"                json:"name"`
	Prompt             string `yaml:"prompt"              json:"prompt"`
	MaxLength          int    `yaml:"max_length"          json:"max_length,omitempty"`
	TooLongMessage     string `yaml:"too_long_message"    json:"too_long_message,omitempty"`
	ForbidDigits       bool   `yaml:"forbid_digits"       json:"forbid_digits,omitempty"`
	DigitsMessage      string `yaml:"digits_message"      json:"digits_message,omitempty"`
	ForbidPunctuation  bool   `yaml:"forbid_punctuation"  json:"forbid_punctuation,omitempty"`
	PunctuationMessage string `yaml:"punctuation_message" json:"punctuation_message,omitempty"`
}

const (
	defaultConfirmPrompt      = "Is collected data correct?"
	defaultConfirmRetryPrompt = "Please answer yes or no."
	defaultSavedMessage       = "Your profile was saved successfully."
	defaultNotSavedMessage    = "Your profile was not saved."
	defaultSummary            = `I have {{range $i, $a := .Answers}}{{if $i}}, {{end}}{{$a.Name}}: {{$a.Value}}{{end}}.`
)

// withDefaults returns a copy of w with empty messages filled in.
func (w Waterfall) withDefaults() Waterfall {
	if w.ConfirmPrompt == "" {
		w.ConfirmPrompt = defaultConfirmPrompt
	}
	if w.ConfirmRetryPrompt == "" {
		w.ConfirmRetryPrompt = defaultConfirmRetryPrompt
	}
	if w.SavedMessage == "" {
		w.SavedMessage = defaultSavedMessage
	}
	if w.NotSavedMessage == "" {
		w.NotSavedMessage = defaultNotSavedMessage
	}
	if w.Summary == "" {
		w.Summary = defaultSummary
	}
	fields := make([]Field, len(w.Fields))
	for i, f := range w.Fields {
		if f.TooLongMessage == "" {
			f.TooLongMessage = "Your answer is too long!"
		}
		if f.DigitsMessage == "" {
			f.DigitsMessage = "Your answer cannot contain numbers!"
		}
		if f.PunctuationMessage == "" {
			f.PunctuationMessage = "Your answer cannot contain punctuation!"
		}
		fields[i] = f
	}
	w.Fields = fields
	return w
}
