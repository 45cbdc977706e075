package dialog

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidationResult is the outcome of validating one raw answer.
// Accepted results never carry a message.
type ValidationResult struct {
	Accepted         bool   `json:"accepted"`
	RejectionMessage string `json:"rejection_message,omitempty"`
}

// Accept returns an accepting result.
func Accept() ValidationResult {
	return ValidationResult{Accepted: true}
}

// Reject returns a rejecting result with the message shown to the user.
func Reject(msg string) ValidationResult {
	return ValidationResult{RejectionMessage: msg}
}

// Validator checks a raw answer.
type Validator func(input string) ValidationResult

// FieldSpec is the runtime form of a Field: a name, a prompt and a validator.
type FieldSpec struct {
	Name     string
	Prompt   string
	Validate Validator
}

// Spec compiles the field's rules into a FieldSpec.
func (f Field) Spec() FieldSpec {
	var checks []Validator
	if f.MaxLength > 0 {
		checks = append(checks, MaxLength(f.MaxLength, f.TooLongMessage))
	}
	if f.ForbidDigits {
		checks = append(checks, NoDigits(f.DigitsMessage))
	}
	if f.ForbidPunctuation {
		checks = append(checks, NoPunctuation(f.PunctuationMessage))
	}
	return FieldSpec{
		Name:     f.Name,
		Prompt:   f.Prompt,
		Validate: Chain(checks...),
	}
}

// Chain runs validators in order and returns the first rejection.
func Chain(validators ...Validator) Validator {
	return func(input string) ValidationResult {
		for _, v := range validators {
			if res := v(input); !res.Accepted {
				return res
			}
		}
		return Accept()
	}
}

// MaxLength rejects inputs longer than n characters.
func MaxLength(n int, msg string) Validator {
	return func(input string) ValidationResult {
		if utf8.RuneCountInString(input) > n {
			return Reject(msg)
		}
		return Accept()
	}
}

// NoDigits rejects inputs containing any decimal digit.
func NoDigits(msg string) Validator {
	return func(input string) ValidationResult {
		if strings.IndexFunc(input, unicode.IsDigit) >= 0 {
			return Reject(msg)
		}
		return Accept()
	}
}

// NoPunctuation rejects inputs containing any punctuation character.
// Apostrophes and hyphens count as punctuation.
func NoPunctuation(msg string) Validator {
	return func(input string) ValidationResult {
		if strings.IndexFunc(input, unicode.IsPunct) >= 0 {
			return Reject(msg)
		}
		return Accept()
	}
}
