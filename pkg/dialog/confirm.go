package dialog

import "strings"

var confirmAnswers = map[string]bool{
	"yes":  true,
	"y":    true,
	"yep":  true,
	"yeah": true,
	"sure": true,
	"ok":   true,
	"okay": true,
	"true": true,
	"1":    true,

	"no":    false,
	"n":     false,
	"nope":  false,
	"nah":   false,
	"false": false,
	"2":     false,
}

// ParseConfirmation recognizes a yes/no answer. The second return value is
// false when the input is neither.
func ParseConfirmation(input string) (bool, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.TrimRight(s, ".!")
	v, ok := confirmAnswers[s]
	return v, ok
}
