package console

import (
	"strings"

	"github.com/chzyer/readline"
)

// Confirm asks a yes/no question, defaulting to no on empty or unrecognized
// input.
func Confirm(question string) (bool, error) {
	answer, err := Prompt(question+" [y/N]:", "n", "y")
	if err != nil {
		return false, err
	}
	return answer == "y", nil
}

// Prompt reads one line, constrained to the given lowercase answers when any
// are provided. Empty or unmatched input falls back to the first constraint.
func Prompt(question string, constraints ...string) (string, error) {
	rl, err := readline.New(question)
	if err != nil {
		return "", err
	}
	defer rl.Close()
	response, err := rl.Readline()
	if err != nil {
		return "", err
	}
	if len(constraints) == 0 {
		return response, nil
	}
	normalized := strings.ToLower(strings.TrimSpace(response))
	for _, c := range constraints {
		if normalized == c {
			return normalized, nil
		}
	}
	return constraints[0], nil
}
