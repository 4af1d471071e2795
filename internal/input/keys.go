// Package input resolves textual key tokens into canonical key events and
// delivers them to a session's DOOM process through its FIFO side channel.
package input

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnresolvedKey is returned for tokens that map to no known key. Never
// fatal to the session.
var ErrUnresolvedKey = errors.New("unresolved key token")

// Key is a canonical key name as written to the input side channel.
type Key string

// Action selects which transitions a token synthesizes.
type Action int

const (
	// ActionTap synthesizes a full press-then-release pair.
	ActionTap Action = iota
	// ActionDown synthesizes only the press.
	ActionDown
	// ActionUp synthesizes only the release.
	ActionUp
)

// Transitions returns the side-channel transition words for the action.
func (a Action) Transitions() []string {
	switch a {
	case ActionDown:
		return []string{"down"}
	case ActionUp:
		return []string{"up"}
	default:
		return []string{"down", "up"}
	}
}

// aliases maps named keys (case-insensitive) to their canonical form.
var aliases = map[string]Key{
	"up":         "up",
	"uparrow":    "up",
	"down":       "down",
	"downarrow":  "down",
	"left":       "left",
	"leftarrow":  "left",
	"right":      "right",
	"rightarrow": "right",
	"ctrl":       "ctrl",
	"control":    "ctrl",
	"alt":        "alt",
	"shift":      "shift",
	"space":      "space",
	"spacebar":   "space",
	"enter":      "enter",
	"return":     "enter",
	"escape":     "escape",
	"esc":        "escape",
	"tab":        "tab",
	"backspace":  "backspace",
	"use":        "use",
	"fire":       "fire",
}

func init() {
	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("f%d", i)
		aliases[name] = Key(name)
	}
}

// Resolve parses a raw token into a canonical key and action.
//
// Grammar: [key:]<name>[:down|:press|:up|:release], whitespace-trimmed,
// case-insensitive. A missing action suffix means a full press-then-release
// pair. Resolution order: alias table, single alphanumeric character,
// single-character raw fallback.
func Resolve(raw string) (Key, Action, error) {
	token := strings.TrimSpace(raw)
	token = strings.TrimPrefix(token, "key:")

	action := ActionTap
	if idx := strings.LastIndex(token, ":"); idx >= 0 {
		switch strings.ToLower(token[idx+1:]) {
		case "down", "press":
			action = ActionDown
			token = token[:idx]
		case "up", "release":
			action = ActionUp
			token = token[:idx]
		}
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", 0, fmt.Errorf("%w: empty token", ErrUnresolvedKey)
	}

	lowered := strings.ToLower(token)
	if key, ok := aliases[lowered]; ok {
		return key, action, nil
	}

	if len(lowered) == 1 {
		// single printable character, delivered as-is
		if c := lowered[0]; c >= '!' && c <= '~' {
			return Key(lowered), action, nil
		}
	}

	return "", 0, fmt.Errorf("%w: %q", ErrUnresolvedKey, raw)
}
