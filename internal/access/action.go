package access

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is a single permission a rule can grant.
type Action uint8

const (
	// ActionRead permits reading entries carrying a covered tag.
	ActionRead Action = 1 << iota
	// ActionWrite permits committing entries carrying a covered tag.
	ActionWrite
	// ActionLink permits referencing prior entries from a new entry.
	ActionLink
	// ActionAttach permits attaching binary payloads to a new entry.
	ActionAttach
)

// allActions lists every defined action in display order.
var allActions = []Action{ActionRead, ActionWrite, ActionLink, ActionAttach}

// ParseAction maps a wire name to an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read":
		return ActionRead, nil
	case "write":
		return ActionWrite, nil
	case "link":
		return ActionLink, nil
	case "attach":
		return ActionAttach, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionLink:
		return "link"
	case ActionAttach:
		return "attach"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// ActionSet is a bitmask union of Actions.
type ActionSet uint8

// NewActionSet builds a set from individual actions.
func NewActionSet(actions ...Action) ActionSet {
	var s ActionSet
	for _, a := range actions {
		s |= ActionSet(a)
	}
	return s
}

// Has reports whether the set contains a.
func (s ActionSet) Has(a Action) bool { return uint8(s)&uint8(a) != 0 }

// Union returns the combination of both sets.
func (s ActionSet) Union(o ActionSet) ActionSet { return s | o }

// IsEmpty reports whether no action is granted.
func (s ActionSet) IsEmpty() bool { return s == 0 }

// Names returns the granted action names in display order.
func (s ActionSet) Names() []string {
	out := make([]string, 0, len(allActions))
	for _, a := range allActions {
		if s.Has(a) {
			out = append(out, a.String())
		}
	}
	return out
}

func (s ActionSet) String() string { return strings.Join(s.Names(), "|") }

// MarshalJSON encodes the set as a list of action names so persisted
// rules stay readable with store tooling.
func (s ActionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON accepts a list of action names.
func (s *ActionSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	var out ActionSet
	for _, n := range names {
		a, err := ParseAction(n)
		if err != nil {
			return err
		}
		out |= ActionSet(a)
	}
	*s = out
	return nil
}

// ParseActionSet builds a set from a comma separated list such as
// "read,write".
func ParseActionSet(s string) (ActionSet, error) {
	var out ActionSet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		a, err := ParseAction(part)
		if err != nil {
			return 0, err
		}
		out |= ActionSet(a)
	}
	return out, nil
}
