package access

import (
	"errors"
	"fmt"
)

var (
	// ErrDenied is the generic authorization failure. Transports surface
	// denied reads as opaque not-found responses rather than this error.
	ErrDenied = errors.New("access denied")

	// ErrTagNotAuthorized rejects a write introducing a tag the writer
	// holds no covering write grant for.
	ErrTagNotAuthorized = errors.New("tag not authorized")
)

// Decision is the outcome of an authorization check. Reason is internal
// operator detail; transports must not leak it to requesters.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the positive decision.
var Allow = Decision{Allowed: true}

// Deny builds a negative decision with an internal reason.
func Deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Err converts the decision to an error, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == "" {
		return ErrDenied
	}
	return fmt.Errorf("%w: %s", ErrDenied, d.Reason)
}

// Engine evaluates the rule set against requested actions. Evaluation
// is pure rule logic; all state comes from the registry at call time.
type Engine struct {
	reg *Registry
}

// NewEngine binds an engine to a registry.
func NewEngine(reg *Registry) *Engine { return &Engine{reg: reg} }

// Authorize decides whether the principal may perform action against a
// target carrying tags. The granted set is the union of actions across
// every rule selecting the principal (by id or role) whose pattern
// covers at least one tag. Unknown principals and empty unions deny;
// the admin role always passes.
func (e *Engine) Authorize(principalID string, action Action, tags []string) Decision {
	p, ok := e.reg.Principal(principalID)
	if !ok {
		return Deny("unknown principal %q", principalID)
	}
	if p.IsAdmin() {
		return Allow
	}
	var granted ActionSet
	for _, rule := range e.reg.RulesFor(p) {
		if rule.Covers(tags) {
			granted = granted.Union(rule.Actions)
		}
	}
	if granted.IsEmpty() {
		return Deny("no rule covers tags %v for principal %q", tags, principalID)
	}
	if !granted.Has(action) {
		return Deny("principal %q holds %s but not %s on %v", principalID, granted, action, tags)
	}
	return Allow
}

// CheckNewTags enforces tag admission for a write: every tag absent
// from the committed catalog needs a write grant whose pattern covers
// it (exact, ancestor or wildcard). exists reports catalog membership,
// typically commitlog.(*Log).HasTag.
func (e *Engine) CheckNewTags(principalID string, tags []string, exists func(string) bool) error {
	p, ok := e.reg.Principal(principalID)
	if !ok {
		return fmt.Errorf("%w: unknown principal %q", ErrDenied, principalID)
	}
	if p.IsAdmin() {
		return nil
	}
	var rules []Rule
	for _, tag := range tags {
		if exists(tag) {
			continue
		}
		if rules == nil {
			rules = e.reg.RulesFor(p)
		}
		if !tagWritable(rules, tag) {
			return fmt.Errorf("%w: %q", ErrTagNotAuthorized, tag)
		}
	}
	return nil
}

// tagWritable reports whether any rule grants write over the one tag.
func tagWritable(rules []Rule, tag string) bool {
	for _, r := range rules {
		if r.Actions.Has(ActionWrite) && MatchPattern(r.TagPattern, tag) {
			return true
		}
	}
	return false
}
