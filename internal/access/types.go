package access

import (
	"errors"
	"fmt"
	"strings"
)

// Kind distinguishes human operators from autonomous devices.
type Kind string

const (
	KindHuman  Kind = "human"
	KindDevice Kind = "device"
)

// RoleAdmin always passes authorization and may administer the registry.
const RoleAdmin = "admin"

// Principal is an authenticated author identity.
type Principal struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName,omitempty"`
	Kind        Kind     `json:"kind"`
	Role        string   `json:"role,omitempty"`
	Clearance   []string `json:"clearance,omitempty"`
}

// Validate checks the principal record is storable.
func (p Principal) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("principal id is empty")
	}
	switch p.Kind {
	case KindHuman, KindDevice:
	default:
		return fmt.Errorf("unknown principal kind %q", p.Kind)
	}
	return nil
}

// IsAdmin reports whether the principal bypasses rule evaluation.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Rule grants a set of actions over tags covered by its pattern.
// Exactly one of PrincipalID or Role selects who the rule applies to.
// Rules are additive: there is no explicit deny form, absence of an
// action in every matching rule is the deny.
type Rule struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principalId,omitempty"`
	Role        string    `json:"role,omitempty"`
	TagPattern  string    `json:"tagPattern"`
	Actions     ActionSet `json:"actions"`
}

// Validate checks the rule record is storable.
func (r Rule) Validate() error {
	if (r.PrincipalID == "") == (r.Role == "") {
		return errors.New("rule must name exactly one of principal id or role")
	}
	if !ValidPattern(r.TagPattern) {
		return fmt.Errorf("invalid tag pattern %q", r.TagPattern)
	}
	if r.Actions.IsEmpty() {
		return errors.New("rule grants no actions")
	}
	return nil
}

// AppliesTo reports whether the rule selects the given principal.
func (r Rule) AppliesTo(p Principal) bool {
	if r.PrincipalID != "" {
		return r.PrincipalID == p.ID
	}
	return r.Role != "" && r.Role == p.Role
}

// Covers reports whether the rule's pattern matches any tag in the set.
func (r Rule) Covers(tags []string) bool {
	for _, t := range tags {
		if MatchPattern(r.TagPattern, t) {
			return true
		}
	}
	return false
}
