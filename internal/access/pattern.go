package access

import "strings"

// Wildcard matches every tag.
const Wildcard = "*"

// MatchPattern reports whether a rule pattern covers a tag. Three forms
// are recognised:
//
//	exact    "mission/alpha"  matches only that tag
//	ancestor "mission/*"      matches any tag below "mission"
//	wildcard "*"              matches every tag
//
// Matching is segment-wise on "/", so "mission/*" covers
// "mission/alpha/science" but neither "missions/alpha" nor "mission"
// itself.
func MatchPattern(pattern, tag string) bool {
	if pattern == "" || tag == "" {
		return false
	}
	if pattern == Wildcard {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(tag, prefix+"/")
	}
	return pattern == tag
}

// ValidPattern reports whether p is a well formed rule pattern: the
// wildcard, an exact tag, or an ancestor prefix ending in "/*".
// Embedded wildcards ("a/*/b") and empty segments are rejected.
func ValidPattern(p string) bool {
	if p == "" {
		return false
	}
	if p == Wildcard {
		return true
	}
	body, _ := strings.CutSuffix(p, "/*")
	if body == "" {
		return false
	}
	for _, seg := range strings.Split(body, "/") {
		if seg == "" || strings.Contains(seg, "*") {
			return false
		}
	}
	return true
}
