package access

import "testing"

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		pattern, tag string
		want         bool
	}{
		{"mission/alpha", "mission/alpha", true},
		{"mission/alpha", "mission/alpha/science", false},
		{"mission/alpha", "mission", false},
		{"mission/*", "mission/alpha", true},
		{"mission/*", "mission/alpha/science", true},
		{"mission/*", "mission", false},
		{"mission/*", "missions/alpha", false},
		{"*", "anything/at/all", true},
		{"*", "solo", true},
		{"", "tag", false},
		{"tag", "", false},
	}
	for _, c := range cases {
		if got := MatchPattern(c.pattern, c.tag); got != c.want {
			t.Errorf("MatchPattern(%q, %q) = %v, want %v", c.pattern, c.tag, got, c.want)
		}
	}
}

func TestValidPattern(t *testing.T) {
	valid := []string{"*", "mission", "mission/alpha", "mission/*", "a/b/c/*"}
	for _, p := range valid {
		if !ValidPattern(p) {
			t.Errorf("ValidPattern(%q) = false, want true", p)
		}
	}
	invalid := []string{"", "/*", "a//b", "a/*/b", "a/b*", "*/a", "a/"}
	for _, p := range invalid {
		if ValidPattern(p) {
			t.Errorf("ValidPattern(%q) = true, want false", p)
		}
	}
}
