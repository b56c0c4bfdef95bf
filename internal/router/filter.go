package router

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/hyperrixel/logos/internal/entry"
)

// Filter selects entries for one subscription. Zero values leave a
// dimension open: empty Tags matches every tag set, FromMs/ToMs of 0
// leave the commit-time range unbounded, empty Expr disables the CEL
// check.
type Filter struct {
	// Tags matches entries carrying at least one of the listed tags.
	Tags []string `json:"tags,omitempty"`
	// Authors restricts to entries written by the listed principals.
	Authors []string `json:"authors,omitempty"`
	// FromMs / ToMs bound the commit timestamp, inclusive.
	FromMs int64 `json:"fromMs,omitempty"`
	ToMs   int64 `json:"toMs,omitempty"`
	// Expr is an optional CEL expression over
	// {seq, author, tags, created_ms, commit_ms, attrs, now_ms}.
	Expr string `json:"expr,omitempty"`
}

// compiledFilter pairs the structural filter with its compiled CEL
// program. When the expression is empty the program is disabled and
// only the structural checks run.
type compiledFilter struct {
	f       Filter
	prog    cel.Program
	enabled bool
}

func compileFilter(f Filter) (*compiledFilter, error) {
	cf := &compiledFilter{f: f}
	expr := strings.TrimSpace(f.Expr)
	if expr == "" {
		return cf, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("seq", cel.IntType),
		cel.Variable("author", cel.StringType),
		cel.Variable("tags", cel.ListType(cel.StringType)),
		cel.Variable("created_ms", cel.IntType),
		cel.Variable("commit_ms", cel.IntType),
		// Attribute map in canonical form for field filtering.
		cel.Variable("attrs", cel.DynType),
		// Current time in ms for windowed filters.
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return nil, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	cf.prog = prog
	cf.enabled = true
	return cf, nil
}

// Match evaluates the structural checks, then the CEL program. An
// expression that errors at runtime excludes the entry.
func (cf *compiledFilter) Match(e *entry.Entry) bool {
	if len(cf.f.Tags) > 0 {
		hit := false
		for _, t := range cf.f.Tags {
			if e.HasTag(t) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if len(cf.f.Authors) > 0 {
		hit := false
		for _, a := range cf.f.Authors {
			if e.Author == a {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if cf.f.FromMs > 0 && e.CommittedAtMs < cf.f.FromMs {
		return false
	}
	if cf.f.ToMs > 0 && e.CommittedAtMs > cf.f.ToMs {
		return false
	}
	if !cf.enabled {
		return true
	}
	attrs := make(map[string]any, len(e.Attributes))
	for _, a := range e.Attributes {
		attrs[a.Key] = a.Value
	}
	out, _, err := cf.prog.Eval(map[string]any{
		"seq":        int64(e.Seq),
		"author":     e.Author,
		"tags":       e.Tags,
		"created_ms": e.CreatedAtMs,
		"commit_ms":  e.CommittedAtMs,
		"attrs":      attrs,
		"now_ms":     time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
