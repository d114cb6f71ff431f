// Package query selects projects from a built graph with a small
// expression language. A query is a boolean combination of field tests,
//
//	type=application && tag=web || id=docs
//
// where "&&" binds tighter than "||", "=" tests equality and "!="
// inequality. Terms are single tokens; fields are id, project, type,
// language, tag, and alias.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/papapumpkin/pulsar/internal/graph"
	"github.com/papapumpkin/pulsar/internal/project"
)

// ErrSyntax is returned when a query string cannot be parsed.
var ErrSyntax = errors.New("invalid query")

// validFields is the closed set of queryable fields. "project" is accepted
// as a synonym for "id".
var validFields = map[string]bool{
	"id":       true,
	"project":  true,
	"type":     true,
	"language": true,
	"tag":      true,
	"alias":    true,
}

// Query is a parsed selection expression: a disjunction of conjunctions,
// mirroring how "&&" binds tighter than "||".
type Query struct {
	or []conj
}

type conj []test

type test struct {
	field  string
	value  string
	negate bool
}

// Parse compiles a query string. Operators and terms are separated by
// whitespace; a term is field=value or field!=value.
func Parse(s string) (*Query, error) {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty query", ErrSyntax)
	}

	var q Query
	var current conj
	expectTerm := true
	for _, tok := range tokens {
		switch tok {
		case "&&":
			if expectTerm {
				return nil, fmt.Errorf("%w: operator %q needs a term before it", ErrSyntax, tok)
			}
			expectTerm = true
		case "||":
			if expectTerm {
				return nil, fmt.Errorf("%w: operator %q needs a term before it", ErrSyntax, tok)
			}
			q.or = append(q.or, current)
			current = nil
			expectTerm = true
		default:
			if !expectTerm {
				return nil, fmt.Errorf("%w: missing operator before %q", ErrSyntax, tok)
			}
			tst, err := parseTest(tok)
			if err != nil {
				return nil, err
			}
			current = append(current, tst)
			expectTerm = false
		}
	}
	if expectTerm {
		return nil, fmt.Errorf("%w: trailing operator", ErrSyntax)
	}
	q.or = append(q.or, current)
	return &q, nil
}

// parseTest splits one field=value or field!=value token. "!=" is tried
// first; cutting "a!=b" at "=" would leave a mangled field name.
func parseTest(tok string) (test, error) {
	if f, v, ok := strings.Cut(tok, "!="); ok {
		return makeTest(f, v, true)
	}
	if f, v, ok := strings.Cut(tok, "="); ok {
		return makeTest(f, v, false)
	}
	return test{}, fmt.Errorf("%w: term %q is not field=value", ErrSyntax, tok)
}

func makeTest(field, value string, negate bool) (test, error) {
	if !validFields[field] {
		return test{}, fmt.Errorf("%w: unknown field %q", ErrSyntax, field)
	}
	if value == "" {
		return test{}, fmt.Errorf("%w: field %q has no value", ErrSyntax, field)
	}
	return test{field: field, value: value, negate: negate}, nil
}

// Match reports whether the project satisfies the query.
func (q *Query) Match(p *project.Project) bool {
	for _, c := range q.or {
		if c.match(p) {
			return true
		}
	}
	return false
}

func (c conj) match(p *project.Project) bool {
	for _, t := range c {
		if !t.match(p) {
			return false
		}
	}
	return true
}

func (t test) match(p *project.Project) bool {
	var got bool
	switch t.field {
	case "id", "project":
		got = p.ID == t.value
	case "type":
		got = string(p.Type) == t.value
	case "language":
		got = p.Language == t.value
	case "alias":
		got = p.Alias == t.value
	case "tag":
		got = p.HasTag(t.value)
	}
	if t.negate {
		return !got
	}
	return got
}

// Select returns the projects in h matching the query, in insertion order.
func (q *Query) Select(h *graph.Handle) []*project.Project {
	return h.Filter(q.Match)
}
