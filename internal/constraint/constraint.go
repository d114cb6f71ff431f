// Package constraint enforces workspace-wide dependency policy: which
// project types and tags may depend on which others. Rules are a closed set
// of variants evaluated uniformly per edge, after the graph is known to be
// acyclic. A single violation aborts the build.
package constraint

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/papapumpkin/pulsar/internal/project"
)

// ErrViolation is the sentinel every constraint violation wraps.
var ErrViolation = errors.New("constraint violation")

// ViolationError reports a rejected dependency edge. It names both projects
// and the violated rule so the diagnostic is directly actionable.
type ViolationError struct {
	Rule   string
	From   string
	To     string
	Reason string
}

// Error renders the violation with full context.
func (e *ViolationError) Error() string {
	return fmt.Sprintf("constraint %s: project %s may not depend on %s: %s",
		e.Rule, e.From, e.To, e.Reason)
}

// Unwrap returns ErrViolation for use with errors.Is.
func (e *ViolationError) Unwrap() error {
	return ErrViolation
}

// Rule is a single policy checked against each dependency edge. The set of
// implementations in this package is closed; dispatch is by value, not
// reflection.
type Rule interface {
	// Name identifies the rule in diagnostics.
	Name() string
	// Check returns a *ViolationError if the edge from -> to breaks the rule.
	Check(from, to *project.Project) error
}

// Config is the [constraints] table of workspace.toml.
type Config struct {
	EnforceTypeRelationships bool            `toml:"enforce_type_relationships"`
	ProtectedTypes           []string        `toml:"protected_types"`
	TagRules                 []TagRuleConfig `toml:"tag_rules"`
}

// TagRuleConfig restricts what projects carrying Tag may depend on. An empty
// Allowed list means dependencies must carry the same tag.
type TagRuleConfig struct {
	Tag     string   `toml:"tag"`
	Allowed []string `toml:"allowed"`
}

// FromConfig builds the active rule set from workspace configuration.
func FromConfig(cfg Config) []Rule {
	var rules []Rule
	if cfg.EnforceTypeRelationships {
		rules = append(rules, typeRelationship{})
	}
	if len(cfg.ProtectedTypes) > 0 {
		types := make(map[project.Type]bool, len(cfg.ProtectedTypes))
		for _, t := range cfg.ProtectedTypes {
			types[project.Type(strings.ToLower(t))] = true
		}
		rules = append(rules, protectedType{types: types})
	}
	for _, tr := range cfg.TagRules {
		if tr.Tag == "" {
			continue
		}
		allowed := make(map[string]bool, len(tr.Allowed)+1)
		allowed[tr.Tag] = true
		for _, a := range tr.Allowed {
			allowed[a] = true
		}
		rules = append(rules, tagRestriction{tag: tr.Tag, allowed: allowed})
	}
	return rules
}

// Checker evaluates every configured rule against an edge. The zero Checker
// (no rules) accepts everything.
type Checker struct {
	rules []Rule
}

// NewChecker creates a Checker over the given rules.
func NewChecker(rules ...Rule) *Checker {
	return &Checker{rules: rules}
}

// CheckEdge runs all rules against the edge from -> to, returning the first
// violation.
func (c *Checker) CheckEdge(from, to *project.Project) error {
	for _, r := range c.rules {
		if err := r.Check(from, to); err != nil {
			return err
		}
	}
	return nil
}

// allowedDeps is the built-in type relationship matrix: for each source
// type, the dependency types it may use. Types absent from the map
// (including unknown) are unconstrained as sources.
var allowedDeps = map[project.Type]map[project.Type]bool{
	project.TypeApplication: {
		project.TypeLibrary:       true,
		project.TypeTool:          true,
		project.TypeConfiguration: true,
	},
	project.TypeLibrary: {
		project.TypeLibrary:       true,
		project.TypeConfiguration: true,
	},
	project.TypeTool: {
		project.TypeLibrary:       true,
		project.TypeTool:          true,
		project.TypeConfiguration: true,
	},
	project.TypeAutomation: {
		project.TypeApplication:   true,
		project.TypeLibrary:       true,
		project.TypeTool:          true,
		project.TypeConfiguration: true,
	},
	project.TypeConfiguration: {
		project.TypeConfiguration: true,
	},
}

// typeRelationship enforces the allowedDeps matrix.
type typeRelationship struct{}

func (typeRelationship) Name() string { return "type-relationship" }

func (r typeRelationship) Check(from, to *project.Project) error {
	allowed, constrained := allowedDeps[from.Type]
	if !constrained || to.Type == project.TypeUnknown {
		return nil
	}
	if !allowed[to.Type] {
		return &ViolationError{
			Rule:   r.Name(),
			From:   from.ID,
			To:     to.ID,
			Reason: fmt.Sprintf("%s projects may not depend on %s projects", from.Type, to.Type),
		}
	}
	return nil
}

// protectedType rejects any edge whose target type is protected, e.g.
// applications that must never be depended on.
type protectedType struct {
	types map[project.Type]bool
}

func (protectedType) Name() string { return "protected-type" }

func (r protectedType) Check(from, to *project.Project) error {
	if r.types[to.Type] {
		return &ViolationError{
			Rule:   r.Name(),
			From:   from.ID,
			To:     to.ID,
			Reason: fmt.Sprintf("%s projects may not be depended on", to.Type),
		}
	}
	return nil
}

// tagRestriction requires that projects carrying tag only depend on projects
// carrying one of the allowed tags.
type tagRestriction struct {
	tag     string
	allowed map[string]bool
}

func (r tagRestriction) Name() string { return "tag-restriction:" + r.tag }

func (r tagRestriction) Check(from, to *project.Project) error {
	if !from.HasTag(r.tag) {
		return nil
	}
	for _, t := range to.Tags {
		if r.allowed[t] {
			return nil
		}
	}
	return &ViolationError{
		Rule:   r.Name(),
		From:   from.ID,
		To:     to.ID,
		Reason: fmt.Sprintf("projects tagged %q may only depend on projects tagged %s", r.tag, allowedList(r.allowed)),
	}
}

// allowedList renders the allowed tag set for diagnostics, sorted for
// stable messages.
func allowedList(allowed map[string]bool) string {
	tags := make([]string, 0, len(allowed))
	for t := range allowed {
		tags = append(tags, fmt.Sprintf("%q", t))
	}
	sort.Strings(tags)
	return strings.Join(tags, ", ")
}
