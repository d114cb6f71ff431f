package constraint

import (
	"errors"
	"strings"
	"testing"

	"github.com/papapumpkin/pulsar/internal/project"
)

// proj is a shorthand constructor for test projects.
func proj(id string, typ project.Type, tags ...string) *project.Project {
	return &project.Project{ID: id, Type: typ, Tags: tags}
}

func TestTypeRelationship(t *testing.T) {
	t.Parallel()

	rules := FromConfig(Config{EnforceTypeRelationships: true})
	checker := NewChecker(rules...)

	t.Run("application may depend on library", func(t *testing.T) {
		t.Parallel()
		err := checker.CheckEdge(proj("app", project.TypeApplication), proj("lib", project.TypeLibrary))
		if err != nil {
			t.Errorf("CheckEdge: %v, want nil", err)
		}
	})

	t.Run("application may not depend on application", func(t *testing.T) {
		t.Parallel()
		err := checker.CheckEdge(proj("app1", project.TypeApplication), proj("app2", project.TypeApplication))
		if !errors.Is(err, ErrViolation) {
			t.Fatalf("got %v, want ErrViolation", err)
		}
		var ve *ViolationError
		if !errors.As(err, &ve) {
			t.Fatal("error is not a *ViolationError")
		}
		if ve.From != "app1" || ve.To != "app2" {
			t.Errorf("violation names %s -> %s, want app1 -> app2", ve.From, ve.To)
		}
		if ve.Rule != "type-relationship" {
			t.Errorf("rule = %q, want type-relationship", ve.Rule)
		}
	})

	t.Run("library may not depend on application", func(t *testing.T) {
		t.Parallel()
		err := checker.CheckEdge(proj("lib", project.TypeLibrary), proj("app", project.TypeApplication))
		if !errors.Is(err, ErrViolation) {
			t.Errorf("got %v, want ErrViolation", err)
		}
	})

	t.Run("automation may depend on application", func(t *testing.T) {
		t.Parallel()
		err := checker.CheckEdge(proj("e2e", project.TypeAutomation), proj("app", project.TypeApplication))
		if err != nil {
			t.Errorf("CheckEdge: %v, want nil", err)
		}
	})

	t.Run("unknown source unconstrained", func(t *testing.T) {
		t.Parallel()
		err := checker.CheckEdge(proj("x", project.TypeUnknown), proj("app", project.TypeApplication))
		if err != nil {
			t.Errorf("CheckEdge: %v, want nil", err)
		}
	})

	t.Run("unknown target unconstrained", func(t *testing.T) {
		t.Parallel()
		err := checker.CheckEdge(proj("lib", project.TypeLibrary), proj("x", project.TypeUnknown))
		if err != nil {
			t.Errorf("CheckEdge: %v, want nil", err)
		}
	})
}

func TestProtectedType(t *testing.T) {
	t.Parallel()

	rules := FromConfig(Config{ProtectedTypes: []string{"application"}})
	checker := NewChecker(rules...)

	t.Run("edge into protected type rejected", func(t *testing.T) {
		t.Parallel()
		err := checker.CheckEdge(proj("tool", project.TypeTool), proj("app", project.TypeApplication))
		if !errors.Is(err, ErrViolation) {
			t.Errorf("got %v, want ErrViolation", err)
		}
	})

	t.Run("edge into other types allowed", func(t *testing.T) {
		t.Parallel()
		err := checker.CheckEdge(proj("tool", project.TypeTool), proj("lib", project.TypeLibrary))
		if err != nil {
			t.Errorf("CheckEdge: %v, want nil", err)
		}
	})
}

func TestTagRestriction(t *testing.T) {
	t.Parallel()

	rules := FromConfig(Config{TagRules: []TagRuleConfig{
		{Tag: "stable", Allowed: []string{"core"}},
	}})
	checker := NewChecker(rules...)

	t.Run("stable depending on core allowed", func(t *testing.T) {
		t.Parallel()
		err := checker.CheckEdge(proj("a", project.TypeLibrary, "stable"), proj("b", project.TypeLibrary, "core"))
		if err != nil {
			t.Errorf("CheckEdge: %v, want nil", err)
		}
	})

	t.Run("stable depending on stable allowed", func(t *testing.T) {
		t.Parallel()
		err := checker.CheckEdge(proj("a", project.TypeLibrary, "stable"), proj("b", project.TypeLibrary, "stable"))
		if err != nil {
			t.Errorf("CheckEdge: %v, want nil", err)
		}
	})

	t.Run("stable depending on untagged rejected", func(t *testing.T) {
		t.Parallel()
		err := checker.CheckEdge(proj("a", project.TypeLibrary, "stable"), proj("b", project.TypeLibrary, "experimental"))
		if !errors.Is(err, ErrViolation) {
			t.Errorf("got %v, want ErrViolation", err)
		}
	})

	t.Run("untagged source unconstrained", func(t *testing.T) {
		t.Parallel()
		err := checker.CheckEdge(proj("a", project.TypeLibrary), proj("b", project.TypeLibrary))
		if err != nil {
			t.Errorf("CheckEdge: %v, want nil", err)
		}
	})
}

func TestEmptyChecker(t *testing.T) {
	t.Parallel()
	checker := NewChecker()
	err := checker.CheckEdge(proj("a", project.TypeApplication), proj("b", project.TypeApplication))
	if err != nil {
		t.Errorf("empty checker rejected edge: %v", err)
	}
}

func TestFromConfig_RuleSet(t *testing.T) {
	t.Parallel()

	t.Run("empty config yields no rules", func(t *testing.T) {
		t.Parallel()
		if rules := FromConfig(Config{}); len(rules) != 0 {
			t.Errorf("got %d rules, want 0", len(rules))
		}
	})

	t.Run("all sections", func(t *testing.T) {
		t.Parallel()
		rules := FromConfig(Config{
			EnforceTypeRelationships: true,
			ProtectedTypes:           []string{"application"},
			TagRules: []TagRuleConfig{
				{Tag: "stable"},
				{Tag: ""},
			},
		})
		// Type matrix + protected + one valid tag rule; the empty-tag rule
		// is skipped.
		if len(rules) != 3 {
			t.Errorf("got %d rules, want 3", len(rules))
		}
	})
}

func TestViolationError_Message(t *testing.T) {
	t.Parallel()
	ve := &ViolationError{Rule: "type-relationship", From: "app1", To: "app2", Reason: "no"}
	msg := ve.Error()
	for _, want := range []string{"app1", "app2", "type-relationship"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
