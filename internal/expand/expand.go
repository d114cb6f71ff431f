// Package expand turns raw project manifests into complete project records.
// Expansion is the step between discovery and resolution: workspace defaults
// are merged in, task templates have their tokens substituted, and
// cross-project task references are surfaced as implicit dependency
// references so the graph can see them.
package expand

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/papapumpkin/pulsar/internal/project"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

// ErrUnknownToken indicates a task template referenced a token the expander
// does not define.
var ErrUnknownToken = errors.New("unknown token")

// tokenPattern matches $name references in task templates.
var tokenPattern = regexp.MustCompile(`\$([A-Za-z][A-Za-z0-9]*)`)

// Expander builds full project records from discovered manifests.
type Expander struct {
	// WorkspaceRoot is substituted for $workspaceRoot in task templates.
	WorkspaceRoot string
	// Defaults are the workspace-wide fallbacks merged into every project.
	// Project values win; tags are unioned.
	Defaults workspace.Defaults
}

// New creates an Expander for the workspace rooted at workspaceRoot.
func New(workspaceRoot string, defaults workspace.Defaults) *Expander {
	return &Expander{WorkspaceRoot: workspaceRoot, Defaults: defaults}
}

// Project expands one discovered manifest into a project record. Any
// failure names the project and the offending field; a manifest that
// expands at all expands completely.
func (e *Expander) Project(d workspace.Discovered) (*project.Project, error) {
	m := e.applyDefaults(d.Manifest)
	p, err := project.Build(d.ID, d.SourceRoot, d.ManifestPath, m)
	if err != nil {
		return nil, err
	}
	if err := e.expandTasks(p); err != nil {
		return nil, err
	}
	implicit, err := implicitRefs(p)
	if err != nil {
		return nil, err
	}
	p.DependsOn = append(p.DependsOn, implicit...)
	return p, nil
}

// applyDefaults fills manifest gaps from workspace defaults. The manifest
// is copied, never mutated; discovery results may be shared.
func (e *Expander) applyDefaults(m *project.Manifest) *project.Manifest {
	out := *m
	if out.Project.Type == "" {
		out.Project.Type = e.Defaults.Type
	}
	if out.Project.Language == "" {
		out.Project.Language = e.Defaults.Language
	}
	if len(e.Defaults.Tags) > 0 {
		tags := make([]string, 0, len(out.Project.Tags)+len(e.Defaults.Tags))
		tags = append(tags, out.Project.Tags...)
		tags = append(tags, e.Defaults.Tags...)
		out.Project.Tags = tags // project.Build dedupes, first occurrence wins
	}
	return &out
}

// expandTasks substitutes tokens in every task command, input, and output.
func (e *Expander) expandTasks(p *project.Project) error {
	for name, task := range p.Tasks {
		cmd, err := e.substitute(p, name, task.Command)
		if err != nil {
			return err
		}
		task.Command = cmd
		for i, in := range task.Inputs {
			v, err := e.substitute(p, name, in)
			if err != nil {
				return err
			}
			task.Inputs[i] = v
		}
		for i, out := range task.Outputs {
			v, err := e.substitute(p, name, out)
			if err != nil {
				return err
			}
			task.Outputs[i] = v
		}
		p.Tasks[name] = task
	}
	return nil
}

// substitute replaces every $token in s, or fails on the first token the
// expander does not define.
func (e *Expander) substitute(p *project.Project, taskName, s string) (string, error) {
	var substErr error
	out := tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1:]
		val, ok := e.tokenValue(p, name)
		if !ok {
			if substErr == nil {
				substErr = fmt.Errorf("%w: $%s in task %q of project %s", ErrUnknownToken, name, taskName, p.ID)
			}
			return match
		}
		return val
	})
	if substErr != nil {
		return "", substErr
	}
	return out, nil
}

func (e *Expander) tokenValue(p *project.Project, name string) (string, bool) {
	switch name {
	case "project":
		return p.ID, true
	case "projectRoot":
		return p.SourceRoot, true
	case "projectType":
		return string(p.Type), true
	case "language":
		return p.Language, true
	case "workspaceRoot":
		return e.WorkspaceRoot, true
	}
	return "", false
}

// implicitRefs extracts cross-project task references from task dependency
// lists. A task dep "other:build" couples this project to other even when
// [project] depends_on never mentions it, so the reference joins DependsOn
// as an optional entry tagged with the originating task. The "~" scope
// (own task) and "^" scope (tasks of already-declared dependencies) add no
// new references. A "#tag" scope joins DependsOn as written; it selects
// projects by tag and resolves once the whole workspace is known. Output
// order is deterministic: task name order, then dependency declaration
// order within a task.
func implicitRefs(p *project.Project) ([]project.DepRef, error) {
	declared := make(map[string]bool, len(p.DependsOn))
	for _, d := range p.DependsOn {
		declared[d.Ref] = true
	}

	names := make([]string, 0, len(p.Tasks))
	for name := range p.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	var refs []project.DepRef
	for _, name := range names {
		for _, dep := range p.Tasks[name].Deps {
			target, _, found := strings.Cut(dep, ":")
			if !found || target == "~" || target == "^" {
				continue
			}
			if target == "" {
				return nil, fmt.Errorf("task %q of project %s: dependency %q has an empty target", name, p.ID, dep)
			}
			if tag, ok := project.TagScope(target); ok && tag == "" {
				return nil, fmt.Errorf("task %q of project %s: dependency %q has an empty tag scope", name, p.ID, dep)
			}
			if declared[target] {
				continue
			}
			declared[target] = true
			refs = append(refs, project.DepRef{
				Ref:      target,
				Kind:     project.DepBuild,
				Optional: true,
				ViaTask:  name,
			})
		}
	}
	return refs, nil
}
