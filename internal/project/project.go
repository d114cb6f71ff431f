// Package project defines the Project record at the center of the workspace
// graph and the store that holds fully-resolved projects. A Project is built
// from its project.toml manifest, expanded against workspace defaults, and
// then treated as immutable for the lifetime of the graph that owns it.
package project

import (
	"fmt"
	"strings"
)

// Type classifies what a project produces.
type Type string

// The closed set of project types. TypeUnknown is the zero value for
// projects that declare no type and inherit none from workspace defaults.
const (
	TypeApplication   Type = "application"
	TypeLibrary       Type = "library"
	TypeTool          Type = "tool"
	TypeAutomation    Type = "automation"
	TypeConfiguration Type = "configuration"
	TypeUnknown       Type = "unknown"
)

// validTypes is the closed set of recognized project type strings.
var validTypes = map[Type]bool{
	TypeApplication:   true,
	TypeLibrary:       true,
	TypeTool:          true,
	TypeAutomation:    true,
	TypeConfiguration: true,
	TypeUnknown:       true,
}

// ParseType converts a manifest type string into a Type. An empty string
// maps to TypeUnknown so workspace defaults can fill it in later.
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypeUnknown, nil
	}
	t := Type(strings.ToLower(s))
	if !validTypes[t] {
		return TypeUnknown, fmt.Errorf("unrecognized project type %q", s)
	}
	return t, nil
}

// DepKind is the declared relationship kind of a dependency reference.
type DepKind string

// The declared dependency kinds. Runtime is the default and the only
// kind the depends_on shorthand can express.
const (
	DepRuntime DepKind = "runtime"
	DepBuild   DepKind = "build"
	DepPeer    DepKind = "peer"
)

// ParseDepKind converts a manifest kind string into a DepKind. An empty
// string defaults to DepRuntime.
func ParseDepKind(s string) (DepKind, error) {
	switch DepKind(strings.ToLower(s)) {
	case "":
		return DepRuntime, nil
	case DepRuntime:
		return DepRuntime, nil
	case DepBuild:
		return DepBuild, nil
	case DepPeer:
		return DepPeer, nil
	default:
		return "", fmt.Errorf("unrecognized dependency kind %q", s)
	}
}

// DepRef is a single declared dependency reference, not yet resolved to a
// concrete project id. Ref may be an explicit id, a workspace alias, or a
// workspace-relative source path.
type DepRef struct {
	Ref      string  `json:"ref"`
	Kind     DepKind `json:"kind"`
	Optional bool    `json:"optional,omitempty"`
	// ViaTask names the task whose cross-project target implied this
	// reference. Empty for explicitly declared dependencies.
	ViaTask string `json:"via_task,omitempty"`
}

// Task is a named unit of work owned by a project. The graph carries tasks
// opaquely; only their dependency targets feed graph construction, as
// implicit project references.
type Task struct {
	Command string   `json:"command"`
	Deps    []string `json:"deps,omitempty"`
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

// Project is a node payload in the workspace graph: identity, location,
// classification, and the declared (unresolved) dependency references in
// declaration order. Instances are immutable once inserted into a Store.
type Project struct {
	ID           string          `json:"id"`
	Alias        string          `json:"alias,omitempty"`
	SourceRoot   string          `json:"source_root"`
	ManifestPath string          `json:"manifest_path"`
	Type         Type            `json:"type"`
	Language     string          `json:"language,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	DependsOn    []DepRef        `json:"depends_on,omitempty"`
	Tasks        map[string]Task `json:"tasks,omitempty"`
}

// ValidateID reports whether id is usable as a project identifier. IDs are
// path-ish tokens; whitespace and ":" are reserved (":" separates project
// and task in targets), and "#" is reserved as the tag scope marker.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("project id is empty")
	}
	if strings.ContainsAny(id, ": \t\n") {
		return fmt.Errorf("project id %q contains reserved characters", id)
	}
	if strings.HasPrefix(id, "#") {
		return fmt.Errorf("project id %q starts with the tag scope marker", id)
	}
	return nil
}

// TagScope extracts the tag from a tag-scoped reference such as "#backend".
// A tag scope selects every project carrying the tag rather than naming a
// single project; it is only meaningful in task dependency targets.
func TagScope(ref string) (string, bool) {
	if !strings.HasPrefix(ref, "#") {
		return "", false
	}
	return ref[1:], true
}

// HasTag reports whether the project carries the given tag.
func (p *Project) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
