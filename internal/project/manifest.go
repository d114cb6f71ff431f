package project

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// ManifestName is the file name every project manifest uses.
const ManifestName = "project.toml"

// Manifest is parsed from project.toml in a project's source root.
type Manifest struct {
	Project      Info                  `toml:"project"`
	Dependencies []DependencyConfig    `toml:"dependencies"`
	Tasks        map[string]TaskConfig `toml:"tasks"`
}

// Info holds the project's identity and classification.
type Info struct {
	ID        string   `toml:"id"`
	Alias     string   `toml:"alias"`
	Type      string   `toml:"type"`
	Language  string   `toml:"language"`
	Tags      []string `toml:"tags"`
	DependsOn []string `toml:"depends_on"`
}

// DependencyConfig is the long-form dependency declaration, used when a
// dependency needs a kind or scope beyond the depends_on shorthand.
type DependencyConfig struct {
	Ref      string `toml:"ref"`
	Kind     string `toml:"kind"`
	Optional bool   `toml:"optional"`
}

// TaskConfig is a task declaration as written in the manifest.
type TaskConfig struct {
	Command string   `toml:"command"`
	Deps    []string `toml:"deps"`
	Inputs  []string `toml:"inputs"`
	Outputs []string `toml:"outputs"`
}

// LoadManifest reads and parses a project.toml. A missing or malformed file
// is an error; discovery decides beforehand whether a directory is a project
// by probing for the manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &m, nil
}

// Build produces a partially-resolved Project from a manifest. The fallback
// id (usually the source directory name) is used when the manifest declares
// none. Defaults inheritance and token expansion happen later, in the
// expansion pass; Build only validates and normalizes what the manifest
// itself says.
func Build(fallbackID, sourceRoot, manifestPath string, m *Manifest) (*Project, error) {
	id := m.Project.ID
	if id == "" {
		id = fallbackID
	}
	if err := ValidateID(id); err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}

	typ, err := ParseType(m.Project.Type)
	if err != nil {
		return nil, fmt.Errorf("%s: project %s: %w", manifestPath, id, err)
	}

	deps, err := buildDepRefs(m)
	if err != nil {
		return nil, fmt.Errorf("%s: project %s: %w", manifestPath, id, err)
	}

	p := &Project{
		ID:           id,
		Alias:        m.Project.Alias,
		SourceRoot:   sourceRoot,
		ManifestPath: manifestPath,
		Type:         typ,
		Language:     m.Project.Language,
		Tags:         dedupeTags(m.Project.Tags),
		DependsOn:    deps,
	}

	if len(m.Tasks) > 0 {
		p.Tasks = make(map[string]Task, len(m.Tasks))
		for name, tc := range m.Tasks {
			p.Tasks[name] = Task{
				Command: tc.Command,
				Deps:    append([]string(nil), tc.Deps...),
				Inputs:  append([]string(nil), tc.Inputs...),
				Outputs: append([]string(nil), tc.Outputs...),
			}
		}
	}
	return p, nil
}

// buildDepRefs merges the depends_on shorthand with long-form [[dependencies]]
// entries, preserving declaration order: shorthand entries first, then
// long-form entries. Tag scopes are rejected here; they select project
// sets and are valid only as task dependency targets.
func buildDepRefs(m *Manifest) ([]DepRef, error) {
	refs := make([]DepRef, 0, len(m.Project.DependsOn)+len(m.Dependencies))
	for _, ref := range m.Project.DependsOn {
		if ref == "" {
			return nil, fmt.Errorf("empty depends_on entry")
		}
		if _, ok := TagScope(ref); ok {
			return nil, fmt.Errorf("depends_on entry %q: tag scopes are valid only in task dependency targets", ref)
		}
		refs = append(refs, DepRef{Ref: ref, Kind: DepRuntime})
	}
	for _, dc := range m.Dependencies {
		if dc.Ref == "" {
			return nil, fmt.Errorf("dependency entry missing ref")
		}
		if _, ok := TagScope(dc.Ref); ok {
			return nil, fmt.Errorf("dependency %q: tag scopes are valid only in task dependency targets", dc.Ref)
		}
		kind, err := ParseDepKind(dc.Kind)
		if err != nil {
			return nil, fmt.Errorf("dependency %q: %w", dc.Ref, err)
		}
		refs = append(refs, DepRef{Ref: dc.Ref, Kind: kind, Optional: dc.Optional})
	}
	if len(refs) == 0 {
		return nil, nil
	}
	return refs, nil
}

// dedupeTags removes duplicate tags while preserving first-occurrence order.
func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
