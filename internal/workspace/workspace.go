// Package workspace loads the workspace-level configuration and discovers
// project manifests under the configured source globs. It owns everything
// the graph needs to know about the workspace before any single project is
// parsed: where projects live, workspace-wide defaults, aliases, and the
// constraint policy.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/pulsar/internal/constraint"
)

// ConfigPath is the conventional location of the workspace config, relative
// to the workspace root.
const ConfigPath = ".pulsar/workspace.toml"

// Config is parsed from .pulsar/workspace.toml.
type Config struct {
	Workspace   Info              `toml:"workspace"`
	Defaults    Defaults          `toml:"defaults"`
	Aliases     map[string]string `toml:"aliases"`
	Constraints constraint.Config `toml:"constraints"`
}

// Info names the workspace and lists the source globs project discovery
// walks. Each pattern matches project source roots, not manifest files.
type Info struct {
	Name     string   `toml:"name"`
	Projects []string `toml:"projects"`
}

// Defaults holds workspace-wide fallback values merged into every project
// during expansion. Project values win; tags are unioned.
type Defaults struct {
	Language string   `toml:"language"`
	Type     string   `toml:"type"`
	Tags     []string `toml:"tags"`
}

// Load reads the workspace config under root. A workspace without a config
// file is an error; there is nothing to discover without source globs.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, ConfigPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workspace config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing workspace config %s: %w", path, err)
	}
	return &cfg, nil
}
