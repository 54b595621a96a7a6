// Package config loads the optional per-workspace YAML configuration that
// seeds Mode's code_writer policy, mirroring the teacher's ~/.wingthing
// wing.yaml idiom scoped down to this core's one configurable concern.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lowkaihon/wcgwcore/internal/mode"
)

// FileName is the conventional config file name looked up in a workspace.
const FileName = ".wcgwcore.yaml"

// WriterConfig mirrors mode.WriterConfig's shape for YAML decoding, since
// the "all" sentinel needs a tagged bool rather than a literal string
// distinguishable only at parse time.
type WriterConfig struct {
	AllowedGlobs    []string `yaml:"allowed_globs"`
	AllowedCommands []string `yaml:"allowed_commands"`
}

// FileConfig is the on-disk shape of .wcgwcore.yaml.
type FileConfig struct {
	Mode         string       `yaml:"mode"`
	CodeWriter   WriterConfig `yaml:"code_writer"`
	RepoMapBudget int         `yaml:"repo_map_budget,omitempty"`
}

// Load reads workspace/.wcgwcore.yaml if present. A missing file is not an
// error: it returns the zero FileConfig, meaning "use the caller's defaults".
func Load(workspace string) (FileConfig, error) {
	path := filepath.Join(workspace, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("read %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// ToPolicy converts a FileConfig into a mode.Policy, resolving the "all"
// sentinel for both globs and commands.
func (fc FileConfig) ToPolicy() mode.Policy {
	p := mode.Policy{Mode: mode.Name(fc.Mode)}
	if p.Mode == "" {
		p.Mode = mode.Unrestricted
	}

	w := mode.WriterConfig{AllowedGlobs: fc.CodeWriter.AllowedGlobs, AllowedCommands: fc.CodeWriter.AllowedCommands}
	for _, g := range fc.CodeWriter.AllowedGlobs {
		if g == mode.All {
			w.GlobsAll = true
		}
	}
	for _, c := range fc.CodeWriter.AllowedCommands {
		if c == mode.All {
			w.CommandsAll = true
		}
	}
	p.Writer = w
	return p
}
