// Package manifest handles vireo.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a vireo.toml project configuration.
type Manifest struct {
	Project Project       `toml:"project"`
	Program ProgramConfig `toml:"program"`
	Runtime RuntimeConfig `toml:"runtime"`

	// Dir is the directory containing the vireo.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// ProgramConfig locates the compiled program and its entry point.
type ProgramConfig struct {
	File  string `toml:"file"`
	Entry string `toml:"entry"`
}

// RuntimeConfig configures the task loop and observability.
type RuntimeConfig struct {
	MaxSteps  int    `toml:"max-steps"`
	HistoryDB string `toml:"history-db"`
	Verbose   bool   `toml:"verbose"`
}

// Load parses a vireo.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "vireo.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	m.Dir = dir
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Program.Entry == "" {
		m.Program.Entry = "main"
	}
}

// Validate checks the manifest for required fields.
func (m *Manifest) Validate() error {
	if m.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	if m.Program.File == "" {
		return fmt.Errorf("program.file is required")
	}
	if m.Runtime.MaxSteps < 0 {
		return fmt.Errorf("runtime.max-steps must not be negative")
	}
	return nil
}

// ProgramPath returns the program file path resolved against the manifest
// directory.
func (m *Manifest) ProgramPath() string {
	if filepath.IsAbs(m.Program.File) {
		return m.Program.File
	}
	return filepath.Join(m.Dir, m.Program.File)
}

// HistoryPath returns the history database path resolved against the
// manifest directory, or empty when history is not configured.
func (m *Manifest) HistoryPath() string {
	if m.Runtime.HistoryDB == "" {
		return ""
	}
	if filepath.IsAbs(m.Runtime.HistoryDB) {
		return m.Runtime.HistoryDB
	}
	return filepath.Join(m.Dir, m.Runtime.HistoryDB)
}
