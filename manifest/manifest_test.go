package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "vireo.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeManifest(t, `
[project]
name = "demo"
version = "0.1.0"

[program]
file = "out/demo.vbc"
entry = "start"

[runtime]
max-steps = 100000
history-db = "runs.db"
verbose = true
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Project.Name != "demo" || m.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", m.Project)
	}
	if m.Program.Entry != "start" {
		t.Errorf("entry = %q, want start", m.Program.Entry)
	}
	if m.Runtime.MaxSteps != 100000 || !m.Runtime.Verbose {
		t.Errorf("runtime = %+v", m.Runtime)
	}
	if got, want := m.ProgramPath(), filepath.Join(dir, "out/demo.vbc"); got != want {
		t.Errorf("ProgramPath = %q, want %q", got, want)
	}
	if got, want := m.HistoryPath(), filepath.Join(dir, "runs.db"); got != want {
		t.Errorf("HistoryPath = %q, want %q", got, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := writeManifest(t, `
[project]
name = "demo"

[program]
file = "demo.vbc"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Program.Entry != "main" {
		t.Errorf("default entry = %q, want main", m.Program.Entry)
	}
	if m.HistoryPath() != "" {
		t.Errorf("HistoryPath = %q, want empty when unconfigured", m.HistoryPath())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing vireo.toml")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			"missing project name",
			"[program]\nfile = \"x.vbc\"\n",
			"project.name is required",
		},
		{
			"missing program file",
			"[project]\nname = \"demo\"\n",
			"program.file is required",
		},
		{
			"negative max-steps",
			"[project]\nname = \"demo\"\n[program]\nfile = \"x.vbc\"\n[runtime]\nmax-steps = -1\n",
			"max-steps must not be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeManifest(t, tt.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %v, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestAbsolutePathsNotRebased(t *testing.T) {
	abs := "/opt/progs/demo.vbc"
	dir := writeManifest(t, "[project]\nname = \"demo\"\n[program]\nfile = \""+abs+"\"\n")
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.ProgramPath() != abs {
		t.Errorf("ProgramPath = %q, want %q", m.ProgramPath(), abs)
	}
}
