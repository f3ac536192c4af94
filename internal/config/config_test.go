package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"conn.json": `{
  "connections": [
    {"name": "/ctrl_regs/s_axi", "file": "rtl/ctrl.sv", "prefix": "CTRL"},
    {"name": "/bram/S_AXI", "file": "omit"}
  ],
  "output": {"guard": "BOARD_REGS_H"}
}`,
		"conn.yaml": `connections:
  - name: /ctrl_regs/s_axi
    file: rtl/ctrl.sv
    prefix: CTRL
  - name: /bram/S_AXI
    file: omit
output:
  guard: BOARD_REGS_H
`,
		"conn.cue": `connections: [
	{name: "/ctrl_regs/s_axi", file: "rtl/ctrl.sv", prefix: "CTRL"},
	{name: "/bram/S_AXI", file: "omit"},
]
output: guard: "BOARD_REGS_H"
`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, name, content)
			cfg, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if len(cfg.Connections) != 2 {
				t.Fatalf("expected 2 connections, got %d", len(cfg.Connections))
			}
			conn, ok := cfg.Lookup("/ctrl_regs/s_axi")
			if !ok || conn.File != "rtl/ctrl.sv" || conn.Prefix != "CTRL" {
				t.Fatalf("unexpected lookup result %+v (found=%v)", conn, ok)
			}
			bram, ok := cfg.Lookup("/bram/S_AXI")
			if !ok || bram.File != OmitFile {
				t.Fatalf("expected omitted bram connection, got %+v", bram)
			}
			if cfg.Output.Guard != "BOARD_REGS_H" {
				t.Fatalf("expected guard override, got %q", cfg.Output.Guard)
			}
			if cfg.Source() != path {
				t.Fatalf("expected source %s, got %s", path, cfg.Source())
			}
			if cfg.SourceRoot != dir {
				t.Fatalf("expected source root %s, got %s", dir, cfg.SourceRoot)
			}
		})
	}
}

func TestLoadFileRejectsSchemaViolations(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"misspelled.json": `{"connections": [{"name": "/a", "file": "a.sv", "prefx": "A"}]}`,
		"empty_name.json": `{"connections": [{"name": "", "file": "a.sv"}]}`,
		"bad_guard.yaml":  "connections: []\noutput:\n  guard: 1BAD\n",
		"bad_prefix.cue":  `connections: [{name: "/a", file: "a.sv", prefix: "has space"}]`,
		"duplicates.json": `{"connections": [{"name": "/a", "file": "a.sv"}, {"name": "/a", "file": "b.sv"}]}`,
		"not_json.json":   `connections = nope`,
		"wrong_type.yaml": "connections:\n  - name: /a\n    file: [1, 2]\n",
		"misspelled.yaml": "connections:\n  - name: /a\n    file: a.sv\n    prefx: A\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, name, content)
			if _, err := LoadFile(path); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "can't open") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "xlate_vreg.yaml", "connections:\n  - name: /x\n    file: x.sv\n")

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(oldWD) }()
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := cfg.Lookup("/x"); !ok {
		t.Fatalf("expected /x to be defined")
	}
}

func TestLoadWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(oldWD) }()
	t.Setenv("HOME", t.TempDir())

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when no configuration exists")
	}
}

func TestSaveRoundTripsSample(t *testing.T) {
	for _, name := range []string{"xlate_vreg.json", "xlate_vreg.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := SampleConfig().Save(path); err != nil {
				t.Fatalf("Save: %v", err)
			}
			cfg, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if len(cfg.Connections) != len(SampleConfig().Connections) {
				t.Fatalf("sample connections lost on round trip")
			}
			ctrl, ok := cfg.Lookup("/ctrl_regs/s_axi")
			if !ok || ctrl.Prefix != "CTRL" {
				t.Fatalf("expected CTRL prefix to survive, got %+v", ctrl)
			}
		})
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xlate_vreg.json")
	cfg := &Config{Connections: []Connection{{Name: "/a", File: "a.sv", Prefix: "has space"}}}
	if err := cfg.Save(path); err == nil {
		t.Fatalf("expected invalid prefix to be rejected")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("nothing should be written for an invalid config")
	}
}

func TestResolveSource(t *testing.T) {
	cfg := &Config{SourceRoot: "/proj"}
	if got := cfg.ResolveSource("rtl/a.sv"); got != filepath.Join("/proj", "rtl/a.sv") {
		t.Fatalf("unexpected relative resolution %q", got)
	}
	if got := cfg.ResolveSource("/abs/a.sv"); got != "/abs/a.sv" {
		t.Fatalf("absolute path should be unchanged, got %q", got)
	}
	if got := (&Config{}).ResolveSource("a.sv"); got != "a.sv" {
		t.Fatalf("no source root should leave path alone, got %q", got)
	}
}

func TestLookupOnHandBuiltConfig(t *testing.T) {
	cfg := &Config{Connections: []Connection{{Name: "/a", File: "a.sv"}}}
	if _, ok := cfg.Lookup("/a"); !ok {
		t.Fatalf("expected lookup without index to work")
	}
	if _, ok := cfg.Lookup("/b"); ok {
		t.Fatalf("unexpected match for /b")
	}
	if cfg.Source() != "<defaults>" {
		t.Fatalf("unexpected source %q", cfg.Source())
	}
}
