package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quarrylabs/quarry/internal/config"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "quarry") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestInitSeedsConfig(t *testing.T) {
	dir := t.TempDir()

	if _, err := runCLI(t, "init", dir); err != nil {
		t.Fatalf("init: %v", err)
	}

	path := filepath.Join(dir, config.FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "output_dir") {
		t.Errorf("config template missing output_dir: %s", data)
	}

	// Second init without --force must refuse.
	if _, err := runCLI(t, "init", dir); err == nil {
		t.Fatal("expected error for existing config")
	}
	if _, err := runCLI(t, "init", "--force", dir); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestScanAndStatus(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte("def main(): pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "scan", dir)
	if err != nil {
		t.Fatalf("scan: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 files") {
		t.Errorf("scan output %q", out)
	}

	out, err = runCLI(t, "status", dir)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "fresh") {
		t.Errorf("status output %q", out)
	}
}

func TestContextFilesFlag(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.py", "b.py"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("def f(): pass\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := runCLI(t, "scan", dir); err != nil {
		t.Fatalf("scan: %v", err)
	}

	out, err := runCLI(t, "context", "--files", "a.py,b.py", dir)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if !strings.Contains(out, "a.py") || !strings.Contains(out, "b.py") {
		t.Errorf("digest missing scoped files: %q", out)
	}
}

func TestShowUnknownArtifact(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCLI(t, "show", "bogus.json", dir); err == nil {
		t.Fatal("expected error for unknown artifact")
	}
}
