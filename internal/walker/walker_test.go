package walker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func relPaths(res *Result) []string {
	paths := make([]string, len(res.Entries))
	for i, e := range res.Entries {
		paths[i] = e.RelPath
	}
	return paths
}

func TestWalkClassifiesByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "app.ts", "export const x = 1")
	writeFile(t, dir, "lib/util.py", "def helper(): pass")
	writeFile(t, dir, "readme.txt", "hello")
	writeFile(t, dir, ".hidden.py", "secret")

	res, err := Walk(dir, Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(res.Entries), relPaths(res))
	}

	byPath := make(map[string]string)
	for _, e := range res.Entries {
		byPath[e.RelPath] = e.Language
	}
	if byPath["app.ts"] != "typescript" {
		t.Errorf("app.ts language = %q, want typescript", byPath["app.ts"])
	}
	if byPath["lib/util.py"] != "python" {
		t.Errorf("lib/util.py language = %q, want python", byPath["lib/util.py"])
	}
}

func TestWalkSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "main.py", "pass")
	writeFile(t, dir, "node_modules/pkg.js", "x")
	writeFile(t, dir, "__pycache__/cached.py", "x")
	writeFile(t, dir, ".hidden/secret.py", "x")
	writeFile(t, dir, "venv/lib/site.py", "x")

	res, err := Walk(dir, Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].RelPath != "main.py" {
		t.Fatalf("expected only main.py, got %v", relPaths(res))
	}
}

func TestWalkExtraIgnores(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "main.py", "pass")
	writeFile(t, dir, "generated/schema.py", "x")
	writeFile(t, dir, "noise.py", "x")

	res, err := Walk(dir, Options{
		ExtraIgnoreDirs:  []string{"generated"},
		ExtraIgnoreFiles: []string{"noise.py"},
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].RelPath != "main.py" {
		t.Fatalf("expected only main.py, got %v", relPaths(res))
	}
}

func TestWalkGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "ignored.py\nsub/*.ts\n")
	writeFile(t, dir, "main.py", "pass")
	writeFile(t, dir, "ignored.py", "x")
	writeFile(t, dir, "sub/app.ts", "x")
	writeFile(t, dir, "sub/keep.py", "x")

	res, err := Walk(dir, Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	paths := relPaths(res)
	if len(paths) != 2 {
		t.Fatalf("expected 2 entries, got %v", paths)
	}
	for _, p := range paths {
		if p == "ignored.py" || p == "sub/app.ts" {
			t.Errorf("gitignored file %q was walked", p)
		}
	}
}

func TestWalkMaxFileSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "small.py", "pass")
	writeFile(t, dir, "big.py", strings.Repeat("x = 1\n", 100))

	res, err := Walk(dir, Options{MaxFileSize: 64})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].RelPath != "small.py" {
		t.Fatalf("expected only small.py, got %v", relPaths(res))
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "big.py") {
		t.Fatalf("expected a size warning for big.py, got %v", res.Warnings)
	}
}

func TestWalkSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.py", "pass")
	if err := os.Symlink(filepath.Join(dir, "real.py"), filepath.Join(dir, "link.py")); err != nil {
		t.Skipf("symlink: %v", err)
	}

	res, err := Walk(dir, Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].RelPath != "real.py" {
		t.Fatalf("expected only real.py, got %v", relPaths(res))
	}
}

func TestWalkRootMustBeDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "file.py", "pass")

	if _, err := Walk(filepath.Join(dir, "file.py"), Options{}); err == nil {
		t.Fatal("expected error for non-directory root")
	}
	if _, err := Walk(filepath.Join(dir, "missing"), Options{}); err == nil {
		t.Fatal("expected error for missing root")
	}
}
