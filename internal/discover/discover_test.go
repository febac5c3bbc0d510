package discover

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiscoverCppFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.cpp", "int main() {}")
	writeFile(t, dir, "lib/util.h", "int helper();")
	writeFile(t, dir, "lib/util.c", "int helper() { return 0; }")
	// Non-C++ file should be ignored
	writeFile(t, dir, "readme.txt", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.cpp", "int secret;")

	entries, err := Files(dir, nil)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %v", len(entries), paths)
	}

	// Should be sorted
	want := []struct{ path, lang string }{
		{filepath.Join("lib", "util.c"), "c"},
		{filepath.Join("lib", "util.h"), "cpp"},
		{"main.cpp", "cpp"},
	}
	for i, w := range want {
		if entries[i].Path != w.path {
			t.Errorf("entry %d: got %q, want %q", i, entries[i].Path, w.path)
		}
		if entries[i].Language != w.lang {
			t.Errorf("entry %q: language = %q, want %q", entries[i].Path, entries[i].Language, w.lang)
		}
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.cc", "")
	writeFile(t, dir, "build/gen.cc", "")
	writeFile(t, dir, "cmake-build-debug/gen.cc", "")
	writeFile(t, dir, "CMakeFiles/probe.c", "")
	writeFile(t, dir, ".hidden/secret.cc", "")

	entries, err := Files(dir, nil)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Path != "main.cc" {
		t.Errorf("expected main.cc, got %q", entries[0].Path)
	}
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "generated/\n*.pb.h\n")
	writeFile(t, dir, "api.h", "")
	writeFile(t, dir, "api.pb.h", "")
	writeFile(t, dir, "generated/stub.cpp", "")

	entries, err := Files(dir, nil)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "api.h" {
		t.Fatalf("expected only api.h, got %v", entries)
	}
}

func TestDiscoverLanguageFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.cpp", "")
	writeFile(t, dir, "lib.hpp", "")
	writeFile(t, dir, "legacy.c", "")

	entries, err := Files(dir, []string{"cpp"})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for cpp filter, got %d", len(entries))
	}

	entries, err = Files(dir, []string{"rust"})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected 0 entries for rust filter, got %d", len(entries))
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.cpp", "")

	// Create symlink
	err := os.Symlink(filepath.Join(dir, "real.cpp"), filepath.Join(dir, "link.cpp"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	entries, err := Files(dir, nil)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry (no symlink), got %d", len(entries))
	}
	if entries[0].Path != "real.cpp" {
		t.Errorf("expected real.cpp, got %q", entries[0].Path)
	}
}

func TestDiscoverNestedGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "*.gen.cc\n")
	writeFile(t, dir, "vendor/.gitignore", "third_party/\n")
	writeFile(t, dir, "a.gen.cc", "")
	writeFile(t, dir, "a.cc", "")
	writeFile(t, dir, "vendor/lib.cc", "")
	writeFile(t, dir, "vendor/deep/x.gen.cc", "")
	writeFile(t, dir, "vendor/third_party/zlib.c", "")
	writeFile(t, dir, "src/third_party/keep.c", "")

	entries, err := Files(dir, nil)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	var got []string
	for _, e := range entries {
		got = append(got, filepath.ToSlash(e.Path))
	}
	want := []string{"a.cc", "src/third_party/keep.c", "vendor/lib.cc"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDiscoverHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "api.hpp", "")
	writeFile(t, dir, "api.cpp", "")

	entries, err := Files(dir, nil)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Path != "api.cpp" || entries[0].Header {
		t.Errorf("api.cpp should not be a header: %+v", entries[0])
	}
	if entries[1].Path != "api.hpp" || !entries[1].Header {
		t.Errorf("api.hpp should be a header: %+v", entries[1])
	}
}

func TestSkipDir(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]bool{
		".git":              true,
		".cache":            true,
		"build":             true,
		"CMakeFiles":        true,
		"cmake-build-debug": true,
		"bazel-out":         true,
		"src":               false,
		"include":           false,
		"builder":           false,
	} {
		if got := skipDir(name); got != want {
			t.Errorf("skipDir(%q) = %v, want %v", name, got, want)
		}
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
