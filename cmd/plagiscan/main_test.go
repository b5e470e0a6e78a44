package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetPaths(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{name: "no args defaults to current dir", args: []string{}, expected: []string{"."}},
		{name: "single path", args: []string{"/foo/bar"}, expected: []string{"/foo/bar"}},
		{name: "multiple paths", args: []string{"/foo", "/bar"}, expected: []string{"/foo", "/bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getPaths(tt.args)
			if len(result) != len(tt.expected) {
				t.Fatalf("getPaths() = %v, want %v", result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("getPaths()[%d] = %q, want %q", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestDiscoverFilesFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"main.py":      "print(1)\n",
		"lib.go":       "package lib\n",
		"readme.md":    "not source\n",
		"sub/util.rs":  "fn main() {}\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	refs, err := discoverFiles([]string{dir})
	if err != nil {
		t.Fatalf("discoverFiles() error: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("discoverFiles() found %d files, want 3 (readme.md excluded): %v", len(refs), refs)
	}
}

func TestDiscoverFilesEmptyDir(t *testing.T) {
	dir := t.TempDir()
	refs, err := discoverFiles([]string{dir})
	if err != nil {
		t.Fatalf("discoverFiles() error: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("discoverFiles() on empty dir = %v, want empty", refs)
	}
}
