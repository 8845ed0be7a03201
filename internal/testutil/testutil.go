// Package testutil contains common testing helpers.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"
)

// AssertEqual compares two values and if they differ, fails the test and
// prints the difference between them.
func AssertEqual(t *testing.T, got, want any) {
	t.Helper()
	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("(-got +want):\n%s", diff)
	}
}

// AssertContains fails the test if v is not present in s.
func AssertContains[S ~[]V, V comparable](t *testing.T, s S, v V) {
	t.Helper()
	if !slices.Contains(s, v) {
		t.Fatalf("%v is not present in %v", v, s)
	}
}

// ExtractTxtar extracts a txtar archive to dir. Files whose names end in
// ".sh" or live under a "bin" directory are made executable.
func ExtractTxtar(t *testing.T, ar *txtar.Archive, dir string) {
	t.Helper()
	for _, file := range ar.Files {
		if err := os.MkdirAll(filepath.Join(dir, filepath.Dir(file.Name)), 0o755); err != nil {
			t.Fatal(err)
		}
		perm := fs.FileMode(0o644)
		if filepath.Ext(file.Name) == ".sh" || filepath.Base(filepath.Dir(file.Name)) == "bin" {
			perm = 0o755
		}
		if err := os.WriteFile(filepath.Join(dir, file.Name), file.Data, perm); err != nil {
			t.Fatal(err)
		}
	}
}

// Tree parses the txtar source src and extracts it into a new temporary
// directory, returning its path.
func Tree(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	ExtractTxtar(t, txtar.Parse([]byte(src)), dir)
	return dir
}

// WriteExecutable writes an executable file to dir and returns its path.
func WriteExecutable(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// Exists reports whether path exists, failing the test on unexpected
// errors.
func Exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		t.Fatal(err)
	}
	return false
}
