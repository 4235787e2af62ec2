package normalize

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUnitPath(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "c"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "c", "cert.c"), []byte("int x;\n"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"absolute", filepath.Join(root, "c", "cert.c"), "c/cert.c"},
		{"file uri", "file://" + filepath.ToSlash(filepath.Join(root, "c", "cert.c")), "c/cert.c"},
		{"relative to root", "c/cert.c", "c/cert.c"},
		{"dot segments", "./c/../c/cert.c", "c/cert.c"},
		{"escaped", "c/cert%2Ec", "c/cert.c"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		got := UnitPath(tt.raw, root, "/")
		if got != tt.expected {
			t.Errorf("%s: UnitPath(%q): expected %q, got %q", tt.name, tt.raw, tt.expected, got)
		}
	}
}

func TestUnitPath_RelativeToWorkingDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "corpus")
	if err := os.MkdirAll(root, 0700); err != nil {
		t.Fatal(err)
	}

	got := UnitPath("corpus/misra.c", root, base)
	if got != "misra.c" {
		t.Errorf("expected misra.c, got %q", got)
	}
}

func TestUnitPath_OutsideRoot(t *testing.T) {
	root := t.TempDir()

	got := UnitPath("/usr/include/stdio.h", root, "/")
	if got != "/usr/include/stdio.h" {
		t.Errorf("expected absolute path to be kept, got %q", got)
	}
}

func TestUnitPath_RelativeRoot(t *testing.T) {
	cwd := t.TempDir()
	if err := os.MkdirAll(filepath.Join(cwd, "corpus", "cpp"), 0700); err != nil {
		t.Fatal(err)
	}

	got := UnitPath(filepath.Join(cwd, "corpus", "cpp", "a.cpp"), "corpus", cwd)
	if got != "cpp/a.cpp" {
		t.Errorf("expected cpp/a.cpp, got %q", got)
	}
}
