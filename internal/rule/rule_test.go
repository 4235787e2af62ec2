package rule

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestParseStandard(t *testing.T) {
	tests := []struct {
		input    string
		expected Standard
	}{
		{"CERT-C", CertC},
		{"cert c", CertC},
		{"CERT C++", CertCPP},
		{"cert-cpp", CertCPP},
		{"misra-c2012", MisraC},
		{"MISRA-CPP", MisraCPP},
		{"autosar-c++14", Autosar},
		{" AUTOSAR ", Autosar},
	}

	for _, tt := range tests {
		got, err := ParseStandard(tt.input)
		if err != nil {
			t.Errorf("ParseStandard(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseStandard(%q): expected %s, got %s", tt.input, tt.expected, got)
		}
	}

	if _, err := ParseStandard("JSF-AV"); err == nil {
		t.Error("expected error for unknown standard")
	}
}

func TestNewID_CodeGrammar(t *testing.T) {
	tests := []struct {
		std   Standard
		code  string
		valid bool
	}{
		{CertC, "EXP33-C", true},
		{CertC, "BAD-RULE", false},
		{CertCPP, "OOP51-CPP", true},
		{CertCPP, "EXP5-CPP", false},
		{MisraC, "Rule 10.3", true},
		{MisraC, "Dir 4.6", true},
		{MisraC, "Rule 10", false},
		{MisraCPP, "Rule 5-0-3", true},
		{MisraCPP, "Rule 5.0", false},
		{Autosar, "A7-1-5", true},
		{Autosar, "M6-4-1", true},
		{Autosar, "B1-1-1", false},
	}

	for _, tt := range tests {
		_, err := NewID(tt.std, tt.code)
		if tt.valid && err != nil {
			t.Errorf("%s %q: unexpected error: %v", tt.std, tt.code, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("%s %q: expected error", tt.std, tt.code)
		}
	}
}

func TestParseID_RoundTrip(t *testing.T) {
	for _, s := range []string{"CERT-C/MEM30-C", "MISRA-C/Rule 10.3", "MISRA-CPP/Rule 18-4-1", "AUTOSAR/A5-1-1"} {
		id, err := ParseID(s)
		if err != nil {
			t.Fatalf("ParseID(%q): %v", s, err)
		}
		if id.String() != s {
			t.Errorf("expected %q, got %q", s, id.String())
		}
	}

	if _, err := ParseID("EXP33-C"); err == nil {
		t.Error("expected error for id without standard")
	}
}

func TestCompare_NaturalOrder(t *testing.T) {
	ids := []ID{
		{MisraC, "Rule 10.1"},
		{CertC, "STR31-C"},
		{MisraC, "Rule 2.2"},
		{Autosar, "A0-1-1"},
		{MisraC, "Dir 4.6"},
		{CertC, "ARR30-C"},
	}
	sort.Slice(ids, func(i, j int) bool { return Compare(ids[i], ids[j]) < 0 })

	var got []string
	for _, id := range ids {
		got = append(got, id.String())
	}
	expected := "CERT-C/ARR30-C,CERT-C/STR31-C,MISRA-C/Dir 4.6,MISRA-C/Rule 2.2,MISRA-C/Rule 10.1,AUTOSAR/A0-1-1"
	if strings.Join(got, ",") != expected {
		t.Errorf("expected %s, got %s", expected, strings.Join(got, ","))
	}
}

func TestResolve_Recognizers(t *testing.T) {
	cat := NewCatalog()

	tests := []struct {
		check    string
		tags     []string
		hint     Standard
		expected string
	}{
		{"c/cert/do-not-read-uninitialized-memory", []string{"security", "external/cert/id/exp33-c"}, CertC, "CERT-C/EXP33-C"},
		{"cpp/misra/cstdio-used", []string{"external/misra/id/rule-27-0-1"}, MisraCPP, "MISRA-CPP/Rule 27-0-1"},
		{"c/misra/typedefs", []string{"external/misra/id/dir-4-6"}, MisraC, "MISRA-C/Dir 4.6"},
		{"cpp/autosar/auto-specifier", []string{"external/autosar/id/a7-1-5"}, Autosar, "AUTOSAR/A7-1-5"},
		{"cert-err33-c", nil, CertC, "CERT-C/ERR33-C"},
		{"cert-err33-c", nil, CertCPP, "CERT-CPP/ERR33-C"},
		{"cert-oop51-cpp", nil, CertC, "CERT-CPP/OOP51-CPP"},
		{"misra-c2012-10.3", nil, MisraC, "MISRA-C/Rule 10.3"},
		{"misra-c2012-dir-4.6", nil, MisraC, "MISRA-C/Dir 4.6"},
		{"misra-cpp2008-5-0-3", nil, MisraCPP, "MISRA-CPP/Rule 5-0-3"},
		{"MEM30-C", nil, CertC, "CERT-C/MEM30-C"},
		{"M6-4-1", nil, Autosar, "AUTOSAR/M6-4-1"},
		{"Rule 21.3", nil, MisraC, "MISRA-C/Rule 21.3"},
		{"Rule 6-6-5", nil, MisraCPP, "MISRA-CPP/Rule 6-6-5"},
		{"MISRA-C/Rule 8.4", nil, CertC, "MISRA-C/Rule 8.4"},
	}

	for _, tt := range tests {
		id, ok := cat.Resolve(tt.check, tt.tags, tt.hint)
		if !ok {
			t.Errorf("Resolve(%q, %v): expected %s, got unmapped", tt.check, tt.tags, tt.expected)
			continue
		}
		if id.String() != tt.expected {
			t.Errorf("Resolve(%q, %v): expected %s, got %s", tt.check, tt.tags, tt.expected, id)
		}
	}

	for _, check := range []string{"", "core.NullDereference", "cpp/cert/unknown", "misra-c2012-10"} {
		if id, ok := cat.Resolve(check, nil, CertC); ok {
			t.Errorf("Resolve(%q): expected unmapped, got %s", check, id)
		}
	}
}

func TestLoadPacks(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "codeql-cert-c.yaml"), `
name: codeql-cert-c
analyzer: codeql
standard: CERT-C
version: "1.2"
checks:
  c/cert/use-after-free: MEM30-C
  c/cert/uninitialized: EXP33-C
`)
	writeFile(t, filepath.Join(dir, "_draft.yaml"), `
name: draft
standard: MISRA-C
checks:
  x: Rule 1.1
`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	cat, infos, err := LoadPacks(dir)
	if err != nil {
		t.Fatalf("LoadPacks: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 packs, got %d", len(infos))
	}
	if cat.Len() != 2 {
		t.Errorf("expected 2 enabled mappings, got %d", cat.Len())
	}

	id, ok := cat.Resolve("c/cert/use-after-free", nil, CertC)
	if !ok || id.String() != "CERT-C/MEM30-C" {
		t.Errorf("expected CERT-C/MEM30-C, got %v (%v)", id, ok)
	}
	if _, ok := cat.Resolve("x", nil, MisraC); ok {
		t.Error("disabled pack must not contribute mappings")
	}

	for _, info := range infos {
		if info.Name == "draft" && info.Enabled {
			t.Error("underscore-prefixed pack should be disabled")
		}
	}
}

func TestLoadPacks_InvalidCode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.yaml"), `
standard: AUTOSAR
checks:
  cpp/autosar/x: X1-1-1
`)

	_, infos, err := LoadPacks(dir)
	if err == nil {
		t.Fatal("expected error for invalid rule code")
	}
	if len(infos) != 1 || infos[0].Err == nil {
		t.Errorf("expected pack info carrying the error, got %+v", infos)
	}
}

func TestLoadPacks_MissingDir(t *testing.T) {
	cat, infos, err := LoadPacks(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat.Len() != 0 || len(infos) != 0 {
		t.Error("expected empty catalog")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
