package modexpand

import (
	"fmt"
	"strings"
	"testing"
)

type memFS map[string]string

func (m memFS) ReadFile(path string) ([]byte, error) {
	path = strings.TrimPrefix(path, "./")
	if s, ok := m[path]; ok {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("no such file: %s", path)
}

func TestExpandFlatSibling(t *testing.T) {
	fs := memFS{
		"a/src/lib.rs": "mod m;\nfn main() {}\n",
		"a/src/m.rs":   "pub fn hello() {}\n",
	}
	e := New(fs)
	got, err := e.Expand("a/src/lib.rs")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !strings.Contains(got, "mod m {") || !strings.Contains(got, "pub fn hello() {}") {
		t.Fatalf("got %q", got)
	}
}

func TestExpandModDotRsDirectory(t *testing.T) {
	fs := memFS{
		"a/src/lib.rs":    "mod m;\n",
		"a/src/m/mod.rs":  "pub struct S;\n",
	}
	e := New(fs)
	got, err := e.Expand("a/src/lib.rs")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !strings.Contains(got, "pub struct S;") {
		t.Fatalf("got %q", got)
	}
}

func TestExpandMissingModuleFile(t *testing.T) {
	fs := memFS{
		"a/src/lib.rs": "mod m;\n",
	}
	e := New(fs)
	_, err := e.Expand("a/src/lib.rs")
	if err == nil {
		t.Fatalf("expected MissingModuleFileError")
	}
	merr, ok := err.(*MissingModuleFileError)
	if !ok {
		t.Fatalf("expected *MissingModuleFileError, got %T", err)
	}
	if len(merr.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %v", merr.Candidates)
	}
}

func TestExpandPathAttribute(t *testing.T) {
	fs := memFS{
		"a/src/lib.rs":     `#[path = "custom.rs"] mod m;`,
		"a/src/custom.rs":  "pub const X: i32 = 1;\n",
	}
	e := New(fs)
	got, err := e.Expand("a/src/lib.rs")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !strings.Contains(got, "pub const X: i32 = 1;") {
		t.Fatalf("got %q", got)
	}
}

func TestExpandNestedSiblingDirectoryRule(t *testing.T) {
	// lib.rs (non mod.rs) declares `mod a;`; a.rs in turn has an *inline*
	// `mod outer { mod inner; }` — inner's depth is 1, so it must resolve
	// relative to a.rs's own stem directory ("a/"), not lib.rs's directory.
	fs := memFS{
		"src/lib.rs":        "mod a;\n",
		"src/a.rs":          "mod outer { mod inner; }\n",
		"src/a/inner.rs":    "pub fn deep() {}\n",
	}
	e := New(fs)
	got, err := e.Expand("src/lib.rs")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !strings.Contains(got, "pub fn deep() {}") {
		t.Fatalf("got %q", got)
	}
}

func TestExpandIdempotentWithoutModDecls(t *testing.T) {
	fs := memFS{"src/lib.rs": "fn main() { println!(\"hi\"); }\n"}
	e := New(fs)
	got, err := e.Expand("src/lib.rs")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != fs["src/lib.rs"] {
		t.Fatalf("expected no-op on mod-free file, got %q", got)
	}
}

func TestDiscoverFilesListsRootAndEveryModuleFile(t *testing.T) {
	fs := memFS{
		"a/src/lib.rs":   "mod m;\nfn main() {}\n",
		"a/src/m/mod.rs": "mod inner;\npub fn hello() {}\n",
		"a/src/m/inner.rs": "pub fn deep() {}\n",
	}
	e := New(fs)
	got, err := e.DiscoverFiles("a/src/lib.rs")
	if err != nil {
		t.Fatalf("DiscoverFiles: %v", err)
	}
	want := []string{"a/src/lib.rs", "a/src/m/mod.rs", "a/src/m/inner.rs"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDiscoverFilesSurfacesMissingModuleFileError(t *testing.T) {
	fs := memFS{"a/src/lib.rs": "mod m;\n"}
	e := New(fs)
	_, err := e.DiscoverFiles("a/src/lib.rs")
	if _, ok := err.(*MissingModuleFileError); !ok {
		t.Fatalf("expected *MissingModuleFileError, got %T: %v", err, err)
	}
}
