package include

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qryxip/equipgo/internal/edit"
)

func TestResolveAllInlinesAbsolutePathLiteral(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data.rs")
	if err := os.WriteFile(target, []byte("const X: i32 = 1;"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src := `include!("` + target + `");`
	buf, err := edit.New("lib.rs", src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New(nil)
	if err := r.ResolveAll(buf); err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	got := buf.Text()
	if !strings.Contains(got, "const X: i32 = 1;") {
		t.Fatalf("expected inlined contents: %q", got)
	}
	if strings.Contains(got, "include!") {
		t.Fatalf("expected include! to be fully replaced: %q", got)
	}
}

func TestResolveAllLeavesRelativePathIntact(t *testing.T) {
	buf, err := edit.New("lib.rs", `include!("relative/path.rs");`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New(nil)
	if err := r.ResolveAll(buf); err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if buf.Text() != `include!("relative/path.rs");` {
		t.Fatalf("expected no change for relative path, got %q", buf.Text())
	}
}

func TestResolveAllFoldsConcatAndEnv(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "gen.rs")
	if err := os.WriteFile(target, []byte("fn generated() {}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src := `include!(concat!(env!("OUT_DIR"), "/gen.rs"));`
	buf, err := edit.New("lib.rs", src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New(map[string]string{"OUT_DIR": dir})
	if err := r.ResolveAll(buf); err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	got := buf.Text()
	if !strings.Contains(got, "fn generated() {}") {
		t.Fatalf("expected inlined generated contents: %q", got)
	}
}

func TestResolveAllLeavesUnknownEnvVarIntact(t *testing.T) {
	buf, err := edit.New("lib.rs", `include!(concat!(env!("MISSING"), "/gen.rs"));`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New(map[string]string{})
	if err := r.ResolveAll(buf); err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if !strings.Contains(buf.Text(), "include!") {
		t.Fatalf("expected the invocation to survive unresolved, got %q", buf.Text())
	}
}

func TestResolveAllHandlesMultipleInvocations(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.rs")
	b := filepath.Join(dir, "b.rs")
	if err := os.WriteFile(a, []byte("mod a_mod;"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(b, []byte("mod b_mod;"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src := `include!("` + a + `"); include!("` + b + `");`
	buf, err := edit.New("lib.rs", src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New(nil)
	if err := r.ResolveAll(buf); err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	got := buf.Text()
	if !strings.Contains(got, "mod a_mod;") || !strings.Contains(got, "mod b_mod;") {
		t.Fatalf("expected both files inlined: %q", got)
	}
}

func TestResolveAllMissingFileReturnsError(t *testing.T) {
	buf, err := edit.New("lib.rs", `include!("/nonexistent/definitely/missing.rs");`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New(nil)
	if err := r.ResolveAll(buf); err == nil {
		t.Fatalf("expected an error for a missing include target")
	}
}
