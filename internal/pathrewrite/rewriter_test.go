package pathrewrite

import (
	"strings"
	"testing"

	"github.com/qryxip/equipgo/internal/edit"
)

func onlyFoo(name string) (string, bool) {
	if name == "foo" {
		return "foo", true
	}
	return "", false
}

func TestRewriteExternPathsNoOpWithoutTranslation(t *testing.T) {
	buf, err := edit.New("bin.rs", "fn f(x: ::std::vec::Vec<i32>) {}")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := buf.Text()
	r := New("__equip")
	if err := r.RewriteExternPaths(buf, func(string) (string, bool) { return "", false }); err != nil {
		t.Fatalf("RewriteExternPaths: %v", err)
	}
	if buf.Text() != before {
		t.Fatalf("expected no-op, got %q", buf.Text())
	}
}

func TestRewriteExternPathsTranslatesAndAnnotatesRename(t *testing.T) {
	buf, err := edit.New("bin.rs", "fn f(x: ::foo::Bar) {}")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New("__equip")
	translate := func(name string) (string, bool) {
		if name == "foo" {
			return "crate1", true
		}
		return "", false
	}
	if err := r.RewriteExternPaths(buf, translate); err != nil {
		t.Fatalf("RewriteExternPaths: %v", err)
	}
	got := buf.Text()
	if !strings.Contains(got, "/*::*/crate::__equip::crates::") {
		t.Fatalf("missing translated prefix: %q", got)
	}
	if !strings.Contains(got, "/*foo*/crate1") {
		t.Fatalf("missing rename annotation: %q", got)
	}
}

func TestRewriteExternCrateBinaryMacroUse(t *testing.T) {
	buf, err := edit.New("bin.rs", "#[macro_use] extern crate foo;")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New("__equip")
	if err := r.RewriteExternCrateBinary(buf, onlyFoo); err != nil {
		t.Fatalf("RewriteExternCrateBinary: %v", err)
	}
	got := buf.Text()
	if !strings.Contains(got, "/* #[macro_use] extern crate foo; */") {
		t.Fatalf("original not commented out: %q", got)
	}
	if !strings.Contains(got, "pub use crate::__equip::crates::foo;") {
		t.Fatalf("missing crate re-export: %q", got)
	}
	if !strings.Contains(got, "pub use crate::__equip::macros::foo::*;") {
		t.Fatalf("missing macro re-export: %q", got)
	}
}

func TestRewriteExternCrateBinaryAsUnderscoreElides(t *testing.T) {
	buf, err := edit.New("bin.rs", "extern crate foo as _;")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New("__equip")
	if err := r.RewriteExternCrateBinary(buf, onlyFoo); err != nil {
		t.Fatalf("RewriteExternCrateBinary: %v", err)
	}
	got := buf.Text()
	if strings.Contains(got, "pub use") {
		t.Fatalf("expected the use to be elided for `as _`, got %q", got)
	}
}

func TestRewriteExternCrateLibraryWarnsOnRename(t *testing.T) {
	buf, err := edit.New("lib.rs", "extern crate foo as bar;")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New("__equip")
	warnings, err := r.RewriteExternCrateLibrary(buf, onlyFoo)
	if err != nil {
		t.Fatalf("RewriteExternCrateLibrary: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	got := buf.Text()
	if got != "use crate::__equip::crates::foo as bar;" {
		t.Fatalf("got %q", got)
	}
}

func TestRewriteCrateRefsLibrarySuffixesPaths(t *testing.T) {
	buf, err := edit.New("lib.rs", "fn f() -> crate::x::Y { crate::z() }")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New("__equip")
	if err := r.RewriteCrateRefsLibrary(buf, "foo"); err != nil {
		t.Fatalf("RewriteCrateRefsLibrary: %v", err)
	}
	got := buf.Text()
	want := "fn f() -> crate::__equip::crates::foo::x::Y { crate::__equip::crates::foo::z() }"
	if got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestRewriteCrateRefsLibraryPubCrate(t *testing.T) {
	buf, err := edit.New("lib.rs", "pub(crate) fn helper() {}")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New("__equip")
	if err := r.RewriteCrateRefsLibrary(buf, "foo"); err != nil {
		t.Fatalf("RewriteCrateRefsLibrary: %v", err)
	}
	want := "pub(in crate::__equip::crates::foo) fn helper() {}"
	if buf.Text() != want {
		t.Fatalf("got  %q\nwant %q", buf.Text(), want)
	}
}

func TestRewriteCrateRefsLibraryLeavesDollarCrateAlone(t *testing.T) {
	src := "macro_rules! m { () => { $crate::x }; }"
	buf, err := edit.New("lib.rs", src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := New("__equip")
	if err := r.RewriteCrateRefsLibrary(buf, "foo"); err != nil {
		t.Fatalf("RewriteCrateRefsLibrary: %v", err)
	}
	if buf.Text() != src {
		t.Fatalf("expected $crate left untouched for MacroRewriter, got %q", buf.Text())
	}
}
