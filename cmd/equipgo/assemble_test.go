package main

import (
	"strings"
	"testing"

	"github.com/qryxip/equipgo/internal/bundle"
)

func TestAssembleWithNoLibrariesReturnsBinaryUnchanged(t *testing.T) {
	got := assemble("__equip", "fn main() {}\n", nil)
	if got != "fn main() {}\n" {
		t.Fatalf("got %q", got)
	}
}

func TestAssembleWrapsLibrariesInHostModule(t *testing.T) {
	libs := []bundle.LibraryResult{{
		Pseudo:          "foo",
		Source:          "pub fn hello() {}\n",
		MacrosFragment:  "pub use crate::{__equip_macro_def_foo_m as m};\n",
		PreludeFragment: "",
	}}
	got := assemble("__equip", "fn main() {}\n", libs)

	if !strings.HasPrefix(got, "fn main() {}\n\n") {
		t.Fatalf("expected the binary source first, got %q", got)
	}
	if !strings.Contains(got, "mod __equip {") {
		t.Fatalf("expected the host module, got %q", got)
	}
	if !strings.Contains(got, "pub mod crates {") || !strings.Contains(got, "pub mod foo {") {
		t.Fatalf("expected the library's crates submodule, got %q", got)
	}
	if !strings.Contains(got, "pub fn hello() {}") {
		t.Fatalf("expected the library source inlined, got %q", got)
	}
	if !strings.Contains(got, "pub mod macros {") || !strings.Contains(got, "__equip_macro_def_foo_m") {
		t.Fatalf("expected the macros fragment inlined, got %q", got)
	}
}

func TestAssembleSkipsLibrariesMarkedSkipped(t *testing.T) {
	libs := []bundle.LibraryResult{
		{Pseudo: "foo", Skipped: true},
	}
	got := assemble("__equip", "fn main() {}\n", libs)
	if got != "fn main() {}\n" {
		t.Fatalf("expected a skipped-only library set to leave the binary untouched, got %q", got)
	}
}

func TestAssembleOmitsEmptyMacrosAndPreludeSubmodulesPerLibrary(t *testing.T) {
	libs := []bundle.LibraryResult{{
		Pseudo: "foo",
		Source: "pub fn hello() {}\n",
	}}
	got := assemble("__equip", "fn main() {}\n", libs)
	if strings.Contains(got, "pub mod foo {\n\n") {
		t.Fatalf("did not expect an empty foo submodule under macros/preludes, got %q", got)
	}
}
