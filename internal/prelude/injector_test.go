package prelude

import (
	"strings"
	"testing"

	"github.com/qryxip/equipgo/internal/edit"
)

func TestInjectAllInsertsAtRootAndNestedModules(t *testing.T) {
	buf, err := edit.New("lib.rs", `fn f() {} mod inner { fn g() {} mod deeper { fn h() {} } }`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := &Injector{Host: "acme", Pseudo: "mylib"}
	if err := in.InjectAll(buf); err != nil {
		t.Fatalf("InjectAll: %v", err)
	}
	got := buf.Text()
	want := "use crate::acme::preludes::mylib::*;\n"
	if n := strings.Count(got, want); n != 3 {
		t.Fatalf("expected 3 injections (root + 2 nested modules), got %d in %q", n, got)
	}
	if !strings.HasPrefix(got, want) {
		t.Fatalf("expected the root injection to come first: %q", got)
	}
	if !strings.Contains(got, "mod inner {"+want) {
		t.Fatalf("expected injection right after inner's opening brace: %q", got)
	}
	if !strings.Contains(got, "mod deeper {"+want) {
		t.Fatalf("expected injection right after deeper's opening brace: %q", got)
	}
}

func TestInjectAllSkipsUnboundModDeclaration(t *testing.T) {
	buf, err := edit.New("lib.rs", `mod other; fn f() {}`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := &Injector{Host: "acme", Pseudo: "mylib"}
	if err := in.InjectAll(buf); err != nil {
		t.Fatalf("InjectAll: %v", err)
	}
	got := buf.Text()
	if strings.Count(got, "use crate::acme::preludes::mylib::*;") != 1 {
		t.Fatalf("expected exactly one injection (root only): %q", got)
	}
}

func TestInjectAllInsertsAfterLeadingInnerAttributes(t *testing.T) {
	buf, err := edit.New("lib.rs", `#![no_std] #![feature(x)] fn f() {}`)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := &Injector{Host: "acme", Pseudo: "mylib"}
	if err := in.InjectAll(buf); err != nil {
		t.Fatalf("InjectAll: %v", err)
	}
	got := buf.Text()
	if !strings.HasPrefix(got, `#![no_std] #![feature(x)]use crate::acme::preludes::mylib::*;`) {
		t.Fatalf("expected injection after both inner attributes: %q", got)
	}
}

func TestFragmentListsNeighborsAndTranslations(t *testing.T) {
	in := &Injector{
		Host:                     "acme",
		Pseudo:                   "mylib",
		LocalInnerMacroNeighbors: []string{"helper"},
		Translations:             []string{"serde_json"},
	}
	got := in.Fragment()
	if !strings.Contains(got, "pub(in crate::acme) use crate::acme::macros::helper::*;") {
		t.Fatalf("expected the neighbor macros re-export: %q", got)
	}
	if !strings.Contains(got, "pub(in crate::acme) use crate::acme::crates::serde_json;") {
		t.Fatalf("expected the translated dependency re-export: %q", got)
	}
}
