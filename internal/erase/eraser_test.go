package erase

import (
	"strings"
	"testing"

	"github.com/qryxip/equipgo/internal/edit"
)

func TestRunEraseCommentsBlanksLineAndBlockComments(t *testing.T) {
	src := "fn f() { // a line comment\n let x = 1; /* a block comment */ x }"
	buf, err := edit.New("lib.rs", src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := Run(buf, EraseComments); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := buf.Text()
	if strings.Contains(got, "a line comment") || strings.Contains(got, "a block comment") {
		t.Fatalf("expected comments to be blanked: %q", got)
	}
	if !strings.Contains(got, "let x = 1;") || !strings.Contains(got, "x }") {
		t.Fatalf("expected code to survive: %q", got)
	}
	if len(got) != len(src) {
		t.Fatalf("expected column-preserving length %d, got %d", len(src), len(got))
	}
	if strings.Count(got, "\n") != strings.Count(src, "\n") {
		t.Fatalf("expected line count preserved")
	}
}

func TestRunEraseDocsBlanksDocAttributeButKeepsOthers(t *testing.T) {
	src := `#[doc = "hello"] #[inline] fn f() {}`
	buf, err := edit.New("lib.rs", src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := Run(buf, EraseDocs); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := buf.Text()
	if strings.Contains(got, "doc") || strings.Contains(got, "hello") {
		t.Fatalf("expected the doc attribute blanked: %q", got)
	}
	if !strings.Contains(got, "#[inline]") {
		t.Fatalf("expected the non-doc attribute to survive: %q", got)
	}
	if !strings.Contains(got, "fn f() {}") {
		t.Fatalf("expected the item to survive: %q", got)
	}
}

func TestRunEraseDocsBlanksSlashSlashSlashSugar(t *testing.T) {
	src := "/// a doc comment\nfn f() {}"
	buf, err := edit.New("lib.rs", src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := Run(buf, EraseDocs); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := buf.Text()
	if strings.Contains(got, "a doc comment") {
		t.Fatalf("expected the doc comment blanked: %q", got)
	}
	if !strings.Contains(got, "fn f() {}") {
		t.Fatalf("expected the item to survive: %q", got)
	}
}

func TestRunPreservesLeadingShebang(t *testing.T) {
	src := "#!/usr/bin/env cargo-eval\n// a comment\nfn f() {}"
	buf, err := edit.New("lib.rs", src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := Run(buf, EraseComments); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := buf.Text()
	if !strings.HasPrefix(got, "#!/usr/bin/env cargo-eval\n") {
		t.Fatalf("expected the shebang line preserved verbatim: %q", got)
	}
	if strings.Contains(got, "a comment") {
		t.Fatalf("expected the trailing comment blanked: %q", got)
	}
}
