// Package pathrewrite implements C3 PathRewriter: the four related
// rewrites that let a bundled library live as a submodule of a synthesized
// host module without changing its semantics (spec.md §4.3).
//
// Grounded on the teacher's astutil.Apply-based rewrites in
// pkg/plugin/builtin (cursor-driven node replacement) and
// pkg/preprocessor/unqualified_imports.go (rewriting bare references to
// carry an explicit qualifying prefix).
package pathrewrite

import (
	"fmt"
	"strings"

	"github.com/qryxip/equipgo/internal/edit"
	rtoken "github.com/qryxip/equipgo/internal/rust/token"
	"github.com/qryxip/equipgo/internal/rust/syntax"
)

// Translate maps an extern-crate name to its pseudo name, if that crate is
// one of the libraries being bundled.
type Translate func(name string) (pseudo string, ok bool)

// Rewriter performs the four PathRewriter rewrites of spec.md §4.3,
// parameterized on the host module's synthesized name.
type Rewriter struct {
	Host string
}

// New creates a Rewriter for the given host module name.
func New(host string) *Rewriter {
	return &Rewriter{Host: host}
}

// Warning is a non-fatal diagnostic (spec.md §7), surfaced through the
// caller-supplied sink rather than returned as an error.
type Warning struct {
	Message string
}

// RewriteExternPaths is PathRewriter rewrite (1): translate every absolute
// path `::Name::...` where Name is a bundled library, in both `use` trees
// and ordinary expression/type/pattern paths.
//
// Per spec.md §8, this is a no-op whenever translate returns !ok for every
// name it is asked about — callers rely on that to test a binary with no
// bundled libraries at all.
func (r *Rewriter) RewriteExternPaths(buf *edit.Buffer, translate Translate) error {
	sig := syntax.Significant(buf.Tokens())
	for i := 0; i+1 < len(sig); i++ {
		if !syntax.IsPunct(sig, i, "::") {
			continue
		}
		if i > 0 && isPathContinuation(sig[i-1]) {
			continue // part of a longer path already handled by its head
		}
		if sig[i+1].Kind != rtoken.Ident {
			continue
		}
		name := sig[i+1].Text
		pseudo, ok := translate(name)
		if !ok {
			continue
		}
		prefix := fmt.Sprintf("/*::*/crate::%s::crates::", r.Host)
		if err := buf.Schedule(sig[i].Start.Offset, sig[i].End.Offset, prefix); err != nil {
			return err
		}
		if pseudo != name {
			annotated := fmt.Sprintf("/*%s*/%s", name, pseudo)
			if err := buf.Schedule(sig[i+1].Start.Offset, sig[i+1].End.Offset, annotated); err != nil {
				return err
			}
		}
	}
	return buf.Flush()
}

func isPathContinuation(t rtoken.Token) bool {
	if t.Kind == rtoken.Ident {
		switch t.Text {
		case "use", "as", "in", "let", "return", "mut", "dyn", "impl", "for", "where", "if", "match", "while", "move", "break", "box", "ref":
			return false // a keyword before `::` starts a new absolute path
		}
		return true
	}
	if t.Kind == rtoken.Punct {
		switch t.Text {
		case ")", "]", ">":
			return true
		}
	}
	return false
}

// externCrateDecl describes one `extern crate X [as Y];` item.
type externCrateDecl struct {
	attrsStart  int
	hasMacroUse bool
	vis         string // leading visibility text, e.g. "pub", "" if none
	visStart    int
	startByte   int // start of "extern" keyword
	endByte     int // just past ';'
	name        string
	alias       string // "" if no `as` clause
	hasAlias    bool
}

func scanExternCrateDecls(sig []rtoken.Token) []externCrateDecl {
	var decls []externCrateDecl
	i := 0
	for i < len(sig) {
		attrs, afterAttrs := syntax.ScanAttrs(sig, i)
		j := afterAttrs
		visStart := j
		vis := ""
		if syntax.IsIdent(sig, j, "pub") {
			visEnd := j + 1
			if syntax.IsPunct(sig, j+1, "(") {
				close := syntax.FindMatching(sig, j+1)
				if close == -1 {
					i++
					continue
				}
				visEnd = close + 1
			}
			vis = joinText(sig[j:visEnd])
			j = visEnd
		}
		if syntax.IsIdent(sig, j, "extern") && syntax.IsIdent(sig, j+1, "crate") && j+2 < len(sig) && sig[j+2].Kind == rtoken.Ident {
			name := sig[j+2].Text
			k := j + 3
			alias := ""
			hasAlias := false
			if syntax.IsIdent(sig, k, "as") && k+1 < len(sig) && sig[k+1].Kind == rtoken.Ident {
				alias = sig[k+1].Text
				hasAlias = true
				k += 2
			}
			if syntax.IsPunct(sig, k, ";") {
				hasMacroUse := false
				for _, a := range attrs {
					if a.Name == "macro_use" {
						hasMacroUse = true
					}
				}
				start := sig[i].Start.Offset
				if len(attrs) == 0 {
					start = sig[visStart].Start.Offset
				}
				decls = append(decls, externCrateDecl{
					hasMacroUse: hasMacroUse,
					vis:         vis,
					visStart:    visStart,
					startByte:   start,
					endByte:     sig[k].End.Offset,
					name:        name,
					alias:       alias,
					hasAlias:    hasAlias,
				})
				i = k + 1
				continue
			}
		}
		i++
	}
	return decls
}

func joinText(toks []rtoken.Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Text)
	}
	return b.String()
}

// RewriteExternCrateBinary is PathRewriter rewrite (2): for each
// `extern crate X [as Y];` where X is bundled, comment out the declaration
// and replace it with `pub use crate::<host>::crates::X [as Y];`.
func (r *Rewriter) RewriteExternCrateBinary(buf *edit.Buffer, translate Translate) error {
	sig := syntax.Significant(buf.Tokens())
	src := buf.Text()
	for _, d := range scanExternCrateDecls(sig) {
		if _, ok := translate(d.name); !ok {
			continue
		}
		original := src[d.startByte:d.endByte]
		var out strings.Builder
		fmt.Fprintf(&out, "/* %s */ ", original)
		if d.hasAlias && d.alias == "_" {
			// "as _" elides the use entirely.
		} else if d.hasAlias {
			fmt.Fprintf(&out, "pub use crate::%s::crates::%s as %s;", r.Host, d.name, d.alias)
		} else {
			fmt.Fprintf(&out, "pub use crate::%s::crates::%s;", r.Host, d.name)
		}
		if d.hasMacroUse {
			fmt.Fprintf(&out, " pub use crate::%s::macros::%s::*;", r.Host, d.name)
		}
		if err := buf.Schedule(d.startByte, d.endByte, out.String()); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// RewriteExternCrateLibrary is PathRewriter rewrite (3): for each root-level
// `extern crate X [as Y];` in a bundled library, if translate supplies a
// pseudo name, replace the whole declaration with
// `[attrs] [vis] use crate::<host>::crates::<pseudo> as <alias>;`.
// A Warning is returned for every `as Y` form encountered, per
// spec.md §4.3(3)/§7.
func (r *Rewriter) RewriteExternCrateLibrary(buf *edit.Buffer, translate Translate) ([]Warning, error) {
	sig := syntax.Significant(buf.Tokens())
	src := buf.Text()
	var warnings []Warning
	for _, d := range scanExternCrateDecls(sig) {
		pseudo, ok := translate(d.name)
		if !ok {
			continue
		}
		alias := d.name
		if d.hasAlias {
			alias = d.alias
			warnings = append(warnings, Warning{Message: fmt.Sprintf(
				"extern crate %s as %s; at a library root is unusual; equipgo preserves the alias as `%s`", d.name, d.alias, d.alias)})
		}
		vis := d.vis
		if vis != "" {
			vis += " "
		}
		attrs := src[d.startByte:sig[d.visStart].Start.Offset]
		replacement := fmt.Sprintf("%s%suse crate::%s::crates::%s as %s;", attrs, vis, r.Host, pseudo, alias)
		if err := buf.Schedule(d.startByte, d.endByte, replacement); err != nil {
			return warnings, err
		}
	}
	return warnings, buf.Flush()
}

// RewriteCrateRefsLibrary is PathRewriter rewrite (4): after a library is
// re-parented under crate::<host>::crates::<pseudo>, every path starting
// with the `crate` keyword segment must be suffixed so it still refers to
// the same module, and `pub(crate)` must widen to
// `pub(in crate::<host>::crates::<pseudo>)`.
func (r *Rewriter) RewriteCrateRefsLibrary(buf *edit.Buffer, pseudo string) error {
	sig := syntax.Significant(buf.Tokens())
	suffix := fmt.Sprintf("::%s::crates::%s", r.Host, pseudo)

	for i := 0; i < len(sig); i++ {
		// pub(crate) -> pub(in crate::<host>::crates::<pseudo>)
		if syntax.IsIdent(sig, i, "pub") && syntax.IsPunct(sig, i+1, "(") && syntax.IsIdent(sig, i+2, "crate") && syntax.IsPunct(sig, i+3, ")") {
			if err := buf.Schedule(sig[i+2].Start.Offset, sig[i+2].End.Offset, "in crate"+suffix); err != nil {
				return err
			}
			continue
		}

		if !syntax.IsIdent(sig, i, "crate") {
			continue
		}
		if i > 0 && syntax.IsIdent(sig, i-1, "extern") {
			continue // `extern crate` handled separately
		}
		if i > 0 && syntax.IsPunct(sig, i-1, "$") {
			continue // `$crate` inside a macro_rules! body is MacroRewriter's concern
		}
		if !syntax.IsPunct(sig, i+1, "::") {
			continue // bare `crate` not starting a path (e.g. the `crate` in `pub(crate)`)
		}
		if err := buf.Schedule(sig[i].End.Offset, sig[i].End.Offset, suffix); err != nil {
			return err
		}
	}
	return buf.Flush()
}
