// Package macrorewrite implements C5 MacroRewriter: adapting
// `macro_rules!` definitions so a bundled library's declarative macros
// still resolve correctly once the library becomes a submodule of the
// synthesized host module (spec.md §4.5).
//
// Grounded on the token-sequence pattern matching of the teacher's
// pkg/plugin/builtin/pattern_match.go (scanning a marker, walking forward
// through a bracketed body, emitting a rewritten replacement) adapted from
// Go AST nodes to the raw Rust token stream.
package macrorewrite

import (
	"fmt"
	"strings"

	"github.com/qryxip/equipgo/internal/edit"
	rtoken "github.com/qryxip/equipgo/internal/rust/token"
	"github.com/qryxip/equipgo/internal/rust/syntax"
)

// Export records one macro_rules! item that carried #[macro_export]: its
// original name, the name it was renamed to, and whether it additionally
// carried `local_inner_macros`.
type Export struct {
	Original         string
	Renamed          string
	LocalInnerMacros bool
}

// Rewriter performs the MacroRewriter transformation for one bundled
// library, parameterized on the synthesized host module's name.
type Rewriter struct {
	Host string
}

// New creates a Rewriter for the given host module name.
func New(host string) *Rewriter {
	return &Rewriter{Host: host}
}

type macroDecl struct {
	attrs        []syntax.Attr
	macroExport  bool
	localInner   bool
	nameIdx      int
	bodyOpen     int
	bodyClose    int
	startByte    int
	endByte      int
}

// scanMacroRules finds every `macro_rules! Name { ... }` item, in source
// order, along with any attributes immediately preceding it.
func scanMacroRules(sig []rtoken.Token) []macroDecl {
	var decls []macroDecl
	i := 0
	for i < len(sig) {
		attrs, afterAttrs := syntax.ScanAttrs(sig, i)
		j := afterAttrs
		if !(syntax.IsIdent(sig, j, "macro_rules") && syntax.IsPunct(sig, j+1, "!") && j+2 < len(sig) && sig[j+2].Kind == rtoken.Ident) {
			i++
			continue
		}
		nameIdx := j + 2
		bodyOpen := j + 3
		if bodyOpen >= len(sig) || sig[bodyOpen].Kind != rtoken.Punct || !isOpenDelim(sig[bodyOpen].Text) {
			i++
			continue
		}
		bodyClose := syntax.FindMatching(sig, bodyOpen)
		if bodyClose == -1 {
			i++
			continue
		}
		macroExport := false
		localInner := false
		for _, a := range attrs {
			if a.Name != "macro_export" {
				continue
			}
			macroExport = true
			s, e, ok := syntax.ArgsSpan(sig, a)
			if ok {
				for k := 0; k < len(sig); k++ {
					if sig[k].Start.Offset >= s && sig[k].End.Offset <= e && sig[k].Kind == rtoken.Ident && sig[k].Text == "local_inner_macros" {
						localInner = true
					}
				}
			}
		}
		start := sig[i].Start.Offset
		if len(attrs) == 0 {
			start = sig[afterAttrs].Start.Offset
		}
		decls = append(decls, macroDecl{
			attrs:       attrs,
			macroExport: macroExport,
			localInner:  localInner,
			nameIdx:     nameIdx,
			bodyOpen:    bodyOpen,
			bodyClose:   bodyClose,
			startByte:   start,
			endByte:     sig[bodyClose].End.Offset,
		})
		i = bodyClose + 1
	}
	return decls
}

func isOpenDelim(s string) bool {
	return s == "{" || s == "(" || s == "["
}

// Rewrite applies both MacroRewriter steps of spec.md §4.5 to every
// macro_rules! item in buf, for a library whose pseudo name is pseudo:
// suffixing `$crate` references to point at the re-parented defining
// crate, and renaming + wrapping every #[macro_export] macro. It returns
// the recorded exports, to be rendered by MacrosFragment and
// RootUseLine.
func (r *Rewriter) Rewrite(buf *edit.Buffer, pseudo string) ([]Export, error) {
	sig := syntax.Significant(buf.Tokens())
	decls := scanMacroRules(sig)
	suffix := fmt.Sprintf("::%s::crates::%s", r.Host, pseudo)

	var exports []Export

	for _, d := range decls {
		for i := d.bodyOpen + 1; i+1 < d.bodyClose; i++ {
			if syntax.IsPunct(sig, i, "$") && syntax.IsIdent(sig, i+1, "crate") {
				if err := buf.Schedule(sig[i+1].End.Offset, sig[i+1].End.Offset, suffix); err != nil {
					return nil, err
				}
			}
		}

		if !d.macroExport {
			continue
		}
		original := sig[d.nameIdx].Text
		renamed := fmt.Sprintf("%s_macro_def_%s_%s", r.Host, pseudo, original)
		if err := buf.Schedule(sig[d.nameIdx].Start.Offset, sig[d.nameIdx].End.Offset, renamed); err != nil {
			return nil, err
		}
		exports = append(exports, Export{Original: original, Renamed: renamed, LocalInnerMacros: d.localInner})

		// Inserted right at the definition site (d.endByte), not
		// collected for one end-of-file appendix: a later invocation of
		// the macro's original name in this same file, before the file
		// ends, must already see a resolvable `original` by that point.
		wrapper := fmt.Sprintf("\nmacro_rules! %s { ($($tt:tt)*) => (crate::%s!{$($tt)*}) }\n", original, renamed)
		if err := buf.Schedule(d.endByte, d.endByte, wrapper); err != nil {
			return nil, err
		}
	}

	if err := buf.Flush(); err != nil {
		return nil, err
	}
	return exports, nil
}

// RootUseLine is the line to prepend at the top of a library's root once
// MacroRewriter has recorded at least one export (spec.md §4.5 ¶3).
func RootUseLine(host, pseudo string) string {
	return fmt.Sprintf("pub use crate::%s::macros::%s::*;\n", host, pseudo)
}

// MacrosFragment renders the textual fragment to be inserted into the
// host's macros::<pseudo> submodule: a single `pub use` that re-exports
// every renamed macro under its original name.
func MacrosFragment(exports []Export) string {
	if len(exports) == 0 {
		return ""
	}
	parts := make([]string, len(exports))
	for i, ex := range exports {
		parts[i] = fmt.Sprintf("%s as %s", ex.Renamed, ex.Original)
	}
	return fmt.Sprintf("pub use crate::{%s};\n", strings.Join(parts, ", "))
}
