// Package prelude implements C9 PreludeInjector: synthesizing and
// inserting the `use crate::<host>::preludes::<pseudo>::*;` line every
// inline module needs to see a library's local_inner_macros neighbors
// and translated dependencies without spelling out their full paths
// (spec.md §4.9).
//
// Grounded on the teacher's unqualified-imports pattern in
// pkg/plugin/builtin (a synthesized `use` line inserted once per scope
// so the rest of that scope's code can refer to a symbol unqualified).
package prelude

import (
	"fmt"
	"strings"

	"github.com/qryxip/equipgo/internal/edit"
	rtoken "github.com/qryxip/equipgo/internal/rust/token"
	"github.com/qryxip/equipgo/internal/rust/syntax"
)

// Injector inserts the prelude `use` line at the top of a library's root
// module and every nested inline module.
type Injector struct {
	Host   string
	Pseudo string

	// LocalInnerMacroNeighbors lists the pseudo-names of libraries in the
	// same bundle whose exported macros are local_inner_macros (so this
	// library needs their macros::<name> module in scope unqualified).
	LocalInnerMacroNeighbors []string

	// Translations lists the translated-dependency names (per the
	// current library's own translation table) this library needs
	// crates::<translation> in scope for.
	Translations []string
}

// Line is the prelude `use` line injected at every module top.
func (in *Injector) Line() string {
	return fmt.Sprintf("use crate::%s::preludes::%s::*;\n", in.Host, in.Pseudo)
}

// Fragment is the `preludes::<pseudo>` module body returned to the
// caller for assembly into the bundle (spec.md §4.9).
func (in *Injector) Fragment() string {
	var b strings.Builder
	for _, name := range in.LocalInnerMacroNeighbors {
		fmt.Fprintf(&b, "pub(in crate::%s) use crate::%s::macros::%s::*;\n", in.Host, in.Host, name)
	}
	for _, translation := range in.Translations {
		fmt.Fprintf(&b, "pub(in crate::%s) use crate::%s::crates::%s;\n", in.Host, in.Host, translation)
	}
	return b.String()
}

// RootInsertOffset returns the byte offset at which a root-module-only
// line (this package's own prelude line, or a sibling component's, such as
// macrorewrite's macros re-export line) can be spliced in: right after any
// leading `#![...]` inner attributes, before the first item.
func RootInsertOffset(buf *edit.Buffer) int {
	return rootModuleStart(syntax.Significant(buf.Tokens()))
}

// InjectAll splices Line() at the top of the root module and at the top
// of every nested inline `mod { ... }` body.
func (in *Injector) InjectAll(buf *edit.Buffer) error {
	sig := syntax.Significant(buf.Tokens())

	rootInsertAt := rootModuleStart(sig)
	if err := buf.Schedule(rootInsertAt, rootInsertAt, in.Line()); err != nil {
		return err
	}

	for _, pos := range inlineModuleBodyStarts(sig, 0, len(sig)) {
		if err := buf.Schedule(pos, pos, in.Line()); err != nil {
			return err
		}
	}

	return buf.Flush()
}

// rootModuleStart finds the byte offset to insert the prelude line at
// for the crate root: right after any leading `#![...]` inner attributes
// (which must stay first per rustc), before the first item.
func rootModuleStart(sig []rtoken.Token) int {
	i := 0
	for i < len(sig) {
		if !(sig[i].Kind == rtoken.Punct && sig[i].Text == "#") {
			break
		}
		j := i + 1
		if j >= len(sig) || !(sig[j].Kind == rtoken.Punct && sig[j].Text == "!") {
			break
		}
		j++
		if j >= len(sig) || !(sig[j].Kind == rtoken.Punct && sig[j].Text == "[") {
			break
		}
		close := syntax.FindMatching(sig, j)
		if close == -1 {
			break
		}
		i = close + 1
	}
	if i == 0 {
		return 0
	}
	return sig[i-1].End.Offset
}

// inlineModuleBodyStarts returns the byte offset just past the opening
// '{' of every `mod NAME { ... }` item in sig[lo:hi], recursing into
// every brace group (nested inline modules can appear anywhere a module
// can contain an item).
func inlineModuleBodyStarts(sig []rtoken.Token, lo, hi int) []int {
	var out []int
	i := lo
	for i < hi {
		_, afterAttrs := syntax.ScanAttrs(sig, i)
		if afterAttrs > hi {
			break
		}
		nodeEnd := syntax.NodeEnd(sig, afterAttrs)
		if nodeEnd > hi {
			nodeEnd = hi
		}

		if open, ok := modBodyOpen(sig, afterAttrs, nodeEnd); ok {
			close := syntax.FindMatching(sig, open)
			if close != -1 {
				out = append(out, sig[open].End.Offset)
				out = append(out, inlineModuleBodyStarts(sig, open+1, close)...)
				i = nodeEnd
				if i <= afterAttrs && i < hi {
					i = afterAttrs + 1
				}
				continue
			}
		}

		if braceOpen, ok := firstTopLevelBrace(sig, afterAttrs, nodeEnd); ok {
			close := syntax.FindMatching(sig, braceOpen)
			if close != -1 && close < nodeEnd {
				out = append(out, inlineModuleBodyStarts(sig, braceOpen+1, close)...)
			}
		}

		i = nodeEnd
		if i <= afterAttrs && i < hi {
			i = afterAttrs + 1
		}
	}
	return out
}

// modBodyOpen reports whether sig[lo:hi] is an inline module item — `mod
// IDENT { ... }` (not `mod IDENT;`, which has no body to inject into) —
// and if so, the index of its opening '{'.
func modBodyOpen(sig []rtoken.Token, lo, hi int) (int, bool) {
	i := lo
	if i < hi && sig[i].Kind == rtoken.Ident && sig[i].Text == "pub" {
		i++
		if i < hi && syntax.IsPunct(sig, i, "(") {
			close := syntax.FindMatching(sig, i)
			if close == -1 {
				return 0, false
			}
			i = close + 1
		}
	}
	if i >= hi || sig[i].Kind != rtoken.Ident || sig[i].Text != "mod" {
		return 0, false
	}
	i++
	if i >= hi || sig[i].Kind != rtoken.Ident {
		return 0, false
	}
	i++
	if i >= hi || !syntax.IsPunct(sig, i, "{") {
		return 0, false
	}
	return i, true
}

// firstTopLevelBrace finds the first depth-0 '{' in sig[lo:hi], used to
// recurse into a non-module construct (fn body, impl block, ...) that
// might itself contain a nested `mod { ... }`.
func firstTopLevelBrace(sig []rtoken.Token, lo, hi int) (int, bool) {
	depth := 0
	for i := lo; i < hi; i++ {
		t := sig[i]
		if t.Kind != rtoken.Punct {
			continue
		}
		switch t.Text {
		case "{":
			if depth == 0 {
				return i, true
			}
			depth++
		case "(", "[":
			depth++
		case ")", "]", "}":
			if depth > 0 {
				depth--
			}
		}
	}
	return 0, false
}
