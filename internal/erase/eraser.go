// Package erase implements C8 CommentEraser: blanking out either doc
// attributes or comments and interstitial whitespace, via a mask of
// character positions to erase (spec.md §4.8).
//
// Grounded on the teacher's pkg/preprocessor/sourcemap.go: position-keyed
// bookkeeping over a source string kept separate from the rewrite itself,
// adapted here from a line/column mapping table to a flat byte mask,
// since erasure needs "is this byte kept or blanked", not a translation
// between two coordinate spaces.
package erase

import (
	"github.com/qryxip/equipgo/internal/edit"
	rtoken "github.com/qryxip/equipgo/internal/rust/token"
	"github.com/qryxip/equipgo/internal/rust/syntax"
)

// Mode selects which characters CommentEraser blanks out.
type Mode int

const (
	// EraseDocs blanks every #[doc...] / #![doc...] attribute span
	// (both the explicit form and the `///`/`//!`/`/**`/`/*!` sugar the
	// lexer already folds into doc-comment tokens).
	EraseDocs Mode = iota
	// EraseComments blanks every comment and interstitial whitespace
	// byte — everything that isn't part of a token's own span.
	EraseComments
)

// Run blanks the selected character class in buf, preserving column
// alignment (every erased byte becomes a space) and a leading shebang
// line, then verifies the result still reparses.
func Run(buf *edit.Buffer, mode Mode) error {
	src := buf.Text()
	mask := make([]bool, len(src))

	shebangEnd := 0
	if len(src) >= 2 && src[0] == '#' && src[1] == '!' {
		for shebangEnd < len(src) && src[shebangEnd] != '\n' {
			shebangEnd++
		}
	}

	switch mode {
	case EraseDocs:
		markDocSpans(buf.Tokens(), mask)
	case EraseComments:
		markNonTokenSpans(buf.Tokens(), mask)
	}

	for i := 0; i < shebangEnd; i++ {
		mask[i] = false
	}

	out := []byte(src)
	for i, erase := range mask {
		if erase && out[i] != '\n' {
			out[i] = ' '
		}
	}

	return buf.Reset(string(out))
}

// markDocSpans marks every #[doc(...)]/#![doc(...)] attribute's full
// span, plus every doc-comment token's span (///, //!, /** */, /*! */),
// which the lexer already recognizes as LineDoc/BlockDoc and which are
// semantically sugar for the same attribute.
func markDocSpans(tokens []rtoken.Token, mask []bool) {
	sig := syntax.Significant(tokens)
	i := 0
	for i < len(sig) {
		attrs, next := syntax.ScanAttrs(sig, i)
		if next == i {
			i++
			continue
		}
		for _, a := range attrs {
			if a.Name == "doc" {
				start, end := a.Span(sig)
				markRange(mask, start, end)
			}
		}
		i = next
	}
	for _, t := range tokens {
		if t.Kind == rtoken.LineDoc || t.Kind == rtoken.BlockDoc {
			markRange(mask, t.Start.Offset, t.End.Offset)
		}
	}
}

// markNonTokenSpans marks every byte NOT covered by a significant token's
// own span — i.e. comments and whitespace, the complement of the
// meaningful token stream (spec.md §4.8: "what remains marked is exactly
// the non-token characters").
func markNonTokenSpans(tokens []rtoken.Token, mask []bool) {
	for i := range mask {
		mask[i] = true
	}
	for _, t := range syntax.Significant(tokens) {
		if t.Kind == rtoken.EOF {
			continue
		}
		for i := t.Start.Offset; i < t.End.Offset; i++ {
			mask[i] = false
		}
	}
}

func markRange(mask []bool, start, end int) {
	for i := start; i < end && i < len(mask); i++ {
		mask[i] = true
	}
}
