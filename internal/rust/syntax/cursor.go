// Package syntax provides the lightweight structural scanning shared by
// every rewrite stage: filtering lexical trivia, matching delimiters,
// recognizing attribute groups, and finding the byte span of "the next
// attributable node" — the primitive spec.md's CfgEvaluator, PathRewriter,
// and MacroRewriter are all built from.
//
// It deliberately does not build a full parse tree (no operator precedence,
// no expression grammar): every construct the bundling pipeline needs to
// recognize — mod/use/extern-crate/macro_rules items, attribute groups,
// delimiter nesting, `$crate` adjacency — is identifiable from the token
// stream with a single forward scan tracking bracket depth, the same way
// the teacher's preprocessor stages work directly over source text before
// a single comprehensive go/parser.ParseFile call closes out the pipeline.
package syntax

import rtoken "github.com/qryxip/equipgo/internal/rust/token"

// Significant returns toks with whitespace, comment/doc and shebang tokens
// removed; the trailing EOF token is kept. Structural scanning never needs
// to see trivia; CommentEraser is the only stage that looks at the full
// token stream.
func Significant(toks []rtoken.Token) []rtoken.Token {
	out := make([]rtoken.Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind == rtoken.Whitespace || t.IsComment() || t.Kind == rtoken.Shebang {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isOpen(t rtoken.Token) bool {
	return t.Kind == rtoken.Punct && (t.Text == "(" || t.Text == "{" || t.Text == "[")
}

func isClose(t rtoken.Token) bool {
	return t.Kind == rtoken.Punct && (t.Text == ")" || t.Text == "}" || t.Text == "]")
}

// matchOf reports the closing delimiter for an opening one.
func matchOf(open string) string {
	switch open {
	case "(":
		return ")"
	case "{":
		return "}"
	case "[":
		return "]"
	}
	return ""
}

// FindMatching returns the index in sig of the delimiter matching the
// opening delimiter at sig[openIdx], or -1 if unbalanced.
func FindMatching(sig []rtoken.Token, openIdx int) int {
	if openIdx < 0 || openIdx >= len(sig) || !isOpen(sig[openIdx]) {
		return -1
	}
	want := matchOf(sig[openIdx].Text)
	depth := 0
	for i := openIdx; i < len(sig); i++ {
		t := sig[i]
		if isOpen(t) {
			depth++
		} else if isClose(t) {
			depth--
			if depth == 0 {
				if t.Text != want {
					return -1
				}
				return i
			}
		}
	}
	return -1
}

// NodeEnd returns the index just past "the next attributable node" that
// begins at sig[start]: it scans forward tracking bracket depth relative
// to start and stops at whichever of these it reaches first:
//
//  1. at the matching '}' of the first depth-0 '{' it opens (inclusive) —
//     items and blocks (fn/struct/impl/mod/match-arm bodies, ...) have no
//     required trailing separator, so the node ends with its own braces;
//  2. at the first depth-0 ',' or ';' (inclusive — the separator is part
//     of the node, matching how CfgEvaluator deletes a comma-terminated
//     struct field/match arm/fn parameter along with its trailing comma);
//  3. at the first depth-0 closing delimiter (exclusive — that delimiter
//     belongs to the *enclosing* node, not this one).
func NodeEnd(sig []rtoken.Token, start int) int {
	depth := 0
	for i := start; i < len(sig); i++ {
		t := sig[i]
		if isOpen(t) {
			if depth == 0 && t.Text == "{" {
				close := FindMatching(sig, i)
				if close == -1 {
					return len(sig)
				}
				return close + 1
			}
			depth++
			continue
		}
		if isClose(t) {
			if depth == 0 {
				return i
			}
			depth--
			continue
		}
		if depth == 0 && t.Kind == rtoken.Punct && (t.Text == "," || t.Text == ";") {
			return i + 1
		}
	}
	return len(sig)
}

// Attr is one `#[...]` (outer) or `#![...]` (inner) attribute group.
type Attr struct {
	StartIdx int // index of '#'
	EndIdx   int // index of closing ']' (inclusive)
	Inline   bool
	Name     string // leading path segment, e.g. "cfg", "doc", "macro_export"
}

// Span reports the attribute's byte range, including the brackets.
func (a Attr) Span(sig []rtoken.Token) (int, int) {
	return sig[a.StartIdx].Start.Offset, sig[a.EndIdx].End.Offset
}

// ArgsSpan reports the byte range strictly inside the attribute's `(...)`
// argument list, if it has one (e.g. `cfg(feature = "a")` -> span of
// `feature = "a"`). ok is false for a bare attribute like `#[test]`.
func ArgsSpan(sig []rtoken.Token, a Attr) (start, end int, ok bool) {
	// Layout: '#' ['!'] '[' Name ( '(' ... ')' | '=' value )? ']'
	i := a.StartIdx + 1
	if a.Inline {
		i++
	}
	i++ // '['
	i++ // Name ident
	if i >= a.EndIdx {
		return 0, 0, false
	}
	if sig[i].Kind == rtoken.Punct && sig[i].Text == "(" {
		close := FindMatching(sig, i)
		if close == -1 || close != a.EndIdx-1 {
			return 0, 0, false
		}
		return sig[i+1].Start.Offset, sig[close].Start.Offset, true
	}
	if sig[i].Kind == rtoken.Punct && sig[i].Text == "=" {
		valStart := i + 1
		if valStart >= a.EndIdx {
			return 0, 0, false
		}
		return sig[valStart].Start.Offset, sig[a.EndIdx].Start.Offset, true
	}
	return 0, 0, false
}

// ScanAttrs consumes a maximal run of attribute groups starting at sig[i]
// (i.e. consecutive `#[...]`/`#![...]`) and returns them along with the
// index of the first non-attribute token.
func ScanAttrs(sig []rtoken.Token, i int) ([]Attr, int) {
	var attrs []Attr
	for i < len(sig) {
		if !(sig[i].Kind == rtoken.Punct && sig[i].Text == "#") {
			break
		}
		start := i
		j := i + 1
		inline := false
		if j < len(sig) && sig[j].Kind == rtoken.Punct && sig[j].Text == "!" {
			inline = true
			j++
		}
		if j >= len(sig) || !(sig[j].Kind == rtoken.Punct && sig[j].Text == "[") {
			break
		}
		close := FindMatching(sig, j)
		if close == -1 {
			break
		}
		name := ""
		if j+1 < close && sig[j+1].Kind == rtoken.Ident {
			name = sig[j+1].Text
		}
		attrs = append(attrs, Attr{StartIdx: start, EndIdx: close, Inline: inline, Name: name})
		i = close + 1
	}
	return attrs, i
}

// IsIdent reports whether sig[i] is an identifier with the given text.
func IsIdent(sig []rtoken.Token, i int, text string) bool {
	return i >= 0 && i < len(sig) && sig[i].Kind == rtoken.Ident && sig[i].Text == text
}

// IsPunct reports whether sig[i] is a punctuation token with the given text.
func IsPunct(sig []rtoken.Token, i int, text string) bool {
	return i >= 0 && i < len(sig) && sig[i].Kind == rtoken.Punct && sig[i].Text == text
}
