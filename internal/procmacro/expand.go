package procmacro

import (
	"context"
	"strings"

	"github.com/qryxip/equipgo/internal/edit"
	rtoken "github.com/qryxip/equipgo/internal/rust/token"
	"github.com/qryxip/equipgo/internal/rust/syntax"
)

// Host is the macro-classification and expansion surface Expander needs
// from a proc-macro host connection. *Driver implements it; tests supply
// a fake so the expansion loop can be exercised without a real
// subprocess.
type Host interface {
	IsDerive(name string) bool
	IsAttr(name string) bool
	IsFuncLike(name string) bool
	Expand(ctx context.Context, kind Kind, macroName string, body TokenTree, attr *TokenTree) (TokenTree, error)
}

// Expander runs the convergent expansion loop of spec.md §4.6 over an
// EditBuffer, using a Host to actually expand each matched macro.
type Expander struct {
	driver Host
}

// NewExpander creates an Expander backed by the given Host.
func NewExpander(driver Host) *Expander {
	return &Expander{driver: driver}
}

// ExpandAll repeats the three passes of spec.md §4.6 — attribute macros,
// then derives, then function-like invocations — restarting from the top
// after every single match, until a full round finds nothing left to
// expand. Termination is guaranteed because every match replaces at least
// one macro invocation's tokens with non-macro (commented-out) tokens, so
// the next pass sees a strictly smaller population of candidates; any
// macros the expansion itself reintroduces are handled by later passes.
func (x *Expander) ExpandAll(ctx context.Context, buf *edit.Buffer) error {
	for {
		matched, err := x.expandOneAttr(ctx, buf)
		if err != nil {
			return err
		}
		if matched {
			continue
		}
		matched, err = x.expandOneDerive(ctx, buf)
		if err != nil {
			return err
		}
		if matched {
			continue
		}
		matched, err = x.expandOneFuncLike(ctx, buf)
		if err != nil {
			return err
		}
		if matched {
			continue
		}
		return nil
	}
}

// attrMatch is the first attribute-macro invocation found in document
// order: the item it decorates, the matched attribute itself, and the
// attribute's argument tokens (if it has any).
type attrMatch struct {
	itemStart int
	itemEnd   int
	name      string
	argTokens []rtoken.Token
	bodyTree  TokenTree
}

func (x *Expander) findAttrMatch(sig []rtoken.Token, lo, hi int) *attrMatch {
	i := lo
	for i < hi {
		attrs, afterAttrs := syntax.ScanAttrs(sig, i)
		if afterAttrs > hi {
			break
		}
		nodeEnd := syntax.NodeEnd(sig, afterAttrs)
		if nodeEnd > hi {
			nodeEnd = hi
		}
		for _, a := range attrs {
			if !x.driver.IsAttr(a.Name) {
				continue
			}
			var argToks []rtoken.Token
			if s, e, ok := syntax.ArgsSpan(sig, a); ok {
				argToks = tokensInRange(sig, s, e)
			}
			return &attrMatch{
				itemStart: sig[a.StartIdx].Start.Offset,
				itemEnd:   sig[nodeEnd-1].End.Offset,
				name:      a.Name,
				argTokens: argToks,
				bodyTree:  tokensToGroup(sig[afterAttrs:nodeEnd]),
			}
		}
		if m := x.findAttrMatchInBraces(sig, afterAttrs, nodeEnd); m != nil {
			return m
		}
		i = nodeEnd
		if i <= afterAttrs && i < hi {
			i = afterAttrs + 1
		}
	}
	return nil
}

func (x *Expander) findAttrMatchInBraces(sig []rtoken.Token, lo, hi int) *attrMatch {
	depth := 0
	for i := lo; i < hi; i++ {
		t := sig[i]
		if t.Kind != rtoken.Punct {
			continue
		}
		switch t.Text {
		case "{":
			if depth == 0 {
				close := syntax.FindMatching(sig, i)
				if close == -1 || close >= hi {
					return nil
				}
				if m := x.findAttrMatch(sig, i+1, close); m != nil {
					return m
				}
				i = close
				continue
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
	return nil
}

func (x *Expander) expandOneAttr(ctx context.Context, buf *edit.Buffer) (bool, error) {
	sig := syntax.Significant(buf.Tokens())
	m := x.findAttrMatch(sig, 0, len(sig))
	if m == nil {
		return false, nil
	}
	var attrTree *TokenTree
	if len(m.argTokens) > 0 {
		t := tokensToGroup(m.argTokens)
		attrTree = &t
	}
	expanded, err := x.driver.Expand(ctx, Attr, m.name, m.bodyTree, attrTree)
	if err != nil {
		return false, err
	}
	if err := buf.Schedule(m.itemStart, m.itemStart, "/*"); err != nil {
		return false, err
	}
	if err := buf.Schedule(m.itemEnd, m.itemEnd, "*/"+render(expanded)); err != nil {
		return false, err
	}
	return true, buf.Flush()
}

// deriveMatch is the first matching #[derive(...)] entry found in
// document order: the owning item's end (where the expansion is
// appended) and the span of the derive name (plus a trailing comma, if
// present) to comment out within the derive list.
type deriveMatch struct {
	itemEnd       int
	nameStart     int
	nameEnd       int
	name          string
	subjectTokens TokenTree
}

func (x *Expander) findDeriveMatch(sig []rtoken.Token, lo, hi int) *deriveMatch {
	i := lo
	for i < hi {
		attrs, afterAttrs := syntax.ScanAttrs(sig, i)
		if afterAttrs > hi {
			break
		}
		nodeEnd := syntax.NodeEnd(sig, afterAttrs)
		if nodeEnd > hi {
			nodeEnd = hi
		}
		for _, a := range attrs {
			if a.Name != "derive" {
				continue
			}
			s, e, ok := syntax.ArgsSpan(sig, a)
			if !ok {
				continue
			}
			argLo, argHi := tokenIndexRange(sig, s, e)
			args := splitTopLevelCommas(sig, argLo, argHi)
			for _, rng := range args {
				nameIdx := -1
				for k := rng[0]; k < rng[1]; k++ {
					if sig[k].Kind == rtoken.Ident {
						nameIdx = k
						break
					}
				}
				if nameIdx == -1 || !x.driver.IsDerive(sig[nameIdx].Text) {
					continue
				}
				nameStart := sig[nameIdx].Start.Offset
				nameEnd := sig[nameIdx].End.Offset
				if rng[1] < len(sig) && syntax.IsPunct(sig, rng[1], ",") {
					nameEnd = sig[rng[1]].End.Offset
				}
				return &deriveMatch{
					itemEnd:       sig[nodeEnd-1].End.Offset,
					nameStart:     nameStart,
					nameEnd:       nameEnd,
					name:          sig[nameIdx].Text,
					subjectTokens: tokensToGroup(sig[afterAttrs:nodeEnd]),
				}
			}
		}
		if m := x.findDeriveMatchInBraces(sig, afterAttrs, nodeEnd); m != nil {
			return m
		}
		i = nodeEnd
		if i <= afterAttrs && i < hi {
			i = afterAttrs + 1
		}
	}
	return nil
}

func (x *Expander) findDeriveMatchInBraces(sig []rtoken.Token, lo, hi int) *deriveMatch {
	depth := 0
	for i := lo; i < hi; i++ {
		t := sig[i]
		if t.Kind != rtoken.Punct {
			continue
		}
		switch t.Text {
		case "{":
			if depth == 0 {
				close := syntax.FindMatching(sig, i)
				if close == -1 || close >= hi {
					return nil
				}
				if m := x.findDeriveMatch(sig, i+1, close); m != nil {
					return m
				}
				i = close
				continue
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
	return nil
}

// splitTopLevelCommas splits sig[lo:hi] on depth-0 commas, returning the
// [start,end) index ranges of each comma-separated entry (not including
// the comma itself).
func splitTopLevelCommas(sig []rtoken.Token, lo, hi int) [][2]int {
	var out [][2]int
	depth := 0
	start := lo
	for i := lo; i < hi; i++ {
		t := sig[i]
		if t.Kind != rtoken.Punct {
			continue
		}
		switch t.Text {
		case "(", "{", "[", "<":
			depth++
		case ")", "}", "]", ">":
			if depth > 0 {
				depth--
			}
		case ",":
			if depth == 0 {
				out = append(out, [2]int{start, i})
				start = i + 1
			}
		}
	}
	if start < hi {
		out = append(out, [2]int{start, hi})
	}
	return out
}

func (x *Expander) expandOneDerive(ctx context.Context, buf *edit.Buffer) (bool, error) {
	sig := syntax.Significant(buf.Tokens())
	m := x.findDeriveMatch(sig, 0, len(sig))
	if m == nil {
		return false, nil
	}
	expanded, err := x.driver.Expand(ctx, Derive, m.name, m.subjectTokens, nil)
	if err != nil {
		return false, err
	}
	if err := buf.Schedule(m.nameStart, m.nameEnd, "/*"+buf.Text()[m.nameStart:m.nameEnd]+"*/"); err != nil {
		return false, err
	}
	if err := buf.Schedule(m.itemEnd, m.itemEnd, render(expanded)); err != nil {
		return false, err
	}
	return true, buf.Flush()
}

// funcLikeMatch is the first function-like macro invocation found in
// document order: an identifier immediately followed by `!` and a
// delimited group.
type funcLikeMatch struct {
	start, end int
	name       string
	bodyTree   TokenTree
}

func (x *Expander) findFuncLikeMatch(sig []rtoken.Token) *funcLikeMatch {
	for i := 0; i+2 < len(sig); i++ {
		if sig[i].Kind != rtoken.Ident || !syntax.IsPunct(sig, i+1, "!") {
			continue
		}
		open := sig[i+2]
		if open.Kind != rtoken.Punct || !(open.Text == "(" || open.Text == "{" || open.Text == "[") {
			continue
		}
		if !x.driver.IsFuncLike(sig[i].Text) {
			continue
		}
		close := syntax.FindMatching(sig, i+2)
		if close == -1 {
			continue
		}
		return &funcLikeMatch{
			start:    sig[i].Start.Offset,
			end:      sig[close].End.Offset,
			name:     sig[i].Text,
			bodyTree: tokensToGroup(sig[i+3 : close]),
		}
	}
	return nil
}

func (x *Expander) expandOneFuncLike(ctx context.Context, buf *edit.Buffer) (bool, error) {
	sig := syntax.Significant(buf.Tokens())
	m := x.findFuncLikeMatch(sig)
	if m == nil {
		return false, nil
	}
	expanded, err := x.driver.Expand(ctx, FuncLike, m.name, m.bodyTree, nil)
	if err != nil {
		return false, err
	}
	if err := buf.Schedule(m.start, m.start, "/*"); err != nil {
		return false, err
	}
	if err := buf.Schedule(m.end, m.end, "*/"+render(expanded)); err != nil {
		return false, err
	}
	return true, buf.Flush()
}

// tokenIndexRange converts a byte-offset range (as returned by
// syntax.ArgsSpan) into the corresponding [lo, hi) index range into sig.
func tokenIndexRange(sig []rtoken.Token, start, end int) (int, int) {
	lo, hi := len(sig), len(sig)
	for i, t := range sig {
		if t.Start.Offset >= start && lo == len(sig) {
			lo = i
		}
		if t.End.Offset <= end {
			hi = i + 1
		}
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

func tokensInRange(sig []rtoken.Token, start, end int) []rtoken.Token {
	var out []rtoken.Token
	for _, t := range sig {
		if t.Start.Offset >= start && t.End.Offset <= end {
			out = append(out, t)
		}
	}
	return out
}

// tokensToGroup builds the implicit (unbracketed) TokenTree group
// representing the given flat token sequence, recursively turning any
// bracketed subrange into a nested Group.
func tokensToGroup(toks []rtoken.Token) TokenTree {
	return Group("", buildChildren(toks)...)
}

func buildChildren(toks []rtoken.Token) []TokenTree {
	var out []TokenTree
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == rtoken.Punct && (t.Text == "(" || t.Text == "{" || t.Text == "[") {
			depth := 0
			j := i
			closeIdx := -1
			for ; j < len(toks); j++ {
				if toks[j].Kind != rtoken.Punct {
					continue
				}
				switch toks[j].Text {
				case "(", "{", "[":
					depth++
				case ")", "}", "]":
					depth--
					if depth == 0 {
						closeIdx = j
					}
				}
				if closeIdx != -1 {
					break
				}
			}
			if closeIdx == -1 {
				out = append(out, leaf(t))
				continue
			}
			out = append(out, Group(t.Text, buildChildren(toks[i+1:closeIdx])...))
			i = closeIdx
			continue
		}
		out = append(out, leaf(t))
	}
	return out
}

func leaf(t rtoken.Token) TokenTree {
	switch t.Kind {
	case rtoken.Ident:
		return Ident(t.Text)
	case rtoken.Lifetime:
		return TokenTree{Kind: "lifetime", Text: t.Text, ID: unspecifiedID}
	case rtoken.Int, rtoken.Float, rtoken.Char, rtoken.Str:
		return Literal(t.Text)
	default:
		return Punct(t.Text)
	}
}

// render is the minifying token-stream printer of spec.md §4.6: it joins
// leaves with the minimum whitespace needed to keep adjacent tokens from
// merging into one (two idents, or an ident and a literal, need a
// separating space; punctuation never does).
func render(t TokenTree) string {
	var b strings.Builder
	renderInto(&b, t, true)
	return b.String()
}

func renderInto(b *strings.Builder, t TokenTree, topLevel bool) {
	open, close := delimText(t.Delim)
	if t.Kind == "group" {
		if !topLevel {
			b.WriteString(open)
		}
		var last string
		for i, c := range t.Children {
			if i > 0 && needsSpace(last, leafText(c)) {
				b.WriteString(" ")
			}
			renderInto(b, c, false)
			last = leafText(c)
		}
		if !topLevel {
			b.WriteString(close)
		}
		return
	}
	b.WriteString(t.Text)
}

func leafText(t TokenTree) string {
	if t.Kind == "group" {
		o, _ := delimText(t.Delim)
		return o
	}
	return t.Text
}

func needsSpace(prev, next string) bool {
	if prev == "" || next == "" {
		return false
	}
	return isWordy(prev) && isWordy(next)
}

func isWordy(s string) bool {
	r := rune(s[0])
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func delimText(delim string) (string, string) {
	switch delim {
	case "(":
		return "(", ")"
	case "{":
		return "{", "}"
	case "[":
		return "[", "]"
	default:
		return "", ""
	}
}
