// Package cfgeval implements C4 CfgEvaluator: statically evaluating `cfg`
// attributes against a known feature set and deleting or retaining the
// items, fields, statements, and other attributable nodes they decorate
// (spec.md §4.4).
//
// Grounded on the teacher's pkg/preprocessor/type_detector.go (classifying
// a node before deciding whether it survives into the generated output)
// and pkg/plugin/pipeline.go's apply-then-recurse traversal shape.
package cfgeval

import (
	"strings"

	"github.com/qryxip/equipgo/internal/edit"
	rtoken "github.com/qryxip/equipgo/internal/rust/token"
	"github.com/qryxip/equipgo/internal/rust/syntax"
)

// Tri is three-valued logic: a cfg predicate is definitely true, definitely
// false, or unknown (an unrecognized predicate, left conservative).
type Tri int

const (
	Unknown Tri = iota
	True
	False
)

func (t Tri) not() Tri {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// Evaluator holds the feature set spec.md §4.4 evaluates `feature = "f"`
// predicates against, plus the always-true `cargo_equip` sentinel flag.
type Evaluator struct {
	Features map[string]bool
}

// New creates an Evaluator for the given enabled-feature set.
func New(features []string) *Evaluator {
	f := make(map[string]bool, len(features))
	for _, n := range features {
		f[n] = true
	}
	return &Evaluator{Features: f}
}

// Eval evaluates every attributable node reachable from buf's token stream
// and schedules deletions for nodes whose `cfg` is definitely false, per
// the recursive algorithm of spec.md §4.4: when a parent is deleted its
// children are never visited, and `#[cfg_attr(...)]` is left untouched here
// (it is handled only by the crate-level skip detector, spec.md §6).
func (e *Evaluator) Eval(buf *edit.Buffer) error {
	sig := syntax.Significant(buf.Tokens())
	if err := e.processRange(buf, sig, 0, len(sig)); err != nil {
		return err
	}
	return buf.Flush()
}

func (e *Evaluator) processRange(buf *edit.Buffer, sig []rtoken.Token, lo, hi int) error {
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

		deleted := false
		for _, a := range attrs {
			if a.Name != "cfg" {
				continue
			}
			if e.evalAttr(sig, a) == False {
				deleted = true
				break
			}
		}

		if deleted {
			start := sig[i].Start.Offset
			end := sig[nodeEnd-1].End.Offset
			if err := buf.Schedule(start, end, ""); err != nil {
				return err
			}
		} else {
			for _, a := range attrs {
				if a.Name != "cfg" {
					continue
				}
				if e.evalAttr(sig, a) == True {
					s, en := a.Span(sig)
					if err := buf.Schedule(s, en, ""); err != nil {
						return err
					}
				}
			}
		}

		if !deleted {
			if err := e.recurseIntoBraces(buf, sig, afterAttrs, nodeEnd); err != nil {
				return err
			}
		}

		i = nodeEnd
		if i <= afterAttrs && i < hi {
			i = afterAttrs + 1 // guard against zero-width progress on malformed input
		}
	}
	return nil
}

// recurseIntoBraces finds every depth-0 `{ ... }` group within [lo, hi) and
// recurses into its interior, so cfg attributes nested inside a retained
// item's body (further items, statements, match arms, struct fields) are
// still evaluated.
func (e *Evaluator) recurseIntoBraces(buf *edit.Buffer, sig []rtoken.Token, lo, hi int) error {
	depth := 0
	for i := lo; i < hi; i++ {
		t := sig[i]
		if t.Kind != rtoken.Punct {
			continue
		}
		switch t.Text {
		case "(", "{", "[":
			if depth == 0 && t.Text == "{" {
				close := syntax.FindMatching(sig, i)
				if close == -1 || close >= hi {
					return nil
				}
				if err := e.processRange(buf, sig, i+1, close); err != nil {
					return err
				}
				i = close
				continue
			}
			depth++
		case ")", "}", "]":
			if depth > 0 {
				depth--
			}
		}
	}
	return nil
}

// evalAttr evaluates a single #[cfg(...)] attribute's predicate.
func (e *Evaluator) evalAttr(sig []rtoken.Token, a syntax.Attr) Tri {
	// Layout: '#' '[' 'cfg' '(' PRED ')' ']'
	open := a.StartIdx + 3 // index of '('
	if open >= a.EndIdx || !syntax.IsPunct(sig, open, "(") {
		return Unknown
	}
	close := syntax.FindMatching(sig, open)
	if close == -1 || close != a.EndIdx-1 {
		return Unknown
	}
	lo := open + 1
	hi := close
	if lo >= hi {
		return Unknown
	}
	return e.evalPred(sig, lo, hi)
}

// evalPred evaluates the predicate tokens sig[lo:hi] (the contents of a
// cfg(...) argument list, exclusive of the surrounding parens).
func (e *Evaluator) evalPred(sig []rtoken.Token, lo, hi int) Tri {
	if lo >= hi {
		return Unknown
	}
	if sig[lo].Kind != rtoken.Ident {
		return Unknown
	}
	name := sig[lo].Text

	if lo+1 < hi && sig[lo+1].Kind == rtoken.Punct && sig[lo+1].Text == "(" {
		open := lo + 1
		close := syntax.FindMatching(sig, open)
		if close == -1 || close >= hi {
			return Unknown
		}
		args := splitArgs(sig, open+1, close)
		switch name {
		case "all":
			result := True
			for _, a := range args {
				v := e.evalPred(sig, a[0], a[1])
				if v == False {
					return False
				}
				if v == Unknown {
					result = Unknown
				}
			}
			return result
		case "any":
			result := False
			for _, a := range args {
				v := e.evalPred(sig, a[0], a[1])
				if v == True {
					return True
				}
				if v == Unknown {
					result = Unknown
				}
			}
			return result
		case "not":
			if len(args) != 1 {
				return Unknown
			}
			return e.evalPred(sig, args[0][0], args[0][1]).not()
		default:
			return Unknown
		}
	}

	if name == "feature" && lo+2 < hi && sig[lo+1].Kind == rtoken.Punct && sig[lo+1].Text == "=" && sig[lo+2].Kind == rtoken.Str {
		lit := unquote(sig[lo+2].Text)
		if e.Features[lit] {
			return True
		}
		return False
	}

	switch name {
	case "test", "proc_macro":
		return False
	case "cargo_equip":
		return True
	default:
		return Unknown
	}
}

// splitArgs splits sig[lo:hi] on depth-0 commas.
func splitArgs(sig []rtoken.Token, lo, hi int) [][2]int {
	var out [][2]int
	depth := 0
	start := lo
	for i := lo; i < hi; i++ {
		t := sig[i]
		if t.Kind != rtoken.Punct {
			continue
		}
		switch t.Text {
		case "(", "{", "[":
			depth++
		case ")", "}", "]":
			depth--
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

func unquote(lit string) string {
	s := strings.TrimPrefix(lit, "b")
	s = strings.TrimPrefix(s, "r")
	s = strings.Trim(s, "#")
	return strings.Trim(s, `"`)
}

// EvalSkipAttribute implements the `cfg(cargo_equip)` convention of
// spec.md §6: exact detection of
// `#![cfg_attr(cargo_equip, cargo_equip::skip)]` as a crate's first
// attribute. It does not mutate buf; it only reports whether the buffer
// opts out of bundling.
func EvalSkipAttribute(buf *edit.Buffer) bool {
	sig := syntax.Significant(buf.Tokens())
	attrs, _ := syntax.ScanAttrs(sig, 0)
	if len(attrs) == 0 {
		return false
	}
	first := attrs[0]
	if !first.Inline || first.Name != "cfg_attr" {
		return false
	}
	// Layout: '#' '!' '[' 'cfg_attr' '(' PRED ',' INNER ')' ']'
	open := first.StartIdx + 4
	if open >= len(sig) || !syntax.IsPunct(sig, open, "(") {
		return false
	}
	close := syntax.FindMatching(sig, open)
	if close == -1 || close != first.EndIdx-1 {
		return false
	}
	args := splitArgs(sig, open+1, close)
	if len(args) != 2 {
		return false
	}
	ev := New(nil)
	if ev.evalPred(sig, args[0][0], args[0][1]) != True {
		return false
	}
	innerText := joinText(sig[args[1][0]:args[1][1]])
	return strings.TrimSpace(innerText) == "cargo_equip :: skip" ||
		strings.ReplaceAll(strings.TrimSpace(innerText), " ", "") == "cargo_equip::skip"
}

func joinText(toks []rtoken.Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(t.Text)
	}
	return b.String()
}
