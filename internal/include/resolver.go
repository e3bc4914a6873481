// Package include implements C7 IncludeResolver: inlining
// include!(expr) where expr constant-folds to an absolute path.
//
// Grounded on the teacher's pkg/preprocessor/package_context.go, which
// resolves a package's on-disk files and splices their contents into the
// build the same synchronous way — os.ReadFile, no caching across calls,
// errors wrapped with the operation that failed.
package include

import (
	"os"
	"strings"

	"github.com/qryxip/equipgo/internal/edit"
	"github.com/qryxip/equipgo/internal/equiperr"
	rtoken "github.com/qryxip/equipgo/internal/rust/token"
	"github.com/qryxip/equipgo/internal/rust/syntax"
)

// Resolver inlines include! invocations whose argument constant-folds to
// an absolute path.
type Resolver struct {
	// Env resolves env!("NAME") lookups. OUT_DIR is looked up here like
	// any other variable, per spec.md §4.7 ("with OUT_DIR resolving to a
	// caller-supplied path").
	Env map[string]string
}

// New creates a Resolver with the given environment, used to resolve
// env!(...) calls (including OUT_DIR) inside constant-folded expressions.
func New(env map[string]string) *Resolver {
	return &Resolver{Env: env}
}

// ResolveAll finds every include! invocation in the buffer, constant-folds
// its argument, and — if the result is an absolute path — replaces the
// invocation with the named file's contents. Invocations whose argument
// doesn't fold to a string, or that fold to a non-absolute path, are left
// untouched. Since an inlined file can itself contain further include!
// calls, scanning resumes from the top after every replacement (byte
// offsets shift); an invocation already judged unresolvable is skipped by
// advancing past it instead, so the scan still terminates.
func (r *Resolver) ResolveAll(buf *edit.Buffer) error {
	idx := 0
	for {
		sig := syntax.Significant(buf.Tokens())
		m := r.findIncludeFrom(sig, idx)
		if m == nil {
			return nil
		}
		path, ok := r.fold(sig, m.argLo, m.argHi)
		if !ok || !isAbsolute(path) {
			idx = tokenIndexAtOrAfter(sig, m.end)
			continue
		}
		contents, err := os.ReadFile(path)
		if err != nil {
			return equiperr.Newf(equiperr.KindMissingModuleFile, "include!: cannot read %q: %v", path, err)
		}
		if err := buf.Schedule(m.start, m.end, string(contents)); err != nil {
			return err
		}
		if err := buf.Flush(); err != nil {
			return err
		}
		idx = 0
	}
}

type includeMatch struct {
	start, end int // byte offsets of the whole include!(...) invocation
	argLo      int // token index of the first argument token
	argHi      int // token index just past the last argument token
}

func (r *Resolver) findIncludeFrom(sig []rtoken.Token, from int) *includeMatch {
	for i := from; i+2 < len(sig); i++ {
		if sig[i].Kind != rtoken.Ident || sig[i].Text != "include" {
			continue
		}
		if !syntax.IsPunct(sig, i+1, "!") {
			continue
		}
		open := sig[i+2]
		if open.Kind != rtoken.Punct || open.Text != "(" {
			continue
		}
		close := syntax.FindMatching(sig, i+2)
		if close == -1 {
			continue
		}
		return &includeMatch{
			start: sig[i].Start.Offset,
			end:   sig[close].End.Offset,
			argLo: i + 3,
			argHi: close,
		}
	}
	return nil
}

func tokenIndexAtOrAfter(sig []rtoken.Token, byteOffset int) int {
	for i, t := range sig {
		if t.Start.Offset >= byteOffset {
			return i
		}
	}
	return len(sig)
}

// fold constant-folds sig[lo:hi], a comma-separated list of string
// literals, concat!(...) calls, and env!(...) calls, into a single
// string, per spec.md §4.7.
func (r *Resolver) fold(sig []rtoken.Token, lo, hi int) (string, bool) {
	var b strings.Builder
	i := lo
	for i < hi {
		switch {
		case sig[i].Kind == rtoken.Str:
			b.WriteString(unquote(sig[i].Text))
			i++
		case sig[i].Kind == rtoken.Ident && sig[i].Text == "concat" && syntax.IsPunct(sig, i+1, "!") && syntax.IsPunct(sig, i+2, "("):
			close := syntax.FindMatching(sig, i+2)
			if close == -1 {
				return "", false
			}
			parts, ok := r.foldArgs(sig, i+3, close)
			if !ok {
				return "", false
			}
			b.WriteString(strings.Join(parts, ""))
			i = close + 1
		case sig[i].Kind == rtoken.Ident && sig[i].Text == "env" && syntax.IsPunct(sig, i+1, "!") && syntax.IsPunct(sig, i+2, "("):
			close := syntax.FindMatching(sig, i+2)
			if close == -1 {
				return "", false
			}
			if i+3 >= close || sig[i+3].Kind != rtoken.Str {
				return "", false
			}
			name := unquote(sig[i+3].Text)
			val, ok := r.Env[name]
			if !ok {
				return "", false
			}
			b.WriteString(val)
			i = close + 1
		default:
			return "", false
		}
		if i < hi {
			if !syntax.IsPunct(sig, i, ",") {
				return "", false
			}
			i++
		}
	}
	return b.String(), true
}

// foldArgs folds each comma-separated argument of a concat!(...) call
// into its own string, without requiring the whole list to reduce to one
// string the way fold's top-level call does.
func (r *Resolver) foldArgs(sig []rtoken.Token, lo, hi int) ([]string, bool) {
	var out []string
	i := lo
	for i < hi {
		start := i
		depth := 0
		for i < hi && !(depth == 0 && syntax.IsPunct(sig, i, ",")) {
			if sig[i].Kind == rtoken.Punct {
				switch sig[i].Text {
				case "(", "{", "[":
					depth++
				case ")", "}", "]":
					depth--
				}
			}
			i++
		}
		part, ok := r.fold(sig, start, i)
		if !ok {
			return nil, false
		}
		out = append(out, part)
		if i < hi {
			i++ // skip comma
		}
	}
	return out, true
}

func isAbsolute(path string) bool {
	if path == "" {
		return false
	}
	if path[0] == '/' {
		return true
	}
	// Windows-style drive-letter absolute paths (C:\...), in case the
	// expr was built from an env!("OUT_DIR") supplied in that form.
	if len(path) >= 3 && isLetter(path[0]) && path[1] == ':' && (path[2] == '\\' || path[2] == '/') {
		return true
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func unquote(lit string) string {
	s := strings.TrimPrefix(lit, "r")
	s = strings.Trim(s, "#")
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	return s
}
