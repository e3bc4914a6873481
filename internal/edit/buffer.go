// Package edit implements the span-preserving text/parse-tree pair (C2 of
// the bundling pipeline) that every rewrite stage edits through.
//
// Grounded on the teacher's pkg/preprocessor/preprocessor.go, which pairs
// transformed source bytes with a parallel list of position mappings and
// reparses after each preprocessing stage (there via go/parser.ParseFile,
// here via the internal Rust token lexer).
package edit

import (
	"fmt"
	"sort"

	rtoken "github.com/qryxip/equipgo/internal/rust/token"
)

// ParseError reports that source text failed to tokenize.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// BrokenEditError reports that replacements were spliced in successfully
// but the resulting text failed to reparse — per spec.md §7, this always
// indicates a bug in the stage that scheduled the replacement.
type BrokenEditError struct {
	Filename string
	Err      error
}

func (e *BrokenEditError) Error() string {
	return fmt.Sprintf("broken edit in %s: %v", e.Filename, e.Err)
}

func (e *BrokenEditError) Unwrap() error { return e.Err }

// Replacement is the (start_loc, end_loc, text) triple of spec.md §3.
// Start == End means "insert at this point"; Seq orders insertions and
// breaks ties for replacements sharing the same (Start, End).
type Replacement struct {
	Start int
	End   int
	Text  string
	Seq   int
}

// Buffer owns the (S, T) pair: source text S and its token-stream parse T.
// The invariant `parse(S) == T` holds at every pipeline boundary (i.e.
// immediately after New and after every successful Flush).
type Buffer struct {
	filename string
	src      string
	tokens   []rtoken.Token
	pending  []Replacement
	seq      int
}

// New parses src and returns a Buffer, or a *ParseError if src does not
// tokenize.
func New(filename, src string) (*Buffer, error) {
	toks, err := rtoken.Lex(filename, src)
	if err != nil {
		return nil, &ParseError{Filename: filename, Err: err}
	}
	return &Buffer{filename: filename, src: src, tokens: toks}, nil
}

// Filename returns the buffer's originating path, used by stages that need
// it for relative module lookups (C1) or diagnostics.
func (b *Buffer) Filename() string { return b.filename }

// Tokens returns the current token stream T. Callers must not retain it
// across a Flush/ForceFlush call: the slice is replaced on reparse.
func (b *Buffer) Tokens() []rtoken.Token { return b.tokens }

// Text returns the current source text S without flushing pending edits.
func (b *Buffer) Text() string { return b.src }

// Schedule records a pending replacement. start == end schedules an
// insertion. Overlapping, non-insertion replacements are rejected
// immediately rather than deferred to Flush, since the caller (one rewrite
// stage) is in the best position to explain why two of its own edits
// collided.
func (b *Buffer) Schedule(start, end int, text string) error {
	if start < 0 || end < start || end > len(b.src) {
		return fmt.Errorf("edit: replacement [%d,%d) out of bounds for %d-byte buffer", start, end, len(b.src))
	}
	for _, p := range b.pending {
		if overlaps(p, Replacement{Start: start, End: end}) {
			return fmt.Errorf("edit: replacement [%d,%d) overlaps pending [%d,%d)", start, end, p.Start, p.End)
		}
	}
	b.pending = append(b.pending, Replacement{Start: start, End: end, Text: text, Seq: b.seq})
	b.seq++
	return nil
}

// overlaps reports whether two replacements' ranges intersect, treating
// coincident insertion points (Start == End for both) as non-overlapping
// per spec.md §3 ("insertions at the same point are permitted").
func overlaps(a, b Replacement) bool {
	aIsInsert := a.Start == a.End
	bIsInsert := b.Start == b.End
	if aIsInsert && bIsInsert {
		return false
	}
	return a.Start < b.End && b.Start < a.End
}

// Pending reports the number of replacements awaiting a Flush.
func (b *Buffer) Pending() int { return len(b.pending) }

// Flush splices pending replacements into S in ascending (Start, End, Seq)
// order when any are pending, then reparses to refresh T. It is a no-op
// when nothing is pending.
func (b *Buffer) Flush() error {
	if len(b.pending) == 0 {
		return nil
	}
	return b.ForceFlush()
}

// ForceFlush flushes unconditionally, even with zero pending replacements
// — used between stages that want to force a reparse of text mutated some
// other way (e.g. after a caller replaces b's text out of band via Reset).
func (b *Buffer) ForceFlush() error {
	ordered := append([]Replacement(nil), b.pending...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		if ordered[i].End != ordered[j].End {
			return ordered[i].End < ordered[j].End
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	var out []byte
	cursor := 0
	for _, r := range ordered {
		if r.Start > cursor {
			out = append(out, b.src[cursor:r.Start]...)
		}
		out = append(out, r.Text...)
		if r.End > cursor {
			cursor = r.End
		}
	}
	if cursor < len(b.src) {
		out = append(out, b.src[cursor:]...)
	}

	newSrc := string(out)
	toks, err := rtoken.Lex(b.filename, newSrc)
	if err != nil {
		return &BrokenEditError{Filename: b.filename, Err: err}
	}

	b.src = newSrc
	b.tokens = toks
	b.pending = nil
	return nil
}

// Reset replaces S out of band (used by stages, like ModuleExpander, that
// build the next text themselves rather than through Schedule/Replacement)
// and reparses immediately.
func (b *Buffer) Reset(newSrc string) error {
	toks, err := rtoken.Lex(b.filename, newSrc)
	if err != nil {
		return &BrokenEditError{Filename: b.filename, Err: err}
	}
	b.src = newSrc
	b.tokens = toks
	b.pending = nil
	return nil
}

// Snapshot finalizes and returns the current S. Any pending replacements
// are flushed first.
func (b *Buffer) Snapshot() (string, error) {
	if err := b.Flush(); err != nil {
		return "", err
	}
	return b.src, nil
}
