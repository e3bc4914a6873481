// Package token implements a span-preserving lexer for Rust source text.
//
// It is the foundation every later pipeline stage builds on (component C10
// of the bundling pipeline): every other package locates the regions it
// needs to rewrite by scanning a []Token rather than re-deriving offsets
// from raw bytes.
package token

import "go/token"

// Kind classifies a lexical token.
type Kind int

const (
	Invalid Kind = iota
	Ident
	Lifetime
	Int
	Float
	Char
	Str        // "...", possibly byte (b"...") or raw (r"...", r#"..."#, br#"..."#)
	Punct      // an ASCII punctuation character, or a compound one such as "::" or "->"
	LineDoc    // /// or //!
	LineComm   // // (non-doc)
	BlockDoc   // /** ... */ or /*! ... */
	BlockComm  // /* ... */ (non-doc)
	Shebang    // #!/usr/bin/env ... on line 1
	Whitespace
	EOF
)

// Token is a single lexeme with its source span.
//
// Start and End reuse go/token.Position's (Line, Column, Offset) triple as
// the (line, column) pair the specification calls a Span; Offset is the
// mechanically derived byte offset the line-index table keeps in sync.
type Token struct {
	Kind  Kind
	Text  string
	Start token.Position
	End   token.Position
}

// Span reports the token's byte-offset half-open range [Start.Offset, End.Offset).
func (t Token) Span() (int, int) { return t.Start.Offset, t.End.Offset }

// IsComment reports whether the token is any of the four comment/doc kinds.
func (t Token) IsComment() bool {
	switch t.Kind {
	case LineDoc, LineComm, BlockDoc, BlockComm:
		return true
	default:
		return false
	}
}

// IsDoc reports whether the token is a doc comment (/// //! /** /*!).
func (t Token) IsDoc() bool {
	return t.Kind == LineDoc || t.Kind == BlockDoc
}
