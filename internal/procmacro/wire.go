// Package procmacro implements C6 ProcMacroDriver: expanding derive,
// attribute, and function-like procedural macros by delegating to an
// external host executable that has loaded each proc-macro crate's
// compiled dynamic library (spec.md §4.6).
//
// Grounded on the teacher's pkg/lsp/gopls_client.go: a long-running
// subprocess driven over go.lsp.dev/jsonrpc2 on its stdin/stdout pipes,
// with requests and responses correlated by the jsonrpc2.Conn itself
// rather than any ad hoc sequencing the caller has to manage.
package procmacro

// Kind classifies a procedural macro the same way rustc's proc-macro
// bridge does.
type Kind int

const (
	Derive Kind = iota
	Attr
	FuncLike
)

func (k Kind) String() string {
	switch k {
	case Derive:
		return "derive"
	case Attr:
		return "attr"
	case FuncLike:
		return "func-like"
	default:
		return "unknown"
	}
}

// unspecifiedID is the sentinel token-id the host's bridge uses for every
// token equipgo sends it: equipgo never tracks macro-internal spans, so
// there is never a real id to report.
const unspecifiedID = -1

// TokenTree is one node of a token stream sent to, or received from, the
// proc-macro host: either a leaf (Kind "ident"/"punct"/"literal"/"lifetime",
// with Text set) or a delimited group (Kind "group", with Delim and an ordered
// Children sequence).
type TokenTree struct {
	Kind     string      `json:"kind"`
	Text     string      `json:"text,omitempty"`
	ID       int         `json:"id"`
	Delim    string      `json:"delim,omitempty"`
	Children []TokenTree `json:"children,omitempty"`
}

// Ident builds an identifier leaf.
func Ident(text string) TokenTree { return TokenTree{Kind: "ident", Text: text, ID: unspecifiedID} }

// Punct builds a punctuation leaf.
func Punct(text string) TokenTree { return TokenTree{Kind: "punct", Text: text, ID: unspecifiedID} }

// Literal builds a literal leaf.
func Literal(text string) TokenTree { return TokenTree{Kind: "literal", Text: text, ID: unspecifiedID} }

// Group builds a delimited group node. delim is one of "(", "{", "[", or
// "" for an implicit (invisible) group.
func Group(delim string, children ...TokenTree) TokenTree {
	return TokenTree{Kind: "group", Delim: delim, ID: unspecifiedID, Children: children}
}

// ExpandParams is the params object of the "expand" JSON-RPC request.
type ExpandParams struct {
	Kind      string      `json:"kind"`
	MacroName string      `json:"macroName"`
	Body      TokenTree   `json:"body"`
	Attr      *TokenTree  `json:"attr,omitempty"`
}

// ExpandResult is the result object of the "expand" JSON-RPC response.
type ExpandResult struct {
	Tokens TokenTree `json:"tokens"`
	Panic  string    `json:"panic,omitempty"`
}

// RegisterParams is the params object of the startup "register" JSON-RPC
// notification, through which the host reports the macro names it loaded
// from each dylib, classified by kind.
type RegisterParams struct {
	Derives   []string `json:"derives"`
	Attrs     []string `json:"attrs"`
	FuncLikes []string `json:"funcLikes"`
}
