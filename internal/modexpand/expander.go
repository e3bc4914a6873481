// Package modexpand implements C1 ModuleExpander: flattening a multi-file
// crate rooted at a main source file into one in-memory source text by
// resolving `mod X;` declarations to on-disk child files and inlining them
// as `mod X { ... }`.
//
// Grounded on the teacher's pkg/build/workspace.go and
// pkg/build/dependency_graph.go, which walk a module's own file-discovery
// rules (there: Go package/import resolution; here: Rust's path=""/mod.rs
// lookup rules) to build a single in-memory view of a multi-file program.
package modexpand

import (
	"path/filepath"
	"strings"

	"github.com/qryxip/equipgo/internal/edit"
	rtoken "github.com/qryxip/equipgo/internal/rust/token"
	"github.com/qryxip/equipgo/internal/rust/syntax"
)

// MissingModuleFileError is fatal per spec.md §7: none of the candidate
// file paths for a `mod X;` declaration exist.
type MissingModuleFileError struct {
	ModuleName string
	Candidates []string
}

func (e *MissingModuleFileError) Error() string {
	return "equipgo: no file found for `mod " + e.ModuleName + ";`; tried: " + strings.Join(e.Candidates, ", ")
}

// FileReader abstracts file-system access so tests can supply an in-memory
// tree without touching disk.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Expander inlines `mod X;` declarations into `mod X { ... }`.
type Expander struct {
	fs FileReader
}

// New creates an Expander reading files through fs.
func New(fs FileReader) *Expander {
	return &Expander{fs: fs}
}

// DiscoverFiles returns rootPath plus every file transitively reachable
// from it through `mod X;` declarations, in the order they are first
// encountered. Used by the CLI's watch mode to know which files on disk
// should trigger a rebundle, without inlining their contents.
func (e *Expander) DiscoverFiles(rootPath string) ([]string, error) {
	src, err := e.fs.ReadFile(rootPath)
	if err != nil {
		return nil, err
	}
	ctx := resolveCtx{
		dir:     filepath.Dir(rootPath),
		stem:    stem(rootPath),
		isModRs: filepath.Base(rootPath) == "mod.rs",
	}
	files := []string{rootPath}
	if err := e.discoverSource(rootPath, string(src), ctx, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (e *Expander) discoverSource(path, src string, ctx resolveCtx, files *[]string) error {
	toks, err := rtoken.Lex(path, src)
	if err != nil {
		return err
	}
	sig := syntax.Significant(toks)

	decls, err := scanModDecls(sig)
	if err != nil {
		return err
	}
	for _, d := range decls {
		childPath, err := resolveChild(e.fs, ctx, d)
		if err != nil {
			return err
		}
		childSrc, err := e.fs.ReadFile(childPath)
		if err != nil {
			return err
		}
		*files = append(*files, childPath)
		childCtx := resolveCtx{
			dir:     filepath.Dir(childPath),
			stem:    stem(childPath),
			isModRs: filepath.Base(childPath) == "mod.rs",
		}
		if err := e.discoverSource(childPath, string(childSrc), childCtx, files); err != nil {
			return err
		}
	}
	return nil
}

// Expand reads rootPath and returns its fully module-expanded source text.
func (e *Expander) Expand(rootPath string) (string, error) {
	src, err := e.fs.ReadFile(rootPath)
	if err != nil {
		return "", err
	}
	ctx := resolveCtx{
		dir:     filepath.Dir(rootPath),
		stem:    stem(rootPath),
		isModRs: filepath.Base(rootPath) == "mod.rs",
	}
	return e.expandSource(rootPath, string(src), ctx)
}

type resolveCtx struct {
	dir     string
	stem    string
	isModRs bool
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// modDecl is one `mod X;` declaration found during the scan, with the
// information needed to resolve and splice its child.
type modDecl struct {
	name       string
	pathAttr   string // from #[path = "..."], "" if absent
	hasPathAtt bool
	depth      int // nesting inside inline `mod Y { ... }` blocks in this file
	startByte  int // start of the terminating ';', the span the splice replaces
	endByte    int // end, exclusive, just past the ';'
}

// expandSource expands all `mod X;` declarations (at any nesting depth)
// found in src, which was read from a physical file at ctx, and returns
// the fully expanded text.
func (e *Expander) expandSource(path, src string, ctx resolveCtx) (string, error) {
	toks, err := rtoken.Lex(path, src)
	if err != nil {
		return "", err
	}
	sig := syntax.Significant(toks)

	decls, err := scanModDecls(sig)
	if err != nil {
		return "", err
	}
	if len(decls) == 0 {
		return src, nil
	}

	buf, err := edit.New(path, src)
	if err != nil {
		return "", err
	}

	for _, d := range decls {
		childPath, err := resolveChild(e.fs, ctx, d)
		if err != nil {
			return "", err
		}
		childSrc, err := e.fs.ReadFile(childPath)
		if err != nil {
			return "", err
		}
		childCtx := resolveCtx{
			dir:     filepath.Dir(childPath),
			stem:    stem(childPath),
			isModRs: filepath.Base(childPath) == "mod.rs",
		}
		expandedChild, err := e.expandSource(childPath, string(childSrc), childCtx)
		if err != nil {
			return "", err
		}

		replacement := spliceChild(d.name, expandedChild)
		if err := buf.Schedule(d.startByte, d.endByte, replacement); err != nil {
			return "", err
		}
	}

	return buf.Snapshot()
}

// resolveChild implements the asymmetric file-lookup rule of spec.md §4.2.
func resolveChild(fs FileReader, ctx resolveCtx, d modDecl) (string, error) {
	if d.hasPathAtt {
		candidate := filepath.Join(ctx.dir, d.pathAttr)
		if exists(fs, candidate) {
			return candidate, nil
		}
		return "", &MissingModuleFileError{ModuleName: d.name, Candidates: []string{candidate}}
	}

	var baseDir string
	if d.depth == 0 || ctx.isModRs {
		baseDir = ctx.dir
	} else {
		baseDir = filepath.Join(ctx.dir, ctx.stem)
	}

	flat := filepath.Join(baseDir, d.name+".rs")
	nested := filepath.Join(baseDir, d.name, "mod.rs")
	if exists(fs, flat) {
		return flat, nil
	}
	if exists(fs, nested) {
		return nested, nil
	}
	return "", &MissingModuleFileError{ModuleName: d.name, Candidates: []string{flat, nested}}
}

func exists(fs FileReader, path string) bool {
	_, err := fs.ReadFile(path)
	return err == nil
}

// scanModDecls finds every `mod X;` item in sig, tracking nesting depth
// through inline `mod Y { ... }` blocks.
func scanModDecls(sig []rtoken.Token) ([]modDecl, error) {
	var decls []modDecl
	depth := 0
	i := 0
	for i < len(sig) {
		attrs, afterAttrs := syntax.ScanAttrs(sig, i)

		j := afterAttrs
		// skip visibility: `pub` or `pub(...)`
		if syntax.IsIdent(sig, j, "pub") {
			j++
			if syntax.IsPunct(sig, j, "(") {
				close := syntax.FindMatching(sig, j)
				if close == -1 {
					break
				}
				j = close + 1
			}
		}

		if syntax.IsIdent(sig, j, "mod") && j+1 < len(sig) && sig[j+1].Kind == rtoken.Ident {
			name := sig[j+1].Text
			k := j + 2
			if syntax.IsPunct(sig, k, ";") {
				pathAttr, hasPathAttr := findPathAttr(sig, attrs)
				decls = append(decls, modDecl{
					name:       name,
					pathAttr:   pathAttr,
					hasPathAtt: hasPathAttr,
					depth:      depth,
					startByte:  sig[k].Start.Offset,
					endByte:    sig[k].End.Offset,
				})
				i = k + 1
				continue
			}
			if syntax.IsPunct(sig, k, "{") {
				// Inline module: recurse depth-wise but do not treat as a
				// declaration needing resolution; just step past its
				// opening brace, tracking depth for anything nested inside.
				depth++
				i = k + 1
				continue
			}
		}

		// Track the close of whatever inline mod block we're inside.
		if syntax.IsPunct(sig, i, "}") && depth > 0 {
			depth--
			i++
			continue
		}

		i++
	}
	return decls, nil
}

func findPathAttr(sig []rtoken.Token, attrs []syntax.Attr) (string, bool) {
	for _, a := range attrs {
		if a.Name != "path" {
			continue
		}
		start, end, ok := syntax.ArgsSpan(sig, a)
		if !ok {
			continue
		}
		// ArgsSpan returns byte offsets into the *original source*; to get
		// the literal text we need the corresponding token, which we find
		// by scanning for the token whose span matches.
		for idx := a.StartIdx; idx <= a.EndIdx; idx++ {
			if sig[idx].Start.Offset == start && sig[idx].End.Offset == end {
				return unquote(sig[idx].Text), true
			}
		}
	}
	return "", false
}

func unquote(lit string) string {
	s := strings.TrimPrefix(lit, "b")
	s = strings.TrimPrefix(s, "r")
	s = strings.Trim(s, "#")
	return strings.Trim(s, `"`)
}

// spliceChild renders the ` { <indented child> }` text appended after a
// `mod X` with its trailing `;` stripped, per spec.md §4.2: indentation is
// applied only when it would not change the child's meaning.
func spliceChild(name, childSrc string) string {
	if canIndent(childSrc) {
		return " { " + indent(childSrc) + " }"
	}
	return " {\n" + childSrc + "\n}"
}

// canIndent reports whether naive line-indentation is safe: the child must
// reparse to an identical significant token sequence and must contain no
// multi-line string/byte literal (whose contents indentation would alter).
func canIndent(src string) bool {
	toks, err := rtoken.Lex("<mod>", src)
	if err != nil {
		return false
	}
	for _, t := range toks {
		if t.Kind == rtoken.Str && t.Start.Line != t.End.Line {
			return false
		}
	}

	indented := indent(src)
	reToks, err := rtoken.Lex("<mod>", indented)
	if err != nil {
		return false
	}

	a := syntax.Significant(toks)
	b := syntax.Significant(reToks)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Text != b[i].Text {
			return false
		}
	}
	return true
}

func indent(src string) string {
	lines := strings.Split(src, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
