// Package spanmap builds a Source Map v3 JSON document relating byte
// offsets in the assembled bundle back to (file, line, column) positions
// in the original per-library sources, for `equipgo bundle --sourcemap`.
//
// Grounded on the teacher's pkg/sourcemap/generator.go (the
// Generator/Mapping/Consumer shape, go-sourcemap/sourcemap for parsing)
// and pkg/ast-position-mapper.go (recording positions across a multi-stage
// pipeline before emitting a map), adapted from go/ast node positions to
// byte-offset spans over the token stream this repository already tracks.
package spanmap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sourcemap/sourcemap"
)

// Position is a 1-based line/column pair.
type Position struct {
	Line   int
	Column int
}

// OffsetTable converts byte offsets within one source string into
// Positions, the same incremental line/column bookkeeping the lexer does
// while scanning, reusable here without re-lexing the text.
type OffsetTable struct {
	lineStarts []int // byte offset of the first byte of each line, 0-based
}

// NewOffsetTable builds the line-start index for src.
func NewOffsetTable(src string) *OffsetTable {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &OffsetTable{lineStarts: starts}
}

// Position returns the 1-based line/column for the given byte offset.
func (t *OffsetTable) Position(offset int) Position {
	line := sort.Search(len(t.lineStarts), func(i int) bool {
		return t.lineStarts[i] > offset
	}) - 1
	if line < 0 {
		line = 0
	}
	return Position{Line: line + 1, Column: offset - t.lineStarts[line] + 1}
}

// Mapping is one generated-position-to-source-position entry.
type Mapping struct {
	Gen          Position
	Source       string
	SourcePos    Position
	Name         string
}

// Generator accumulates Mappings for one generated file and renders the
// Source Map v3 JSON document for it.
type Generator struct {
	file     string
	mappings []Mapping
}

// NewGenerator creates a Generator for the named generated file (the
// assembled bundle's output path).
func NewGenerator(file string) *Generator {
	return &Generator{file: file}
}

// Add records a mapping from a position in the generated bundle to a
// position in one of the original per-library or binary sources.
func (g *Generator) Add(gen Position, source string, src Position) {
	g.mappings = append(g.mappings, Mapping{Gen: gen, Source: source, SourcePos: src})
}

// AddNamed is Add plus an identifier name carried through the rewrite
// (e.g. a pseudo module name substituted for a crate name).
func (g *Generator) AddNamed(gen Position, source string, src Position, name string) {
	g.mappings = append(g.mappings, Mapping{Gen: gen, Source: source, SourcePos: src, Name: name})
}

type sourceMapV3 struct {
	Version    int      `json:"version"`
	File       string   `json:"file"`
	SourceRoot string   `json:"sourceRoot"`
	Sources    []string `json:"sources"`
	Names      []string `json:"names"`
	Mappings   string   `json:"mappings"`
}

// Generate renders the Source Map v3 JSON document.
func (g *Generator) Generate() ([]byte, error) {
	sources, sourceIndex := collectSources(g.mappings)
	names, nameIndex := collectNames(g.mappings)

	sm := sourceMapV3{
		Version:  3,
		File:     g.file,
		Sources:  sources,
		Names:    names,
		Mappings: encodeMappings(g.mappings, sourceIndex, nameIndex),
	}

	data, err := json.MarshalIndent(sm, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal source map: %w", err)
	}
	return data, nil
}

// GenerateInline renders Generate's output as a base64 data-URI comment
// suitable for appending to the bundled file directly.
func (g *Generator) GenerateInline() (string, error) {
	data, err := g.Generate()
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return fmt.Sprintf("//# sourceMappingURL=data:application/json;base64,%s", encoded), nil
}

func collectSources(mappings []Mapping) ([]string, map[string]int) {
	index := make(map[string]int)
	var sources []string
	for _, m := range mappings {
		if _, ok := index[m.Source]; !ok {
			index[m.Source] = len(sources)
			sources = append(sources, m.Source)
		}
	}
	return sources, index
}

func collectNames(mappings []Mapping) ([]string, map[string]int) {
	index := make(map[string]int)
	var names []string
	for _, m := range mappings {
		if m.Name == "" {
			continue
		}
		if _, ok := index[m.Name]; !ok {
			index[m.Name] = len(names)
			names = append(names, m.Name)
		}
	}
	return names, index
}

// encodeMappings renders the VLQ-encoded "mappings" field of a Source Map
// v3 document: one semicolon-separated group per generated line, each
// containing comma-separated segments, each segment a run of relative
// base64-VLQ integers per the Source Map v3 spec.
func encodeMappings(mappings []Mapping, sourceIndex, nameIndex map[string]int) string {
	if len(mappings) == 0 {
		return ""
	}

	sorted := append([]Mapping(nil), mappings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Gen.Line != sorted[j].Gen.Line {
			return sorted[i].Gen.Line < sorted[j].Gen.Line
		}
		return sorted[i].Gen.Column < sorted[j].Gen.Column
	})

	maxLine := sorted[len(sorted)-1].Gen.Line
	byLine := make([][]Mapping, maxLine+1)
	for _, m := range sorted {
		byLine[m.Gen.Line] = append(byLine[m.Gen.Line], m)
	}

	// The Source Map v3 spec encodes 0-based line/column numbers; Position
	// is 1-based (matching token.Position), so every value is shifted down
	// by one right before it enters a delta.
	var out strings.Builder
	prevSource, prevSrcLine, prevSrcCol, prevName := 0, 0, 0, 0
	for line := 1; line <= maxLine; line++ {
		if line > 1 {
			out.WriteByte(';')
		}
		prevGenCol := 0
		for i, m := range byLine[line] {
			if i > 0 {
				out.WriteByte(',')
			}
			genCol := m.Gen.Column - 1
			out.WriteString(encodeVLQ(genCol - prevGenCol))
			prevGenCol = genCol

			srcIdx := sourceIndex[m.Source]
			out.WriteString(encodeVLQ(srcIdx - prevSource))
			prevSource = srcIdx

			srcLine := m.SourcePos.Line - 1
			out.WriteString(encodeVLQ(srcLine - prevSrcLine))
			prevSrcLine = srcLine

			srcCol := m.SourcePos.Column - 1
			out.WriteString(encodeVLQ(srcCol - prevSrcCol))
			prevSrcCol = srcCol

			if m.Name != "" {
				nameIdx := nameIndex[m.Name]
				out.WriteString(encodeVLQ(nameIdx - prevName))
				prevName = nameIdx
			}
		}
	}
	return out.String()
}

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func encodeVLQ(n int) string {
	v := n << 1
	if n < 0 {
		v = (-n)<<1 | 1
	}

	var out strings.Builder
	for {
		digit := v & 0x1f
		v >>= 5
		if v > 0 {
			digit |= 0x20
		}
		out.WriteByte(base64Alphabet[digit])
		if v == 0 {
			break
		}
	}
	return out.String()
}

// Consumer looks up original positions from a parsed Source Map v3
// document, wrapping go-sourcemap/sourcemap the same way the teacher's
// own Consumer does.
type Consumer struct {
	sm *sourcemap.Consumer
}

// NewConsumer parses a Source Map v3 JSON document.
func NewConsumer(data []byte) (*Consumer, error) {
	sm, err := sourcemap.Parse("", data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source map: %w", err)
	}
	return &Consumer{sm: sm}, nil
}

// Original looks up the source file and position for a generated
// (1-based) line/column pair.
func (c *Consumer) Original(gen Position) (source string, pos Position, ok bool) {
	file, _, line, col, ok := c.sm.Source(gen.Line-1, gen.Column-1)
	if !ok {
		return "", Position{}, false
	}
	return file, Position{Line: line + 1, Column: col + 1}, true
}
