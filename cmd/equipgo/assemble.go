package main

import (
	"fmt"
	"strings"

	"github.com/qryxip/equipgo/internal/bundle"
)

// assemble concatenates the bundled binary source with the synthesized
// host module wrapping every bundled library's rewritten source plus its
// macros/preludes submodule fragments, the "final output assembly" step
// spec.md's Non-goals explicitly leave to the CLI (spec.md §1) rather
// than to the core pipeline.
func assemble(host, binarySource string, libs []bundle.LibraryResult) string {
	var present []bundle.LibraryResult
	for _, lib := range libs {
		if !lib.Skipped {
			present = append(present, lib)
		}
	}
	if len(present) == 0 {
		return binarySource
	}

	var b strings.Builder
	b.WriteString(binarySource)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "#[allow(dead_code)]\nmod %s {\n", host)

	b.WriteString("    pub mod crates {\n")
	for _, lib := range present {
		fmt.Fprintf(&b, "        pub mod %s {\n", lib.Pseudo)
		writeIndented(&b, lib.Source, "            ")
		b.WriteString("        }\n")
	}
	b.WriteString("    }\n")

	b.WriteString("    pub mod macros {\n")
	for _, lib := range present {
		if lib.MacrosFragment == "" {
			continue
		}
		fmt.Fprintf(&b, "        pub mod %s {\n", lib.Pseudo)
		writeIndented(&b, lib.MacrosFragment, "            ")
		b.WriteString("        }\n")
	}
	b.WriteString("    }\n")

	b.WriteString("    pub mod preludes {\n")
	for _, lib := range present {
		if lib.PreludeFragment == "" {
			continue
		}
		fmt.Fprintf(&b, "        pub mod %s {\n", lib.Pseudo)
		writeIndented(&b, lib.PreludeFragment, "            ")
		b.WriteString("        }\n")
	}
	b.WriteString("    }\n")

	b.WriteString("}\n")
	return b.String()
}

// writeIndented appends text to b with indent prefixed to every non-empty
// line, preserving blank lines as-is so byte offsets inside text stay
// recognizable against a source map built before assembly.
func writeIndented(b *strings.Builder, text, indent string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i == len(lines)-1 && line == "" {
			break // text's own trailing newline, don't emit a dangling indent
		}
		if line != "" {
			b.WriteString(indent)
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
}
