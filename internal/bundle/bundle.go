// Package bundle orchestrates the full per-target pipeline: module
// expansion, proc-macro expansion, path/cfg/macro/include/prelude
// rewriting, and comment erasure, for one binary and each of its bundled
// libraries.
//
// Grounded on the teacher's pkg/preprocessor/preprocessor.go
// (Preprocessor.Process sequencing a fixed list of FeatureProcessors over
// one source buffer) and pkg/plugin/pipeline.go (running a set of
// independent passes over the same tree between reparses).
package bundle

import (
	"context"

	"github.com/qryxip/equipgo/internal/cfgeval"
	"github.com/qryxip/equipgo/internal/edit"
	"github.com/qryxip/equipgo/internal/equiperr"
	"github.com/qryxip/equipgo/internal/erase"
	"github.com/qryxip/equipgo/internal/include"
	"github.com/qryxip/equipgo/internal/macrorewrite"
	"github.com/qryxip/equipgo/internal/modexpand"
	"github.com/qryxip/equipgo/internal/pathrewrite"
	"github.com/qryxip/equipgo/internal/prelude"
	"github.com/qryxip/equipgo/internal/procmacro"
)

// BinaryInput is the per-binary input of spec.md §6: a root source path,
// which extern-crate names are bundled libraries, and whether to erase
// comments/docs from the result.
type BinaryInput struct {
	RootPath                 string
	Features                 []string
	TranslateExternCrateName pathrewrite.Translate
	EraseDocs                bool
	EraseComments            bool
}

// LibraryInput is the per-library input of spec.md §6: its root source
// path, its pseudo name inside the synthesized host module, how it
// translates references to its own dependencies, which of its foreign
// neighbors export local_inner_macros, and the pseudo names its own
// translation table resolves to (consumed by PreludeInjector).
type LibraryInput struct {
	RootPath                 string
	Features                 []string
	Pseudo                   string
	ConvertExternCrateName   pathrewrite.Translate
	LocalInnerMacroNeighbors []string
	Translations             []string
	EraseDocs                bool
	EraseComments            bool
}

// Config is the whole-run input: the synthesized host module name, an
// optional proc-macro driver (nil skips C6 entirely), the environment
// `include!`'s `env!`/`OUT_DIR` folding reads from, a non-fatal warning
// sink, and the binary plus its libraries.
type Config struct {
	HostModuleName string
	ProcMacroHost  procmacro.Host
	Env            map[string]string
	Warn           func(equiperr.Warning)

	Binary    BinaryInput
	Libraries []LibraryInput
}

func (c Config) warn(w equiperr.Warning) {
	if c.Warn != nil {
		c.Warn(w)
	}
}

// LibraryResult is one bundled library's output, per spec.md §6: the
// rewritten source plus the two submodule-body fragments the external
// assembler places into the synthesized host module.
type LibraryResult struct {
	Pseudo          string
	Source          string
	MacrosFragment  string
	PreludeFragment string
	// Skipped is true when the library carried the `cfg(cargo_equip)`
	// skip attribute (§6) and was left out of the run entirely.
	Skipped bool
}

// Result is the whole run's output: the rewritten binary source and one
// LibraryResult per bundled library, in the order they were given.
type Result struct {
	BinarySource string
	Libraries    []LibraryResult
}

// Run executes the pipeline of §2 for cfg.Binary and every library in
// cfg.Libraries: C1 module expansion, C6 proc-macro expansion, then
// C3/C4/C5/C7/C9 (order among these five is fixed below but spec.md §4.3
// notes any order is valid as long as each is followed by a flush), then
// C8 comment/doc erasure. Any fatal error aborts the whole run, per
// spec.md §7.
func Run(ctx context.Context, fs modexpand.FileReader, cfg Config) (*Result, error) {
	binSrc, err := processBinary(ctx, fs, cfg)
	if err != nil {
		return nil, err
	}

	libs := make([]LibraryResult, 0, len(cfg.Libraries))
	for _, lib := range cfg.Libraries {
		res, err := processLibrary(ctx, fs, cfg, lib)
		if err != nil {
			return nil, err
		}
		libs = append(libs, *res)
	}

	return &Result{BinarySource: binSrc, Libraries: libs}, nil
}

func processBinary(ctx context.Context, fs modexpand.FileReader, cfg Config) (string, error) {
	expanded, err := modexpand.New(fs).Expand(cfg.Binary.RootPath)
	if err != nil {
		return "", err
	}
	buf, err := edit.New(cfg.Binary.RootPath, expanded)
	if err != nil {
		return "", err
	}

	if err := expandProcMacros(ctx, cfg, buf); err != nil {
		return "", err
	}

	pr := pathrewrite.New(cfg.HostModuleName)
	if err := pr.RewriteExternPaths(buf, cfg.Binary.TranslateExternCrateName); err != nil {
		return "", err
	}
	if err := pr.RewriteExternCrateBinary(buf, cfg.Binary.TranslateExternCrateName); err != nil {
		return "", err
	}

	if err := cfgeval.New(cfg.Binary.Features).Eval(buf); err != nil {
		return "", err
	}

	if err := include.New(cfg.Env).ResolveAll(buf); err != nil {
		return "", err
	}

	if err := eraseComments(buf, cfg.Binary.EraseDocs, cfg.Binary.EraseComments); err != nil {
		return "", err
	}

	return buf.Snapshot()
}

func processLibrary(ctx context.Context, fs modexpand.FileReader, cfg Config, lib LibraryInput) (*LibraryResult, error) {
	expanded, err := modexpand.New(fs).Expand(lib.RootPath)
	if err != nil {
		return nil, err
	}
	buf, err := edit.New(lib.RootPath, expanded)
	if err != nil {
		return nil, err
	}

	if cfgeval.EvalSkipAttribute(buf) {
		return &LibraryResult{Pseudo: lib.Pseudo, Skipped: true}, nil
	}

	if err := expandProcMacros(ctx, cfg, buf); err != nil {
		return nil, err
	}

	pr := pathrewrite.New(cfg.HostModuleName)
	// RewriteCrateRefsLibrary must run before RewriteExternCrateLibrary and
	// RewriteExternPaths: both of those synthesize new `crate::<host>::…`
	// text that must not itself be mistaken for one of the library's own
	// pre-rewrite `crate::` self-references on a later pass.
	if err := pr.RewriteCrateRefsLibrary(buf, lib.Pseudo); err != nil {
		return nil, err
	}
	if err := pr.RewriteExternPaths(buf, lib.ConvertExternCrateName); err != nil {
		return nil, err
	}
	warnings, err := pr.RewriteExternCrateLibrary(buf, lib.ConvertExternCrateName)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		cfg.warn(equiperr.Warning{Message: w.Message})
	}

	if err := cfgeval.New(lib.Features).Eval(buf); err != nil {
		return nil, err
	}

	mr := macrorewrite.New(cfg.HostModuleName)
	exports, err := mr.Rewrite(buf, lib.Pseudo)
	if err != nil {
		return nil, err
	}
	if len(exports) > 0 {
		offset := prelude.RootInsertOffset(buf)
		if err := buf.Schedule(offset, offset, macrorewrite.RootUseLine(cfg.HostModuleName, lib.Pseudo)); err != nil {
			return nil, err
		}
	}

	if err := include.New(cfg.Env).ResolveAll(buf); err != nil {
		return nil, err
	}

	pi := &prelude.Injector{
		Host:                     cfg.HostModuleName,
		Pseudo:                   lib.Pseudo,
		LocalInnerMacroNeighbors: lib.LocalInnerMacroNeighbors,
		Translations:             lib.Translations,
	}
	if err := pi.InjectAll(buf); err != nil {
		return nil, err
	}

	if err := eraseComments(buf, lib.EraseDocs, lib.EraseComments); err != nil {
		return nil, err
	}

	src, err := buf.Snapshot()
	if err != nil {
		return nil, err
	}

	return &LibraryResult{
		Pseudo:          lib.Pseudo,
		Source:          src,
		MacrosFragment:  macrorewrite.MacrosFragment(exports),
		PreludeFragment: pi.Fragment(),
	}, nil
}

func expandProcMacros(ctx context.Context, cfg Config, buf *edit.Buffer) error {
	if cfg.ProcMacroHost == nil {
		return nil
	}
	return procmacro.NewExpander(cfg.ProcMacroHost).ExpandAll(ctx, buf)
}

func eraseComments(buf *edit.Buffer, docs, comments bool) error {
	if docs {
		if err := erase.Run(buf, erase.EraseDocs); err != nil {
			return err
		}
	}
	if comments {
		if err := erase.Run(buf, erase.EraseComments); err != nil {
			return err
		}
	}
	return nil
}
