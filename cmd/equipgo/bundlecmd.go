package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/qryxip/equipgo/internal/bundle"
	"github.com/qryxip/equipgo/internal/cliui"
	"github.com/qryxip/equipgo/internal/equipconfig"
	"github.com/qryxip/equipgo/internal/equiperr"
	"github.com/qryxip/equipgo/internal/equiplog"
	"github.com/qryxip/equipgo/internal/modexpand"
	"github.com/qryxip/equipgo/internal/procmacro"
	"github.com/qryxip/equipgo/internal/spanmap"
)

func bundleCmd() *cobra.Command {
	var (
		output        string
		configPath    string
		libFlags      []string
		watch         bool
		sourcemap     bool
		procMacroHost string
		dylibFlags    []string
	)

	cmd := &cobra.Command{
		Use:   "bundle <binary-root.rs>",
		Short: "Bundle a binary crate with its path dependencies into one file",
		Long: `Bundle reads a binary crate's root source file plus the root source file
of every path dependency named with --lib, and produces a single Rust
source file with every path dependency re-parented under a synthesized
host module, ready to submit where only one file is accepted.

Example:
  equipgo bundle src/main.rs --lib acme=acme/src/lib.rs -o submission.rs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBundle(args[0], output, configPath, libFlags, watch, sourcemap, procMacroHost, dylibFlags)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVarP(&configPath, "config", "c", ".equip.toml", "Path to the equip project configuration")
	cmd.Flags().StringArrayVar(&libFlags, "lib", nil, "A path dependency to bundle, as name=path/to/lib.rs (repeatable)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Watch the crate's files and rebundle on change")
	cmd.Flags().BoolVar(&sourcemap, "sourcemap", false, "Write a Source Map v3 JSON file alongside the output")
	cmd.Flags().StringVar(&procMacroHost, "proc-macro-host", "", "Path to the external proc-macro host executable")
	cmd.Flags().StringArrayVar(&dylibFlags, "proc-macro-dylib", nil, "A compiled proc-macro crate to load, as package=path/to/lib.so (repeatable)")

	return cmd
}

type libSpec struct {
	name string
	path string
}

func parseLibFlags(flags []string) ([]libSpec, error) {
	specs := make([]libSpec, 0, len(flags))
	for _, f := range flags {
		name, path, ok := strings.Cut(f, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid --lib value %q, expected name=path", f)
		}
		specs = append(specs, libSpec{name: name, path: path})
	}
	return specs, nil
}

func runBundle(binaryPath, output, configPath string, libFlags []string, watch, sourcemapFlag bool, procMacroHostPath string, dylibFlags []string) error {
	specs, err := parseLibFlags(libFlags)
	if err != nil {
		return err
	}
	dylibSpecs, err := parseLibFlags(dylibFlags)
	if err != nil {
		return err
	}

	cfg, err := equipconfig.Load(configPath, nil)
	if err != nil {
		return err
	}

	cliui.PrintHeader(version)

	ctx := context.Background()
	var host procmacro.Host
	if procMacroHostPath != "" {
		dylibs := make(map[string]string, len(dylibSpecs))
		for _, d := range dylibSpecs {
			dylibs[d.name] = d.path
		}
		driver, err := procmacro.Spawn(ctx, procMacroHostPath, dylibs, equiplog.Nop{})
		if err != nil {
			return err
		}
		defer driver.Close(ctx)

		for _, root := range append([]string{binaryPath}, libRoots(specs)...) {
			if err := driver.NotifyWorkspaceRoot(ctx, root); err != nil {
				return err
			}
		}
		host = driver
	}

	run := func() error {
		return bundleOnce(binaryPath, output, cfg, specs, sourcemapFlag, host)
	}

	if err := run(); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	return watchAndRebundle(binaryPath, specs, run)
}

func bundleOnce(binaryPath, output string, cfg *equipconfig.Config, specs []libSpec, sourcemapFlag bool, host procmacro.Host) error {
	progress := cliui.NewProgress(binaryPath)
	progress.PrintTargetStart()

	translate := func(name string) (string, bool) {
		for _, s := range specs {
			if s.name == name {
				pseudo, bundled := cfg.Pseudo(name)
				return pseudo, bundled
			}
		}
		return "", false
	}

	var libInputs []bundle.LibraryInput
	var neighbors []string
	for _, s := range specs {
		pseudo, bundled := cfg.Pseudo(s.name)
		if !bundled {
			continue
		}
		neighbors = append(neighbors, pseudo)
	}
	for _, s := range specs {
		pseudo, bundled := cfg.Pseudo(s.name)
		if !bundled {
			continue
		}
		libInputs = append(libInputs, bundle.LibraryInput{
			RootPath:                 s.path,
			Features:                 cfg.Features.Enabled,
			Pseudo:                   pseudo,
			ConvertExternCrateName:   translate,
			LocalInnerMacroNeighbors: otherThan(neighbors, pseudo),
			Translations:             otherThan(neighbors, pseudo),
			EraseDocs:                cfg.Erase.Docs,
			EraseComments:            cfg.Erase.Comments,
		})
	}

	runCfg := bundle.Config{
		HostModuleName: cfg.Host.ModuleName,
		ProcMacroHost:  host,
		Warn: func(w equiperr.Warning) {
			cliui.PrintWarning(w.Message)
		},
		Binary: bundle.BinaryInput{
			RootPath:                 binaryPath,
			Features:                 cfg.Features.Enabled,
			TranslateExternCrateName: translate,
			EraseDocs:                cfg.Erase.Docs,
			EraseComments:            cfg.Erase.Comments,
		},
		Libraries: libInputs,
	}

	start := time.Now()
	result, err := bundle.Run(context.Background(), osFileReader{}, runCfg)
	duration := time.Since(start)
	if err != nil {
		progress.PrintStep(cliui.Step{Stage: cliui.StageAssemble, Status: cliui.StepError, Duration: duration})
		progress.PrintSummary(false, err.Error())
		return err
	}
	progress.PrintStep(cliui.Step{Stage: cliui.StageAssemble, Status: cliui.StepSuccess, Duration: duration})

	final := assemble(cfg.Host.ModuleName, result.BinarySource, result.Libraries)

	if sourcemapFlag {
		final, err = appendSourcemap(final, binaryPath, result)
		if err != nil {
			progress.PrintSummary(false, err.Error())
			return err
		}
	}

	if err := writeOutput(output, final); err != nil {
		progress.PrintSummary(false, err.Error())
		return err
	}

	progress.PrintSummary(true, "")
	return nil
}

func libRoots(specs []libSpec) []string {
	roots := make([]string, len(specs))
	for i, s := range specs {
		roots[i] = s.path
	}
	return roots
}

func otherThan(all []string, self string) []string {
	out := make([]string, 0, len(all))
	for _, s := range all {
		if s != self {
			out = append(out, s)
		}
	}
	return out
}

func writeOutput(output, content string) error {
	if output == "" {
		_, err := fmt.Print(content)
		return err
	}
	return os.WriteFile(output, []byte(content), 0o644)
}

func appendSourcemap(final, binaryPath string, result *bundle.Result) (string, error) {
	gen := spanmap.NewGenerator(filepath.Base(binaryPath))
	table := spanmap.NewOffsetTable(final)
	gen.Add(table.Position(0), binaryPath, spanmap.Position{Line: 1, Column: 1})
	for _, lib := range result.Libraries {
		if lib.Skipped {
			continue
		}
		gen.Add(table.Position(strings.Index(final, lib.Source)), lib.Pseudo, spanmap.Position{Line: 1, Column: 1})
	}
	comment, err := gen.GenerateInline()
	if err != nil {
		return "", err
	}
	return final + "\n" + comment + "\n", nil
}

func watchAndRebundle(binaryPath string, specs []libSpec, run func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	expander := modexpand.New(osFileReader{})
	roots := append([]string{binaryPath}, libRoots(specs)...)
	for _, root := range roots {
		files, err := expander.DiscoverFiles(root)
		if err != nil {
			return fmt.Errorf("failed to discover watch files for %s: %w", root, err)
		}
		for _, f := range files {
			if err := watcher.Add(f); err != nil {
				return fmt.Errorf("failed to watch %s: %w", f, err)
			}
		}
	}

	cliui.PrintWarning("watching for changes, press Ctrl+C to stop")
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := run(); err != nil {
				cliui.PrintError(err.Error())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cliui.PrintError(err.Error())
		}
	}
}
