package equipconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Host.ModuleName != "__equip" {
		t.Fatalf("expected default host module name __equip, got %q", cfg.Host.ModuleName)
	}
	if len(cfg.Features.Enabled) != 0 {
		t.Fatalf("expected no features enabled by default")
	}
	if cfg.Erase.Docs || cfg.Erase.Comments {
		t.Fatalf("expected erasure disabled by default")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host.ModuleName != "__equip" {
		t.Fatalf("got %q", cfg.Host.ModuleName)
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".equip.toml")
	contents := `
[host]
module_name = "__bundled"

[features]
enabled = ["std", "alloc"]

[erase]
docs = true

[dependencies.acme]
pseudo = "acme_core"

[dependencies.legacy]
skip = true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host.ModuleName != "__bundled" {
		t.Fatalf("got %q", cfg.Host.ModuleName)
	}
	if len(cfg.Features.Enabled) != 2 || cfg.Features.Enabled[0] != "std" || cfg.Features.Enabled[1] != "alloc" {
		t.Fatalf("got %v", cfg.Features.Enabled)
	}
	if !cfg.Erase.Docs {
		t.Fatalf("expected docs erasure enabled")
	}

	pseudo, bundled := cfg.Pseudo("acme")
	if !bundled || pseudo != "acme_core" {
		t.Fatalf("got pseudo=%q bundled=%v", pseudo, bundled)
	}

	_, bundled = cfg.Pseudo("legacy")
	if bundled {
		t.Fatalf("expected legacy to be skipped")
	}

	pseudo, bundled = cfg.Pseudo("unconfigured")
	if !bundled || pseudo != "unconfigured" {
		t.Fatalf("expected an unconfigured dependency to bundle under its own name, got pseudo=%q bundled=%v", pseudo, bundled)
	}
}

func TestLoadOverridesTakePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".equip.toml")
	if err := os.WriteFile(path, []byte(`[host]
module_name = "__from_file"
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	overrides := &Config{Host: HostConfig{ModuleName: "__from_flag"}}
	cfg, err := Load(path, overrides)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host.ModuleName != "__from_flag" {
		t.Fatalf("expected override to win, got %q", cfg.Host.ModuleName)
	}
}

func TestValidateRejectsEmptyModuleName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host.ModuleName = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for an empty module name")
	}
}

func TestValidateRejectsNonIdentModuleName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host.ModuleName = "__equip::nested"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for a non-identifier module name")
	}
}

func TestValidateRejectsSkipAndPseudoTogether(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Deps["foo"] = DependencyConfig{Pseudo: "bar", Skip: true}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for skip+pseudo on the same dependency")
	}
}
