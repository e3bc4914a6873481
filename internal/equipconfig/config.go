// Package equipconfig loads the .equip.toml project configuration: the
// host module name synthesized for the bundled output, the cfg features
// enabled while evaluating #[cfg(...)] attributes, and per-dependency
// overrides of the pseudo module name a library is bundled under.
//
// Grounded on the teacher's pkg/config, which layers a BurntSushi/toml
// file over a DefaultConfig() baseline and validates the merged result
// before handing it back to the caller.
package equipconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// DependencyConfig overrides how one extern-crate dependency is bundled.
type DependencyConfig struct {
	// Pseudo is the module name the dependency is bundled under, in place
	// of its own crate name. Empty means "use the crate name unchanged".
	Pseudo string `toml:"pseudo"`

	// Skip excludes this dependency from bundling even if it is named with
	// --lib, equivalent to the library itself carrying
	// #![cfg_attr(cargo_equip, cargo_equip::skip)].
	Skip bool `toml:"skip"`
}

// Config is the complete equip project configuration.
type Config struct {
	Host     HostConfig                  `toml:"host"`
	Features FeatureConfig               `toml:"features"`
	Erase    EraseConfig                 `toml:"erase"`
	Deps     map[string]DependencyConfig `toml:"dependencies"`
}

// HostConfig controls the synthesized module that bundled libraries are
// re-parented under.
type HostConfig struct {
	// ModuleName is the identifier used as `crate::<ModuleName>`, e.g.
	// "__equip". Must be a valid Rust identifier distinct from any name
	// already in use at crate root.
	ModuleName string `toml:"module_name"`
}

// FeatureConfig controls cfg evaluation.
type FeatureConfig struct {
	// Enabled lists the feature names treated as active by CfgEvaluator,
	// e.g. ["std", "alloc"].
	Enabled []string `toml:"enabled"`
}

// EraseConfig controls C8 CommentEraser.
type EraseConfig struct {
	Docs     bool `toml:"docs"`
	Comments bool `toml:"comments"`
}

// DefaultConfig returns the configuration used when no .equip.toml is
// present and no overrides are supplied.
func DefaultConfig() *Config {
	return &Config{
		Host: HostConfig{
			ModuleName: "__equip",
		},
		Features: FeatureConfig{
			Enabled: nil,
		},
		Erase: EraseConfig{
			Docs:     false,
			Comments: false,
		},
		Deps: map[string]DependencyConfig{},
	}
}

// Load reads path (typically ".equip.toml") over DefaultConfig, returning
// the defaults untouched if the file does not exist. overrides, if
// non-nil, take precedence over both the file and the defaults for the
// fields it sets.
func Load(path string, overrides *Config) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if overrides != nil {
		if overrides.Host.ModuleName != "" {
			cfg.Host.ModuleName = overrides.Host.ModuleName
		}
		if len(overrides.Features.Enabled) > 0 {
			cfg.Features.Enabled = overrides.Features.Enabled
		}
		if overrides.Erase.Docs {
			cfg.Erase.Docs = true
		}
		if overrides.Erase.Comments {
			cfg.Erase.Comments = true
		}
		for name, dep := range overrides.Deps {
			cfg.Deps[name] = dep
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return err
	}
	return nil
}

// Validate reports whether cfg is well-formed.
func (c *Config) Validate() error {
	if c.Host.ModuleName == "" {
		return fmt.Errorf("host.module_name must not be empty")
	}
	for _, r := range c.Host.ModuleName {
		if !isIdentRune(r) {
			return fmt.Errorf("host.module_name %q is not a valid Rust identifier", c.Host.ModuleName)
		}
	}
	for name, dep := range c.Deps {
		if dep.Skip && dep.Pseudo != "" {
			return fmt.Errorf("dependencies.%s: skip and pseudo are mutually exclusive", name)
		}
	}
	return nil
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Pseudo returns the pseudo module name for the named dependency, and
// whether it is bundled at all. A dependency with no entry in Deps (or an
// entry with an empty Pseudo) is bundled under its own crate name.
func (c *Config) Pseudo(depName string) (pseudo string, bundled bool) {
	dep, ok := c.Deps[depName]
	if ok && dep.Skip {
		return "", false
	}
	if ok && dep.Pseudo != "" {
		return dep.Pseudo, true
	}
	return depName, true
}
