// Package vmconfig handles flanvm.toml runtime configuration: generation
// caps for the garbage collector, the call-frame bound, and the default
// log level (spec §6).
package vmconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/flan-lang/flanvm/vm"
)

// Config is the root of a flanvm.toml file. Every section is optional;
// zero values fall back to the runtime's built-in defaults.
type Config struct {
	GC  GCConfig  `toml:"gc"`
	VM  VMConfig  `toml:"vm"`
	Log LogConfig `toml:"log"`
}

// GCConfig configures the two-generation heap (spec §4.2).
type GCConfig struct {
	NurseryCapBytes    uint64 `toml:"nursery_cap_bytes"`
	RetirementCapBytes uint64 `toml:"retirement_cap_bytes"`
}

// VMConfig configures interpreter-wide bounds.
type VMConfig struct {
	MaxCallFrames int `toml:"max_call_frames"`
}

// LogConfig configures structured logging verbosity.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration the runtime uses when no file is
// given, matching the package-level defaults in vm.
func Default() *Config {
	return &Config{
		GC: GCConfig{
			NurseryCapBytes:    vm.DefaultNurseryCapBytes,
			RetirementCapBytes: vm.DefaultRetirementCapBytes,
		},
		VM: VMConfig{
			MaxCallFrames: vm.CallFramesMax,
		},
		Log: LogConfig{Level: "warning"},
	}
}

// Load reads and parses a flanvm.toml file, overlaying it onto the
// defaults: any field the file omits keeps its default value.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var overlay Config
	if err := toml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	if overlay.GC.NurseryCapBytes != 0 {
		cfg.GC.NurseryCapBytes = overlay.GC.NurseryCapBytes
	}
	if overlay.GC.RetirementCapBytes != 0 {
		cfg.GC.RetirementCapBytes = overlay.GC.RetirementCapBytes
	}
	if overlay.VM.MaxCallFrames != 0 {
		cfg.VM.MaxCallFrames = overlay.VM.MaxCallFrames
	}
	if overlay.Log.Level != "" {
		cfg.Log.Level = overlay.Log.Level
	}

	return cfg, nil
}
