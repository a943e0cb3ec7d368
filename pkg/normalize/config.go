package normalize

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the project-level settings file, discovered by walking
// up from the working directory.
const ConfigFileName = "unityflow.toml"

// Config is the on-disk tool configuration.
type Config struct {
	Normalize NormalizeConfig `toml:"normalize"`
	Diff      DiffConfig      `toml:"diff"`
	Merge     MergeConfig     `toml:"merge"`
}

type NormalizeConfig struct {
	SortObjects            *bool    `toml:"sort_objects"`
	SortModifications      *bool    `toml:"sort_modifications"`
	NormalizeQuaternions   *bool    `toml:"normalize_quaternions"`
	FloatPrecision         int      `toml:"float_precision"`
	OrderIndependentArrays []string `toml:"order_independent_arrays"`
}

type DiffConfig struct {
	Epsilon float64 `toml:"epsilon"`
}

type MergeConfig struct {
	// Policy is the default conflict policy: "none", "ours", or "theirs".
	Policy string `toml:"policy"`
}

// LoadConfig reads a config file. A missing file yields the zero Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// FindConfig walks from dir toward the filesystem root looking for
// unityflow.toml. Returns "" when none exists.
func FindConfig(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Options applies the config's normalize section over the defaults.
func (c Config) Options() Options {
	opts := DefaultOptions()
	n := c.Normalize
	if n.SortObjects != nil {
		opts.SortObjects = *n.SortObjects
	}
	if n.SortModifications != nil {
		opts.SortModifications = *n.SortModifications
	}
	if n.NormalizeQuaternions != nil {
		opts.NormalizeQuaternions = *n.NormalizeQuaternions
	}
	if n.FloatPrecision > 0 {
		opts.FloatPrecision = n.FloatPrecision
	}
	if n.OrderIndependentArrays != nil {
		opts.OrderIndependentArrays = make(map[string]bool, len(n.OrderIndependentArrays))
		for _, k := range n.OrderIndependentArrays {
			opts.OrderIndependentArrays[k] = true
		}
	}
	return opts
}
