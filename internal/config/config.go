// Package config loads the optional YAML config file and merges it under
// explicit CLI flags (flags always win), grounded on the YAML-config
// convention used elsewhere in the retrieved example pack.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the analyzer's persistent configuration surface: the corpus
// root, the store location, and scan tuning that a team would otherwise
// have to repeat on every CLI invocation.
type Config struct {
	Root       string   `yaml:"root"`
	Store      string   `yaml:"store"`
	Workers    int      `yaml:"workers"`
	Verbose    bool     `yaml:"verbose"`
	ExcludeDir []string `yaml:"exclude_dirs"`
}

// Default returns the zero-config defaults.
func Default() Config {
	return Config{Store: "shelldep.db", Workers: 0}
}

// Load reads path as YAML, if it exists. A missing file is not an error;
// it simply leaves Default() in effect.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MergeFlags overlays any non-zero flag value onto cfg, implementing
// "explicit flags win over the config file."
func (c Config) MergeFlags(root, store string, workers int, verbose bool) Config {
	out := c
	if root != "" {
		out.Root = root
	}
	if store != "" {
		out.Store = store
	}
	if workers != 0 {
		out.Workers = workers
	}
	if verbose {
		out.Verbose = true
	}
	return out
}
