// Package config reads the per-working-copy configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file inside the administrative directory.
const FileName = "config.yaml"

// Changelist assigns paths matching its globs to a named changelist.
type Changelist struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

// Config is the per-working-copy configuration.
type Config struct {
	// Ignore holds extra glob patterns excluded from status walks.
	Ignore []string `yaml:"ignore"`
	// Changelists assign paths to changelists during add.
	Changelists []Changelist `yaml:"changelists"`
}

// Load reads the config file from adminDir. A missing file yields an empty
// configuration, not an error.
func Load(adminDir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(adminDir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration to adminDir.
func Save(adminDir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(adminDir, FileName), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ChangelistFor returns the changelist name for relPath, or "".
func (c *Config) ChangelistFor(relPath string) string {
	for _, cl := range c.Changelists {
		for _, p := range cl.Patterns {
			if ok, err := doublestar.Match(p, relPath); err == nil && ok {
				return cl.Name
			}
		}
	}
	return ""
}
