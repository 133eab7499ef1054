// Package config holds the ambient build defaults for the dict,
// neighbors, and query commands: window width, neighbor area, tile
// geometry, emit/sort/filter bitmasks, and corpus format. Defaults
// come from a YAML file; each cmd subcommand overlays its explicitly
// set flags on top. W2N_*-prefixed environment variables do not
// override these fields.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the build-defaults document, stored at (by default)
// $HOME/.config/w2n/config.yaml.
type Config struct {
	Width        int    `yaml:"width"`
	Area         int    `yaml:"area"`
	TileSide     int    `yaml:"tile_side"`
	Emit         int    `yaml:"emit"`
	Sort         int    `yaml:"sort"`
	Filter       int    `yaml:"filter"`
	ConllUFilter int    `yaml:"conllu_filter"`
	Bigrams      bool   `yaml:"bigrams"`
	CorpusFormat string `yaml:"corpus_format"`
	MaxDocs      int    `yaml:"max_docs"`
	MaxWordLen   int    `yaml:"max_word_len"`
}

// DefaultConfig returns the build defaults from spec.md §6.4: width
// 16, area 64, tile_side 8192, alpha sort, no emit/filter bits, raw
// corpus format, unlimited documents.
func DefaultConfig() *Config {
	return &Config{
		Width:        16,
		Area:         64,
		TileSide:     8192,
		Emit:         0,
		Sort:         0,
		Filter:       0,
		ConllUFilter: 0,
		Bigrams:      false,
		CorpusFormat: "raw",
		MaxDocs:      -1,
		MaxWordLen:   60,
	}
}

// Load reads a YAML config from path, overlaying it onto
// DefaultConfig. An empty path checks the standard locations; no file
// found is not an error — Load returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = findConfigFile()
	}
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	homeDir, _ := os.UserHomeDir()
	locations := []string{
		"config.yaml",
		".w2n.yaml",
		filepath.Join(homeDir, ".config", "w2n", "config.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate rejects geometry and mode values that would make a build
// nonsensical rather than merely unusual.
func (c *Config) Validate() error {
	if c.Width <= 0 {
		return fmt.Errorf("width must be positive")
	}
	if c.Area <= 0 {
		return fmt.Errorf("area must be positive")
	}
	if c.TileSide <= 0 || c.TileSide > 65536 {
		return fmt.Errorf("tile_side must be in (0, 65536]")
	}
	if c.Sort != 0 && c.Sort != 1 {
		return fmt.Errorf("sort must be 0 (alpha) or 1 (tfidf-desc)")
	}
	switch c.CorpusFormat {
	case "raw", "conllu-lemma", "conllu-form", "form+lemma", "sem":
	default:
		return fmt.Errorf("corpus_format %q not recognized", c.CorpusFormat)
	}
	return nil
}

// Save writes c to path as YAML, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", dir, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
