package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Migration MigrationConfig `toml:"migration"`
	Sources   []SourceConfig  `toml:"sources"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// MigrationConfig contains defaults for a migration batch: which catalogue
// sources to search, in order, and how results are selected and applied.
type MigrationConfig struct {
	TargetSources      []string `toml:"target_sources"`       // candidate source IDs in priority order
	MaxConcurrent      int      `toml:"max_concurrent"`       // in-flight provider call bound
	PreferMostChapters bool     `toml:"prefer_most_chapters"` // best-of-N instead of first match
	RankedSearch       bool     `toml:"ranked_search"`        // fuzzy ranking instead of exact title
	CarryChapters      bool     `toml:"carry_chapters"`
	CarryCategories    bool     `toml:"carry_categories"`
	CarryTracking      bool     `toml:"carry_tracking"`
}

// SourceConfig describes one configured catalogue source endpoint.
type SourceConfig struct {
	ID        string  `toml:"id"`
	Name      string  `toml:"name"`
	BaseURL   string  `toml:"base_url"`
	Language  string  `toml:"language"`
	RateLimit float64 `toml:"rate_limit"` // requests per second against this catalogue
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
