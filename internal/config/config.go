package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	minPageSize = 1
	maxPageSize = 500
)

var validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Grid     GridConfig     `toml:"grid"`
	Confirm  ConfirmConfig  `toml:"confirm"`
	Keys     KeyConfig      `toml:"keys"`
	Serve    ServeConfig    `toml:"serve"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type GridConfig struct {
	PageSize                 int  `toml:"page_size"`
	SuppressSinglePagePrompt bool `toml:"suppress_single_page_prompt"`
	ShowArchived             bool `toml:"show_archived"`
}

// ConfirmConfig selects which bulk actions ask for confirmation before running.
type ConfirmConfig struct {
	Delete  bool `toml:"delete"`
	Archive bool `toml:"archive"`
	Change  bool `toml:"change"`
}

type KeyConfig struct {
	ToggleRow     string `toml:"toggle_row"`
	RangeToggle   string `toml:"range_toggle"`
	ToggleAll     string `toml:"toggle_all"`
	ConfirmAcross string `toml:"confirm_across"`
	ClearAcross   string `toml:"clear_across"`
	Actions       string `toml:"actions"`
	Search        string `toml:"search"`
}

type ServeConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Grid: GridConfig{
			PageSize: 50,
		},
		Confirm: ConfirmConfig{
			Delete:  true,
			Archive: false,
			Change:  false,
		},
		Keys: KeyConfig{
			ToggleRow:     "space",
			RangeToggle:   "X",
			ToggleAll:     "a",
			ConfirmAcross: "A",
			ClearAcross:   "c",
			Actions:       ".",
			Search:        "/",
		},
		Serve: ServeConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Write encodes cfg as TOML at path, creating the parent directory.
func Write(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	content, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, content, 0o644)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if !slices.Contains(validLogLevels, strings.ToLower(strings.TrimSpace(c.Logging.Level))) {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if c.Grid.PageSize < minPageSize || c.Grid.PageSize > maxPageSize {
		return fmt.Errorf("grid.page_size must be between %d and %d", minPageSize, maxPageSize)
	}

	keys := []struct {
		name  string
		value string
	}{
		{"toggle_row", c.Keys.ToggleRow},
		{"range_toggle", c.Keys.RangeToggle},
		{"toggle_all", c.Keys.ToggleAll},
		{"confirm_across", c.Keys.ConfirmAcross},
		{"clear_across", c.Keys.ClearAcross},
		{"actions", c.Keys.Actions},
		{"search", c.Keys.Search},
	}
	seen := map[string]string{}
	for _, key := range keys {
		if strings.TrimSpace(key.value) == "" {
			return fmt.Errorf("keys.%s is required", key.name)
		}
		if prev, ok := seen[key.value]; ok {
			return fmt.Errorf("keys.%s duplicates keys.%s (%q)", key.name, prev, key.value)
		}
		seen[key.value] = key.name
	}

	if strings.TrimSpace(c.Serve.APIEndpoint) != "" && strings.TrimSpace(c.Serve.APIEndpoint) == strings.TrimSpace(c.Serve.MCPEndpoint) {
		return errors.New("serve.api_endpoint and serve.mcp_endpoint must differ")
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
