package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/blacktop/go-kittygfx"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const configName = "kittycat/config.toml"

// Config holds the settings read from config.toml. Flags override every field.
type Config struct {
	Quiet    *int          `koanf:"quiet"`     // 0, 1 or 2 (default: 2)
	Tmux     bool          `koanf:"tmux"`      // force tmux passthrough
	Compress bool          `koanf:"compress"`  // zlib deflate payloads
	MaxWidth int           `koanf:"max_width"` // downscale wider images, in pixels
	Medium   string        `koanf:"medium"`    // "direct", "file" or "temp" (default: "direct")
	Timeout  time.Duration `koanf:"timeout"`   // terminal query timeout (default: 200ms)
}

// loadConfig reads path, or $XDG_CONFIG_HOME/kittycat/config.toml when path is
// empty. A missing default config is not an error.
func loadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		if found, err := xdg.SearchConfigFile(configName); err == nil {
			path = found
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Apply defaults
	cfg.Medium = strings.ToLower(strings.TrimSpace(cfg.Medium))
	if cfg.Medium == "" {
		cfg.Medium = "direct"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = kittygfx.DefaultQueryTimeout
	}
	if cfg.MaxWidth < 0 {
		cfg.MaxWidth = 0
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := parseMedium(c.Medium); err != nil {
		return err
	}
	if c.Quiet != nil && (*c.Quiet < 0 || *c.Quiet > 2) {
		return fmt.Errorf("invalid quiet level %d: must be 0, 1 or 2", *c.Quiet)
	}
	return nil
}

// QuietLevel returns the configured quiet level, QuietAll when unset
func (c *Config) QuietLevel() kittygfx.Quiet {
	if c.Quiet == nil {
		return kittygfx.QuietAll
	}
	return kittygfx.Quiet(*c.Quiet)
}

func parseMedium(s string) (kittygfx.Medium, error) {
	switch s {
	case "direct", "d":
		return kittygfx.Direct, nil
	case "file", "f":
		return kittygfx.File, nil
	case "temp", "t":
		return kittygfx.TempFile, nil
	}
	return 0, fmt.Errorf("invalid medium %q: must be direct, file or temp", s)
}

func configDir() string {
	return filepath.Join(xdg.ConfigHome, filepath.Dir(configName))
}
