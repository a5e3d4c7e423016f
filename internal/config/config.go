// Package config loads and saves the CLI harness's persistent settings
// (default geometry, NAND image path, gc ratio) from a TOML file under a
// DHARA_HOME directory, mirroring the precedence chain a developer
// harness typically uses for its own home directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/nandftl/dhara-go/nand"
)

// Config represents the on-disk harness configuration file.
type Config struct {
	Geometry Geometry `toml:"geometry,omitempty"`
	GCRatio  int      `toml:"gc_ratio,omitempty"`
	Image    string   `toml:"image,omitempty"`
}

// Geometry mirrors nand.Geometry in TOML-friendly form.
type Geometry struct {
	Log2PageSize uint   `toml:"log2_page_size"`
	Log2PPB      uint   `toml:"log2_ppb"`
	NumBlocks    uint32 `toml:"num_blocks"`
}

// ToNAND converts to nand.Geometry.
func (g Geometry) ToNAND() nand.Geometry {
	return nand.Geometry{Log2PageSize: g.Log2PageSize, Log2PPB: g.Log2PPB, NumBlocks: g.NumBlocks}
}

// homeDirOverride is set by the CLI's --home flag.
var homeDirOverride string

// SetHomeDir overrides the harness home directory for this process.
func SetHomeDir(dir string) {
	homeDirOverride = dir
}

// Home returns the harness home directory. Precedence: --home flag /
// SetHomeDir > DHARA_HOME env var > ~/.dhara.
func Home() string {
	if homeDirOverride != "" {
		return homeDirOverride
	}
	if v := os.Getenv("DHARA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".dhara")
	}
	return filepath.Join(home, ".dhara")
}

// Path returns the full path to config.toml.
func Path() string {
	return filepath.Join(Home(), "config.toml")
}

// EnsureDir creates the harness home directory if it does not exist.
func EnsureDir() error {
	return os.MkdirAll(Home(), 0o755)
}

// Default returns the harness's built-in default configuration, used
// when no config.toml exists yet: a small geometry
// (page_size=512, ppb=8, num_blocks=113) convenient for quick local runs.
func Default() *Config {
	return &Config{
		Geometry: Geometry{Log2PageSize: 9, Log2PPB: 3, NumBlocks: 113},
		GCRatio:  2,
		Image:    "nand.img",
	}
}

// Load reads config.toml, falling back to Default if it does not exist.
func Load() (*Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", Path(), err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", Path(), err)
	}
	return cfg, nil
}

// Save writes cfg back to config.toml, creating the home directory if
// needed.
func Save(cfg *Config) error {
	if err := EnsureDir(); err != nil {
		return fmt.Errorf("config: creating home dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	return os.WriteFile(Path(), data, 0o644)
}
