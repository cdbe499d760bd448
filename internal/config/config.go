// Package config loads the daemon's TOML configuration file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Device DeviceConfig `toml:"device"`
	Uinput UinputConfig `toml:"uinput"`
	Socket SocketConfig `toml:"socket"`
}

type DeviceConfig struct {
	// Ugen pins the binder to one "ugenB.A" device; empty means scan.
	Ugen           string `toml:"ugen"`
	ScanIntervalMS int    `toml:"scan_interval_ms"`
	ReadTimeoutMS  int    `toml:"read_timeout_ms"`
	ForceDetach    bool   `toml:"force_detach"`
	SkipReset      bool   `toml:"skip_reset"`
}

type UinputConfig struct {
	Enabled bool   `toml:"enabled"`
	Name    string `toml:"name"`
	Mode    string `toml:"mode"` // octal
	Group   string `toml:"group"`
}

type SocketConfig struct {
	Path string `toml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ScanIntervalMS: 5000,
			ReadTimeoutMS:  100,
		},
		Uinput: UinputConfig{
			Enabled: true,
			Name:    "XP-Pen Deco Mini7 V2 (uinput)",
			Mode:    "660",
			Group:   "operator",
		},
	}
}

// Load reads path over the defaults, so absent keys keep their built-in
// values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func (d DeviceConfig) ScanInterval() time.Duration {
	return time.Duration(d.ScanIntervalMS) * time.Millisecond
}

func (d DeviceConfig) ReadTimeout() time.Duration {
	return time.Duration(d.ReadTimeoutMS) * time.Millisecond
}

// FileMode parses the octal mode string for the created event node.
func (u UinputConfig) FileMode() (os.FileMode, error) {
	mode, err := strconv.ParseUint(u.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid event node mode %q: %w", u.Mode, err)
	}
	return os.FileMode(mode), nil
}
