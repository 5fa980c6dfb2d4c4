package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/winevisor/winevisor/internal/logger"
)

// Arch selects the Windows architecture a prefix is initialized for.
type Arch string

const (
	ArchWin32 Arch = "win32"
	ArchWin64 Arch = "win64"
	ArchAuto  Arch = "auto"
)

// ParseArch normalizes a textual architecture, falling back to auto.
func ParseArch(s string) Arch {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "win32", "32", "32-bit":
		return ArchWin32
	case "win64", "64", "64-bit":
		return ArchWin64
	default:
		return ArchAuto
	}
}

// Config describes how a Windows executable is launched under a prefix.
// It is consumed read-only by the launcher; Validate clamps numeric fields
// to legal ranges before the launcher ever sees them.
type Config struct {
	Prefix     string `mapstructure:"prefix"`      // isolated root (WINEPREFIX)
	WineBinary string `mapstructure:"wine_binary"` // compatibility-layer binary; empty runs the target directly
	Arch       Arch   `mapstructure:"architecture"`

	EnableVirtualDesktop bool   `mapstructure:"enable_virtual_desktop"`
	VirtualDesktopRes    string `mapstructure:"virtual_desktop_resolution"`
	EnableCSMT           bool   `mapstructure:"enable_csmt"`
	EnableDXVK           bool   `mapstructure:"enable_dxvk"`
	EnableESync          bool   `mapstructure:"enable_esync"`
	EnableFSync          bool   `mapstructure:"enable_fsync"`

	AudioDriver    string   `mapstructure:"audio_driver"`    // alsa, pulse, oss
	GraphicsDriver string   `mapstructure:"graphics_driver"` // x11, wayland
	DLLOverrides   []string `mapstructure:"dll_overrides"`

	// Env holds explicit environment overrides applied on top of the
	// configuration-derived variables, in "KEY=VALUE" form.
	Env []string `mapstructure:"env"`

	NiceLevel     int  `mapstructure:"nice_level"`
	CaptureStdout bool `mapstructure:"capture_stdout"`
	CaptureStderr bool `mapstructure:"capture_stderr"`

	Log logger.CaptureConfig `mapstructure:"log"`
}

// Default returns the configuration the original tool ships with.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Prefix:         filepath.Join(home, ".wine"),
		WineBinary:     "wine",
		Arch:           ArchAuto,
		EnableCSMT:     true,
		EnableESync:    true,
		AudioDriver:    "alsa",
		GraphicsDriver: "x11",
		CaptureStdout:  true,
		CaptureStderr:  true,
	}
}

// Validate clamps numeric fields to legal ranges and fills empty fields
// with defaults. It never rejects a config outright; range errors are
// corrected silently, matching the original behavior.
func (c *Config) Validate() {
	if c.NiceLevel < -20 {
		c.NiceLevel = -20
	}
	if c.NiceLevel > 19 {
		c.NiceLevel = 19
	}
	if c.Log.MaxSizeMB < 0 {
		c.Log.MaxSizeMB = 0
	}
	if c.Log.MaxSizeMB > 10000 {
		c.Log.MaxSizeMB = 10000
	}
	if c.Prefix == "" {
		home, _ := os.UserHomeDir()
		c.Prefix = filepath.Join(home, ".wine")
	}
	if c.AudioDriver == "" {
		c.AudioDriver = "alsa"
	}
	if c.GraphicsDriver == "" {
		c.GraphicsDriver = "x11"
	}
	switch c.Arch {
	case ArchWin32, ArchWin64, ArchAuto:
	default:
		c.Arch = ArchAuto
	}
}

// Load reads a TOML configuration file and applies defaults and clamping.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	c := Default()
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	c.Validate()
	return c, nil
}

// Save writes the configuration as TOML.
func (c Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("toml")
	v.Set("prefix", c.Prefix)
	v.Set("wine_binary", c.WineBinary)
	v.Set("architecture", string(c.Arch))
	v.Set("enable_virtual_desktop", c.EnableVirtualDesktop)
	v.Set("virtual_desktop_resolution", c.VirtualDesktopRes)
	v.Set("enable_csmt", c.EnableCSMT)
	v.Set("enable_dxvk", c.EnableDXVK)
	v.Set("enable_esync", c.EnableESync)
	v.Set("enable_fsync", c.EnableFSync)
	v.Set("audio_driver", c.AudioDriver)
	v.Set("graphics_driver", c.GraphicsDriver)
	v.Set("dll_overrides", c.DLLOverrides)
	v.Set("env", c.Env)
	v.Set("nice_level", c.NiceLevel)
	v.Set("capture_stdout", c.CaptureStdout)
	v.Set("capture_stderr", c.CaptureStderr)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return v.WriteConfigAs(path)
}

// String renders the configuration for `config-show`.
func (c Config) String() string {
	var b strings.Builder
	b.WriteString("Configuration:\n")
	fmt.Fprintf(&b, "  Prefix: %s\n", c.Prefix)
	fmt.Fprintf(&b, "  Binary: %s\n", c.WineBinary)
	fmt.Fprintf(&b, "  Architecture: %s\n", c.Arch)
	fmt.Fprintf(&b, "  Virtual Desktop: %v", c.EnableVirtualDesktop)
	if c.EnableVirtualDesktop {
		fmt.Fprintf(&b, " (%s)", c.VirtualDesktopRes)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  CSMT: %v\n", c.EnableCSMT)
	fmt.Fprintf(&b, "  DXVK: %v\n", c.EnableDXVK)
	fmt.Fprintf(&b, "  ESYNC: %v\n", c.EnableESync)
	fmt.Fprintf(&b, "  FSYNC: %v\n", c.EnableFSync)
	fmt.Fprintf(&b, "  Audio Driver: %s\n", c.AudioDriver)
	fmt.Fprintf(&b, "  Graphics Driver: %s\n", c.GraphicsDriver)
	fmt.Fprintf(&b, "  Nice Level: %d\n", c.NiceLevel)
	return b.String()
}
