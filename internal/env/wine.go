package env

import (
	"strings"

	"github.com/winevisor/winevisor/internal/config"
)

// ApplyConfig replaces the derived layer with the variables implied by a
// launch configuration. Variable names follow the compatibility layer's
// conventions (WINEPREFIX, WINEARCH, WINEESYNC, ...).
func ApplyConfig(b *Builder, cfg config.Config) {
	b.ClearDerived()
	b.SetDerived("WINEPREFIX", cfg.Prefix)
	switch cfg.Arch {
	case config.ArchWin32:
		b.SetDerived("WINEARCH", "win32")
	case config.ArchWin64:
		b.SetDerived("WINEARCH", "win64")
	}
	if cfg.EnableVirtualDesktop && cfg.VirtualDesktopRes != "" {
		b.SetDerived("WINE_VD_RESOLUTION", cfg.VirtualDesktopRes)
	}
	if cfg.EnableCSMT {
		b.SetDerived("CSMT", "enabled")
	}
	if cfg.EnableESync {
		b.SetDerived("WINEESYNC", "1")
	}
	if cfg.EnableFSync {
		b.SetDerived("WINEFSYNC", "1")
	}
	if len(cfg.DLLOverrides) > 0 {
		b.SetDerived("WINEDLLOVERRIDES", strings.Join(cfg.DLLOverrides, ";"))
	}
	switch cfg.AudioDriver {
	case "alsa", "pulse", "oss":
		b.SetDerived("WINE_AUDIO_DRIVER", cfg.AudioDriver)
	}
	switch cfg.GraphicsDriver {
	case "x11":
		b.SetDerivedDefault("DISPLAY", ":0")
	case "wayland":
		b.SetDerivedDefault("WAYLAND_DISPLAY", "wayland-0")
	}
	if cfg.EnableDXVK {
		b.SetDerivedDefault("DXVK_HUD", "devinfo,fps")
	}
}
