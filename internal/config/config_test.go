package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Default()
	require.Equal(t, "wine", c.WineBinary)
	require.Equal(t, ArchAuto, c.Arch)
	require.True(t, c.EnableCSMT)
	require.True(t, c.EnableESync)
	require.False(t, c.EnableFSync)
	require.Equal(t, "alsa", c.AudioDriver)
	require.Equal(t, "x11", c.GraphicsDriver)
	require.True(t, c.CaptureStdout)
	require.True(t, c.CaptureStderr)
	require.NotEmpty(t, c.Prefix)
}

func TestValidateClamps(t *testing.T) {
	c := Default()
	c.NiceLevel = -100
	c.Validate()
	require.Equal(t, -20, c.NiceLevel)

	c.NiceLevel = 99
	c.Validate()
	require.Equal(t, 19, c.NiceLevel)

	c.Log.MaxSizeMB = 50000
	c.Validate()
	require.Equal(t, 10000, c.Log.MaxSizeMB)

	c.Arch = Arch("sparc")
	c.AudioDriver = ""
	c.Prefix = ""
	c.Validate()
	require.Equal(t, ArchAuto, c.Arch)
	require.Equal(t, "alsa", c.AudioDriver)
	require.NotEmpty(t, c.Prefix)
}

func TestParseArch(t *testing.T) {
	require.Equal(t, ArchWin32, ParseArch("win32"))
	require.Equal(t, ArchWin32, ParseArch("32-bit"))
	require.Equal(t, ArchWin64, ParseArch(" WIN64 "))
	require.Equal(t, ArchAuto, ParseArch("anything"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "winevisor.toml")

	c := Default()
	c.Prefix = "/tmp/pfx"
	c.Arch = ArchWin64
	c.EnableDXVK = true
	c.DLLOverrides = []string{"d3d11=n"}
	c.Env = []string{"WINEDEBUG=-all"}
	c.NiceLevel = 5
	require.NoError(t, c.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/pfx", got.Prefix)
	require.Equal(t, ArchWin64, got.Arch)
	require.True(t, got.EnableDXVK)
	require.Equal(t, []string{"d3d11=n"}, got.DLLOverrides)
	require.Equal(t, []string{"WINEDEBUG=-all"}, got.Env)
	require.Equal(t, 5, got.NiceLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.toml")
	require.NoError(t, os.WriteFile(path, []byte("wine_binary = \"wine64\"\n"), 0o644))
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "wine64", got.WineBinary)
	require.True(t, got.EnableCSMT)
	require.Equal(t, "alsa", got.AudioDriver)
}
