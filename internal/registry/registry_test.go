package registry

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleHive = `WINE REGISTRY Version 2
;; All keys relative to \\User

[Software\\Winevisor] 1700000000
"Version"="1.0"
"Threads"=dword:00000008
@="default entry"

[Software\\Winevisor\\Nested] 1700000001
"Deep"="yes"
`

func loadSample(t *testing.T) (*Hive, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "user.reg")
	if err := os.WriteFile(path, []byte(sampleHive), 0o644); err != nil {
		t.Fatalf("write hive: %v", err)
	}
	h, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return h, path
}

func TestLoadAndGet(t *testing.T) {
	h, _ := loadSample(t)
	if v, ok := h.GetString(`Software\Winevisor`, "Version"); !ok || v != "1.0" {
		t.Fatalf("Version = %q ok=%v", v, ok)
	}
	if v, ok := h.GetString(`Software\Winevisor`, "Threads"); !ok || v != "8" {
		t.Fatalf("dword decode = %q ok=%v", v, ok)
	}
	if v, ok := h.GetString(`software\winevisor`, "version"); !ok || v != "1.0" {
		t.Fatalf("lookup should be case-insensitive, got %q ok=%v", v, ok)
	}
	if _, ok := h.GetString(`Software\Missing`, "x"); ok {
		t.Fatal("missing key should not resolve")
	}
}

func TestSetAndSaveRoundTrip(t *testing.T) {
	h, path := loadSample(t)
	h.SetString(`Software\Winevisor`, "Version", "2.0")
	h.SetString(`Software\New`, "Fresh", `with "quotes" and \backslash`)
	h.SetDWord(`Software\New`, "Count", 255)
	if err := h.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	re, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if v, _ := re.GetString(`Software\Winevisor`, "Version"); v != "2.0" {
		t.Fatalf("updated value lost: %q", v)
	}
	if v, _ := re.GetString(`Software\New`, "Fresh"); v != `with "quotes" and \backslash` {
		t.Fatalf("escaping broken: %q", v)
	}
	if v, _ := re.GetString(`Software\New`, "Count"); v != "255" {
		t.Fatalf("dword round trip: %q", v)
	}
}

func TestDeleteValueAndKey(t *testing.T) {
	h, _ := loadSample(t)
	if !h.DeleteValue(`Software\Winevisor`, "Version") {
		t.Fatal("delete existing value")
	}
	if h.DeleteValue(`Software\Winevisor`, "Version") {
		t.Fatal("double delete should report false")
	}
	if !h.DeleteKey(`Software\Winevisor`) {
		t.Fatal("delete key")
	}
	// subkeys go with the parent
	if _, ok := h.GetString(`Software\Winevisor\Nested`, "Deep"); ok {
		t.Fatal("nested key survived parent deletion")
	}
}

func TestLoadMissingFileYieldsEmptyHive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.reg")
	h, err := Load(path)
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	h.SetString(`Key`, "V", "1")
	if err := h.Save(); err != nil {
		t.Fatalf("save new hive: %v", err)
	}
	re, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if v, _ := re.GetString(`Key`, "V"); v != "1" {
		t.Fatalf("fresh hive round trip: %q", v)
	}
}

func TestKeysOrder(t *testing.T) {
	h, _ := loadSample(t)
	keys := h.Keys()
	if len(keys) != 2 || keys[0] != `Software\Winevisor` || keys[1] != `Software\Winevisor\Nested` {
		t.Fatalf("keys = %v", keys)
	}
}
