//go:build !windows

package prefix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/winevisor/winevisor/internal/config"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "prefixes"))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateBuildsSkeleton(t *testing.T) {
	m := newTestManager(t)
	info, err := m.Create("default", config.ArchWin64)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if info.Arch != config.ArchWin64 || info.Path != m.Path("default") {
		t.Fatalf("info = %+v", info)
	}

	for _, rel := range []string{
		"drive_c/windows/system32",
		"drive_c/windows/syswow64",
		"drive_c/Program Files",
		"drive_c/Program Files (x86)",
		"drive_c/users/Public",
		"dosdevices",
	} {
		if fi, err := os.Stat(filepath.Join(info.Path, rel)); err != nil || !fi.IsDir() {
			t.Fatalf("missing directory %s: %v", rel, err)
		}
	}
	if link, err := os.Readlink(filepath.Join(info.Path, "dosdevices", "z:")); err != nil || link != "/" {
		t.Fatalf("z: mapping = %q err=%v", link, err)
	}
	if err := m.Verify("default"); err != nil {
		t.Fatalf("fresh prefix fails verification: %v", err)
	}
}

func TestCreateWin32SkipsWow64(t *testing.T) {
	m := newTestManager(t)
	info, err := m.Create("small", config.ArchWin32)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := os.Stat(filepath.Join(info.Path, "drive_c", "windows", "syswow64")); !os.IsNotExist(err) {
		t.Fatalf("win32 prefix should have no syswow64: %v", err)
	}
}

func TestCreateRejectsDuplicateAndBadNames(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Create("dup", config.ArchAuto); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Create("dup", config.ArchAuto); err == nil {
		t.Fatal("duplicate name accepted")
	}
	if _, err := m.Create("../escape", config.ArchAuto); err == nil {
		t.Fatal("path traversal name accepted")
	}
}

func TestInspectReadsMetadata(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Create("meta", config.ArchWin32); err != nil {
		t.Fatalf("create: %v", err)
	}
	info, err := m.Inspect("meta")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Arch != config.ArchWin32 {
		t.Fatalf("arch = %s", info.Arch)
	}
	if info.SizeBytes <= 0 {
		t.Fatalf("size = %d", info.SizeBytes)
	}
}

func TestListAndClone(t *testing.T) {
	m := newTestManager(t)
	_, _ = m.Create("one", config.ArchAuto)
	if _, err := m.Clone("one", "two"); err != nil {
		t.Fatalf("clone: %v", err)
	}
	infos, err := m.List()
	if err != nil || len(infos) != 2 {
		t.Fatalf("list = %+v err=%v", infos, err)
	}
	if err := m.Verify("two"); err != nil {
		t.Fatalf("clone fails verification: %v", err)
	}
	if link, err := os.Readlink(filepath.Join(m.Path("two"), "dosdevices", "z:")); err != nil || link != "/" {
		t.Fatalf("clone did not recreate symlink: %q %v", link, err)
	}
}

func TestDeleteBacksUp(t *testing.T) {
	m := newTestManager(t)
	_, _ = m.Create("gone", config.ArchAuto)
	backup, err := m.Delete("gone")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if m.Exists("gone") {
		t.Fatal("prefix still present after delete")
	}
	if fi, err := os.Stat(backup); err != nil || !fi.IsDir() {
		t.Fatalf("backup missing: %v", err)
	}
}

func TestVerifyCatchesBrokenTree(t *testing.T) {
	m := newTestManager(t)
	info, _ := m.Create("broken", config.ArchAuto)
	if err := os.Remove(filepath.Join(info.Path, "system.reg")); err != nil {
		t.Fatalf("remove hive: %v", err)
	}
	if err := m.Verify("broken"); err == nil {
		t.Fatal("verification should fail without system.reg")
	}
}
