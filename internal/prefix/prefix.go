package prefix

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/winevisor/winevisor/internal/config"
)

const metaFile = ".winevisor.toml"

// Info describes one prefix tree on disk.
type Info struct {
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	Arch      config.Arch `json:"arch"`
	CreatedAt time.Time   `json:"created_at"`
	SizeBytes int64       `json:"size_bytes"`
}

// Manager creates and maintains prefix trees under a single root
// directory. It builds the directory skeleton itself so a prefix is
// usable for path mapping and registry access before the compatibility
// layer ever initializes it.
type Manager struct {
	root string
}

func NewManager(root string) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("empty prefix root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create prefix root: %w", err)
	}
	return &Manager{root: root}, nil
}

func (m *Manager) Root() string { return m.root }

// Path returns where the named prefix lives, whether or not it exists.
func (m *Manager) Path(name string) string { return filepath.Join(m.root, name) }

func (m *Manager) Exists(name string) bool {
	fi, err := os.Stat(m.Path(name))
	return err == nil && fi.IsDir()
}

// Create builds a new prefix skeleton: drive_c with the standard Windows
// directory layout, dosdevices with the c: and z: mappings, empty
// registry hives, and a metadata file recording the architecture.
func (m *Manager) Create(name string, arch config.Arch) (Info, error) {
	if name == "" || name != filepath.Base(name) {
		return Info{}, fmt.Errorf("invalid prefix name %q", name)
	}
	p := m.Path(name)
	if m.Exists(name) {
		return Info{}, fmt.Errorf("prefix %q already exists", name)
	}

	dirs := []string{
		filepath.Join(p, "drive_c", "windows", "system32"),
		filepath.Join(p, "drive_c", "windows", "temp"),
		filepath.Join(p, "drive_c", "Program Files"),
		filepath.Join(p, "drive_c", "users", "Public"),
		filepath.Join(p, "dosdevices"),
	}
	if arch != config.ArchWin32 {
		dirs = append(dirs,
			filepath.Join(p, "drive_c", "windows", "syswow64"),
			filepath.Join(p, "drive_c", "Program Files (x86)"))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return Info{}, fmt.Errorf("create prefix tree: %w", err)
		}
	}
	if err := os.Symlink("../drive_c", filepath.Join(p, "dosdevices", "c:")); err != nil {
		return Info{}, fmt.Errorf("map c: drive: %w", err)
	}
	if err := os.Symlink("/", filepath.Join(p, "dosdevices", "z:")); err != nil {
		return Info{}, fmt.Errorf("map z: drive: %w", err)
	}
	for _, hive := range []string{"system.reg", "user.reg"} {
		if err := os.WriteFile(filepath.Join(p, hive), []byte("WINE REGISTRY Version 2\n\n"), 0o644); err != nil {
			return Info{}, fmt.Errorf("seed registry hive: %w", err)
		}
	}

	created := time.Now().UTC()
	v := viper.New()
	v.SetConfigType("toml")
	v.Set("name", name)
	v.Set("arch", string(arch))
	v.Set("created_at", created.Format(time.RFC3339))
	if err := v.WriteConfigAs(filepath.Join(p, metaFile)); err != nil {
		return Info{}, fmt.Errorf("write prefix metadata: %w", err)
	}

	slog.Info("created prefix", "name", name, "path", p, "arch", arch)
	return Info{Name: name, Path: p, Arch: arch, CreatedAt: created}, nil
}

// Inspect loads metadata for an existing prefix and measures its tree
// size. Prefixes created by other tools get ArchAuto and the directory
// mtime as the creation time.
func (m *Manager) Inspect(name string) (Info, error) {
	p := m.Path(name)
	fi, err := os.Stat(p)
	if err != nil || !fi.IsDir() {
		return Info{}, fmt.Errorf("prefix %q does not exist", name)
	}
	info := Info{Name: name, Path: p, Arch: config.ArchAuto, CreatedAt: fi.ModTime().UTC()}

	v := viper.New()
	v.SetConfigFile(filepath.Join(p, metaFile))
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err == nil {
		info.Arch = config.ParseArch(v.GetString("arch"))
		if t, err := time.Parse(time.RFC3339, v.GetString("created_at")); err == nil {
			info.CreatedAt = t
		}
	}

	info.SizeBytes = treeSize(p)
	return info, nil
}

// List returns every prefix directory under the root, sorted by name.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("read prefix root: %w", err)
	}
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := m.Inspect(e.Name())
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// Clone copies src into a new prefix dst. Symlinks are recreated rather
// than followed so the z: mapping stays a link to the host root.
func (m *Manager) Clone(src, dst string) (Info, error) {
	if !m.Exists(src) {
		return Info{}, fmt.Errorf("prefix %q does not exist", src)
	}
	if m.Exists(dst) {
		return Info{}, fmt.Errorf("prefix %q already exists", dst)
	}
	if dst == "" || dst != filepath.Base(dst) {
		return Info{}, fmt.Errorf("invalid prefix name %q", dst)
	}
	if err := copyTree(m.Path(src), m.Path(dst)); err != nil {
		_ = os.RemoveAll(m.Path(dst))
		return Info{}, fmt.Errorf("clone prefix: %w", err)
	}
	slog.Info("cloned prefix", "src", src, "dst", dst)
	return m.Inspect(dst)
}

// Delete moves the prefix aside to a timestamped backup directory next
// to it instead of removing it outright. Returns the backup path.
func (m *Manager) Delete(name string) (string, error) {
	if !m.Exists(name) {
		return "", fmt.Errorf("prefix %q does not exist", name)
	}
	backup := fmt.Sprintf("%s.bak-%s", m.Path(name), time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(m.Path(name), backup); err != nil {
		return "", fmt.Errorf("back up prefix: %w", err)
	}
	slog.Info("deleted prefix", "name", name, "backup", backup)
	return backup, nil
}

// Verify checks the structural invariants of a prefix tree: the drive_c
// directory, the c: mapping, and the system registry hive.
func (m *Manager) Verify(name string) error {
	p := m.Path(name)
	if fi, err := os.Stat(filepath.Join(p, "drive_c")); err != nil || !fi.IsDir() {
		return fmt.Errorf("prefix %q: missing drive_c", name)
	}
	if _, err := os.Lstat(filepath.Join(p, "dosdevices", "c:")); err != nil {
		return fmt.Errorf("prefix %q: missing c: drive mapping", name)
	}
	if _, err := os.Stat(filepath.Join(p, "system.reg")); err != nil {
		return fmt.Errorf("prefix %q: missing system registry hive", name)
	}
	return nil
}

func treeSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil && fi.Mode().IsRegular() {
			total += fi.Size()
		}
		return nil
	})
	return total
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.Type()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		default:
			return copyFile(path, target)
		}
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
