// Package shortcut persists named launch targets in a "name=path" file so
// frequently used executables can be started by name.
package shortcut

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Entry is one named shortcut.
type Entry struct {
	Name string
	Path string
}

// Store holds the shortcut map and its backing file. Every mutation is
// written through immediately, mirroring the save-on-change behavior of
// the shortcuts file it replaces.
type Store struct {
	mu   sync.Mutex
	path string
	apps map[string]string
}

// Open loads the shortcut file at path, creating the parent directory.
// A missing file yields an empty store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("shortcut store requires a file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create shortcut dir: %w", err)
	}
	s := &Store{path: path, apps: make(map[string]string)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open shortcut file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			s.apps[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
		}
	}
	return sc.Err()
}

// save writes the map back sorted by name, via a temp file and rename.
func (s *Store) save() error {
	var b strings.Builder
	for _, e := range s.sorted() {
		fmt.Fprintf(&b, "%s=%s\n", e.Name, e.Path)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write shortcut file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) sorted() []Entry {
	out := make([]Entry, 0, len(s.apps))
	for n, p := range s.apps {
		out = append(out, Entry{Name: n, Path: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Add registers or replaces a shortcut and persists the store.
func (s *Store) Add(name, exePath string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if strings.TrimSpace(exePath) == "" {
		return fmt.Errorf("shortcut %q requires an executable path", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[name] = exePath
	slog.Info("added shortcut", "name", name, "path", exePath)
	return s.save()
}

// Remove drops a shortcut and persists the store.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[name]; !ok {
		return fmt.Errorf("shortcut %q not found", name)
	}
	delete(s.apps, name)
	slog.Info("removed shortcut", "name", name)
	return s.save()
}

// Path resolves a shortcut name to its executable path.
func (s *Store) Path(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.apps[name]
	return p, ok
}

// List returns all shortcuts sorted by name.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted()
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("shortcut name cannot be empty")
	}
	if strings.ContainsAny(name, "=\n") {
		return fmt.Errorf("invalid shortcut name %q", name)
	}
	return nil
}
