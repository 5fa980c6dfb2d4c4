package shortcut

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shortcuts.conf")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s, path
}

func TestAddResolveRemove(t *testing.T) {
	s, _ := openTestStore(t)
	if err := s.Add("game", "/games/app.exe"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if p, ok := s.Path("game"); !ok || p != "/games/app.exe" {
		t.Fatalf("path = %q ok=%v", p, ok)
	}
	if err := s.Remove("game"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := s.Path("game"); ok {
		t.Fatal("shortcut survived removal")
	}
	if err := s.Remove("game"); err == nil {
		t.Fatal("removing an unknown shortcut should fail")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	s, path := openTestStore(t)
	_ = s.Add("b", "/b.exe")
	_ = s.Add("a", "/a.exe")

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	list := reopened.List()
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" {
		t.Fatalf("list = %+v", list)
	}
}

func TestAddReplacesExisting(t *testing.T) {
	s, _ := openTestStore(t)
	_ = s.Add("game", "/old.exe")
	if err := s.Add("game", "/new.exe"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if p, _ := s.Path("game"); p != "/new.exe" {
		t.Fatalf("path = %q", p)
	}
}

func TestRejectsBadInput(t *testing.T) {
	s, _ := openTestStore(t)
	if err := s.Add("", "/a.exe"); err == nil {
		t.Fatal("empty name accepted")
	}
	if err := s.Add("a=b", "/a.exe"); err == nil {
		t.Fatal("name with separator accepted")
	}
	if err := s.Add("game", "  "); err == nil {
		t.Fatal("empty path accepted")
	}
}

func TestLoadSkipsCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shortcuts.conf")
	content := strings.Join([]string{"# comment", "", "game = /games/app.exe"}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if p, ok := s.Path("game"); !ok || p != "/games/app.exe" {
		t.Fatalf("path = %q ok=%v", p, ok)
	}
}
