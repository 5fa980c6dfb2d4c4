//go:build !windows

package launcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHookValidate(t *testing.T) {
	cases := []struct {
		name string
		hook Hook
		ok   bool
	}{
		{"ok", Hook{Name: "a", Command: "true"}, true},
		{"empty command", Hook{Name: "b"}, false},
		{"negative timeout", Hook{Name: "c", Command: "true", Timeout: -time.Second}, false},
		{"bad env", Hook{Name: "d", Command: "true", Env: []string{"NOEQUALS"}}, false},
	}
	for _, c := range cases {
		err := c.hook.Validate()
		if (err == nil) != c.ok {
			t.Fatalf("%s: err=%v ok=%v", c.name, err, c.ok)
		}
	}
}

func TestHookRunSeesEnv(t *testing.T) {
	out := filepath.Join(t.TempDir(), "hook.txt")
	h := Hook{Name: "env", Command: `printf "%s" "$HOOKVAR" > ` + out, Env: []string{"HOOKVAR=set"}}
	if err := h.run(nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "set" {
		t.Fatalf("hook env = %q err=%v", data, err)
	}
}

func TestHookRunTimeout(t *testing.T) {
	h := Hook{Name: "slow", Command: "sleep 5", Timeout: 100 * time.Millisecond}
	start := time.Now()
	if err := h.run(nil); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("timeout not enforced")
	}
}
