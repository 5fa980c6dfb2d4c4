//go:build !windows

package launcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/winevisor/winevisor/internal/config"
	"github.com/winevisor/winevisor/internal/process"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.WineBinary = ""
	cfg.CaptureStdout = false
	cfg.CaptureStderr = false
	cfg.Prefix = t.TempDir()
	return cfg
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "script.sh")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

func TestExecuteSyncExitCode(t *testing.T) {
	l := New(testConfig(t), process.NewTable())
	script := writeScript(t, "exit 7")
	if code := l.ExecuteSync(script); code != 7 {
		t.Fatalf("exit code = %d, want 7", code)
	}
}

func TestExecuteSyncSuccessMarksStopped(t *testing.T) {
	tb := process.NewTable()
	l := New(testConfig(t), tb)
	script := writeScript(t, "exit 0")
	pid, err := l.Execute(script)
	if err != nil || pid <= 0 {
		t.Fatalf("execute: pid=%d err=%v", pid, err)
	}
	if code := l.WaitFor(pid); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	rec, ok := tb.Snapshot(pid)
	if !ok || rec.State != process.StateStopped {
		t.Fatalf("record = %+v ok=%v, want stopped", rec, ok)
	}
	if rec.EndTime.IsZero() {
		t.Fatal("end time not stamped")
	}
}

func TestSignalDeathNegatesSignalNumber(t *testing.T) {
	tb := process.NewTable()
	l := New(testConfig(t), tb)
	script := writeScript(t, "kill -9 $$")
	pid, err := l.Execute(script)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if code := l.WaitFor(pid); code != -9 {
		t.Fatalf("exit code = %d, want -9", code)
	}
	rec, _ := tb.Snapshot(pid)
	if rec.State != process.StateKilled {
		t.Fatalf("state = %s, want killed", rec.State)
	}
}

func TestSpawnFailureSentinel(t *testing.T) {
	tb := process.NewTable()
	l := New(testConfig(t), tb)
	missing := filepath.Join(t.TempDir(), "does-not-exist.exe")
	pid, err := l.Execute(missing)
	if err == nil || pid != FailedPID {
		t.Fatalf("want FailedPID and error, got pid=%d err=%v", pid, err)
	}
	if code := l.ExecuteSync(missing); code != process.ExitSpawnFailure {
		t.Fatalf("sync code = %d, want %d", code, process.ExitSpawnFailure)
	}
	if tb.Len() != 0 {
		t.Fatalf("failed launches must not leave records, len=%d", tb.Len())
	}
}

func TestPreLaunchHookFailureAborts(t *testing.T) {
	tb := process.NewTable()
	l := New(testConfig(t), tb)
	if err := l.AddPreLaunchHook(Hook{Name: "gate", Command: "exit 1"}); err != nil {
		t.Fatalf("add hook: %v", err)
	}
	script := writeScript(t, "exit 0")
	if pid, err := l.Execute(script); err == nil || pid != FailedPID {
		t.Fatalf("hook failure must abort, got pid=%d err=%v", pid, err)
	}
	if tb.Len() != 0 {
		t.Fatal("aborted launch must not register a record")
	}
}

func TestCustomEnvReachesChild(t *testing.T) {
	l := New(testConfig(t), process.NewTable())
	l.SetEnv("MARKER", "hello")
	out := filepath.Join(t.TempDir(), "out.txt")
	script := writeScript(t, `printf "%s" "$MARKER" > "$1"`)
	if code := l.ExecuteSync(script, out); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "hello" {
		t.Fatalf("marker = %q err=%v", data, err)
	}
}

func TestSetConfigRetiresPreviousOverrides(t *testing.T) {
	cfgA := testConfig(t)
	cfgA.Env = []string{"STALE_MARKER=stale"}
	l := New(cfgA, process.NewTable())

	cfgB := testConfig(t)
	l.SetConfig(cfgB)

	out := filepath.Join(t.TempDir(), "out.txt")
	script := writeScript(t, `printf "%s" "${STALE_MARKER:-unset}" > "$1"`)
	if code := l.ExecuteSync(script, out); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "unset" {
		t.Fatalf("override outlived its configuration: %q err=%v", data, err)
	}
}

func TestDerivedPrefixReachesChild(t *testing.T) {
	cfg := testConfig(t)
	l := New(cfg, process.NewTable())
	out := filepath.Join(t.TempDir(), "out.txt")
	script := writeScript(t, `printf "%s" "$WINEPREFIX" > "$1"`)
	if code := l.ExecuteSync(script, out); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	data, _ := os.ReadFile(out)
	if string(data) != cfg.Prefix {
		t.Fatalf("WINEPREFIX = %q, want %q", data, cfg.Prefix)
	}
}

func TestCaptureWritesRotatingLog(t *testing.T) {
	cfg := testConfig(t)
	cfg.CaptureStdout = true
	cfg.Log.Dir = t.TempDir()
	l := New(cfg, process.NewTable())
	script := writeScript(t, `echo captured-line`)
	if code := l.ExecuteSync(script); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	logPath := filepath.Join(cfg.Log.Dir, "script.sh.stdout.log")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(logPath); err == nil && strings.Contains(string(data), "captured-line") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("captured output never reached %s", logPath)
}

func TestWaitForUnknownPID(t *testing.T) {
	l := New(testConfig(t), process.NewTable())
	if code := l.WaitFor(424242); code != process.ExitSpawnFailure {
		t.Fatalf("unknown pid wait = %d", code)
	}
}

func TestResolvePathRejectsDirectory(t *testing.T) {
	if _, err := ResolvePath(t.TempDir()); err == nil {
		t.Fatal("directory should be rejected")
	}
	if _, err := ResolvePath(""); err == nil {
		t.Fatal("empty path should be rejected")
	}
}

func TestTranslateExitNil(t *testing.T) {
	if got := translateExit(nil); got != 0 {
		t.Fatalf("translateExit(nil) = %d", got)
	}
}
