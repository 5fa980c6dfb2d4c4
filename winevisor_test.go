//go:build !windows

package winevisor_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/winevisor/winevisor"
	"github.com/winevisor/winevisor/internal/store/sqlite"
)

func testEngine(t *testing.T) *winevisor.Engine {
	t.Helper()
	eng := winevisor.New()
	cfg := winevisor.DefaultConfig()
	cfg.WineBinary = ""
	cfg.CaptureStdout = false
	cfg.CaptureStderr = false
	cfg.Prefix = t.TempDir()
	eng.SetConfig(cfg)
	return eng
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "script.sh")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

func TestEngineExecuteSyncLifecycle(t *testing.T) {
	eng := testEngine(t)
	script := writeScript(t, "exit 5")
	if code := eng.ExecuteSync(script); code != 5 {
		t.Fatalf("exit code = %d, want 5", code)
	}
	recs := eng.GetAllProcesses()
	if len(recs) != 1 || recs[0].State != winevisor.StateStopped || recs[0].ExitCode != 5 {
		t.Fatalf("records = %+v", recs)
	}
	if !eng.Forget(recs[0].PID) {
		t.Fatal("forget tracked pid")
	}
	if len(eng.GetAllProcesses()) != 0 {
		t.Fatal("record survived forget")
	}
}

func TestEngineSpawnFailure(t *testing.T) {
	eng := testEngine(t)
	if code := eng.ExecuteSync(filepath.Join(t.TempDir(), "missing.exe")); code != winevisor.ExitSpawnFailure {
		t.Fatalf("code = %d, want %d", code, winevisor.ExitSpawnFailure)
	}
}

func TestEngineObserverFiresOncePerExit(t *testing.T) {
	eng := testEngine(t)
	eng.SetMonitorInterval(10 * time.Millisecond)
	var fired atomic.Int32
	eng.RegisterObserver(func(winevisor.Record) { fired.Add(1) })
	eng.StartMonitoring()
	defer eng.StopMonitoring()

	script := writeScript(t, "exit 0")
	if code := eng.ExecuteSync(script); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && fired.Load() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	// let a few more monitor ticks pass; the count must not grow
	time.Sleep(100 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Fatalf("observer fired %d times, want exactly 1", n)
	}
}

func TestEngineHistoryRecordsLaunchAndExit(t *testing.T) {
	eng := testEngine(t)
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if err := eng.UseHistory(context.Background(), db); err != nil {
		t.Fatalf("use history: %v", err)
	}

	script := writeScript(t, "exit 3")
	if code := eng.ExecuteSync(script); code != 3 {
		t.Fatalf("exit code = %d", code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hist, err := eng.History(context.Background(), 10)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(hist) == 1 && hist[0].State == "stopped" && hist[0].ExitCode.Valid && hist[0].ExitCode.Int64 == 3 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("history never recorded the exit")
}

func TestEngineRunShortcut(t *testing.T) {
	eng := testEngine(t)
	if _, err := eng.RunShortcut("nothing"); err == nil {
		t.Fatal("run without a store should fail")
	}
	if err := eng.UseShortcuts(filepath.Join(t.TempDir(), "shortcuts.conf")); err != nil {
		t.Fatalf("use shortcuts: %v", err)
	}
	script := writeScript(t, "exit 0")
	if err := eng.Shortcuts().Add("quick", script); err != nil {
		t.Fatalf("add: %v", err)
	}
	pid, err := eng.RunShortcut("quick")
	if err != nil || pid <= 0 {
		t.Fatalf("run shortcut: pid=%d err=%v", pid, err)
	}
	if code := eng.WaitFor(pid); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if _, err := eng.RunShortcut("absent"); err == nil {
		t.Fatal("unknown shortcut should fail")
	}
}

func TestEngineEnvOverride(t *testing.T) {
	eng := testEngine(t)
	eng.SetEnv("ANSWER", "42")
	out := filepath.Join(t.TempDir(), "out.txt")
	script := writeScript(t, `printf "%s" "$ANSWER" > "$1"`)
	if code := eng.ExecuteSync(script, out); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "42" {
		t.Fatalf("ANSWER = %q", data)
	}
}
