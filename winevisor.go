package winevisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/winevisor/winevisor/internal/config"
	"github.com/winevisor/winevisor/internal/launcher"
	"github.com/winevisor/winevisor/internal/metrics"
	"github.com/winevisor/winevisor/internal/monitor"
	"github.com/winevisor/winevisor/internal/prefix"
	"github.com/winevisor/winevisor/internal/process"
	iapi "github.com/winevisor/winevisor/internal/server"
	"github.com/winevisor/winevisor/internal/shortcut"
	"github.com/winevisor/winevisor/internal/store"
)

// Core types re-exported as aliases for external consumers.

type Config = cfg.Config

type Arch = cfg.Arch

type Record = process.Record

type State = process.State

type Hook = launcher.Hook

type PrefixInfo = prefix.Info

type HistoryEntry = store.Entry

const (
	StateIdle     = process.StateIdle
	StateStarting = process.StateStarting
	StateRunning  = process.StateRunning
	StatePaused   = process.StatePaused
	StateStopping = process.StateStopping
	StateStopped  = process.StateStopped
	StateError    = process.StateError
	StateKilled   = process.StateKilled
)

// ExitSpawnFailure is returned by ExecuteSync when no child was created.
const ExitSpawnFailure = process.ExitSpawnFailure

// FailedPID is returned by Execute when the launch failed.
const FailedPID = launcher.FailedPID

// DefaultConfig returns the launch configuration used before SetConfig.
func DefaultConfig() Config { return cfg.Default() }

// ParseArch normalizes a textual architecture, falling back to auto.
func ParseArch(s string) Arch { return cfg.ParseArch(s) }

// LoadConfig reads a TOML configuration file and validates it.
func LoadConfig(path string) (Config, error) { return cfg.Load(path) }

// Engine ties the launcher, the record table, and the monitor together
// into the public API for embedding.
type Engine struct {
	table     *process.Table
	launcher  *launcher.Launcher
	monitor   *monitor.Monitor
	prefixes  *prefix.Manager
	shortcuts *shortcut.Store
	history   store.Store
}

func New() *Engine {
	t := process.NewTable()
	m := monitor.New(t)
	l := launcher.New(cfg.Default(), t)
	l.SetTerminalFunc(m.Notify)
	e := &Engine{table: t, launcher: l, monitor: m}
	l.SetLaunchFunc(e.recordLaunch)
	return e
}

// --- configuration and environment ---

func (e *Engine) SetConfig(c Config) { e.launcher.SetConfig(c) }
func (e *Engine) Config() Config { return e.launcher.Config() }
func (e *Engine) SetEnv(key, value string) { e.launcher.SetEnv(key, value) }
func (e *Engine) UnsetEnv(key string) { e.launcher.UnsetEnv(key) }

// --- hooks ---

func (e *Engine) AddPreLaunchHook(h Hook) error { return e.launcher.AddPreLaunchHook(h) }
func (e *Engine) AddPostLaunchHook(h Hook) error { return e.launcher.AddPostLaunchHook(h) }
func (e *Engine) ClearHooks() { e.launcher.ClearHooks() }

// --- execution ---

// Execute spawns an executable and returns its pid, or FailedPID and an
// error when nothing was spawned.
func (e *Engine) Execute(exePath string, args ...string) (int, error) {
	return e.launcher.Execute(exePath, args...)
}

// ExecuteAsync is Execute reduced to a success flag.
func (e *Engine) ExecuteAsync(exePath string, args ...string) bool {
	return e.launcher.ExecuteAsync(exePath, args...)
}

// ExecuteSync spawns and blocks until exit, then runs the post-launch
// hooks. The result is the exit status, the negated signal number, or
// ExitSpawnFailure.
func (e *Engine) ExecuteSync(exePath string, args ...string) int {
	return e.launcher.ExecuteSync(exePath, args...)
}

// WaitFor blocks until the given pid's child exits and returns its code.
func (e *Engine) WaitFor(pid int) int { return e.launcher.WaitFor(pid) }

// --- monitoring ---

func (e *Engine) StartMonitoring() { e.monitor.Start() }
func (e *Engine) StopMonitoring() { e.monitor.Stop() }
func (e *Engine) SetMonitorInterval(d time.Duration) { e.monitor.SetInterval(d) }
func (e *Engine) RegisterObserver(fn func(Record)) { e.monitor.RegisterObserver(fn) }

func (e *Engine) Pause(pid int) error { return e.monitor.Pause(pid) }
func (e *Engine) Resume(pid int) error { return e.monitor.Resume(pid) }
func (e *Engine) Terminate(pid int) error { return e.monitor.Terminate(pid) }
func (e *Engine) Kill(pid int) error { return e.monitor.Kill(pid, syscall.SIGKILL) }
func (e *Engine) KillAll() error { return e.monitor.KillAll() }

// --- record table ---

func (e *Engine) GetProcessInfo(pid int) (Record, bool) { return e.table.Snapshot(pid) }
func (e *Engine) GetAllProcesses() []Record { return e.table.All() }
func (e *Engine) GetActiveProcesses() []Record { return e.table.Active() }

// Forget drops a record and releases the spawn handle tied to it.
func (e *Engine) Forget(pid int) bool {
	e.launcher.Release(pid)
	return e.table.Forget(pid)
}

// --- prefixes ---

// UsePrefixManager attaches a prefix manager rooted at dir.
func (e *Engine) UsePrefixManager(dir string) error {
	m, err := prefix.NewManager(dir)
	if err != nil {
		return err
	}
	e.prefixes = m
	return nil
}

func (e *Engine) Prefixes() *prefix.Manager { return e.prefixes }

// --- shortcuts ---

// UseShortcuts attaches a shortcut store backed by the given file.
func (e *Engine) UseShortcuts(path string) error {
	s, err := shortcut.Open(path)
	if err != nil {
		return err
	}
	e.shortcuts = s
	return nil
}

func (e *Engine) Shortcuts() *shortcut.Store { return e.shortcuts }

// RunShortcut resolves a shortcut name and launches its target.
func (e *Engine) RunShortcut(name string, args ...string) (int, error) {
	if e.shortcuts == nil {
		return FailedPID, errors.New("no shortcut store attached")
	}
	path, ok := e.shortcuts.Path(name)
	if !ok {
		return FailedPID, fmt.Errorf("shortcut %q not found", name)
	}
	return e.launcher.Execute(path, args...)
}

// --- history ---

// UseHistory attaches a persistence backend and records every terminal
// transition through a monitor observer.
func (e *Engine) UseHistory(ctx context.Context, st store.Store) error {
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}
	e.history = st
	e.monitor.RegisterObserver(func(rec Record) {
		key := store.Entry{PID: rec.PID, StartedAt: rec.StartTime}.Key()
		if err := st.RecordExit(context.Background(), key, rec.State.String(), rec.ExitCode, rec.EndTime); err != nil {
			slog.Warn("history exit write failed", "pid", rec.PID, "error", err)
		}
	})
	return nil
}

func (e *Engine) recordLaunch(rec Record) {
	if e.history == nil {
		return
	}
	entry := store.Entry{
		PID:       rec.PID,
		ExePath:   rec.ExePath,
		Args:      strings.Join(rec.Args, " "),
		Prefix:    rec.Prefix,
		State:     rec.State.String(),
		StartedAt: rec.StartTime,
	}
	if err := e.history.RecordLaunch(context.Background(), entry); err != nil {
		slog.Warn("history launch write failed", "pid", rec.PID, "error", err)
	}
}

// History returns up to limit recent launches, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if e.history == nil {
		return nil, nil
	}
	return e.history.History(ctx, limit)
}

// --- shutdown ---

// Shutdown stops monitoring, kills every tracked process, and closes the
// history backend.
func (e *Engine) Shutdown() {
	e.monitor.Stop()
	_ = e.monitor.KillAll()
	if e.history != nil {
		_ = e.history.Close()
	}
}

// NewHTTPServer starts an HTTP server exposing the engine's API.
func NewHTTPServer(addr, basePath string, e *Engine) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, iapi.Deps{
		Launcher: e.launcher,
		Monitor:  e.monitor,
		Table:    e.table,
		Prefixes: e.prefixes,
		History:  e.history,
	})
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error { return metrics.Register(prometheus.DefaultRegisterer) }
