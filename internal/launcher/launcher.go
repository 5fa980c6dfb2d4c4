package launcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/winevisor/winevisor/internal/config"
	"github.com/winevisor/winevisor/internal/env"
	"github.com/winevisor/winevisor/internal/metrics"
	"github.com/winevisor/winevisor/internal/process"
)

// FailedPID is the sentinel returned by Execute when no child was spawned.
const FailedPID = -1

// Launcher turns (executable path, arguments, configuration) into a running
// child process. Every spawn registers a Record in the shared table and
// attaches exactly one reaper goroutine; the synchronous path waits on the
// reaper instead of calling Wait itself, so a child is never waited twice
// and never left a zombie.
type Launcher struct {
	mu      sync.Mutex
	cfg     config.Config
	table   *process.Table
	envb    *env.Builder
	pre     []Hook
	post    []Hook
	handles map[int]*handle

	// onLaunch is invoked after every successful spawn with the freshly
	// registered record; onTerminal is invoked by the reaper when the wait
	// path wins the terminal transition, wired to the monitor's notifier.
	onLaunch   func(process.Record)
	onTerminal func(process.Record)
}

// handle tracks the per-spawn resources owned by the reaper.
type handle struct {
	cmd      *exec.Cmd
	done     chan struct{} // closed by the reaper after the terminal CAS
	exitCode int           // valid once done is closed
	closers  []io.Closer
}

func New(cfg config.Config, table *process.Table) *Launcher {
	cfg.Validate()
	l := &Launcher{
		table:   table,
		envb:    env.New(),
		handles: make(map[int]*handle),
	}
	l.SetConfig(cfg)
	return l
}

// SetConfig replaces the launch configuration. Derived environment
// variables are rebuilt and the configuration's explicit overrides replace
// the previous configuration's, registered at this point so custom
// variables registered afterwards take precedence over them.
func (l *Launcher) SetConfig(cfg config.Config) {
	cfg.Validate()
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	env.ApplyConfig(l.envb, cfg)
	l.envb.SetConfigAll(cfg.Env)
}

// Config returns a copy of the current configuration.
func (l *Launcher) Config() config.Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// SetEnv registers a custom environment variable for subsequent launches.
func (l *Launcher) SetEnv(key, value string) {
	l.envb.Set(key, value)
	slog.Debug("registered environment variable", "key", key)
}

// UnsetEnv removes every registration of a custom variable.
func (l *Launcher) UnsetEnv(key string) { l.envb.Unset(key) }

// AddPreLaunchHook appends a hook run before every spawn, in registration
// order. A failing pre-launch hook aborts the launch.
func (l *Launcher) AddPreLaunchHook(h Hook) error {
	if err := h.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.pre = append(l.pre, h)
	l.mu.Unlock()
	return nil
}

// AddPostLaunchHook appends a hook run after a synchronous wait completes.
// Post-launch failures are logged, never propagated.
func (l *Launcher) AddPostLaunchHook(h Hook) error {
	if err := h.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.post = append(l.post, h)
	l.mu.Unlock()
	return nil
}

// ClearHooks drops all registered hooks.
func (l *Launcher) ClearHooks() {
	l.mu.Lock()
	l.pre = nil
	l.post = nil
	l.mu.Unlock()
}

// SetTerminalFunc wires the callback the reaper fires when the wait path
// performs the terminal transition.
func (l *Launcher) SetTerminalFunc(fn func(process.Record)) {
	l.mu.Lock()
	l.onTerminal = fn
	l.mu.Unlock()
}

// SetLaunchFunc registers a callback fired after each successful spawn.
func (l *Launcher) SetLaunchFunc(fn func(process.Record)) {
	l.mu.Lock()
	l.onLaunch = fn
	l.mu.Unlock()
}

// Execute spawns exePath under the configured compatibility layer and
// returns the child's pid. On any launch-time failure it returns
// (FailedPID, err); it never panics across this boundary.
func (l *Launcher) Execute(exePath string, args ...string) (int, error) {
	l.mu.Lock()
	cfg := l.cfg
	pre := append([]Hook(nil), l.pre...)
	l.mu.Unlock()

	resolved, err := ResolvePath(exePath)
	if err != nil {
		slog.Error("executable not found", "path", exePath, "error", err)
		return FailedPID, err
	}
	if ext := strings.ToLower(filepath.Ext(resolved)); cfg.WineBinary != "" &&
		ext != ".exe" && ext != ".msi" && ext != ".bat" {
		slog.Warn("unexpected file extension", "path", resolved, "ext", ext)
	}

	for _, h := range pre {
		slog.Debug("running pre-launch hook", "hook", h.Name)
		if err := h.run(l.envb.Merge(nil)); err != nil {
			slog.Error("pre-launch hook failed, aborting launch", "hook", h.Name, "error", err)
			return FailedPID, err
		}
	}

	cmd := buildCommand(cfg, resolved, args)
	cmd.Env = l.envb.Merge(nil)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	h := &handle{done: make(chan struct{})}
	if err := l.wireOutput(cmd, h, cfg, filepath.Base(resolved)); err != nil {
		h.closeAll()
		slog.Error("pipe setup failed", "error", err)
		return FailedPID, err
	}

	slog.Info("executing", "path", resolved, "args", args, "prefix", cfg.Prefix)
	if err := cmd.Start(); err != nil {
		// Covers fork failure and exec failure alike: os/exec reports a
		// child-side exec error back through its status pipe, so a broken
		// compatibility layer can never masquerade as a target exit code.
		h.closeAll()
		slog.Error("spawn failed", "path", resolved, "error", err)
		metrics.ObserveLaunch(false)
		return FailedPID, err
	}
	pid := cmd.Process.Pid
	h.cmd = cmd

	if cfg.NiceLevel != 0 {
		if err := syscall.Setpriority(syscall.PRIO_PROCESS, pid, cfg.NiceLevel); err != nil {
			slog.Warn("setpriority failed", "pid", pid, "nice", cfg.NiceLevel, "error", err)
		}
	}

	rec := process.Record{
		PID:       pid,
		State:     process.StateStarting,
		ExePath:   resolved,
		Args:      args,
		Env:       cmd.Env,
		StartTime: time.Now(),
		Prefix:    cfg.Prefix,
		Arch:      cfg.Arch,
		StartUnix: process.StartTimeUnix(pid),
	}
	if err := l.table.Register(rec); err != nil {
		// Should not happen for a pid the OS just handed us; keep the
		// child supervised anyway.
		slog.Warn("record registration failed", "pid", pid, "error", err)
	}
	l.table.SetState(pid, process.StateRunning)

	l.mu.Lock()
	l.handles[pid] = h
	launched := l.onLaunch
	l.mu.Unlock()

	go l.reap(pid, h)

	if launched != nil {
		if snap, ok := l.table.Snapshot(pid); ok {
			launched(snap)
		}
	}
	slog.Info("started process", "pid", pid)
	metrics.ObserveLaunch(true)
	metrics.SetTracked(len(l.table.Active()))
	return pid, nil
}

// ExecuteAsync is Execute with the pid reduced to a success flag.
func (l *Launcher) ExecuteAsync(exePath string, args ...string) bool {
	pid, err := l.Execute(exePath, args...)
	return err == nil && pid > 0
}

// ExecuteSync spawns and blocks until the child exits, then runs the
// post-launch hooks. The result is the exit status for a normal exit, the
// negated signal number for a signal death, or ExitSpawnFailure when
// nothing was spawned.
func (l *Launcher) ExecuteSync(exePath string, args ...string) int {
	pid, err := l.Execute(exePath, args...)
	if err != nil || pid <= 0 {
		return process.ExitSpawnFailure
	}
	code := l.WaitFor(pid)

	l.mu.Lock()
	post := append([]Hook(nil), l.post...)
	l.mu.Unlock()
	for _, h := range post {
		if err := h.run(l.envb.Merge(nil)); err != nil {
			slog.Warn("post-launch hook failed", "hook", h.Name, "error", err)
		}
	}
	slog.Info("process exited", "pid", pid, "exit_code", code)
	return code
}

// WaitFor blocks until the reaper for pid finishes and returns the
// translated exit code. Unknown pids yield ExitSpawnFailure.
func (l *Launcher) WaitFor(pid int) int {
	l.mu.Lock()
	h := l.handles[pid]
	l.mu.Unlock()
	if h == nil {
		return process.ExitSpawnFailure
	}
	<-h.done
	return h.exitCode
}

// Release drops the spawn handle for a forgotten pid.
func (l *Launcher) Release(pid int) {
	l.mu.Lock()
	delete(l.handles, pid)
	l.mu.Unlock()
}

// reap is the single waiter for one child. It translates the wait status,
// races the monitor for the terminal transition through the table's
// check-and-set, and fires the terminal callback only if it won.
func (l *Launcher) reap(pid int, h *handle) {
	err := h.cmd.Wait()
	h.exitCode = translateExit(err)
	h.closeAll()

	rec, won := l.table.MarkTerminal(pid, stateForExit(h.exitCode), h.exitCode, time.Now())
	close(h.done)
	if won {
		l.mu.Lock()
		notify := l.onTerminal
		l.mu.Unlock()
		if notify != nil {
			notify(rec)
		}
	}
}

// wireOutput connects the child's stdout/stderr. With capture enabled a
// pipe pair is allocated per stream, the read end set non-blocking, and a
// drain goroutine copies it into the rotating capture writer so the pipe
// can never back-pressure the child.
func (l *Launcher) wireOutput(cmd *exec.Cmd, h *handle, cfg config.Config, name string) error {
	outW, errW, _ := cfg.Log.Writers(name)
	if cfg.Log.Dir != "" {
		_ = os.MkdirAll(cfg.Log.Dir, 0o750)
	}

	stdout, err := wireStream(cfg.CaptureStdout, outW, h)
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stdout = stdout

	stderr, err := wireStream(cfg.CaptureStderr, errW, h)
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stderr = stderr
	return nil
}

// wireStream returns the writer to hand to exec.Cmd for one stream.
func wireStream(capture bool, sink io.WriteCloser, h *handle) (io.Writer, error) {
	if !capture {
		if sink != nil {
			_ = sink.Close()
		}
		null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, null)
		return null, nil
	}
	r, w, err := os.Pipe()
	if err != nil {
		if sink != nil {
			_ = sink.Close()
		}
		return nil, err
	}
	_ = syscall.SetNonblock(int(r.Fd()), true)
	h.closers = append(h.closers, w)
	dst := io.Writer(io.Discard)
	if sink != nil {
		dst = sink
	}
	go func() {
		_, _ = io.Copy(dst, r)
		_ = r.Close()
		if sink != nil {
			_ = sink.Close()
		}
	}()
	return w, nil
}

func (h *handle) closeAll() {
	for _, c := range h.closers {
		_ = c.Close()
	}
	h.closers = nil
}

// buildCommand assembles <wine-binary> <exe> <args...>. An empty binary
// runs the target directly, which is how native helpers are launched.
func buildCommand(cfg config.Config, exe string, args []string) *exec.Cmd {
	if cfg.WineBinary == "" {
		// #nosec G204 -- intentional execution of a caller-provided target
		return exec.Command(exe, args...)
	}
	// #nosec G204
	return exec.Command(cfg.WineBinary, append([]string{exe}, args...)...)
}

// ResolvePath expands ~ and relative paths and requires the target to be
// an existing regular file.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty executable path")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", fmt.Errorf("%s is a directory", abs)
	}
	return abs, nil
}

// translateExit maps the error from Wait to the engine's exit encoding.
func translateExit(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return -int(ws.Signal())
			}
			return ws.ExitStatus()
		}
		return ee.ExitCode()
	}
	return process.ExitSpawnFailure
}

// stateForExit picks the terminal state for a wait-path transition.
func stateForExit(code int) process.State {
	switch {
	case code == process.ExitSpawnFailure:
		return process.StateError
	case code < 0:
		return process.StateKilled
	default:
		return process.StateStopped
	}
}
