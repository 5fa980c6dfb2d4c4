package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const defaultHookTimeout = 30 * time.Second

// Hook is a shell command run around a launch: pre-launch hooks run
// sequentially before the spawn and abort it on failure, post-launch hooks
// run after a synchronous wait completes and only log failures.
type Hook struct {
	Name    string        `json:"name" mapstructure:"name"`
	Command string        `json:"command" mapstructure:"command"`
	WorkDir string        `json:"work_dir" mapstructure:"work_dir"`
	Env     []string      `json:"env" mapstructure:"env"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// Validate checks the hook is runnable.
func (h *Hook) Validate() error {
	if strings.TrimSpace(h.Command) == "" {
		return fmt.Errorf("hook %q requires command", h.Name)
	}
	if h.Timeout < 0 {
		return fmt.Errorf("hook %q: timeout cannot be negative", h.Name)
	}
	for i, e := range h.Env {
		if !strings.Contains(e, "=") {
			return fmt.Errorf("hook %q: env[%d] %q must be KEY=VALUE", h.Name, i, e)
		}
	}
	return nil
}

// run executes the hook through the shell with the launch environment.
func (h Hook) run(baseEnv []string) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultHookTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// #nosec G204 -- hook commands are caller-registered shell snippets
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", h.Command)
	if h.WorkDir != "" {
		cmd.Dir = h.WorkDir
	}
	cmd.Env = append(append([]string(nil), baseEnv...), h.Env...)
	// Kill the whole process group on timeout; a grandchild holding the
	// output pipe would otherwise keep CombinedOutput blocked. WaitDelay
	// closes the pipes if anything survives the signal.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("hook %q: %w (output: %s)", h.Name, err, strings.TrimSpace(string(out)))
	}
	if len(out) > 0 {
		slog.Debug("hook output", "hook", h.Name, "output", strings.TrimSpace(string(out)))
	}
	return nil
}
