//go:build !windows

package monitor

import (
	"errors"
	"log/slog"
	"syscall"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/winevisor/winevisor/internal/process"
)

type probeResult struct {
	alive      bool
	stopped    bool
	usageOK    bool
	rss        uint64
	cpuPercent float64
}

// probe answers whether pid is still the process we launched and, when it
// is, samples its scheduler state and resource usage. A pid whose kernel
// start time no longer matches startUnix has been recycled by an
// unrelated process and counts as dead.
func probe(pid int, startUnix int64) probeResult {
	var r probeResult

	err := syscall.Kill(pid, 0)
	switch {
	case err == nil:
	case errors.Is(err, syscall.EPERM):
		// Exists but is not signalable from here. Still alive.
	default:
		return r
	}

	if startUnix > 0 {
		if got := process.StartTimeUnix(pid); got > 0 && got != startUnix {
			return r
		}
	}

	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		// Raced an exit between kill(0) and the handle open.
		return r
	}

	statuses, err := p.Status()
	if err != nil {
		// Status unreadable this tick; keep the record as-is.
		slog.Debug("process status probe failed", "pid", pid, "error", err)
		r.alive = true
		return r
	}
	for _, s := range statuses {
		switch s {
		case gopsproc.Zombie:
			// Exited, not yet reaped. Terminal from our point of view.
			return r
		case gopsproc.Stop:
			r.stopped = true
		}
	}
	r.alive = true

	mem, memErr := p.MemoryInfo()
	cpu, cpuErr := p.CPUPercent()
	if memErr != nil || cpuErr != nil {
		slog.Debug("resource probe failed", "pid", pid, "mem_error", memErr, "cpu_error", cpuErr)
		return r
	}
	r.usageOK = true
	r.rss = mem.RSS
	r.cpuPercent = cpu
	return r
}
