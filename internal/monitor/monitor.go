package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/winevisor/winevisor/internal/metrics"
	"github.com/winevisor/winevisor/internal/process"
)

// DefaultInterval is the polling period between scan ticks.
const DefaultInterval = time.Second

// Observer receives a copy of a record on its terminal transition. It runs
// synchronously on the notifying goroutine; a slow observer delays the
// next scan tick for every tracked process.
type Observer func(process.Record)

// Monitor discovers the true OS-level state of every tracked process
// independently of the synchronous wait path. One background goroutine
// probes liveness and resource usage for all non-terminal records each
// tick and performs the terminal transition for processes that died
// without a waiter observing them first.
type Monitor struct {
	table    *process.Table
	interval time.Duration

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
	observers []Observer
}

func New(table *process.Table) *Monitor {
	return &Monitor{table: table, interval: DefaultInterval}
}

// SetInterval adjusts the polling period; non-positive values reset to the
// default. Takes effect on the next Start.
func (m *Monitor) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	m.mu.Lock()
	m.interval = d
	m.mu.Unlock()
}

// RegisterObserver adds a terminal-transition callback.
func (m *Monitor) RegisterObserver(fn Observer) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// ClearObservers drops all registered callbacks.
func (m *Monitor) ClearObservers() {
	m.mu.Lock()
	m.observers = nil
	m.mu.Unlock()
}

// Start launches the scan loop. Starting an already-started monitor logs
// a warning and is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		slog.Warn("process monitoring already active")
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stop := m.stopCh
	interval := m.interval
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(stop, interval)
	slog.Info("started process monitoring", "interval", interval)
}

// Stop halts the loop and joins it: when Stop returns, no further table
// mutation from the monitor can occur. Stopping a stopped monitor is a
// no-op. Safe to call from any goroutine except the loop itself.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	slog.Info("stopped process monitoring")
}

func (m *Monitor) loop(stop <-chan struct{}, interval time.Duration) {
	defer m.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			m.ScanOnce()
		}
	}
}

// ScanOnce probes every non-terminal record exactly once. Exported so the
// engine can force a scan ahead of the next tick.
func (m *Monitor) ScanOnce() {
	for _, rec := range m.table.Active() {
		m.scanRecord(rec)
	}
}

func (m *Monitor) scanRecord(rec process.Record) {
	pr := probe(rec.PID, rec.StartUnix)
	if !pr.alive {
		final, won := m.table.MarkTerminal(rec.PID, process.StateStopped, rec.ExitCode, time.Now())
		if won {
			slog.Info("process has terminated", "pid", rec.PID)
			m.Notify(final)
		}
		return
	}

	// The liveness probe alone is authoritative; unreadable status or
	// resources this tick are soft failures retried on the next one.
	switch {
	case pr.stopped:
		if m.table.SetState(rec.PID, process.StatePaused) {
			slog.Debug("process paused", "pid", rec.PID)
		}
	case rec.State == process.StatePaused:
		if m.table.SetState(rec.PID, process.StateRunning) {
			slog.Debug("process resumed", "pid", rec.PID)
		}
	}

	if pr.usageOK {
		m.table.UpdateUsage(rec.PID, pr.rss, pr.cpuPercent)
		metrics.SetProcessUsage(rec.PID, pr.rss, pr.cpuPercent)
	}
}

// Notify fans a terminal record out to every registered observer. The
// launcher's wait path calls this too when it wins the terminal CAS, so a
// single death notifies each observer exactly once regardless of which
// path saw it first.
func (m *Monitor) Notify(rec process.Record) {
	m.mu.Lock()
	obs := append([]Observer(nil), m.observers...)
	m.mu.Unlock()
	metrics.ObserveExit(rec.State.String())
	metrics.DeleteProcessUsage(rec.PID)
	metrics.SetTracked(len(m.table.Active()))
	for _, fn := range obs {
		fn(rec)
	}
}

// Pause sends SIGSTOP. The record reflects it on the next scan tick;
// control operations never mutate state themselves.
func (m *Monitor) Pause(pid int) error { return m.signal(pid, syscall.SIGSTOP, "pause") }

// Resume sends SIGCONT.
func (m *Monitor) Resume(pid int) error { return m.signal(pid, syscall.SIGCONT, "resume") }

// Terminate sends SIGTERM.
func (m *Monitor) Terminate(pid int) error { return m.signal(pid, syscall.SIGTERM, "terminate") }

// Kill sends an arbitrary signal, SIGKILL by default semantics of callers.
func (m *Monitor) Kill(pid int, sig syscall.Signal) error {
	return m.signal(pid, sig, "kill")
}

// KillAll sends SIGKILL to every non-terminal tracked process and returns
// the first delivery error, if any.
func (m *Monitor) KillAll() error {
	var firstErr error
	for _, rec := range m.table.Active() {
		if err := m.signal(rec.PID, syscall.SIGKILL, "kill_all"); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// signal delivers sig to a tracked pid. Signalling an unknown or
// already-terminal identifier is logged and reported but never fatal: the
// caller may have raced natural termination.
func (m *Monitor) signal(pid int, sig syscall.Signal, op string) error {
	rec, ok := m.table.Snapshot(pid)
	if !ok {
		slog.Warn("control operation on unknown pid", "op", op, "pid", pid)
		return fmt.Errorf("%s: pid %d is not tracked", op, pid)
	}
	if rec.State.Terminal() {
		slog.Warn("control operation on terminated pid", "op", op, "pid", pid, "state", rec.State)
		return fmt.Errorf("%s: pid %d already %s", op, pid, rec.State)
	}
	if err := syscall.Kill(pid, sig); err != nil {
		slog.Error("signal delivery failed", "op", op, "pid", pid, "signal", sig, "error", err)
		return fmt.Errorf("%s pid %d: %w", op, pid, err)
	}
	slog.Info("sent signal", "op", op, "pid", pid, "signal", sig)
	metrics.IncSignal(op)
	return nil
}
