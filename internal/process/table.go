package process

import (
	"fmt"
	"sync"
	"time"
)

// Table is the shared record store between the launcher and the monitor.
// One exclusive lock guards every read-modify-write so the terminal
// check-and-set stays atomic; callers only ever receive copies.
type Table struct {
	mu      sync.Mutex
	records map[int]*Record
}

func NewTable() *Table {
	return &Table{records: make(map[int]*Record)}
}

// Register inserts a freshly launched record. A stale terminal record with
// the same pid (the OS recycled it before the caller called Forget) is
// evicted; a live record with the same pid is a bug in the caller and is
// rejected so the uniqueness invariant holds.
func (t *Table) Register(rec Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.records[rec.PID]; ok && !old.State.Terminal() {
		return fmt.Errorf("pid %d already tracked in state %s", rec.PID, old.State)
	}
	r := rec.Clone()
	t.records[rec.PID] = &r
	return nil
}

// Snapshot returns a copy of the record for pid. The zero Record and false
// are returned for an unknown pid; an unknown identifier is not an error.
func (t *Table) Snapshot(pid int) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[pid]
	if !ok {
		return Record{}, false
	}
	return r.Clone(), true
}

// All returns copies of every record, in no particular order.
func (t *Table) All() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, r.Clone())
	}
	return out
}

// Active returns copies of the records that have not reached a terminal
// state; the monitor scans these each tick.
func (t *Table) Active() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		if !r.State.Terminal() {
			out = append(out, r.Clone())
		}
	}
	return out
}

// SetState applies a non-terminal transition (Starting→Running,
// Running⇄Paused, →Stopping). Illegal transitions, terminal targets and
// already-terminal records are ignored; terminal transitions must go
// through MarkTerminal.
func (t *Table) SetState(pid int, to State) bool {
	if to.Terminal() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[pid]
	if !ok || r.State.Terminal() || !CanTransition(r.State, to) {
		return false
	}
	r.State = to
	return true
}

// UpdateUsage stores the latest resource probe. Terminal records are left
// untouched: a probe racing a terminal transition must not resurrect data
// from a recycled pid.
func (t *Table) UpdateUsage(pid int, rss uint64, cpu float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[pid]
	if !ok || r.State.Terminal() {
		return false
	}
	r.MemoryRSS = rss
	r.CPUPercent = cpu
	return true
}

// MarkTerminal performs the reconciliation check-and-set: exactly one of
// the racing observers (synchronous wait, monitor scan) wins, stamps
// EndTime/ExitCode and gets back (finalRecord, true). Every later call for
// the same pid returns false and changes nothing.
func (t *Table) MarkTerminal(pid int, to State, exitCode int, at time.Time) (Record, bool) {
	if !to.Terminal() {
		return Record{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[pid]
	if !ok || r.State.Terminal() {
		return Record{}, false
	}
	r.State = to
	r.EndTime = at
	r.ExitCode = exitCode
	return r.Clone(), true
}

// Forget removes a record. The table never self-prunes terminated
// entries; history eviction is an explicit caller decision.
func (t *Table) Forget(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[pid]; !ok {
		return false
	}
	delete(t.records, pid)
	return true
}

// Len reports the number of tracked records, terminal ones included.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
