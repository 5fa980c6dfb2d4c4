package process

import (
	"time"

	"github.com/winevisor/winevisor/internal/config"
)

// ExitSpawnFailure is the exit-code sentinel for a launch that never ran:
// fork/exec failure or a failed pre-launch hook. It is distinct from every
// signal-derived exit value (those are -1..-64).
const ExitSpawnFailure = -255

// Record is the engine's view of one launched process. PID is unique in
// the table at any instant but may be reused by the OS once the child is
// reaped; StartUnix captures the OS-reported start time at registration so
// later probes can refuse a recycled pid.
type Record struct {
	PID   int   `json:"pid"`
	State State `json:"state"`

	ExePath string   `json:"executable_path"`
	Args    []string `json:"arguments"`
	Env     []string `json:"environment,omitempty"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitzero"`
	// ExitCode is meaningful only once EndTime is set: a non-negative
	// exit status, the negated signal number, or ExitSpawnFailure.
	ExitCode int `json:"exit_code"`

	MemoryRSS  uint64  `json:"memory_rss"`
	CPUPercent float64 `json:"cpu_percent"`

	Prefix string      `json:"prefix"`
	Arch   config.Arch `json:"architecture"`

	StartUnix int64 `json:"-"`
}

// Clone copies the record; slices are copied so callers can never alias
// the table-owned record.
func (r Record) Clone() Record {
	out := r
	out.Args = append([]string(nil), r.Args...)
	out.Env = append([]string(nil), r.Env...)
	return out
}
