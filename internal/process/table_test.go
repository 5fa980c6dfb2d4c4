package process

import (
	"sync"
	"testing"
	"time"
)

func TestRegisterRejectsLiveDuplicate(t *testing.T) {
	tb := NewTable()
	if err := tb.Register(Record{PID: 100, State: StateRunning}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := tb.Register(Record{PID: 100, State: StateStarting}); err == nil {
		t.Fatal("expected duplicate pid rejection")
	}
}

func TestRegisterEvictsStaleTerminal(t *testing.T) {
	tb := NewTable()
	_ = tb.Register(Record{PID: 100, State: StateRunning})
	tb.MarkTerminal(100, StateStopped, 0, time.Now())
	if err := tb.Register(Record{PID: 100, State: StateStarting}); err != nil {
		t.Fatalf("recycled pid should evict terminal record: %v", err)
	}
	rec, ok := tb.Snapshot(100)
	if !ok || rec.State != StateStarting {
		t.Fatalf("want fresh starting record, got %+v ok=%v", rec, ok)
	}
}

func TestSnapshotUnknownPID(t *testing.T) {
	tb := NewTable()
	rec, ok := tb.Snapshot(424242)
	if ok {
		t.Fatal("unknown pid must report ok=false")
	}
	if rec.PID != 0 || rec.State != "" || rec.ExitCode != 0 {
		t.Fatalf("unknown pid must yield zero record, got %+v", rec)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tb := NewTable()
	_ = tb.Register(Record{PID: 7, State: StateRunning, Args: []string{"a"}})
	rec, _ := tb.Snapshot(7)
	rec.Args[0] = "mutated"
	rec.State = StateKilled
	fresh, _ := tb.Snapshot(7)
	if fresh.Args[0] != "a" || fresh.State != StateRunning {
		t.Fatalf("snapshot aliased table-owned data: %+v", fresh)
	}
}

func TestMarkTerminalWinsExactlyOnce(t *testing.T) {
	tb := NewTable()
	_ = tb.Register(Record{PID: 9, State: StateRunning})

	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(code int) {
			defer wg.Done()
			if _, won := tb.MarkTerminal(9, StateStopped, code, time.Now()); won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("terminal CAS must have exactly one winner, got %d", wins)
	}
}

func TestTerminalRecordIsImmutable(t *testing.T) {
	tb := NewTable()
	_ = tb.Register(Record{PID: 3, State: StateRunning})
	final, won := tb.MarkTerminal(3, StateKilled, -9, time.Now())
	if !won || final.ExitCode != -9 {
		t.Fatalf("first terminal mark failed: %+v won=%v", final, won)
	}
	if tb.SetState(3, StateRunning) {
		t.Fatal("terminal record accepted a state change")
	}
	if tb.UpdateUsage(3, 123, 4.5) {
		t.Fatal("terminal record accepted a usage update")
	}
	if _, won := tb.MarkTerminal(3, StateStopped, 0, time.Now()); won {
		t.Fatal("second terminal mark must lose")
	}
	rec, _ := tb.Snapshot(3)
	if rec.State != StateKilled || rec.ExitCode != -9 {
		t.Fatalf("terminal record mutated: %+v", rec)
	}
}

func TestSetStateLegality(t *testing.T) {
	tb := NewTable()
	_ = tb.Register(Record{PID: 5, State: StateStarting})
	if !tb.SetState(5, StateRunning) {
		t.Fatal("starting -> running should be legal")
	}
	if !tb.SetState(5, StatePaused) {
		t.Fatal("running -> paused should be legal")
	}
	if tb.SetState(5, StateStarting) {
		t.Fatal("paused -> starting should be illegal")
	}
	if tb.SetState(5, StateStopped) {
		t.Fatal("terminal transitions must go through MarkTerminal")
	}
	if !tb.SetState(5, StatePaused) {
		t.Fatal("self transition on non-terminal state should be accepted")
	}
}

func TestForgetIsExplicit(t *testing.T) {
	tb := NewTable()
	_ = tb.Register(Record{PID: 11, State: StateRunning})
	tb.MarkTerminal(11, StateStopped, 0, time.Now())
	if tb.Len() != 1 {
		t.Fatalf("table must not self-prune, len=%d", tb.Len())
	}
	if !tb.Forget(11) {
		t.Fatal("forget known pid")
	}
	if tb.Forget(11) {
		t.Fatal("forget unknown pid must report false")
	}
	if tb.Len() != 0 {
		t.Fatalf("len after forget = %d", tb.Len())
	}
}

func TestActiveExcludesTerminal(t *testing.T) {
	tb := NewTable()
	_ = tb.Register(Record{PID: 1, State: StateRunning})
	_ = tb.Register(Record{PID: 2, State: StateRunning})
	tb.MarkTerminal(2, StateStopped, 0, time.Now())
	active := tb.Active()
	if len(active) != 1 || active[0].PID != 1 {
		t.Fatalf("active = %+v", active)
	}
	if len(tb.All()) != 2 {
		t.Fatalf("all = %+v", tb.All())
	}
}
