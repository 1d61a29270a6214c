package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRepeat_RunsUntilStopped(t *testing.T) {
	var count int32
	job := Repeat(func() {
		atomic.AddInt32(&count, 1)
	}, 5*time.Millisecond)

	time.Sleep(55 * time.Millisecond)
	job.Stop()
	got := atomic.LoadInt32(&count)
	if got < 3 {
		t.Fatalf("expected at least 3 ticks in 55ms at 5ms interval, got %d", got)
	}

	time.Sleep(30 * time.Millisecond)
	after := atomic.LoadInt32(&count)
	if after != got {
		t.Fatalf("task kept running after Stop: before=%d after=%d", got, after)
	}
}

func TestJob_StopIsIdempotent(t *testing.T) {
	job := Repeat(func() {}, time.Hour)
	job.Stop()
	job.Stop()
}
