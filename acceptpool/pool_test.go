package acceptpool

import "testing"

func TestPool_AssignRoundRobins(t *testing.T) {
	p := New(3)
	var got []int
	for i := 0; i < 7; i++ {
		got = append(got, p.Assign().ID())
	}
	want := []int{0, 1, 2, 0, 1, 2, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("assign[%d] = %d, want %d (sequence %v)", i, got[i], want[i], got)
		}
	}
}

func TestPool_AssignTracksLenPerLoop(t *testing.T) {
	p := New(2)
	l0a := p.Assign() // loop 0
	_ = p.Assign()    // loop 1
	l0b := p.Assign() // loop 0 again
	if l0a.ID() != l0b.ID() {
		t.Fatalf("expected round-robin back to loop 0, got %d and %d", l0a.ID(), l0b.ID())
	}
	if got := p.Loops()[0].Len(); got != 2 {
		t.Fatalf("loop 0 len = %d, want 2", got)
	}
	p.Release(l0a)
	if got := p.Loops()[0].Len(); got != 1 {
		t.Fatalf("loop 0 len after release = %d, want 1", got)
	}
}

func TestNew_NonPositiveDefaultsToOne(t *testing.T) {
	if got := New(0).Len(); got != 1 {
		t.Fatalf("New(0).Len() = %d, want 1", got)
	}
	if got := New(-5).Len(); got != 1 {
		t.Fatalf("New(-5).Len() = %d, want 1", got)
	}
}
