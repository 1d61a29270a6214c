// Package acceptpool implements the chat node's worker-loop pool (spec
// component C1): a fixed set of named loops, and an accept loop that hands
// each newly accepted connection to one loop by round robin.
//
// spec.md §4.1/§5 describes C1 against an explicit epoll-per-thread
// scheduling model, where "all reads and writes for a given session happen
// on its assigned loop" because that loop is a real OS thread running its
// own event loop. This module's session package already gives each session
// its own pair of goroutines (session.Serve's recvLoop/writeLoop), and Go's
// scheduler — not this package — is what actually interleaves session I/O
// across cores. Loop therefore carries no file descriptors of its own; it
// is purely the round-robin accounting bucket spec.md's "hands each new
// accepted connection to one loop by round-robin" describes, and it counts
// the connections currently assigned to it (Loop.Len). Grounded on the teacher's cluster/node.go listenAndServe
// (net.Listen, Accept loop, "go n.handler.handle(conn)" per accept).
package acceptpool

import "sync/atomic"

// Loop is one of the pool's fixed round-robin buckets.
type Loop struct {
	id    int
	count int64
}

// ID returns the loop's index within its Pool.
func (l *Loop) ID() int { return l.id }

// Len reports how many connections are currently assigned to this loop.
func (l *Loop) Len() int64 { return atomic.LoadInt64(&l.count) }

// Pool is C1: a fixed set of Loops plus the round-robin cursor used to
// assign each newly accepted connection to one of them.
type Pool struct {
	loops []*Loop
	next  uint64
}

// New constructs a Pool of n loops. n <= 0 is treated as 1.
func New(n int) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{loops: make([]*Loop, n)}
	for i := range p.loops {
		p.loops[i] = &Loop{id: i}
	}
	return p
}

// Assign picks the next loop by round robin and records one more connection
// against it. The caller must call Release(loop) once that connection ends.
func (p *Pool) Assign() *Loop {
	i := atomic.AddUint64(&p.next, 1) - 1
	l := p.loops[i%uint64(len(p.loops))]
	atomic.AddInt64(&l.count, 1)
	return l
}

// Release records that a connection previously returned by Assign has
// ended.
func (p *Pool) Release(l *Loop) { atomic.AddInt64(&l.count, -1) }

// Len reports the number of worker loops in the pool.
func (p *Pool) Len() int { return len(p.loops) }

// Loops returns the pool's loops in order, for diagnostics/metrics.
func (p *Pool) Loops() []*Loop { return p.loops }
