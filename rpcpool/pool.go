// Package rpcpool implements the chat node's cross-node RPC connection
// pool (spec component C7): a fixed-size FIFO of pre-built gRPC client
// stubs per peer node, guarded by a mutex and condition variable, with a
// sticky stop flag so in-flight acquisitions unblock cleanly on shutdown.
//
// Grounded directly on the original's ChatConPool (std::queue<stub>,
// std::mutex + std::condition_variable, getConnection/returnConnection,
// constructed with pool size 5 from PeerServer config — see
// ChatGrpcClient.cpp) and on the teacher's rpcClient.getConnPool /
// pool.Get() usage pattern (cluster/node.go, cluster/handler.go).
package rpcpool

import (
	"context"
	"sync"
	"time"

	"github.com/pingcap/errors"
	"google.golang.org/grpc"

	"github.com/aclisp/chatnode/internal/log"
	"github.com/aclisp/chatnode/rpcproto"
)

// ErrPoolStopped is returned by Acquire once Stop has been called.
var ErrPoolStopped = errors.New("rpcpool: pool stopped")

// Pool is a bounded FIFO of pre-dialed ChatClient stubs to one peer node.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	idle    []rpcproto.ChatClient
	conns   []*grpc.ClientConn // one per successfully dialed slot, tracked for redial/Stop
	addr    string
	size    int
	stopped bool
}

// New dials size connections to addr eagerly at construction, matching the
// original's ChatConPool(5, host, port) eager-pool-fill behavior. Each
// slot's dial blocks for up to 5 seconds, so an unreachable peer delays New
// by up to size*5s. Dial errors for individual slots are logged and retried
// later by Redial; New does not return an error for them.
func New(addr string, size int, dialOpts ...grpc.DialOption) *Pool {
	if size <= 0 {
		size = 5
	}
	p := &Pool{addr: addr, size: size}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < size; i++ {
		cc, err := dial(addr, dialOpts...)
		if err != nil {
			log.Printf("rpcpool: initial dial to %s failed: %v", addr, err)
			continue
		}
		p.conns = append(p.conns, cc)
		p.idle = append(p.idle, rpcproto.NewChatClient(cc))
	}
	return p
}

func dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dialOpts := append([]grpc.DialOption{grpc.WithBlock(), grpc.WithInsecure()}, opts...) //nolint:staticcheck
	return grpc.DialContext(ctx, addr, dialOpts...)
}

// Acquire blocks until a stub is available or the pool is stopped.
func (p *Pool) Acquire() (rpcproto.ChatClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.idle) == 0 && !p.stopped {
		p.cond.Wait()
	}
	if p.stopped {
		return nil, ErrPoolStopped
	}
	c := p.idle[0]
	p.idle = p.idle[1:]
	return c, nil
}

// Release returns a stub to the pool and wakes one waiter. If the pool has
// been stopped the stub is dropped, matching spec.md §4.7's "if the pool is
// stopped, the stub is dropped".
func (p *Pool) Release(c rpcproto.ChatClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.idle = append(p.idle, c)
	p.cond.Signal()
}

// Redial attempts to fill any pool slots lost to dial failures at
// construction time. Safe to call periodically from scheduler.Repeat.
func (p *Pool) Redial(dialOpts ...grpc.DialOption) {
	p.mu.Lock()
	missing := p.size - len(p.conns)
	stopped := p.stopped
	p.mu.Unlock()
	if stopped || missing <= 0 {
		return
	}
	for i := 0; i < missing; i++ {
		cc, err := dial(p.addr, dialOpts...)
		if err != nil {
			log.Printf("rpcpool: redial to %s failed: %v", p.addr, err)
			return
		}
		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			cc.Close()
			return
		}
		p.conns = append(p.conns, cc)
		p.idle = append(p.idle, rpcproto.NewChatClient(cc))
		p.cond.Signal()
		p.mu.Unlock()
	}
}

// Stop marks the pool stopped, wakes every waiter (they observe
// ErrPoolStopped), and closes all underlying connections.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	conns := p.conns
	p.conns = nil
	p.idle = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, cc := range conns {
		if err := cc.Close(); err != nil {
			log.Printf("rpcpool: close conn to %s: %v", p.addr, err)
		}
	}
}

// Len reports the number of currently idle stubs, for tests/diagnostics.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// newWithStubs builds a Pool pre-seeded with stubs, bypassing dialing, so
// Acquire/Release/Stop semantics can be tested without a live peer.
func newWithStubs(addr string, stubs []rpcproto.ChatClient) *Pool {
	p := &Pool{addr: addr, size: len(stubs), idle: stubs}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// NewForTest builds a Pool pre-seeded with stubs, bypassing dialing
// entirely. Exported for other packages' tests (e.g. cluster's router
// tests) that need a Pool without a live peer node to dial.
func NewForTest(addr string, stubs []rpcproto.ChatClient) *Pool {
	return newWithStubs(addr, stubs)
}
