package rpcpool

import (
	"sync"

	"google.golang.org/grpc"
)

// Registry keys a Pool per peer node address, mirroring the original's
// ChatGrpcClient._pools map (one ChatConPool per entry in PeerServer.Servers).
type Registry struct {
	mu       sync.RWMutex
	pools    map[string]*Pool
	poolSize int
	dialOpts []grpc.DialOption
}

// NewRegistry builds an empty registry; peers are added with AddPeer.
func NewRegistry(poolSize int, dialOpts ...grpc.DialOption) *Registry {
	return &Registry{
		pools:    make(map[string]*Pool),
		poolSize: poolSize,
		dialOpts: dialOpts,
	}
}

// AddPeer eagerly dials poolSize connections to addr and registers the pool
// under name (the peer's configured node name, matching USERIP:<uid>'s
// value so C8 can look up a pool by the name it reads from presence).
func (r *Registry) AddPeer(name, addr string) {
	pool := New(addr, r.poolSize, r.dialOpts...)
	r.mu.Lock()
	r.pools[name] = pool
	r.mu.Unlock()
}

// Put registers a prebuilt pool under a peer node name, bypassing AddPeer's
// dialing. Used to wire a pool built by a different path (e.g. tests, or a
// pool warmed up ahead of registration).
func (r *Registry) Put(name string, p *Pool) {
	r.mu.Lock()
	r.pools[name] = p
	r.mu.Unlock()
}

// Get returns the pool registered for a peer node name.
func (r *Registry) Get(name string) (*Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[name]
	return p, ok
}

// RedialAll sweeps every registered pool, attempting to fill slots lost to
// earlier dial failures. Intended to run on scheduler.Repeat.
func (r *Registry) RedialAll() {
	r.mu.RLock()
	pools := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	r.mu.RUnlock()
	for _, p := range pools {
		p.Redial(r.dialOpts...)
	}
}

// StopAll stops every registered pool.
func (r *Registry) StopAll() {
	r.mu.RLock()
	pools := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	r.mu.RUnlock()
	for _, p := range pools {
		p.Stop()
	}
}
