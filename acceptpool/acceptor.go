package acceptpool

import (
	"net"

	"github.com/aclisp/chatnode/internal/log"
)

// Serve is called once per accepted connection, on its own goroutine, with
// the Loop it was assigned to by round robin.
type Serve func(conn net.Conn, loop *Loop)

// Acceptor runs the accept loop over one net.Listener, assigning each
// connection to a Pool loop and dispatching it to Serve.
type Acceptor struct {
	pool  *Pool
	serve Serve
}

// NewAcceptor constructs an Acceptor over pool, calling serve for every
// accepted connection.
func NewAcceptor(pool *Pool, serve Serve) *Acceptor {
	return &Acceptor{pool: pool, serve: serve}
}

// Run accepts connections from ln until Accept returns an error — normally
// because the owner closed the listener — and returns. Each connection is
// assigned a loop and handed to serve on its own goroutine; Run itself
// never blocks on a single connection's lifetime.
func (a *Acceptor) Run(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("acceptpool: accept: %v", err)
			return
		}
		loop := a.pool.Assign()
		go a.serve(conn, loop)
	}
}
