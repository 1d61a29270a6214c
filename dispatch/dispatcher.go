// Package dispatch implements the chat node's logic dispatcher (spec
// component C5): a single consumer goroutine that serializes execution of
// every handler, so no two handlers ever run concurrently on one node.
//
// Grounded on the original's LogicSystem::DealMsg (worker thread draining a
// mutex+condition-variable queue, PostMsgToQue enqueuing from the network
// thread) and on the teacher's scheduler.Run/PushTask usage pattern
// (cluster/handler.go, cluster/node.go hand completed work to one serialized
// executor). The queue itself is a buffered Go channel rather than a manual
// mutex+sync.Cond: a channel already gives blocking-when-empty, FIFO order,
// and safe multi-producer fan-in, which is exactly what DealMsg hand-rolls
// in C++.
package dispatch

import (
	"runtime/debug"
	"sync"

	"github.com/aclisp/chatnode/internal/log"
	"github.com/aclisp/chatnode/session"
)

// Handler processes one decoded message for a session. It runs on the
// dispatcher's single consumer goroutine; it must not block for long, since
// every other session's messages wait behind it.
type Handler func(s *session.Session, payload []byte)

type job struct {
	session *session.Session
	msgID   uint16
	payload []byte
}

// Dispatcher owns the handler table and the single-consumer work queue.
// It implements session.Dispatcher.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[uint16]Handler

	queue chan job
	stop  chan struct{}
	done  chan struct{}
}

// Config bundles the dispatcher's queue depth.
type Config struct {
	QueueSize int
}

// New constructs a Dispatcher. Call Run in its own goroutine to start
// draining, and Stop to drain the remaining backlog and return.
func New(cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4096
	}
	return &Dispatcher{
		handlers: make(map[uint16]Handler),
		queue:    make(chan job, cfg.QueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Register binds a handler to a msg_id. Handlers are normally registered
// before Run starts; the table is lock-guarded, so a later Register is safe
// and applies to messages dispatched after it.
func (d *Dispatcher) Register(msgID uint16, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[msgID] = h
}

// Enqueue hands a decoded frame to the dispatcher. It satisfies
// session.Dispatcher. Like Session.Send, it is lossy under back-pressure:
// if the queue is full the message is dropped and logged, matching spec.md
// §4.3's policy of never blocking a session's receive loop.
func (d *Dispatcher) Enqueue(s *session.Session, msgID uint16, payload []byte) {
	select {
	case d.queue <- job{session: s, msgID: msgID, payload: payload}:
	default:
		log.Printf("dispatch: queue full (cap=%d), dropping msg_id=%d from session %s", cap(d.queue), msgID, s.ID())
	}
}

// Run drains the queue on the calling goroutine until Stop is called and
// the backlog is empty. It is the dispatcher's single consumer: exactly one
// goroutine must call Run.
func (d *Dispatcher) Run() {
	defer close(d.done)
	for {
		select {
		case j := <-d.queue:
			d.dispatch(j)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain processes whatever is left in the queue without blocking, so a
// Stop doesn't silently discard in-flight work.
func (d *Dispatcher) drain() {
	for {
		select {
		case j := <-d.queue:
			d.dispatch(j)
		default:
			return
		}
	}
}

func (d *Dispatcher) dispatch(j job) {
	d.mu.RLock()
	h, found := d.handlers[j.msgID]
	d.mu.RUnlock()
	if !found {
		log.Printf("dispatch: no handler registered for msg_id=%d, session %s", j.msgID, j.session.ID())
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: handler panic for msg_id=%d: %+v\n%s", j.msgID, r, debug.Stack())
		}
	}()
	h(j.session, j.payload)
}

// Stop signals Run to drain the remaining backlog and return, then blocks
// until it has done so.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}
