// Package session implements the chat node's per-connection state: socket,
// receive assembler, bounded send queue, and identity binding (spec
// component C3), plus the session registry (component C4).
//
// The receive and send paths are modeled as two goroutines per session —
// recvLoop and writeLoop — instead of the teacher's single agent.write()
// goroutine plus a separate accept-owned read loop, to match spec.md §4.2's
// explicit READ_HEAD/READ_BODY/CLOSED state machine on the read side while
// keeping the teacher's "exactly one in-flight write, FIFO send queue"
// invariant on the write side (cluster/agent.go's write(), original
// source's CSession::_send_que/_send_lock).
package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aclisp/chatnode/internal/log"
	"github.com/aclisp/chatnode/internal/wire"
	"github.com/aclisp/chatnode/sessionid"
)

// ErrAlreadyBound is returned by Bind when a session's user_id has already
// been assigned; spec.md §3 treats a second assignment as a protocol
// violation, not a silent overwrite.
var ErrAlreadyBound = errors.New("session: user_id already bound")

// Dispatcher is the consumer a Session hands decoded frames to. It is
// satisfied by *dispatch.Dispatcher; kept as an interface here so session
// does not import dispatch (dispatch imports session instead).
type Dispatcher interface {
	Enqueue(s *Session, msgID uint16, payload []byte)
}

// Session is one live TCP connection plus its receive assembler, bounded
// send queue, and identity binding.
type Session struct {
	id   string
	conn net.Conn

	userID int64 // 0 until bound; CAS-guarded, set at most once

	maxPayload uint16
	sendCh     chan []byte

	// lastActive is a UnixNano timestamp, updated after every frame
	// received, backing the optional idle reaper (spec.md §9's "idle
	// timeout" safe extension).
	lastActive int64

	closed      int32
	closeOnce   sync.Once
	closeSignal chan struct{}
	onClose     func(*Session)

	dispatcher Dispatcher

	// loginCounted guards the LOGIN_COUNT decrement-on-evict invariant
	// (spec.md §9 Open Questions): set true exactly once, by the login
	// handler, and consulted exactly once, by the node's eviction hook.
	loginCounted int32
}

// Config bundles the knobs a Session needs from its owning node.
type Config struct {
	MaxPayload   uint16
	MaxSendQueue int
}

// New constructs a Session bound to conn. onClose is invoked exactly once,
// after the socket is closed; it is where the owning node evicts the
// session from its registry and decrements LOGIN_COUNT.
func New(conn net.Conn, dispatcher Dispatcher, cfg Config, onClose func(*Session)) *Session {
	if cfg.MaxSendQueue <= 0 {
		cfg.MaxSendQueue = 1000
	}
	return &Session{
		id:          sessionid.New(),
		conn:        conn,
		maxPayload:  cfg.MaxPayload,
		sendCh:      make(chan []byte, cfg.MaxSendQueue),
		closeSignal: make(chan struct{}),
		dispatcher:  dispatcher,
		onClose:     onClose,
		lastActive:  time.Now().UnixNano(),
	}
}

// ID returns the session's immutable, UUID-shaped identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the bound user id, or 0 if login hasn't happened yet.
func (s *Session) UserID() int64 { return atomic.LoadInt64(&s.userID) }

// RemoteAddr returns the peer's network address.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool { return atomic.LoadInt32(&s.closed) != 0 }

// IdleFor reports how long it has been since this session last received a
// complete frame.
func (s *Session) IdleFor() time.Duration {
	last := atomic.LoadInt64(&s.lastActive)
	return time.Since(time.Unix(0, last))
}

// Bind assigns user_id exactly once. A second call returns ErrAlreadyBound.
func (s *Session) Bind(uid int64) error {
	if !atomic.CompareAndSwapInt64(&s.userID, 0, uid) {
		return ErrAlreadyBound
	}
	return nil
}

// MarkLoginCounted reports whether this call is the first to mark the
// session as having incremented LOGIN_COUNT; only the first caller should
// perform the corresponding decrement on eviction.
func (s *Session) MarkLoginCounted() bool {
	return atomic.CompareAndSwapInt32(&s.loginCounted, 0, 1)
}

// ConsumeLoginCounted reports whether the session was login-counted and, if
// so, clears the flag so a second eviction attempt is a no-op.
func (s *Session) ConsumeLoginCounted() bool {
	return atomic.CompareAndSwapInt32(&s.loginCounted, 1, 0)
}

// Send encodes (msg_id, payload) and enqueues it on the session's bounded,
// strictly-FIFO send queue. It never blocks: if the queue is full the
// message is dropped and logged (spec.md §4.3's lossy back-pressure
// policy), and the session is left open.
func (s *Session) Send(msgID uint16, payload []byte) {
	if s.Closed() {
		return
	}
	frame, err := wire.Encode(msgID, payload, s.maxPayload)
	if err != nil {
		log.Printf("session %s: refusing to send msg_id=%d: %v", s.id, msgID, err)
		return
	}
	select {
	case s.sendCh <- frame:
	default:
		log.Printf("session %s: send queue full (cap=%d), dropping msg_id=%d", s.id, cap(s.sendCh), msgID)
	}
}

// Serve runs the session's receive and write loops until the connection
// closes or a protocol violation occurs, then returns. It blocks the
// calling goroutine for the session's entire lifetime, so callers run it in
// its own goroutine (see acceptpool.Acceptor.Run).
func (s *Session) Serve() {
	done := make(chan struct{})
	go func() {
		s.writeLoop()
		close(done)
	}()
	s.recvLoop()
	s.Close()
	<-done
}

// recvLoop implements the READ_HEAD -> READ_BODY -> READ_HEAD state machine
// of spec.md §4.2. A short read on either region simply continues (io.ReadFull
// loops internally); any read error, peer close, or oversize header closes
// the session without dispatching a partial frame.
func (s *Session) recvLoop() {
	header := make([]byte, wire.HeaderLen)
	for {
		if _, err := io.ReadFull(s.conn, header); err != nil {
			if err != io.EOF {
				log.Printf("session %s: read header: %v", s.id, err)
			}
			return
		}

		h, err := wire.DecodeHeader(header, s.maxPayload)
		if err != nil {
			log.Printf("session %s: %v, closing", s.id, err)
			return
		}

		var body []byte
		if h.PayloadLen > 0 {
			body = make([]byte, h.PayloadLen)
			if _, err := io.ReadFull(s.conn, body); err != nil {
				log.Printf("session %s: read body: %v", s.id, err)
				return
			}
		}

		atomic.StoreInt64(&s.lastActive, time.Now().UnixNano())
		s.dispatcher.Enqueue(s, h.MsgID, body)
	}
}

// writeLoop guarantees at most one in-flight write per session: it blocks
// on the channel, issues exactly one synchronous conn.Write, then loops.
// It selects on closeSignal rather than relying on sendCh being closed,
// since a concurrent Send could otherwise race a channel close.
func (s *Session) writeLoop() {
	for {
		select {
		case frame := <-s.sendCh:
			if _, err := s.conn.Write(frame); err != nil {
				log.Printf("session %s: write: %v", s.id, err)
				go s.Close()
				return
			}
		case <-s.closeSignal:
			return
		}
	}
}

// Close is idempotent: it closes the socket, stops accepting new sends, and
// invokes the onClose hook exactly once. Safe to call from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.closed, 1)
		close(s.closeSignal)
		if err := s.conn.Close(); err != nil {
			log.Printf("session %s: close: %v", s.id, err)
		}
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

func (s *Session) String() string {
	return fmt.Sprintf("Session{id=%s, uid=%d, remote=%s}", s.id, s.UserID(), s.conn.RemoteAddr())
}
