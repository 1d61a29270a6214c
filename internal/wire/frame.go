// Package wire implements the chat session's length-prefixed frame codec
// (spec component C2): a fixed 4-byte big-endian header (msg_id, payload_len)
// followed by exactly payload_len bytes of opaque payload. The codec is pure
// and performs no I/O; see the session package for the state machine that
// reads frames off a net.Conn.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderLen is the fixed size, in bytes, of a frame header.
const HeaderLen = 4

// ErrOversizeFrame is returned when a header's msg_id or payload_len exceeds
// the configured MaxPayload bound. It is an unrecoverable protocol error:
// the caller must close the session.
var ErrOversizeFrame = errors.New("wire: msg_id or payload_len exceeds MaxPayload")

// Header is the decoded 4-byte frame header.
type Header struct {
	MsgID      uint16
	PayloadLen uint16
}

// Encode produces [msg_id:u16-be][len:u16-be][payload]. It returns
// ErrOversizeFrame if msgID or len(payload) exceeds maxPayload.
func Encode(msgID uint16, payload []byte, maxPayload uint16) ([]byte, error) {
	if msgID > maxPayload || len(payload) > int(maxPayload) {
		return nil, fmt.Errorf("wire: encode msg_id=%d len=%d: %w", msgID, len(payload), ErrOversizeFrame)
	}
	buf := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], msgID)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(payload)))
	copy(buf[HeaderLen:], payload)
	return buf, nil
}

// DecodeHeader parses a HeaderLen-byte buffer into a Header and validates
// both fields against maxPayload. It returns ErrOversizeFrame on violation.
func DecodeHeader(b []byte, maxPayload uint16) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("wire: short header: %d bytes", len(b))
	}
	h := Header{
		MsgID:      binary.BigEndian.Uint16(b[0:2]),
		PayloadLen: binary.BigEndian.Uint16(b[2:4]),
	}
	if h.MsgID > maxPayload || h.PayloadLen > maxPayload {
		return Header{}, fmt.Errorf("wire: header msg_id=%d len=%d: %w", h.MsgID, h.PayloadLen, ErrOversizeFrame)
	}
	return h, nil
}
