// Package handlers implements C6: one function per msg_id, registered onto
// a dispatch.Dispatcher. Each handler parses its request payload, does its
// work against presence/store/cluster, and always replies on the session
// exactly once (the original's Defer-send-on-return pattern, expressed here
// as "build rtvalue, then session.Send it before returning").
package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/aclisp/chatnode/cluster"
	"github.com/aclisp/chatnode/dispatch"
	"github.com/aclisp/chatnode/internal/log"
	"github.com/aclisp/chatnode/presence"
	"github.com/aclisp/chatnode/protocol"
	"github.com/aclisp/chatnode/session"
	"github.com/aclisp/chatnode/store"
)

// Deps bundles the collaborators every handler needs. A single value is
// threaded through Register instead of a global, so a node can build an
// independent handler set per test.
type Deps struct {
	SelfName string
	Presence *presence.Cache
	Store    store.Store
	Router   *cluster.Router
	Sessions *session.Registry
}

// Register binds every C6 handler to its msg_id on d, the mirror of the
// original's MsgNode-to-handler table LogicSystem builds in its
// constructor (`_fun_callbacks[MSG_CHAT_LOGIN] = ...`).
func Register(d *dispatch.Dispatcher, deps Deps) {
	d.Register(protocol.MsgChatLogin, deps.handleLogin)
	d.Register(protocol.MsgSearchUserReq, deps.handleSearchUser)
	d.Register(protocol.MsgAddFriendReq, deps.handleAddFriendApply)
	d.Register(protocol.MsgAuthFriendReq, deps.handleAuthFriendApply)
	d.Register(protocol.MsgTextChatMsgReq, deps.handleTextChatMsg)
}

// reply marshals v and sends it on s under msgID, logging (never panicking)
// on a marshal failure, since a handler must not crash the dispatcher's
// single consumer goroutine.
func reply(s *session.Session, msgID uint16, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("handlers: marshal reply msg_id=%d: %v", msgID, err)
		return
	}
	s.Send(msgID, data)
}

func unmarshal(payload []byte, v any) error {
	return json.Unmarshal(payload, v)
}

// itoa renders a uid the way presence.Cache.GetUser expects its
// uidOrName argument: a decimal string routed through presence.IsNumeric.
func itoa(uid int64) string { return strconv.FormatInt(uid, 10) }
