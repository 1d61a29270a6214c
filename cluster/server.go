package cluster

import (
	"context"
	"encoding/json"

	"github.com/aclisp/chatnode/protocol"
	"github.com/aclisp/chatnode/rpcproto"
	"github.com/aclisp/chatnode/session"
)

// InboundServer implements rpcproto.ChatServer: the other half of C8,
// translating an inbound RPC into a frame on the addressed local session.
// Grounded on spec.md §4.10 directly.
type InboundServer struct {
	sessions *session.Registry
}

// NewInboundServer constructs an InboundServer over the node's session
// registry.
func NewInboundServer(sessions *session.Registry) *InboundServer {
	return &InboundServer{sessions: sessions}
}

var _ rpcproto.ChatServer = (*InboundServer)(nil)

// NotifyAddFriend delivers an inbound friend-apply notification. A missing
// session (the fire-and-forget contract) still returns success; no retry.
func (s *InboundServer) NotifyAddFriend(ctx context.Context, req *rpcproto.AddFriendReq) (*rpcproto.AddFriendRsp, error) {
	s.deliver(req.ToUID, protocol.MsgNotifyAddFriendReq, map[string]any{
		"applyuid": req.ApplyUID,
		"touid":    req.ToUID,
		"name":     req.Name,
		"desc":     req.Desc,
		"icon":     req.Icon,
		"sex":      req.Sex,
		"nick":     req.Nick,
	})
	return &rpcproto.AddFriendRsp{Error: rpcproto.Success, ApplyUID: req.ApplyUID, ToUID: req.ToUID}, nil
}

// NotifyAuthFriend delivers an inbound friend-auth notification.
func (s *InboundServer) NotifyAuthFriend(ctx context.Context, req *rpcproto.AuthFriendReq) (*rpcproto.AuthFriendRsp, error) {
	s.deliver(req.ToUID, protocol.MsgNotifyAuthFriendReq, map[string]any{
		"fromuid": req.FromUID,
		"touid":   req.ToUID,
		"back":    req.Back,
	})
	return &rpcproto.AuthFriendRsp{Error: rpcproto.Success, FromUID: req.FromUID, ToUID: req.ToUID}, nil
}

// NotifyTextChatMsg delivers an inbound text-chat notification.
func (s *InboundServer) NotifyTextChatMsg(ctx context.Context, req *rpcproto.TextChatMsgReq) (*rpcproto.TextChatMsgRsp, error) {
	s.deliver(req.ToUID, protocol.MsgNotifyTextChatMsgReq, map[string]any{
		"fromuid":  req.FromUID,
		"touid":    req.ToUID,
		"textmsgs": req.TextMsgs,
	})
	return &rpcproto.TextChatMsgRsp{
		Error: rpcproto.Success, FromUID: req.FromUID, ToUID: req.ToUID, TextMsgs: req.TextMsgs,
	}, nil
}

func (s *InboundServer) deliver(toUID int64, msgID uint16, payload map[string]any) {
	sess, found := s.sessions.LookupByUser(toUID)
	if !found {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	sess.Send(msgID, data)
}
