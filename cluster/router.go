// Package cluster implements the chat node's cross-node delivery path
// (spec component C8): routing a notification to either a local session or
// a peer node's RPC surface, and serving the inbound half of the same
// three RPCs. Grounded on the original's ChatGrpcClient/LogicSystem
// pattern (RedisMgr::Get(USERIP+uid), compare to self name, either
// GetSession locally or ChatGrpcClient::NotifyXxx) and spec.md §4.8/§4.10
// directly.
package cluster

import (
	"context"
	"encoding/json"

	"github.com/aclisp/chatnode/internal/log"
	"github.com/aclisp/chatnode/presence"
	"github.com/aclisp/chatnode/protocol"
	"github.com/aclisp/chatnode/rpcpool"
	"github.com/aclisp/chatnode/rpcproto"
	"github.com/aclisp/chatnode/session"
)

// Router decides, per spec.md §4.8, whether a notification is delivered to
// a local session, forwarded over RPC to a peer node, or dropped because
// the target is offline by the presence model.
type Router struct {
	selfName string
	presence *presence.Cache
	sessions *session.Registry
	peers    *rpcpool.Registry
}

// NewRouter constructs a Router. selfName must equal this node's
// configured name, the same string published to USERIP:<uid> at login.
func NewRouter(selfName string, pres *presence.Cache, sessions *session.Registry, peers *rpcpool.Registry) *Router {
	return &Router{selfName: selfName, presence: pres, sessions: sessions, peers: peers}
}

// RouteAddFriend delivers an add-friend notification to targetUID, per
// spec.md §4.6 Add-friend-apply's "deliver a notification to touid".
func (r *Router) RouteAddFriend(ctx context.Context, targetUID int64, req *rpcproto.AddFriendReq) {
	r.route(ctx, targetUID, protocol.MsgNotifyAddFriendReq, map[string]any{
		"applyuid": req.ApplyUID,
		"touid":    req.ToUID,
		"name":     req.Name,
		"desc":     req.Desc,
		"icon":     req.Icon,
		"sex":      req.Sex,
		"nick":     req.Nick,
	}, func(stub rpcproto.ChatClient) error {
		_, err := stub.NotifyAddFriend(ctx, req)
		return err
	})
}

// RouteAuthFriend delivers an auth-friend notification to targetUID.
func (r *Router) RouteAuthFriend(ctx context.Context, targetUID int64, req *rpcproto.AuthFriendReq) {
	r.route(ctx, targetUID, protocol.MsgNotifyAuthFriendReq, map[string]any{
		"fromuid": req.FromUID,
		"touid":   req.ToUID,
		"back":    req.Back,
	}, func(stub rpcproto.ChatClient) error {
		_, err := stub.NotifyAuthFriend(ctx, req)
		return err
	})
}

// RouteTextChat delivers a text-chat notification to targetUID.
func (r *Router) RouteTextChat(ctx context.Context, targetUID int64, req *rpcproto.TextChatMsgReq) {
	r.route(ctx, targetUID, protocol.MsgNotifyTextChatMsgReq, map[string]any{
		"fromuid":  req.FromUID,
		"touid":    req.ToUID,
		"textmsgs": req.TextMsgs,
	}, func(stub rpcproto.ChatClient) error {
		_, err := stub.NotifyTextChatMsg(ctx, req)
		return err
	})
}

// route implements spec.md §4.8's three-step decision: drop on absent
// presence, local enqueue on same-node ownership, RPC forward otherwise.
func (r *Router) route(ctx context.Context, targetUID int64, localMsgID uint16, localPayload map[string]any, rpc func(rpcproto.ChatClient) error) {
	node, ok := r.presence.LookupNode(ctx, targetUID)
	if !ok {
		return // offline by presence model: drop silently
	}

	if node == r.selfName {
		s, found := r.sessions.LookupByUser(targetUID)
		if !found {
			return // registry race: binding gone between redis read and lookup
		}
		data, err := json.Marshal(localPayload)
		if err != nil {
			log.Printf("cluster: marshal local notification for uid=%d: %v", targetUID, err)
			return
		}
		s.Send(localMsgID, data)
		return
	}

	pool, ok := r.peers.Get(node)
	if !ok {
		log.Printf("cluster: no rpc pool registered for peer node %q (uid=%d)", node, targetUID)
		return
	}
	stub, err := pool.Acquire()
	if err != nil {
		log.Printf("cluster: acquire rpc stub for %q: %v", node, err)
		return
	}
	defer pool.Release(stub)

	if err := rpc(stub); err != nil {
		log.Printf("cluster: rpc to %q for uid=%d failed: %v", node, targetUID, err)
	}
}
