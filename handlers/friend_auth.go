package handlers

import (
	"context"

	"github.com/aclisp/chatnode/internal/log"
	"github.com/aclisp/chatnode/protocol"
	"github.com/aclisp/chatnode/rpcproto"
	"github.com/aclisp/chatnode/session"
)

type authFriendReq struct {
	FromUID int64  `json:"fromuid"`
	ToUID   int64  `json:"touid"`
	Back    string `json:"back"`
}

type authFriendRsp struct {
	Error int    `json:"error"`
	UID   int64  `json:"uid,omitempty"`
	Name  string `json:"name,omitempty"`
	Nick  string `json:"nick,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Sex   int    `json:"sex,omitempty"`
}

// handleAuthFriendApply implements ID_AUTH_FRIEND_REQ: mark the pending
// apply authorized, add both directions of the friendship, reply with the
// peer's profile, and route a notification to the applicant. Grounded on
// the original's LogicSystem::AuthFriendApply.
func (d Deps) handleAuthFriendApply(s *session.Session, payload []byte) {
	ctx := context.Background()

	var req authFriendReq
	if err := unmarshal(payload, &req); err != nil {
		reply(s, protocol.MsgAuthFriendRsp, authFriendRsp{Error: protocol.ErrorJSON})
		return
	}

	peer, found := d.Presence.GetUser(ctx, itoa(req.ToUID))
	if !found {
		reply(s, protocol.MsgAuthFriendRsp, authFriendRsp{Error: protocol.UidInvalid})
		return
	}

	// The apply row was inserted as (apply_uid: original applicant, to_uid:
	// original recipient) by add-friend-apply. The confirming session's own
	// id (req.FromUID) is that original recipient, and req.ToUID is the
	// applicant being authorized, so the lookup needs the reverse mapping.
	if err := d.Store.AuthFriendApply(ctx, req.ToUID, req.FromUID, req.Back); err != nil {
		log.Printf("handlers: auth friend apply fromuid=%d touid=%d: %v", req.FromUID, req.ToUID, err)
	}
	if err := d.Store.AddFriendship(ctx, req.FromUID, req.ToUID, req.Back); err != nil {
		log.Printf("handlers: add friendship owner=%d peer=%d: %v", req.FromUID, req.ToUID, err)
	}
	if err := d.Store.AddFriendship(ctx, req.ToUID, req.FromUID, ""); err != nil {
		log.Printf("handlers: add friendship owner=%d peer=%d: %v", req.ToUID, req.FromUID, err)
	}

	d.Router.RouteAuthFriend(ctx, req.ToUID, &rpcproto.AuthFriendReq{
		FromUID: req.FromUID,
		ToUID:   req.ToUID,
		Back:    req.Back,
	})

	reply(s, protocol.MsgAuthFriendRsp, authFriendRsp{
		Error: protocol.Success,
		UID:   req.ToUID,
		Name:  peer.Name,
		Nick:  peer.Nick,
		Icon:  peer.Icon,
		Sex:   peer.Sex,
	})
}
