package handlers

import (
	"context"

	"github.com/aclisp/chatnode/internal/log"
	"github.com/aclisp/chatnode/protocol"
	"github.com/aclisp/chatnode/rpcproto"
	"github.com/aclisp/chatnode/session"
	"github.com/aclisp/chatnode/store"
)

type addFriendReq struct {
	UID       int64  `json:"uid"`
	ApplyName string `json:"applyname"`
	BakName   string `json:"bakname"`
	ToUID     int64  `json:"touid"`
}

type addFriendRsp struct {
	Error int `json:"error"`
}

// handleAddFriendApply implements ID_ADD_FRIEND_REQ: persist the pending
// apply row, then route a notification to touid (local session or peer
// node). Grounded on the original's LogicSystem::AddFriendApply; always
// replies Success, matching the original always setting
// ErrorCodes::Success before the Defer-send regardless of downstream
// delivery outcome.
func (d Deps) handleAddFriendApply(s *session.Session, payload []byte) {
	ctx := context.Background()

	var req addFriendReq
	if err := unmarshal(payload, &req); err != nil {
		reply(s, protocol.MsgAddFriendRsp, addFriendRsp{Error: protocol.ErrorJSON})
		return
	}

	if err := d.Store.AddFriendApply(ctx, store.FriendApply{
		ApplyUID: req.UID, ToUID: req.ToUID, Name: req.ApplyName,
	}); err != nil {
		log.Printf("handlers: add friend apply uid=%d touid=%d: %v", req.UID, req.ToUID, err)
	}

	applicant, _ := d.Presence.GetUser(ctx, itoa(req.UID))
	d.Router.RouteAddFriend(ctx, req.ToUID, &rpcproto.AddFriendReq{
		ApplyUID: req.UID,
		ToUID:    req.ToUID,
		Name:     req.ApplyName,
		Desc:     "",
		Icon:     applicant.Icon,
		Nick:     applicant.Nick,
		Sex:      int32(applicant.Sex),
	})

	reply(s, protocol.MsgAddFriendRsp, addFriendRsp{Error: protocol.Success})
}
