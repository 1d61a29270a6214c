package handlers

import (
	"context"

	"github.com/aclisp/chatnode/internal/log"
	"github.com/aclisp/chatnode/protocol"
	"github.com/aclisp/chatnode/session"
)

type loginReq struct {
	UID   int64  `json:"uid"`
	Token string `json:"token"`
}

type applyListEntry struct {
	Name   string `json:"name"`
	UID    int64  `json:"uid"`
	Icon   string `json:"icon"`
	Nick   string `json:"nick"`
	Sex    int    `json:"sex"`
	Desc   string `json:"desc"`
	Status int    `json:"status"`
}

type friendListEntry struct {
	Name string `json:"name"`
	UID  int64  `json:"uid"`
	Icon string `json:"icon"`
	Nick string `json:"nick"`
	Sex  int    `json:"sex"`
	Desc string `json:"desc"`
	Back string `json:"back"`
}

type loginRsp struct {
	Error     int               `json:"error"`
	UID       int64             `json:"uid,omitempty"`
	Pwd       string            `json:"pwd,omitempty"`
	Name      string            `json:"name,omitempty"`
	Email     string            `json:"email,omitempty"`
	Nick      string            `json:"nick,omitempty"`
	Desc      string            `json:"desc,omitempty"`
	Sex       int               `json:"sex,omitempty"`
	Icon      string            `json:"icon,omitempty"`
	ApplyList []applyListEntry  `json:"apply_list,omitempty"`
	FriendList []friendListEntry `json:"friend_list,omitempty"`
}

// handleLogin implements MSG_CHAT_LOGIN: validate the Redis token, load the
// profile and social lists, bind the session, and publish presence.
// Grounded on the original's LogicSystem::LoginHandler.
func (d Deps) handleLogin(s *session.Session, payload []byte) {
	ctx := context.Background()

	var req loginReq
	if err := unmarshal(payload, &req); err != nil {
		reply(s, protocol.MsgChatLoginRsp, loginRsp{Error: protocol.ErrorJSON})
		return
	}

	if !d.Presence.ValidateLogin(ctx, req.UID, req.Token) {
		reply(s, protocol.MsgChatLoginRsp, loginRsp{Error: protocol.TokenInvalid})
		return
	}

	profile, found := d.Presence.GetUser(ctx, itoa(req.UID))
	if !found {
		reply(s, protocol.MsgChatLoginRsp, loginRsp{Error: protocol.UidInvalid})
		return
	}

	rsp := loginRsp{
		Error: protocol.Success,
		UID:   profile.UID,
		Pwd:   profile.Pwd,
		Name:  profile.Name,
		Email: profile.Email,
		Nick:  profile.Nick,
		Desc:  profile.Desc,
		Sex:   profile.Sex,
		Icon:  profile.Icon,
	}

	if applies, err := d.Store.ListFriendApplies(ctx, req.UID, 0, 10); err != nil {
		log.Printf("handlers: login list friend applies uid=%d: %v", req.UID, err)
	} else {
		for _, a := range applies {
			rsp.ApplyList = append(rsp.ApplyList, applyListEntry{
				Name: a.Name, UID: a.ApplyUID, Desc: a.Desc, Status: a.Status,
			})
		}
	}

	if friends, err := d.Store.ListFriends(ctx, req.UID); err != nil {
		log.Printf("handlers: login list friends uid=%d: %v", req.UID, err)
	} else {
		for _, f := range friends {
			peer, ok := d.Presence.GetUser(ctx, itoa(f.Peer))
			entry := friendListEntry{UID: f.Peer, Back: f.Remark}
			if ok {
				entry.Name, entry.Icon, entry.Nick, entry.Sex, entry.Desc =
					peer.Name, peer.Icon, peer.Nick, peer.Sex, peer.Desc
			}
			rsp.FriendList = append(rsp.FriendList, entry)
		}
	}

	if err := s.Bind(req.UID); err != nil {
		// A session is never logged in twice (spec.md §3); treat a repeat
		// attempt as a protocol violation rather than silently rebinding.
		reply(s, protocol.MsgChatLoginRsp, loginRsp{Error: protocol.UidInvalid})
		return
	}
	if prev := d.Sessions.BindUser(req.UID, s); prev != nil {
		// spec.md §9: a second login for the same uid evicts the first
		// session rather than letting both remain live.
		prev.Close()
	}
	s.MarkLoginCounted()
	if err := d.Presence.MarkLoggedIn(ctx, req.UID, d.SelfName); err != nil {
		log.Printf("handlers: mark logged in uid=%d: %v", req.UID, err)
	}

	reply(s, protocol.MsgChatLoginRsp, rsp)
}
