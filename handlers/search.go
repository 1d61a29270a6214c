package handlers

import (
	"context"

	"github.com/aclisp/chatnode/protocol"
	"github.com/aclisp/chatnode/session"
)

type searchReq struct {
	UID string `json:"uid"`
}

type searchRsp struct {
	Error int    `json:"error"`
	UID   int64  `json:"uid,omitempty"`
	Name  string `json:"name,omitempty"`
	Nick  string `json:"nick,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Sex   int    `json:"sex,omitempty"`
	Desc  string `json:"desc,omitempty"`
}

// handleSearchUser implements ID_SEARCH_USER_REQ: uid is either an all-digit
// numeric id or a name, routed accordingly. Grounded on the original's
// LogicSystem::SearchInfo (isPureDigit -> GetUserByUid / GetUserByName).
func (d Deps) handleSearchUser(s *session.Session, payload []byte) {
	var req searchReq
	if err := unmarshal(payload, &req); err != nil {
		reply(s, protocol.MsgSearchUserRsp, searchRsp{Error: protocol.ErrorJSON})
		return
	}

	// GetUser already routes on presence.IsNumeric(req.UID) internally.
	profile, found := d.Presence.GetUser(context.Background(), req.UID)
	if !found {
		reply(s, protocol.MsgSearchUserRsp, searchRsp{Error: protocol.UidInvalid})
		return
	}

	reply(s, protocol.MsgSearchUserRsp, searchRsp{
		Error: protocol.Success,
		UID:   profile.UID,
		Name:  profile.Name,
		Nick:  profile.Nick,
		Icon:  profile.Icon,
		Sex:   profile.Sex,
		Desc:  profile.Desc,
	})
}
