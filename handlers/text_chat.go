package handlers

import (
	"context"

	"github.com/aclisp/chatnode/protocol"
	"github.com/aclisp/chatnode/rpcproto"
	"github.com/aclisp/chatnode/session"
)

// chatText is one client-facing message in a text_array batch. Its "content"
// field name is the client wire protocol's own name (LogicSystem.cpp's
// `txt_obj["content"]`), distinct from rpcproto.TextChatData's "msgcontent",
// which names the same value on the cross-node RPC wire.
type chatText struct {
	MsgID   string `json:"msgid"`
	Content string `json:"content"`
}

type textChatReq struct {
	FromUID   int64      `json:"fromuid"`
	ToUID     int64      `json:"touid"`
	TextArray []chatText `json:"text_array"`
}

type textChatRsp struct {
	Error     int        `json:"error"`
	FromUID   int64      `json:"fromuid"`
	ToUID     int64      `json:"touid"`
	TextArray []chatText `json:"text_array"`
}

// handleTextChatMsg implements ID_TEXT_CHAT_MSG_REQ: echo the message batch
// back to the sender, then route the same batch to touid (local session or
// peer node). Grounded on the original's LogicSystem::DealChatTextMsg, which
// copies text_array verbatim into both the client echo and the cross-node
// notification.
func (d Deps) handleTextChatMsg(s *session.Session, payload []byte) {
	ctx := context.Background()

	var req textChatReq
	if err := unmarshal(payload, &req); err != nil {
		reply(s, protocol.MsgTextChatMsgRsp, textChatRsp{Error: protocol.ErrorJSON})
		return
	}

	reply(s, protocol.MsgTextChatMsgRsp, textChatRsp{
		Error:     protocol.Success,
		FromUID:   req.FromUID,
		ToUID:     req.ToUID,
		TextArray: req.TextArray,
	})

	msgs := make([]rpcproto.TextChatData, len(req.TextArray))
	for i, t := range req.TextArray {
		msgs[i] = rpcproto.TextChatData{MsgID: t.MsgID, MsgContent: t.Content}
	}
	d.Router.RouteTextChat(ctx, req.ToUID, &rpcproto.TextChatMsgReq{
		FromUID:  req.FromUID,
		ToUID:    req.ToUID,
		TextMsgs: msgs,
	})
}
