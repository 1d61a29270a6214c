package handlers

import (
	"testing"

	"github.com/aclisp/chatnode/protocol"
)

func TestHandleTextChatMsg_EchoesBatchToSender(t *testing.T) {
	deps, _, _ := newTestDeps(t, "nodeA")

	s, client := newTestSession(t)
	defer client.Close()

	deps.handleTextChatMsg(s, []byte(`{"fromuid":1,"touid":2,"text_array":[{"msgid":"m1","content":"hi"}]}`))

	var rsp textChatRsp
	msgID := readReply(t, client, &rsp)
	if msgID != protocol.MsgTextChatMsgRsp {
		t.Fatalf("msg_id = %d, want MsgTextChatMsgRsp", msgID)
	}
	if rsp.Error != protocol.Success || rsp.FromUID != 1 || rsp.ToUID != 2 {
		t.Fatalf("unexpected reply: %+v", rsp)
	}
	if len(rsp.TextArray) != 1 || rsp.TextArray[0].Content != "hi" {
		t.Fatalf("unexpected text array: %+v", rsp.TextArray)
	}
}

func TestHandleTextChatMsg_RoutesToLocalTarget(t *testing.T) {
	deps, redis, _ := newTestDeps(t, "nodeA")

	target, targetClient := newTestSession(t)
	defer targetClient.Close()
	target.Bind(2)
	deps.Sessions.Insert(target)
	deps.Sessions.BindUser(2, target)
	redis.mu.Lock()
	redis.userNodes[2] = "nodeA"
	redis.mu.Unlock()

	s, client := newTestSession(t)
	defer client.Close()

	deps.handleTextChatMsg(s, []byte(`{"fromuid":1,"touid":2,"text_array":[{"msgid":"m1","content":"hi"}]}`))

	var rsp textChatRsp
	readReply(t, client, &rsp)

	var notify map[string]any
	notifyMsgID := readReply(t, targetClient, &notify)
	if notifyMsgID != protocol.MsgNotifyTextChatMsgReq {
		t.Fatalf("notify msg_id = %d, want MsgNotifyTextChatMsgReq", notifyMsgID)
	}
}
