package handlers

import (
	"testing"

	"github.com/aclisp/chatnode/protocol"
	"github.com/aclisp/chatnode/store"
)

func TestHandleLogin_InvalidTokenReplaysTokenInvalid(t *testing.T) {
	deps, redis, st := newTestDeps(t, "nodeA")
	redis.setToken(1, "right-token")
	st.putProfile(store.Profile{UID: 1, Name: "alice"})

	s, client := newTestSession(t)
	defer client.Close()

	deps.handleLogin(s, []byte(`{"uid":1,"token":"wrong"}`))

	var rsp loginRsp
	msgID := readReply(t, client, &rsp)
	if msgID != protocol.MsgChatLoginRsp {
		t.Fatalf("msg_id = %d, want MsgChatLoginRsp", msgID)
	}
	if rsp.Error != protocol.TokenInvalid {
		t.Fatalf("error = %d, want TokenInvalid", rsp.Error)
	}
	if s.UserID() != 0 {
		t.Fatalf("session should not be bound on failed login")
	}
}

func TestHandleLogin_SuccessBindsSessionAndRepliesProfile(t *testing.T) {
	deps, redis, st := newTestDeps(t, "nodeA")
	redis.setToken(7, "tok")
	st.putProfile(store.Profile{UID: 7, Name: "bob", Nick: "bobby", Icon: "icon.png", Sex: 1})
	st.friends[7] = append(st.friends[7], store.Friend{Peer: 8, Remark: "bestie"})
	st.putProfile(store.Profile{UID: 8, Name: "carol", Nick: "caz"})

	s, client := newTestSession(t)
	defer client.Close()

	deps.handleLogin(s, []byte(`{"uid":7,"token":"tok"}`))

	var rsp loginRsp
	readReply(t, client, &rsp)
	if rsp.Error != protocol.Success {
		t.Fatalf("error = %d, want Success", rsp.Error)
	}
	if rsp.UID != 7 || rsp.Nick != "bobby" {
		t.Fatalf("unexpected profile in reply: %+v", rsp)
	}
	if len(rsp.FriendList) != 1 || rsp.FriendList[0].UID != 8 || rsp.FriendList[0].Back != "bestie" || rsp.FriendList[0].Nick != "caz" {
		t.Fatalf("unexpected friend list: %+v", rsp.FriendList)
	}
	if s.UserID() != 7 {
		t.Fatalf("session not bound: got uid %d", s.UserID())
	}
	if _, found := deps.Sessions.LookupByUser(7); !found {
		t.Fatal("session should be registered under uid 7")
	}
	if redis.loginCounts["nodeA"] != 1 {
		t.Fatalf("login count = %d, want 1", redis.loginCounts["nodeA"])
	}
}

func TestHandleLogin_SecondLoginEvictsFirstSession(t *testing.T) {
	deps, redis, st := newTestDeps(t, "nodeA")
	redis.setToken(7, "tok")
	st.putProfile(store.Profile{UID: 7, Name: "bob"})

	first, firstClient := newTestSession(t)
	defer firstClient.Close()
	deps.handleLogin(first, []byte(`{"uid":7,"token":"tok"}`))
	var firstRsp loginRsp
	readReply(t, firstClient, &firstRsp)
	if first.Closed() {
		t.Fatal("first session should still be open right after its own login")
	}

	second, secondClient := newTestSession(t)
	defer secondClient.Close()
	deps.handleLogin(second, []byte(`{"uid":7,"token":"tok"}`))
	var secondRsp loginRsp
	readReply(t, secondClient, &secondRsp)

	if !first.Closed() {
		t.Fatal("first session should be closed once a second login for the same uid succeeds")
	}
	if got, found := deps.Sessions.LookupByUser(7); !found || got != second {
		t.Fatalf("uid 7 should now be bound to the second session, got (%v, %v)", got, found)
	}
}

func TestHandleLogin_UnknownProfileRepliesUidInvalid(t *testing.T) {
	deps, redis, _ := newTestDeps(t, "nodeA")
	redis.setToken(9, "tok")

	s, client := newTestSession(t)
	defer client.Close()

	deps.handleLogin(s, []byte(`{"uid":9,"token":"tok"}`))

	var rsp loginRsp
	readReply(t, client, &rsp)
	if rsp.Error != protocol.UidInvalid {
		t.Fatalf("error = %d, want UidInvalid", rsp.Error)
	}
}
