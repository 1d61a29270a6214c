package handlers

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/aclisp/chatnode/cluster"
	"github.com/aclisp/chatnode/internal/wire"
	"github.com/aclisp/chatnode/presence"
	"github.com/aclisp/chatnode/rpcpool"
	"github.com/aclisp/chatnode/session"
	"github.com/aclisp/chatnode/store"
)

// --- fakes ---

type fakeRedis struct {
	mu          sync.Mutex
	tokens      map[int64]string
	userNodes   map[int64]string
	loginCounts map[string]int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		tokens:      make(map[int64]string),
		userNodes:   make(map[int64]string),
		loginCounts: make(map[string]int),
	}
}

func (f *fakeRedis) GetProfileJSON(ctx context.Context, uid int64) (string, bool, error) {
	return "", false, nil
}
func (f *fakeRedis) GetProfileJSONByName(ctx context.Context, name string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeRedis) SetProfileJSON(ctx context.Context, uid int64, json string) error { return nil }
func (f *fakeRedis) SetProfileJSONByName(ctx context.Context, name, json string) error {
	return nil
}
func (f *fakeRedis) ValidateToken(ctx context.Context, uid int64, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[uid] == token, nil
}
func (f *fakeRedis) SetUserNode(ctx context.Context, uid int64, nodeName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userNodes[uid] = nodeName
	return nil
}
func (f *fakeRedis) DeleteUserNode(ctx context.Context, uid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.userNodes, uid)
	return nil
}
func (f *fakeRedis) IncrLoginCount(ctx context.Context, nodeName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCounts[nodeName]++
	return nil
}
func (f *fakeRedis) DecrLoginCount(ctx context.Context, nodeName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCounts[nodeName]--
	return nil
}
func (f *fakeRedis) LookupUserNode(ctx context.Context, uid int64) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.userNodes[uid]
	return v, ok, nil
}
func (f *fakeRedis) setToken(uid int64, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[uid] = token
}

type authFriendApplyCall struct {
	FromUID int64
	ToUID   int64
	Back    string
}

type fakeStore struct {
	mu        sync.Mutex
	profiles  map[int64]*store.Profile
	byName    map[string]*store.Profile
	applies   []store.FriendApply
	friends   map[int64][]store.Friend
	authCalls []authFriendApplyCall
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[int64]*store.Profile),
		byName:   make(map[string]*store.Profile),
		friends:  make(map[int64][]store.Friend),
	}
}

func (f *fakeStore) GetProfileByUID(ctx context.Context, uid int64) (*store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[uid], nil
}
func (f *fakeStore) GetProfileByName(ctx context.Context, name string) (*store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byName[name], nil
}
func (f *fakeStore) AddFriendApply(ctx context.Context, a store.FriendApply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applies = append(f.applies, a)
	return nil
}
func (f *fakeStore) ListFriendApplies(ctx context.Context, uid int64, offset, limit int) ([]store.FriendApply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.FriendApply
	for _, a := range f.applies {
		if a.ToUID == uid {
			out = append(out, a)
		}
	}
	return out, nil
}
func (f *fakeStore) AuthFriendApply(ctx context.Context, fromUID, toUID int64, back string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls = append(f.authCalls, authFriendApplyCall{FromUID: fromUID, ToUID: toUID, Back: back})
	return nil
}
func (f *fakeStore) AddFriendship(ctx context.Context, ownerUID, peerUID int64, remark string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.friends[ownerUID] = append(f.friends[ownerUID], store.Friend{Peer: peerUID, Remark: remark})
	return nil
}
func (f *fakeStore) ListFriends(ctx context.Context, uid int64) ([]store.Friend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.friends[uid], nil
}

func (f *fakeStore) authFriendApplyCalls() []authFriendApplyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]authFriendApplyCall, len(f.authCalls))
	copy(out, f.authCalls)
	return out
}

func (f *fakeStore) putProfile(p store.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.profiles[p.UID] = &cp
	f.byName[p.Name] = &cp
}

// newTestDeps wires a handlers.Deps over in-memory fakes, mirroring the
// pattern in cluster/router_test.go.
func newTestDeps(t *testing.T, selfName string) (Deps, *fakeRedis, *fakeStore) {
	t.Helper()
	redis := newFakeRedis()
	st := newFakeStore()
	pres := presence.New(redis, st)
	sessions := session.NewRegistry()
	peers := rpcpool.NewRegistry(5)
	router := cluster.NewRouter(selfName, pres, sessions, peers)
	return Deps{
		SelfName: selfName,
		Presence: pres,
		Store:    st,
		Router:   router,
		Sessions: sessions,
	}, redis, st
}

func newTestSession(t *testing.T) (*session.Session, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	s := session.New(server, nil, session.Config{MaxPayload: 2048, MaxSendQueue: 8}, nil)
	t.Cleanup(func() { s.Close() })
	return s, client
}

// readReply drains one frame off client and unmarshals its payload into v.
func readReply(t *testing.T, client net.Conn, v any) uint16 {
	t.Helper()
	client.SetReadDeadline(time.Now().Add(time.Second))
	header := make([]byte, wire.HeaderLen)
	if _, err := readFull(client, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	h, err := wire.DecodeHeader(header, 2048)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	body := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := readFull(client, body); err != nil {
			t.Fatalf("read body: %v", err)
		}
	}
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	return h.MsgID
}

func readFull(c net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := c.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
