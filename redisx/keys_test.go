package redisx

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

// unreachableAddr finds a TCP address nothing is listening on, by opening
// and immediately closing a listener.
func unreachableAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestClient_ErrorsAreAnnotatedWithKeyContext(t *testing.T) {
	c := New(unreachableAddr(t), "", 0)
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cases := []struct {
		name string
		call func() error
		want string
	}{
		{"ping", func() error { return c.Ping(ctx) }, "redisx: ping"},
		{"validate token", func() error { _, err := c.ValidateToken(ctx, 1, "t"); return err }, "USERTOKEN:1"},
		{"set user node", func() error { return c.SetUserNode(ctx, 1, "node-a") }, "USERIP:1"},
		{"lookup user node", func() error { _, _, err := c.LookupUserNode(ctx, 1); return err }, "USERIP:1"},
		{"incr login count", func() error { return c.IncrLoginCount(ctx, "node-a") }, "LOGIN_COUNT"},
		{"delete login count", func() error { return c.DeleteLoginCount(ctx, "node-a") }, "LOGIN_COUNT"},
		{"get profile json", func() error { _, _, err := c.GetProfileJSON(ctx, 1); return err }, "UBASEINFO:1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if err == nil {
				t.Fatal("expected error against an unreachable redis address")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.want)
			}
		})
	}
}
