// Package redisx wraps the chat node's Redis key conventions (spec §4.6,
// §7 Data shapes): per-user token/IP/profile keys and the node-keyed
// LOGIN_COUNT hash. Grounded on the original's RedisMgr call sites
// (RedisMgr::Get/Set/HGet/HSet against literal key prefixes USERTOKEN,
// USERIP, LOGIN_COUNT, UBASEINFO, NAME) and on the retrieved example's
// github.com/redis/go-redis/v9 usage (redis.Client/redis.Cmdable).
package redisx

import (
	"context"
	"strconv"

	"github.com/pingcap/errors"
	"github.com/redis/go-redis/v9"
)

const (
	keyUserToken = "USERTOKEN:"
	keyUserIP    = "USERIP:"
	keyBaseInfo  = "UBASEINFO:"
	keyNameInfo  = "NAME:"
	keyLoginCnt  = "LOGIN_COUNT"
)

// Client wraps a *redis.Client with the chat node's key-naming logic.
type Client struct {
	rdb *redis.Client
}

// New constructs a Client from a go-redis connection; addr/password/db come
// from internal/config.Redis.
func New(addr, password string, db int) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// Ping verifies connectivity at startup, matching spec.md §6's "cache/DB
// unreachable" startup-failure exit condition.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.Annotate(err, "redisx: ping")
	}
	return nil
}

// ValidateToken reports whether USERTOKEN:<uid> equals token.
func (c *Client) ValidateToken(ctx context.Context, uid int64, token string) (bool, error) {
	got, err := c.rdb.Get(ctx, keyUserToken+strconv.FormatInt(uid, 10)).Result()
	if errors.Cause(err) == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Annotatef(err, "redisx: get %s%d", keyUserToken, uid)
	}
	return got == token, nil
}

// SetUserNode publishes USERIP:<uid> = nodeName, the presence record a peer
// node reads to decide where to forward a cross-node notification.
func (c *Client) SetUserNode(ctx context.Context, uid int64, nodeName string) error {
	if err := c.rdb.Set(ctx, keyUserIP+strconv.FormatInt(uid, 10), nodeName, 0).Err(); err != nil {
		return errors.Annotatef(err, "redisx: set %s%d", keyUserIP, uid)
	}
	return nil
}

// LookupUserNode returns the node name owning uid's session, or ("", false)
// if absent — spec.md §4.8 step 1's "drop silently" miss case.
func (c *Client) LookupUserNode(ctx context.Context, uid int64) (string, bool, error) {
	got, err := c.rdb.Get(ctx, keyUserIP+strconv.FormatInt(uid, 10)).Result()
	if errors.Cause(err) == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Annotatef(err, "redisx: get %s%d", keyUserIP, uid)
	}
	return got, true, nil
}

// DeleteUserNode removes the presence record, e.g. on clean session
// eviction (spec.md §4.6's "expected to revoke it on clean eviction").
func (c *Client) DeleteUserNode(ctx context.Context, uid int64) error {
	if err := c.rdb.Del(ctx, keyUserIP+strconv.FormatInt(uid, 10)).Err(); err != nil {
		return errors.Annotatef(err, "redisx: del %s%d", keyUserIP, uid)
	}
	return nil
}

// IncrLoginCount atomically increments LOGIN_COUNT[nodeName] by 1.
func (c *Client) IncrLoginCount(ctx context.Context, nodeName string) error {
	if err := c.rdb.HIncrBy(ctx, keyLoginCnt, nodeName, 1).Err(); err != nil {
		return errors.Annotatef(err, "redisx: hincrby %s %s", keyLoginCnt, nodeName)
	}
	return nil
}

// DecrLoginCount atomically decrements LOGIN_COUNT[nodeName] by 1, used on
// session eviction to keep the hash from drifting upward forever (spec.md
// §9 Open Questions).
func (c *Client) DecrLoginCount(ctx context.Context, nodeName string) error {
	if err := c.rdb.HIncrBy(ctx, keyLoginCnt, nodeName, -1).Err(); err != nil {
		return errors.Annotatef(err, "redisx: hincrby %s %s -1", keyLoginCnt, nodeName)
	}
	return nil
}

// DeleteLoginCount removes nodeName's field from LOGIN_COUNT entirely, used
// once at node shutdown (spec.md §5 step vi), after the per-session
// DecrLoginCount calls made as each logged-in session closes.
func (c *Client) DeleteLoginCount(ctx context.Context, nodeName string) error {
	if err := c.rdb.HDel(ctx, keyLoginCnt, nodeName).Err(); err != nil {
		return errors.Annotatef(err, "redisx: hdel %s %s", keyLoginCnt, nodeName)
	}
	return nil
}

// GetProfileJSON reads the cached profile JSON by uid, returning ("", false,
// nil) on a cache miss.
func (c *Client) GetProfileJSON(ctx context.Context, uid int64) (string, bool, error) {
	return c.getKey(ctx, keyBaseInfo+strconv.FormatInt(uid, 10))
}

// GetProfileJSONByName reads the cached profile JSON by name (the NAME:
// index), returning ("", false, nil) on a cache miss.
func (c *Client) GetProfileJSONByName(ctx context.Context, name string) (string, bool, error) {
	return c.getKey(ctx, keyNameInfo+name)
}

func (c *Client) getKey(ctx context.Context, key string) (string, bool, error) {
	got, err := c.rdb.Get(ctx, key).Result()
	if errors.Cause(err) == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Annotatef(err, "redisx: get %s", key)
	}
	return got, true, nil
}

// SetProfileJSON backfills UBASEINFO:<uid> after a relational-store hit, per
// spec.md §7's read-through cache contract. No TTL is set, matching the
// spec's "treat as best-effort and eventually consistent".
func (c *Client) SetProfileJSON(ctx context.Context, uid int64, json string) error {
	if err := c.rdb.Set(ctx, keyBaseInfo+strconv.FormatInt(uid, 10), json, 0).Err(); err != nil {
		return errors.Annotatef(err, "redisx: set %s%d", keyBaseInfo, uid)
	}
	return nil
}

// SetProfileJSONByName backfills NAME:<name> alongside UBASEINFO:<uid>.
func (c *Client) SetProfileJSONByName(ctx context.Context, name, json string) error {
	if err := c.rdb.Set(ctx, keyNameInfo+name, json, 0).Err(); err != nil {
		return errors.Annotatef(err, "redisx: set %s%s", keyNameInfo, name)
	}
	return nil
}
