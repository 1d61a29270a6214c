// Package presence implements the chat node's read-through profile cache
// (spec component C9): Redis first, relational store on miss, with
// backfill to Redis. Grounded on the original's GetBaseInfo
// (RedisMgr::Get, then on miss MysqlMgr::GetUser, then RedisMgr::Set to
// backfill) — see ChatGrpcClient.cpp.
//
// spec.md §9 Open Questions flags that GetBaseInfo's C++ source has a
// control path returning without an explicit value on the Redis-hit
// branch; this implementation follows the spec's stated resolution:
// GetUser returns (profile, true) on both the Redis-hit and the
// DB-hit-then-backfill path.
package presence

import (
	"context"
	"encoding/json"
	"strconv"
	"unicode"

	"github.com/pingcap/errors"

	"github.com/aclisp/chatnode/internal/log"
	"github.com/aclisp/chatnode/store"
)

// RedisStore is the subset of *redisx.Client's presence-cache methods
// Cache depends on; kept as an interface (rather than importing redisx
// directly) so tests can substitute a fake instead of a live Redis server.
type RedisStore interface {
	GetProfileJSON(ctx context.Context, uid int64) (string, bool, error)
	GetProfileJSONByName(ctx context.Context, name string) (string, bool, error)
	SetProfileJSON(ctx context.Context, uid int64, json string) error
	SetProfileJSONByName(ctx context.Context, name, json string) error
	ValidateToken(ctx context.Context, uid int64, token string) (bool, error)
	SetUserNode(ctx context.Context, uid int64, nodeName string) error
	DeleteUserNode(ctx context.Context, uid int64) error
	IncrLoginCount(ctx context.Context, nodeName string) error
	DecrLoginCount(ctx context.Context, nodeName string) error
	LookupUserNode(ctx context.Context, uid int64) (string, bool, error)
}

// Profile is the JSON-cacheable projection of store.Profile that spec.md
// §7's "user profile" data shape names.
type Profile struct {
	UID   int64  `json:"uid"`
	Name  string `json:"name"`
	Pwd   string `json:"pwd"`
	Email string `json:"email"`
	Nick  string `json:"nick"`
	Desc  string `json:"desc"`
	Sex   int    `json:"sex"`
	Icon  string `json:"icon"`
}

func fromStore(p *store.Profile) Profile {
	return Profile{
		UID: p.UID, Name: p.Name, Pwd: p.PwdHash, Email: p.Email,
		Nick: p.Nick, Desc: p.Desc, Sex: p.Sex, Icon: p.Icon,
	}
}

// Cache is the read-through profile cache. Redis and DB errors are never
// propagated to callers as distinct error values; per spec.md §4.7's
// failure policy, they degrade to a plain miss so the caller maps that to
// a user-visible UidInvalid.
type Cache struct {
	redis RedisStore
	store store.Store
}

// New constructs a Cache over a Redis client and relational store.
func New(redis RedisStore, st store.Store) *Cache {
	return &Cache{redis: redis, store: st}
}

// IsNumeric reports whether uidOrName is all-digits, spec.md §4.6
// Search-user's "uid is either all-digits ... or otherwise" routing rule.
func IsNumeric(uidOrName string) bool {
	if uidOrName == "" {
		return false
	}
	for _, r := range uidOrName {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// GetUser resolves a profile by id or name: Redis hit returns immediately;
// a miss falls through to the relational store and, on a DB hit, backfills
// Redis before returning. A genuine miss on both returns (zero, false).
func (c *Cache) GetUser(ctx context.Context, uidOrName string) (Profile, bool) {
	if IsNumeric(uidOrName) {
		uid, err := strconv.ParseInt(uidOrName, 10, 64)
		if err != nil {
			return Profile{}, false
		}
		return c.getByUID(ctx, uid)
	}
	return c.getByName(ctx, uidOrName)
}

func (c *Cache) getByUID(ctx context.Context, uid int64) (Profile, bool) {
	if raw, hit, err := c.redis.GetProfileJSON(ctx, uid); err != nil {
		log.Printf("presence: redis get profile uid=%d: %v", uid, err)
	} else if hit {
		var p Profile
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return p, true
		}
		log.Printf("presence: corrupt cached profile uid=%d: %v", uid, err)
	}

	sp, err := c.store.GetProfileByUID(ctx, uid)
	if err != nil {
		log.Printf("presence: store get profile uid=%d: %v", uid, err)
		return Profile{}, false
	}
	if sp == nil {
		return Profile{}, false
	}
	p := fromStore(sp)
	c.backfill(ctx, p)
	return p, true
}

func (c *Cache) getByName(ctx context.Context, name string) (Profile, bool) {
	if raw, hit, err := c.redis.GetProfileJSONByName(ctx, name); err != nil {
		log.Printf("presence: redis get profile name=%s: %v", name, err)
	} else if hit {
		var p Profile
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return p, true
		}
		log.Printf("presence: corrupt cached profile name=%s: %v", name, err)
	}

	sp, err := c.store.GetProfileByName(ctx, name)
	if err != nil {
		log.Printf("presence: store get profile name=%s: %v", name, err)
		return Profile{}, false
	}
	if sp == nil {
		return Profile{}, false
	}
	p := fromStore(sp)
	c.backfill(ctx, p)
	return p, true
}

func (c *Cache) backfill(ctx context.Context, p Profile) {
	data, err := json.Marshal(p)
	if err != nil {
		log.Printf("presence: marshal profile uid=%d: %v", p.UID, err)
		return
	}
	if err := c.redis.SetProfileJSON(ctx, p.UID, string(data)); err != nil {
		log.Printf("presence: backfill uid=%d: %v", p.UID, err)
	}
	if p.Name != "" {
		if err := c.redis.SetProfileJSONByName(ctx, p.Name, string(data)); err != nil {
			log.Printf("presence: backfill name=%s: %v", p.Name, err)
		}
	}
}

// ValidateLogin validates a login token through Redis, wrapping the
// backing client's error policy (Redis errors surface as invalid, per
// spec.md §4.6's failure policy).
func (c *Cache) ValidateLogin(ctx context.Context, uid int64, token string) bool {
	ok, err := c.redis.ValidateToken(ctx, uid, token)
	if err != nil {
		log.Printf("presence: validate token uid=%d: %v", uid, err)
		return false
	}
	return ok
}

// MarkLoggedIn publishes USERIP:<uid> and increments LOGIN_COUNT[nodeName],
// spec.md §4.6 Login's post-success side effects.
func (c *Cache) MarkLoggedIn(ctx context.Context, uid int64, nodeName string) error {
	if err := c.redis.SetUserNode(ctx, uid, nodeName); err != nil {
		return errors.Trace(err)
	}
	if err := c.redis.IncrLoginCount(ctx, nodeName); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// MarkLoggedOut reverses MarkLoggedIn's LOGIN_COUNT side effect and
// revokes the presence record (spec.md §4.6's "revoke it on clean
// eviction").
func (c *Cache) MarkLoggedOut(ctx context.Context, uid int64, nodeName string) error {
	if err := c.redis.DeleteUserNode(ctx, uid); err != nil {
		log.Printf("presence: delete user node uid=%d: %v", uid, err)
	}
	if err := c.redis.DecrLoginCount(ctx, nodeName); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// LookupNode resolves which node currently owns uid's session, for C8's
// routing decision.
func (c *Cache) LookupNode(ctx context.Context, uid int64) (string, bool) {
	node, ok, err := c.redis.LookupUserNode(ctx, uid)
	if err != nil {
		log.Printf("presence: lookup node uid=%d: %v", uid, err)
		return "", false
	}
	return node, ok
}
