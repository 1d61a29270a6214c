// Package store implements the chat node's relational store (user
// profiles, friend-apply rows, and friendships) over MySQL via
// database/sql and github.com/go-sql-driver/mysql.
//
// spec.md §1 lists "SQL schema and queries" as an external collaborator,
// so the schema here is this module's own concrete choice, grounded on the
// field shapes spec.md §7 names (user profile {uid, name, nick, email,
// pwd-hash, sex, desc, icon}) and on the original's MysqlMgr call sites
// referenced from ChatGrpcClient.cpp (GetUser, and the apply/friend flow
// implied by LogicSystem's Add-friend-apply / Auth-friend-apply handlers).
package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pingcap/errors"
)

// Profile is a user's relational profile row.
type Profile struct {
	UID     int64  `json:"uid"`
	Name    string `json:"name"`
	PwdHash string `json:"pwd"`
	Email   string `json:"email"`
	Nick    string `json:"nick"`
	Desc    string `json:"desc"`
	Sex     int    `json:"sex"`
	Icon    string `json:"icon"`
}

// FriendApply is one pending or resolved friend-request row.
type FriendApply struct {
	ApplyUID int64  `json:"applyuid"`
	ToUID    int64  `json:"touid"`
	Name     string `json:"applyname"`
	Desc     string `json:"desc"`
	Status   int    `json:"status"` // 0 pending, 1 authorized
}

// Friend is one resolved bidirectional friendship, from Owner's point of
// view: Peer is the friend, Remark is Owner's local nickname for them.
type Friend struct {
	Peer   int64  `json:"uid"`
	Remark string `json:"back"`
}

// Store is the relational persistence surface C6 handlers and C9 use.
type Store interface {
	GetProfileByUID(ctx context.Context, uid int64) (*Profile, error)
	GetProfileByName(ctx context.Context, name string) (*Profile, error)

	AddFriendApply(ctx context.Context, a FriendApply) error
	ListFriendApplies(ctx context.Context, uid int64, offset, limit int) ([]FriendApply, error)
	AuthFriendApply(ctx context.Context, fromUID, toUID int64, back string) error
	AddFriendship(ctx context.Context, ownerUID, peerUID int64, remark string) error
	ListFriends(ctx context.Context, uid int64) ([]Friend, error)
}

// MySQLStore implements Store over database/sql + go-sql-driver/mysql.
type MySQLStore struct {
	db *sql.DB
}

// Open connects to dsn (a go-sql-driver/mysql DSN) and applies pool limits.
func Open(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime int64) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Annotate(err, "store: open")
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	if connMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(connMaxLifetime))
	}
	return &MySQLStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

// Ping verifies connectivity at startup (spec.md §6's DB-unreachable
// startup-failure exit condition).
func (s *MySQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Annotate(err, "store: ping")
	}
	return nil
}

const profileColumns = "uid, name, pwd, email, nick, desc, sex, icon"

func scanProfile(row *sql.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.UID, &p.Name, &p.PwdHash, &p.Email, &p.Nick, &p.Desc, &p.Sex, &p.Icon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &p, nil
}

// GetProfileByUID looks up a user profile by numeric id; returns (nil, nil)
// on a miss.
func (s *MySQLStore) GetProfileByUID(ctx context.Context, uid int64) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM user WHERE uid = ?", uid)
	p, err := scanProfile(row)
	return p, errors.Annotatef(err, "store: get profile by uid=%d", uid)
}

// GetProfileByName looks up a user profile by name; returns (nil, nil) on
// a miss.
func (s *MySQLStore) GetProfileByName(ctx context.Context, name string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM user WHERE name = ?", name)
	p, err := scanProfile(row)
	return p, errors.Annotatef(err, "store: get profile by name=%s", name)
}

// AddFriendApply persists a pending friend-request row.
func (s *MySQLStore) AddFriendApply(ctx context.Context, a FriendApply) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO friend_apply (apply_uid, to_uid, apply_name, apply_desc, status) VALUES (?, ?, ?, ?, 0)",
		a.ApplyUID, a.ToUID, a.Name, a.Desc)
	return errors.Annotatef(err, "store: add friend apply applyuid=%d touid=%d", a.ApplyUID, a.ToUID)
}

// ListFriendApplies returns the paged list of friend-apply rows addressed
// to uid, newest first.
func (s *MySQLStore) ListFriendApplies(ctx context.Context, uid int64, offset, limit int) ([]FriendApply, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT apply_uid, to_uid, apply_name, apply_desc, status FROM friend_apply WHERE to_uid = ? ORDER BY id DESC LIMIT ? OFFSET ?",
		uid, limit, offset)
	if err != nil {
		return nil, errors.Annotatef(err, "store: list friend applies uid=%d", uid)
	}
	defer rows.Close()

	var out []FriendApply
	for rows.Next() {
		var a FriendApply
		if err := rows.Scan(&a.ApplyUID, &a.ToUID, &a.Name, &a.Desc, &a.Status); err != nil {
			return nil, errors.Trace(err)
		}
		out = append(out, a)
	}
	return out, errors.Trace(rows.Err())
}

// AuthFriendApply marks the pending apply row from fromUID to toUID
// authorized.
func (s *MySQLStore) AuthFriendApply(ctx context.Context, fromUID, toUID int64, back string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE friend_apply SET status = 1 WHERE apply_uid = ? AND to_uid = ?", fromUID, toUID)
	return errors.Annotatef(err, "store: auth friend apply fromuid=%d touid=%d back=%s", fromUID, toUID, back)
}

// AddFriendship inserts one directed friendship edge (ownerUID -> peerUID
// with ownerUID's local nickname for peerUID). The auth-friend-apply
// handler calls this twice, once per direction, to make the friendship
// bidirectional.
func (s *MySQLStore) AddFriendship(ctx context.Context, ownerUID, peerUID int64, remark string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO friend (owner_uid, peer_uid, remark) VALUES (?, ?, ?)", ownerUID, peerUID, remark)
	return errors.Annotatef(err, "store: add friendship owner=%d peer=%d", ownerUID, peerUID)
}

// ListFriends returns uid's full friend list.
func (s *MySQLStore) ListFriends(ctx context.Context, uid int64) ([]Friend, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT peer_uid, remark FROM friend WHERE owner_uid = ?", uid)
	if err != nil {
		return nil, errors.Annotatef(err, "store: list friends uid=%d", uid)
	}
	defer rows.Close()

	var out []Friend
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.Peer, &f.Remark); err != nil {
			return nil, errors.Trace(err)
		}
		out = append(out, f)
	}
	return out, errors.Trace(rows.Err())
}
