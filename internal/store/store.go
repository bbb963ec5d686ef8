// Package store is the persistent identity store: player records, bot records
// and the mirrored group rosters. All mutation goes through the auth authority,
// which is the only writer; the store itself only guarantees single-statement
// atomicity (plus explicit transactions for the bulk roster replace).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Player is one in-world account. QQ == 0 means unbound.
type Player struct {
	Name      string
	UUID      uuid.UUID
	QQ        int64
	CreatedAt time.Time
}

// Bot is a derived identity owned by a bound player.
type Bot struct {
	Name      string
	OwnerName string
	UUID      uuid.UUID
	CreatedAt time.Time
}

// OfflineUUID derives the stable UUID for a player first seen by name only,
// using the offline-mode namespace.
func OfflineUUID(name string) uuid.UUID {
	return uuid.NewMD5(uuid.Nil, []byte("OfflinePlayer:"+name))
}

// BotUUID derives the stable UUID for a bot name. Repeated creation with the
// same name always yields the same identity.
func BotUUID(name string) uuid.UUID {
	return uuid.NewMD5(uuid.Nil, []byte("Bot-"+name))
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS auth_players (
			name TEXT PRIMARY KEY COLLATE NOCASE,
			uuid TEXT NOT NULL,
			qq INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_auth_players_uuid ON auth_players(uuid);`,
		`CREATE INDEX IF NOT EXISTS idx_auth_players_qq ON auth_players(qq);`,
		`CREATE TABLE IF NOT EXISTS auth_bots (
			bot_name TEXT PRIMARY KEY COLLATE NOCASE,
			owner_name TEXT NOT NULL COLLATE NOCASE,
			bot_uuid TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_auth_bots_owner ON auth_bots(owner_name);`,
		`CREATE TABLE IF NOT EXISTS group_members (
			group_id INTEGER NOT NULL,
			qq INTEGER NOT NULL,
			PRIMARY KEY (group_id, qq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_group_members_qq ON group_members(qq);`,
	}
	for _, st := range stmts {
		if _, err := db.Exec(st); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------- players

// UpsertPlayer records a player on join: inserts a fresh unbound record or
// refreshes the stored UUID for an existing name.
func (s *Store) UpsertPlayer(name string, id uuid.UUID, now time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO auth_players (name, uuid, qq, created_at) VALUES (?, ?, 0, ?)
		 ON CONFLICT(name) DO UPDATE SET uuid = excluded.uuid`,
		name, id.String(), now.UnixMilli())
	return err
}

// EnsurePlayer creates a record by name with a derived offline UUID if none
// exists (admin registration before first join).
func (s *Store) EnsurePlayer(name string, now time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO auth_players (name, uuid, qq, created_at) VALUES (?, ?, 0, ?)`,
		name, OfflineUUID(name).String(), now.UnixMilli())
	return err
}

func (s *Store) PlayerByName(name string) (Player, bool, error) {
	row := s.db.QueryRow(
		`SELECT name, uuid, qq, created_at FROM auth_players WHERE name = ?`,
		name)
	return scanPlayer(row)
}

func (s *Store) PlayerByUUID(id uuid.UUID) (Player, bool, error) {
	row := s.db.QueryRow(
		`SELECT name, uuid, qq, created_at FROM auth_players WHERE uuid = ?`,
		id.String())
	return scanPlayer(row)
}

// FirstPlayerByQQ returns one player bound to the given QQ, if any.
func (s *Store) FirstPlayerByQQ(qq int64) (Player, bool, error) {
	row := s.db.QueryRow(
		`SELECT name, uuid, qq, created_at FROM auth_players WHERE qq = ? LIMIT 1`, qq)
	return scanPlayer(row)
}

func scanPlayer(row *sql.Row) (Player, bool, error) {
	var p Player
	var rawUUID string
	var created int64
	err := row.Scan(&p.Name, &rawUUID, &p.QQ, &created)
	if err == sql.ErrNoRows {
		return Player{}, false, nil
	}
	if err != nil {
		return Player{}, false, err
	}
	p.UUID, err = uuid.Parse(rawUUID)
	if err != nil {
		return Player{}, false, fmt.Errorf("corrupt player uuid %q: %w", rawUUID, err)
	}
	p.CreatedAt = time.UnixMilli(created)
	return p, true, nil
}

// SetBinding sets or clears (qq == 0) the binding of a player.
func (s *Store) SetBinding(id uuid.UUID, qq int64) error {
	_, err := s.db.Exec(`UPDATE auth_players SET qq = ? WHERE uuid = ?`, qq, id.String())
	return err
}

func (s *Store) SetBindingByName(name string, qq int64) error {
	_, err := s.db.Exec(`UPDATE auth_players SET qq = ? WHERE name = ?`, qq, name)
	return err
}

// CountByQQ returns how many players are bound to a QQ.
func (s *Store) CountByQQ(qq int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM auth_players WHERE qq = ?`, qq).Scan(&n)
	return n, err
}

// AllPlayers returns every player record, ordered by name.
func (s *Store) AllPlayers() ([]Player, error) {
	rows, err := s.db.Query(`SELECT name, uuid, qq, created_at FROM auth_players ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Player
	for rows.Next() {
		var p Player
		var rawUUID string
		var created int64
		if err := rows.Scan(&p.Name, &rawUUID, &p.QQ, &created); err != nil {
			return nil, err
		}
		p.UUID, err = uuid.Parse(rawUUID)
		if err != nil {
			return nil, fmt.Errorf("corrupt player uuid %q: %w", rawUUID, err)
		}
		p.CreatedAt = time.UnixMilli(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ------------------------------------------------------------------ bots

// CreateBot inserts a derived identity. The NOCASE primary key makes a
// same-name insert fail regardless of case.
func (s *Store) CreateBot(botName, ownerName string, now time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO auth_bots (bot_name, owner_name, bot_uuid, created_at) VALUES (?, ?, ?, ?)`,
		botName, ownerName, BotUUID(botName).String(), now.UnixMilli())
	return err
}

func (s *Store) DeleteBot(botName string) error {
	_, err := s.db.Exec(`DELETE FROM auth_bots WHERE bot_name = ?`, botName)
	return err
}

func (s *Store) BotByName(name string) (Bot, bool, error) {
	row := s.db.QueryRow(
		`SELECT bot_name, owner_name, bot_uuid, created_at FROM auth_bots WHERE bot_name = ?`,
		name)
	var b Bot
	var rawUUID string
	var created int64
	err := row.Scan(&b.Name, &b.OwnerName, &rawUUID, &created)
	if err == sql.ErrNoRows {
		return Bot{}, false, nil
	}
	if err != nil {
		return Bot{}, false, err
	}
	b.UUID, err = uuid.Parse(rawUUID)
	if err != nil {
		return Bot{}, false, fmt.Errorf("corrupt bot uuid %q: %w", rawUUID, err)
	}
	b.CreatedAt = time.UnixMilli(created)
	return b, true, nil
}

// BotsByOwner returns an owner's bots in creation order.
func (s *Store) BotsByOwner(ownerName string) ([]Bot, error) {
	rows, err := s.db.Query(
		`SELECT bot_name, owner_name, bot_uuid, created_at FROM auth_bots
		 WHERE owner_name = ? ORDER BY created_at, bot_name`,
		ownerName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bot
	for rows.Next() {
		var b Bot
		var rawUUID string
		var created int64
		if err := rows.Scan(&b.Name, &b.OwnerName, &rawUUID, &created); err != nil {
			return nil, err
		}
		b.UUID, err = uuid.Parse(rawUUID)
		if err != nil {
			return nil, fmt.Errorf("corrupt bot uuid %q: %w", rawUUID, err)
		}
		b.CreatedAt = time.UnixMilli(created)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) AllBots() ([]Bot, error) {
	rows, err := s.db.Query(
		`SELECT bot_name, owner_name, bot_uuid, created_at FROM auth_bots
		 ORDER BY owner_name, created_at, bot_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bot
	for rows.Next() {
		var b Bot
		var rawUUID string
		var created int64
		if err := rows.Scan(&b.Name, &b.OwnerName, &rawUUID, &created); err != nil {
			return nil, err
		}
		b.UUID, err = uuid.Parse(rawUUID)
		if err != nil {
			return nil, fmt.Errorf("corrupt bot uuid %q: %w", rawUUID, err)
		}
		b.CreatedAt = time.UnixMilli(created)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) CountBotsByOwner(ownerName string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM auth_bots WHERE owner_name = ?`,
		ownerName).Scan(&n)
	return n, err
}

// IsBot reports whether a UUID belongs to a registered bot.
func (s *Store) IsBot(id uuid.UUID) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM auth_bots WHERE bot_uuid = ?`, id.String()).Scan(&n)
	return n > 0, err
}

// ----------------------------------------------------------- group roster

// ReplaceGroupMembers replaces a group's mirrored member set wholesale.
func (s *Store) ReplaceGroupMembers(groupID int64, members []int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM group_members WHERE group_id = ?`, groupID); err != nil {
		return err
	}
	for _, qq := range members {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO group_members (group_id, qq) VALUES (?, ?)`,
			groupID, qq); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) UpsertGroupMember(groupID, qq int64) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO group_members (group_id, qq) VALUES (?, ?)`, groupID, qq)
	return err
}

func (s *Store) RemoveGroupMember(groupID, qq int64) error {
	_, err := s.db.Exec(`DELETE FROM group_members WHERE group_id = ? AND qq = ?`, groupID, qq)
	return err
}

// IsMemberOfAny reports whether a QQ is a member of any of the given groups.
func (s *Store) IsMemberOfAny(qq int64, groups []int64) (bool, error) {
	if len(groups) == 0 {
		return false, nil
	}
	q := strings.Builder{}
	q.WriteString(`SELECT 1 FROM group_members WHERE qq = ? AND group_id IN (`)
	args := []any{qq}
	for i, g := range groups {
		if i > 0 {
			q.WriteString(",")
		}
		q.WriteString("?")
		args = append(args, g)
	}
	q.WriteString(`) LIMIT 1`)
	var one int
	err := s.db.QueryRow(q.String(), args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// GroupMemberCount returns the mirrored size of one group.
func (s *Store) GroupMemberCount(groupID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM group_members WHERE group_id = ?`, groupID).Scan(&n)
	return n, err
}
