// Package sqlite is a store.Store backed by a pooled SQLite database.
// Every InTx runs in an IMMEDIATE transaction on its own connection.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id         TEXT PRIMARY KEY,
	config     TEXT NOT NULL,
	status     INTEGER NOT NULL,
	join_code  TEXT,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS matches_join_code ON matches(join_code) WHERE join_code IS NOT NULL;
CREATE INDEX IF NOT EXISTS matches_open ON matches(config, status, created_at);
CREATE TABLE IF NOT EXISTS participants (
	match_id   TEXT NOT NULL,
	profile_id TEXT NOT NULL,
	PRIMARY KEY (match_id, profile_id)
);
`

type Store struct {
	pool *pool
}

var _ store.Store = (*Store)(nil)

// Open creates the database file if needed. Path ":memory:" only works
// with poolSize 1 since every in-memory connection is its own database.
func Open(path string, poolSize int) (*Store, error) {
	p, err := openPool(path, poolSize, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, schema, nil)
	})
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() error { return s.pool.close() }

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	defer endTx(&err)

	return fn(&tx{conn: conn})
}

type tx struct {
	conn *sqlite.Conn
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, store.ErrNotFound)
}

func (t *tx) FindOpenMatch(config string, exclude domain.ProfileID, maxParticipants int) (*domain.Match, error) {
	const query = `
SELECT m.id FROM matches m
WHERE m.config = ? AND m.status = ?
  AND NOT EXISTS (SELECT 1 FROM participants p WHERE p.match_id = m.id AND p.profile_id = ?)
  AND (? <= 0 OR (SELECT COUNT(*) FROM participants p WHERE p.match_id = m.id) < ?)
ORDER BY m.created_at, m.rowid
LIMIT 1`
	var id domain.MatchID
	err := sqlitex.Execute(t.conn, query, &sqlitex.ExecOptions{
		Args: []any{config, int(domain.MatchOpen), string(exclude), maxParticipants, maxParticipants},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id = domain.MatchID(stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: find open match: %w", err)
	}
	if id == "" {
		return nil, notFound("open match for", config)
	}
	return t.GetMatch(id)
}

func (t *tx) selectMatch(where string, arg any) (*domain.Match, error) {
	var m *domain.Match
	err := sqlitex.Execute(t.conn,
		"SELECT id, config, status, join_code, created_at FROM matches WHERE "+where,
		&sqlitex.ExecOptions{
			Args: []any{arg},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				m = &domain.Match{
					ID:        domain.MatchID(stmt.ColumnText(0)),
					Config:    stmt.ColumnText(1),
					Status:    domain.MatchStatus(stmt.ColumnInt(2)),
					JoinCode:  domain.JoinCode(stmt.ColumnText(3)),
					CreatedAt: time.Unix(0, stmt.ColumnInt64(4)).UTC(),
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite: select match: %w", err)
	}
	if m == nil {
		return nil, nil
	}
	if m.Participants, err = t.participants(m.ID); err != nil {
		return nil, err
	}
	return m, nil
}

func (t *tx) GetMatch(id domain.MatchID) (*domain.Match, error) {
	m, err := t.selectMatch("id = ?", string(id))
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, notFound("match", id)
	}
	return m, nil
}

func (t *tx) GetMatchByCode(code domain.JoinCode) (*domain.Match, error) {
	m, err := t.selectMatch("join_code = ?", string(code))
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, notFound("join code", code)
	}
	return m, nil
}

func (t *tx) CreateMatch(m *domain.Match) error {
	var code any
	if m.JoinCode != "" {
		code = string(m.JoinCode)
	}
	err := sqlitex.Execute(t.conn,
		"INSERT INTO matches (id, config, status, join_code, created_at) VALUES (?, ?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{string(m.ID), m.Config, int(m.Status), code, m.CreatedAt.UnixNano()},
		})
	if err != nil {
		return fmt.Errorf("sqlite: create match %s: %w", m.ID, err)
	}
	for _, p := range m.Participants {
		if err := t.AddParticipant(m.ID, p); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) SetStatus(id domain.MatchID, status domain.MatchStatus) error {
	err := sqlitex.Execute(t.conn, "UPDATE matches SET status = ? WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{int(status), string(id)}})
	if err != nil {
		return fmt.Errorf("sqlite: set status %s: %w", id, err)
	}
	if t.conn.Changes() == 0 {
		return notFound("match", id)
	}
	return nil
}

func (t *tx) exists(id domain.MatchID) (bool, error) {
	found := false
	err := sqlitex.Execute(t.conn, "SELECT 1 FROM matches WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{string(id)},
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("sqlite: lookup %s: %w", id, err)
	}
	return found, nil
}

func (t *tx) AddParticipant(id domain.MatchID, profile domain.ProfileID) error {
	ok, err := t.exists(id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("match", id)
	}
	err = sqlitex.Execute(t.conn,
		"INSERT OR IGNORE INTO participants (match_id, profile_id) VALUES (?, ?)",
		&sqlitex.ExecOptions{Args: []any{string(id), string(profile)}})
	if err != nil {
		return fmt.Errorf("sqlite: add participant %s to %s: %w", profile, id, err)
	}
	return nil
}

func (t *tx) RemoveParticipant(id domain.MatchID, profile domain.ProfileID) (bool, int, error) {
	err := sqlitex.Execute(t.conn,
		"DELETE FROM participants WHERE match_id = ? AND profile_id = ?",
		&sqlitex.ExecOptions{Args: []any{string(id), string(profile)}})
	if err != nil {
		return false, 0, fmt.Errorf("sqlite: remove participant %s from %s: %w", profile, id, err)
	}
	removed := t.conn.Changes() > 0

	rest, err := t.participants(id)
	if err != nil {
		return removed, 0, err
	}
	if len(rest) == 0 {
		if err := t.DeleteMatch(id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return removed, 0, err
		}
	}
	return removed, len(rest), nil
}

func (t *tx) participants(id domain.MatchID) ([]domain.ProfileID, error) {
	var out []domain.ProfileID
	err := sqlitex.Execute(t.conn,
		"SELECT profile_id FROM participants WHERE match_id = ? ORDER BY rowid",
		&sqlitex.ExecOptions{
			Args: []any{string(id)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, domain.ProfileID(stmt.ColumnText(0)))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite: participants of %s: %w", id, err)
	}
	return out, nil
}

func (t *tx) Participants(id domain.MatchID) ([]domain.ProfileID, error) {
	ok, err := t.exists(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("match", id)
	}
	return t.participants(id)
}

func (t *tx) DeleteMatch(id domain.MatchID) error {
	err := sqlitex.Execute(t.conn, "DELETE FROM matches WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{string(id)}})
	if err != nil {
		return fmt.Errorf("sqlite: delete match %s: %w", id, err)
	}
	if t.conn.Changes() == 0 {
		return notFound("match", id)
	}
	err = sqlitex.Execute(t.conn, "DELETE FROM participants WHERE match_id = ?",
		&sqlitex.ExecOptions{Args: []any{string(id)}})
	if err != nil {
		return fmt.Errorf("sqlite: delete participants of %s: %w", id, err)
	}
	return nil
}
