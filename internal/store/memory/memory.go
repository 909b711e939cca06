// Package memory is an in-process implementation of store.Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/store"
)

type entry struct {
	match *domain.Match
	seq   uint64
}

// Store serializes transactions behind one mutex. Each transaction works
// on a copy-on-write overlay that is applied only on commit.
type Store struct {
	mu      sync.Mutex
	matches map[domain.MatchID]*entry
	seq     uint64
	closed  bool
}

func New() *Store {
	return &Store{matches: make(map[domain.MatchID]*entry)}
}

var _ store.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	tx := &tx{s: s, dirty: make(map[domain.MatchID]*entry)}
	defer func() {
		// a panicking fn leaves err nil; it must not commit
		if r := recover(); r != nil {
			panic(r)
		}
		if err == nil {
			tx.commit()
		}
	}()
	return fn(tx)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len reports the number of stored matches.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

type tx struct {
	s *Store
	// dirty holds rewritten entries; a nil value marks a deletion.
	dirty map[domain.MatchID]*entry
}

func (t *tx) commit() {
	for id, e := range t.dirty {
		if e == nil {
			delete(t.s.matches, id)
			continue
		}
		t.s.matches[id] = e
	}
}

func (t *tx) lookup(id domain.MatchID) (*entry, bool) {
	if e, ok := t.dirty[id]; ok {
		return e, e != nil
	}
	e, ok := t.s.matches[id]
	return e, ok
}

// writable returns an entry private to this transaction.
func (t *tx) writable(id domain.MatchID) (*entry, error) {
	if e, ok := t.dirty[id]; ok {
		if e == nil {
			return nil, fmt.Errorf("match %s: %w", id, store.ErrNotFound)
		}
		return e, nil
	}
	e, ok := t.s.matches[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, store.ErrNotFound)
	}
	c := &entry{match: e.match.Clone(), seq: e.seq}
	t.dirty[id] = c
	return c, nil
}

func (t *tx) all() []*entry {
	out := make([]*entry, 0, len(t.s.matches)+len(t.dirty))
	for id, e := range t.s.matches {
		if _, ok := t.dirty[id]; ok {
			continue
		}
		out = append(out, e)
	}
	for _, e := range t.dirty {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (t *tx) FindOpenMatch(config string, exclude domain.ProfileID, maxParticipants int) (*domain.Match, error) {
	candidates := t.all()
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.match.CreatedAt.Equal(b.match.CreatedAt) {
			return a.match.CreatedAt.Before(b.match.CreatedAt)
		}
		return a.seq < b.seq
	})
	for _, e := range candidates {
		m := e.match
		if m.Config != config || m.Status != domain.MatchOpen || m.HasParticipant(exclude) {
			continue
		}
		if maxParticipants > 0 && len(m.Participants) >= maxParticipants {
			continue
		}
		return m.Clone(), nil
	}
	return nil, fmt.Errorf("open match for %q: %w", config, store.ErrNotFound)
}

func (t *tx) GetMatch(id domain.MatchID) (*domain.Match, error) {
	e, ok := t.lookup(id)
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, store.ErrNotFound)
	}
	return e.match.Clone(), nil
}

func (t *tx) GetMatchByCode(code domain.JoinCode) (*domain.Match, error) {
	for _, e := range t.all() {
		if e.match.JoinCode == code {
			return e.match.Clone(), nil
		}
	}
	return nil, fmt.Errorf("join code %s: %w", code, store.ErrNotFound)
}

func (t *tx) CreateMatch(m *domain.Match) error {
	if _, ok := t.lookup(m.ID); ok {
		return fmt.Errorf("match %s already exists", m.ID)
	}
	t.s.seq++
	t.dirty[m.ID] = &entry{match: m.Clone(), seq: t.s.seq}
	return nil
}

func (t *tx) SetStatus(id domain.MatchID, status domain.MatchStatus) error {
	e, err := t.writable(id)
	if err != nil {
		return err
	}
	e.match.Status = status
	return nil
}

func (t *tx) AddParticipant(id domain.MatchID, profile domain.ProfileID) error {
	e, err := t.writable(id)
	if err != nil {
		return err
	}
	if !e.match.HasParticipant(profile) {
		e.match.Participants = append(e.match.Participants, profile)
	}
	return nil
}

func (t *tx) RemoveParticipant(id domain.MatchID, profile domain.ProfileID) (bool, int, error) {
	e, ok := t.lookup(id)
	if !ok {
		return false, 0, nil
	}
	if !e.match.HasParticipant(profile) {
		return false, len(e.match.Participants), nil
	}
	w, err := t.writable(id)
	if err != nil {
		return false, 0, err
	}
	kept := w.match.Participants[:0]
	for _, p := range w.match.Participants {
		if p != profile {
			kept = append(kept, p)
		}
	}
	w.match.Participants = kept
	if len(kept) == 0 {
		t.dirty[id] = nil
	}
	return true, len(kept), nil
}

func (t *tx) Participants(id domain.MatchID) ([]domain.ProfileID, error) {
	e, ok := t.lookup(id)
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, store.ErrNotFound)
	}
	return e.match.Clone().Participants, nil
}

func (t *tx) DeleteMatch(id domain.MatchID) error {
	if _, ok := t.lookup(id); !ok {
		return fmt.Errorf("match %s: %w", id, store.ErrNotFound)
	}
	t.dirty[id] = nil
	return nil
}
