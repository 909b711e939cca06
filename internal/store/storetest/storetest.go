// Package storetest holds the behavioral suite every store.Store must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/store"
)

// Run executes the suite. newStore must return an empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"FindOpenMatchEarliest", testFindOpenMatchEarliest},
		{"FindOpenMatchSkipsMemberAndFull", testFindOpenMatchSkipsMemberAndFull},
		{"RemoveLastParticipantDeletes", testRemoveLastParticipantDeletes},
		{"RemoveTwiceIsNoop", testRemoveTwiceIsNoop},
		{"RollbackOnError", testRollbackOnError},
		{"JoinCodeLookup", testJoinCodeLookup},
		{"SetStatus", testSetStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func inTx(t *testing.T, s store.Store, fn func(tx store.Tx) error) {
	t.Helper()
	if err := s.InTx(context.Background(), fn); err != nil {
		t.Fatalf("InTx: %v", err)
	}
}

func create(t *testing.T, s store.Store, config string, at time.Time, participants ...domain.ProfileID) *domain.Match {
	t.Helper()
	m := domain.NewMatch(config, at)
	m.Participants = participants
	inTx(t, s, func(tx store.Tx) error { return tx.CreateMatch(m) })
	return m
}

func testCreateAndGet(t *testing.T, s store.Store) {
	m := create(t, s, "cfg-A", epoch, "p1", "p2")
	inTx(t, s, func(tx store.Tx) error {
		got, err := tx.GetMatch(m.ID)
		if err != nil {
			return err
		}
		if got.Config != "cfg-A" || got.Status != domain.MatchOpen {
			t.Errorf("got %+v, want config cfg-A status OPEN", got)
		}
		if len(got.Participants) != 2 || got.Participants[0] != "p1" || got.Participants[1] != "p2" {
			t.Errorf("participants = %v, want [p1 p2]", got.Participants)
		}
		if !got.CreatedAt.Equal(epoch) {
			t.Errorf("created_at = %v, want %v", got.CreatedAt, epoch)
		}
		return nil
	})
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.GetMatch("missing")
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetMatch(missing) err = %v, want ErrNotFound", err)
	}
}

func testFindOpenMatchEarliest(t *testing.T, s store.Store) {
	later := create(t, s, "cfg-A", epoch.Add(time.Minute), "p1")
	earlier := create(t, s, "cfg-A", epoch, "p2")
	create(t, s, "cfg-B", epoch.Add(-time.Hour), "p3")

	inTx(t, s, func(tx store.Tx) error {
		got, err := tx.FindOpenMatch("cfg-A", "p9", 0)
		if err != nil {
			return err
		}
		if got.ID != earlier.ID {
			t.Errorf("FindOpenMatch = %s, want earliest %s (later %s)", got.ID, earlier.ID, later.ID)
		}
		return nil
	})
}

func testFindOpenMatchSkipsMemberAndFull(t *testing.T, s store.Store) {
	member := create(t, s, "cfg-A", epoch, "p1")
	full := create(t, s, "cfg-A", epoch.Add(time.Second), "p2", "p3")
	closed := create(t, s, "cfg-A", epoch.Add(2*time.Second), "p4")
	open := create(t, s, "cfg-A", epoch.Add(3*time.Second), "p5")
	inTx(t, s, func(tx store.Tx) error { return tx.SetStatus(closed.ID, domain.MatchClosed) })

	inTx(t, s, func(tx store.Tx) error {
		got, err := tx.FindOpenMatch("cfg-A", "p1", 2)
		if err != nil {
			return err
		}
		if got.ID != open.ID {
			t.Errorf("FindOpenMatch = %s, want %s (skip member %s, full %s, closed %s)",
				got.ID, open.ID, member.ID, full.ID, closed.ID)
		}
		return nil
	})

	err := s.InTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.FindOpenMatch("cfg-none", "p1", 0)
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindOpenMatch(cfg-none) err = %v, want ErrNotFound", err)
	}
}

func testRemoveLastParticipantDeletes(t *testing.T, s store.Store) {
	m := create(t, s, "cfg-A", epoch, "p1", "p2")

	inTx(t, s, func(tx store.Tx) error {
		removed, remaining, err := tx.RemoveParticipant(m.ID, "p1")
		if err != nil {
			return err
		}
		if !removed || remaining != 1 {
			t.Errorf("RemoveParticipant(p1) = %v, %d; want true, 1", removed, remaining)
		}
		return nil
	})
	inTx(t, s, func(tx store.Tx) error {
		if _, err := tx.GetMatch(m.ID); err != nil {
			t.Errorf("match with one participant was deleted: %v", err)
		}
		_, remaining, err := tx.RemoveParticipant(m.ID, "p2")
		if err != nil {
			return err
		}
		if remaining != 0 {
			t.Errorf("remaining = %d, want 0", remaining)
		}
		return nil
	})
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.GetMatch(m.ID)
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("empty match still present: err = %v", err)
	}
}

func testRemoveTwiceIsNoop(t *testing.T, s store.Store) {
	m := create(t, s, "cfg-A", epoch, "p1", "p2")
	for i := 0; i < 2; i++ {
		inTx(t, s, func(tx store.Tx) error {
			removed, remaining, err := tx.RemoveParticipant(m.ID, "p1")
			if err != nil {
				return err
			}
			if want := i == 0; removed != want {
				t.Errorf("call %d: removed = %v, want %v", i, removed, want)
			}
			if remaining != 1 {
				t.Errorf("call %d: remaining = %d, want 1", i, remaining)
			}
			return nil
		})
	}
}

func testRollbackOnError(t *testing.T, s store.Store) {
	m := create(t, s, "cfg-A", epoch, "p1")
	boom := errors.New("boom")
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		if err := tx.AddParticipant(m.ID, "p2"); err != nil {
			return err
		}
		if err := tx.SetStatus(m.ID, domain.MatchClosed); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx err = %v, want boom", err)
	}
	inTx(t, s, func(tx store.Tx) error {
		got, err := tx.GetMatch(m.ID)
		if err != nil {
			return err
		}
		if got.Status != domain.MatchOpen || len(got.Participants) != 1 {
			t.Errorf("rolled back tx leaked: %+v", got)
		}
		return nil
	})
}

func testJoinCodeLookup(t *testing.T, s store.Store) {
	m := domain.NewMatch("cfg-A", epoch)
	m.JoinCode = "ABCD1234"
	m.Participants = []domain.ProfileID{"p1"}
	inTx(t, s, func(tx store.Tx) error { return tx.CreateMatch(m) })

	inTx(t, s, func(tx store.Tx) error {
		got, err := tx.GetMatchByCode("ABCD1234")
		if err != nil {
			return err
		}
		if got.ID != m.ID {
			t.Errorf("GetMatchByCode = %s, want %s", got.ID, m.ID)
		}
		return nil
	})
}

func testSetStatus(t *testing.T, s store.Store) {
	m := create(t, s, "cfg-A", epoch, "p1")
	inTx(t, s, func(tx store.Tx) error { return tx.SetStatus(m.ID, domain.MatchClosed) })
	inTx(t, s, func(tx store.Tx) error { return tx.SetStatus(m.ID, domain.MatchClosed) })
	inTx(t, s, func(tx store.Tx) error {
		got, err := tx.GetMatch(m.ID)
		if err != nil {
			return err
		}
		if got.Status != domain.MatchClosed {
			t.Errorf("status = %v, want CLOSED", got.Status)
		}
		return nil
	})
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		return tx.SetStatus("missing", domain.MatchOpen)
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("SetStatus(missing) err = %v, want ErrNotFound", err)
	}
}
