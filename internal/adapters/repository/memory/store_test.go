package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

var now = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) {
	t.Helper()
	err := s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		if err := tx.InsertTeacher(ctx, &domain.Teacher{ID: "t1", Name: "T", Code: "ABC234", Active: true}); err != nil {
			return err
		}
		for _, id := range []string{"p1", "p2"} {
			if err := tx.InsertParentSession(ctx, &domain.ParentSession{ID: id, DeviceToken: "dev-" + id, DisplayName: id}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func entry(id, parent string, status domain.EntryStatus, position int) *domain.QueueEntry {
	return &domain.QueueEntry{
		ID:              id,
		TeacherID:       "t1",
		ParentSessionID: parent,
		ChildName:       "Kid",
		Status:          status,
		Position:        position,
		JoinedAt:        now,
	}
}

func insert(s *Store, entries ...*domain.QueueEntry) error {
	return s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		for _, e := range entries {
			if err := tx.InsertEntry(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestInsertEntry_Uniqueness(t *testing.T) {
	tests := []struct {
		name    string
		entries []*domain.QueueEntry
		check   func(error) bool
	}{
		{
			name:    "distinct parents and positions",
			entries: []*domain.QueueEntry{entry("e1", "p1", domain.StatusCurrent, 1), entry("e2", "p2", domain.StatusWaiting, 2)},
			check:   func(err error) bool { return err == nil },
		},
		{
			name:    "same parent twice",
			entries: []*domain.QueueEntry{entry("e1", "p1", domain.StatusWaiting, 1), entry("e2", "p1", domain.StatusWaiting, 2)},
			check:   func(err error) bool { return errors.Is(err, domain.ErrDuplicateJoin) },
		},
		{
			name:    "same parent after completion",
			entries: []*domain.QueueEntry{entry("e1", "p1", domain.StatusCompleted, 1), entry("e2", "p1", domain.StatusWaiting, 1)},
			check:   func(err error) bool { return err == nil },
		},
		{
			name:    "shared active position",
			entries: []*domain.QueueEntry{entry("e1", "p1", domain.StatusCurrent, 1), entry("e2", "p2", domain.StatusWaiting, 1)},
			check:   domain.IsInvariantViolation,
		},
		{
			name:    "skipped entry keeps an old position",
			entries: []*domain.QueueEntry{entry("e1", "p1", domain.StatusSkipped, 1), entry("e2", "p2", domain.StatusCurrent, 1)},
			check:   func(err error) bool { return err == nil },
		},
		{
			name:    "non positive position",
			entries: []*domain.QueueEntry{entry("e1", "p1", domain.StatusWaiting, 0)},
			check:   domain.IsInvariantViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			seed(t, s)
			err := insert(s, tt.entries...)
			if !tt.check(err) {
				t.Fatalf("unexpected result %v", err)
			}
			if err != nil {
				entries, _ := s.Snapshot()
				if len(entries) != 0 {
					t.Errorf("failed unit must not commit, found %d entries", len(entries))
				}
			}
		})
	}
}

func TestInsertMeeting_OneOpenPerTeacherAndParent(t *testing.T) {
	s := NewStore()
	seed(t, s)
	if err := insert(s, entry("e1", "p1", domain.StatusCurrent, 1), entry("e2", "p2", domain.StatusWaiting, 2)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	open := func(id, entryID, parent string) error {
		return s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
			return tx.InsertMeeting(ctx, &domain.Meeting{
				ID: id, TeacherID: "t1", QueueEntryID: entryID, ParentSessionID: parent, StartedAt: now,
			})
		})
	}

	if err := open("m1", "e1", "p1"); err != nil {
		t.Fatalf("first meeting: %v", err)
	}
	if err := open("m2", "e2", "p2"); !domain.IsInvariantViolation(err) {
		t.Fatalf("second open meeting for the teacher: expected invariant violation, got %v", err)
	}

	err := s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		m, err := tx.GetMeeting(ctx, "m1")
		if err != nil {
			return err
		}
		if err := m.Close(now.Add(5 * time.Minute)); err != nil {
			return err
		}
		return tx.UpdateMeeting(ctx, m)
	})
	if err != nil {
		t.Fatalf("close meeting: %v", err)
	}
	if err := open("m2", "e2", "p2"); err != nil {
		t.Fatalf("meeting after close: %v", err)
	}
}

func TestFailNext(t *testing.T) {
	s := NewStore()
	seed(t, s)

	s.FailNext(1)
	calls := 0
	err := s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		calls++
		return tx.InsertEntry(ctx, entry("e1", "p1", domain.StatusWaiting, 1))
	})
	if !errors.Is(err, domain.ErrTxConflict) {
		t.Fatalf("expected ErrTxConflict, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the work to run once, ran %d times", calls)
	}
	if entries, _ := s.Snapshot(); len(entries) != 0 {
		t.Fatalf("conflicted unit must roll back, found %d entries", len(entries))
	}

	if err := insert(s, entry("e1", "p1", domain.StatusWaiting, 1)); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if entries, _ := s.Snapshot(); len(entries) != 1 {
		t.Errorf("expected the retry to commit, found %d entries", len(entries))
	}
}

func TestInTx_CancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		t.Fatal("work must not run")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTeacherStats_Rounding(t *testing.T) {
	s := NewStore()
	seed(t, s)

	var stats *domain.TeacherStats
	err := s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		for _, id := range []string{"m1", "m2"} {
			m := &domain.Meeting{ID: id, TeacherID: "t1", QueueEntryID: "e-" + id, ParentSessionID: "p1", StartedAt: now}
			if err := tx.InsertMeeting(ctx, m); err != nil {
				return err
			}
			end := now.Add(100 * time.Second)
			if id == "m2" {
				end = end.Add(time.Second)
			}
			if err := m.Close(end); err != nil {
				return err
			}
			if err := tx.UpdateMeeting(ctx, m); err != nil {
				return err
			}
		}
		var err error
		stats, err = tx.TeacherStats(ctx, "t1")
		return err
	})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.MeetingsHeld != 2 || stats.AverageSeconds != 101 {
		t.Errorf("expected 2 meetings averaging 101s (100.5 rounded up), got %+v", stats)
	}
}
