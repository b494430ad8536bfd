// Package memory is a single-process ports.Store. A unit of work holds one
// store-wide lock and writes to a private copy of the state that replaces
// the shared one on commit, so every transaction is trivially serializable.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

type state struct {
	teachers map[string]domain.Teacher
	parents  map[string]domain.ParentSession
	entries  map[string]domain.QueueEntry
	meetings map[string]domain.Meeting
	outbox   []domain.Notification
}

func newState() *state {
	return &state{
		teachers: map[string]domain.Teacher{},
		parents:  map[string]domain.ParentSession{},
		entries:  map[string]domain.QueueEntry{},
		meetings: map[string]domain.Meeting{},
	}
}

func (s *state) clone() *state {
	c := &state{
		teachers: make(map[string]domain.Teacher, len(s.teachers)),
		parents:  make(map[string]domain.ParentSession, len(s.parents)),
		entries:  make(map[string]domain.QueueEntry, len(s.entries)),
		meetings: make(map[string]domain.Meeting, len(s.meetings)),
		outbox:   append([]domain.Notification(nil), s.outbox...),
	}
	for k, v := range s.teachers {
		c.teachers[k] = v
	}
	for k, v := range s.parents {
		c.parents[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.meetings {
		c.meetings[k] = v
	}
	return c
}

type Store struct {
	mu       sync.Mutex
	state    *state
	failNext int
}

var _ ports.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// FailNext makes the next n units of work run to the end and then report
// domain.ErrTxConflict instead of committing.
func (s *Store) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &memTx{st: work}); err != nil {
		return err
	}
	if s.failNext > 0 {
		s.failNext--
		return errors.WithMessage(domain.ErrTxConflict, "memory: injected conflict")
	}
	s.state = work
	return nil
}

// Outbox returns every notification committed so far.
func (s *Store) Outbox() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.state.outbox...)
}

// Snapshot returns the committed entries and meetings, for assertions.
func (s *Store) Snapshot() ([]domain.QueueEntry, []domain.Meeting) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]domain.QueueEntry, 0, len(s.state.entries))
	for _, e := range s.state.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].JoinedAt.Before(entries[j].JoinedAt) })

	meetings := make([]domain.Meeting, 0, len(s.state.meetings))
	for _, m := range s.state.meetings {
		meetings = append(meetings, m)
	}
	sort.Slice(meetings, func(i, j int) bool { return meetings[i].StartedAt.Before(meetings[j].StartedAt) })
	return entries, meetings
}
