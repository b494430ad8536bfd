package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/metrics"
)

// Scheduler is the caller-facing queue service. Each operation is a single
// serializable unit of work.
type Scheduler struct {
	runner
	ledger    *Ledger
	admission *Admission
	advancer  *Advancer
}

var _ ports.QueueService = (*Scheduler)(nil)

func NewScheduler(
	store ports.Store,
	notifier ports.Notifier,
	m *metrics.Metrics,
	logger *logrus.Logger,
	cfg RunnerConfig,
) *Scheduler {
	admission := NewAdmission(m, logger)
	ledger := NewLedger(admission, m, logger)
	return &Scheduler{
		runner:    newRunner(store, notifier, m, logger, cfg),
		ledger:    ledger,
		admission: admission,
		advancer:  NewAdvancer(ledger, admission, m, logger),
	}
}

func (s *Scheduler) Join(ctx context.Context, teacherID, parentSessionID, childName string) (*domain.QueueEntry, error) {
	var entry *domain.QueueEntry
	err := s.run(ctx, "join", func(ctx context.Context, u *unit) error {
		var err error
		entry, err = s.ledger.Join(ctx, u, teacherID, parentSessionID, childName)
		if err != nil {
			return err
		}
		if entry.Status != domain.StatusWaiting {
			return nil
		}

		// A line with waiting parents but no open meeting means the teacher
		// went idle; get it moving again.
		open, err := u.tx.OpenMeetingForTeacher(ctx, teacherID)
		if err != nil {
			return errors.Wrap(err, "open meeting for teacher")
		}
		if open != nil {
			return nil
		}
		if _, err := s.advancer.AdvanceForTeacher(ctx, u, teacherID); err != nil {
			return err
		}
		entry, err = u.tx.GetEntry(ctx, entry.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"teacher_id": teacherID,
		"entry_id":   entry.ID,
		"status":     entry.Status,
		"position":   entry.Position,
	}).Info("parent joined queue")
	return entry, nil
}

func (s *Scheduler) EndCurrentMeeting(ctx context.Context, teacherID string) (*domain.Meeting, error) {
	var ended *domain.Meeting
	err := s.run(ctx, "end_meeting", func(ctx context.Context, u *unit) error {
		var err error
		ended, err = s.advancer.EndCurrentMeeting(ctx, u, teacherID)
		return err
	})
	return ended, err
}

func (s *Scheduler) SkipNoShow(ctx context.Context, teacherID string) (*domain.Meeting, error) {
	var ended *domain.Meeting
	err := s.run(ctx, "skip_no_show", func(ctx context.Context, u *unit) error {
		if _, err := u.tx.GetTeacher(ctx, teacherID); err != nil {
			return err
		}
		var err error
		ended, err = s.advancer.SkipNoShow(ctx, u, teacherID)
		return err
	})
	return ended, err
}

func (s *Scheduler) ExtendCurrentMeeting(ctx context.Context, teacherID string, seconds int) (*domain.Meeting, error) {
	var m *domain.Meeting
	err := s.run(ctx, "extend_meeting", func(ctx context.Context, u *unit) error {
		var err error
		m, err = s.advancer.ExtendCurrentMeeting(ctx, u, teacherID, seconds)
		return err
	})
	return m, err
}

func (s *Scheduler) LeaveQueue(ctx context.Context, entryID, parentSessionID string) (*domain.QueueEntry, error) {
	var entry *domain.QueueEntry
	err := s.run(ctx, "leave_queue", func(ctx context.Context, u *unit) error {
		var err error
		entry, err = s.advancer.LeaveQueue(ctx, u, entryID, parentSessionID)
		return err
	})
	return entry, err
}

func (s *Scheduler) QueueView(ctx context.Context, teacherID string) ([]domain.QueueEntryWithParent, error) {
	var entries []domain.QueueEntryWithParent
	err := s.run(ctx, "queue_view", func(ctx context.Context, u *unit) error {
		if _, err := u.tx.GetTeacher(ctx, teacherID); err != nil {
			return err
		}
		var err error
		entries, err = s.ledger.ListActive(ctx, u, teacherID)
		return err
	})
	return entries, err
}

// ParentEntries lists the parent's open entries with the number of active
// entries ahead of each one.
func (s *Scheduler) ParentEntries(ctx context.Context, parentSessionID string) ([]domain.ParentEntryView, error) {
	var views []domain.ParentEntryView
	err := s.run(ctx, "parent_entries", func(ctx context.Context, u *unit) error {
		if _, err := u.tx.GetParentSession(ctx, parentSessionID); err != nil {
			return err
		}
		entries, err := u.tx.EntriesForParent(ctx, parentSessionID)
		if err != nil {
			return errors.Wrap(err, "entries for parent")
		}

		views = make([]domain.ParentEntryView, 0, len(entries))
		for _, e := range entries {
			view := domain.ParentEntryView{QueueEntryWithParent: e}
			if e.Status.IsActive() {
				line, err := s.ledger.ListActive(ctx, u, e.TeacherID)
				if err != nil {
					return err
				}
				for _, other := range line {
					if other.Position < e.Position {
						view.Ahead++
					}
				}
			}
			views = append(views, view)
		}
		return nil
	})
	return views, err
}

func (s *Scheduler) TeacherStats(ctx context.Context, teacherID string) (*domain.TeacherStats, error) {
	var stats *domain.TeacherStats
	err := s.run(ctx, "teacher_stats", func(ctx context.Context, u *unit) error {
		if _, err := u.tx.GetTeacher(ctx, teacherID); err != nil {
			return err
		}
		var err error
		stats, err = u.tx.TeacherStats(ctx, teacherID)
		return err
	})
	return stats, err
}
