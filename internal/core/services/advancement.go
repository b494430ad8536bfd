package services

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/metrics"
)

// Advancer decides who is admitted next and handles parents who are busy
// with another teacher.
type Advancer struct {
	ledger    *Ledger
	admission *Admission
	metrics   *metrics.Metrics
	logger    *logrus.Logger
}

func NewAdvancer(ledger *Ledger, admission *Admission, m *metrics.Metrics, logger *logrus.Logger) *Advancer {
	return &Advancer{ledger: ledger, admission: admission, metrics: m, logger: logger}
}

func lockAscending(ctx context.Context, u *unit, teacherID string) ([]domain.QueueEntry, error) {
	entries, err := u.tx.LockActiveEntries(ctx, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "lock active entries")
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	return entries, nil
}

// AdvanceForTeacher admits at most one waiting or next entry, in position
// order, skipping entries whose parent is busy elsewhere. It then gives the
// following parent advance warning.
func (a *Advancer) AdvanceForTeacher(ctx context.Context, u *unit, teacherID string) (*domain.Meeting, error) {
	entries, err := lockAscending(ctx, u, teacherID)
	if err != nil {
		return nil, err
	}

	var admitted *domain.Meeting
scan:
	for i := range entries {
		e := &entries[i]
		if e.Status != domain.StatusWaiting && e.Status != domain.StatusNext {
			continue
		}

		res, err := a.admission.TryAdmit(ctx, u, teacherID, e.ID)
		if err != nil {
			return nil, err
		}

		switch {
		case res.Admitted:
			if _, err := a.ledger.UpdateStatus(ctx, u, e, domain.EventAdmit); err != nil {
				return nil, err
			}
			u.meetingStarted(res.Meeting, e)
			admitted = res.Meeting
			break scan
		case res.Reason == domain.ReasonParentBusy:
			if _, err := a.ledger.UpdateStatus(ctx, u, e, domain.EventParentBusy); err != nil {
				return nil, err
			}
			a.metrics.Skip(string(domain.ReasonParentBusy))
			a.logger.WithFields(logrus.Fields{
				"teacher_id": teacherID,
				"entry_id":   e.ID,
			}).Info("parent busy elsewhere, entry skipped")
		default:
			// teacher busy: the caller should only advance a free teacher
			a.logger.WithField("teacher_id", teacherID).Warn("advance found teacher busy")
			break scan
		}
	}

	if err := a.lookahead(ctx, u, entries); err != nil {
		return nil, err
	}
	return admitted, nil
}

// lookahead promotes the lowest waiting entry to next unless some entry is
// already next. entries must be in ascending position order.
func (a *Advancer) lookahead(ctx context.Context, u *unit, entries []domain.QueueEntry) error {
	for i := range entries {
		if entries[i].Status == domain.StatusNext {
			return nil
		}
	}
	for i := range entries {
		if entries[i].Status == domain.StatusWaiting {
			_, err := a.ledger.UpdateStatus(ctx, u, &entries[i], domain.EventPromote)
			return err
		}
	}
	return nil
}

// ProcessSkippedForParent runs when one of the parent's meetings ends. The
// earliest-joined skipped entry is admitted if its teacher is free, otherwise
// it goes to the front of that teacher's line.
func (a *Advancer) ProcessSkippedForParent(ctx context.Context, u *unit, parentSessionID string) error {
	skipped, err := u.tx.SkippedEntriesForParent(ctx, parentSessionID)
	if err != nil {
		return errors.Wrap(err, "skipped entries for parent")
	}
	if len(skipped) == 0 {
		return nil
	}
	sort.SliceStable(skipped, func(i, j int) bool { return skipped[i].JoinedAt.Before(skipped[j].JoinedAt) })
	e := &skipped[0]

	// queue rows before the teacher row, as everywhere else
	if _, err := u.tx.LockActiveEntries(ctx, e.TeacherID); err != nil {
		return errors.Wrap(err, "lock active entries")
	}

	res, err := a.admission.TryAdmit(ctx, u, e.TeacherID, e.ID)
	if err != nil {
		return err
	}

	log := a.logger.WithFields(logrus.Fields{
		"parent_session_id": parentSessionID,
		"teacher_id":        e.TeacherID,
		"entry_id":          e.ID,
	})
	switch {
	case res.Admitted:
		if _, err := a.ledger.UpdateStatus(ctx, u, e, domain.EventAdmit); err != nil {
			return err
		}
		u.meetingStarted(res.Meeting, e)
		log.Info("skipped entry admitted")
	case res.Reason == domain.ReasonTeacherBusy:
		if err := a.ledger.Reprioritize(ctx, u, e.ID, e.TeacherID); err != nil {
			return err
		}
		log.Info("skipped entry moved to the front")
	default:
		log.Info("parent busy again, entry stays skipped")
	}
	return nil
}

// closeMeeting ends the teacher's open meeting and completes its entry with ev.
func (a *Advancer) closeMeeting(ctx context.Context, u *unit, m *domain.Meeting, ev domain.EntryEvent) (*domain.Meeting, error) {
	ended, err := a.admission.End(ctx, u, m.ID)
	if err != nil {
		return nil, err
	}
	entry, err := u.tx.GetEntry(ctx, ended.QueueEntryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != domain.StatusCurrent {
		return nil, errors.WithMessagef(domain.ErrInvariantViolation,
			"meeting %s belongs to entry %s in status %s", ended.ID, entry.ID, entry.Status)
	}
	if _, err := a.ledger.UpdateStatus(ctx, u, entry, ev); err != nil {
		return nil, err
	}
	u.meetingEnded(ended, entry)
	return ended, nil
}

// EndCurrentMeeting completes the teacher's current meeting and moves the
// line on.
func (a *Advancer) EndCurrentMeeting(ctx context.Context, u *unit, teacherID string) (*domain.Meeting, error) {
	if _, err := u.tx.LockActiveEntries(ctx, teacherID); err != nil {
		return nil, errors.Wrap(err, "lock active entries")
	}
	if _, err := u.tx.LockTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	open, err := u.tx.OpenMeetingForTeacher(ctx, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "open meeting for teacher")
	}
	if open == nil {
		return nil, domain.ErrNoOpenMeeting
	}

	ended, err := a.closeMeeting(ctx, u, open, domain.EventComplete)
	if err != nil {
		return nil, err
	}
	if err := a.ProcessSkippedForParent(ctx, u, ended.ParentSessionID); err != nil {
		return nil, err
	}
	if _, err := a.AdvanceForTeacher(ctx, u, teacherID); err != nil {
		return nil, err
	}
	return ended, nil
}

// SkipNoShow drops the current parent, if any, and moves the line on. The
// returned meeting is nil when the teacher had none open.
func (a *Advancer) SkipNoShow(ctx context.Context, u *unit, teacherID string) (*domain.Meeting, error) {
	if _, err := u.tx.LockActiveEntries(ctx, teacherID); err != nil {
		return nil, errors.Wrap(err, "lock active entries")
	}
	if _, err := u.tx.LockTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	open, err := u.tx.OpenMeetingForTeacher(ctx, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "open meeting for teacher")
	}

	var ended *domain.Meeting
	if open != nil {
		ended, err = a.closeMeeting(ctx, u, open, domain.EventRemove)
		if err != nil {
			return nil, err
		}
		a.metrics.Skip("no_show")
		if err := a.ProcessSkippedForParent(ctx, u, ended.ParentSessionID); err != nil {
			return nil, err
		}
	}
	if _, err := a.AdvanceForTeacher(ctx, u, teacherID); err != nil {
		return nil, err
	}
	return ended, nil
}

// ExtendCurrentMeeting records extra time on the open meeting and warns the
// teacher and everyone still waiting.
func (a *Advancer) ExtendCurrentMeeting(ctx context.Context, u *unit, teacherID string, seconds int) (*domain.Meeting, error) {
	if _, err := u.tx.LockTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	open, err := u.tx.OpenMeetingForTeacher(ctx, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "open meeting for teacher")
	}
	if open == nil {
		return nil, domain.ErrNoOpenMeeting
	}
	m, err := a.admission.Extend(ctx, u, open.ID, seconds)
	if err != nil {
		return nil, err
	}

	active, err := a.ledger.ListActive(ctx, u, teacherID)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"teacher_id":        teacherID,
		"meeting_id":        m.ID,
		"added_seconds":     seconds,
		"extension_seconds": m.ExtensionSeconds,
	}
	u.emit(domain.TagDelayNotification, domain.TeacherTarget(teacherID), payload)
	for _, e := range active {
		if e.Status == domain.StatusWaiting || e.Status == domain.StatusNext {
			u.emit(domain.TagDelayNotification, domain.ParentTarget(e.ParentSessionID), payload)
		}
	}
	return m, nil
}

// LeaveQueue lets the owning parent abandon an entry. Leaving while current
// ends the meeting and advances the line.
func (a *Advancer) LeaveQueue(ctx context.Context, u *unit, entryID, parentSessionID string) (*domain.QueueEntry, error) {
	entry, err := u.tx.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.ParentSessionID != parentSessionID {
		return nil, domain.ErrNotEntryOwner
	}
	if entry.Status.IsTerminal() {
		return nil, domain.ErrEntryNotFound
	}

	entries, err := lockAscending(ctx, u, entry.TeacherID)
	if err != nil {
		return nil, err
	}
	if _, err := u.tx.LockTeacher(ctx, entry.TeacherID); err != nil {
		return nil, err
	}

	if entry.Status != domain.StatusCurrent {
		if _, err := a.ledger.UpdateStatus(ctx, u, entry, domain.EventLeave); err != nil {
			return nil, err
		}
		remaining := entries[:0]
		for _, e := range entries {
			if e.ID != entry.ID {
				remaining = append(remaining, e)
			}
		}
		if err := a.lookahead(ctx, u, remaining); err != nil {
			return nil, err
		}
		return entry, nil
	}

	open, err := u.tx.OpenMeetingForTeacher(ctx, entry.TeacherID)
	if err != nil {
		return nil, errors.Wrap(err, "open meeting for teacher")
	}
	if open == nil || open.QueueEntryID != entry.ID {
		return nil, errors.WithMessagef(domain.ErrInvariantViolation, "current entry %s has no open meeting", entry.ID)
	}
	if _, err := a.closeMeeting(ctx, u, open, domain.EventLeave); err != nil {
		return nil, err
	}
	if err := a.ProcessSkippedForParent(ctx, u, parentSessionID); err != nil {
		return nil, err
	}
	if _, err := a.AdvanceForTeacher(ctx, u, entry.TeacherID); err != nil {
		return nil, err
	}
	return u.tx.GetEntry(ctx, entryID)
}
