package services

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/metrics"
)

const maxChildNameLength = 100

// Ledger owns queue entry ordering and status storage for each teacher.
type Ledger struct {
	admission *Admission
	metrics   *metrics.Metrics
	logger    *logrus.Logger
}

func NewLedger(admission *Admission, m *metrics.Metrics, logger *logrus.Logger) *Ledger {
	return &Ledger{admission: admission, metrics: m, logger: logger}
}

// Join appends the parent to the teacher's line. On an empty line the entry
// is admitted at once, or skipped when the parent is in a meeting elsewhere.
func (l *Ledger) Join(ctx context.Context, u *unit, teacherID, parentSessionID, childName string) (*domain.QueueEntry, error) {
	childName = strings.TrimSpace(childName)
	if childName == "" || utf8.RuneCountInString(childName) > maxChildNameLength {
		return nil, errors.WithMessage(domain.ErrInvalidInput, "child name must be 1-100 characters")
	}

	active, err := u.tx.LockActiveEntries(ctx, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "lock active entries")
	}

	teacher, err := u.tx.LockTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if !teacher.Active {
		return nil, domain.ErrTeacherInactive
	}

	if _, err := u.tx.GetParentSession(ctx, parentSessionID); err != nil {
		return nil, err
	}

	existing, err := u.tx.FindOpenEntry(ctx, teacherID, parentSessionID)
	if err != nil {
		return nil, errors.Wrap(err, "find open entry")
	}
	if existing != nil {
		return nil, domain.ErrDuplicateJoin
	}

	position := 1
	for _, e := range active {
		if e.Position >= position {
			position = e.Position + 1
		}
	}

	entry := &domain.QueueEntry{
		ID:              uuid.NewString(),
		TeacherID:       teacherID,
		ParentSessionID: parentSessionID,
		ChildName:       childName,
		Position:        position,
	}
	step, err := entry.Apply(domain.EventJoin, u.now)
	if err != nil {
		return nil, err
	}
	if err := u.tx.InsertEntry(ctx, entry); err != nil {
		return nil, errors.Wrap(err, "insert entry")
	}
	u.touch(teacherID)

	if len(active) > 0 {
		u.emit(domain.TagStatusUpdate, domain.ParentTarget(parentSessionID), entryPayload(entry, step.Notice))
		return entry, nil
	}

	res, err := l.admission.TryAdmit(ctx, u, teacherID, entry.ID)
	if err != nil {
		return nil, err
	}
	switch {
	case res.Admitted:
		if _, err := l.UpdateStatus(ctx, u, entry, domain.EventAdmit); err != nil {
			return nil, err
		}
		u.meetingStarted(res.Meeting, entry)
	case res.Reason == domain.ReasonParentBusy:
		if _, err := l.UpdateStatus(ctx, u, entry, domain.EventParentBusy); err != nil {
			return nil, err
		}
		l.metrics.Skip(string(domain.ReasonParentBusy))
	default:
		u.emit(domain.TagStatusUpdate, domain.ParentTarget(parentSessionID), entryPayload(entry, step.Notice))
	}
	return entry, nil
}

// ListActive returns the teacher's waiting, next and current entries in
// position order.
func (l *Ledger) ListActive(ctx context.Context, u *unit, teacherID string) ([]domain.QueueEntryWithParent, error) {
	entries, err := u.tx.ListActiveEntries(ctx, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "list active entries")
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	return entries, nil
}

// UpdateStatus fires ev on the entry, persists it and tells the parent.
// It does not look at other rows; callers keep the cross-row invariants.
func (l *Ledger) UpdateStatus(ctx context.Context, u *unit, e *domain.QueueEntry, ev domain.EntryEvent) (domain.Step, error) {
	step, err := e.Apply(ev, u.now)
	if err != nil {
		return domain.Step{}, err
	}
	if err := u.tx.UpdateEntry(ctx, e); err != nil {
		return domain.Step{}, errors.Wrapf(err, "update entry %s", e.ID)
	}
	u.touch(e.TeacherID)

	tag := domain.TagStatusUpdate
	if step.Notice == domain.NoticeRemoved {
		tag = domain.TagQueueRemoved
	}
	u.emit(tag, domain.ParentTarget(e.ParentSessionID), entryPayload(e, step.Notice))

	l.logger.WithFields(logrus.Fields{
		"entry_id":   e.ID,
		"teacher_id": e.TeacherID,
		"event":      ev,
		"status":     e.Status,
	}).Debug("queue entry transition")
	return step, nil
}

// Reprioritize moves a skipped entry to the front of its teacher's line as
// waiting. Active rows are locked and shifted from the highest position down
// so no two rows ever share a position mid-update.
func (l *Ledger) Reprioritize(ctx context.Context, u *unit, entryID, teacherID string) error {
	entry, err := u.tx.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.TeacherID != teacherID {
		return errors.WithMessagef(domain.ErrInvariantViolation, "entry %s is not in teacher %s's line", entryID, teacherID)
	}
	if _, err := domain.Transition(entry.Status, domain.EventRequeue); err != nil {
		return err
	}

	active, err := u.tx.LockActiveEntries(ctx, teacherID)
	if err != nil {
		return errors.Wrap(err, "lock active entries")
	}

	front := 1
	for i := range active {
		if i == 0 || active[i].Position < front {
			front = active[i].Position
		}
	}

	for i := range active {
		e := &active[i]
		e.Position++
		if err := u.tx.UpdateEntry(ctx, e); err != nil {
			return errors.Wrapf(err, "shift entry %s", e.ID)
		}
	}

	entry.Position = front
	if _, err := l.UpdateStatus(ctx, u, entry, domain.EventRequeue); err != nil {
		return err
	}
	l.metrics.Skip("requeued")
	return nil
}
