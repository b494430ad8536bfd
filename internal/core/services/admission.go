package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/metrics"
)

// Admission is the only code path that opens a meeting.
type Admission struct {
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

func NewAdmission(m *metrics.Metrics, logger *logrus.Logger) *Admission {
	return &Admission{metrics: m, logger: logger}
}

// TryAdmit opens a meeting between the teacher and the entry's parent when
// both are free. The checks and the insert run under the teacher and parent
// row locks of the caller's transaction. Contention is reported through the
// result, never as an error.
func (a *Admission) TryAdmit(ctx context.Context, u *unit, teacherID, entryID string) (domain.AdmitResult, error) {
	if _, err := u.tx.LockTeacher(ctx, teacherID); err != nil {
		return domain.AdmitResult{}, err
	}
	open, err := u.tx.OpenMeetingForTeacher(ctx, teacherID)
	if err != nil {
		return domain.AdmitResult{}, errors.Wrap(err, "open meeting for teacher")
	}
	if open != nil {
		a.metrics.Admission(string(domain.ReasonTeacherBusy))
		return domain.AdmitResult{Reason: domain.ReasonTeacherBusy}, nil
	}

	entry, err := u.tx.GetEntry(ctx, entryID)
	if err != nil {
		return domain.AdmitResult{}, err
	}
	if entry.TeacherID != teacherID {
		return domain.AdmitResult{}, errors.WithMessagef(domain.ErrInvariantViolation,
			"entry %s is not in teacher %s's line", entryID, teacherID)
	}

	if _, err := u.tx.LockParentSession(ctx, entry.ParentSessionID); err != nil {
		return domain.AdmitResult{}, err
	}
	busy, err := u.tx.OpenMeetingForParent(ctx, entry.ParentSessionID)
	if err != nil {
		return domain.AdmitResult{}, errors.Wrap(err, "open meeting for parent")
	}
	if busy != nil {
		a.metrics.Admission(string(domain.ReasonParentBusy))
		return domain.AdmitResult{Reason: domain.ReasonParentBusy}, nil
	}

	m := &domain.Meeting{
		ID:              uuid.NewString(),
		TeacherID:       teacherID,
		QueueEntryID:    entry.ID,
		ParentSessionID: entry.ParentSessionID,
		StartedAt:       u.now,
	}
	if err := u.tx.InsertMeeting(ctx, m); err != nil {
		return domain.AdmitResult{}, errors.Wrap(err, "insert meeting")
	}
	a.metrics.Admission("admitted")

	a.logger.WithFields(logrus.Fields{
		"meeting_id": m.ID,
		"teacher_id": teacherID,
		"entry_id":   entry.ID,
	}).Info("meeting admitted")
	return domain.AdmitResult{Admitted: true, Meeting: m}, nil
}

// End closes an open meeting. Closing it twice is an invariant violation.
func (a *Admission) End(ctx context.Context, u *unit, meetingID string) (*domain.Meeting, error) {
	m, err := u.tx.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if err := m.Close(u.now); err != nil {
		return nil, errors.WithMessagef(err, "meeting %s", meetingID)
	}
	if err := u.tx.UpdateMeeting(ctx, m); err != nil {
		return nil, errors.Wrap(err, "update meeting")
	}
	a.metrics.MeetingEnded(*m.DurationSeconds)

	a.logger.WithFields(logrus.Fields{
		"meeting_id": m.ID,
		"teacher_id": m.TeacherID,
		"duration":   *m.DurationSeconds,
	}).Info("meeting ended")
	return m, nil
}

// Extend records extra time on an open meeting. It does not move the end
// time and does not affect admission.
func (a *Admission) Extend(ctx context.Context, u *unit, meetingID string, seconds int) (*domain.Meeting, error) {
	if seconds <= 0 {
		return nil, errors.WithMessage(domain.ErrInvalidInput, "extension must be a positive number of seconds")
	}
	m, err := u.tx.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if !m.IsOpen() {
		return nil, errors.WithMessagef(domain.ErrMeetingNotOpen, "meeting %s", meetingID)
	}
	m.Extended = true
	m.ExtensionSeconds += seconds
	if err := u.tx.UpdateMeeting(ctx, m); err != nil {
		return nil, errors.Wrap(err, "update meeting")
	}
	return m, nil
}
