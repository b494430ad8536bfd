package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

// unit is one attempt of a unit of work: the transaction, the instant every
// timestamp in it uses, and the notifications it will publish on commit.
type unit struct {
	tx     ports.Tx
	now    time.Time
	events []domain.Notification
	dirty  []string
}

func newUnit(tx ports.Tx, now time.Time) *unit {
	return &unit{tx: tx, now: now}
}

func (u *unit) emit(tag domain.NotificationTag, target domain.Target, payload map[string]any) {
	u.events = append(u.events, domain.Notification{
		ID:         uuid.NewString(),
		Tag:        tag,
		Target:     target,
		Payload:    payload,
		OccurredAt: u.now,
	})
}

// touch records that a teacher's line changed; observers get one
// queue_update per teacher when the unit is flushed.
func (u *unit) touch(teacherID string) {
	for _, id := range u.dirty {
		if id == teacherID {
			return
		}
	}
	u.dirty = append(u.dirty, teacherID)
}

func (u *unit) flush() []domain.Notification {
	for _, teacherID := range u.dirty {
		payload := map[string]any{"teacher_id": teacherID}
		u.emit(domain.TagQueueUpdate, domain.TeacherTarget(teacherID), payload)
		u.emit(domain.TagQueueUpdate, domain.AdminTarget(), payload)
	}
	u.dirty = nil
	return u.events
}

func entryPayload(e *domain.QueueEntry, notice domain.Notice) map[string]any {
	return map[string]any{
		"entry_id":   e.ID,
		"teacher_id": e.TeacherID,
		"child_name": e.ChildName,
		"status":     string(e.Status),
		"position":   e.Position,
		"notice":     string(notice),
	}
}

func meetingPayload(m *domain.Meeting, e *domain.QueueEntry) map[string]any {
	p := map[string]any{
		"meeting_id":        m.ID,
		"teacher_id":        m.TeacherID,
		"entry_id":          m.QueueEntryID,
		"parent_session_id": m.ParentSessionID,
		"started_at":        m.StartedAt,
	}
	if e != nil {
		p["child_name"] = e.ChildName
	}
	if m.EndedAt != nil {
		p["ended_at"] = *m.EndedAt
	}
	if m.DurationSeconds != nil {
		p["duration_seconds"] = *m.DurationSeconds
	}
	if m.Extended {
		p["extension_seconds"] = m.ExtensionSeconds
	}
	return p
}

func (u *unit) meetingStarted(m *domain.Meeting, e *domain.QueueEntry) {
	payload := meetingPayload(m, e)
	u.emit(domain.TagMeetingStarted, domain.TeacherTarget(m.TeacherID), payload)
	u.emit(domain.TagMeetingStarted, domain.AdminTarget(), payload)
}

func (u *unit) meetingEnded(m *domain.Meeting, e *domain.QueueEntry) {
	payload := meetingPayload(m, e)
	u.emit(domain.TagMeetingEnded, domain.TeacherTarget(m.TeacherID), payload)
	u.emit(domain.TagMeetingEnded, domain.AdminTarget(), payload)
	u.emit(domain.TagMeetingEnded, domain.ParentTarget(m.ParentSessionID), payload)
}
