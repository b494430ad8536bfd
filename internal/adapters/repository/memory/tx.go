package memory

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

// memTx enforces the same uniqueness rules as the Postgres indexes at write
// time. Locks are no-ops because the store lock is already held.
type memTx struct {
	st *state
}

var _ ports.Tx = (*memTx)(nil)

func (t *memTx) InsertTeacher(_ context.Context, teacher *domain.Teacher) error {
	for _, other := range t.st.teachers {
		if other.Code == teacher.Code {
			return errors.WithMessage(domain.ErrTxConflict, "memory: teacher code taken")
		}
	}
	t.st.teachers[teacher.ID] = *teacher
	return nil
}

func (t *memTx) UpdateTeacher(_ context.Context, teacher *domain.Teacher) error {
	if _, ok := t.st.teachers[teacher.ID]; !ok {
		return domain.ErrTeacherNotFound
	}
	t.st.teachers[teacher.ID] = *teacher
	return nil
}

func (t *memTx) GetTeacher(_ context.Context, id string) (*domain.Teacher, error) {
	teacher, ok := t.st.teachers[id]
	if !ok {
		return nil, domain.ErrTeacherNotFound
	}
	return &teacher, nil
}

func (t *memTx) GetTeacherByCode(_ context.Context, code string) (*domain.Teacher, error) {
	code = domain.NormalizeCode(code)
	for _, teacher := range t.st.teachers {
		if teacher.Code == code {
			return &teacher, nil
		}
	}
	return nil, domain.ErrTeacherNotFound
}

func (t *memTx) TeacherCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := t.GetTeacherByCode(ctx, code)
	if errors.Is(err, domain.ErrTeacherNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *memTx) ListTeachers(_ context.Context) ([]domain.Teacher, error) {
	teachers := make([]domain.Teacher, 0, len(t.st.teachers))
	for _, teacher := range t.st.teachers {
		teachers = append(teachers, teacher)
	}
	sort.Slice(teachers, func(i, j int) bool {
		if teachers[i].Name != teachers[j].Name {
			return teachers[i].Name < teachers[j].Name
		}
		return teachers[i].CreatedAt.Before(teachers[j].CreatedAt)
	})
	return teachers, nil
}

func (t *memTx) LockTeacher(ctx context.Context, id string) (*domain.Teacher, error) {
	return t.GetTeacher(ctx, id)
}

func (t *memTx) InsertParentSession(_ context.Context, p *domain.ParentSession) error {
	for _, other := range t.st.parents {
		if other.DeviceToken == p.DeviceToken {
			return errors.WithMessage(domain.ErrTxConflict, "memory: device token taken")
		}
	}
	t.st.parents[p.ID] = *p
	return nil
}

func (t *memTx) GetParentSession(_ context.Context, id string) (*domain.ParentSession, error) {
	p, ok := t.st.parents[id]
	if !ok {
		return nil, domain.ErrParentSessionNotFound
	}
	return &p, nil
}

func (t *memTx) FindParentSessionByDevice(_ context.Context, deviceToken string) (*domain.ParentSession, error) {
	for _, p := range t.st.parents {
		if p.DeviceToken == deviceToken {
			return &p, nil
		}
	}
	return nil, nil
}

func (t *memTx) LockParentSession(ctx context.Context, id string) (*domain.ParentSession, error) {
	return t.GetParentSession(ctx, id)
}

// checkEntry mirrors the partial unique indexes on queue_entries.
func (t *memTx) checkEntry(e *domain.QueueEntry) error {
	if e.Position <= 0 {
		return errors.WithMessagef(domain.ErrInvariantViolation, "entry %s has position %d", e.ID, e.Position)
	}
	for _, other := range t.st.entries {
		if other.ID == e.ID || other.TeacherID != e.TeacherID {
			continue
		}
		if e.Status != domain.StatusCompleted && other.Status != domain.StatusCompleted &&
			other.ParentSessionID == e.ParentSessionID {
			return domain.ErrDuplicateJoin
		}
		if e.Status.IsActive() && other.Status.IsActive() && other.Position == e.Position {
			return errors.WithMessagef(domain.ErrInvariantViolation,
				"entries %s and %s share position %d", e.ID, other.ID, e.Position)
		}
	}
	return nil
}

func (t *memTx) InsertEntry(_ context.Context, e *domain.QueueEntry) error {
	if err := t.checkEntry(e); err != nil {
		return err
	}
	t.st.entries[e.ID] = *e
	return nil
}

func (t *memTx) UpdateEntry(_ context.Context, e *domain.QueueEntry) error {
	if _, ok := t.st.entries[e.ID]; !ok {
		return domain.ErrEntryNotFound
	}
	if err := t.checkEntry(e); err != nil {
		return err
	}
	t.st.entries[e.ID] = *e
	return nil
}

func (t *memTx) GetEntry(_ context.Context, id string) (*domain.QueueEntry, error) {
	e, ok := t.st.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return &e, nil
}

func (t *memTx) filter(keep func(domain.QueueEntry) bool) []domain.QueueEntry {
	var out []domain.QueueEntry
	for _, e := range t.st.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (t *memTx) withParent(entries []domain.QueueEntry) []domain.QueueEntryWithParent {
	out := make([]domain.QueueEntryWithParent, 0, len(entries))
	for _, e := range entries {
		view := domain.QueueEntryWithParent{QueueEntry: e}
		if p, ok := t.st.parents[e.ParentSessionID]; ok {
			view.ParentName = p.DisplayName
		}
		if teacher, ok := t.st.teachers[e.TeacherID]; ok {
			view.TeacherName = teacher.Name
			view.TeacherCode = teacher.Code
		}
		out = append(out, view)
	}
	return out
}

func (t *memTx) LockActiveEntries(_ context.Context, teacherID string) ([]domain.QueueEntry, error) {
	entries := t.filter(func(e domain.QueueEntry) bool {
		return e.TeacherID == teacherID && e.Status.IsActive()
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Position > entries[j].Position })
	return entries, nil
}

func (t *memTx) ListActiveEntries(ctx context.Context, teacherID string) ([]domain.QueueEntryWithParent, error) {
	entries, _ := t.LockActiveEntries(ctx, teacherID)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	return t.withParent(entries), nil
}

func (t *memTx) FindOpenEntry(_ context.Context, teacherID, parentSessionID string) (*domain.QueueEntry, error) {
	for _, e := range t.st.entries {
		if e.TeacherID == teacherID && e.ParentSessionID == parentSessionID && e.Status != domain.StatusCompleted {
			return &e, nil
		}
	}
	return nil, nil
}

func byJoinTime(entries []domain.QueueEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].JoinedAt.Equal(entries[j].JoinedAt) {
			return entries[i].JoinedAt.Before(entries[j].JoinedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

func (t *memTx) SkippedEntriesForParent(_ context.Context, parentSessionID string) ([]domain.QueueEntry, error) {
	entries := t.filter(func(e domain.QueueEntry) bool {
		return e.ParentSessionID == parentSessionID && e.Status == domain.StatusSkipped
	})
	byJoinTime(entries)
	return entries, nil
}

func (t *memTx) EntriesForParent(_ context.Context, parentSessionID string) ([]domain.QueueEntryWithParent, error) {
	entries := t.filter(func(e domain.QueueEntry) bool {
		return e.ParentSessionID == parentSessionID && e.Status != domain.StatusCompleted
	})
	byJoinTime(entries)
	return t.withParent(entries), nil
}

func (t *memTx) TeacherStats(_ context.Context, teacherID string) (*domain.TeacherStats, error) {
	stats := &domain.TeacherStats{TeacherID: teacherID}
	for _, e := range t.st.entries {
		if e.TeacherID != teacherID {
			continue
		}
		switch {
		case e.Removed:
			stats.Removed++
		case e.Status == domain.StatusCompleted:
			stats.Completed++
		case e.Status == domain.StatusSkipped:
			stats.Skipped++
		case e.Status == domain.StatusWaiting || e.Status == domain.StatusNext:
			stats.Waiting++
		}
	}

	total := 0
	for _, m := range t.st.meetings {
		if m.TeacherID == teacherID && m.DurationSeconds != nil {
			stats.MeetingsHeld++
			total += *m.DurationSeconds
		}
	}
	if stats.MeetingsHeld > 0 {
		// round half up, like ROUND(AVG(...)) for non-negative values
		stats.AverageSeconds = (2*total + stats.MeetingsHeld) / (2 * stats.MeetingsHeld)
	}
	return stats, nil
}

// checkMeeting mirrors the open-meeting partial unique indexes.
func (t *memTx) checkMeeting(m *domain.Meeting) error {
	if !m.IsOpen() {
		return nil
	}
	for _, other := range t.st.meetings {
		if other.ID == m.ID || !other.IsOpen() {
			continue
		}
		if other.TeacherID == m.TeacherID || other.ParentSessionID == m.ParentSessionID {
			return errors.WithMessagef(domain.ErrInvariantViolation,
				"meeting %s overlaps open meeting %s", m.ID, other.ID)
		}
	}
	return nil
}

func (t *memTx) InsertMeeting(_ context.Context, m *domain.Meeting) error {
	if err := t.checkMeeting(m); err != nil {
		return err
	}
	t.st.meetings[m.ID] = *m
	return nil
}

func (t *memTx) UpdateMeeting(_ context.Context, m *domain.Meeting) error {
	if _, ok := t.st.meetings[m.ID]; !ok {
		return domain.ErrMeetingNotFound
	}
	if err := t.checkMeeting(m); err != nil {
		return err
	}
	t.st.meetings[m.ID] = *m
	return nil
}

func (t *memTx) GetMeeting(_ context.Context, id string) (*domain.Meeting, error) {
	m, ok := t.st.meetings[id]
	if !ok {
		return nil, domain.ErrMeetingNotFound
	}
	return &m, nil
}

func (t *memTx) openMeeting(match func(domain.Meeting) bool) *domain.Meeting {
	for _, m := range t.st.meetings {
		if m.IsOpen() && match(m) {
			return &m
		}
	}
	return nil
}

func (t *memTx) OpenMeetingForTeacher(_ context.Context, teacherID string) (*domain.Meeting, error) {
	return t.openMeeting(func(m domain.Meeting) bool { return m.TeacherID == teacherID }), nil
}

func (t *memTx) OpenMeetingForParent(_ context.Context, parentSessionID string) (*domain.Meeting, error) {
	return t.openMeeting(func(m domain.Meeting) bool { return m.ParentSessionID == parentSessionID }), nil
}

func (t *memTx) AppendOutbox(_ context.Context, events []domain.Notification) error {
	t.st.outbox = append(t.st.outbox, events...)
	return nil
}
