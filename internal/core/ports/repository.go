package ports

import (
	"context"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

// Store runs units of work against the shared queue state. Implementations
// must give fn serializable isolation and roll back everything fn wrote when
// it returns an error. Conflicts are reported as domain.ErrTxConflict.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx is the row-level view of the store inside one unit of work.
// Lookups named Find* and Open* return nil, nil when nothing matches.
type Tx interface {
	TeacherRepository
	ParentSessionRepository
	QueueEntryRepository
	MeetingRepository

	AppendOutbox(ctx context.Context, events []domain.Notification) error
}

type TeacherRepository interface {
	InsertTeacher(ctx context.Context, t *domain.Teacher) error
	UpdateTeacher(ctx context.Context, t *domain.Teacher) error
	GetTeacher(ctx context.Context, id string) (*domain.Teacher, error)
	GetTeacherByCode(ctx context.Context, code string) (*domain.Teacher, error)
	TeacherCodeExists(ctx context.Context, code string) (bool, error)
	ListTeachers(ctx context.Context) ([]domain.Teacher, error)
	// LockTeacher takes the teacher row lock that serializes admissions
	// for that teacher.
	LockTeacher(ctx context.Context, id string) (*domain.Teacher, error)
}

type ParentSessionRepository interface {
	InsertParentSession(ctx context.Context, p *domain.ParentSession) error
	GetParentSession(ctx context.Context, id string) (*domain.ParentSession, error)
	FindParentSessionByDevice(ctx context.Context, deviceToken string) (*domain.ParentSession, error)
	// LockParentSession takes the row lock that serializes admissions for
	// that parent across every teacher.
	LockParentSession(ctx context.Context, id string) (*domain.ParentSession, error)
}

type QueueEntryRepository interface {
	InsertEntry(ctx context.Context, e *domain.QueueEntry) error
	UpdateEntry(ctx context.Context, e *domain.QueueEntry) error
	GetEntry(ctx context.Context, id string) (*domain.QueueEntry, error)
	// LockActiveEntries locks the teacher's waiting/next/current rows and
	// returns them in descending position order.
	LockActiveEntries(ctx context.Context, teacherID string) ([]domain.QueueEntry, error)
	// ListActiveEntries returns the teacher's active entries ascending by position.
	ListActiveEntries(ctx context.Context, teacherID string) ([]domain.QueueEntryWithParent, error)
	FindOpenEntry(ctx context.Context, teacherID, parentSessionID string) (*domain.QueueEntry, error)
	// SkippedEntriesForParent returns skipped entries ordered by join time.
	SkippedEntriesForParent(ctx context.Context, parentSessionID string) ([]domain.QueueEntry, error)
	// EntriesForParent returns the parent's non-completed entries.
	EntriesForParent(ctx context.Context, parentSessionID string) ([]domain.QueueEntryWithParent, error)
	TeacherStats(ctx context.Context, teacherID string) (*domain.TeacherStats, error)
}

type MeetingRepository interface {
	InsertMeeting(ctx context.Context, m *domain.Meeting) error
	UpdateMeeting(ctx context.Context, m *domain.Meeting) error
	GetMeeting(ctx context.Context, id string) (*domain.Meeting, error)
	OpenMeetingForTeacher(ctx context.Context, teacherID string) (*domain.Meeting, error)
	OpenMeetingForParent(ctx context.Context, parentSessionID string) (*domain.Meeting, error)
}
