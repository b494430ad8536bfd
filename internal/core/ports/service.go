package ports

import (
	"context"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

type QueueService interface {
	Join(ctx context.Context, teacherID, parentSessionID, childName string) (*domain.QueueEntry, error)
	EndCurrentMeeting(ctx context.Context, teacherID string) (*domain.Meeting, error)
	SkipNoShow(ctx context.Context, teacherID string) (*domain.Meeting, error)
	ExtendCurrentMeeting(ctx context.Context, teacherID string, seconds int) (*domain.Meeting, error)
	LeaveQueue(ctx context.Context, entryID, parentSessionID string) (*domain.QueueEntry, error)
	QueueView(ctx context.Context, teacherID string) ([]domain.QueueEntryWithParent, error)
	ParentEntries(ctx context.Context, parentSessionID string) ([]domain.ParentEntryView, error)
	TeacherStats(ctx context.Context, teacherID string) (*domain.TeacherStats, error)
}

type DirectoryService interface {
	CreateTeacher(ctx context.Context, name, subject string) (*domain.Teacher, error)
	SetTeacherActive(ctx context.Context, teacherID string, active bool) (*domain.Teacher, error)
	TeacherByCode(ctx context.Context, code string) (*domain.Teacher, error)
	Teacher(ctx context.Context, teacherID string) (*domain.Teacher, error)
	ListTeachers(ctx context.Context) ([]domain.Teacher, error)
	StartParentSession(ctx context.Context, deviceToken, displayName string) (*domain.ParentSession, error)
}

// TokenIssuer signs bearer tokens for actors the service creates itself.
type TokenIssuer interface {
	IssueToken(actor domain.Actor) (string, error)
}
