package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/metrics"
)

const codeAttempts = 10

// DirectoryService manages teachers and parent sessions.
type DirectoryService struct {
	runner
	nextCode func() string
}

var _ ports.DirectoryService = (*DirectoryService)(nil)

func NewDirectoryService(
	store ports.Store,
	m *metrics.Metrics,
	logger *logrus.Logger,
	cfg RunnerConfig,
) *DirectoryService {
	return &DirectoryService{
		runner:   newRunner(store, nil, m, logger, cfg),
		nextCode: domain.RandomCode,
	}
}

func (s *DirectoryService) CreateTeacher(ctx context.Context, name, subject string) (*domain.Teacher, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.WithMessage(domain.ErrInvalidInput, "teacher name is required")
	}

	var teacher *domain.Teacher
	err := s.run(ctx, "create_teacher", func(ctx context.Context, u *unit) error {
		id := uuid.NewString()
		code, err := domain.GenerateCode(
			s.nextCode,
			func(c string) (bool, error) { return u.tx.TeacherCodeExists(ctx, c) },
			codeAttempts,
			domain.FallbackCode(id),
		)
		if err != nil {
			return err
		}

		teacher = &domain.Teacher{
			ID:        id,
			Name:      name,
			Subject:   strings.TrimSpace(subject),
			Code:      code,
			Active:    true,
			CreatedAt: u.now,
		}
		return u.tx.InsertTeacher(ctx, teacher)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"teacher_id": teacher.ID,
		"code":       teacher.Code,
	}).Info("teacher created")
	return teacher, nil
}

// SetTeacherActive toggles whether parents may join the teacher's line.
// Deactivating does not touch entries already queued.
func (s *DirectoryService) SetTeacherActive(ctx context.Context, teacherID string, active bool) (*domain.Teacher, error) {
	var teacher *domain.Teacher
	err := s.run(ctx, "set_teacher_active", func(ctx context.Context, u *unit) error {
		var err error
		teacher, err = u.tx.LockTeacher(ctx, teacherID)
		if err != nil {
			return err
		}
		if teacher.Active == active {
			return nil
		}
		teacher.Active = active
		return u.tx.UpdateTeacher(ctx, teacher)
	})
	return teacher, err
}

func (s *DirectoryService) TeacherByCode(ctx context.Context, code string) (*domain.Teacher, error) {
	code = domain.NormalizeCode(code)
	if !domain.ValidCode(code) {
		return nil, domain.ErrTeacherNotFound
	}
	var teacher *domain.Teacher
	err := s.run(ctx, "teacher_by_code", func(ctx context.Context, u *unit) error {
		var err error
		teacher, err = u.tx.GetTeacherByCode(ctx, code)
		return err
	})
	return teacher, err
}

func (s *DirectoryService) Teacher(ctx context.Context, teacherID string) (*domain.Teacher, error) {
	var teacher *domain.Teacher
	err := s.run(ctx, "teacher", func(ctx context.Context, u *unit) error {
		var err error
		teacher, err = u.tx.GetTeacher(ctx, teacherID)
		return err
	})
	return teacher, err
}

func (s *DirectoryService) ListTeachers(ctx context.Context) ([]domain.Teacher, error) {
	var teachers []domain.Teacher
	err := s.run(ctx, "list_teachers", func(ctx context.Context, u *unit) error {
		var err error
		teachers, err = u.tx.ListTeachers(ctx)
		return err
	})
	return teachers, err
}

// StartParentSession returns the session bound to deviceToken, creating it
// on first use. An empty token always starts a fresh session.
func (s *DirectoryService) StartParentSession(ctx context.Context, deviceToken, displayName string) (*domain.ParentSession, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, errors.WithMessage(domain.ErrInvalidInput, "display name is required")
	}
	deviceToken = strings.TrimSpace(deviceToken)
	if deviceToken == "" {
		deviceToken = uuid.NewString()
	}

	var session *domain.ParentSession
	err := s.run(ctx, "start_parent_session", func(ctx context.Context, u *unit) error {
		existing, err := u.tx.FindParentSessionByDevice(ctx, deviceToken)
		if err != nil {
			return errors.Wrap(err, "find parent session")
		}
		if existing != nil {
			session = existing
			return nil
		}
		session = &domain.ParentSession{
			ID:          uuid.NewString(),
			DeviceToken: deviceToken,
			DisplayName: displayName,
			CreatedAt:   u.now,
		}
		return u.tx.InsertParentSession(ctx, session)
	})
	return session, err
}
