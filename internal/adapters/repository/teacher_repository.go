package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

const teacherColumns = "id, name, subject, code, active, created_at"

func scanTeacher(row scanner) (*domain.Teacher, error) {
	var t domain.Teacher
	if err := row.Scan(&t.ID, &t.Name, &t.Subject, &t.Code, &t.Active, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *pgTx) teacher(ctx context.Context, query string, arg any) (*domain.Teacher, error) {
	t, err := scanTeacher(r.tx.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTeacherNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "postgres: select teacher")
	}
	return t, nil
}

func (r *pgTx) InsertTeacher(ctx context.Context, t *domain.Teacher) error {
	_, err := r.tx.ExecContext(ctx,
		"INSERT INTO teachers ("+teacherColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		t.ID, t.Name, t.Subject, t.Code, t.Active, t.CreatedAt,
	)
	return errors.Wrap(err, "postgres: insert teacher")
}

func (r *pgTx) UpdateTeacher(ctx context.Context, t *domain.Teacher) error {
	res, err := r.tx.ExecContext(ctx,
		"UPDATE teachers SET name = $2, subject = $3, active = $4 WHERE id = $1",
		t.ID, t.Name, t.Subject, t.Active,
	)
	if err != nil {
		return errors.Wrap(err, "postgres: update teacher")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTeacherNotFound
	}
	return nil
}

func (r *pgTx) GetTeacher(ctx context.Context, id string) (*domain.Teacher, error) {
	if !validID(id) {
		return nil, domain.ErrTeacherNotFound
	}
	return r.teacher(ctx, "SELECT "+teacherColumns+" FROM teachers WHERE id = $1", id)
}

func (r *pgTx) GetTeacherByCode(ctx context.Context, code string) (*domain.Teacher, error) {
	return r.teacher(ctx, "SELECT "+teacherColumns+" FROM teachers WHERE code = $1", domain.NormalizeCode(code))
}

func (r *pgTx) TeacherCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM teachers WHERE code = $1)", code,
	).Scan(&exists)
	return exists, errors.Wrap(err, "postgres: teacher code exists")
}

func (r *pgTx) ListTeachers(ctx context.Context) ([]domain.Teacher, error) {
	rows, err := r.tx.QueryContext(ctx, "SELECT "+teacherColumns+" FROM teachers ORDER BY name, created_at")
	if err != nil {
		return nil, errors.Wrap(err, "postgres: list teachers")
	}
	defer rows.Close()

	var teachers []domain.Teacher
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, errors.Wrap(err, "postgres: scan teacher")
		}
		teachers = append(teachers, *t)
	}
	return teachers, errors.Wrap(rows.Err(), "postgres: list teachers")
}

func (r *pgTx) LockTeacher(ctx context.Context, id string) (*domain.Teacher, error) {
	if !validID(id) {
		return nil, domain.ErrTeacherNotFound
	}
	return r.teacher(ctx, "SELECT "+teacherColumns+" FROM teachers WHERE id = $1 FOR UPDATE", id)
}

const parentColumns = "id, device_token, display_name, created_at"

func (r *pgTx) parentSession(ctx context.Context, query string, arg any) (*domain.ParentSession, error) {
	var p domain.ParentSession
	err := r.tx.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.DeviceToken, &p.DisplayName, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pgTx) InsertParentSession(ctx context.Context, p *domain.ParentSession) error {
	_, err := r.tx.ExecContext(ctx,
		"INSERT INTO parent_sessions ("+parentColumns+") VALUES ($1, $2, $3, $4)",
		p.ID, p.DeviceToken, p.DisplayName, p.CreatedAt,
	)
	return errors.Wrap(err, "postgres: insert parent session")
}

func (r *pgTx) GetParentSession(ctx context.Context, id string) (*domain.ParentSession, error) {
	if !validID(id) {
		return nil, domain.ErrParentSessionNotFound
	}
	p, err := r.parentSession(ctx, "SELECT "+parentColumns+" FROM parent_sessions WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrParentSessionNotFound
	}
	return p, errors.Wrap(err, "postgres: select parent session")
}

func (r *pgTx) FindParentSessionByDevice(ctx context.Context, deviceToken string) (*domain.ParentSession, error) {
	p, err := r.parentSession(ctx, "SELECT "+parentColumns+" FROM parent_sessions WHERE device_token = $1", deviceToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, errors.Wrap(err, "postgres: find parent session")
}

func (r *pgTx) LockParentSession(ctx context.Context, id string) (*domain.ParentSession, error) {
	if !validID(id) {
		return nil, domain.ErrParentSessionNotFound
	}
	p, err := r.parentSession(ctx, "SELECT "+parentColumns+" FROM parent_sessions WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrParentSessionNotFound
	}
	return p, errors.Wrap(err, "postgres: lock parent session")
}
