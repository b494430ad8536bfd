package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

const meetingColumns = `id, teacher_id, queue_entry_id, parent_session_id, started_at, ended_at,
	duration_seconds, extended, extension_seconds`

func scanMeeting(row scanner) (*domain.Meeting, error) {
	var m domain.Meeting
	var ended sql.NullTime
	var duration sql.NullInt64
	err := row.Scan(&m.ID, &m.TeacherID, &m.QueueEntryID, &m.ParentSessionID, &m.StartedAt, &ended,
		&duration, &m.Extended, &m.ExtensionSeconds)
	if err != nil {
		return nil, err
	}
	m.EndedAt = timePtr(ended)
	if duration.Valid {
		d := int(duration.Int64)
		m.DurationSeconds = &d
	}
	return &m, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func (r *pgTx) InsertMeeting(ctx context.Context, m *domain.Meeting) error {
	_, err := r.tx.ExecContext(ctx,
		"INSERT INTO meetings ("+meetingColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		m.ID, m.TeacherID, m.QueueEntryID, m.ParentSessionID, m.StartedAt, nullTime(m.EndedAt),
		nullInt(m.DurationSeconds), m.Extended, m.ExtensionSeconds,
	)
	return errors.Wrap(err, "postgres: insert meeting")
}

func (r *pgTx) UpdateMeeting(ctx context.Context, m *domain.Meeting) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE meetings
		SET ended_at = $2, duration_seconds = $3, extended = $4, extension_seconds = $5
		WHERE id = $1`,
		m.ID, nullTime(m.EndedAt), nullInt(m.DurationSeconds), m.Extended, m.ExtensionSeconds,
	)
	if err != nil {
		return errors.Wrap(err, "postgres: update meeting")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMeetingNotFound
	}
	return nil
}

func (r *pgTx) GetMeeting(ctx context.Context, id string) (*domain.Meeting, error) {
	if !validID(id) {
		return nil, domain.ErrMeetingNotFound
	}
	m, err := scanMeeting(r.tx.QueryRowContext(ctx, "SELECT "+meetingColumns+" FROM meetings WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMeetingNotFound
	}
	return m, errors.Wrap(err, "postgres: select meeting")
}

func (r *pgTx) openMeeting(ctx context.Context, column, id string) (*domain.Meeting, error) {
	if !validID(id) {
		return nil, nil
	}
	m, err := scanMeeting(r.tx.QueryRowContext(ctx,
		"SELECT "+meetingColumns+" FROM meetings WHERE "+column+" = $1 AND ended_at IS NULL", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *pgTx) OpenMeetingForTeacher(ctx context.Context, teacherID string) (*domain.Meeting, error) {
	m, err := r.openMeeting(ctx, "teacher_id", teacherID)
	return m, errors.Wrap(err, "postgres: open meeting for teacher")
}

func (r *pgTx) OpenMeetingForParent(ctx context.Context, parentSessionID string) (*domain.Meeting, error) {
	m, err := r.openMeeting(ctx, "parent_session_id", parentSessionID)
	return m, errors.Wrap(err, "postgres: open meeting for parent")
}
