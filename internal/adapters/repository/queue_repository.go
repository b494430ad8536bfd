package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

const entryColumns = `e.id, e.teacher_id, e.parent_session_id, e.child_name, e.status, e.position,
	e.removed, e.joined_at, e.notified_at, e.started_at, e.completed_at`

const activeStatuses = "('waiting', 'next', 'current')"

func entryDest(e *domain.QueueEntry, notified, started, completed *sql.NullTime) []any {
	return []any{
		&e.ID, &e.TeacherID, &e.ParentSessionID, &e.ChildName, &e.Status, &e.Position,
		&e.Removed, &e.JoinedAt, notified, started, completed,
	}
}

func scanEntry(row scanner) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	var notified, started, completed sql.NullTime
	if err := row.Scan(entryDest(&e, &notified, &started, &completed)...); err != nil {
		return nil, err
	}
	e.NotifiedAt, e.StartedAt, e.CompletedAt = timePtr(notified), timePtr(started), timePtr(completed)
	return &e, nil
}

func scanEntryWithParent(row scanner) (*domain.QueueEntryWithParent, error) {
	var e domain.QueueEntryWithParent
	var notified, started, completed sql.NullTime
	dest := append(entryDest(&e.QueueEntry, &notified, &started, &completed),
		&e.ParentName, &e.TeacherName, &e.TeacherCode)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	e.NotifiedAt, e.StartedAt, e.CompletedAt = timePtr(notified), timePtr(started), timePtr(completed)
	return &e, nil
}

func (r *pgTx) entries(ctx context.Context, query string, args ...any) ([]domain.QueueEntry, error) {
	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (r *pgTx) entriesWithParent(ctx context.Context, query string, args ...any) ([]domain.QueueEntryWithParent, error) {
	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.QueueEntryWithParent
	for rows.Next() {
		e, err := scanEntryWithParent(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (r *pgTx) InsertEntry(ctx context.Context, e *domain.QueueEntry) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO queue_entries (id, teacher_id, parent_session_id, child_name, status, position,
			removed, joined_at, notified_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.TeacherID, e.ParentSessionID, e.ChildName, e.Status, e.Position,
		e.Removed, e.JoinedAt, nullTime(e.NotifiedAt), nullTime(e.StartedAt), nullTime(e.CompletedAt),
	)
	return errors.Wrap(err, "postgres: insert entry")
}

func (r *pgTx) UpdateEntry(ctx context.Context, e *domain.QueueEntry) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE queue_entries
		SET status = $2, position = $3, removed = $4, notified_at = $5, started_at = $6, completed_at = $7
		WHERE id = $1`,
		e.ID, e.Status, e.Position, e.Removed,
		nullTime(e.NotifiedAt), nullTime(e.StartedAt), nullTime(e.CompletedAt),
	)
	if err != nil {
		return errors.Wrap(err, "postgres: update entry")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

func (r *pgTx) GetEntry(ctx context.Context, id string) (*domain.QueueEntry, error) {
	if !validID(id) {
		return nil, domain.ErrEntryNotFound
	}
	e, err := scanEntry(r.tx.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM queue_entries e WHERE e.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEntryNotFound
	}
	return e, errors.Wrap(err, "postgres: select entry")
}

func (r *pgTx) LockActiveEntries(ctx context.Context, teacherID string) ([]domain.QueueEntry, error) {
	if !validID(teacherID) {
		return nil, nil
	}
	entries, err := r.entries(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries e
		WHERE e.teacher_id = $1 AND e.status IN `+activeStatuses+`
		ORDER BY e.position DESC
		FOR UPDATE`, teacherID)
	return entries, errors.Wrap(err, "postgres: lock active entries")
}

func (r *pgTx) ListActiveEntries(ctx context.Context, teacherID string) ([]domain.QueueEntryWithParent, error) {
	if !validID(teacherID) {
		return nil, nil
	}
	entries, err := r.entriesWithParent(ctx, `
		SELECT `+entryColumns+`, p.display_name, t.name, t.code
		FROM queue_entries e
		JOIN parent_sessions p ON p.id = e.parent_session_id
		JOIN teachers t ON t.id = e.teacher_id
		WHERE e.teacher_id = $1 AND e.status IN `+activeStatuses+`
		ORDER BY e.position`, teacherID)
	return entries, errors.Wrap(err, "postgres: list active entries")
}

func (r *pgTx) FindOpenEntry(ctx context.Context, teacherID, parentSessionID string) (*domain.QueueEntry, error) {
	if !validID(teacherID) || !validID(parentSessionID) {
		return nil, nil
	}
	e, err := scanEntry(r.tx.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries e
		WHERE e.teacher_id = $1 AND e.parent_session_id = $2 AND e.status <> 'completed'`,
		teacherID, parentSessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, errors.Wrap(err, "postgres: find open entry")
}

func (r *pgTx) SkippedEntriesForParent(ctx context.Context, parentSessionID string) ([]domain.QueueEntry, error) {
	if !validID(parentSessionID) {
		return nil, nil
	}
	entries, err := r.entries(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries e
		WHERE e.parent_session_id = $1 AND e.status = 'skipped'
		ORDER BY e.joined_at, e.id`, parentSessionID)
	return entries, errors.Wrap(err, "postgres: skipped entries for parent")
}

func (r *pgTx) EntriesForParent(ctx context.Context, parentSessionID string) ([]domain.QueueEntryWithParent, error) {
	if !validID(parentSessionID) {
		return nil, nil
	}
	entries, err := r.entriesWithParent(ctx, `
		SELECT `+entryColumns+`, p.display_name, t.name, t.code
		FROM queue_entries e
		JOIN parent_sessions p ON p.id = e.parent_session_id
		JOIN teachers t ON t.id = e.teacher_id
		WHERE e.parent_session_id = $1 AND e.status <> 'completed'
		ORDER BY e.joined_at`, parentSessionID)
	return entries, errors.Wrap(err, "postgres: entries for parent")
}

func (r *pgTx) TeacherStats(ctx context.Context, teacherID string) (*domain.TeacherStats, error) {
	stats := &domain.TeacherStats{TeacherID: teacherID}
	if !validID(teacherID) {
		return stats, nil
	}
	err := r.tx.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('waiting', 'next')),
			COUNT(*) FILTER (WHERE status = 'skipped'),
			COUNT(*) FILTER (WHERE status = 'completed' AND NOT removed),
			COUNT(*) FILTER (WHERE removed)
		FROM queue_entries
		WHERE teacher_id = $1`, teacherID,
	).Scan(&stats.Waiting, &stats.Skipped, &stats.Completed, &stats.Removed)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: entry stats")
	}

	err = r.tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(ROUND(AVG(duration_seconds)), 0)::int
		FROM meetings
		WHERE teacher_id = $1 AND ended_at IS NOT NULL`, teacherID,
	).Scan(&stats.MeetingsHeld, &stats.AverageSeconds)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: meeting stats")
	}
	return stats, nil
}
