package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
)

// Postgres error codes that mean "try the whole transaction again".
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

// Partial unique indexes from the init migration. The open-entry index maps
// to a caller error; the others only fire when a concurrent writer won.
const openEntryIndex = "queue_entries_open_parent_uniq"

type PostgresStore struct {
	db          *sql.DB
	lockTimeout time.Duration
	logger      *logrus.Logger
}

var _ ports.Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB, lockTimeout time.Duration, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, lockTimeout: lockTimeout, logger: logger}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn in a SERIALIZABLE transaction. Row locks taken by fn are held
// until commit or rollback.
func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return classify(errors.Wrap(err, "postgres: begin"))
	}
	defer tx.Rollback()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return classify(errors.Wrap(err, "postgres: set lock timeout"))
		}
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(errors.Wrap(err, "postgres: commit"))
	}
	return nil
}

// classify turns retryable driver errors into domain.ErrTxConflict and keeps
// everything else as is.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return errors.WithMessage(domain.ErrTxConflict, err.Error())
	case codeUniqueViolation:
		if pqErr.Constraint == openEntryIndex {
			return domain.ErrDuplicateJoin
		}
		return errors.WithMessage(domain.ErrTxConflict, err.Error())
	}
	return err
}

// validID filters out strings that could never match a uuid column, so they
// read as "not found" instead of a driver error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type scanner interface {
	Scan(dest ...any) error
}

type pgTx struct {
	tx *sql.Tx
}

var _ ports.Tx = (*pgTx)(nil)

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
