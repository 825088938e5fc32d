package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"registration-service/internal/db"
	"registration-service/internal/metrics"

	"github.com/uptrace/bun"
)

// ErrSessionNotFound covers both a missing and an expired session.
var ErrSessionNotFound = errors.New("upload session not found or expired")

// ExpiryIndex speeds up PurgeExpired.
var ExpiryIndex = db.Index{
	Model:   (*UploadSession)(nil),
	Name:    "upload_sessions_expires_at_idx",
	Columns: []string{"expires_at"},
}

type Repository interface {
	Insert(ctx context.Context, s *UploadSession) error
	// FindActive returns the session with the given digest owned by studentID
	// that has not expired at now.
	FindActive(ctx context.Context, id string, studentID int, now time.Time) (*UploadSession, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) Insert(ctx context.Context, s *UploadSession) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(s).Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, metrics.OpInsert, metrics.TableUploadSessions, time.Since(start), err)

	return err
}

func (r *repository) FindActive(ctx context.Context, id string, studentID int, now time.Time) (*UploadSession, error) {
	start := time.Now()
	s := new(UploadSession)
	err := r.db.NewSelect().
		Model(s).
		Where("us.id = ?", id).
		Where("us.student_id = ?", studentID).
		Where("us.expires_at >= ?", now).
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, metrics.OpSelect, metrics.TableUploadSessions, time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	_, err := r.db.NewDelete().
		Model((*UploadSession)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, metrics.OpDelete, metrics.TableUploadSessions, time.Since(start), err)

	return err
}

func (r *repository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	res, err := r.db.NewDelete().
		Model((*UploadSession)(nil)).
		Where("expires_at < ?", now).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, metrics.OpDelete, metrics.TableUploadSessions, time.Since(start), err)

	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
