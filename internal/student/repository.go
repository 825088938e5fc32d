package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"registration-service/internal/metrics"

	"github.com/uptrace/bun"
)

var ErrStudentNotFound = errors.New("student not found")

type Repository interface {
	GetByID(ctx context.Context, id int) (*Student, error)
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

// GetByID loads the student together with its institution.
func (r *repository) GetByID(ctx context.Context, id int) (*Student, error) {
	start := time.Now()
	s := new(Student)
	err := r.db.NewSelect().
		Model(s).
		Relation("Institution").
		Where("s.id = ?", id).
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, metrics.OpSelect, metrics.TableStudents, time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return s, nil
}
