package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"registration-service/internal/metrics"
	"registration-service/internal/student"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	ErrApplicationNotFound = errors.New("application not found")
	// ErrStatusChanged means a conditional update found the row in another status.
	ErrStatusChanged = errors.New("application status changed concurrently")
	ErrReapplyLimit  = errors.New("reapplication limit reached")
)

// Update lists the fields a conditional update writes besides status.
type Update struct {
	Status      Status
	Details     *Details
	SubmittedAt *time.Time
	ClearReview bool
}

type Repository interface {
	GetByID(ctx context.Context, id int) (*Application, error)
	GetByStudentID(ctx context.Context, studentID int) (*Application, error)
	// CreateIfAbsent inserts app unless the student already has a row.
	// It reports false, without error, when another row won.
	CreateIfAbsent(ctx context.Context, app *Application) (bool, error)
	// UpdateIfStatus applies u only while the row is still in expected.
	UpdateIfStatus(ctx context.Context, id int, expected Status, u Update) (bool, error)
	// Reapply moves a REJECTED application back to IN_PROGRESS and bumps the
	// student's reapply counter, both or neither.
	Reapply(ctx context.Context, app *Application, maxReapplications int, d Details) error
	// Submit upserts the documents and moves the application from
	// IN_PROGRESS to SUBMITTED in one transaction.
	Submit(ctx context.Context, id int, docs []Document, submittedAt time.Time) error
	ListDocuments(ctx context.Context, applicationID int) ([]Document, error)
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

func (r *repository) GetByID(ctx context.Context, id int) (*Application, error) {
	return r.getOne(ctx, "a.id = ?", id)
}

func (r *repository) GetByStudentID(ctx context.Context, studentID int) (*Application, error) {
	return r.getOne(ctx, "a.student_id = ?", studentID)
}

func (r *repository) getOne(ctx context.Context, where string, arg interface{}) (*Application, error) {
	start := time.Now()
	app := new(Application)
	err := r.db.NewSelect().Model(app).Where(where, arg).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, metrics.OpSelect, metrics.TableApplications, time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return app, nil
}

func (r *repository) CreateIfAbsent(ctx context.Context, app *Application) (bool, error) {
	start := time.Now()
	res, err := r.db.NewInsert().
		Model(app).
		On("CONFLICT (student_id) DO NOTHING").
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, metrics.OpInsert, metrics.TableApplications, time.Since(start), err)

	if err != nil {
		if isUniqueViolation(err) {
			r.metrics.Database.RecordConditionalMiss(ctx, metrics.OpInsert, metrics.TableApplications)
			return false, nil
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		r.metrics.Database.RecordConditionalMiss(ctx, metrics.OpInsert, metrics.TableApplications)
	}
	return n == 1, nil
}

func (r *repository) UpdateIfStatus(ctx context.Context, id int, expected Status, u Update) (bool, error) {
	start := time.Now()
	ok, err := updateIfStatus(ctx, r.db, id, expected, u)
	r.metrics.Database.RecordQuery(ctx, metrics.OpUpdate, metrics.TableApplications, time.Since(start), err)
	if err == nil && !ok {
		r.metrics.Database.RecordConditionalMiss(ctx, metrics.OpUpdate, metrics.TableApplications)
	}
	return ok, err
}

func (r *repository) Reapply(ctx context.Context, app *Application, maxReapplications int, d Details) error {
	start := time.Now()
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*student.Student)(nil)).
			Set("reapply_count = reapply_count + 1").
			Where("id = ?", app.StudentID).
			Where("reapply_count < ?", maxReapplications).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("increment reapply count: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrReapplyLimit
		}

		ok, err := updateIfStatus(ctx, tx, app.ID, StatusRejected, Update{
			Status:      StatusInProgress,
			Details:     &d,
			ClearReview: true,
		})
		if err != nil {
			return fmt.Errorf("reset application: %w", err)
		}
		if !ok {
			return ErrStatusChanged
		}
		return nil
	})

	r.recordTx(ctx, metrics.OpReapplyTx, start, err)
	return err
}

func (r *repository) Submit(ctx context.Context, id int, docs []Document, submittedAt time.Time) error {
	start := time.Now()
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(docs) > 0 {
			_, err := tx.NewInsert().
				Model(&docs).
				On("CONFLICT (application_id, doc_type) DO UPDATE").
				Set("url = EXCLUDED.url").
				Set("uploaded_at = EXCLUDED.uploaded_at").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("upsert documents: %w", err)
			}
		}

		ok, err := updateIfStatus(ctx, tx, id, StatusInProgress, Update{
			Status:      StatusSubmitted,
			SubmittedAt: &submittedAt,
		})
		if err != nil {
			return fmt.Errorf("transition to submitted: %w", err)
		}
		if !ok {
			return ErrStatusChanged
		}
		return nil
	})

	r.recordTx(ctx, metrics.OpSubmitTx, start, err)
	return err
}

func (r *repository) ListDocuments(ctx context.Context, applicationID int) ([]Document, error) {
	start := time.Now()
	var docs []Document
	err := r.db.NewSelect().
		Model(&docs).
		Where("d.application_id = ?", applicationID).
		Order("d.doc_type ASC").
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, metrics.OpSelect, metrics.TableDocuments, time.Since(start), err)

	return docs, err
}

func updateIfStatus(ctx context.Context, db bun.IDB, id int, expected Status, u Update) (bool, error) {
	q := db.NewUpdate().
		Model((*Application)(nil)).
		Set("status = ?", u.Status).
		Set("updated_at = ?", time.Now().UTC())

	if d := u.Details; d != nil {
		q = q.Set("department = ?", d.Department).
			Set("year_of_study = ?", d.YearOfStudy).
			Set("semester = ?", d.Semester).
			Set("blood_group = ?", d.BloodGroup).
			Set("address = ?", d.Address)
	}
	if u.SubmittedAt != nil {
		q = q.Set("submitted_at = ?", *u.SubmittedAt)
	}
	if u.ClearReview {
		q = q.Set("submitted_at = NULL").
			Set("reviewed_at = NULL").
			Set("review_remarks = NULL")
	}

	res, err := q.Where("id = ?", id).Where("status = ?", expected).Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// recordTx counts a rolled-back guard as a conditional miss, not a query error.
func (r *repository) recordTx(ctx context.Context, op string, start time.Time, err error) {
	if errors.Is(err, ErrStatusChanged) || errors.Is(err, ErrReapplyLimit) {
		r.metrics.Database.RecordConditionalMiss(ctx, op, metrics.TableApplications)
		err = nil
	}
	r.metrics.Database.RecordQuery(ctx, op, metrics.TableApplications, time.Since(start), err)
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
