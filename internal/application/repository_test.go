package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"registration-service/internal/application"
	"registration-service/internal/metrics"
	"registration-service/internal/student"
	"registration-service/testing/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func models() []interface{} {
	return []interface{}{
		(*student.Institution)(nil),
		(*student.Student)(nil),
		(*application.Application)(nil),
		(*application.Document)(nil),
	}
}

func seedStudent(t *testing.T, db *bun.DB, reapplyCount int) *student.Student {
	t.Helper()
	ctx := context.Background()

	inst := &student.Institution{Code: "RVCE", Name: "RV College of Engineering"}
	_, err := db.NewInsert().Model(inst).Exec(ctx)
	require.NoError(t, err)

	s := &student.Student{USN: "1RV21CS001", Name: "Asha", InstitutionID: inst.ID, ReapplyCount: reapplyCount}
	_, err = db.NewInsert().Model(s).Exec(ctx)
	require.NoError(t, err)
	return s
}

func newApplication(s *student.Student) *application.Application {
	app := &application.Application{
		StudentID:     s.ID,
		InstitutionID: s.InstitutionID,
		Status:        application.StatusInProgress,
	}
	app.SetDetails(application.Details{
		Department:  "CSE",
		YearOfStudy: 2,
		Semester:    3,
		BloodGroup:  "O+",
		Address:     "Bengaluru",
	})
	return app
}

func TestRepository(t *testing.T) {
	pg := testdb.SetupSharedPostgres(t)
	pg.RunMigrations(t, models())

	repo := application.NewRepository(pg.DB, metrics.NewMock())
	ctx := context.Background()

	cleanup := func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "documents", "applications", "students", "institutions")
	}

	t.Run("CreateIfAbsent", func(t *testing.T) {
		cleanup(t)
		s := seedStudent(t, pg.DB, 0)

		created, err := repo.CreateIfAbsent(ctx, newApplication(s))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = repo.CreateIfAbsent(ctx, newApplication(s))
		require.NoError(t, err)
		assert.False(t, created)

		app, err := repo.GetByStudentID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, application.StatusInProgress, app.Status)
		assert.Equal(t, "CSE", app.Department)
		assert.Nil(t, app.SubmittedAt)
	})

	t.Run("CreateIfAbsentConcurrent", func(t *testing.T) {
		cleanup(t)
		s := seedStudent(t, pg.DB, 0)

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				created, err := repo.CreateIfAbsent(ctx, newApplication(s))
				assert.NoError(t, err)
				if created {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
		count, err := pg.DB.NewSelect().Model((*application.Application)(nil)).Where("student_id = ?", s.ID).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("CreateIfAbsentUnknownStudent", func(t *testing.T) {
		cleanup(t)

		created, err := repo.CreateIfAbsent(ctx, newApplication(&student.Student{ID: 999, InstitutionID: 1}))
		assert.Error(t, err)
		assert.False(t, created)

		count, err := pg.DB.NewSelect().Model((*application.Application)(nil)).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("GetByStudentIDNotFound", func(t *testing.T) {
		cleanup(t)
		_, err := repo.GetByStudentID(ctx, 999)
		assert.True(t, errors.Is(err, application.ErrApplicationNotFound))
	})

	t.Run("UpdateIfStatus", func(t *testing.T) {
		cleanup(t)
		s := seedStudent(t, pg.DB, 0)
		app := newApplication(s)
		_, err := repo.CreateIfAbsent(ctx, app)
		require.NoError(t, err)

		d := app.Details()
		d.Semester = 4
		ok, err := repo.UpdateIfStatus(ctx, app.ID, application.StatusInProgress, application.Update{
			Status:  application.StatusInProgress,
			Details: &d,
		})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.UpdateIfStatus(ctx, app.ID, application.StatusRejected, application.Update{
			Status: application.StatusInProgress,
		})
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, got.Semester)
	})

	t.Run("Reapply", func(t *testing.T) {
		cleanup(t)
		s := seedStudent(t, pg.DB, 1)
		app := newApplication(s)
		app.Status = application.StatusRejected
		remarks := "blurry id proof"
		app.ReviewRemarks = &remarks
		_, err := repo.CreateIfAbsent(ctx, app)
		require.NoError(t, err)

		d := app.Details()
		d.Address = "Mysuru"
		err = repo.Reapply(ctx, app, 2, d)
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, application.StatusInProgress, got.Status)
		assert.Equal(t, "Mysuru", got.Address)
		assert.Nil(t, got.ReviewRemarks)
		assert.Nil(t, got.SubmittedAt)

		var count int
		err = pg.DB.NewSelect().Model((*student.Student)(nil)).Column("reapply_count").Where("id = ?", s.ID).Scan(ctx, &count)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("ReapplyLimit", func(t *testing.T) {
		cleanup(t)
		s := seedStudent(t, pg.DB, 2)
		app := newApplication(s)
		app.Status = application.StatusRejected
		_, err := repo.CreateIfAbsent(ctx, app)
		require.NoError(t, err)

		err = repo.Reapply(ctx, app, 2, app.Details())
		assert.True(t, errors.Is(err, application.ErrReapplyLimit))

		got, err := repo.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, application.StatusRejected, got.Status)
	})

	t.Run("ReapplyRollsBackCounter", func(t *testing.T) {
		cleanup(t)
		s := seedStudent(t, pg.DB, 0)
		app := newApplication(s)
		_, err := repo.CreateIfAbsent(ctx, app)
		require.NoError(t, err)

		// still IN_PROGRESS, so the status guard fails after the counter bump
		err = repo.Reapply(ctx, app, 2, app.Details())
		assert.True(t, errors.Is(err, application.ErrStatusChanged))

		var count int
		err = pg.DB.NewSelect().Model((*student.Student)(nil)).Column("reapply_count").Where("id = ?", s.ID).Scan(ctx, &count)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("Submit", func(t *testing.T) {
		cleanup(t)
		s := seedStudent(t, pg.DB, 0)
		app := newApplication(s)
		_, err := repo.CreateIfAbsent(ctx, app)
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Microsecond)
		docs := make([]application.Document, 0, len(application.RequiredDocuments))
		for _, dt := range application.RequiredDocuments {
			docs = append(docs, application.Document{
				ApplicationID: app.ID,
				Type:          dt,
				URL:           "https://bucket/RVCE/1RV21CS001/" + dt.Slug() + ".pdf",
				UploadedAt:    now,
			})
		}

		err = repo.Submit(ctx, app.ID, docs, now)
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, application.StatusSubmitted, got.Status)
		require.NotNil(t, got.SubmittedAt)
		assert.True(t, now.Equal(*got.SubmittedAt))

		stored, err := repo.ListDocuments(ctx, app.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 3)

		// a second submit must not leave duplicate rows or change status
		err = repo.Submit(ctx, app.ID, docs, now)
		assert.True(t, errors.Is(err, application.ErrStatusChanged))

		stored, err = repo.ListDocuments(ctx, app.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 3)
	})

	t.Run("SubmitUpsertsExistingDocuments", func(t *testing.T) {
		cleanup(t)
		s := seedStudent(t, pg.DB, 0)
		app := newApplication(s)
		_, err := repo.CreateIfAbsent(ctx, app)
		require.NoError(t, err)

		old := &application.Document{
			ApplicationID: app.ID,
			Type:          application.DocumentIDProof,
			URL:           "https://bucket/old.pdf",
			UploadedAt:    time.Now().Add(-time.Hour),
		}
		_, err = pg.DB.NewInsert().Model(old).Exec(ctx)
		require.NoError(t, err)

		docs := []application.Document{{
			ApplicationID: app.ID,
			Type:          application.DocumentIDProof,
			URL:           "https://bucket/new.pdf",
			UploadedAt:    time.Now(),
		}}
		require.NoError(t, repo.Submit(ctx, app.ID, docs, time.Now()))

		stored, err := repo.ListDocuments(ctx, app.ID)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "https://bucket/new.pdf", stored[0].URL)
	})
}
