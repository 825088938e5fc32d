package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"registration-service/internal/application"
	"registration-service/internal/auth"
	"registration-service/internal/config"
	"registration-service/internal/event"
	"registration-service/internal/metrics"
	"registration-service/internal/session"
	"registration-service/internal/storage"
	"registration-service/internal/student"

	"github.com/go-playground/validator/v10"
)

// Sessions is the slice of session.Manager used by the workflow.
type Sessions interface {
	Create(ctx context.Context, studentID int, applicationID *int) (*session.UploadSession, error)
	Validate(ctx context.Context, token string, studentID int) (*session.UploadSession, error)
	Consume(ctx context.Context, token string) error
}

type Service interface {
	SaveDetails(ctx context.Context, identity *auth.Identity, form DetailsForm) (*SaveResult, error)
	GenerateUploadURLs(ctx context.Context, identity *auth.Identity) (*UploadTicket, error)
	FinalizeSubmission(ctx context.Context, identity *auth.Identity, token string) (*FinalizeResult, error)
	GetApplication(ctx context.Context, identity *auth.Identity) (*ApplicationView, error)
}

type Option func(*service)

// WithMaxReapplications sets how many times a rejected application may be reopened.
func WithMaxReapplications(n int) Option {
	return func(s *service) {
		s.maxReapplications = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

type service struct {
	apps      application.Repository
	students  student.Repository
	sessions  Sessions
	store     storage.Store
	publisher event.Publisher
	validate  *validator.Validate
	logger    *slog.Logger
	metrics   *metrics.Metrics

	maxReapplications int
	now               func() time.Time
}

func NewService(
	apps application.Repository,
	students student.Repository,
	sessions Sessions,
	store storage.Store,
	publisher event.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
	opts ...Option,
) Service {
	s := &service{
		apps:              apps,
		students:          students,
		sessions:          sessions,
		store:             store,
		publisher:         publisher,
		validate:          newValidator(),
		logger:            logger,
		metrics:           m,
		maxReapplications: config.DefaultMaxReapplications,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = event.Nop{}
	}
	return s
}

func (s *service) SaveDetails(ctx context.Context, identity *auth.Identity, form DetailsForm) (*SaveResult, error) {
	form.normalize()
	if err := s.validate.Struct(form); err != nil {
		return nil, newError(KindValidation, validationMessage(err))
	}
	d := form.details()

	st, err := s.students.GetByID(ctx, identity.StudentID)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			return nil, newError(KindNotFound, "student not found")
		}
		return nil, internalError("load student", err)
	}

	existing, err := s.apps.GetByStudentID(ctx, identity.StudentID)
	switch {
	case errors.Is(err, application.ErrApplicationNotFound):
		app := &application.Application{
			StudentID:     st.ID,
			InstitutionID: st.InstitutionID,
			Status:        application.StatusInProgress,
		}
		app.SetDetails(d)

		created, err := s.apps.CreateIfAbsent(ctx, app)
		if err != nil {
			return nil, internalError("create application", err)
		}
		if created {
			s.logger.InfoContext(ctx, "application created", "application_id", app.ID, "student_id", identity.StudentID)
			s.metrics.RecordDetailsSaved(ctx, true)
			return &SaveResult{Success: true, ApplicationID: app.ID, Status: app.Status, Created: true}, nil
		}

		// lost the insert race; handle whatever row won
		existing, err = s.apps.GetByStudentID(ctx, identity.StudentID)
		if err != nil {
			return nil, internalError("reload application after conflict", err)
		}
	case err != nil:
		return nil, internalError("load application", err)
	}

	return s.updateExisting(ctx, identity, existing, d)
}

func (s *service) updateExisting(ctx context.Context, identity *auth.Identity, app *application.Application, d application.Details) (*SaveResult, error) {
	switch {
	case app.Status.Occupied():
		return nil, newError(KindConflict, "an application is already submitted or under review")

	case app.Status == application.StatusInProgress:
		ok, err := s.apps.UpdateIfStatus(ctx, app.ID, application.StatusInProgress, application.Update{
			Status:  application.StatusInProgress,
			Details: &d,
		})
		if err != nil {
			return nil, internalError("update application", err)
		}
		if !ok {
			return nil, newError(KindConflict, "application changed while saving, please retry")
		}
		s.metrics.RecordDetailsSaved(ctx, false)

	case app.Status == application.StatusRejected:
		err := s.apps.Reapply(ctx, app, s.maxReapplications, d)
		switch {
		case errors.Is(err, application.ErrReapplyLimit):
			s.logger.InfoContext(ctx, "reapplication refused", "student_id", identity.StudentID, "max", s.maxReapplications)
			return nil, newError(KindForbidden, fmt.Sprintf("reapplication limit of %d reached", s.maxReapplications))
		case errors.Is(err, application.ErrStatusChanged):
			return nil, newError(KindConflict, "application changed while saving, please retry")
		case err != nil:
			return nil, internalError("reapply", err)
		}
		s.logger.InfoContext(ctx, "application reopened", "application_id", app.ID, "student_id", identity.StudentID)
		s.metrics.RecordReapplication(ctx)
		s.metrics.RecordDetailsSaved(ctx, false)

	default:
		return nil, newError(KindInvalidState, fmt.Sprintf("application in status %s cannot be edited", app.Status))
	}

	return &SaveResult{Success: true, ApplicationID: app.ID, Status: application.StatusInProgress}, nil
}

func (s *service) GenerateUploadURLs(ctx context.Context, identity *auth.Identity) (*UploadTicket, error) {
	app, err := s.apps.GetByStudentID(ctx, identity.StudentID)
	if err != nil {
		if errors.Is(err, application.ErrApplicationNotFound) {
			return nil, newError(KindNotFound, "no application found, save details first")
		}
		return nil, internalError("load application", err)
	}
	if app.Status != application.StatusInProgress {
		return nil, newError(KindInvalidState, fmt.Sprintf("application is %s, uploads are only allowed while IN_PROGRESS", app.Status))
	}

	paths, err := s.documentPaths(ctx, identity.StudentID)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, identity.StudentID, &app.ID)
	if err != nil {
		return nil, internalError("create upload session", err)
	}

	ttl := sess.ExpiresAt.Sub(s.now())
	urls := make(map[application.DocumentType]string, len(application.RequiredDocuments))
	for _, dt := range application.RequiredDocuments {
		url, err := s.store.IssueWriteURL(ctx, paths[dt], ttl)
		if err != nil {
			if cerr := s.sessions.Consume(ctx, sess.Token); cerr != nil {
				s.logger.WarnContext(ctx, "failed to discard unused session", "error", cerr)
			}
			return nil, internalError("issue upload url", err)
		}
		urls[dt] = url
	}

	s.logger.InfoContext(ctx, "upload session issued", "application_id", app.ID, "expires_at", sess.ExpiresAt)
	s.metrics.RecordUploadSessionIssued(ctx)

	return &UploadTicket{
		Success:       true,
		ApplicationID: app.ID,
		SessionID:     sess.Token,
		UploadURLs:    urls,
		ExpiresAt:     sess.ExpiresAt,
	}, nil
}

func (s *service) FinalizeSubmission(ctx context.Context, identity *auth.Identity, token string) (*FinalizeResult, error) {
	if token == "" {
		return nil, newError(KindValidation, "session_id is required")
	}

	sess, err := s.sessions.Validate(ctx, token, identity.StudentID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, newError(KindNotFound, "upload session not found or expired")
		}
		return nil, internalError("validate session", err)
	}
	if sess.ApplicationID == nil {
		return nil, newError(KindNotFound, "upload session is not bound to an application")
	}

	app, err := s.apps.GetByID(ctx, *sess.ApplicationID)
	if err != nil {
		if errors.Is(err, application.ErrApplicationNotFound) {
			return nil, newError(KindNotFound, "application not found")
		}
		return nil, internalError("load application", err)
	}
	if app.StudentID != identity.StudentID {
		return nil, newError(KindNotFound, "application not found")
	}
	if app.Status != application.StatusInProgress {
		return nil, newError(KindInvalidState, fmt.Sprintf("application is %s, only IN_PROGRESS applications can be submitted", app.Status))
	}

	paths, err := s.documentPaths(ctx, identity.StudentID)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, dt := range application.RequiredDocuments {
		ok, err := s.store.Exists(ctx, paths[dt])
		if err != nil {
			return nil, internalError("check uploaded document", err)
		}
		if !ok {
			missing = append(missing, string(dt))
		}
	}
	if len(missing) > 0 {
		s.logger.InfoContext(ctx, "submission incomplete", "application_id", app.ID, "missing", missing)
		s.metrics.RecordIncompleteUpload(ctx, len(missing))
		return nil, &Error{
			Kind:    KindIncompleteUpload,
			Message: "missing required documents: " + strings.Join(missing, ", "),
			Missing: missing,
		}
	}

	now := s.now().UTC()
	docs := make([]application.Document, 0, len(application.RequiredDocuments))
	urls := make(map[string]string, len(application.RequiredDocuments))
	for _, dt := range application.RequiredDocuments {
		url := s.store.ObjectURL(paths[dt])
		docs = append(docs, application.Document{
			ApplicationID: app.ID,
			Type:          dt,
			URL:           url,
			UploadedAt:    now,
		})
		urls[string(dt)] = url
	}

	if err := s.apps.Submit(ctx, app.ID, docs, now); err != nil {
		if errors.Is(err, application.ErrStatusChanged) {
			return nil, newError(KindInvalidState, "application was already submitted")
		}
		return nil, internalError("submit application", err)
	}

	// the submission stands even if the session row outlives it
	if err := s.sessions.Consume(ctx, token); err != nil {
		s.logger.WarnContext(ctx, "failed to consume upload session", "application_id", app.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "application submitted", "application_id", app.ID, "student_id", identity.StudentID)
	s.metrics.RecordSubmissionFinalized(ctx)

	ev := event.ApplicationSubmitted{
		Type:          event.TypeApplicationSubmitted,
		ApplicationID: app.ID,
		StudentID:     app.StudentID,
		InstitutionID: app.InstitutionID,
		USN:           identity.USN,
		SubmittedAt:   now,
		Documents:     urls,
	}
	if err := s.publisher.Publish(ctx, ev.Key(), ev); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish submission event", "application_id", app.ID, "error", err)
	}

	return &FinalizeResult{
		Success:       true,
		ApplicationID: app.ID,
		Status:        application.StatusSubmitted,
		SubmittedAt:   now,
	}, nil
}

func (s *service) GetApplication(ctx context.Context, identity *auth.Identity) (*ApplicationView, error) {
	app, err := s.apps.GetByStudentID(ctx, identity.StudentID)
	if err != nil {
		if errors.Is(err, application.ErrApplicationNotFound) {
			return nil, newError(KindNotFound, "no application found")
		}
		return nil, internalError("load application", err)
	}

	docs, err := s.apps.ListDocuments(ctx, app.ID)
	if err != nil {
		return nil, internalError("list documents", err)
	}
	if docs == nil {
		docs = []application.Document{}
	}

	st, err := s.students.GetByID(ctx, identity.StudentID)
	if err != nil {
		return nil, internalError("load student", err)
	}

	remaining := s.maxReapplications - st.ReapplyCount
	if remaining < 0 {
		remaining = 0
	}

	return &ApplicationView{
		Application:             app,
		Documents:               docs,
		ReapplyCount:            st.ReapplyCount,
		ReapplicationsRemaining: remaining,
	}, nil
}

// documentPaths resolves the storage path of every required document for the
// student. Paths are deterministic so re-issued URLs overwrite earlier uploads.
func (s *service) documentPaths(ctx context.Context, studentID int) (map[application.DocumentType]string, error) {
	st, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			return nil, newError(KindNotFound, "student not found")
		}
		return nil, internalError("load student", err)
	}
	if st.Institution == nil {
		return nil, internalError("load student", fmt.Errorf("student %d has no institution", studentID))
	}

	paths := make(map[application.DocumentType]string, len(application.RequiredDocuments))
	for _, dt := range application.RequiredDocuments {
		p, err := storage.DocumentPath(st.Institution.Code, st.USN, dt.Slug())
		if err != nil {
			return nil, internalError("build document path", err)
		}
		paths[dt] = p
	}
	return paths, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return "invalid fields: " + strings.Join(msgs, "; ")
}
