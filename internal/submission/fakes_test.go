package submission_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"registration-service/internal/application"
	"registration-service/internal/student"
)

type fakeStudents struct {
	mu       sync.Mutex
	students map[int]*student.Student
}

func newFakeStudents(list ...*student.Student) *fakeStudents {
	f := &fakeStudents{students: make(map[int]*student.Student)}
	for _, s := range list {
		f.students[s.ID] = s
	}
	return f
}

func (f *fakeStudents) GetByID(_ context.Context, id int) (*student.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStudents) reapplyCount(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.students[id].ReapplyCount
}

// fakeApps mirrors the conditional-write semantics of the Postgres repository.
type fakeApps struct {
	mu       sync.Mutex
	nextID   int
	apps     map[int]*application.Application
	docs     map[int]map[application.DocumentType]application.Document
	students *fakeStudents
	err      error
}

func newFakeApps(students *fakeStudents) *fakeApps {
	return &fakeApps{
		apps:     make(map[int]*application.Application),
		docs:     make(map[int]map[application.DocumentType]application.Document),
		students: students,
	}
}

func (f *fakeApps) GetByID(_ context.Context, id int) (*application.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.apps[id]
	if !ok {
		return nil, application.ErrApplicationNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeApps) GetByStudentID(_ context.Context, studentID int) (*application.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.apps {
		if a.StudentID == studentID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, application.ErrApplicationNotFound
}

func (f *fakeApps) CreateIfAbsent(_ context.Context, app *application.Application) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.apps {
		if a.StudentID == app.StudentID {
			return false, nil
		}
	}
	f.nextID++
	app.ID = f.nextID
	cp := *app
	f.apps[app.ID] = &cp
	return true, nil
}

func (f *fakeApps) UpdateIfStatus(_ context.Context, id int, expected application.Status, u application.Update) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateLocked(id, expected, u), nil
}

func (f *fakeApps) updateLocked(id int, expected application.Status, u application.Update) bool {
	a, ok := f.apps[id]
	if !ok || a.Status != expected {
		return false
	}
	a.Status = u.Status
	if u.Details != nil {
		a.SetDetails(*u.Details)
	}
	if u.SubmittedAt != nil {
		t := *u.SubmittedAt
		a.SubmittedAt = &t
	}
	if u.ClearReview {
		a.SubmittedAt = nil
		a.ReviewedAt = nil
		a.ReviewRemarks = nil
	}
	return true
}

func (f *fakeApps) Reapply(_ context.Context, app *application.Application, maxReapplications int, d application.Details) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.students.mu.Lock()
	s := f.students.students[app.StudentID]
	if s == nil || s.ReapplyCount >= maxReapplications {
		f.students.mu.Unlock()
		return application.ErrReapplyLimit
	}
	s.ReapplyCount++
	f.students.mu.Unlock()

	ok := f.updateLocked(app.ID, application.StatusRejected, application.Update{
		Status:      application.StatusInProgress,
		Details:     &d,
		ClearReview: true,
	})
	if !ok {
		f.students.mu.Lock()
		s.ReapplyCount--
		f.students.mu.Unlock()
		return application.ErrStatusChanged
	}
	return nil
}

func (f *fakeApps) Submit(_ context.Context, id int, docs []application.Document, submittedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	a, ok := f.apps[id]
	if !ok || a.Status != application.StatusInProgress {
		return application.ErrStatusChanged
	}
	if f.docs[id] == nil {
		f.docs[id] = make(map[application.DocumentType]application.Document)
	}
	for _, d := range docs {
		f.docs[id][d.Type] = d
	}
	f.updateLocked(id, application.StatusInProgress, application.Update{
		Status:      application.StatusSubmitted,
		SubmittedAt: &submittedAt,
	})
	return nil
}

func (f *fakeApps) ListDocuments(_ context.Context, applicationID int) ([]application.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []application.Document
	for _, dt := range application.RequiredDocuments {
		if d, ok := f.docs[applicationID][dt]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// put stores an application directly, bypassing the workflow.
func (f *fakeApps) put(a *application.Application) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = f.nextID
	cp := *a
	f.apps[a.ID] = &cp
}

func (f *fakeApps) setStatus(id int, st application.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[id].Status = st
}

func (f *fakeApps) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.apps)
}

type issuedURL struct {
	path string
	ttl  time.Duration
}

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string]bool
	issued    []issuedURL
	existsErr error
	issueErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]bool)}
}

func (f *fakeStore) IssueWriteURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issueErr != nil {
		return "", f.issueErr
	}
	f.issued = append(f.issued, issuedURL{path: path, ttl: ttl})
	return "https://upload.example/" + path + "?sig=1", nil
}

func (f *fakeStore) Exists(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.objects[path], nil
}

func (f *fakeStore) ObjectURL(path string) string {
	return "https://docs.example/" + path
}

func (f *fakeStore) upload(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		f.objects[p] = true
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	events []interface{}
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, key string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.events = append(f.events, value)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

var errBoom = errors.New("boom")
