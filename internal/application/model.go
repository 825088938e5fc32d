package application

import (
	"time"

	"registration-service/internal/student"

	"github.com/uptrace/bun"
)

type Status string

const (
	StatusInProgress    Status = "IN_PROGRESS"
	StatusSubmitted     Status = "SUBMITTED"
	StatusUnderReview   Status = "UNDER_REVIEW"
	StatusApproved      Status = "APPROVED"
	StatusFinalApproved Status = "FINAL_APPROVED"
	StatusRejected      Status = "REJECTED"
)

// Occupied reports whether an application in this status blocks the
// student from saving new details.
func (s Status) Occupied() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusApproved, StatusFinalApproved:
		return true
	default:
		return false
	}
}

type DocumentType string

const (
	DocumentIDProof            DocumentType = "ID_PROOF"
	DocumentInstitutionID      DocumentType = "INSTITUTION_ID"
	DocumentQualificationProof DocumentType = "QUALIFICATION_PROOF"
)

// RequiredDocuments is the closed set every submission must carry, in a
// stable order.
var RequiredDocuments = []DocumentType{
	DocumentIDProof,
	DocumentInstitutionID,
	DocumentQualificationProof,
}

// Slug is the storage file name stem for the document type.
func (t DocumentType) Slug() string {
	switch t {
	case DocumentIDProof:
		return "id-proof"
	case DocumentInstitutionID:
		return "institution-id"
	case DocumentQualificationProof:
		return "qualification-proof"
	default:
		return ""
	}
}

// Details are the student-editable fields of an application.
type Details struct {
	Department  string
	YearOfStudy int
	Semester    int
	BloodGroup  string
	Address     string
}

type Application struct {
	bun.BaseModel `bun:"table:applications,alias:a"`

	ID            int        `bun:"id,pk,autoincrement" json:"id"`
	StudentID     int        `bun:"student_id,unique,notnull" json:"student_id"`
	InstitutionID int        `bun:"institution_id,notnull" json:"institution_id"`
	Status        Status     `bun:"status,notnull" json:"status"`
	Department    string     `bun:"department,notnull" json:"department"`
	YearOfStudy   int        `bun:"year_of_study,notnull" json:"year_of_study"`
	Semester      int        `bun:"semester,notnull" json:"semester"`
	BloodGroup    string     `bun:"blood_group,notnull" json:"blood_group"`
	Address       string     `bun:"address,notnull" json:"address"`
	SubmittedAt   *time.Time `bun:"submitted_at" json:"submitted_at,omitempty"`
	ReviewedAt    *time.Time `bun:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewRemarks *string    `bun:"review_remarks" json:"review_remarks,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	Student *student.Student `bun:"rel:belongs-to,join:student_id=id" json:"-"`
}

func (a *Application) SetDetails(d Details) {
	a.Department = d.Department
	a.YearOfStudy = d.YearOfStudy
	a.Semester = d.Semester
	a.BloodGroup = d.BloodGroup
	a.Address = d.Address
}

func (a *Application) Details() Details {
	return Details{
		Department:  a.Department,
		YearOfStudy: a.YearOfStudy,
		Semester:    a.Semester,
		BloodGroup:  a.BloodGroup,
		Address:     a.Address,
	}
}

// Document is one uploaded file of an application; unique per (application, type).
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID            int          `bun:"id,pk,autoincrement" json:"id"`
	ApplicationID int          `bun:"application_id,notnull,unique:documents_application_type_key" json:"application_id"`
	Application   *Application `bun:"rel:belongs-to,join:application_id=id" json:"-"`
	Type          DocumentType `bun:"doc_type,notnull,unique:documents_application_type_key" json:"type"`
	URL           string       `bun:"url,notnull" json:"url"`
	UploadedAt    time.Time    `bun:"uploaded_at,notnull" json:"uploaded_at"`
}
