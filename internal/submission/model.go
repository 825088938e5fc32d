package submission

import (
	"reflect"
	"strings"
	"time"

	"registration-service/internal/application"

	"github.com/go-playground/validator/v10"
)

const (
	ActionSaveDetails        = "save_details"
	ActionGenerateUploadURLs = "generate_upload_urls"
	ActionFinalizeSubmission = "finalize_submission"
	ActionGetApplication     = "get_application"
)

// Envelope is the part of every request body shared by all actions.
type Envelope struct {
	Action    string `json:"action" validate:"required,oneof=save_details generate_upload_urls finalize_submission get_application"`
	SessionID string `json:"session_id" validate:"required_if=Action finalize_submission"`
}

type DetailsForm struct {
	Department  string `json:"department" validate:"required,max=100"`
	YearOfStudy int    `json:"year_of_study" validate:"required,min=1,max=4"`
	Semester    int    `json:"semester" validate:"required,min=1,max=8"`
	BloodGroup  string `json:"blood_group" validate:"required,max=10"`
	Address     string `json:"address" validate:"required,max=500"`
}

func (f *DetailsForm) normalize() {
	f.Department = strings.TrimSpace(f.Department)
	f.BloodGroup = strings.TrimSpace(f.BloodGroup)
	f.Address = strings.TrimSpace(f.Address)
}

func (f DetailsForm) details() application.Details {
	return application.Details{
		Department:  f.Department,
		YearOfStudy: f.YearOfStudy,
		Semester:    f.Semester,
		BloodGroup:  f.BloodGroup,
		Address:     f.Address,
	}
}

type SaveResult struct {
	Success       bool               `json:"success"`
	ApplicationID int                `json:"application_id"`
	Status        application.Status `json:"status"`
	// Created is true for a fresh insert; it only changes the HTTP status.
	Created bool `json:"created"`
}

type UploadTicket struct {
	Success       bool                                `json:"success"`
	ApplicationID int                                 `json:"application_id"`
	SessionID     string                              `json:"session_id"`
	UploadURLs    map[application.DocumentType]string `json:"upload_urls"`
	ExpiresAt     time.Time                           `json:"expires_at"`
}

type FinalizeResult struct {
	Success       bool               `json:"success"`
	ApplicationID int                `json:"application_id"`
	Status        application.Status `json:"status"`
	SubmittedAt   time.Time          `json:"submitted_at"`
}

type ApplicationView struct {
	Application             *application.Application `json:"application"`
	Documents               []application.Document   `json:"documents"`
	ReapplyCount            int                      `json:"reapply_count"`
	ReapplicationsRemaining int                      `json:"reapplications_remaining"`
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
