// Package event defines the messages this service emits.
package event

import (
	"context"
	"strconv"
	"time"
)

const TypeApplicationSubmitted = "application.submitted"

// ApplicationSubmitted is emitted once an application reaches SUBMITTED.
type ApplicationSubmitted struct {
	Type          string            `json:"type"`
	ApplicationID int               `json:"application_id"`
	StudentID     int               `json:"student_id"`
	InstitutionID int               `json:"institution_id"`
	USN           string            `json:"usn"`
	SubmittedAt   time.Time         `json:"submitted_at"`
	Documents     map[string]string `json:"documents"`
}

// Key is stable per application, so events for one application keep their order.
func (e ApplicationSubmitted) Key() string {
	return "application-" + strconv.Itoa(e.ApplicationID)
}

// Publisher sends an event. Implementations: messaging (NATS), kafka, Nop.
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }
func (Nop) Close() error                                       { return nil }
