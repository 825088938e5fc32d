package session

import (
	"time"

	"github.com/uptrace/bun"
)

// UploadSession is the stored form of an upload session. Only the digest of
// the token is persisted.
type UploadSession struct {
	bun.BaseModel `bun:"table:upload_sessions,alias:us"`

	ID            string    `bun:"id,pk" json:"-"`
	StudentID     int       `bun:"student_id,notnull" json:"student_id"`
	ApplicationID *int      `bun:"application_id" json:"application_id,omitempty"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	// Token is only set on the value returned by Create.
	Token string `bun:"-" json:"token,omitempty"`
}
