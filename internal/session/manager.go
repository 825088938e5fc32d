package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

const tokenBytes = 32

type Option func(*Manager)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager issues and checks short-lived upload sessions.
type Manager struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
}

func NewManager(repo Repository, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create stores a new session and returns it with the plaintext token set.
func (m *Manager) Create(ctx context.Context, studentID int, applicationID *int) (*UploadSession, error) {
	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := m.now().UTC()
	s := &UploadSession{
		ID:            Digest(token),
		StudentID:     studentID,
		ApplicationID: applicationID,
		ExpiresAt:     now.Add(m.ttl),
		CreatedAt:     now,
	}
	if err := m.repo.Insert(ctx, s); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.Token = token
	return s, nil
}

// Validate returns the live session for token owned by studentID, or
// ErrSessionNotFound.
func (m *Manager) Validate(ctx context.Context, token string, studentID int) (*UploadSession, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	s, err := m.repo.FindActive(ctx, Digest(token), studentID, m.now().UTC())
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Consume deletes the session. Consuming an unknown token is a no-op.
func (m *Manager) Consume(ctx context.Context, token string) error {
	return m.repo.Delete(ctx, Digest(token))
}

func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	return m.repo.DeleteExpired(ctx, m.now().UTC())
}

// Digest is the hex blake2b-256 of the token, used as the row id.
func Digest(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
