package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleStudent is the only role allowed to drive the submission workflow.
const RoleStudent = "STUDENT"

var ErrUnauthorized = errors.New("unauthorized")

// Identity is who the bearer token says the caller is.
type Identity struct {
	StudentID     int
	USN           string
	InstitutionID int
	Role          string
}

// Claims is the JWT payload issued by the identity provider.
type Claims struct {
	StudentID     int    `json:"student_id"`
	USN           string `json:"usn"`
	InstitutionID int    `json:"institution_id"`
	Role          string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Verify parses the token and returns the caller's identity. Any failure,
// including a non-student role, is ErrUnauthorized.
func (v *Verifier) Verify(raw string) (*Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if claims.StudentID <= 0 || strings.TrimSpace(claims.USN) == "" {
		return nil, fmt.Errorf("%w: incomplete claims", ErrUnauthorized)
	}
	if claims.Role != RoleStudent {
		return nil, fmt.Errorf("%w: role %q", ErrUnauthorized, claims.Role)
	}

	return &Identity{
		StudentID:     claims.StudentID,
		USN:           claims.USN,
		InstitutionID: claims.InstitutionID,
		Role:          RoleStudent,
	}, nil
}

// SignToken produces a token the Verifier accepts. Token issuance belongs to
// the identity provider; this exists for local tooling and tests.
func SignToken(secret string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		StudentID:     id.StudentID,
		USN:           id.USN,
		InstitutionID: id.InstitutionID,
		Role:          id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", id.StudentID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
