package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"registration-service/internal/auth"
	"registration-service/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing"

func studentIdentity() auth.Identity {
	return auth.Identity{StudentID: 7, USN: "1AB21CS007", InstitutionID: 3, Role: auth.RoleStudent}
}

func TestVerifier(t *testing.T) {
	verifier := auth.NewVerifier(testSecret)

	t.Run("Valid", func(t *testing.T) {
		token, err := auth.SignToken(testSecret, studentIdentity(), time.Minute)
		require.NoError(t, err)

		id, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, 7, id.StudentID)
		assert.Equal(t, "1AB21CS007", id.USN)
		assert.Equal(t, 3, id.InstitutionID)
		assert.Equal(t, auth.RoleStudent, id.Role)
	})

	t.Run("WrongRole", func(t *testing.T) {
		id := studentIdentity()
		id.Role = "ADMIN"
		token, err := auth.SignToken(testSecret, id, time.Minute)
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		assert.True(t, errors.Is(err, auth.ErrUnauthorized))
	})

	t.Run("RoleIsCaseSensitive", func(t *testing.T) {
		id := studentIdentity()
		id.Role = "student"
		token, err := auth.SignToken(testSecret, id, time.Minute)
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		assert.True(t, errors.Is(err, auth.ErrUnauthorized))
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := auth.SignToken(testSecret, studentIdentity(), -time.Minute)
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		assert.True(t, errors.Is(err, auth.ErrUnauthorized))
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token, err := auth.SignToken("other-secret", studentIdentity(), time.Minute)
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		assert.True(t, errors.Is(err, auth.ErrUnauthorized))
	})

	t.Run("NoneAlgorithm", func(t *testing.T) {
		claims := auth.Claims{StudentID: 7, USN: "1AB21CS007", Role: auth.RoleStudent}
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		assert.True(t, errors.Is(err, auth.ErrUnauthorized))
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := verifier.Verify("")
		assert.True(t, errors.Is(err, auth.ErrUnauthorized))
	})
}

func TestMiddleware(t *testing.T) {
	verifier := auth.NewVerifier(testSecret)
	var seen *auth.Identity
	handler := auth.Middleware(verifier, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("Authorized", func(t *testing.T) {
		seen = nil
		token, err := auth.SignToken(testSecret, studentIdentity(), time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/application", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, seen)
		assert.Equal(t, 7, seen.StudentID)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/application", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("BadToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/application", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
