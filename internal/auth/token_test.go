package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubongpr7/music-booking/internal/auth"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestExtractTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc123")

	token, err := auth.ExtractTokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	req.Header.Set("Authorization", "abc123")
	_, err = auth.ExtractTokenFromRequest(req)
	assert.Error(t, err)

	req.Header.Del("Authorization")
	_, err = auth.ExtractTokenFromRequest(req)
	assert.Error(t, err)
}

func TestExtractUserIDFromJWT(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-1"})

	userID, err := auth.ExtractUserIDFromJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = auth.ExtractUserIDFromJWT(signedToken(t, jwt.MapClaims{"aud": "nobody"}))
	assert.Error(t, err)

	_, err = auth.ExtractUserIDFromJWT("not-a-jwt")
	assert.Error(t, err)
}

func TestClaimsMiddleware(t *testing.T) {
	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = auth.UserID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"sub": "user-7"}))
	rec := httptest.NewRecorder()
	auth.ClaimsMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", gotUserID)

	// Missing token is rejected before the handler runs.
	rec = httptest.NewRecorder()
	auth.ClaimsMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
