package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateRoundTrip(t *testing.T) {
	token, err := IssueToken("secret", "64f1c0ffee0000000000aaaa", "Wanjiku Kamau")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/chamas", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	userID, ok := authenticate(rec, req, "secret")
	require.True(t, ok)
	assert.Equal(t, "64f1c0ffee0000000000aaaa", userID)
}

func TestAuthenticateMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/chamas", nil)
	rec := httptest.NewRecorder()

	_, ok := authenticate(rec, req, "secret")
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authorization header required")
}

func TestAuthenticateWrongSecret(t *testing.T) {
	token, err := IssueToken("secret", "64f1c0ffee0000000000aaaa", "Wanjiku Kamau")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/chamas", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	_, ok := authenticate(rec, req, "other-secret")
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
