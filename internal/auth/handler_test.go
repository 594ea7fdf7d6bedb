package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-serverless/internal/observability"
)

func newTestLogger() *observability.Logger {
	return observability.NewLoggerTo(io.Discard, "error")
}

func newHandlerFixture(t *testing.T) (*Handler, *serviceFixture) {
	t.Helper()
	f := newServiceFixture(t)
	return NewHandler(f.service, newTestLogger(), observability.NewMetrics()), f
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandler_Signup(t *testing.T) {
	h, _ := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup",
		strings.NewReader(`{"name":"Ada","email":"ada@example.com","password":"123456"}`))
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(http.StatusCreated), body["statusCode"])
	assert.NotEmpty(t, body["access_token"])

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, user, "PasswordHash")
	assert.NotContains(t, rec.Body.String(), "$2a$")
}

func TestHandler_SignupErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "invalid json", body: `{`, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"name":"Ada","email":"ada@example.com","password":"123456","role":"admin"}`, status: http.StatusBadRequest},
		{name: "short password", body: `{"name":"Ada","email":"ada@example.com","password":"12345"}`, status: http.StatusBadRequest},
		{name: "duplicate email", body: `{"name":"Ada","email":"taken@example.com","password":"123456"}`, status: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, f := newHandlerFixture(t)
			f.seed(t, "acc-1", "taken@example.com", "123456", RoleUser)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Signup(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, float64(tt.status), body["statusCode"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestHandler_Signin(t *testing.T) {
	h, f := newHandlerFixture(t)
	f.seed(t, "acc-1", "ada@example.com", "123456", RoleUser)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin",
		strings.NewReader(`{"email":"ada@example.com","password":"123456"}`))
	rec := httptest.NewRecorder()
	h.Signin(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
	assert.Equal(t, "Bearer", body["token_type"])
}

func TestHandler_SigninErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "missing password", body: `{"email":"ada@example.com"}`, status: http.StatusBadRequest},
		{name: "unknown email", body: `{"email":"bob@example.com","password":"123456"}`, status: http.StatusNotFound},
		{name: "wrong password", body: `{"email":"ada@example.com","password":"nope-nope"}`, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, f := newHandlerFixture(t)
			f.seed(t, "acc-1", "ada@example.com", "123456", RoleUser)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Signin(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestHandler_SigninInternalErrorIsGeneric(t *testing.T) {
	h, f := newHandlerFixture(t)
	f.store.failWith = errStoreDown

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin",
		strings.NewReader(`{"email":"ada@example.com","password":"123456"}`))
	rec := httptest.NewRecorder()
	h.Signin(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "internal server error", body["message"])
	assert.NotContains(t, rec.Body.String(), errStoreDown.Error())
}

func TestHandler_RefreshToken(t *testing.T) {
	h, f := newHandlerFixture(t)
	f.seed(t, "acc-1", "ada@example.com", "123456", RoleUser)

	refresh, err := f.tokens.IssueRefresh("acc-1", RoleUser)
	require.NoError(t, err)

	for _, header := range []string{"Refresh-Token", "refresh_token"} {
		t.Run(header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh-token", nil)
			req.Header.Set(header, refresh)
			rec := httptest.NewRecorder()
			h.RefreshToken(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			body := decodeBody(t, rec)
			token, _ := body["access_token"].(string)
			_, err := f.tokens.VerifyAccess(token)
			assert.NoError(t, err)
		})
	}
}

func TestHandler_RefreshTokenErrors(t *testing.T) {
	h, f := newHandlerFixture(t)
	f.seed(t, "acc-1", "ada@example.com", "123456", RoleUser)

	access, err := f.tokens.IssueAccess("acc-1", RoleUser)
	require.NoError(t, err)

	missing := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh-token", nil)
	rec := httptest.NewRecorder()
	h.RefreshToken(rec, missing)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	wrongKind := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh-token", nil)
	wrongKind.Header.Set("Refresh-Token", access)
	rec = httptest.NewRecorder()
	h.RefreshToken(rec, wrongKind)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_VerifyUser(t *testing.T) {
	h, f := newHandlerFixture(t)
	f.seed(t, "acc-1", "ada@example.com", "123456", RoleUser)

	access, err := f.tokens.IssueAccess("acc-1", RoleUser)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-user", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	h.VerifyUser(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	user, ok := decodeBody(t, rec)["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "acc-1", user["id"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-user", nil)
	rec = httptest.NewRecorder()
	h.VerifyUser(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
