package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"notes-serverless/internal/auth"
	"notes-serverless/internal/maintenance"
	"notes-serverless/internal/observability"
	"notes-serverless/internal/users"
)

// memoryAccounts backs both the auth service and the user routes.
type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]auth.Account
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{accounts: map[string]auth.Account{}}
}

func (m *memoryAccounts) GetByID(_ context.Context, id string) (auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	return account, nil
}

func (m *memoryAccounts) GetByEmail(_ context.Context, email string) (auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return auth.Account{}, auth.ErrAccountNotFound
}

func (m *memoryAccounts) Create(_ context.Context, account auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *memoryAccounts) UpdateLogin(_ context.Context, account auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *memoryAccounts) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := m.accounts[id]
	account.PasswordHash = hash
	m.accounts[id] = account
	return nil
}

func (m *memoryAccounts) UpdateProfile(_ context.Context, id, name, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := m.accounts[id]
	account.Name, account.Email = name, email
	m.accounts[id] = account
	return nil
}

func (m *memoryAccounts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return auth.ErrAccountNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *memoryAccounts) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts), nil
}

func (m *memoryAccounts) List(context.Context, int, int) ([]auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auth.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		out = append(out, account)
	}
	return out, nil
}

func (m *memoryAccounts) ListByStatus(context.Context, auth.Status) ([]auth.Account, error) {
	return nil, nil
}

func (m *memoryAccounts) Search(context.Context, auth.SearchField, string) ([]auth.Account, error) {
	return nil, nil
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

type stubRunner struct{}

func (stubRunner) Run(context.Context) (maintenance.SweepResult, error) {
	return maintenance.SweepResult{}, nil
}

func newTestRouter(t *testing.T, pinger Pinger) (http.Handler, *memoryAccounts) {
	t.Helper()

	logger := observability.NewLoggerTo(io.Discard, "error")
	metrics := observability.NewMetrics()
	store := newMemoryAccounts()

	tokens, err := auth.NewTokenService(
		auth.TokenConfig{Secret: "access-secret", TTL: time.Hour},
		auth.TokenConfig{Secret: "refresh-secret", TTL: 24 * time.Hour},
	)
	require.NoError(t, err)

	service := auth.NewService(store, auth.NewPasswordHasher(bcrypt.MinCost), tokens)

	return NewHandler(Components{
		Auth:     auth.NewHandler(service, logger, metrics),
		Users:    users.NewHandler(store, service, logger),
		Guard:    auth.NewGuard(service, logger),
		Limiter:  auth.NewLoginRateLimiter(10, 5, logger),
		Sweep:    maintenance.NewSweepHandler(stubRunner{}, logger, ""),
		Database: pinger,
		Metrics:  metrics,
		Logger:   logger,
	}), store
}

func serve(handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_SignupThenMe(t *testing.T) {
	router, _ := newTestRouter(t, stubPinger{})

	rec := serve(router, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name":     "Ada Lovelace",
		"email":    "ada@example.com",
		"password": "analytical",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.AccessToken)

	rec = serve(router, http.MethodGet, "/api/v1/users/me", created.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ada@example.com"`)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = serve(router, http.MethodGet, "/api/v1/users", created.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, stubPinger{})

	for _, path := range []string{"/api/v1/users/me", "/api/v1/users", "/api/v1/users/find"} {
		rec := serve(router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRouter_SweepDisabledWithoutSecret(t *testing.T) {
	router, _ := newTestRouter(t, stubPinger{})

	rec := serve(router, http.MethodPost, "/internal/maintenance/sweep", "anything", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, stubPinger{})
	rec := serve(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	router, _ = newTestRouter(t, stubPinger{err: errors.New("connection refused")})
	rec = serve(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Contains(t, rec.Body.String(), `"statusCode":503`)
}

func TestRouter_MetricsRecordsRoutes(t *testing.T) {
	router, _ := newTestRouter(t, stubPinger{})
	serve(router, http.MethodGet, "/health", "", nil)

	rec := serve(router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `notes_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
