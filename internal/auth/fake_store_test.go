package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errStoreDown = errors.New("store unavailable")

type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	failWith error
	deleted  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[string]Account)}
}

func (s *fakeStore) put(account Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
}

func (s *fakeStore) get(id string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	return account, ok
}

func (s *fakeStore) GetByID(_ context.Context, id string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Account{}, s.failWith
	}
	account, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (s *fakeStore) GetByEmail(_ context.Context, email string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return Account{}, s.failWith
	}
	for _, account := range s.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (s *fakeStore) Create(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Email == account.Email {
			return ErrEmailTaken
		}
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *fakeStore) UpdateLogin(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.accounts[account.ID]
	if !ok {
		return ErrAccountNotFound
	}
	stored.LastLoginAt = account.LastLoginAt
	stored.CurrentLoginAt = account.CurrentLoginAt
	stored.Status = account.Status
	s.accounts[account.ID] = stored
	return nil
}

func (s *fakeStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	stored.PasswordHash = passwordHash
	s.accounts[id] = stored
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(s.accounts, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type serviceFixture struct {
	service *Service
	store   *fakeStore
	hasher  *PasswordHasher
	tokens  *TokenService
	now     time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	tokens, err := NewTokenService(
		TokenConfig{Secret: "access-secret", TTL: time.Hour},
		TokenConfig{Secret: "refresh-secret", TTL: 24 * time.Hour},
	)
	require.NoError(t, err)

	f := &serviceFixture{
		store:  newFakeStore(),
		hasher: NewPasswordHasher(bcrypt.MinCost),
		tokens: tokens,
		now:    time.Date(2022, time.January, 1, 9, 0, 0, 0, time.UTC),
	}
	f.service = NewService(f.store, f.hasher, f.tokens)
	f.service.now = func() time.Time { return f.now }
	return f
}

// seed stores an account with the given password and returns it.
func (f *serviceFixture) seed(t *testing.T, id, email, password string, role Role) Account {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)

	account := Account{
		ID:           id,
		Name:         "User " + id,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       StatusActive,
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}
	f.store.put(account)
	return account
}
