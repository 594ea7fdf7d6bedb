package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

const MinPasswordLength = 6

// AccountStore is the persistence the coordinator needs. *Repository
// satisfies it.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	Create(ctx context.Context, account Account) error
	UpdateLogin(ctx context.Context, account Account) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

type Service struct {
	store    AccountStore
	hasher   *PasswordHasher
	tokens   *TokenService
	activity ActivityPolicy
	now      func() time.Time
}

func NewService(store AccountStore, hasher *PasswordHasher, tokens *TokenService) *Service {
	return &Service{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		activity: DefaultActivityPolicy(),
		now:      time.Now,
	}
}

func (s *Service) WithActivityPolicy(policy ActivityPolicy) {
	if policy.ThresholdDays > 0 {
		s.activity = policy
	}
}

func (s *Service) ActivityPolicy() ActivityPolicy {
	return s.activity
}

type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in SignupInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordBytes)),
	)
}

// ValidatePassword applies the signup password rule to a new password.
func ValidatePassword(password string) error {
	return validation.Validate(password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordBytes))
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (SignupResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	if err := in.Validate(); err != nil {
		return SignupResult{}, validationError(err.Error())
	}

	if _, err := s.store.GetByEmail(ctx, in.Email); err == nil {
		return SignupResult{}, newError(KindConflict, "an account with this email already exists", nil)
	} else if !errors.Is(err, ErrAccountNotFound) {
		return SignupResult{}, internalError("failed to create account", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return SignupResult{}, internalError("failed to create account", fmt.Errorf("hash password: %w", err))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return SignupResult{}, internalError("failed to create account", fmt.Errorf("generate uuid v7: %w", err))
	}

	now := s.now().UTC()
	account := Account{
		ID:           id.String(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         RoleUser,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return SignupResult{}, newError(KindConflict, "an account with this email already exists", nil)
		}
		return SignupResult{}, internalError("failed to create account", err)
	}

	accessToken, err := s.tokens.IssueAccess(account.ID, account.Role)
	if err != nil {
		if delErr := s.store.Delete(ctx, account.ID); delErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback account: %w", delErr))
		}
		return SignupResult{}, internalError("failed to create account", err)
	}

	return SignupResult{Account: account.Public(), AccessToken: accessToken}, nil
}

// Signin verifies credentials, records the login and issues both tokens.
// Inactive accounts cannot open new sessions, including accounts that become
// inactive because of this very login.
func (s *Service) Signin(ctx context.Context, email, password string) (SigninResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return SigninResult{}, validationError("email is required")
	}
	if password == "" {
		return SigninResult{}, validationError("password is required")
	}

	account, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return SigninResult{}, newError(KindNotFound, "no account registered with this email", nil)
		}
		return SigninResult{}, internalError("failed to sign in", err)
	}

	if !s.hasher.Compare(password, account.PasswordHash) {
		return SigninResult{}, newError(KindUnauthorized, "invalid email or password", nil)
	}

	if account.Status == StatusInactive {
		return SigninResult{}, newError(KindForbidden, "account is inactive", nil)
	}

	account.RecordLogin(s.now())
	deactivated := s.activity.Apply(&account)
	if err := s.store.UpdateLogin(ctx, account); err != nil {
		return SigninResult{}, internalError("failed to sign in", err)
	}
	if deactivated {
		return SigninResult{}, newError(KindForbidden,
			fmt.Sprintf("account deactivated after more than %d days without login", s.activity.ThresholdDays), nil)
	}

	accessToken, err := s.tokens.IssueAccess(account.ID, account.Role)
	if err != nil {
		return SigninResult{}, internalError("failed to sign in", err)
	}
	refreshToken, err := s.tokens.IssueRefresh(account.ID, account.Role)
	if err != nil {
		return SigninResult{}, internalError("failed to sign in", err)
	}

	return SigninResult{
		Account:      account.Public(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// RefreshAccessToken mints a new access token. The refresh token itself is
// neither rotated nor revoked.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return "", validationError("refresh token is required")
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", newError(KindForbidden, "unable to issue a new access token", err)
	}

	account, err := s.store.GetByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", newError(KindNotFound, "account not found", nil)
		}
		return "", internalError("failed to refresh access token", err)
	}

	accessToken, err := s.tokens.IssueAccess(account.ID, account.Role)
	if err != nil {
		return "", internalError("failed to refresh access token", err)
	}
	return accessToken, nil
}

// VerifyIdentity resolves an access token to the account it was issued for.
func (s *Service) VerifyIdentity(ctx context.Context, accessToken string) (Account, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Account{}, newError(KindUnauthorized, "missing authorization token", nil)
	}

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Account{}, newError(KindUnauthorized, "access token has expired", err)
		}
		return Account{}, newError(KindUnauthorized, "invalid access token", err)
	}

	account, err := s.store.GetByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, newError(KindNotFound, "account not found", nil)
		}
		return Account{}, internalError("failed to verify identity", err)
	}

	return account.Public(), nil
}

func (s *Service) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if oldPassword == "" {
		return validationError("old password is required")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return validationError("new password " + err.Error())
	}

	account, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return newError(KindNotFound, "account not found", nil)
		}
		return internalError("failed to change password", err)
	}

	if !s.hasher.Compare(oldPassword, account.PasswordHash) {
		return newError(KindUnauthorized, "old password is incorrect", nil)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internalError("failed to change password", fmt.Errorf("hash password: %w", err))
	}
	if err := s.store.UpdatePassword(ctx, account.ID, hash); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return newError(KindNotFound, "account not found", nil)
		}
		return internalError("failed to change password", err)
	}

	return nil
}
