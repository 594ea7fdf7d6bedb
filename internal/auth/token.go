package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// DevTokenTTL replaces configured lifetimes when TokenConfig.DevOverride is set.
const DevTokenTTL = 12 * time.Hour

var signingMethod = jwt.SigningMethodHS512

type TokenConfig struct {
	Secret      string
	TTL         time.Duration
	DevOverride bool
}

type Claims struct {
	Role Role      `json:"role"`
	Type TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

func (c *Claims) AccountID() string {
	return c.Subject
}

// TokenIssuer signs and verifies one kind of token with its own secret.
type TokenIssuer struct {
	kind   TokenKind
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(kind TokenKind, cfg TokenConfig) *TokenIssuer {
	ttl := cfg.TTL
	if cfg.DevOverride {
		ttl = DevTokenTTL
	}
	return &TokenIssuer{
		kind:   kind,
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

func (t *TokenIssuer) Issue(accountID string, role Role) (string, error) {
	now := t.now().UTC()
	claims := Claims{
		Role: role,
		Type: t.kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", t.kind, err)
	}
	return signed, nil
}

func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Type != t.kind || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// TokenService holds the access and refresh issuers.
type TokenService struct {
	access  *TokenIssuer
	refresh *TokenIssuer
}

func NewTokenService(access, refresh TokenConfig) (*TokenService, error) {
	if access.Secret == "" || refresh.Secret == "" {
		return nil, errors.New("access and refresh token secrets are required")
	}
	if access.Secret == refresh.Secret {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	if access.TTL <= 0 || refresh.TTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}

	return &TokenService{
		access:  NewTokenIssuer(AccessToken, access),
		refresh: NewTokenIssuer(RefreshToken, refresh),
	}, nil
}

func (s *TokenService) IssueAccess(accountID string, role Role) (string, error) {
	return s.access.Issue(accountID, role)
}

func (s *TokenService) IssueRefresh(accountID string, role Role) (string, error) {
	return s.refresh.Issue(accountID, role)
}

func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return s.access.Verify(token)
}

func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return s.refresh.Verify(token)
}

func (s *TokenService) AccessTTL() time.Duration {
	return s.access.TTL()
}
