package auth

import (
	"context"
	"net/http"
	"strings"

	"notes-serverless/internal/observability"
	"notes-serverless/internal/respond"
)

type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, accessToken string) (Account, error)
}

type contextKey struct{}

func WithAccount(ctx context.Context, account Account) context.Context {
	return context.WithValue(ctx, contextKey{}, account)
}

func AccountFromContext(ctx context.Context) (Account, bool) {
	account, ok := ctx.Value(contextKey{}).(Account)
	return account, ok
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", newError(KindUnauthorized, "missing authorization token", nil)
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", newError(KindUnauthorized, "invalid authorization format", nil)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", newError(KindUnauthorized, "invalid authorization token", nil)
	}
	return token, nil
}

// Guard resolves the caller of protected routes. Account status is not
// re-checked here: tokens issued before a deactivation stay usable until they
// expire.
type Guard struct {
	verifier IdentityVerifier
	logger   *observability.Logger
}

func NewGuard(verifier IdentityVerifier, logger *observability.Logger) *Guard {
	return &Guard{verifier: verifier, logger: logger}
}

func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err != nil {
			WriteError(w, g.logger, "authenticate", err)
			return
		}

		account, err := g.verifier.VerifyIdentity(r.Context(), token)
		if err != nil {
			WriteError(w, g.logger, "authenticate", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
	})
}

// RequireRole must run after Authenticate.
func (g *Guard) RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, ok := AccountFromContext(r.Context())
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if account.Role != role {
				respond.Error(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Protect is Authenticate followed by RequireRole(role).
func (g *Guard) Protect(role Role, next http.Handler) http.Handler {
	return g.Authenticate(g.RequireRole(role)(next))
}
