package auth

import (
	"net/http"
	"strings"

	"notes-serverless/internal/observability"
	"notes-serverless/internal/respond"
)

type Handler struct {
	service *Service
	logger  *observability.Logger
	metrics *observability.Metrics
}

func NewHandler(service *Service, logger *observability.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: metrics}
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var body SignupInput
	if err := respond.DecodeJSON(w, r, &body); err != nil {
		h.metrics.AuthEvent("signup", string(KindValidation))
		respond.Error(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := h.service.Signup(r.Context(), body)
	if err != nil {
		h.fail(w, "signup", err)
		return
	}

	h.metrics.AuthEvent("signup", "success")
	h.logger.Info("account_created", map[string]any{"account_id": result.Account.ID})
	respond.Success(w, http.StatusCreated, "account created successfully", respond.Payload{
		"user":         result.Account,
		"access_token": result.AccessToken,
	})
}

func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var body signinRequest
	if err := respond.DecodeJSON(w, r, &body); err != nil {
		h.metrics.AuthEvent("signin", string(KindValidation))
		respond.Error(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := h.service.Signin(r.Context(), body.Email, body.Password)
	if err != nil {
		if KindOf(err) == KindForbidden {
			h.logger.Warn("signin_blocked_inactive", map[string]any{"email": strings.TrimSpace(body.Email)})
		}
		h.fail(w, "signin", err)
		return
	}

	h.metrics.AuthEvent("signin", "success")
	respond.Success(w, http.StatusOK, "signed in successfully", respond.Payload{
		"user":          result.Account,
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"token_type":    result.TokenType,
		"expires_in":    result.ExpiresIn,
	})
}

// RefreshToken reads the refresh token from the Refresh-Token header. The
// legacy refresh_token header name is also accepted.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.Header.Get("Refresh-Token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("refresh_token"))
	}

	accessToken, err := h.service.RefreshAccessToken(r.Context(), token)
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}

	h.metrics.AuthEvent("refresh", "success")
	respond.Success(w, http.StatusOK, "access token refreshed", respond.Payload{
		"access_token": accessToken,
	})
}

func (h *Handler) VerifyUser(w http.ResponseWriter, r *http.Request) {
	token, err := BearerToken(r)
	if err != nil {
		h.fail(w, "verify", err)
		return
	}

	account, err := h.service.VerifyIdentity(r.Context(), token)
	if err != nil {
		h.fail(w, "verify", err)
		return
	}

	h.metrics.AuthEvent("verify", "success")
	respond.Success(w, http.StatusOK, "user verified", respond.Payload{"user": account})
}

func (h *Handler) fail(w http.ResponseWriter, operation string, err error) {
	kind := KindOf(err)
	h.metrics.AuthEvent(operation, string(kind))
	WriteError(w, h.logger, operation, err)
}

// WriteError maps err onto the response envelope. Internal failures are
// reported to Sentry and logged with their cause; clients only see a
// generic message.
func WriteError(w http.ResponseWriter, logger *observability.Logger, operation string, err error) {
	kind := KindOf(err)
	if kind == KindInternal {
		observability.CaptureError(operation, err)
		logger.Error(operation+"_failed", map[string]any{"error": err.Error()})
	}
	respond.Error(w, kind.StatusCode(), PublicMessage(err))
}
