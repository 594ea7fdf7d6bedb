package users

import (
	"context"
	"errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"notes-serverless/internal/auth"
	"notes-serverless/internal/observability"
	"notes-serverless/internal/respond"
)

// AccountStore is the subset of *auth.Repository the user routes need.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (auth.Account, error)
	UpdateProfile(ctx context.Context, id, name, email string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit, offset int) ([]auth.Account, error)
	ListByStatus(ctx context.Context, status auth.Status) ([]auth.Account, error)
	Search(ctx context.Context, field auth.SearchField, value string) ([]auth.Account, error)
}

type PasswordChanger interface {
	ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error
}

type Handler struct {
	store     AccountStore
	passwords PasswordChanger
	logger    *observability.Logger
}

func NewHandler(store AccountStore, passwords PasswordChanger, logger *observability.Logger) *Handler {
	return &Handler{store: store, passwords: passwords, logger: logger}
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type editProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (req editProfileRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&req.Email, validation.NilOrNotEmpty, is.Email),
	)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	respond.Success(w, http.StatusOK, "user found", respond.Payload{"user": account.Public()})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body changePasswordRequest
	if err := respond.DecodeJSON(w, r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := h.passwords.ChangePassword(r.Context(), account.ID, body.OldPassword, body.NewPassword); err != nil {
		auth.WriteError(w, h.logger, "change_password", err)
		return
	}

	h.logger.Info("password_changed", map[string]any{"account_id": account.ID})
	respond.Success(w, http.StatusOK, "password changed successfully", nil)
}

func (h *Handler) EditProfile(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body editProfileRequest
	if err := respond.DecodeJSON(w, r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if body.Name != nil {
		trimmed := strings.TrimSpace(*body.Name)
		body.Name = &trimmed
	}
	if body.Email != nil {
		trimmed := strings.TrimSpace(*body.Email)
		body.Email = &trimmed
	}
	if body.Name == nil && body.Email == nil {
		respond.Error(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if err := body.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	name, email := account.Name, account.Email
	if body.Name != nil {
		name = *body.Name
	}
	if body.Email != nil {
		email = *body.Email
	}

	if err := h.store.UpdateProfile(r.Context(), account.ID, name, email); err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			respond.Error(w, http.StatusConflict, "an account with this email already exists")
		default:
			h.storeError(w, "edit_profile", err)
		}
		return
	}

	updated, err := h.store.GetByID(r.Context(), account.ID)
	if err != nil {
		h.storeError(w, "edit_profile", err)
		return
	}

	respond.Success(w, http.StatusOK, "profile updated successfully", respond.Payload{"user": updated.Public()})
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.store.Delete(r.Context(), account.ID); err != nil {
		h.storeError(w, "delete_account", err)
		return
	}

	h.logger.Info("account_deleted", map[string]any{"account_id": account.ID, "by": "self"})
	respond.Success(w, http.StatusOK, "account deleted successfully", nil)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := ParsePage(r.URL.Query())
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	total, err := h.store.Count(r.Context())
	if err != nil {
		h.storeError(w, "list_accounts", err)
		return
	}
	accounts, err := h.store.List(r.Context(), page.Limit, page.Offset())
	if err != nil {
		h.storeError(w, "list_accounts", err)
		return
	}

	result := NewPageResult(page, total, publicAccounts(accounts))
	respond.Success(w, http.StatusOK, "users found", result.Payload())
}

func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.listByStatus(w, r, auth.StatusActive)
}

func (h *Handler) ListInactive(w http.ResponseWriter, r *http.Request) {
	h.listByStatus(w, r, auth.StatusInactive)
}

func (h *Handler) listByStatus(w http.ResponseWriter, r *http.Request, status auth.Status) {
	accounts, err := h.store.ListByStatus(r.Context(), status)
	if err != nil {
		h.storeError(w, "list_accounts_by_status", err)
		return
	}

	respond.Success(w, http.StatusOK, string(status)+" users found", respond.Payload{
		"total": len(accounts),
		"data":  publicAccounts(accounts),
	})
}

// Find searches one allow-listed field. Credential fields are never
// searchable.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	rawField := strings.TrimSpace(query.Get("field"))
	value := strings.TrimSpace(query.Get("value"))

	if rawField == "" {
		respond.Error(w, http.StatusBadRequest, "field is required")
		return
	}
	field, ok := auth.ParseSearchField(rawField)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "users cannot be searched by this field")
		return
	}
	if value == "" {
		respond.Error(w, http.StatusBadRequest, "value is required")
		return
	}

	accounts, err := h.store.Search(r.Context(), field, value)
	if err != nil {
		h.storeError(w, "find_accounts", err)
		return
	}
	if len(accounts) == 0 {
		respond.Error(w, http.StatusNotFound, "no users match the search")
		return
	}

	respond.Success(w, http.StatusOK, "users found", respond.Payload{"data": publicAccounts(accounts)})
}

func (h *Handler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		respond.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.storeError(w, "delete_account", err)
		return
	}

	actor, _ := auth.AccountFromContext(r.Context())
	h.logger.Info("account_deleted", map[string]any{"account_id": id, "by": actor.ID})
	respond.Success(w, http.StatusOK, "account deleted successfully", nil)
}

func (h *Handler) storeError(w http.ResponseWriter, operation string, err error) {
	if errors.Is(err, auth.ErrAccountNotFound) {
		respond.Error(w, http.StatusNotFound, "account not found")
		return
	}
	observability.CaptureError(operation, err)
	h.logger.Error(operation+"_failed", map[string]any{"error": err.Error()})
	respond.Error(w, http.StatusInternalServerError, "internal server error")
}

func publicAccounts(accounts []auth.Account) []auth.Account {
	out := make([]auth.Account, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, account.Public())
	}
	return out
}
