package maintenance

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"notes-serverless/internal/observability"
	"notes-serverless/internal/respond"
)

// SweepHandler lets an external cron trigger the sweep. It is disabled (404)
// while no CRON_SECRET is configured.
type SweepHandler struct {
	runner     SweepRunner
	logger     *observability.Logger
	cronSecret string
}

func NewSweepHandler(runner SweepRunner, logger *observability.Logger, cronSecret string) *SweepHandler {
	return &SweepHandler{
		runner:     runner,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
	}
}

func (h *SweepHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		respond.Error(w, http.StatusNotFound, "not found")
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.cronSecret)) != 1 {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	h.logger.Info("activity_sweep_triggered", map[string]any{"ip": observability.ClientIP(r)})
	result, err := h.runner.Run(r.Context())
	if err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			respond.Error(w, http.StatusConflict, "sweep already in progress")
			return
		}
		observability.CaptureError("activity_sweep", err)
		respond.Error(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	respond.Success(w, http.StatusOK, "sweep completed", respond.Payload{"result": result})
}
