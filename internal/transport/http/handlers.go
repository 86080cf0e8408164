package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"verify-gateway/internal/apps"
	"verify-gateway/internal/device"
	"verify-gateway/internal/platform/middleware"
	platformredis "verify-gateway/internal/platform/redis"
	"verify-gateway/internal/verification"
	"verify-gateway/internal/widget"
	dErrors "verify-gateway/pkg/domain-errors"
	"verify-gateway/pkg/platform/httputil"
)

// Handler carries the handler dependencies.
type Handler struct {
	service       *verification.Service
	logger        *slog.Logger
	redis         *platformredis.Client
	appSecretHash string
}

// requireAppSecret checks the X-App-Secret header against the configured
// bcrypt hash. An empty hash disables the check.
func (h *Handler) requireAppSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.appSecretHash != "" {
			if err := apps.VerifySecret(r.Header.Get("X-App-Secret"), h.appSecretHash); err != nil {
				httputil.WriteError(w, err)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type startSessionRequest struct {
	Flags device.Flags `json:"flags"`
}

type sessionResponse struct {
	SessionID   string            `json:"session_id"`
	State       string            `json:"state,omitempty"`
	Environment string            `json:"environment"`
	Mode        string            `json:"mode"`
	Status      string            `json:"status"`
	WidgetAttrs map[string]string `json:"widget_attrs,omitempty"`
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
			return
		}
	}

	result, err := h.service.Start(r.Context(), verification.StartParams{
		UserAgent: r.UserAgent(),
		Flags:     req.Flags,
		RequestID: middleware.GetRequestID(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, sessionResponse{
		SessionID:   result.Session.ID.String(),
		State:       result.State,
		Environment: string(result.Session.Environment),
		Mode:        string(result.Session.Mode),
		Status:      string(result.Session.Status),
		WidgetAttrs: result.WidgetAttrs,
	})
}

// handleScript serves the SDK bundle itself. The source mirror is exposed
// in a header so clients and operators can tell which CDN won.
func (h *Handler) handleScript(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.service.Script(r.Context(), middleware.GetRequestID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("X-Script-Source", bundle.SourceURL)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bundle.Script)
}

type openRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid session_id"))
		return
	}

	session, err := h.service.Open(r.Context(), sessionID, middleware.GetRequestID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, sessionResponse{
		SessionID:   session.ID.String(),
		Environment: string(session.Environment),
		Mode:        string(session.Mode),
		Status:      string(session.Status),
	})
}

type resultRequest struct {
	SessionID string          `json:"session_id"`
	State     string          `json:"state"`
	Outcome   string          `json:"outcome"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Message   string          `json:"message,omitempty"`
}

type resultResponse struct {
	RedirectURL string `json:"redirect_url,omitempty"`
	Retry       bool   `json:"retry"`
	Message     string `json:"message,omitempty"`
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid session_id"))
		return
	}

	result, err := h.service.Complete(r.Context(), verification.CompleteParams{
		SessionID: sessionID,
		State:     req.State,
		Outcome: widget.Outcome{
			Kind:    widget.OutcomeKind(req.Outcome),
			Payload: req.Payload,
			Message: req.Message,
		},
		Host:      r.Host,
		RequestID: middleware.GetRequestID(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resultResponse{
		RedirectURL: result.RedirectURL,
		Retry:       result.Retry,
		Message:     result.Message,
	})
}
