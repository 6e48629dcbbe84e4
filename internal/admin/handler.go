// Package admin exposes the operational surface: audit event listings
// behind the X-Admin-Token gate.
package admin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"agritrust/internal/platform/middleware"
	"agritrust/pkg/domain"
	dErrors "agritrust/pkg/domain-errors"
	"agritrust/pkg/platform/audit"
	"agritrust/pkg/platform/httputil"
)

const defaultListLimit = 100

// Handler serves the admin endpoints.
type Handler struct {
	logger *slog.Logger
	events audit.Store
	token  string
}

// New creates an admin Handler. The token guards every route.
func New(events audit.Store, logger *slog.Logger, token string) *Handler {
	return &Handler{
		logger: logger,
		events: events,
		token:  token,
	}
}

// Register registers the admin routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(h.token, h.logger))
		r.Get("/audit/events", h.handleListRecent)
		r.Get("/audit/farmers/{principal}", h.handleListBySubject)
	})
}

func (h *Handler) handleListRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid limit"))
			return
		}
		limit = n
	}

	events, err := h.events.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list audit events failed", "error", err.Error())
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list audit events"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) handleListBySubject(w http.ResponseWriter, r *http.Request) {
	subject, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.events.ListBySubject(r.Context(), subject)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list audit events failed", "error", err.Error())
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list audit events"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}
