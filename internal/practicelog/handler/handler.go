// Package handler exposes the practice claim log over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"agritrust/internal/platform/middleware"
	"agritrust/internal/practicelog/models"
	"agritrust/pkg/domain"
	dErrors "agritrust/pkg/domain-errors"
	"agritrust/pkg/platform/httputil"
	"agritrust/pkg/requestcontext"
)

// Service defines the practice log operations the handler depends on.
type Service interface {
	Log(ctx context.Context, caller domain.Principal, practiceType, category, details, evidenceHash string) (uint64, error)
	Moderate(ctx context.Context, caller, farmer domain.Principal, sequence uint64, status, notes string) (bool, error)
	Update(ctx context.Context, caller domain.Principal, sequence uint64, details, evidenceHash string) (bool, error)
	SetModerator(ctx context.Context, caller, moderator domain.Principal) (bool, error)
	TransferOwnership(ctx context.Context, caller, newOwner domain.Principal) (bool, error)
	GetEntry(ctx context.Context, farmer domain.Principal, sequence uint64) (*models.PracticeLogEntry, error)
	GetLogCount(ctx context.Context, farmer domain.Principal) (uint64, error)
	GetModerator(ctx context.Context) (domain.Principal, error)
	GetOwner(ctx context.Context) (domain.Principal, error)
}

// Handler handles practice log endpoints.
type Handler struct {
	logger *slog.Logger
	log    Service
	auth   middleware.PrincipalValidator
}

// New creates a practice log Handler.
func New(log Service, logger *slog.Logger, auth middleware.PrincipalValidator) *Handler {
	return &Handler{
		logger: logger,
		log:    log,
		auth:   auth,
	}
}

// Register registers the practice log routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/log", func(r chi.Router) {
		r.Get("/farmers/{principal}/entries/{sequence}", h.handleGetEntry)
		r.Get("/farmers/{principal}/count", h.handleGetCount)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.auth, h.logger))
			r.Post("/entries", h.handleLog)
			r.Put("/entries/{sequence}", h.handleUpdate)
			r.Post("/farmers/{principal}/entries/{sequence}/moderate", h.handleModerate)
			r.Put("/settings/moderator", h.handleSetModerator)
			r.Put("/settings/owner", h.handleTransferOwnership)
		})
	})
}

type logRequest struct {
	PracticeType string `json:"practice_type"`
	Category     string `json:"category"`
	Details      string `json:"details"`
	EvidenceHash string `json:"evidence_hash"`
}

type logResponse struct {
	Sequence uint64 `json:"sequence"`
}

func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeLogInvalidInput, "invalid request body"))
		return
	}

	sequence, err := h.log.Log(ctx, caller, req.PracticeType, req.Category, req.Details, req.EvidenceHash)
	if err != nil {
		h.writeServiceError(ctx, w, "log practice", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, logResponse{Sequence: sequence})
}

type moderateRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *Handler) handleModerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	farmer, sequence, ok := h.entryParams(w, r)
	if !ok {
		return
	}

	var req moderateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeLogInvalidInput, "invalid request body"))
		return
	}

	if _, err := h.log.Moderate(ctx, caller, farmer, sequence, req.Status, req.Notes); err != nil {
		h.writeServiceError(ctx, w, "moderate entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateRequest struct {
	Details      string `json:"details"`
	EvidenceHash string `json:"evidence_hash"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	sequence, err := parseSequence(chi.URLParam(r, "sequence"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeLogInvalidInput, "invalid request body"))
		return
	}

	if _, err := h.log.Update(ctx, caller, sequence, req.Details, req.EvidenceHash); err != nil {
		h.writeServiceError(ctx, w, "update entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setPrincipalRequest struct {
	Principal string `json:"principal"`
}

func (h *Handler) handleSetModerator(w http.ResponseWriter, r *http.Request) {
	h.handleSettingsPrincipal(w, r, "set moderator", h.log.SetModerator)
}

func (h *Handler) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	h.handleSettingsPrincipal(w, r, "transfer ownership", h.log.TransferOwnership)
}

func (h *Handler) handleSettingsPrincipal(w http.ResponseWriter, r *http.Request, action string, apply func(context.Context, domain.Principal, domain.Principal) (bool, error)) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	var req setPrincipalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeLogInvalidInput, "invalid request body"))
		return
	}

	if _, err := apply(ctx, caller, domain.Principal(req.Principal)); err != nil {
		h.writeServiceError(ctx, w, action, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	farmer, sequence, ok := h.entryParams(w, r)
	if !ok {
		return
	}

	entry, err := h.log.GetEntry(r.Context(), farmer, sequence)
	if err != nil {
		h.writeServiceError(r.Context(), w, "get entry", err)
		return
	}
	if entry == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeLogNotFound, "log entry not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

type countResponse struct {
	Count uint64 `json:"count"`
}

func (h *Handler) handleGetCount(w http.ResponseWriter, r *http.Request) {
	farmer, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	count, err := h.log.GetLogCount(r.Context(), farmer)
	if err != nil {
		h.writeServiceError(r.Context(), w, "count entries", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, countResponse{Count: count})
}

func (h *Handler) entryParams(w http.ResponseWriter, r *http.Request) (domain.Principal, uint64, bool) {
	farmer, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", 0, false
	}
	sequence, err := parseSequence(chi.URLParam(r, "sequence"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", 0, false
	}
	return farmer, sequence, true
}

func parseSequence(raw string) (uint64, error) {
	sequence, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeLogInvalidInput, "invalid sequence number")
	}
	return sequence, nil
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, action string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "practice log operation failed",
			"action", action,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.WarnContext(ctx, "practice log operation rejected",
			"action", action,
			"code", int(code),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
