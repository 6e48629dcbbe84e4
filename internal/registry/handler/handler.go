// Package handler exposes the identity registry over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"agritrust/internal/platform/middleware"
	"agritrust/internal/registry/models"
	"agritrust/pkg/domain"
	dErrors "agritrust/pkg/domain-errors"
	"agritrust/pkg/platform/httputil"
	"agritrust/pkg/requestcontext"
)

// Service defines the registry operations the handler depends on.
type Service interface {
	Register(ctx context.Context, caller domain.Principal, name, location string, farmSize float64, additionalInfo string) (domain.FarmerID, error)
	Verify(ctx context.Context, caller, farmer domain.Principal, status string) (bool, error)
	UpdateProfile(ctx context.Context, caller domain.Principal, patch models.ProfilePatch) (bool, error)
	Deactivate(ctx context.Context, caller, farmer domain.Principal) (bool, error)
	SetRegistrationFee(ctx context.Context, caller domain.Principal, fee uint64) (bool, error)
	SetVerifier(ctx context.Context, caller, verifier domain.Principal) (bool, error)
	TransferOwnership(ctx context.Context, caller, newOwner domain.Principal) (bool, error)
	WithdrawFees(ctx context.Context, caller domain.Principal, amount uint64) (bool, error)
	GetProfile(ctx context.Context, principal domain.Principal) (*models.FarmerProfile, error)
	GetByID(ctx context.Context, id domain.FarmerID) (*models.FarmerProfile, error)
	IsVerified(ctx context.Context, principal domain.Principal) (bool, error)
	GetOwner(ctx context.Context) (domain.Principal, error)
	GetVerifier(ctx context.Context) (domain.Principal, error)
	GetFee(ctx context.Context) (uint64, error)
	GetBalance(ctx context.Context) (uint64, error)
}

// Handler handles registry endpoints.
type Handler struct {
	logger   *slog.Logger
	registry Service
	auth     middleware.PrincipalValidator
}

// New creates a registry Handler.
func New(registry Service, logger *slog.Logger, auth middleware.PrincipalValidator) *Handler {
	return &Handler{
		logger:   logger,
		registry: registry,
		auth:     auth,
	}
}

// Register registers the registry routes with the chi router. Reads are
// public; mutations require a bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Route("/registry", func(r chi.Router) {
		r.Get("/farmers/{principal}", h.handleGetProfile)
		r.Get("/farmers/{principal}/verified", h.handleIsVerified)
		r.Get("/farmers/id/{id}", h.handleGetByID)
		r.Get("/settings", h.handleGetSettings)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.auth, h.logger))
			r.Post("/farmers", h.handleRegister)
			r.Post("/farmers/{principal}/verify", h.handleVerify)
			r.Post("/farmers/{principal}/deactivate", h.handleDeactivate)
			r.Patch("/profile", h.handleUpdateProfile)
			r.Put("/settings/fee", h.handleSetFee)
			r.Put("/settings/verifier", h.handleSetVerifier)
			r.Put("/settings/owner", h.handleTransferOwnership)
			r.Post("/settings/withdraw", h.handleWithdrawFees)
		})
	})
}

type registerRequest struct {
	Name           string  `json:"name"`
	Location       string  `json:"location"`
	FarmSize       float64 `json:"farm_size"`
	AdditionalInfo string  `json:"additional_info"`
}

type registerResponse struct {
	FarmerID uint64 `json:"farmer_id"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	id, err := h.registry.Register(ctx, caller, req.Name, req.Location, req.FarmSize, req.AdditionalInfo)
	if err != nil {
		h.writeServiceError(ctx, w, "register farmer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registerResponse{FarmerID: uint64(id)})
}

type verifyRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	farmer, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidStatus, "invalid request body"))
		return
	}

	if _, err := h.registry.Verify(ctx, caller, farmer, req.Status); err != nil {
		h.writeServiceError(ctx, w, "verify farmer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	var patch models.ProfilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if _, err := h.registry.UpdateProfile(ctx, caller, patch); err != nil {
		h.writeServiceError(ctx, w, "update profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	farmer, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.registry.Deactivate(ctx, caller, farmer); err != nil {
		h.writeServiceError(ctx, w, "deactivate farmer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setFeeRequest struct {
	Fee uint64 `json:"fee"`
}

func (h *Handler) handleSetFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	var req setFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if _, err := h.registry.SetRegistrationFee(ctx, caller, req.Fee); err != nil {
		h.writeServiceError(ctx, w, "set registration fee", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setPrincipalRequest struct {
	Principal string `json:"principal"`
}

func (h *Handler) handleSetVerifier(w http.ResponseWriter, r *http.Request) {
	h.handleSettingsPrincipal(w, r, "set verifier", h.registry.SetVerifier)
}

func (h *Handler) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	h.handleSettingsPrincipal(w, r, "transfer ownership", h.registry.TransferOwnership)
}

func (h *Handler) handleSettingsPrincipal(w http.ResponseWriter, r *http.Request, action string, apply func(context.Context, domain.Principal, domain.Principal) (bool, error)) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	var req setPrincipalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if _, err := apply(ctx, caller, domain.Principal(req.Principal)); err != nil {
		h.writeServiceError(ctx, w, action, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type withdrawRequest struct {
	Amount uint64 `json:"amount"`
}

func (h *Handler) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if _, err := h.registry.WithdrawFees(ctx, caller, req.Amount); err != nil {
		h.writeServiceError(ctx, w, "withdraw fees", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile, err := h.registry.GetProfile(r.Context(), principal)
	if err != nil {
		h.writeServiceError(r.Context(), w, "get profile", err)
		return
	}
	if profile == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotRegistered, "farmer is not registered"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleGetByID(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid farmer id"))
		return
	}

	profile, err := h.registry.GetByID(r.Context(), domain.FarmerID(id))
	if err != nil {
		h.writeServiceError(r.Context(), w, "get profile by id", err)
		return
	}
	if profile == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotRegistered, "farmer is not registered"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

type verifiedResponse struct {
	Verified bool `json:"verified"`
}

func (h *Handler) handleIsVerified(w http.ResponseWriter, r *http.Request) {
	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	verified, err := h.registry.IsVerified(r.Context(), principal)
	if err != nil {
		h.writeServiceError(r.Context(), w, "check verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verifiedResponse{Verified: verified})
}

type settingsResponse struct {
	Owner           string `json:"owner"`
	Verifier        string `json:"verifier"`
	RegistrationFee uint64 `json:"registration_fee"`
	Balance         uint64 `json:"balance"`
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.registry.GetOwner(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "get settings", err)
		return
	}
	verifier, err := h.registry.GetVerifier(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "get settings", err)
		return
	}
	fee, err := h.registry.GetFee(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "get settings", err)
		return
	}
	balance, err := h.registry.GetBalance(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "get settings", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settingsResponse{
		Owner:           owner.String(),
		Verifier:        verifier.String(),
		RegistrationFee: fee,
		Balance:         balance,
	})
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, action string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "registry operation failed",
			"action", action,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.WarnContext(ctx, "registry operation rejected",
			"action", action,
			"code", int(code),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
