package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/humanizer/humanizer/internal/handler/dto"
	"github.com/humanizer/humanizer/internal/model"
)

// PlanManager changes plans and runs billing-cycle refills.
type PlanManager interface {
	ChangePlan(ctx context.Context, userID string, plan model.Plan) (*model.Profile, error)
	RefillCredits(ctx context.Context) (int64, error)
}

// AdminHandler provides operator endpoints, driven by billing tooling.
type AdminHandler struct {
	plans  PlanManager
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(plans PlanManager, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{plans: plans, logger: logger}
}

// ChangePlan handles PUT /api/v1/admin/users/{id}/plan.
func (h *AdminHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "User ID is required")
		return
	}

	var req dto.ChangePlanRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeDecodeError(w, err)
		return
	}

	p, err := h.plans.ChangePlan(r.Context(), userID, model.Plan(req.Plan))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("admin changed plan",
		slog.String("user_id", userID),
		slog.String("plan", string(p.Plan)),
	)
	writeProfile(w, r, h.logger, http.StatusOK, p)
}

// RefillCredits handles POST /api/v1/admin/credits/refill.
func (h *AdminHandler) RefillCredits(w http.ResponseWriter, r *http.Request) {
	n, err := h.plans.RefillCredits(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.RefillResponse{Refilled: n})
}
