package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/humanizer/humanizer/internal/auth"
	"github.com/humanizer/humanizer/internal/handler/dto"
	"github.com/humanizer/humanizer/internal/model"
)

// HistoryLister returns a user's records newest first.
type HistoryLister interface {
	ListForUser(ctx context.Context, userID string) ([]*model.HumanizationRecord, error)
}

// HistoryHandler handles GET /api/v1/history.
type HistoryHandler struct {
	history HistoryLister
	logger  *slog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(history HistoryLister, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, logger: logger}
}

// List handles GET /api/v1/history.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.ListForUser(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToHistoryResponse(records))
}
