package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/humanizer/humanizer/internal/auth"
	"github.com/humanizer/humanizer/internal/handler/dto"
	"github.com/humanizer/humanizer/internal/service"
)

// Humanizer runs the humanize workflow.
type Humanizer interface {
	Humanize(ctx context.Context, input service.HumanizeInput) (*service.HumanizeResult, error)
}

// HumanizeHandler handles POST /api/v1/humanize.
type HumanizeHandler struct {
	svc    Humanizer
	logger *slog.Logger
}

// NewHumanizeHandler creates a new HumanizeHandler.
func NewHumanizeHandler(svc Humanizer, logger *slog.Logger) *HumanizeHandler {
	return &HumanizeHandler{svc: svc, logger: logger}
}

// Humanize handles POST /api/v1/humanize. The request blocks until the
// provider finishes or the poll budget is spent.
func (h *HumanizeHandler) Humanize(w http.ResponseWriter, r *http.Request) {
	var req dto.HumanizeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeDecodeError(w, err)
		return
	}

	result, err := h.svc.Humanize(r.Context(), service.HumanizeInput{
		UserID:  auth.UserIDFromContext(r.Context()),
		Text:    req.Text,
		Options: req.RewriteOptions(),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.HumanizeResponse{
		Text:         result.Text,
		RecordID:     result.Record.ID,
		CreatedAt:    result.Record.CreatedAt,
		Credits:      dto.NewCredits(result.Remaining, result.Unlimited),
		DebitPending: result.DebitPending,
	})
}
