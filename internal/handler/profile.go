package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/humanizer/humanizer/internal/auth"
	"github.com/humanizer/humanizer/internal/handler/dto"
	"github.com/humanizer/humanizer/internal/middleware"
	"github.com/humanizer/humanizer/internal/model"
	"github.com/humanizer/humanizer/internal/service"
)

// revokeFallbackTTL applies to tokens that carry no expiry.
const revokeFallbackTTL = 24 * time.Hour

// ProfileService reads and registers profiles.
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	CreateProfile(ctx context.Context, userID, email string) (*model.Profile, bool, error)
}

// TokenRevoker records signed-out tokens until they expire.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenHash string, ttl time.Duration) error
}

// ProfileHandler serves the caller's profile, allowance and session.
type ProfileHandler struct {
	profiles ProfileService
	revoker  TokenRevoker
	logger   *slog.Logger
	now      func() time.Time
}

// NewProfileHandler creates a new ProfileHandler. revoker may be nil, in
// which case sign-out only acknowledges the request.
func NewProfileHandler(profiles ProfileService, revoker TokenRevoker, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		revoker:  revoker,
		logger:   logger,
		now:      time.Now,
	}
}

// Register handles POST /api/v1/profile. It is idempotent: 201 on first
// registration, 200 with the stored profile afterwards.
func (h *ProfileHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterProfileRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeDecodeError(w, err)
		return
	}

	ac := auth.AuthFromContext(r.Context())
	if ac == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing credentials")
		return
	}
	email := req.Email
	if ac.Email != "" {
		email = ac.Email
	}

	p, created, err := h.profiles.CreateProfile(r.Context(), ac.UserID, email)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeProfile(w, r, h.logger, status, p)
}

// Get handles GET /api/v1/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetProfile(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeProfile(w, r, h.logger, http.StatusOK, p)
}

// SignOut handles DELETE /api/v1/session by revoking the presented token.
func (h *ProfileHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	tok := auth.TokenFromContext(r.Context())
	if h.revoker != nil && tok != nil {
		ttl := tok.TTL(h.now(), revokeFallbackTTL)
		if ttl > 0 {
			if err := h.revoker.RevokeToken(r.Context(), auth.QuickHash(tok.Raw), ttl); err != nil {
				middleware.LoggerWithRequest(r.Context(), h.logger).Error("failed to revoke token",
					slog.String("user_id", tok.UserID),
					slog.String("error", err.Error()),
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				return
			}
		}
		h.logger.Info("signed out", slog.String("user_id", tok.UserID))
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeProfile answers with p and its allowance. A profile whose stored plan
// or balance is invalid is an internal error.
func writeProfile(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, p *model.Profile) {
	allowance, ok := p.Allowance()
	if !ok {
		writeServiceError(w, r, logger, service.ErrMalformedProfile)
		return
	}
	writeJSON(w, status, dto.ToProfileResponse(p, allowance))
}
