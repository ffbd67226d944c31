// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"strconv"
	"time"

	"github.com/humanizer/humanizer/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HumanizeOptions are the optional rewrite settings of a humanize request.
type HumanizeOptions struct {
	Readability string `json:"readability,omitempty"`
	Purpose     string `json:"purpose,omitempty"`
	Strength    string `json:"strength,omitempty"`
	Model       string `json:"model,omitempty"`
}

// HumanizeRequest represents the request body of POST /api/v1/humanize.
type HumanizeRequest struct {
	Text    string           `json:"text"`
	Options *HumanizeOptions `json:"options,omitempty"`
}

// RewriteOptions converts the request options, leaving unset fields empty
// so the service applies its defaults.
func (r *HumanizeRequest) RewriteOptions() model.RewriteOptions {
	if r.Options == nil {
		return model.RewriteOptions{}
	}
	return model.RewriteOptions{
		Readability:  r.Options.Readability,
		Purpose:      r.Options.Purpose,
		Strength:     r.Options.Strength,
		ModelVersion: r.Options.Model,
	}
}

// HumanizeResponse is returned by a successful humanize request.
type HumanizeResponse struct {
	Text      string    `json:"text"`
	RecordID  string    `json:"record_id"`
	CreatedAt time.Time `json:"created_at"`
	Credits   Credits   `json:"credits"`
	// DebitPending is true when the charge for this request is still being settled.
	DebitPending bool `json:"debit_pending,omitempty"`
}

// Credits is the balance as displayed to users.
type Credits struct {
	Remaining int    `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
	Display   string `json:"display"`
}

// NewCredits builds the display form of a balance.
func NewCredits(remaining int, unlimited bool) Credits {
	c := Credits{Remaining: remaining, Unlimited: unlimited, Display: strconv.Itoa(remaining)}
	if unlimited {
		c.Display = "Unlimited"
	}
	return c
}

// RegisterProfileRequest represents the optional body of POST /api/v1/profile.
type RegisterProfileRequest struct {
	Email string `json:"email,omitempty"`
}

// ProfileResponse represents a profile and its allowance.
type ProfileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Plan      string    `json:"plan"`
	PlanName  string    `json:"plan_name"`
	Credits   Credits   `json:"credits"`
	CanSubmit bool      `json:"can_submit"`
	CreatedAt time.Time `json:"created_at"`
}

// ToProfileResponse converts a profile and its computed allowance.
func ToProfileResponse(p *model.Profile, a model.Allowance) *ProfileResponse {
	plan, _ := model.ParsePlan(string(p.Plan))
	return &ProfileResponse{
		ID:        p.ID,
		Email:     p.Email,
		Plan:      string(plan),
		PlanName:  plan.DisplayName(),
		Credits:   NewCredits(a.Remaining, a.Unlimited),
		CanSubmit: a.Allowed,
		CreatedAt: p.CreatedAt,
	}
}

// RecordResponse represents one history entry.
type RecordResponse struct {
	ID            string    `json:"id"`
	OriginalText  string    `json:"original_text"`
	HumanizedText string    `json:"humanized_text"`
	CreatedAt     time.Time `json:"created_at"`
}

// HistoryResponse is the newest-first history of the caller.
type HistoryResponse struct {
	Data  []RecordResponse `json:"data"`
	Count int              `json:"count"`
}

// ToHistoryResponse converts records, preserving their order.
func ToHistoryResponse(records []*model.HumanizationRecord) *HistoryResponse {
	data := make([]RecordResponse, 0, len(records))
	for _, r := range records {
		data = append(data, RecordResponse{
			ID:            r.ID,
			OriginalText:  r.OriginalText,
			HumanizedText: r.HumanizedText,
			CreatedAt:     r.CreatedAt,
		})
	}
	return &HistoryResponse{Data: data, Count: len(data)}
}

// ChangePlanRequest represents the body of PUT /api/v1/admin/users/{id}/plan.
type ChangePlanRequest struct {
	Plan string `json:"plan"`
}

// RefillResponse reports a billing-cycle refill.
type RefillResponse struct {
	Refilled int64 `json:"refilled"`
}
