// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// Plan is a subscription tier.
type Plan string

// Plan constants.
const (
	PlanFree    Plan = "free"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// UnlimitedCredits is the stored credit value for plans without a usage cap.
const UnlimitedCredits = -1

// ValidPlans contains all valid plan values.
var ValidPlans = []Plan{PlanFree, PlanPro, PlanPremium}

// PlanConfig defines the allowance attached to a plan.
type PlanConfig struct {
	// Credits granted when the plan is assigned. UnlimitedCredits for no cap.
	Credits int
	// Refillable plans are reset to Credits at the start of each billing cycle.
	Refillable bool
}

// PlanConfigs maps plans to their allowance configuration.
var PlanConfigs = map[Plan]PlanConfig{
	PlanFree:    {Credits: 10, Refillable: false},
	PlanPro:     {Credits: 100, Refillable: true},
	PlanPremium: {Credits: UnlimitedCredits, Refillable: false},
}

// ParsePlan normalizes a stored or user-supplied plan name.
// The second return value is false for unknown plans.
func ParsePlan(raw string) (Plan, bool) {
	p := Plan(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := PlanConfigs[p]; !ok {
		return "", false
	}
	return p, true
}

// IsUnlimited reports whether the plan bypasses credit accounting.
func (p Plan) IsUnlimited() bool {
	return p == PlanPremium
}

// InitialCredits returns the credits granted when the plan is assigned.
func (p Plan) InitialCredits() int {
	return PlanConfigs[p].Credits
}

// DisplayName returns the human-readable plan name.
func (p Plan) DisplayName() string {
	switch p {
	case PlanFree:
		return "Free Plan"
	case PlanPro:
		return "Pro Plan"
	case PlanPremium:
		return "Premium Plan"
	default:
		return "Unknown Plan"
	}
}

// Profile is the identity-linked usage record of a user.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Credits   int       `json:"credits"`
	Plan      Plan      `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

// NewProfile builds a profile on the free plan with its starting allowance.
func NewProfile(id, email string, now time.Time) *Profile {
	return &Profile{
		ID:        id,
		Email:     email,
		Credits:   PlanFree.InitialCredits(),
		Plan:      PlanFree,
		CreatedAt: now.UTC(),
	}
}

// Allowance is the result of a credit check.
type Allowance struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

// Allowance computes the usage allowance of the profile.
// The second return value is false when the stored values are inconsistent:
// an unknown plan, or a negative credit value on a capped plan.
func (p *Profile) Allowance() (Allowance, bool) {
	plan, ok := ParsePlan(string(p.Plan))
	if !ok {
		return Allowance{}, false
	}
	if plan.IsUnlimited() {
		return Allowance{Allowed: true, Remaining: UnlimitedCredits, Unlimited: true}, true
	}
	if p.Credits < 0 {
		return Allowance{}, false
	}
	return Allowance{Allowed: p.Credits > 0, Remaining: p.Credits}, true
}
