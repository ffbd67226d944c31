package model

import (
	"errors"
	"slices"
)

// JobStatus is the lifecycle state of a rewrite job.
type JobStatus string

const (
	JobSubmitted JobStatus = "submitted"
	JobPolling   JobStatus = "polling"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobTimedOut  JobStatus = "timed-out"
)

// ProviderStatusDone is the provider status reported for a finished document.
const ProviderStatusDone = "done"

// providerFailureStatuses are provider statuses that will never turn into "done".
var providerFailureStatuses = []string{"failed", "error", "rejected"}

// IsProviderFailureStatus reports whether a provider status is terminal without output.
func IsProviderFailureStatus(status string) bool {
	return slices.Contains(providerFailureStatuses, status)
}

// RewriteJob tracks one in-flight rewrite at the provider. It is never persisted.
type RewriteJob struct {
	DocumentID string
	Status     JobStatus
	Output     string
}

// Rewrite option values accepted by the provider.
var (
	ValidReadability = []string{"High School", "University", "Doctorate", "Journalist", "Marketing"}
	ValidPurposes    = []string{
		"General Writing", "Essay", "Article", "Marketing Material", "Story",
		"Cover Letter", "Report", "Business Material", "Legal Material",
	}
	ValidStrengths     = []string{"Quality", "Balanced", "More Human"}
	ValidModelVersions = []string{"v2", "v11"}
)

// Option validation errors.
var (
	ErrInvalidReadability  = errors.New("invalid readability")
	ErrInvalidPurpose      = errors.New("invalid purpose")
	ErrInvalidStrength     = errors.New("invalid strength")
	ErrInvalidModelVersion = errors.New("invalid model version")
)

// RewriteOptions configures a rewrite request.
type RewriteOptions struct {
	Readability  string `json:"readability"`
	Purpose      string `json:"purpose"`
	Strength     string `json:"strength"`
	ModelVersion string `json:"model"`
}

// DefaultRewriteOptions returns the options used when a caller sets none.
func DefaultRewriteOptions() RewriteOptions {
	return RewriteOptions{
		Readability:  "High School",
		Purpose:      "General Writing",
		Strength:     "More Human",
		ModelVersion: "v11",
	}
}

// WithDefaults fills empty fields from DefaultRewriteOptions.
func (o RewriteOptions) WithDefaults() RewriteOptions {
	d := DefaultRewriteOptions()
	if o.Readability == "" {
		o.Readability = d.Readability
	}
	if o.Purpose == "" {
		o.Purpose = d.Purpose
	}
	if o.Strength == "" {
		o.Strength = d.Strength
	}
	if o.ModelVersion == "" {
		o.ModelVersion = d.ModelVersion
	}
	return o
}

// Validate checks every field against the provider's accepted values.
func (o RewriteOptions) Validate() error {
	switch {
	case !slices.Contains(ValidReadability, o.Readability):
		return ErrInvalidReadability
	case !slices.Contains(ValidPurposes, o.Purpose):
		return ErrInvalidPurpose
	case !slices.Contains(ValidStrengths, o.Strength):
		return ErrInvalidStrength
	case !slices.Contains(ValidModelVersions, o.ModelVersion):
		return ErrInvalidModelVersion
	}
	return nil
}
