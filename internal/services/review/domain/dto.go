// Package domain holds the review workflow DTOs and port
package domain

import "context"

// CompleteInput closes a claimed review. The outcome must come from the fixed
// analyst set and the notes carry the minimum substance the auditors require
type CompleteInput struct {
	Outcome string `json:"outcome" validate:"required,max=100" example:"False Positive – Proceeded"`
	Notes   string `json:"notes" validate:"required,min=10,max=2000" example:"Passport checked, different person"`
}

// View is the review-facing projection of an evidence row
type View struct {
	EntityKey   string  `json:"entity_key"`
	DisplayName string  `json:"display_name"`
	DateOfBirth string  `json:"date_of_birth,omitempty"`
	EntityType  string  `json:"entity_type"`
	Status      string  `json:"status"`
	RiskLevel   string  `json:"risk_level"`
	Score       float64 `json:"score"`

	ReviewState       string `json:"review_state"`
	ReviewOutcome     string `json:"review_outcome,omitempty"`
	ReviewNotes       string `json:"review_notes,omitempty"`
	ReviewClaimedBy   string `json:"review_claimed_by,omitempty"`
	ReviewClaimedAt   string `json:"review_claimed_at,omitempty"`
	ReviewCompletedBy string `json:"review_completed_by,omitempty"`
	ReviewCompletedAt string `json:"review_completed_at,omitempty"`

	LastScreenedAt string `json:"last_screened_at"`
}

// ReviewPort drives the per-row review state machine
type ReviewPort interface {
	Claim(ctx context.Context, entityKey, actor string) (View, error)
	Complete(ctx context.Context, entityKey, actor string, in CompleteInput) (View, error)
	Queue(ctx context.Context, limit int) ([]View, error)
}
