package domain

import "opscreen/internal/core/matcher"

// ScreenInput is the submit body. Field names and the reason enumeration are
// part of the frozen wire contract
type ScreenInput struct {
	Name              string `json:"name" validate:"required" example:"Jane Doe"`
	DOB               string `json:"dob" validate:"omitempty,max=40" example:"1980-05-01"`
	EntityType        string `json:"entity_type" validate:"omitempty,oneof=Person Organization person organization" example:"Person"`
	Requestor         string `json:"requestor" validate:"required,max=200" example:"u1"`
	ReasonForCheck    string `json:"reason_for_check" validate:"required" example:"Client Onboarding"`
	BusinessReference string `json:"business_reference" validate:"required,max=200" example:"CASE-1"`
	SearchBackend     string `json:"search_backend" validate:"omitempty,max=40" example:""`
}

// CheckSummary is the nested summary block of a screening result
type CheckSummary struct {
	Status string `json:"Status"`
	Source string `json:"Source"`
	Date   string `json:"Date"`
}

// ScreenResult is the frozen screening response body. Keys must not change;
// downstream consumers bind to them literally
type ScreenResult struct {
	SanctionsName string             `json:"Sanctions Name"`
	BirthDate     string             `json:"Birth Date"`
	Regime        string             `json:"Regime"`
	Position      string             `json:"Position"`
	Topics        string             `json:"Topics"`
	IsPEP         bool               `json:"Is PEP"`
	IsSanctioned  bool               `json:"Is Sanctioned"`
	Confidence    string             `json:"Confidence"`
	Score         float64            `json:"Score"`
	RiskLevel     string             `json:"Risk Level"`
	TopMatches    []matcher.TopMatch `json:"Top Matches"`
	MatchFound    bool               `json:"Match Found"`
	CheckSummary  CheckSummary       `json:"Check Summary"`
	EntityKey     string             `json:"entity_key,omitempty"`

	// UKSanctionsFlag is internal routing state, not part of the frozen body
	UKSanctionsFlag bool `json:"-"`
}

// QueuedOutput is the 202 body for an enqueued screening
type QueuedOutput struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Location string `json:"location"`
}

// JobStatusOutput reports queue state, joined with the result when completed
type JobStatusOutput struct {
	JobID        string        `json:"job_id"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Result       *ScreenResult `json:"result,omitempty"`
}

// SearchInput drives the evidence search endpoint
type SearchInput struct {
	Query string `json:"query" validate:"required,min=2,max=200" example:"doe"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=100" example:"20"`
}

// EvidenceSummary is a compact search row
type EvidenceSummary struct {
	EntityKey      string  `json:"entity_key"`
	DisplayName    string  `json:"display_name"`
	DateOfBirth    string  `json:"date_of_birth,omitempty"`
	EntityType     string  `json:"entity_type"`
	Status         string  `json:"status"`
	RiskLevel      string  `json:"risk_level"`
	Score          float64 `json:"score"`
	ReviewState    string  `json:"review_state"`
	LastScreenedAt string  `json:"last_screened_at"`
	ValidUntil     string  `json:"valid_until"`
	FalsePositive  bool    `json:"false_positive"`
}

// FalsePositiveInput records a manual override on an evidence row
type FalsePositiveInput struct {
	Reason string `json:"reason" validate:"required,min=5,max=500" example:"Name collision confirmed against passport"`
}

// BulkItemOutcome is the per-item result of a bulk enqueue
type BulkItemOutcome struct {
	Status string `json:"status"`
	JobID  string `json:"job_id,omitempty"`
	Error  string `json:"error,omitempty"`
}
