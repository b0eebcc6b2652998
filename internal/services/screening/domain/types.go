// Package domain holds the screening entities, outcomes, and wire DTOs
package domain

import "time"

// Evidence statuses
const (
	StatusCleared      = "Cleared"
	StatusFailPEP      = "Fail PEP"
	StatusFailSanction = "Fail Sanction"
)

// Job statuses
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Review states
const (
	ReviewUnreviewed = "UNREVIEWED"
	ReviewInReview   = "IN_REVIEW"
	ReviewCompleted  = "COMPLETED"
)

// ReviewOutcomes is the fixed analyst outcome set
var ReviewOutcomes = []string{
	"False Positive – Proceeded",
	"False Positive – Payment Released",
	"Confirmed Match – Payment Blocked",
	"Confirmed Match – Escalated to Compliance",
	"Pending External Review",
	"Cancelled / No Action Required",
}

// ValidReviewOutcome reports membership in the fixed outcome set
func ValidReviewOutcome(s string) bool {
	for _, o := range ReviewOutcomes {
		if o == s {
			return true
		}
	}
	return false
}

// Reasons is the enumerated reason-for-check set
var Reasons = []string{
	"Client Onboarding",
	"Claim Payment",
	"Business Partner Payment",
	"Business Partner Due Diligence",
	"Periodic Re-Screen",
	"Ad-Hoc Compliance Review",
}

// ValidReason reports membership in the reason enumeration
func ValidReason(s string) bool {
	for _, r := range Reasons {
		if r == s {
			return true
		}
	}
	return false
}

// EvidenceRow is the durable screening outcome for one fingerprint
type EvidenceRow struct {
	Fingerprint    string
	DisplayName    string
	NormalizedName string
	DateOfBirth    string // normalized, may be empty or year-only
	EntityType     string

	LastScreenedAt time.Time
	ValidUntil     time.Time

	Status     string
	RiskLevel  string
	Confidence string
	Score      float64

	UKSanctionsFlag bool
	PEPFlag         bool

	ResultBlob []byte // opaque structured decision record

	LastRequestor string
	UpdatedAt     time.Time

	ReviewState       string
	ReviewOutcome     string
	ReviewNotes       string
	ReviewClaimedBy   string
	ReviewClaimedAt   *time.Time
	ReviewCompletedBy string
	ReviewCompletedAt *time.Time

	FalsePositiveReason string

	ScreenedAgainstUKHash string
	ScreenedRefreshRunID  string
}

// Valid reports whether the row is inside its validity window at now
func (e EvidenceRow) Valid(now time.Time) bool { return e.ValidUntil.After(now) }

// Job is one queued screening task
type Job struct {
	ID          string
	Fingerprint string

	Name       string
	DOB        string
	EntityType string

	Requestor         string
	Reason            string
	BusinessReference string

	RefreshRunID  string
	ForceRescreen bool

	Status       string
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorMessage string
}

// Enqueue outcome kinds
const (
	EnqueueReused         = "reused"
	EnqueueAlreadyPending = "already_pending"
	EnqueueQueued         = "queued"
)

// EnqueueOutcome is the explicit result variant of JQ enqueue
type EnqueueOutcome struct {
	Kind     string
	JobID    string       // set for queued and already_pending
	Evidence *EvidenceRow // set for reused
}

// RefreshRun summarizes one watchlist refresh cycle
type RefreshRun struct {
	RunID      string    `json:"run_id"`
	RanAt      time.Time `json:"ran_at"`
	UKHash     string    `json:"uk_hash"`
	PrevUKHash string    `json:"prev_uk_hash,omitempty"`
	UKRowCount int       `json:"uk_row_count"`

	DeltaAdded   int `json:"delta_added"`
	DeltaRemoved int `json:"delta_removed"`
	DeltaChanged int `json:"delta_changed"`

	CandidateCount      int `json:"candidate_count"`
	QueuedCount         int `json:"queued_count"`
	ReusedCount         int `json:"reused_count"`
	AlreadyPendingCount int `json:"already_pending_count"`
	FailedCount         int `json:"failed_count"`

	UKIndex map[string]string `json:"-"` // persisted for the next delta
}
