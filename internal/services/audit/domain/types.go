// Package domain holds the audit event model and ports
package domain

import (
	"context"
	"time"
)

// Actions recorded by the sink
const (
	ActionCacheReuse     = "cache_reuse"
	ActionQueued         = "queued"
	ActionSynchronous    = "synchronous"
	ActionRejected       = "rejected"
	ActionReusedByWorker = "reused_by_worker"
	ActionCompleted      = "completed"
	ActionFailed         = "failed"
	ActionRefreshRun     = "refresh_run"
	ActionReviewClaim    = "review_claim"
	ActionReviewComplete = "review_complete"
	ActionReviewReset    = "review_reset"
	ActionFalsePositive  = "false_positive_override"
	ActionLogin          = "login"
	ActionLoginFailed    = "login_failed"
	ActionUserAdmin      = "user_admin"
	ActionDataAccess     = "data_access"
)

// SystemActor marks events emitted by background processes
const SystemActor = "system"

// Event is one append-only audit record
type Event struct {
	ID                string         `json:"id"`
	At                time.Time      `json:"at"`
	Actor             string         `json:"actor"`
	Action            string         `json:"action"`
	Fingerprint       string         `json:"fingerprint,omitempty"`
	BusinessReference string         `json:"business_reference,omitempty"`
	Reason            string         `json:"reason,omitempty"`
	Outcome           string         `json:"outcome,omitempty"`
	CorrelationID     string         `json:"correlation_id,omitempty"`
	Detail            map[string]any `json:"detail,omitempty"`
}

// SinkPort receives events. Delivery is best-effort; implementations log
// losses instead of failing the caller
type SinkPort interface {
	Emit(ctx context.Context, ev Event)
}

// QueryPort reads back the trail for operators
type QueryPort interface {
	ListByFingerprint(ctx context.Context, fingerprint string, limit int) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
