package domain

import "context"

// ScreenOutcome is the explicit dispatch result variant
type ScreenOutcome struct {
	// HTTPStatus is 200 for resolved screenings and 202 for queued ones
	HTTPStatus int
	// Result is set when HTTPStatus is 200
	Result *ScreenResult
	// Queued is set when HTTPStatus is 202
	Queued *QueuedOutput
}

// DispatcherPort is the request-path screening contract
type DispatcherPort interface {
	Screen(ctx context.Context, in ScreenInput, actor string) (ScreenOutcome, error)
	JobStatus(ctx context.Context, jobID string) (JobStatusOutput, error)
	Search(ctx context.Context, in SearchInput) ([]EvidenceSummary, error)
	GetByKey(ctx context.Context, entityKey string) (*ScreenResult, error)
	MarkFalsePositive(ctx context.Context, entityKey, reason, actor string) (EvidenceSummary, error)
}

// EnqueuerPort lets other modules push screening work through the queue
// with full idempotency semantics
type EnqueuerPort interface {
	Enqueue(ctx context.Context, in ScreenInput, refreshRunID string, force bool) (EnqueueOutcome, error)
	PendingPlusRunning(ctx context.Context) (int, error)
}

// The worker and refresh coordinator read their deps through these narrow
// views instead of holding the dispatcher

// EvidenceReaderPort is the read side of the evidence store
type EvidenceReaderPort interface {
	GetValid(ctx context.Context, fingerprint string) (*EvidenceRow, error)
	Get(ctx context.Context, fingerprint string) (*EvidenceRow, error)
}
