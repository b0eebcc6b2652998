package repo

import (
	"context"
	"time"

	"opscreen/internal/modkit/repokit"
	perr "opscreen/internal/platform/errors"
	"opscreen/internal/services/screening/domain"
)

type (
	reviewPG     struct{ q repokit.Queryer }
	reviewBinder struct{}
)

// NewReviewPG constructs a repo binder for the review columns of evidence
func NewReviewPG() repokit.Binder[ReviewStorage] { return reviewBinder{} }

// Bind implements repokit.Binder
func (reviewBinder) Bind(q repokit.Queryer) ReviewStorage { return &reviewPG{q: q} }

// ReviewStorage drives the per-row review state machine. Both transitions are
// guarded updates, so a row in the wrong state comes back nil and the caller
// decides between not-found and conflict
type ReviewStorage interface {
	Claim(ctx context.Context, fingerprint, actor string, at time.Time) (*domain.EvidenceRow, error)
	Complete(ctx context.Context, fingerprint, actor, outcome, notes string, at time.Time) (*domain.EvidenceRow, error)
	Queue(ctx context.Context, limit int) ([]domain.EvidenceRow, error)
}

// Claim implements ReviewStorage: UNREVIEWED to IN_REVIEW only
func (s *reviewPG) Claim(ctx context.Context, fingerprint, actor string, at time.Time) (*domain.EvidenceRow, error) {
	rows, err := s.q.Query(ctx, `
		UPDATE evidence
		SET review_state = $3,
			review_claimed_by = $2,
			review_claimed_at = $4,
			updated_at = $4
		WHERE fingerprint = $1 AND review_state = $5
		RETURNING `+evidenceColumns,
		fingerprint, actor, domain.ReviewInReview, at, domain.ReviewUnreviewed)
	if err != nil {
		return nil, perr.FromPostgres(err, "review claim")
	}
	return firstEvidence(rows)
}

// Complete implements ReviewStorage: IN_REVIEW to COMPLETED only. Decision
// fields are never touched here
func (s *reviewPG) Complete(ctx context.Context, fingerprint, actor, outcome, notes string, at time.Time) (*domain.EvidenceRow, error) {
	rows, err := s.q.Query(ctx, `
		UPDATE evidence
		SET review_state = $3,
			review_outcome = $4,
			review_notes = $5,
			review_completed_by = $2,
			review_completed_at = $6,
			updated_at = $6
		WHERE fingerprint = $1 AND review_state = $7
		RETURNING `+evidenceColumns,
		fingerprint, actor, domain.ReviewCompleted, outcome, notes, at, domain.ReviewInReview)
	if err != nil {
		return nil, perr.FromPostgres(err, "review complete")
	}
	return firstEvidence(rows)
}

// Queue implements ReviewStorage: unreviewed potential matches, oldest first
func (s *reviewPG) Queue(ctx context.Context, limit int) ([]domain.EvidenceRow, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+evidenceColumns+`
		FROM evidence
		WHERE review_state = $1 AND status <> $2
		ORDER BY last_screened_at ASC
		LIMIT $3`, domain.ReviewUnreviewed, domain.StatusCleared, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "review queue")
	}
	return allEvidence(rows)
}
