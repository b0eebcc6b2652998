// Package service implements the review state machine over evidence rows
package service

import (
	"context"
	"strings"
	"time"

	"opscreen/internal/modkit/repokit"
	perr "opscreen/internal/platform/errors"
	pnet "opscreen/internal/platform/net"
	"opscreen/internal/platform/store"
	auditdom "opscreen/internal/services/audit/domain"
	"opscreen/internal/services/review/domain"
	screendom "opscreen/internal/services/screening/domain"
	screenrepo "opscreen/internal/services/screening/repo"
)

// Config for the review service
type Config struct {
	QueueLimit int
}

// Service validates transitions and audits every one of them. Decision fields
// are never written from here
type Service struct {
	tx       store.TxRunner
	reviews  repokit.Binder[screenrepo.ReviewStorage]
	evidence repokit.Binder[screenrepo.EvidenceStorage]
	audit    auditdom.SinkPort
	cfg      Config
}

// New constructs the review service
func New(tx store.TxRunner, audit auditdom.SinkPort, cfg Config) *Service {
	if audit == nil {
		panic("review: audit sink is required")
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = 100
	}
	return &Service{
		tx:       tx,
		reviews:  screenrepo.NewReviewPG(),
		evidence: screenrepo.NewEvidencePG(),
		audit:    audit,
		cfg:      cfg,
	}
}

// Claim implements domain.ReviewPort: UNREVIEWED to IN_REVIEW
func (s *Service) Claim(ctx context.Context, entityKey, actor string) (domain.View, error) {
	if s.tx == nil {
		return domain.View{}, perr.Unavailablef("persistent storage not configured")
	}
	entityKey = strings.TrimSpace(entityKey)
	if entityKey == "" {
		return domain.View{}, perr.WithField(perr.InvalidArgf("entity_key is required"), "entity_key")
	}

	row, err := s.reviews.Bind(s.tx).Claim(ctx, entityKey, actor, time.Now().UTC())
	if err != nil {
		return domain.View{}, err
	}
	if row == nil {
		return domain.View{}, s.transitionRefused(ctx, entityKey, screendom.ReviewUnreviewed)
	}

	s.audit.Emit(ctx, auditdom.Event{
		Actor:         actor,
		Action:        auditdom.ActionReviewClaim,
		Fingerprint:   entityKey,
		Outcome:       row.ReviewState,
		CorrelationID: pnet.CorrelationID(ctx),
	})
	return viewOf(*row), nil
}

// Complete implements domain.ReviewPort: IN_REVIEW to COMPLETED
func (s *Service) Complete(ctx context.Context, entityKey, actor string, in domain.CompleteInput) (domain.View, error) {
	if s.tx == nil {
		return domain.View{}, perr.Unavailablef("persistent storage not configured")
	}
	entityKey = strings.TrimSpace(entityKey)
	if entityKey == "" {
		return domain.View{}, perr.WithField(perr.InvalidArgf("entity_key is required"), "entity_key")
	}
	if !screendom.ValidReviewOutcome(in.Outcome) {
		return domain.View{}, perr.WithField(
			perr.InvalidArgf("outcome must be one of: %s", strings.Join(screendom.ReviewOutcomes, ", ")),
			"outcome")
	}

	row, err := s.reviews.Bind(s.tx).Complete(ctx, entityKey, actor, in.Outcome, in.Notes, time.Now().UTC())
	if err != nil {
		return domain.View{}, err
	}
	if row == nil {
		return domain.View{}, s.transitionRefused(ctx, entityKey, screendom.ReviewInReview)
	}

	s.audit.Emit(ctx, auditdom.Event{
		Actor:         actor,
		Action:        auditdom.ActionReviewComplete,
		Fingerprint:   entityKey,
		Outcome:       in.Outcome,
		CorrelationID: pnet.CorrelationID(ctx),
		Detail:        map[string]any{"notes_len": len(in.Notes)},
	})
	return viewOf(*row), nil
}

// Queue implements domain.ReviewPort: unreviewed potential matches
func (s *Service) Queue(ctx context.Context, limit int) ([]domain.View, error) {
	if s.tx == nil {
		return nil, perr.Unavailablef("persistent storage not configured")
	}
	if limit <= 0 || limit > s.cfg.QueueLimit {
		limit = s.cfg.QueueLimit
	}
	rows, err := s.reviews.Bind(s.tx).Queue(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.View, 0, len(rows))
	for _, r := range rows {
		out = append(out, viewOf(r))
	}
	return out, nil
}

// transitionRefused maps a guarded-update miss to not-found or conflict
func (s *Service) transitionRefused(ctx context.Context, entityKey, wanted string) error {
	existing, err := s.evidence.Bind(s.tx).Get(ctx, entityKey)
	if err != nil {
		return err
	}
	if existing == nil {
		return perr.NotFoundf("unknown entity key")
	}
	return perr.Conflictf("review state is %s, transition requires %s", existing.ReviewState, wanted)
}

func viewOf(e screendom.EvidenceRow) domain.View {
	v := domain.View{
		EntityKey:         e.Fingerprint,
		DisplayName:       e.DisplayName,
		DateOfBirth:       e.DateOfBirth,
		EntityType:        e.EntityType,
		Status:            e.Status,
		RiskLevel:         e.RiskLevel,
		Score:             e.Score,
		ReviewState:       e.ReviewState,
		ReviewOutcome:     e.ReviewOutcome,
		ReviewNotes:       e.ReviewNotes,
		ReviewClaimedBy:   e.ReviewClaimedBy,
		ReviewCompletedBy: e.ReviewCompletedBy,
		LastScreenedAt:    e.LastScreenedAt.UTC().Format(time.RFC3339),
	}
	if e.ReviewClaimedAt != nil {
		v.ReviewClaimedAt = e.ReviewClaimedAt.UTC().Format(time.RFC3339)
	}
	if e.ReviewCompletedAt != nil {
		v.ReviewCompletedAt = e.ReviewCompletedAt.UTC().Format(time.RFC3339)
	}
	return v
}
