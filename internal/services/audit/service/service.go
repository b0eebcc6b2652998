// Package service implements the audit sink
package service

import (
	"context"
	"time"

	"opscreen/internal/modkit/repokit"
	"opscreen/internal/platform/logger"
	"opscreen/internal/platform/store"
	"opscreen/internal/services/audit/domain"
	"opscreen/internal/services/audit/repo"

	"github.com/google/uuid"
)

// Config for the audit service
type Config struct {
	ListLimit int
	// Mirror enables the best-effort columnar copy for analytics
	Mirror bool
}

// Service appends events to Postgres and mirrors them to ClickHouse when
// configured. Both paths are best-effort; a loss is logged, never raised
type Service struct {
	tx     repokit.TxRunner
	binder repokit.Binder[repo.Storage]
	ch     store.Clickhouse
	cfg    Config
}

// New constructs the audit service
func New(tx repokit.TxRunner, binder repokit.Binder[repo.Storage], ch store.Clickhouse, cfg Config) *Service {
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 100
	}
	return &Service{tx: tx, binder: binder, ch: ch, cfg: cfg}
}

// Emit implements domain.SinkPort
func (s *Service) Emit(ctx context.Context, ev domain.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if ev.Actor == "" {
		ev.Actor = domain.SystemActor
	}

	if s.tx != nil {
		if err := s.binder.Bind(s.tx).Insert(ctx, ev); err != nil {
			logger.C(ctx).Warn().Err(err).
				Str("action", ev.Action).
				Str("fingerprint", ev.Fingerprint).
				Msg("audit event lost (postgres)")
		}
	}

	if s.cfg.Mirror && s.ch != nil {
		row := [][]any{{
			ev.ID, ev.At, ev.Actor, ev.Action, ev.Fingerprint,
			ev.BusinessReference, ev.Reason, ev.Outcome, ev.CorrelationID,
		}}
		if err := s.ch.Insert(ctx, "audit_events", row); err != nil {
			logger.C(ctx).Warn().Err(err).Str("action", ev.Action).Msg("audit mirror lost (clickhouse)")
		}
	}
}

// ListByFingerprint implements domain.QueryPort
func (s *Service) ListByFingerprint(ctx context.Context, fingerprint string, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > s.cfg.ListLimit {
		limit = s.cfg.ListLimit
	}
	return s.binder.Bind(s.tx).ListByFingerprint(ctx, fingerprint, limit)
}

// ListRecent implements domain.QueryPort
func (s *Service) ListRecent(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > s.cfg.ListLimit {
		limit = s.cfg.ListLimit
	}
	return s.binder.Bind(s.tx).ListRecent(ctx, limit)
}

// Nop is a sink that drops everything, used in inline-only mode
type Nop struct{}

// Emit implements domain.SinkPort
func (Nop) Emit(context.Context, domain.Event) {}
