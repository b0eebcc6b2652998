// Package repo persists audit events
package repo

import (
	"context"
	"encoding/json"

	"opscreen/internal/modkit/repokit"
	"opscreen/internal/services/audit/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the audit repository
type Storage interface {
	Insert(ctx context.Context, ev domain.Event) error
	ListByFingerprint(ctx context.Context, fingerprint string, limit int) ([]domain.Event, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Event, error)
}

// Insert implements Storage
func (s *pg) Insert(ctx context.Context, ev domain.Event) error {
	var detail []byte
	if len(ev.Detail) > 0 {
		b, err := json.Marshal(ev.Detail)
		if err != nil {
			return err
		}
		detail = b
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO audit_events
			(id, at, actor, action, fingerprint, business_reference, reason, outcome, correlation_id, detail)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),NULLIF($7,''),NULLIF($8,''),NULLIF($9,''),$10)`,
		ev.ID, ev.At, ev.Actor, ev.Action, ev.Fingerprint,
		ev.BusinessReference, ev.Reason, ev.Outcome, ev.CorrelationID, detail,
	)
	return err
}

// ListByFingerprint implements Storage
func (s *pg) ListByFingerprint(ctx context.Context, fingerprint string, limit int) ([]domain.Event, error) {
	return s.list(ctx, `
		SELECT id, at, actor, action,
			COALESCE(fingerprint, ''), COALESCE(business_reference, ''),
			COALESCE(reason, ''), COALESCE(outcome, ''), COALESCE(correlation_id, ''), detail
		FROM audit_events
		WHERE fingerprint = $1
		ORDER BY at DESC
		LIMIT $2`, fingerprint, limit)
}

// ListRecent implements Storage
func (s *pg) ListRecent(ctx context.Context, limit int) ([]domain.Event, error) {
	return s.list(ctx, `
		SELECT id, at, actor, action,
			COALESCE(fingerprint, ''), COALESCE(business_reference, ''),
			COALESCE(reason, ''), COALESCE(outcome, ''), COALESCE(correlation_id, ''), detail
		FROM audit_events
		ORDER BY at DESC
		LIMIT $1`, limit)
}

func (s *pg) list(ctx context.Context, sql string, args ...any) ([]domain.Event, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var ev domain.Event
		var detail []byte
		if err := rows.Scan(
			&ev.ID, &ev.At, &ev.Actor, &ev.Action,
			&ev.Fingerprint, &ev.BusinessReference,
			&ev.Reason, &ev.Outcome, &ev.CorrelationID, &detail,
		); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &ev.Detail)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
