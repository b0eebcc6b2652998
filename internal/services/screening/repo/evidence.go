// Package repo provides the screening repositories
package repo

import (
	"context"
	"time"

	"opscreen/internal/modkit/repokit"
	perr "opscreen/internal/platform/errors"
	"opscreen/internal/services/screening/domain"
)

type (
	evidencePG     struct{ q repokit.Queryer }
	evidenceBinder struct{}
)

// NewEvidencePG constructs a repo binder for the evidence table
func NewEvidencePG() repokit.Binder[EvidenceStorage] { return evidenceBinder{} }

// Bind implements repokit.Binder
func (evidenceBinder) Bind(q repokit.Queryer) EvidenceStorage { return &evidencePG{q: q} }

// EvidenceStorage defines the evidence repository
type EvidenceStorage interface {
	GetValid(ctx context.Context, fingerprint string, now time.Time) (*domain.EvidenceRow, error)
	Get(ctx context.Context, fingerprint string) (*domain.EvidenceRow, error)
	Upsert(ctx context.Context, in UpsertInput) (*domain.EvidenceRow, error)
	SearchByName(ctx context.Context, substring string, limit int) ([]domain.EvidenceRow, error)
	MarkFalsePositive(ctx context.Context, fingerprint, reason string) (*domain.EvidenceRow, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ValidCandidates(ctx context.Context, ukHash string, now time.Time, limit int) ([]domain.EvidenceRow, error)
}

// UpsertInput carries everything one screening writes into evidence
type UpsertInput struct {
	Fingerprint    string
	DisplayName    string
	NormalizedName string
	DateOfBirth    string
	EntityType     string

	Status     string
	RiskLevel  string
	Confidence string
	Score      float64

	UKSanctionsFlag bool
	PEPFlag         bool

	ResultBlob []byte

	Requestor     string
	ValidityDays  int
	ForceRescreen bool

	ScreenedAgainstUKHash string
	ScreenedRefreshRunID  string
}

const evidenceColumns = `
	fingerprint, display_name, normalized_name, COALESCE(date_of_birth, ''), entity_type,
	last_screened_at, valid_until,
	status, risk_level, confidence, score,
	uk_sanctions_flag, pep_flag, result_blob,
	COALESCE(last_requestor, ''), updated_at,
	review_state, COALESCE(review_outcome, ''), COALESCE(review_notes, ''),
	COALESCE(review_claimed_by, ''), review_claimed_at,
	COALESCE(review_completed_by, ''), review_completed_at,
	COALESCE(false_positive_reason, ''),
	COALESCE(screened_against_uk_hash, ''), COALESCE(screened_refresh_run_id, '')`

func scanEvidence(row interface{ Scan(...any) error }) (*domain.EvidenceRow, error) {
	var e domain.EvidenceRow
	err := row.Scan(
		&e.Fingerprint, &e.DisplayName, &e.NormalizedName, &e.DateOfBirth, &e.EntityType,
		&e.LastScreenedAt, &e.ValidUntil,
		&e.Status, &e.RiskLevel, &e.Confidence, &e.Score,
		&e.UKSanctionsFlag, &e.PEPFlag, &e.ResultBlob,
		&e.LastRequestor, &e.UpdatedAt,
		&e.ReviewState, &e.ReviewOutcome, &e.ReviewNotes,
		&e.ReviewClaimedBy, &e.ReviewClaimedAt,
		&e.ReviewCompletedBy, &e.ReviewCompletedAt,
		&e.FalsePositiveReason,
		&e.ScreenedAgainstUKHash, &e.ScreenedRefreshRunID,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetValid implements EvidenceStorage. Reading never touches validity
func (s *evidencePG) GetValid(ctx context.Context, fingerprint string, now time.Time) (*domain.EvidenceRow, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+evidenceColumns+` FROM evidence WHERE fingerprint = $1 AND valid_until > $2`,
		fingerprint, now)
	if err != nil {
		return nil, perr.FromPostgres(err, "evidence get_valid")
	}
	return firstEvidence(rows)
}

// Get implements EvidenceStorage
func (s *evidencePG) Get(ctx context.Context, fingerprint string) (*domain.EvidenceRow, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+evidenceColumns+` FROM evidence WHERE fingerprint = $1`, fingerprint)
	if err != nil {
		return nil, perr.FromPostgres(err, "evidence get")
	}
	return firstEvidence(rows)
}

func firstEvidence(rows repokit.Rows) (*domain.EvidenceRow, error) {
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, perr.FromPostgres(err, "evidence scan")
		}
		return nil, nil
	}
	e, err := scanEvidence(rows)
	if err != nil {
		return nil, perr.FromPostgres(err, "evidence scan")
	}
	return e, nil
}

// Upsert implements EvidenceStorage as a single atomic statement.
// Review fields survive a routine refresh; they reset to UNREVIEWED when the
// row moves from Cleared to a failing status, when the matched regime block
// changes, or when the caller forces a re-screen
func (s *evidencePG) Upsert(ctx context.Context, in UpsertInput) (*domain.EvidenceRow, error) {
	initialReview := domain.ReviewUnreviewed

	rows, err := s.q.Query(ctx, `
		INSERT INTO evidence (
			fingerprint, display_name, normalized_name, date_of_birth, entity_type,
			last_screened_at, valid_until,
			status, risk_level, confidence, score,
			uk_sanctions_flag, pep_flag, result_blob,
			last_requestor, updated_at, review_state,
			screened_against_uk_hash, screened_refresh_run_id
		) VALUES (
			$1, $2, $3, NULLIF($4, ''), $5,
			now(), now() + make_interval(days => $6),
			$7, $8, $9, $10,
			$11, $12, $13,
			NULLIF($14, ''), now(), $15,
			NULLIF($16, ''), NULLIF($17, '')
		)
		ON CONFLICT (fingerprint) DO UPDATE SET
			display_name     = EXCLUDED.display_name,
			normalized_name  = EXCLUDED.normalized_name,
			date_of_birth    = EXCLUDED.date_of_birth,
			entity_type      = EXCLUDED.entity_type,
			last_screened_at = EXCLUDED.last_screened_at,
			valid_until      = EXCLUDED.valid_until,
			status           = EXCLUDED.status,
			risk_level       = EXCLUDED.risk_level,
			confidence       = EXCLUDED.confidence,
			score            = EXCLUDED.score,
			uk_sanctions_flag = EXCLUDED.uk_sanctions_flag,
			pep_flag         = EXCLUDED.pep_flag,
			result_blob      = EXCLUDED.result_blob,
			last_requestor   = EXCLUDED.last_requestor,
			updated_at       = EXCLUDED.updated_at,
			screened_against_uk_hash = EXCLUDED.screened_against_uk_hash,
			screened_refresh_run_id  = EXCLUDED.screened_refresh_run_id,
			review_state = CASE
				WHEN $18 OR evidence.status IS DISTINCT FROM EXCLUDED.status
				THEN 'UNREVIEWED' ELSE evidence.review_state END,
			review_outcome = CASE
				WHEN $18 OR evidence.status IS DISTINCT FROM EXCLUDED.status
				THEN NULL ELSE evidence.review_outcome END,
			review_notes = CASE
				WHEN $18 OR evidence.status IS DISTINCT FROM EXCLUDED.status
				THEN NULL ELSE evidence.review_notes END,
			review_claimed_by = CASE
				WHEN $18 OR evidence.status IS DISTINCT FROM EXCLUDED.status
				THEN NULL ELSE evidence.review_claimed_by END,
			review_claimed_at = CASE
				WHEN $18 OR evidence.status IS DISTINCT FROM EXCLUDED.status
				THEN NULL ELSE evidence.review_claimed_at END,
			review_completed_by = CASE
				WHEN $18 OR evidence.status IS DISTINCT FROM EXCLUDED.status
				THEN NULL ELSE evidence.review_completed_by END,
			review_completed_at = CASE
				WHEN $18 OR evidence.status IS DISTINCT FROM EXCLUDED.status
				THEN NULL ELSE evidence.review_completed_at END
		RETURNING `+evidenceColumns,
		in.Fingerprint, in.DisplayName, in.NormalizedName, in.DateOfBirth, in.EntityType,
		in.ValidityDays,
		in.Status, in.RiskLevel, in.Confidence, in.Score,
		in.UKSanctionsFlag, in.PEPFlag, in.ResultBlob,
		in.Requestor, initialReview,
		in.ScreenedAgainstUKHash, in.ScreenedRefreshRunID,
		in.ForceRescreen,
	)
	if err != nil {
		return nil, perr.FromPostgres(err, "evidence upsert")
	}
	e, err := firstEvidence(rows)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, perr.DBf("evidence upsert returned no row")
	}
	return e, nil
}

// SearchByName implements EvidenceStorage with a bounded case-insensitive scan
func (s *evidencePG) SearchByName(ctx context.Context, substring string, limit int) ([]domain.EvidenceRow, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+evidenceColumns+`
		FROM evidence
		WHERE normalized_name LIKE '%' || lower($1) || '%'
		ORDER BY last_screened_at DESC
		LIMIT $2`, substring, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "evidence search")
	}
	return allEvidence(rows)
}

// MarkFalsePositive implements EvidenceStorage. Decision fields and validity
// stay untouched; only the override marker is written
func (s *evidencePG) MarkFalsePositive(ctx context.Context, fingerprint, reason string) (*domain.EvidenceRow, error) {
	rows, err := s.q.Query(ctx, `
		UPDATE evidence
		SET false_positive_reason = $2, updated_at = now()
		WHERE fingerprint = $1
		RETURNING `+evidenceColumns, fingerprint, reason)
	if err != nil {
		return nil, perr.FromPostgres(err, "evidence mark_false_positive")
	}
	return firstEvidence(rows)
}

// PurgeOlderThan implements EvidenceStorage
func (s *evidencePG) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM evidence WHERE last_screened_at < $1`, cutoff)
	if err != nil {
		return 0, perr.FromPostgres(err, "evidence purge")
	}
	return tag.RowsAffected(), nil
}

// ValidCandidates implements EvidenceStorage: currently-valid rows whose
// recorded UK hash differs from the given one or was never recorded. This is
// the conservative refresh superset
func (s *evidencePG) ValidCandidates(ctx context.Context, ukHash string, now time.Time, limit int) ([]domain.EvidenceRow, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+evidenceColumns+`
		FROM evidence
		WHERE valid_until > $1
			AND (screened_against_uk_hash IS NULL OR screened_against_uk_hash <> $2)
		ORDER BY last_screened_at ASC
		LIMIT $3`, now, ukHash, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "evidence refresh candidates")
	}
	return allEvidence(rows)
}

func allEvidence(rows repokit.Rows) ([]domain.EvidenceRow, error) {
	defer rows.Close()
	var out []domain.EvidenceRow
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, perr.FromPostgres(err, "evidence scan")
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, perr.FromPostgres(err, "evidence scan")
	}
	return out, nil
}
