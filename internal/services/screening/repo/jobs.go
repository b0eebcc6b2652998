package repo

import (
	"context"
	"time"

	"opscreen/internal/modkit/repokit"
	perr "opscreen/internal/platform/errors"
	"opscreen/internal/services/screening/domain"
)

type (
	jobsPG     struct{ q repokit.Queryer }
	jobsBinder struct{}
)

// NewJobsPG constructs a repo binder for the jobs table
func NewJobsPG() repokit.Binder[JobStorage] { return jobsBinder{} }

// Bind implements repokit.Binder
func (jobsBinder) Bind(q repokit.Queryer) JobStorage { return &jobsPG{q: q} }

// JobStorage defines the job queue repository.
// Enqueue semantics (idempotency, the valid-evidence short-circuit) live in
// the service; this layer exposes the atomic primitives
type JobStorage interface {
	Insert(ctx context.Context, j domain.Job) error
	InflightForFingerprint(ctx context.Context, fingerprint string) (jobID string, err error)
	PendingPlusRunning(ctx context.Context) (int, error)
	ClaimOne(ctx context.Context) (*domain.Job, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID, errorMessage string) error
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	PurgeTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

const jobColumns = `
	id, fingerprint, name, COALESCE(dob, ''), entity_type,
	requestor, reason, COALESCE(business_reference, ''),
	COALESCE(refresh_run_id, ''), force_rescreen,
	status, created_at, started_at, finished_at, COALESCE(error_message, '')`

func scanJob(row interface{ Scan(...any) error }) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.Fingerprint, &j.Name, &j.DOB, &j.EntityType,
		&j.Requestor, &j.Reason, &j.BusinessReference,
		&j.RefreshRunID, &j.ForceRescreen,
		&j.Status, &j.CreatedAt, &j.StartedAt, &j.FinishedAt, &j.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Insert implements JobStorage. The partial unique index on in-flight
// fingerprints backs the one-inflight-per-fingerprint invariant; a concurrent
// duplicate surfaces as a DuplicateKey error
func (s *jobsPG) Insert(ctx context.Context, j domain.Job) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO jobs
			(id, fingerprint, name, dob, entity_type, requestor, reason,
			business_reference, refresh_run_id, force_rescreen, status, created_at)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,NULLIF($8,''),NULLIF($9,''),$10,'pending',now())`,
		j.ID, j.Fingerprint, j.Name, j.DOB, j.EntityType, j.Requestor, j.Reason,
		j.BusinessReference, j.RefreshRunID, j.ForceRescreen,
	)
	if err != nil {
		return perr.FromPostgres(err, "job insert")
	}
	return nil
}

// InflightForFingerprint implements JobStorage, "" when no job is in flight
func (s *jobsPG) InflightForFingerprint(ctx context.Context, fingerprint string) (string, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id::text FROM jobs
		WHERE fingerprint = $1 AND status IN ('pending', 'running')
		LIMIT 1`, fingerprint)
	if err != nil {
		return "", perr.FromPostgres(err, "job inflight check")
	}
	defer rows.Close()
	if !rows.Next() {
		return "", rows.Err()
	}
	var id string
	if err := rows.Scan(&id); err != nil {
		return "", perr.FromPostgres(err, "job inflight scan")
	}
	return id, nil
}

// PendingPlusRunning implements JobStorage
func (s *jobsPG) PendingPlusRunning(ctx context.Context) (int, error) {
	rows, err := s.q.Query(ctx, `SELECT COUNT(*) FROM jobs WHERE status IN ('pending', 'running')`)
	if err != nil {
		return 0, perr.FromPostgres(err, "job backlog count")
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, perr.FromPostgres(err, "job backlog scan")
		}
	}
	return n, rows.Err()
}

// ClaimOne implements JobStorage: oldest pending row, skipping rows locked by
// concurrent claimers, transitioned to running in the same statement
func (s *jobsPG) ClaimOne(ctx context.Context) (*domain.Job, error) {
	rows, err := s.q.Query(ctx, `
		UPDATE jobs SET status = 'running', started_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending'
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+jobColumns)
	if err != nil {
		return nil, perr.FromPostgres(err, "job claim")
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	j, err := scanJob(rows)
	if err != nil {
		return nil, perr.FromPostgres(err, "job claim scan")
	}
	return j, nil
}

// Complete implements JobStorage; rejects transitions not from running
func (s *jobsPG) Complete(ctx context.Context, jobID string) error {
	return s.terminal(ctx, jobID, "completed", "")
}

// Fail implements JobStorage; rejects transitions not from running
func (s *jobsPG) Fail(ctx context.Context, jobID, errorMessage string) error {
	return s.terminal(ctx, jobID, "failed", errorMessage)
}

func (s *jobsPG) terminal(ctx context.Context, jobID, status, errorMessage string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE jobs
		SET status = $2, finished_at = now(), error_message = NULLIF($3, '')
		WHERE id = $1 AND status = 'running'`,
		jobID, status, errorMessage)
	if err != nil {
		return perr.FromPostgres(err, "job terminal transition")
	}
	if tag.RowsAffected() == 0 {
		return perr.Conflictf("job %s is not running", jobID)
	}
	return nil
}

// Get implements JobStorage
func (s *jobsPG) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	rows, err := s.q.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return nil, perr.FromPostgres(err, "job get")
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	j, err := scanJob(rows)
	if err != nil {
		return nil, perr.FromPostgres(err, "job get scan")
	}
	return j, nil
}

// PurgeTerminalOlderThan implements JobStorage
func (s *jobsPG) PurgeTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		DELETE FROM jobs
		WHERE status IN ('completed', 'failed') AND finished_at < $1`, cutoff)
	if err != nil {
		return 0, perr.FromPostgres(err, "job purge")
	}
	return tag.RowsAffected(), nil
}
