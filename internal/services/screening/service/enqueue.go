package service

import (
	"context"
	"time"

	"opscreen/internal/core/entitykey"
	"opscreen/internal/modkit/repokit"
	perr "opscreen/internal/platform/errors"
	"opscreen/internal/services/screening/domain"

	"github.com/google/uuid"
)

// Enqueue implements domain.EnqueuerPort as an atomic check-then-insert.
// At most one job per fingerprint is in flight; the valid-evidence check and
// the inflight check run in the same transaction as the insert
func (s *Service) Enqueue(
	ctx context.Context,
	in domain.ScreenInput,
	refreshRunID string,
	force bool,
) (domain.EnqueueOutcome, error) {
	if s.tx == nil {
		return domain.EnqueueOutcome{}, perr.Unavailablef("persistent storage not configured")
	}
	if !domain.ValidReason(in.ReasonForCheck) {
		return domain.EnqueueOutcome{}, perr.WithField(
			perr.InvalidArgf("reason_for_check must be one of the enumerated set"), "reason_for_check")
	}
	in.EntityType = entitykey.NormalizeEntityType(in.EntityType)
	in.DOB = entitykey.NormalizeDOB(in.DOB)

	fp, err := entitykey.Fingerprint(in.Name, in.EntityType, in.DOB)
	if err != nil {
		return domain.EnqueueOutcome{}, perr.WithField(err, "name")
	}

	var out domain.EnqueueOutcome
	txErr := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		if !force {
			row, err := s.evidence.Bind(q).GetValid(ctx, fp, time.Now().UTC())
			if err != nil {
				return err
			}
			if row != nil {
				out = domain.EnqueueOutcome{Kind: domain.EnqueueReused, Evidence: row}
				return nil
			}
		}

		jq := s.jobs.Bind(q)
		if inflight, err := jq.InflightForFingerprint(ctx, fp); err != nil {
			return err
		} else if inflight != "" {
			out = domain.EnqueueOutcome{Kind: domain.EnqueueAlreadyPending, JobID: inflight}
			return nil
		}

		job := domain.Job{
			ID:                uuid.NewString(),
			Fingerprint:       fp,
			Name:              in.Name,
			DOB:               in.DOB,
			EntityType:        in.EntityType,
			Requestor:         in.Requestor,
			Reason:            in.ReasonForCheck,
			BusinessReference: in.BusinessReference,
			RefreshRunID:      refreshRunID,
			ForceRescreen:     force,
		}
		if err := jq.Insert(ctx, job); err != nil {
			return err
		}
		out = domain.EnqueueOutcome{Kind: domain.EnqueueQueued, JobID: job.ID}
		return nil
	})
	if txErr != nil {
		// a concurrent enqueue can win the partial-index race; report theirs
		if perr.IsCode(txErr, perr.ErrorCodeDuplicateKey) {
			if inflight, err := s.jobs.Bind(s.tx).InflightForFingerprint(ctx, fp); err == nil && inflight != "" {
				return domain.EnqueueOutcome{Kind: domain.EnqueueAlreadyPending, JobID: inflight}, nil
			}
		}
		return domain.EnqueueOutcome{}, txErr
	}
	return out, nil
}

// PendingPlusRunning implements domain.EnqueuerPort
func (s *Service) PendingPlusRunning(ctx context.Context) (int, error) {
	if s.tx == nil {
		return 0, nil
	}
	return s.jobs.Bind(s.tx).PendingPlusRunning(ctx)
}

// JobStatus implements domain.DispatcherPort, joining the evidence result
// when the job has completed
func (s *Service) JobStatus(ctx context.Context, jobID string) (domain.JobStatusOutput, error) {
	if s.tx == nil {
		return domain.JobStatusOutput{}, perr.Unavailablef("persistent storage not configured")
	}
	if _, err := uuid.Parse(jobID); err != nil {
		return domain.JobStatusOutput{}, perr.WithField(perr.InvalidArgf("job_id must be a UUID"), "job_id")
	}

	job, err := s.jobs.Bind(s.tx).Get(ctx, jobID)
	if err != nil {
		return domain.JobStatusOutput{}, err
	}
	if job == nil {
		return domain.JobStatusOutput{}, perr.NotFoundf("unknown job id")
	}

	out := domain.JobStatusOutput{
		JobID:        job.ID,
		Status:       job.Status,
		ErrorMessage: job.ErrorMessage,
	}
	if job.Status == domain.JobCompleted {
		row, err := s.evidence.Bind(s.tx).Get(ctx, job.Fingerprint)
		if err != nil {
			return domain.JobStatusOutput{}, err
		}
		if row != nil {
			out.Result = resultFromRow(row)
		}
	}
	return out, nil
}
