package service

import (
	"context"
	"time"

	perr "opscreen/internal/platform/errors"
	"opscreen/internal/platform/logger"
	auditdom "opscreen/internal/services/audit/domain"
	"opscreen/internal/services/screening/domain"
)

// maxErrorLen bounds the stored failure message
const maxErrorLen = 500

// RunWorker claims and executes jobs until the context is canceled.
// Multiple workers may run in parallel; claim exclusivity makes that safe
func (s *Service) RunWorker(ctx context.Context) error {
	if s.tx == nil {
		return perr.Unavailablef("persistent storage not configured")
	}
	log := logger.Named("worker")
	poll := time.Duration(s.cfg.WorkerPollSeconds) * time.Second

	loops := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		loops++
		if loops%s.cfg.CleanupEveryNLoops == 0 {
			s.cleanup(ctx)
		}

		job, err := s.jobs.Bind(s.tx).ClaimOne(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("claim failed")
			if !sleepCtx(ctx, poll) {
				return ctx.Err()
			}
			continue
		}
		if job == nil {
			if !sleepCtx(ctx, poll) {
				return ctx.Err()
			}
			continue
		}
		s.executeJob(ctx, job)
	}
}

// executeJob runs one claimed job to a terminal state
func (s *Service) executeJob(ctx context.Context, job *domain.Job) {
	log := logger.Named("worker")

	// idempotency re-check: a valid row may have landed since enqueue
	if !job.ForceRescreen {
		row, err := s.evidence.Bind(s.tx).GetValid(ctx, job.Fingerprint, time.Now().UTC())
		if err == nil && row != nil {
			if cerr := s.jobs.Bind(s.tx).Complete(ctx, job.ID); cerr != nil {
				log.Warn().Err(cerr).Str("job_id", job.ID).Msg("complete after reuse failed")
			}
			s.auditJob(ctx, job, auditdom.ActionReusedByWorker, row.Status)
			return
		}
	}

	prev, _ := s.evidence.Bind(s.tx).Get(ctx, job.Fingerprint)

	in := domain.ScreenInput{
		Name:              job.Name,
		DOB:               job.DOB,
		EntityType:        job.EntityType,
		Requestor:         job.Requestor,
		ReasonForCheck:    job.Reason,
		BusinessReference: job.BusinessReference,
	}
	res, err := s.runMatcher(ctx, in, job.Fingerprint)
	if err == nil {
		_, err = s.upsert(ctx, in, job.Fingerprint, res, job.RefreshRunID, job.ForceRescreen)
	}
	if err != nil {
		if ferr := s.jobs.Bind(s.tx).Fail(ctx, job.ID, truncate(err.Error(), maxErrorLen)); ferr != nil {
			// illegal transition: log and move on
			log.Warn().Err(ferr).Str("job_id", job.ID).Msg("fail transition rejected")
		}
		s.auditJob(ctx, job, auditdom.ActionFailed, truncate(err.Error(), maxErrorLen))
		return
	}

	if cerr := s.jobs.Bind(s.tx).Complete(ctx, job.ID); cerr != nil {
		log.Warn().Err(cerr).Str("job_id", job.ID).Msg("complete transition rejected")
	}

	// the upsert wipes analyst review fields on a forced re-screen or a status
	// change; the prior outcome must survive in the trail before it goes
	if prev != nil && prev.ReviewOutcome != "" &&
		(job.ForceRescreen || prev.Status != res.CheckSummary.Status) {
		s.audit.Emit(ctx, auditdom.Event{
			Actor:             auditdom.SystemActor,
			Action:            auditdom.ActionReviewReset,
			Fingerprint:       job.Fingerprint,
			BusinessReference: job.BusinessReference,
			Outcome:           prev.ReviewOutcome,
			CorrelationID:     job.ID,
			Detail: map[string]any{
				"previous_status": prev.Status,
				"new_status":      res.CheckSummary.Status,
				"reviewed_by":     prev.ReviewCompletedBy,
				"review_notes":    prev.ReviewNotes,
			},
		})
	}
	s.auditJob(ctx, job, auditdom.ActionCompleted, transitionLabel(prev, res.CheckSummary.Status))
}

// cleanup sweeps terminal jobs and, when configured, stale evidence
func (s *Service) cleanup(ctx context.Context) {
	log := logger.Named("worker")

	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.JobRetentionDays)
	if n, err := s.jobs.Bind(s.tx).PurgeTerminalOlderThan(ctx, cutoff); err != nil {
		log.Warn().Err(err).Msg("job retention sweep failed")
	} else if n > 0 {
		log.Info().Int64("purged", n).Msg("terminal jobs purged")
	}

	if s.cfg.EvidenceRetentionMonths > 0 {
		cutoff := time.Now().UTC().AddDate(0, -s.cfg.EvidenceRetentionMonths, 0)
		if n, err := s.evidence.Bind(s.tx).PurgeOlderThan(ctx, cutoff); err != nil {
			log.Warn().Err(err).Msg("evidence retention sweep failed")
		} else if n > 0 {
			log.Info().Int64("purged", n).Msg("stale evidence purged")
		}
	}
}

func (s *Service) auditJob(ctx context.Context, job *domain.Job, action, outcome string) {
	s.audit.Emit(ctx, auditdom.Event{
		Actor:             auditdom.SystemActor,
		Action:            action,
		Fingerprint:       job.Fingerprint,
		BusinessReference: job.BusinessReference,
		Reason:            job.Reason,
		Outcome:           outcome,
		CorrelationID:     job.ID,
	})
}

// transitionLabel names the previous-to-new status movement for the audit log
func transitionLabel(prev *domain.EvidenceRow, next string) string {
	if prev == nil {
		return "new_result: " + next
	}
	switch {
	case prev.Status == next:
		return "unchanged: " + next
	case prev.Status == domain.StatusCleared:
		return "cleared_to_fail: " + prev.Status + " -> " + next
	case next == domain.StatusCleared:
		return "fail_to_cleared: " + prev.Status + " -> " + next
	default:
		return "changed: " + prev.Status + " -> " + next
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
