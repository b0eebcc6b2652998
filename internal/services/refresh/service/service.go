// Package service implements the watchlist refresh coordinator
package service

import (
	"context"
	"time"

	"opscreen/internal/core/watchlist"
	"opscreen/internal/modkit/repokit"
	perr "opscreen/internal/platform/errors"
	"opscreen/internal/platform/logger"
	pnet "opscreen/internal/platform/net"
	"opscreen/internal/platform/store"
	auditdom "opscreen/internal/services/audit/domain"
	"opscreen/internal/services/refresh/domain"
	"opscreen/internal/services/refresh/repo"
	screendom "opscreen/internal/services/screening/domain"
	screenrepo "opscreen/internal/services/screening/repo"

	"github.com/google/uuid"
)

// refreshLockKey serializes concurrent coordinator runs
const refreshLockKey int64 = 0x5ec2ee11

// Config for the refresh service
type Config struct {
	CandidateLimit int
}

// Service drives one refresh cycle: download, reload, delta, targeted
// re-screen enqueue, run persistence
type Service struct {
	tx       store.TxRunner
	runs     repokit.Binder[repo.Storage]
	evidence repokit.Binder[screenrepo.EvidenceStorage]
	lists    *watchlist.Provider
	enq      screendom.EnqueuerPort
	audit    auditdom.SinkPort
	fetch    *Fetcher
	cfg      Config
}

// New constructs the refresh service
func New(
	tx store.TxRunner,
	lists *watchlist.Provider,
	enq screendom.EnqueuerPort,
	audit auditdom.SinkPort,
	fetch *Fetcher,
	cfg Config,
) *Service {
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 10000
	}
	return &Service{
		tx:       tx,
		runs:     repo.NewPG(),
		evidence: screenrepo.NewEvidencePG(),
		lists:    lists,
		enq:      enq,
		audit:    audit,
		fetch:    fetch,
		cfg:      cfg,
	}
}

// Run executes one refresh cycle. Concurrent invocations are serialized by a
// session advisory lock; the loser reports busy instead of waiting
func (s *Service) Run(ctx context.Context, in domain.RefreshInput, actor string) (domain.RefreshOutput, error) {
	if s.tx == nil {
		return domain.RefreshOutput{}, perr.Unavailablef("persistent storage not configured")
	}
	includePEPs := in.IncludePEPs == nil || *in.IncludePEPs
	syncPG := in.SyncPostgres == nil || *in.SyncPostgres

	var out domain.RefreshOutput
	ran, err := store.RunSerialized(ctx, s.tx, refreshLockKey, func(ctx context.Context, _ store.RowQuerier) error {
		var err error
		out, err = s.cycle(ctx, includePEPs, syncPG, actor)
		return err
	})
	if err != nil {
		return domain.RefreshOutput{}, err
	}
	if !ran {
		return domain.RefreshOutput{}, perr.Conflictf("a refresh run is already in progress")
	}
	return out, nil
}

func (s *Service) cycle(ctx context.Context, includePEPs, syncPG bool, actor string) (domain.RefreshOutput, error) {
	log := logger.Named("refresh")

	if err := s.fetch.Download(ctx, includePEPs); err != nil {
		return domain.RefreshOutput{}, err
	}
	snap, err := s.lists.Reload()
	if err != nil {
		return domain.RefreshOutput{}, err
	}

	var synced int64
	if syncPG {
		synced, err = s.runs.Bind(s.tx).SyncEntries(ctx, append(snap.Sanctions(), snap.PEPs()...))
		if err != nil {
			return domain.RefreshOutput{}, err
		}
	}

	prev, err := s.runs.Bind(s.tx).LatestRun(ctx)
	if err != nil {
		return domain.RefreshOutput{}, err
	}

	out := domain.RefreshOutput{
		Status:         "ok",
		PostgresSynced: syncPG,
		PostgresRows:   synced,
		RefreshRun: domain.RunOutput{
			UKHash: snap.UKHash(),
		},
	}

	// identical UK content: skip the enumeration entirely
	if prev != nil && prev.UKHash == snap.UKHash() {
		out.RefreshRun.RunID = prev.RunID
		log.Info().Str("uk_hash", snap.UKHash()).Msg("uk hash unchanged, no re-screen")
		return out, nil
	}

	var prevIndex map[string]string
	var prevHash string
	if prev != nil {
		prevIndex = prev.UKIndex
		prevHash = prev.UKHash
	}
	delta := watchlist.DiffUK(prevIndex, snap.UKIndex())

	run := screendom.RefreshRun{
		RunID:        uuid.NewString(),
		RanAt:        time.Now().UTC(),
		UKHash:       snap.UKHash(),
		PrevUKHash:   prevHash,
		UKRowCount:   snap.UKRowCount(),
		DeltaAdded:   delta.Added,
		DeltaRemoved: delta.Removed,
		DeltaChanged: delta.Changed,
		UKIndex:      snap.UKIndex(),
	}

	s.rescreen(ctx, &run)

	if err := s.runs.Bind(s.tx).InsertRun(ctx, run); err != nil {
		return domain.RefreshOutput{}, err
	}

	detail := map[string]any{
		"uk_hash":         run.UKHash,
		"delta_added":     run.DeltaAdded,
		"delta_removed":   run.DeltaRemoved,
		"delta_changed":   run.DeltaChanged,
		"candidate_count": run.CandidateCount,
		"queued_count":    run.QueuedCount,
	}
	if rc := pnet.CorrelationID(ctx); rc != "" {
		detail["request_correlation_id"] = rc
	}
	s.audit.Emit(ctx, auditdom.Event{
		Actor:         actor,
		Action:        auditdom.ActionRefreshRun,
		Outcome:       "uk_changed",
		CorrelationID: run.RunID,
		Detail:        detail,
	})

	out.RefreshRun = domain.RunOutput{
		RunID:     run.RunID,
		UKHash:    run.UKHash,
		UKChanged: true,
		Delta: domain.DeltaOutput{
			Added:   run.DeltaAdded,
			Removed: run.DeltaRemoved,
			Changed: run.DeltaChanged,
		},
		Rescreen: domain.RescreenOutput{
			Candidates:     run.CandidateCount,
			Queued:         run.QueuedCount,
			AlreadyPending: run.AlreadyPendingCount,
			Reused:         run.ReusedCount,
			Failed:         run.FailedCount,
		},
	}
	return out, nil
}

// rescreen enqueues a forced re-screen for every currently-valid row whose
// recorded UK hash differs from the new snapshot
func (s *Service) rescreen(ctx context.Context, run *screendom.RefreshRun) {
	log := logger.Named("refresh")

	candidates, err := s.evidence.Bind(s.tx).ValidCandidates(ctx, run.UKHash, time.Now().UTC(), s.cfg.CandidateLimit)
	if err != nil {
		log.Warn().Err(err).Msg("candidate enumeration failed")
		return
	}
	run.CandidateCount = len(candidates)

	for _, c := range candidates {
		out, err := s.enq.Enqueue(ctx, screendom.ScreenInput{
			Name:              c.DisplayName,
			DOB:               c.DateOfBirth,
			EntityType:        c.EntityType,
			Requestor:         auditdom.SystemActor,
			ReasonForCheck:    "Periodic Re-Screen",
			BusinessReference: "refresh:" + run.RunID,
		}, run.RunID, true)
		if err != nil {
			run.FailedCount++
			continue
		}
		switch out.Kind {
		case screendom.EnqueueQueued:
			run.QueuedCount++
		case screendom.EnqueueAlreadyPending:
			run.AlreadyPendingCount++
		case screendom.EnqueueReused:
			run.ReusedCount++
		}
	}
}

