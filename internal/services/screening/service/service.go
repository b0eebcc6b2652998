// Package service implements the screening dispatcher and worker
package service

import (
	"context"
	"encoding/json"
	"time"

	"opscreen/internal/core/entitykey"
	"opscreen/internal/core/matcher"
	"opscreen/internal/core/watchlist"
	"opscreen/internal/modkit/repokit"
	perr "opscreen/internal/platform/errors"
	"opscreen/internal/platform/logger"
	pnet "opscreen/internal/platform/net"
	auditdom "opscreen/internal/services/audit/domain"
	"opscreen/internal/services/screening/domain"
	"opscreen/internal/services/screening/repo"
)

// Config for the screening service
type Config struct {
	SyncThreshold           int
	ValidityDays            int
	MatcherDeadlineSeconds  int
	WorkerPollSeconds       int
	CleanupEveryNLoops      int
	JobRetentionDays        int
	EvidenceRetentionMonths int // 0 means never purge
	SearchLimit             int
}

// Defaults fills unset knobs with their documented values
func (c Config) Defaults() Config {
	if c.SyncThreshold <= 0 {
		c.SyncThreshold = 5
	}
	if c.ValidityDays <= 0 {
		c.ValidityDays = 365
	}
	if c.MatcherDeadlineSeconds <= 0 {
		c.MatcherDeadlineSeconds = 30
	}
	if c.WorkerPollSeconds < 2 {
		c.WorkerPollSeconds = 5
	}
	if c.CleanupEveryNLoops <= 0 {
		c.CleanupEveryNLoops = 50
	}
	if c.JobRetentionDays <= 0 {
		c.JobRetentionDays = 7
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 50
	}
	return c
}

// Service implements domain.DispatcherPort and domain.EnqueuerPort.
// With a nil TxRunner it degrades to inline-only mode: every request runs the
// matcher synchronously and nothing is cached or queued
type Service struct {
	tx       repokit.TxRunner
	evidence repokit.Binder[repo.EvidenceStorage]
	jobs     repokit.Binder[repo.JobStorage]

	match *matcher.Matcher
	lists *watchlist.Provider
	audit auditdom.SinkPort

	cfg Config
}

// New constructs the screening service
func New(
	tx repokit.TxRunner,
	m *matcher.Matcher,
	lists *watchlist.Provider,
	audit auditdom.SinkPort,
	cfg Config,
) *Service {
	if audit == nil {
		panic("screening: nil audit sink")
	}
	return &Service{
		tx:       tx,
		evidence: repo.NewEvidencePG(),
		jobs:     repo.NewJobsPG(),
		match:    m,
		lists:    lists,
		audit:    audit,
		cfg:      cfg.Defaults(),
	}
}

// Persistent reports whether the cache and queue are available
func (s *Service) Persistent() bool { return s.tx != nil }

// Screen implements domain.DispatcherPort
func (s *Service) Screen(ctx context.Context, in domain.ScreenInput, actor string) (domain.ScreenOutcome, error) {
	fp, err := s.validate(ctx, &in, actor)
	if err != nil {
		return domain.ScreenOutcome{}, err
	}

	// inline-only mode: no cache, no queue
	if s.tx == nil {
		res, err := s.runMatcher(ctx, in, fp)
		if err != nil {
			return domain.ScreenOutcome{}, err
		}
		s.emit(ctx, actor, auditdom.ActionSynchronous, fp, in, "inline")
		return domain.ScreenOutcome{HTTPStatus: 200, Result: res}, nil
	}

	if row, err := s.evidence.Bind(s.tx).GetValid(ctx, fp, time.Now().UTC()); err != nil {
		return domain.ScreenOutcome{}, err
	} else if row != nil {
		s.emit(ctx, actor, auditdom.ActionCacheReuse, fp, in, row.Status)
		return domain.ScreenOutcome{HTTPStatus: 200, Result: resultFromRow(row)}, nil
	}

	backlog, err := s.jobs.Bind(s.tx).PendingPlusRunning(ctx)
	if err != nil {
		return domain.ScreenOutcome{}, err
	}

	if backlog < s.cfg.SyncThreshold {
		res, err := s.screenAndStore(ctx, in, fp, "")
		if err != nil {
			return domain.ScreenOutcome{}, err
		}
		s.emit(ctx, actor, auditdom.ActionSynchronous, fp, in, res.CheckSummary.Status)
		return domain.ScreenOutcome{HTTPStatus: 200, Result: res}, nil
	}

	out, err := s.Enqueue(ctx, in, "", false)
	if err != nil {
		return domain.ScreenOutcome{}, err
	}
	switch out.Kind {
	case domain.EnqueueReused:
		// a valid row landed between the cache miss and the enqueue check
		s.emit(ctx, actor, auditdom.ActionCacheReuse, fp, in, out.Evidence.Status)
		return domain.ScreenOutcome{HTTPStatus: 200, Result: resultFromRow(out.Evidence)}, nil
	default:
		s.emit(ctx, actor, auditdom.ActionQueued, fp, in, out.Kind)
		return domain.ScreenOutcome{HTTPStatus: 202, Queued: &domain.QueuedOutput{
			JobID:    out.JobID,
			Status:   out.Kind,
			Location: "/api/v1/opcheck/jobs/" + out.JobID,
		}}, nil
	}
}

// validate rejects malformed submissions and derives the fingerprint
func (s *Service) validate(ctx context.Context, in *domain.ScreenInput, actor string) (string, error) {
	reject := func(err error) (string, error) {
		s.audit.Emit(ctx, auditdom.Event{
			Actor:         actor,
			Action:        auditdom.ActionRejected,
			Reason:        in.ReasonForCheck,
			Outcome:       err.Error(),
			CorrelationID: pnet.CorrelationID(ctx),
		})
		return "", err
	}

	if !domain.ValidReason(in.ReasonForCheck) {
		return reject(perr.WithField(
			perr.InvalidArgf("reason_for_check must be one of the enumerated set"), "reason_for_check"))
	}
	in.EntityType = entitykey.NormalizeEntityType(in.EntityType)
	in.DOB = entitykey.NormalizeDOB(in.DOB)

	fp, err := entitykey.Fingerprint(in.Name, in.EntityType, in.DOB)
	if err != nil {
		return reject(perr.WithField(err, "name"))
	}
	return fp, nil
}

// runMatcher invokes the matcher under its deadline
func (s *Service) runMatcher(ctx context.Context, in domain.ScreenInput, fp string) (*domain.ScreenResult, error) {
	snap, err := s.lists.Get()
	if err != nil {
		return nil, err
	}

	mctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.MatcherDeadlineSeconds)*time.Second)
	defer cancel()

	d, err := s.match.Match(mctx, snap, matcher.Subject{
		Name:       in.Name,
		DOB:        in.DOB,
		EntityType: in.EntityType,
	})
	if err != nil {
		return nil, err
	}
	res := buildResult(d, fp, time.Now().UTC())
	return &res, nil
}

// screenAndStore runs the matcher and upserts evidence outside any
// transaction; queue exclusivity prevents duplicate concurrent work
func (s *Service) screenAndStore(ctx context.Context, in domain.ScreenInput, fp, refreshRunID string) (*domain.ScreenResult, error) {
	res, err := s.runMatcher(ctx, in, fp)
	if err != nil {
		return nil, err
	}
	if _, err := s.upsert(ctx, in, fp, res, refreshRunID, refreshRunID != ""); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) upsert(
	ctx context.Context,
	in domain.ScreenInput,
	fp string,
	res *domain.ScreenResult,
	refreshRunID string,
	force bool,
) (*domain.EvidenceRow, error) {
	blob, err := json.Marshal(res)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "encode result blob")
	}

	var ukHash string
	if snap, serr := s.lists.Get(); serr == nil {
		ukHash = snap.UKHash()
	}

	return s.evidence.Bind(s.tx).Upsert(ctx, repo.UpsertInput{
		Fingerprint:    fp,
		DisplayName:    in.Name,
		NormalizedName: entitykey.NormalizeName(in.Name),
		DateOfBirth:    in.DOB,
		EntityType:     in.EntityType,

		Status:     res.CheckSummary.Status,
		RiskLevel:  res.RiskLevel,
		Confidence: res.Confidence,
		Score:      res.Score,

		UKSanctionsFlag: res.UKSanctionsFlag,
		PEPFlag:         res.IsPEP,

		ResultBlob: blob,

		Requestor:     in.Requestor,
		ValidityDays:  s.cfg.ValidityDays,
		ForceRescreen: force,

		ScreenedAgainstUKHash: ukHash,
		ScreenedRefreshRunID:  refreshRunID,
	})
}

func (s *Service) emit(ctx context.Context, actor, action, fp string, in domain.ScreenInput, outcome string) {
	s.audit.Emit(ctx, auditdom.Event{
		Actor:             actor,
		Action:            action,
		Fingerprint:       fp,
		BusinessReference: in.BusinessReference,
		Reason:            in.ReasonForCheck,
		Outcome:           outcome,
		CorrelationID:     pnet.CorrelationID(ctx),
	})
}

// Search implements domain.DispatcherPort
func (s *Service) Search(ctx context.Context, in domain.SearchInput) ([]domain.EvidenceSummary, error) {
	if s.tx == nil {
		return nil, perr.Unavailablef("persistent storage not configured")
	}
	limit := in.Limit
	if limit <= 0 || limit > s.cfg.SearchLimit {
		limit = s.cfg.SearchLimit
	}
	rows, err := s.evidence.Bind(s.tx).SearchByName(ctx, entitykey.NormalizeName(in.Query), limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EvidenceSummary, 0, len(rows))
	for i := range rows {
		out = append(out, summaryOf(&rows[i]))
	}
	s.auditRead(ctx, "", "entity_search", map[string]any{
		"query":        in.Query,
		"result_count": len(out),
	})
	return out, nil
}

// GetByKey implements domain.DispatcherPort
func (s *Service) GetByKey(ctx context.Context, entityKey string) (*domain.ScreenResult, error) {
	if s.tx == nil {
		return nil, perr.Unavailablef("persistent storage not configured")
	}
	row, err := s.evidence.Bind(s.tx).Get(ctx, entityKey)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, perr.NotFoundf("no evidence for entity key")
	}
	logger.C(ctx).Debug().Str("fingerprint", entityKey).Msg("evidence read")
	s.auditRead(ctx, entityKey, "entity_read", nil)
	return resultFromRow(row), nil
}

// auditRead records access to screened data. Reads are as much a part of the
// trail as writes; the actor comes off the request context
func (s *Service) auditRead(ctx context.Context, fp, outcome string, detail map[string]any) {
	actor := pnet.UserID(ctx)
	if actor == "" {
		actor = auditdom.SystemActor
	}
	s.audit.Emit(ctx, auditdom.Event{
		Actor:         actor,
		Action:        auditdom.ActionDataAccess,
		Fingerprint:   fp,
		Outcome:       outcome,
		CorrelationID: pnet.CorrelationID(ctx),
		Detail:        detail,
	})
}

// MarkFalsePositive implements domain.DispatcherPort. Validity is never
// extended by an override
func (s *Service) MarkFalsePositive(ctx context.Context, entityKey, reason, actor string) (domain.EvidenceSummary, error) {
	if s.tx == nil {
		return domain.EvidenceSummary{}, perr.Unavailablef("persistent storage not configured")
	}
	row, err := s.evidence.Bind(s.tx).MarkFalsePositive(ctx, entityKey, reason)
	if err != nil {
		return domain.EvidenceSummary{}, err
	}
	if row == nil {
		return domain.EvidenceSummary{}, perr.NotFoundf("no evidence for entity key")
	}
	s.audit.Emit(ctx, auditdom.Event{
		Actor:         actor,
		Action:        auditdom.ActionFalsePositive,
		Fingerprint:   entityKey,
		Reason:        reason,
		Outcome:       row.Status,
		CorrelationID: pnet.CorrelationID(ctx),
	})
	return summaryOf(row), nil
}

// GetValid implements domain.EvidenceReaderPort
func (s *Service) GetValid(ctx context.Context, fingerprint string) (*domain.EvidenceRow, error) {
	if s.tx == nil {
		return nil, nil
	}
	return s.evidence.Bind(s.tx).GetValid(ctx, fingerprint, time.Now().UTC())
}

// Get implements domain.EvidenceReaderPort
func (s *Service) Get(ctx context.Context, fingerprint string) (*domain.EvidenceRow, error) {
	if s.tx == nil {
		return nil, nil
	}
	return s.evidence.Bind(s.tx).Get(ctx, fingerprint)
}

func summaryOf(e *domain.EvidenceRow) domain.EvidenceSummary {
	return domain.EvidenceSummary{
		EntityKey:      e.Fingerprint,
		DisplayName:    e.DisplayName,
		DateOfBirth:    e.DateOfBirth,
		EntityType:     e.EntityType,
		Status:         e.Status,
		RiskLevel:      e.RiskLevel,
		Score:          e.Score,
		ReviewState:    e.ReviewState,
		LastScreenedAt: e.LastScreenedAt.UTC().Format(time.RFC3339),
		ValidUntil:     e.ValidUntil.UTC().Format(time.RFC3339),
		FalsePositive:  e.FalsePositiveReason != "",
	}
}
