// Package repo persists refresh runs and the mirrored watchlist
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"opscreen/internal/core/watchlist"
	"opscreen/internal/modkit/repokit"
	perr "opscreen/internal/platform/errors"
	screendom "opscreen/internal/services/screening/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the refresh repository
type Storage interface {
	LatestRun(ctx context.Context) (*screendom.RefreshRun, error)
	InsertRun(ctx context.Context, run screendom.RefreshRun) error
	SyncEntries(ctx context.Context, rows []watchlist.Row) (int64, error)
}

// LatestRun implements Storage, nil when no run was ever recorded
func (s *pg) LatestRun(ctx context.Context) (*screendom.RefreshRun, error) {
	rows, err := s.q.Query(ctx, `
		SELECT run_id, ran_at, uk_hash, COALESCE(prev_uk_hash, ''), uk_row_count,
			delta_added, delta_removed, delta_changed,
			candidate_count, queued_count, reused_count, already_pending_count, failed_count,
			uk_index
		FROM refresh_runs
		ORDER BY ran_at DESC
		LIMIT 1`)
	if err != nil {
		return nil, perr.FromPostgres(err, "refresh latest run")
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}

	var run screendom.RefreshRun
	var idx []byte
	if err := rows.Scan(
		&run.RunID, &run.RanAt, &run.UKHash, &run.PrevUKHash, &run.UKRowCount,
		&run.DeltaAdded, &run.DeltaRemoved, &run.DeltaChanged,
		&run.CandidateCount, &run.QueuedCount, &run.ReusedCount,
		&run.AlreadyPendingCount, &run.FailedCount,
		&idx,
	); err != nil {
		return nil, perr.FromPostgres(err, "refresh run scan")
	}
	if len(idx) > 0 {
		_ = json.Unmarshal(idx, &run.UKIndex)
	}
	return &run, nil
}

// InsertRun implements Storage. The UK index rides along so the next run can
// compute per-row deltas without re-reading the prior snapshot
func (s *pg) InsertRun(ctx context.Context, run screendom.RefreshRun) error {
	idx, err := json.Marshal(run.UKIndex)
	if err != nil {
		return perr.JSONErrf("encode uk index: %v", err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO refresh_runs
			(run_id, ran_at, uk_hash, prev_uk_hash, uk_row_count,
			delta_added, delta_removed, delta_changed,
			candidate_count, queued_count, reused_count, already_pending_count, failed_count,
			uk_index)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		run.RunID, run.RanAt, run.UKHash, run.PrevUKHash, run.UKRowCount,
		run.DeltaAdded, run.DeltaRemoved, run.DeltaChanged,
		run.CandidateCount, run.QueuedCount, run.ReusedCount,
		run.AlreadyPendingCount, run.FailedCount,
		idx,
	)
	if err != nil {
		return perr.FromPostgres(err, "refresh run insert")
	}
	return nil
}

// SyncEntries implements Storage: replaces the mirrored watchlist table with
// the current snapshot in insert batches
func (s *pg) SyncEntries(ctx context.Context, rows []watchlist.Row) (int64, error) {
	if _, err := s.q.Exec(ctx, `TRUNCATE watchlist_entries`); err != nil {
		return 0, perr.FromPostgres(err, "watchlist truncate")
	}

	const batch = 500
	var total int64
	for start := 0; start < len(rows); start += batch {
		end := start + batch
		if end > len(rows) {
			end = len(rows)
		}
		n, err := s.insertBatch(ctx, rows[start:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *pg) insertBatch(ctx context.Context, rows []watchlist.Row) (int64, error) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO watchlist_entries
		(id, schema_class, name, aliases, birth_date, countries, position,
		topics, dataset, program_ids, sanctions, source_type) VALUES `)

	args := make([]any, 0, len(rows)*12)
	for i, r := range rows {
		if i > 0 {
			sb.WriteByte(',')
		}
		base := i*12 + 1
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base, base+1, base+2, base+3, base+4, base+5,
			base+6, base+7, base+8, base+9, base+10, base+11)
		args = append(args,
			r.ID, r.Schema, r.Name, strings.Join(r.Aliases, "|"), r.BirthDate,
			r.Countries, r.Position, r.Topics, r.Dataset, r.ProgramIDs,
			r.Sanctions, r.SourceType,
		)
	}
	sb.WriteString(` ON CONFLICT (id, source_type) DO NOTHING`)

	tag, err := s.q.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, perr.FromPostgres(err, "watchlist batch insert")
	}
	return tag.RowsAffected(), nil
}
