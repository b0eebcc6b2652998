package service

import (
	"encoding/json"
	"strings"
	"time"

	"opscreen/internal/core/matcher"
	"opscreen/internal/services/screening/domain"
)

// buildResult renders a matcher decision as the frozen wire body
func buildResult(d matcher.Decision, fp string, at time.Time) domain.ScreenResult {
	source := strings.Join(d.Sources, ", ")
	if source == "" {
		source = "Open Sanctions"
	}
	top := d.TopMatches
	if top == nil {
		top = []matcher.TopMatch{}
	}
	return domain.ScreenResult{
		SanctionsName: d.MatchedName,
		BirthDate:     d.MatchedDOB,
		Regime:        strings.Join(d.Regimes, ", "),
		Position:      d.Position,
		Topics:        d.Topics,
		IsPEP:         d.PEPFlag,
		IsSanctioned:  d.Status == matcher.StatusFailSanction,
		Confidence:    d.Confidence,
		Score:         float64(d.Score),
		RiskLevel:     d.RiskLevel,
		TopMatches:    top,
		MatchFound:    d.Status != matcher.StatusCleared,
		CheckSummary: domain.CheckSummary{
			Status: d.Status,
			Source: source,
			Date:   at.UTC().Format("2006-01-02"),
		},
		EntityKey:       fp,
		UKSanctionsFlag: d.UKSanctionsFlag,
	}
}

// resultFromRow restores the wire body from a stored evidence row. Rows
// written by older builds may lack a blob; decision fields reconstruct a
// minimal body in that case
func resultFromRow(e *domain.EvidenceRow) *domain.ScreenResult {
	if len(e.ResultBlob) > 0 {
		var res domain.ScreenResult
		if err := json.Unmarshal(e.ResultBlob, &res); err == nil {
			if res.EntityKey == "" {
				res.EntityKey = e.Fingerprint
			}
			res.UKSanctionsFlag = e.UKSanctionsFlag
			return &res
		}
	}
	return &domain.ScreenResult{
		IsPEP:        e.PEPFlag,
		IsSanctioned: e.Status == domain.StatusFailSanction,
		Confidence:   e.Confidence,
		Score:        e.Score,
		RiskLevel:    e.RiskLevel,
		TopMatches:   []matcher.TopMatch{},
		MatchFound:   e.Status != domain.StatusCleared,
		CheckSummary: domain.CheckSummary{
			Status: e.Status,
			Source: "Open Sanctions",
			Date:   e.LastScreenedAt.UTC().Format("2006-01-02"),
		},
		EntityKey:       e.Fingerprint,
		UKSanctionsFlag: e.UKSanctionsFlag,
	}
}
