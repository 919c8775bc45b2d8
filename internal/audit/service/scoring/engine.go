// Package scoring computes an audit run's final score against its template
// maxima and evaluates it against the configured threshold bands.
package scoring

import (
	"context"
	"fmt"
	"math"

	"auditflow/internal/audit/ports"
	"auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
)

// Engine keeps the scoring rules centralized and testable.
type Engine struct {
	checklists ports.ChecklistStore
	thresholds ports.ThresholdStore
}

func NewEngine(checklists ports.ChecklistStore, thresholds ports.ThresholdStore) (*Engine, error) {
	if checklists == nil {
		return nil, fmt.Errorf("checklist store is required")
	}
	if thresholds == nil {
		return nil, fmt.Errorf("threshold store is required")
	}
	return &Engine{checklists: checklists, thresholds: thresholds}, nil
}

// Summary is the score breakdown for one run.
type Summary struct {
	ActualSum   float64 `json:"actual_sum"`
	MaxSum      float64 `json:"max_sum"`
	Final       float64 `json:"final"`
	TotalItems  int     `json:"total_items"`
	ScoredItems int     `json:"scored_items"`
}

// Unscored returns how many items still lack a recorded score.
func (s Summary) Unscored() int { return s.TotalItems - s.ScoredItems }

// CalculateScore sums recorded scores and template maxima across the run.
// Final is actual/max scaled to 5 and rounded to two decimals, or 0 when no
// maxima exist.
func (e *Engine) CalculateScore(ctx context.Context, processCode domain.ProcessCode) (Summary, error) {
	items, err := e.checklists.ListByProcess(ctx, processCode)
	if err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "list checklist items")
	}
	var sum Summary
	for _, item := range items {
		sum.TotalItems++
		sum.MaxSum += item.MaxScore
		if item.IsScored() {
			sum.ScoredItems++
			sum.ActualSum += *item.Score
		}
	}
	if sum.MaxSum > 0 {
		sum.Final = round2(sum.ActualSum / sum.MaxSum * 5.0)
	}
	return sum, nil
}

// CheckThreshold returns the verdict of the first ascending band whose
// [min, max) range contains the score. A score no band covers is a
// configuration error and fails loudly rather than defaulting to a verdict.
func (e *Engine) CheckThreshold(ctx context.Context, auditType domain.AuditType, score float64) (domain.Verdict, error) {
	bands, err := e.thresholds.ListBands(ctx, auditType)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "load threshold bands")
	}
	if len(bands) == 0 {
		return "", dErrors.Newf(dErrors.CodeInvariantViolation,
			"no threshold bands configured for audit type %s", auditType)
	}
	for _, band := range bands {
		if band.Contains(score) {
			return band.Verdict, nil
		}
	}
	return "", dErrors.Newf(dErrors.CodeInvariantViolation,
		"score %.2f matches no threshold band for audit type %s", score, auditType)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
