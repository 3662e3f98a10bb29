// Package risk implements RiskScorer and FindingClassifier: turning the
// facts accumulated by a screening into graded Findings and a single
// overall risk score and recommendation.
package risk

import (
	"time"

	"github.com/elile/screening-core/internal/investigation"
)

// Level is the coarse risk band a numeric score maps to.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelModerate Level = "MODERATE"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Recommendation is the screening's final disposition.
type Recommendation string

const (
	RecommendProceed            Recommendation = "PROCEED"
	RecommendProceedWithCaution Recommendation = "PROCEED_WITH_CAUTION"
	RecommendReviewRequired     Recommendation = "REVIEW_REQUIRED"
	RecommendDoNotProceed       Recommendation = "DO_NOT_PROCEED"
)

var severityBase = map[investigation.FindingSeverity]float64{
	investigation.FindingLow:      10,
	investigation.FindingMedium:   25,
	investigation.FindingHigh:     50,
	investigation.FindingCritical: 75,
}

var categoryWeight = map[investigation.FindingCategory]float64{
	investigation.CategoryCriminal:     1.5,
	investigation.CategoryRegulatory:   1.3,
	investigation.CategoryVerification: 1.2,
	investigation.CategoryFinancial:    1.0,
	investigation.CategoryBehavioral:   1.0,
	investigation.CategoryNetwork:      0.9,
	investigation.CategoryReputation:   0.8,
}

const defaultRelevance = 0.5

// ScoredFinding pairs a Finding with its computed numeric score so
// callers can sort, filter, or audit individual contributions.
type ScoredFinding struct {
	Finding investigation.Finding
	Score   float64
}

// Result is the output of scoring a full batch of findings: the
// individual scores, the per-category breakdown, the overall 0-100
// score, its band, and the resulting recommendation.
type Result struct {
	Findings        []ScoredFinding
	CategoryScores  map[investigation.FindingCategory]float64
	OverallScore    int
	Level           Level
	Recommendation  Recommendation
}

// Scorer is the RiskScorer.
type Scorer struct {
	now func() time.Time
}

func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// recencyFactor grades how much a finding's age should discount its
// weight: recent findings matter more than decade-old ones.
func recencyFactor(findingDate *time.Time, now time.Time) float64 {
	if findingDate == nil {
		return 0.8
	}
	age := now.Sub(*findingDate)
	years := age.Hours() / (24 * 365)
	switch {
	case years <= 1:
		return 1.0
	case years <= 3:
		return 0.9
	case years <= 7:
		return 0.7
	default:
		return 0.5
	}
}

// ScoreFinding computes one finding's raw contribution to its category
// score: severity_base * recency_factor * confidence * corroboration_bonus
// * relevance. Category weighting is applied afterward, across the
// category total, not per finding.
func (s *Scorer) ScoreFinding(f investigation.Finding) float64 {
	base, ok := severityBase[f.Severity]
	if !ok {
		base = severityBase[investigation.FindingMedium]
	}

	recency := recencyFactor(f.FindingDate, s.now())

	corroborationBonus := 1.0
	if f.Corroborated {
		corroborationBonus = 1.2
	}

	relevance := f.RelevanceToRole
	if relevance <= 0 {
		relevance = defaultRelevance
	}

	return base * recency * f.Confidence * corroborationBonus * relevance
}

// levelFor maps an aggregate score onto its band.
func levelFor(score float64) Level {
	switch {
	case score < 26:
		return LevelLow
	case score <= 50:
		return LevelModerate
	case score <= 75:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// recommendationFor applies the final decision rule: any critical
// finding, or an aggregate score that itself lands in CRITICAL, blocks
// the screening outright; HIGH requires human review; MODERATE asks for
// caution; anything else proceeds cleanly.
func recommendationFor(level Level, findings []ScoredFinding) Recommendation {
	for _, sf := range findings {
		if sf.Finding.Severity == investigation.FindingCritical {
			return RecommendDoNotProceed
		}
	}
	switch level {
	case LevelCritical:
		return RecommendDoNotProceed
	case LevelHigh:
		return RecommendReviewRequired
	case LevelModerate:
		return RecommendProceedWithCaution
	default:
		return RecommendProceed
	}
}

// Score scores every finding, clamps each category's running total to
// [0, 100], then takes the category-weighted average as the overall
// score (truncated to an int and clamped to [0, 100]) before deriving
// the level and recommendation. Applies the same two-pass
// per-category-then-weighted-average aggregation rather than a flat
// sum, so one noisy category can't single-handedly saturate the score.
func (s *Scorer) Score(findings []investigation.Finding) Result {
	scored := make([]ScoredFinding, len(findings))
	categoryTotals := make(map[investigation.FindingCategory]float64)
	for i, f := range findings {
		sc := s.ScoreFinding(f)
		scored[i] = ScoredFinding{Finding: f, Score: sc}
		categoryTotals[f.Category] += sc
	}

	categoryScores := make(map[investigation.FindingCategory]float64, len(categoryTotals))
	var weightedSum, weightTotal float64
	for category, total := range categoryTotals {
		clamped := total
		if clamped > 100 {
			clamped = 100
		}
		if clamped < 0 {
			clamped = 0
		}
		categoryScores[category] = clamped

		weight, ok := categoryWeight[category]
		if !ok {
			weight = 1.0
		}
		weightedSum += clamped * weight
		weightTotal += weight
	}

	var overall float64
	if weightTotal > 0 {
		overall = weightedSum / weightTotal
	}
	overallInt := int(overall)
	if overallInt > 100 {
		overallInt = 100
	}
	if overallInt < 0 {
		overallInt = 0
	}

	level := levelFor(float64(overallInt))
	return Result{
		Findings:       scored,
		CategoryScores: categoryScores,
		OverallScore:   overallInt,
		Level:          level,
		Recommendation: recommendationFor(level, scored),
	}
}
