package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elile/screening-core/internal/investigation"
)

func TestScoreFinding_RecentCriminalFindingScoresHigh(t *testing.T) {
	s := NewScorer()
	recent := time.Now().Add(-30 * 24 * time.Hour)
	finding := investigation.Finding{
		Category: investigation.CategoryCriminal, Severity: investigation.FindingHigh,
		FindingDate: &recent, Confidence: 0.9, Corroborated: true, RelevanceToRole: 1.0,
	}
	score := s.ScoreFinding(finding)
	// 50 * 1.0 * 0.9 * 1.2 * 1.0 = 54; category weight applies later at
	// the aggregate step, not inside ScoreFinding.
	assert.InDelta(t, 54.0, score, 1.0)
}

func TestScoreFinding_OldFindingDiscountedByRecency(t *testing.T) {
	s := NewScorer()
	old := time.Now().Add(-10 * 365 * 24 * time.Hour)
	finding := investigation.Finding{
		Category: investigation.CategoryCriminal, Severity: investigation.FindingHigh,
		FindingDate: &old, Confidence: 0.9, RelevanceToRole: 1.0,
	}
	score := s.ScoreFinding(finding)
	// 50 * 0.5 * 0.9 * 1.0 * 1.0 = 22.5
	assert.InDelta(t, 22.5, score, 0.6)
}

func TestScore_CriticalFindingForcesDoNotProceed(t *testing.T) {
	s := NewScorer()
	recent := time.Now()
	findings := []investigation.Finding{
		{Category: investigation.CategoryRegulatory, Severity: investigation.FindingCritical,
			FindingDate: &recent, Confidence: 1.0, RelevanceToRole: 1.0},
	}
	result := s.Score(findings)
	require.Equal(t, RecommendDoNotProceed, result.Recommendation)
}

func TestScore_NoFindingsRecommendsProceed(t *testing.T) {
	s := NewScorer()
	result := s.Score(nil)
	assert.Equal(t, RecommendProceed, result.Recommendation)
	assert.Equal(t, LevelLow, result.Level)
}
