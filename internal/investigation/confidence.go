package investigation

// ConfidenceScorer computes a 0.0-1.0 confidence score for one
// information type's current evidence, and rolls per-type scores up
// into a single aggregate for the overall screening, using a
// five-factor weighted formula.
type ConfidenceScorer struct{}

func NewConfidenceScorer() *ConfidenceScorer { return &ConfidenceScorer{} }

// FactorBreakdown exposes each weighted component so callers (and
// tests) can inspect why a score came out the way it did instead of
// treating confidence as an opaque number.
type FactorBreakdown struct {
	Completeness   float64
	Corroboration  float64
	QuerySuccess   float64
	FactConfidence float64
	SourceDiversity float64
	Weighted       float64
}

const (
	weightCompleteness   = 0.30
	weightCorroboration  = 0.25
	weightQuerySuccess   = 0.20
	weightFactConfidence = 0.15
	weightSourceDiversity = 0.10
)

// Score computes the weighted confidence for one information type given
// its accumulated facts and the iteration's query counts.
func (c *ConfidenceScorer) Score(infoType InfoType, facts []Fact, totalQueries, successfulQueries int) (float64, FactorBreakdown) {
	expected := ExpectedFacts[infoType]
	if expected <= 0 {
		expected = 1
	}

	completeness := minF(float64(len(facts))/float64(expected), 1.0)
	corroboration := corroborationFraction(facts)
	querySuccess := 0.0
	if totalQueries > 0 {
		querySuccess = float64(successfulQueries) / float64(totalQueries)
	}
	factConfidence := meanConfidence(facts)
	sourceDiversity := minF(float64(distinctSources(facts))/3.0, 1.0)

	weighted := completeness*weightCompleteness +
		corroboration*weightCorroboration +
		querySuccess*weightQuerySuccess +
		factConfidence*weightFactConfidence +
		sourceDiversity*weightSourceDiversity

	return weighted, FactorBreakdown{
		Completeness:    completeness,
		Corroboration:   corroboration,
		QuerySuccess:    querySuccess,
		FactConfidence:  factConfidence,
		SourceDiversity: sourceDiversity,
		Weighted:        weighted,
	}
}

// AggregateConfidence rolls per-type scores into an overall screening
// confidence, weighting foundation types (identity, employment,
// education) 1.5x since their facts gate every downstream phase.
func AggregateConfidence(scores map[InfoType]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum, weightTotal float64
	for infoType, score := range scores {
		w := 1.0
		if FoundationTypes[infoType] {
			w = 1.5
		}
		sum += score * w
		weightTotal += w
	}
	if weightTotal == 0 {
		return 0
	}
	return sum / weightTotal
}

func corroborationFraction(facts []Fact) float64 {
	bySources := make(map[string]map[string]bool)
	for _, f := range facts {
		if bySources[f.FactType] == nil {
			bySources[f.FactType] = make(map[string]bool)
		}
		bySources[f.FactType][f.SourceProvider] = true
	}
	if len(bySources) == 0 {
		return 0
	}
	corroborated := 0
	for _, sources := range bySources {
		if len(sources) >= 2 {
			corroborated++
		}
	}
	return float64(corroborated) / float64(len(bySources))
}

func meanConfidence(facts []Fact) float64 {
	if len(facts) == 0 {
		return 0
	}
	var sum float64
	for _, f := range facts {
		sum += f.Confidence
	}
	return sum / float64(len(facts))
}

func distinctSources(facts []Fact) int {
	seen := make(map[string]bool)
	for _, f := range facts {
		seen[f.SourceProvider] = true
	}
	return len(seen)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
