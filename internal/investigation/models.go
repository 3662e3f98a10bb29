package investigation

import (
	"time"

	"github.com/elile/screening-core/internal/provider"
)

// Fact is one atomic piece of confirmed information extracted from a
// provider result and folded into the KnowledgeBase.
type Fact struct {
	FactID        string
	FactType      string
	Value         string
	SourceProvider string
	Confidence    float64
	DiscoveredAt  time.Time
}

// GapPriority ranks how urgently a gap should be pursued by the
// QueryRefiner: category 1 (no_* gaps) queries first, then category 2
// (missing_* gaps), then everything else.
type GapPriority int

const (
	GapPriorityNoData  GapPriority = 1
	GapPriorityMissing GapPriority = 2
	GapPriorityOther   GapPriority = 3
)

// Gap is a hole in the evidence for one information type, identified
// during assessment and handed to the QueryRefiner to close.
type Gap struct {
	GapType     string
	Description string
	InfoType    InfoType
	Priority    GapPriority
	CanQuery    bool
}

// InconsistencySeverity grades how much a detected discrepancy between
// two sources matters for risk scoring and human review.
type InconsistencySeverity string

const (
	SeverityMinor InconsistencySeverity = "MINOR"
	SeverityMajor InconsistencySeverity = "MAJOR"
)

// Inconsistency records a conflict between two sourced values for the
// same field, e.g. two providers reporting different employment dates.
type Inconsistency struct {
	Field          string
	SourceAProvider string
	SourceAValue   string
	SourceBProvider string
	SourceBValue   string
	Severity       InconsistencySeverity
	Kind           string
	DeceptionScore float64
}

// FindingCategory groups findings for RiskScorer's category weighting.
type FindingCategory string

const (
	CategoryCriminal    FindingCategory = "CRIMINAL"
	CategoryRegulatory  FindingCategory = "REGULATORY"
	CategoryVerification FindingCategory = "VERIFICATION"
	CategoryFinancial   FindingCategory = "FINANCIAL"
	CategoryBehavioral  FindingCategory = "BEHAVIORAL"
	CategoryNetwork     FindingCategory = "NETWORK"
	CategoryReputation  FindingCategory = "REPUTATION"
)

// FindingSeverity is the raw severity FindingClassifier assigns before
// RiskScorer applies recency, confidence and category weighting.
type FindingSeverity string

const (
	FindingLow      FindingSeverity = "LOW"
	FindingMedium   FindingSeverity = "MEDIUM"
	FindingHigh     FindingSeverity = "HIGH"
	FindingCritical FindingSeverity = "CRITICAL"
)

// Finding is a risk-relevant fact or group of facts classified by
// FindingClassifier and scored by RiskScorer.
type Finding struct {
	FindingID       string
	Category        FindingCategory
	Severity        FindingSeverity
	FindingDate     *time.Time
	Confidence      float64
	Corroborated    bool
	RelevanceToRole float64
	UnderlyingFacts []Fact
	Description     string
}

// QueryType marks where a SearchQuery originated in the SAR loop.
type QueryType string

const (
	QueryInitial QueryType = "INITIAL"
	QueryEnriched QueryType = "ENRICHED"
	QueryGapFill QueryType = "GAP_FILL"
)

// SearchQuery is one unit of outbound work QueryPlanner or QueryRefiner
// hands to the PriorityDispatcher/RequestRouter.
type SearchQuery struct {
	QueryID        string
	InfoType       InfoType
	QueryType      QueryType
	ProviderID     string
	CheckType      provider.CheckType
	SearchParams   map[string]string
	IterationNumber int
	Priority       GapPriority
	TargetingGap   string
	EnrichedFrom   []string
}

// QueryResult is the outcome of executing one SearchQuery through the
// RequestRouter, bridged back into investigation-domain terms.
type QueryResult struct {
	Query      SearchQuery
	Response   provider.Response
	Err        error
	FailureReason string
}

// ExecutionSummary is what QueryExecutor returns after running a batch
// of queries for one information type to completion.
type ExecutionSummary struct {
	InfoType      InfoType
	Results       []QueryResult
	SuccessCount  int
	FailureCount  int
}

// AssessmentResult is what ResultAssessor produces after folding a
// batch of QueryResults into the KnowledgeBase for one iteration.
type AssessmentResult struct {
	InfoType        InfoType
	NewFacts        []Fact
	Gaps            []Gap
	Inconsistencies []Inconsistency
	SecondaryEntities []DiscoveredEntity
}

// CompletionReason records why a SARTypeState left its iterative loop.
type CompletionReason string

const (
	ReasonConfidenceThreshold CompletionReason = "CONFIDENCE_THRESHOLD_MET"
	ReasonMaxIterations       CompletionReason = "MAX_ITERATIONS_REACHED"
	ReasonDiminishingReturns  CompletionReason = "DIMINISHING_RETURNS"
	ReasonNoNewInformation    CompletionReason = "NO_NEW_INFORMATION"
	ReasonCancelled           CompletionReason = "CANCELLED"
	ReasonError               CompletionReason = "ERROR"
	ReasonSkipped             CompletionReason = "SKIPPED"
)

// SARStatus is the lifecycle state of one information type's SAR loop.
type SARStatus string

const (
	StatusIdle     SARStatus = "IDLE"
	StatusSearch   SARStatus = "SEARCH"
	StatusAssess   SARStatus = "ASSESS"
	StatusRefine   SARStatus = "REFINE"
	StatusComplete SARStatus = "COMPLETE"
	StatusCapped   SARStatus = "CAPPED"
	StatusDiminished SARStatus = "DIMINISHED"
	StatusSkipped  SARStatus = "SKIPPED"
)

// SARIterationState captures one iteration's measurements, used by the
// IterationController to compare successive iterations for diminishing
// returns.
type SARIterationState struct {
	IterationNumber int
	ConfidenceScore float64
	InfoGainRate    float64
	FactCount       int
	QueryCount      int
	SuccessfulQueryCount int
}

// SARTypeState is the full per-information-type SAR state, advanced by
// SARStateMachine across SEARCH/ASSESS/REFINE iterations.
type SARTypeState struct {
	InfoType         InfoType
	Status           SARStatus
	Iterations       []SARIterationState
	CompletionReason CompletionReason
	Facts            []Fact
	Gaps             []Gap
	Inconsistencies  []Inconsistency
}

// CurrentIteration returns the most recent iteration state, or the zero
// value if none have run yet.
func (s *SARTypeState) CurrentIteration() SARIterationState {
	if len(s.Iterations) == 0 {
		return SARIterationState{}
	}
	return s.Iterations[len(s.Iterations)-1]
}

// PreviousIteration returns the iteration before the current one, or
// the zero value if there were fewer than two.
func (s *SARTypeState) PreviousIteration() SARIterationState {
	if len(s.Iterations) < 2 {
		return SARIterationState{}
	}
	return s.Iterations[len(s.Iterations)-2]
}
