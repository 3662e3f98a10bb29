package investigation

import (
	"fmt"
	"log/slog"
)

// SARStateMachine drives one information type through its SEARCH ->
// ASSESS -> REFINE loop until the IterationController says stop. The
// orchestrator holds one of these per information type and advances it
// explicitly rather than running its own goroutine, preferring
// caller-driven state transitions over hidden background loops.
type SARStateMachine struct {
	confidence *ConfidenceScorer
	iteration  *IterationController
	log        *slog.Logger
}

func NewSARStateMachine(log *slog.Logger) *SARStateMachine {
	if log == nil {
		log = slog.Default()
	}
	return &SARStateMachine{
		confidence: NewConfidenceScorer(),
		iteration:  NewIterationController(),
		log:        log,
	}
}

// Initialize creates the zero-value state for an information type about
// to begin its first SEARCH.
func (m *SARStateMachine) Initialize(infoType InfoType) *SARTypeState {
	return &SARTypeState{InfoType: infoType, Status: StatusIdle}
}

// Skip marks an information type as terminal without running any
// iterations, used for types that InformationTypeManager.GetNextTypes
// reports blocked for compliance or tier reasons.
func (m *SARStateMachine) Skip(state *SARTypeState, reason CompletionReason) {
	state.Status = StatusSkipped
	state.CompletionReason = reason
}

// StartIteration transitions the state into SEARCH for the next
// iteration number.
func (m *SARStateMachine) StartIteration(state *SARTypeState) {
	state.Status = StatusSearch
}

// BeginAssess transitions SEARCH -> ASSESS once queries have returned.
func (m *SARStateMachine) BeginAssess(state *SARTypeState) {
	if state.Status != StatusSearch {
		m.log.Warn("assess entered from unexpected state", "info_type", state.InfoType, "status", state.Status)
	}
	state.Status = StatusAssess
}

// BeginRefine transitions ASSESS -> REFINE when another iteration is
// warranted.
func (m *SARStateMachine) BeginRefine(state *SARTypeState) {
	state.Status = StatusRefine
}

// CompleteIteration folds an iteration's assessment into the state,
// scores confidence, and asks the IterationController whether to
// continue. It returns the decision so the orchestrator can decide
// whether to loop back into StartIteration or finalize the type.
func (m *SARStateMachine) CompleteIteration(state *SARTypeState, assessment AssessmentResult, totalQueries, successfulQueries int) IterationDecision {
	state.Facts = append(state.Facts, assessment.NewFacts...)
	state.Gaps = assessment.Gaps
	state.Inconsistencies = append(state.Inconsistencies, assessment.Inconsistencies...)

	score, _ := m.confidence.Score(state.InfoType, state.Facts, totalQueries, successfulQueries)

	prev := state.CurrentIteration()
	iterationNumber := prev.IterationNumber + 1

	denom := totalQueries
	if denom < 1 {
		denom = 1
	}
	infoGainRate := float64(len(assessment.NewFacts)) / float64(denom)

	state.Iterations = append(state.Iterations, SARIterationState{
		IterationNumber:      iterationNumber,
		ConfidenceScore:      score,
		InfoGainRate:         infoGainRate,
		FactCount:            len(state.Facts),
		QueryCount:           totalQueries,
		SuccessfulQueryCount: successfulQueries,
	})

	decision := m.iteration.Evaluate(state)
	if decision.Decision == DecisionComplete {
		state.CompletionReason = decision.Reason
		state.Status = statusForReason(decision.Reason)
		m.log.Info("information type complete",
			"info_type", fmt.Sprint(state.InfoType),
			"reason", decision.Reason,
			"iterations", iterationNumber,
			"confidence", score,
		)
	}
	return decision
}

func statusForReason(reason CompletionReason) SARStatus {
	switch reason {
	case ReasonMaxIterations:
		return StatusCapped
	case ReasonDiminishingReturns:
		return StatusDiminished
	default:
		return StatusComplete
	}
}
