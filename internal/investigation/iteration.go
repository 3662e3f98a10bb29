package investigation

// DecisionType is the outcome of one IterationController evaluation.
type DecisionType string

const (
	DecisionContinue DecisionType = "CONTINUE"
	DecisionComplete DecisionType = "COMPLETE"
)

// IterationDecision is the verdict IterationController hands back to
// the SARStateMachine after each completed iteration.
type IterationDecision struct {
	Decision DecisionType
	Reason   CompletionReason
}

// ControllerConfig holds the thresholds that differ between foundation
// and standard information types.
type ControllerConfig struct {
	ConfidenceThreshold  float64
	MaxIterations        int
	InfoGainFloor        float64
	ConfidenceGainFloor  float64
}

var (
	foundationConfig = ControllerConfig{ConfidenceThreshold: 0.90, MaxIterations: 4, InfoGainFloor: 0.10, ConfidenceGainFloor: 0.05}
	standardConfig   = ControllerConfig{ConfidenceThreshold: 0.85, MaxIterations: 3, InfoGainFloor: 0.10, ConfidenceGainFloor: 0.05}
)

// ConfigFor returns the applicable thresholds for an information type.
func ConfigFor(infoType InfoType) ControllerConfig {
	if FoundationTypes[infoType] {
		return foundationConfig
	}
	return standardConfig
}

// IterationController implements the three-ordered-check
// should_continue_iteration decision: confidence threshold first, then
// the iteration cap, then (from the second iteration on) diminishing
// returns. Each check is evaluated in that exact order since an
// information type that both hit its cap and crossed its threshold on
// the same iteration should be reported as COMPLETE, not CAPPED.
type IterationController struct{}

func NewIterationController() *IterationController { return &IterationController{} }

// Evaluate decides whether a SARTypeState should run another iteration
// or stop, and why.
func (ic *IterationController) Evaluate(state *SARTypeState) IterationDecision {
	cfg := ConfigFor(state.InfoType)
	current := state.CurrentIteration()

	if current.ConfidenceScore >= cfg.ConfidenceThreshold {
		return IterationDecision{Decision: DecisionComplete, Reason: ReasonConfidenceThreshold}
	}

	if current.IterationNumber >= cfg.MaxIterations {
		return IterationDecision{Decision: DecisionComplete, Reason: ReasonMaxIterations}
	}

	if current.IterationNumber > 1 {
		previous := state.PreviousIteration()
		confidenceGain := current.ConfidenceScore - previous.ConfidenceScore
		if current.InfoGainRate < cfg.InfoGainFloor || confidenceGain < cfg.ConfidenceGainFloor {
			return IterationDecision{Decision: DecisionComplete, Reason: ReasonDiminishingReturns}
		}
	}

	return IterationDecision{Decision: DecisionContinue}
}
