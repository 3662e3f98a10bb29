package investigation

import (
	"log/slog"

	"github.com/elile/screening-core/internal/compliance"
)

// BlockReason explains why an information type was withheld from a
// batch returned by GetNextTypes.
type BlockReason string

const (
	BlockUnmetDependency BlockReason = "UNMET_DEPENDENCY"
	BlockTierRestricted  BlockReason = "TIER_RESTRICTED"
	BlockCompliance      BlockReason = "COMPLIANCE_RESTRICTED"
)

// NextTypesResult is what GetNextTypes returns each time the
// orchestrator asks what to run next.
type NextTypesResult struct {
	NextTypes      []InfoType
	BlockedTypes   []InfoType
	BlockedReasons map[InfoType]BlockReason
	PhaseComplete  bool
	AllComplete    bool
}

// InformationTypeManager tracks which information types are terminal
// and computes, on each call, the next batch eligible to run given
// dependency, phase-ordering, tier, and compliance constraints.
// GetNextTypes applies dependency, tier, and compliance gating in that order.
type InformationTypeManager struct {
	evaluator *compliance.Evaluator
	log       *slog.Logger
}

func NewInformationTypeManager(evaluator *compliance.Evaluator, log *slog.Logger) *InformationTypeManager {
	if log == nil {
		log = slog.Default()
	}
	return &InformationTypeManager{evaluator: evaluator, log: log}
}

func terminalStatus(status SARStatus) bool {
	switch status {
	case StatusComplete, StatusCapped, StatusDiminished, StatusSkipped:
		return true
	default:
		return false
	}
}

// GetNextTypes inspects the current state of every selected information
// type and returns the next batch eligible to start, respecting:
//  1. strict phase ordering (a phase only opens once every selected
//     type in every prior phase is terminal),
//  2. per-type dependency satisfaction within the open phase,
//  3. tier gating (enhanced-only types withheld on a standard tier),
//  4. compliance (types whose primary check type is blocked for this
//     subject's locale/role are withheld, not merely deprioritized).
//
// selected restricts scheduling to the types this screening actually
// requested (plus their dependency closure); nil means every type.
func (m *InformationTypeManager) GetNextTypes(states map[InfoType]*SARTypeState, params ScreeningParams, selected map[InfoType]bool) NextTypesResult {
	result := NextTypesResult{BlockedReasons: make(map[InfoType]BlockReason)}

	currentPhase, phaseComplete := m.currentPhase(states, selected)
	result.PhaseComplete = phaseComplete
	if currentPhase == "" {
		result.AllComplete = true
		return result
	}

	for _, infoType := range PhaseTypes[currentPhase] {
		if selected != nil && !selected[infoType] {
			continue
		}
		state := states[infoType]
		if state != nil && terminalStatus(state.Status) {
			continue
		}
		if state != nil && state.Status != StatusIdle {
			// already running; not a candidate for (re)starting
			continue
		}

		dep := TypeDependencies[infoType]
		if !m.dependenciesMet(dep, states) {
			result.BlockedTypes = append(result.BlockedTypes, infoType)
			result.BlockedReasons[infoType] = BlockUnmetDependency
			continue
		}

		if dep.RequiresEnhanced && params.Tier != compliance.TierEnhanced {
			result.BlockedTypes = append(result.BlockedTypes, infoType)
			result.BlockedReasons[infoType] = BlockTierRestricted
			continue
		}

		if dep.PrimaryCheckType != "" && m.evaluator != nil {
			eval := m.evaluator.Evaluate(params.Locale, dep.PrimaryCheckType, params.Role, params.Tier)
			if !eval.Permitted {
				result.BlockedTypes = append(result.BlockedTypes, infoType)
				result.BlockedReasons[infoType] = BlockCompliance
				continue
			}
		}

		result.NextTypes = append(result.NextTypes, infoType)
	}

	return result
}

// dependenciesMet reports whether every prerequisite type for dep has
// reached a terminal (not necessarily successful) state.
func (m *InformationTypeManager) dependenciesMet(dep TypeDependency, states map[InfoType]*SARTypeState) bool {
	for _, req := range dep.DependsOn {
		s := states[req]
		if s == nil || !terminalStatus(s.Status) {
			return false
		}
	}
	return true
}

// currentPhase walks PhaseOrder and returns the first phase with a
// selected type that is not yet terminal. If every selected phase is
// terminal it returns "" with phaseComplete true to signal the whole
// screening is done.
func (m *InformationTypeManager) currentPhase(states map[InfoType]*SARTypeState, selected map[InfoType]bool) (Phase, bool) {
	for _, phase := range PhaseOrder {
		allTerminal := true
		for _, infoType := range PhaseTypes[phase] {
			if selected != nil && !selected[infoType] {
				continue
			}
			s := states[infoType]
			if s == nil || !terminalStatus(s.Status) {
				allTerminal = false
				break
			}
		}
		if !allTerminal {
			return phase, false
		}
	}
	return "", true
}

// PhaseSequencer is a thin wrapper exposing strict phase-boundary checks
// independent of dependency resolution.
type PhaseSequencer struct{}

func NewPhaseSequencer() *PhaseSequencer { return &PhaseSequencer{} }

// PhaseOf returns the phase an information type belongs to.
func (p *PhaseSequencer) PhaseOf(infoType InfoType) Phase {
	return TypeDependencies[infoType].Phase
}

// IsPhaseComplete reports whether every type in the given phase is
// terminal.
func (p *PhaseSequencer) IsPhaseComplete(phase Phase, states map[InfoType]*SARTypeState) bool {
	for _, infoType := range PhaseTypes[phase] {
		s := states[infoType]
		if s == nil || !terminalStatus(s.Status) {
			return false
		}
	}
	return true
}
