package investigation

import "testing"

func TestIterationController_CompletesAtConfidenceThreshold(t *testing.T) {
	ic := NewIterationController()
	state := &SARTypeState{InfoType: TypeCriminal, Iterations: []SARIterationState{
		{IterationNumber: 1, ConfidenceScore: 0.90},
	}}
	d := ic.Evaluate(state)
	if d.Decision != DecisionComplete || d.Reason != ReasonConfidenceThreshold {
		t.Fatalf("expected threshold completion, got %+v", d)
	}
}

func TestIterationController_FoundationTypeNeedsHigherThreshold(t *testing.T) {
	ic := NewIterationController()
	state := &SARTypeState{InfoType: TypeIdentity, Iterations: []SARIterationState{
		{IterationNumber: 1, ConfidenceScore: 0.87},
	}}
	d := ic.Evaluate(state)
	if d.Decision != DecisionContinue {
		t.Fatalf("expected continue below foundation threshold 0.90, got %+v", d)
	}
}

func TestIterationController_CapsAtMaxIterations(t *testing.T) {
	ic := NewIterationController()
	state := &SARTypeState{InfoType: TypeCriminal, Iterations: []SARIterationState{
		{IterationNumber: 1, ConfidenceScore: 0.3, InfoGainRate: 1.0},
		{IterationNumber: 2, ConfidenceScore: 0.5, InfoGainRate: 0.5},
		{IterationNumber: 3, ConfidenceScore: 0.6, InfoGainRate: 0.3},
	}}
	d := ic.Evaluate(state)
	if d.Decision != DecisionComplete || d.Reason != ReasonMaxIterations {
		t.Fatalf("expected CAPPED at standard max 3 iterations, got %+v", d)
	}
}

func TestIterationController_DiminishingReturnsOnLowInfoGain(t *testing.T) {
	ic := NewIterationController()
	state := &SARTypeState{InfoType: TypeCriminal, Iterations: []SARIterationState{
		{IterationNumber: 1, ConfidenceScore: 0.55, InfoGainRate: 1.0},
		{IterationNumber: 2, ConfidenceScore: 0.57, InfoGainRate: 0.05},
	}}
	d := ic.Evaluate(state)
	if d.Decision != DecisionComplete || d.Reason != ReasonDiminishingReturns {
		t.Fatalf("expected DIMINISHING_RETURNS when info gain rate < 0.1, got %+v", d)
	}
}

func TestIterationController_FirstIterationNeverDiminishes(t *testing.T) {
	ic := NewIterationController()
	state := &SARTypeState{InfoType: TypeCriminal, Iterations: []SARIterationState{
		{IterationNumber: 1, ConfidenceScore: 0.2, InfoGainRate: 0.0},
	}}
	d := ic.Evaluate(state)
	if d.Decision != DecisionContinue {
		t.Fatalf("expected CONTINUE on first iteration regardless of info gain, got %+v", d)
	}
}
