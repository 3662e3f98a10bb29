package investigation

import "testing"

func TestSARStateMachine_CompletesOnThreshold(t *testing.T) {
	m := NewSARStateMachine(nil)
	state := m.Initialize(TypeCriminal)
	m.StartIteration(state)
	m.BeginAssess(state)

	assessment := AssessmentResult{
		InfoType: TypeCriminal,
		NewFacts: []Fact{
			{FactType: "criminal_record", SourceProvider: "p1", Confidence: 0.95},
			{FactType: "criminal_record", SourceProvider: "p2", Confidence: 0.95},
		},
	}
	decision := m.CompleteIteration(state, assessment, 2, 2)
	if decision.Decision != DecisionComplete {
		t.Fatalf("expected completion with a high-confidence corroborated fact, got %+v", decision)
	}
	if state.Status != StatusComplete && state.Status != StatusCapped && state.Status != StatusDiminished {
		t.Fatalf("expected a terminal status, got %s", state.Status)
	}
}

func TestSARStateMachine_SkipSetsTerminalStatusImmediately(t *testing.T) {
	m := NewSARStateMachine(nil)
	state := m.Initialize(TypeDigitalFootprint)
	m.Skip(state, ReasonSkipped)
	if state.Status != StatusSkipped {
		t.Fatalf("expected SKIPPED status, got %s", state.Status)
	}
}

func TestSARStateMachine_AccumulatesFactsAcrossIterations(t *testing.T) {
	m := NewSARStateMachine(nil)
	state := m.Initialize(TypeEmployment)
	m.StartIteration(state)
	m.BeginAssess(state)
	m.CompleteIteration(state, AssessmentResult{
		InfoType: TypeEmployment,
		NewFacts: []Fact{{FactType: "employer", SourceProvider: "p1", Confidence: 0.5}},
	}, 1, 1)

	if len(state.Facts) != 1 {
		t.Fatalf("expected 1 fact after first iteration, got %d", len(state.Facts))
	}

	m.StartIteration(state)
	m.BeginAssess(state)
	m.CompleteIteration(state, AssessmentResult{
		InfoType: TypeEmployment,
		NewFacts: []Fact{{FactType: "title", SourceProvider: "p1", Confidence: 0.6}},
	}, 1, 1)

	if len(state.Facts) != 2 {
		t.Fatalf("expected facts to accumulate across iterations, got %d", len(state.Facts))
	}
}
