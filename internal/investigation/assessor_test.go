package investigation

import (
	"encoding/json"
	"testing"

	"github.com/elile/screening-core/internal/provider"
)

func normalizedPayload(t *testing.T, fields map[string]string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return b
}

func TestAssess_ExtractsFactsAndUpdatesKnowledgeBase(t *testing.T) {
	a := NewResultAssessor(nil, nil)
	kb := NewKnowledgeBase()

	results := []QueryResult{
		{
			Query:    SearchQuery{InfoType: TypeIdentity, ProviderID: "id-v1"},
			Response: provider.Response{NormalizedData: normalizedPayload(t, map[string]string{"full_name": "Jane Doe", "dob": "1990-01-01"})},
		},
	}

	out := a.Assess(TypeIdentity, results, kb)
	if len(out.NewFacts) == 0 {
		t.Fatalf("expected facts extracted from payload")
	}
	if kb.PrimaryName() != "Jane Doe" {
		t.Fatalf("expected knowledge base to record confirmed name, got %q", kb.PrimaryName())
	}
}

func TestAssess_MissingRequiredFieldProducesNoDataGap(t *testing.T) {
	a := NewResultAssessor(nil, nil)
	kb := NewKnowledgeBase()

	results := []QueryResult{
		{
			Query:    SearchQuery{InfoType: TypeCriminal, ProviderID: "crim-v1"},
			Response: provider.Response{NormalizedData: normalizedPayload(t, map[string]string{})},
		},
	}

	out := a.Assess(TypeCriminal, results, kb)
	found := false
	for _, g := range out.Gaps {
		if g.GapType == "no_criminal_record" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a no_criminal_record gap when record_found is absent, got %+v", out.Gaps)
	}
}

func TestAssess_DetectsMajorDateInconsistency(t *testing.T) {
	a := NewResultAssessor(nil, nil)
	kb := NewKnowledgeBase()

	results := []QueryResult{
		{
			Query:    SearchQuery{InfoType: TypeIdentity, ProviderID: "id-v1"},
			Response: provider.Response{NormalizedData: normalizedPayload(t, map[string]string{"full_name": "Jane Doe", "dob": "1990-01-01"})},
		},
		{
			Query:    SearchQuery{InfoType: TypeIdentity, ProviderID: "id-v2"},
			Response: provider.Response{NormalizedData: normalizedPayload(t, map[string]string{"full_name": "Jane Doe", "dob": "1985-06-15"})},
		},
	}

	out := a.Assess(TypeIdentity, results, kb)
	if len(out.Inconsistencies) == 0 {
		t.Fatalf("expected an inconsistency between conflicting DOBs")
	}
	if out.Inconsistencies[0].Severity != SeverityMajor {
		t.Fatalf("expected MAJOR severity for DOBs >1 year apart, got %s", out.Inconsistencies[0].Severity)
	}
}

func TestAssess_EmployerFactSurfacesSecondaryEntity(t *testing.T) {
	a := NewResultAssessor(nil, nil)
	kb := NewKnowledgeBase()

	results := []QueryResult{
		{
			Query:    SearchQuery{InfoType: TypeEmployment, ProviderID: "emp-v1"},
			Response: provider.Response{NormalizedData: normalizedPayload(t, map[string]string{"employer_name": "Acme Corp"})},
		},
	}

	out := a.Assess(TypeEmployment, results, kb)
	if len(out.SecondaryEntities) != 1 || out.SecondaryEntities[0].Name != "Acme Corp" {
		t.Fatalf("expected Acme Corp surfaced as a secondary organization entity, got %+v", out.SecondaryEntities)
	}
}
