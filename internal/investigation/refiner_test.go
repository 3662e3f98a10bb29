package investigation

import (
	"testing"

	"github.com/elile/screening-core/internal/provider"
)

func TestRefine_PrioritizesNoDataGapsOverMissingFieldGaps(t *testing.T) {
	refiner := NewQueryRefiner(nil)
	gaps := []Gap{
		{GapType: "missing_end_date", InfoType: TypeEmployment, Priority: GapPriorityMissing, CanQuery: true},
		{GapType: "no_employment_record", InfoType: TypeEmployment, Priority: GapPriorityNoData, CanQuery: true},
	}
	subject := Subject{FullName: "Jane Doe"}
	queries := refiner.Refine(TypeEmployment, gaps, subject, NewKnowledgeBase(), 2)

	if len(queries) != 2 {
		t.Fatalf("expected 2 refinement queries, got %d", len(queries))
	}
	if queries[0].TargetingGap != "no_employment_record" {
		t.Fatalf("expected no_* gap queried first, got %s", queries[0].TargetingGap)
	}
}

func TestRefine_DropsUnqueryableGaps(t *testing.T) {
	refiner := NewQueryRefiner(nil)
	gaps := []Gap{
		{GapType: "no_criminal_record", InfoType: TypeCriminal, Priority: GapPriorityNoData, CanQuery: false},
	}
	queries := refiner.Refine(TypeCriminal, gaps, Subject{}, NewKnowledgeBase(), 1)
	if len(queries) != 0 {
		t.Fatalf("expected no queries for a gap marked CanQuery=false, got %d", len(queries))
	}
}

func TestRefine_DuplicateGapsCollapseBySignature(t *testing.T) {
	refiner := NewQueryRefiner(nil)
	var gaps []Gap
	for i := 0; i < 5; i++ {
		gaps = append(gaps, Gap{GapType: "no_criminal_record", InfoType: TypeCriminal, Priority: GapPriorityNoData, CanQuery: true})
	}
	queries := refiner.Refine(TypeCriminal, gaps, Subject{FullName: "X"}, NewKnowledgeBase(), 1)
	// One query per check type the strategy targets (national + county);
	// the four duplicate gaps collapse under signature dedup.
	if len(queries) != 2 {
		t.Fatalf("expected identical gaps to collapse to one query per targeted check type, got %d", len(queries))
	}
}

func TestRefine_RetargetsCheckTypePerGapStrategy(t *testing.T) {
	refiner := NewQueryRefiner(nil)
	gaps := []Gap{
		{GapType: "missing_address", InfoType: TypeIdentity, Priority: GapPriorityMissing, CanQuery: true},
	}
	queries := refiner.Refine(TypeIdentity, gaps, Subject{FullName: "Jane Doe"}, NewKnowledgeBase(), 2)
	if len(queries) != 2 {
		t.Fatalf("expected one query per strategy check type, got %d", len(queries))
	}
	if queries[0].CheckType != provider.CheckSSNTrace {
		t.Fatalf("expected a missing address to be chased through an SSN trace first, got %s", queries[0].CheckType)
	}
}

func TestRefine_UnknownGapFallsBackToInfoTypeChecks(t *testing.T) {
	refiner := NewQueryRefiner(nil)
	gaps := []Gap{
		{GapType: "stale_employer_hint", InfoType: TypeEmployment, Priority: GapPriorityOther, CanQuery: true},
	}
	queries := refiner.Refine(TypeEmployment, gaps, Subject{FullName: "Jane Doe"}, NewKnowledgeBase(), 2)
	if len(queries) != 1 || queries[0].CheckType != provider.CheckEmploymentVerify {
		t.Fatalf("expected fallback to the information type's own check types, got %+v", queries)
	}
	if queries[0].SearchParams["refinement_focus"] != "stale_employer_hint" {
		t.Fatalf("expected the gap type itself as focus for an untabled gap, got %+v", queries[0].SearchParams)
	}
}
