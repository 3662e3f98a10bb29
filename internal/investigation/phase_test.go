package investigation

import (
	"testing"

	"github.com/elile/screening-core/internal/compliance"
)

func TestGetNextTypes_FoundationFirst(t *testing.T) {
	mgr := NewInformationTypeManager(nil, nil)
	states := map[InfoType]*SARTypeState{}
	params := ScreeningParams{Locale: compliance.LocaleUS, Role: compliance.RoleStandard, Tier: compliance.TierStandard}

	result := mgr.GetNextTypes(states, params, nil)
	if len(result.NextTypes) != 1 {
		t.Fatalf("expected only IDENTITY to be eligible first, got %+v", result.NextTypes)
	}
	for _, it := range result.NextTypes {
		if TypeDependencies[it].Phase != PhaseFoundation {
			t.Fatalf("expected only foundation-phase types, got %s", it)
		}
	}
}

func TestGetNextTypes_RecordsBlockedUntilFoundationTerminal(t *testing.T) {
	mgr := NewInformationTypeManager(nil, nil)
	states := map[InfoType]*SARTypeState{
		TypeIdentity:   {InfoType: TypeIdentity, Status: StatusSearch},
		TypeEmployment: {InfoType: TypeEmployment, Status: StatusIdle},
		TypeEducation:  {InfoType: TypeEducation, Status: StatusIdle},
	}
	params := ScreeningParams{Locale: compliance.LocaleUS, Role: compliance.RoleStandard, Tier: compliance.TierStandard}

	result := mgr.GetNextTypes(states, params, nil)
	for _, it := range result.NextTypes {
		if TypeDependencies[it].Phase == PhaseRecords {
			t.Fatalf("records phase should not open while foundation is in progress, got %s", it)
		}
	}
}

func TestGetNextTypes_EnhancedOnlyTypeBlockedOnStandardTier(t *testing.T) {
	mgr := NewInformationTypeManager(nil, nil)
	terminal := func(it InfoType) *SARTypeState {
		return &SARTypeState{InfoType: it, Status: StatusComplete, CompletionReason: ReasonConfidenceThreshold}
	}
	states := map[InfoType]*SARTypeState{
		TypeIdentity:   terminal(TypeIdentity),
		TypeEmployment: terminal(TypeEmployment),
		TypeEducation:  terminal(TypeEducation),
		TypeCriminal:   terminal(TypeCriminal),
		TypeCivil:      terminal(TypeCivil),
		TypeFinancial:  terminal(TypeFinancial),
		TypeLicenses:   terminal(TypeLicenses),
		TypeRegulatory: terminal(TypeRegulatory),
		TypeSanctions:  terminal(TypeSanctions),
	}
	params := ScreeningParams{Locale: compliance.LocaleUS, Role: compliance.RoleStandard, Tier: compliance.TierStandard}

	result := mgr.GetNextTypes(states, params, nil)
	if result.BlockedReasons[TypeDigitalFootprint] != BlockTierRestricted {
		t.Fatalf("expected DIGITAL_FOOTPRINT blocked for tier, got %+v", result.BlockedReasons)
	}
	for _, it := range result.NextTypes {
		if it == TypeDigitalFootprint {
			t.Fatalf("digital footprint should not be eligible on standard tier")
		}
	}
}

func TestGetNextTypes_UnselectedTypesAreIgnored(t *testing.T) {
	mgr := NewInformationTypeManager(nil, nil)
	selected := map[InfoType]bool{TypeIdentity: true, TypeCriminal: true}
	states := map[InfoType]*SARTypeState{
		TypeIdentity: {InfoType: TypeIdentity, Status: StatusComplete, CompletionReason: ReasonConfidenceThreshold},
	}
	params := ScreeningParams{Locale: compliance.LocaleUS, Role: compliance.RoleStandard, Tier: compliance.TierStandard}

	result := mgr.GetNextTypes(states, params, selected)
	if len(result.NextTypes) != 1 || result.NextTypes[0] != TypeCriminal {
		t.Fatalf("expected only CRIMINAL eligible once IDENTITY is terminal, got %+v", result.NextTypes)
	}
}

func TestGetNextTypes_AllCompleteReportsDone(t *testing.T) {
	mgr := NewInformationTypeManager(nil, nil)
	states := map[InfoType]*SARTypeState{}
	for it := range TypeDependencies {
		states[it] = &SARTypeState{InfoType: it, Status: StatusComplete, CompletionReason: ReasonConfidenceThreshold}
	}
	params := ScreeningParams{Locale: compliance.LocaleUS, Role: compliance.RoleStandard, Tier: compliance.TierEnhanced}

	result := mgr.GetNextTypes(states, params, nil)
	if !result.AllComplete {
		t.Fatalf("expected AllComplete once every type is terminal")
	}
}
