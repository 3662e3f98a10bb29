package compliance

import (
	"testing"

	"github.com/elile/screening-core/internal/provider"
)

func TestEvaluate_USStandardScreeningPermitted(t *testing.T) {
	e := NewEvaluator(NewRuleRepository(), nil)
	ev := e.Evaluate(LocaleUS, provider.CheckCriminalNational, RoleStandard, TierStandard)
	if !ev.Permitted {
		t.Fatalf("expected permitted, got blocked: %s", ev.Reason)
	}
	if ev.LookbackDays != 7*365 {
		t.Fatalf("expected 7 year lookback, got %d", ev.LookbackDays)
	}
}

func TestEvaluate_EUCreditCheckBlocked(t *testing.T) {
	e := NewEvaluator(NewRuleRepository(), nil)
	ev := e.Evaluate(LocaleEU, provider.CheckCreditReport, RoleFinancial, TierStandard)
	if ev.Permitted {
		t.Fatalf("expected credit report blocked in EU")
	}
	if ev.Restriction != RestrictionBlocked {
		t.Fatalf("expected blocked restriction, got %s", ev.Restriction)
	}
}

func TestEvaluate_DigitalFootprintRequiresEnhancedTier(t *testing.T) {
	e := NewEvaluator(NewRuleRepository(), nil)

	ev := e.Evaluate(LocaleUS, provider.CheckDigitalFootprint, RoleStandard, TierStandard)
	if ev.Permitted {
		t.Fatalf("expected digital footprint blocked on standard tier")
	}
	if ev.Restriction != RestrictionTierRestricted {
		t.Fatalf("expected tier-restricted, got %s", ev.Restriction)
	}

	ev = e.Evaluate(LocaleUS, provider.CheckDigitalFootprint, RoleStandard, TierEnhanced)
	if !ev.Permitted {
		t.Fatalf("expected digital footprint permitted on enhanced tier")
	}
}

func TestEvaluate_CreditReportRoleRestricted(t *testing.T) {
	e := NewEvaluator(NewRuleRepository(), nil)
	ev := e.Evaluate(LocaleUS, provider.CheckCreditReport, RoleStandard, TierStandard)
	if ev.Permitted {
		t.Fatalf("expected credit report blocked for non-financial role")
	}
	if ev.Restriction != RestrictionRoleRestricted {
		t.Fatalf("expected role-restricted, got %s", ev.Restriction)
	}

	ev = e.Evaluate(LocaleUS, provider.CheckCreditReport, RoleFinancial, TierStandard)
	if !ev.Permitted {
		t.Fatalf("expected credit report permitted for financial role")
	}
}

func TestEvaluate_LocaleInheritance(t *testing.T) {
	e := NewEvaluator(NewRuleRepository(), nil)
	// US_CA has no explicit rule for employment verification; it should
	// inherit the general US rule.
	ev := e.Evaluate(LocaleUSCA, provider.CheckEmploymentVerify, RoleStandard, TierStandard)
	if !ev.Permitted {
		t.Fatalf("expected US_CA to inherit US employment verification rule")
	}
}

func TestValidateChecks_PartitionsPermittedAndBlocked(t *testing.T) {
	e := NewEvaluator(NewRuleRepository(), nil)
	res := e.ValidateChecks(LocaleEU, []provider.CheckType{
		provider.CheckIdentityBasic,
		provider.CheckCreditReport,
		provider.CheckNetworkD3,
	}, RoleFinancial, TierEnhanced)

	if len(res.Permitted) != 1 {
		t.Fatalf("expected 1 permitted check, got %d", len(res.Permitted))
	}
	if len(res.Blocked) != 2 {
		t.Fatalf("expected 2 blocked checks, got %d", len(res.Blocked))
	}
}
