package consent

import (
	"testing"
	"time"

	"github.com/elile/screening-core/internal/compliance"
	"github.com/elile/screening-core/internal/provider"
)

func TestVerifyCheckTypes_MissingConsentBlocks(t *testing.T) {
	s := NewStore()
	res := s.VerifyCheckTypes("subj-1", []provider.CheckType{provider.CheckCriminalNational}, time.Now())
	if res.Valid {
		t.Fatalf("expected invalid result with no consent on file")
	}
	if len(res.MissingScopes) != 1 {
		t.Fatalf("expected 1 missing scope, got %d", len(res.MissingScopes))
	}
}

func TestVerifyCheckTypes_BackgroundCheckScopeCoversBasics(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Register(&Consent{
		ConsentID: "c1", SubjectID: "subj-1",
		Scopes:             []Scope{ScopeBackgroundCheck},
		GrantedAt:          now,
		VerificationMethod: MethodESignature,
		Locale:             compliance.LocaleUS,
	})

	res := s.VerifyCheckTypes("subj-1", []provider.CheckType{
		provider.CheckCriminalNational,
		provider.CheckIdentityBasic,
	}, now)
	if !res.Valid {
		t.Fatalf("expected background_check scope to cover criminal + identity checks: %v", res.Errors)
	}
}

func TestVerifyCheckTypes_CreditCheckNeedsExplicitScope(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Register(&Consent{
		ConsentID: "c1", SubjectID: "subj-1",
		Scopes:             []Scope{ScopeBackgroundCheck},
		GrantedAt:          now,
		VerificationMethod: MethodESignature,
		Locale:             compliance.LocaleUS,
	})

	res := s.VerifyCheckTypes("subj-1", []provider.CheckType{provider.CheckCreditReport}, now)
	if res.Valid {
		t.Fatalf("expected credit check to require its own explicit scope")
	}
}

func TestConsent_ExpiredAndRevokedAreInvalid(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	c := Consent{ConsentID: "c1", SubjectID: "s1", ExpiresAt: &past}
	if c.IsValid(now) {
		t.Fatalf("expected expired consent to be invalid")
	}

	revokedAt := now.Add(-time.Minute)
	c2 := Consent{ConsentID: "c2", SubjectID: "s1", RevokedAt: &revokedAt}
	if c2.IsValid(now) {
		t.Fatalf("expected revoked consent to be invalid")
	}
}

func TestVerifyFCRADisclosure_USRequiresStandaloneAndSummary(t *testing.T) {
	c := &Consent{Locale: compliance.LocaleUS, FCRADisclosure: &FCRADisclosure{
		StandaloneDisclosure: true,
		SummaryOfRights:      true,
	}}
	ok, errs := VerifyFCRADisclosure(c, compliance.LocaleUS)
	if !ok {
		t.Fatalf("expected disclosure to pass, got errors: %v", errs)
	}
}

func TestVerifyFCRADisclosure_CaliforniaRequiresICRAA(t *testing.T) {
	c := &Consent{Locale: compliance.LocaleUSCA, FCRADisclosure: &FCRADisclosure{
		StandaloneDisclosure: true,
		SummaryOfRights:      true,
	}}
	ok, errs := VerifyFCRADisclosure(c, compliance.LocaleUSCA)
	if ok {
		t.Fatalf("expected failure without CA_ICRAA state disclosure")
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
}

func TestVerifyFCRADisclosure_NonUSAlwaysPasses(t *testing.T) {
	c := &Consent{Locale: compliance.LocaleEU}
	ok, _ := VerifyFCRADisclosure(c, compliance.LocaleEU)
	if !ok {
		t.Fatalf("expected non-US locale to bypass FCRA disclosure checks")
	}
}
