package screening

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/elile/screening-core/internal/cache"
	"github.com/elile/screening-core/internal/circuitbreaker"
	"github.com/elile/screening-core/internal/compliance"
	"github.com/elile/screening-core/internal/consent"
	"github.com/elile/screening-core/internal/dispatcher"
	"github.com/elile/screening-core/internal/investigation"
	"github.com/elile/screening-core/internal/provider"
	"github.com/elile/screening-core/internal/router"
)

func payload(t *testing.T, fields map[string]string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return b
}

func scriptedAdapter(t *testing.T, id string, check provider.CheckType, fields map[string]string) *provider.MockAdapter {
	t.Helper()
	m := provider.NewMockAdapter(id, check)
	m.Responses[check] = &provider.Response{
		NormalizedData: payload(t, fields),
		FetchedAt:      time.Now(),
	}
	return m
}

// newTestOrchestrator wires a full orchestrator against in-memory
// collaborators: every adapter in adapters is registered, the cache is
// process-local, and the dispatcher runs with enough capacity that
// throttling never stretches the test.
func newTestOrchestrator(t *testing.T, adapters ...provider.Adapter) (*Orchestrator, *consent.Store, func()) {
	t.Helper()

	registry := provider.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
	}

	rt := router.New(router.Config{
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		CacheFreshTTL:  time.Minute,
		CacheStaleTTL:  time.Minute,
	}, registry, cache.New(cache.NewInMemoryBackend()), circuitbreaker.NewProviderCircuitBreakers(), nil)

	pd := dispatcher.NewPriorityDispatcher(6000, 256)
	consents := consent.NewStore()

	o := New(Config{
		Evaluator:  compliance.NewEvaluator(compliance.NewRuleRepository(), nil),
		Consents:   consents,
		Registry:   registry,
		Router:     rt,
		Dispatcher: pd,
	})
	return o, consents, pd.Shutdown
}

func registerBasicConsent(consents *consent.Store, subjectID string) {
	expires := time.Now().Add(24 * time.Hour)
	consents.Register(&consent.Consent{
		ConsentID: "consent-1",
		SubjectID: subjectID,
		Scopes:    []consent.Scope{consent.ScopeBackgroundCheck},
		GrantedAt: time.Now(),
		ExpiresAt: &expires,
		FCRADisclosure: &consent.FCRADisclosure{
			ProvidedAt:           time.Now(),
			StandaloneDisclosure: true,
			SummaryOfRights:      true,
		},
	})
}

func usParams() investigation.ScreeningParams {
	return investigation.ScreeningParams{
		Locale: compliance.LocaleUS,
		Role:   compliance.RoleStandard,
		Tier:   compliance.TierStandard,
	}
}

func TestRunScreening_USStandardCompletesAllPhases(t *testing.T) {
	dob := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)
	o, consents, shutdown := newTestOrchestrator(t,
		scriptedAdapter(t, "identity-v1", provider.CheckIdentityBasic, map[string]string{
			"full_name": "Jane Doe", "dob": "1990-05-01", "ssn_last4": "1234", "address": "1 Main St",
		}),
		scriptedAdapter(t, "employment-v1", provider.CheckEmploymentVerify, map[string]string{
			"employer_name": "Acme Corp", "title": "Engineer", "start_date": "2018-02-01", "end_date": "2022-06-30",
		}),
		scriptedAdapter(t, "education-v1", provider.CheckEducationVerify, map[string]string{
			"institution_name": "State University", "degree": "BSc",
		}),
		scriptedAdapter(t, "criminal-v1", provider.CheckCriminalNational, map[string]string{
			"record_found": "clear",
		}),
	)
	defer shutdown()
	registerBasicConsent(consents, "subj-1")

	result, err := o.RunScreening(context.Background(), Request{
		ScreeningID: "scrn-1",
		TenantID:    "tenant-a",
		Subject: investigation.Subject{
			SubjectID: "subj-1", FullName: "Jane Doe", DOB: &dob, NationalIDLast4: "1234",
		},
		DesiredTypes: []investigation.InfoType{
			investigation.TypeEmployment, investigation.TypeEducation, investigation.TypeCriminal,
		},
		Params: usParams(),
	})
	if err != nil {
		t.Fatalf("expected screening to complete, got %v", err)
	}
	if result.Status != StatusComplete {
		t.Fatalf("expected COMPLETE, got %s", result.Status)
	}

	// IDENTITY was never requested but is a dependency of everything
	// else, and RECONCILIATION closes out a run whose foundation types
	// are all present.
	for _, it := range []investigation.InfoType{
		investigation.TypeIdentity, investigation.TypeEmployment, investigation.TypeEducation,
		investigation.TypeCriminal, investigation.TypeReconciliation,
	} {
		st := result.TypeStates[it]
		if st == nil {
			t.Fatalf("expected %s to have been scheduled", it)
		}
		switch st.Status {
		case investigation.StatusComplete, investigation.StatusCapped, investigation.StatusDiminished, investigation.StatusSkipped:
		default:
			t.Fatalf("expected %s terminal, got %s", it, st.Status)
		}
	}

	if result.Risk.OverallScore < 0 || result.Risk.OverallScore > 100 {
		t.Fatalf("risk score out of range: %d", result.Risk.OverallScore)
	}
	for it, st := range result.TypeStates {
		for _, iter := range st.Iterations {
			if iter.ConfidenceScore < 0 || iter.ConfidenceScore > 1 {
				t.Fatalf("%s iteration %d confidence out of range: %f", it, iter.IterationNumber, iter.ConfidenceScore)
			}
		}
	}
}

func TestRunScreening_OnlyRequestedClosureIsScheduled(t *testing.T) {
	o, consents, shutdown := newTestOrchestrator(t,
		scriptedAdapter(t, "identity-v1", provider.CheckIdentityBasic, map[string]string{
			"full_name": "Jane Doe", "dob": "1990-05-01",
		}),
	)
	defer shutdown()
	registerBasicConsent(consents, "subj-2")

	result, err := o.RunScreening(context.Background(), Request{
		ScreeningID:  "scrn-2",
		TenantID:     "tenant-a",
		Subject:      investigation.Subject{SubjectID: "subj-2", FullName: "Jane Doe"},
		DesiredTypes: []investigation.InfoType{investigation.TypeIdentity},
		Params:       usParams(),
	})
	if err != nil {
		t.Fatalf("expected completion, got %v", err)
	}
	if len(result.TypeStates) != 1 {
		t.Fatalf("expected only IDENTITY scheduled, got %v", result.TypeStates)
	}
	if result.TypeStates[investigation.TypeIdentity] == nil {
		t.Fatalf("expected IDENTITY state, got %v", result.TypeStates)
	}
}

func TestRunScreening_MissingConsentFailsBeforeAnyProviderCall(t *testing.T) {
	criminal := provider.NewMockAdapter("criminal-v1", provider.CheckCriminalNational)
	o, consents, shutdown := newTestOrchestrator(t, criminal)
	defer shutdown()

	expires := time.Now().Add(24 * time.Hour)
	consents.Register(&consent.Consent{
		ConsentID: "consent-2",
		SubjectID: "subj-3",
		Scopes:    []consent.Scope{consent.ScopeEmploymentVerify},
		GrantedAt: time.Now(),
		ExpiresAt: &expires,
	})

	_, err := o.RunScreening(context.Background(), Request{
		ScreeningID:  "scrn-3",
		TenantID:     "tenant-a",
		Subject:      investigation.Subject{SubjectID: "subj-3", FullName: "Jane Doe"},
		DesiredTypes: []investigation.InfoType{investigation.TypeCriminal},
		Params:       usParams(),
	})

	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != FailureConsentMissing {
		t.Fatalf("expected CONSENT_MISSING, got %v", err)
	}
	found := false
	for _, sc := range serr.MissingScopes {
		if sc == consent.ScopeCriminalRecords {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected criminal_records listed as missing, got %v", serr.MissingScopes)
	}
	if criminal.Calls != 0 {
		t.Fatalf("expected no provider call before consent verification, got %d", criminal.Calls)
	}
}

func TestRunScreening_EUCreditBlockedOthersProceed(t *testing.T) {
	o, consents, shutdown := newTestOrchestrator(t,
		scriptedAdapter(t, "identity-v1", provider.CheckIdentityBasic, map[string]string{
			"full_name": "Erik Larsen", "dob": "1985-03-10",
		}),
		scriptedAdapter(t, "employment-v1", provider.CheckEmploymentVerify, map[string]string{
			"employer_name": "Nordisk AB",
		}),
	)
	defer shutdown()

	expires := time.Now().Add(24 * time.Hour)
	consents.Register(&consent.Consent{
		ConsentID: "consent-3",
		SubjectID: "subj-4",
		Scopes:    []consent.Scope{consent.ScopeBackgroundCheck},
		GrantedAt: time.Now(),
		ExpiresAt: &expires,
	})

	result, err := o.RunScreening(context.Background(), Request{
		ScreeningID: "scrn-4",
		TenantID:    "tenant-b",
		Subject:     investigation.Subject{SubjectID: "subj-4", FullName: "Erik Larsen"},
		DesiredTypes: []investigation.InfoType{
			investigation.TypeFinancial, investigation.TypeEmployment,
		},
		Params: investigation.ScreeningParams{
			Locale: compliance.LocaleEU,
			Role:   compliance.RoleStandard,
			Tier:   compliance.TierStandard,
		},
	})
	if err != nil {
		t.Fatalf("expected partial screening to proceed, got %v", err)
	}
	if len(result.BlockedChecks) != 1 || result.BlockedChecks[0].CheckType != provider.CheckCreditReport {
		t.Fatalf("expected exactly CREDIT_REPORT blocked, got %+v", result.BlockedChecks)
	}
	if result.TypeStates[investigation.TypeFinancial] != nil {
		t.Fatalf("blocked FINANCIAL should never be scheduled")
	}
	if result.TypeStates[investigation.TypeEmployment] == nil {
		t.Fatalf("expected EMPLOYMENT to run despite the credit block")
	}
}

func TestRunScreening_AllChecksBlockedFailsCompliance(t *testing.T) {
	o, consents, shutdown := newTestOrchestrator(t)
	defer shutdown()
	registerBasicConsent(consents, "subj-5")

	_, err := o.RunScreening(context.Background(), Request{
		ScreeningID:  "scrn-5",
		TenantID:     "tenant-b",
		Subject:      investigation.Subject{SubjectID: "subj-5", FullName: "Erik Larsen"},
		DesiredTypes: []investigation.InfoType{investigation.TypeFinancial},
		Params: investigation.ScreeningParams{
			Locale: compliance.LocaleEU,
			Role:   compliance.RoleStandard,
			Tier:   compliance.TierStandard,
		},
	})

	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != FailureComplianceAll {
		t.Fatalf("expected COMPLIANCE_BLOCK when every check is blocked, got %v", err)
	}
}

func TestRunScreening_EnhancedOnlyCheckBlockedOnStandardTier(t *testing.T) {
	o, consents, shutdown := newTestOrchestrator(t)
	defer shutdown()
	registerBasicConsent(consents, "subj-6")

	_, err := o.RunScreening(context.Background(), Request{
		ScreeningID:  "scrn-6",
		TenantID:     "tenant-a",
		Subject:      investigation.Subject{SubjectID: "subj-6", FullName: "Jane Doe"},
		DesiredTypes: []investigation.InfoType{investigation.TypeDigitalFootprint},
		Params:       usParams(),
	})

	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != FailureComplianceAll {
		t.Fatalf("expected tier gate to block the only requested check, got %v", err)
	}
	if len(serr.BlockedChecks) != 1 || serr.BlockedChecks[0].Restriction != compliance.RestrictionTierRestricted {
		t.Fatalf("expected a tier restriction on the blocked check, got %+v", serr.BlockedChecks)
	}
}

func TestRunScreening_CancelledContextMarksScreeningCancelled(t *testing.T) {
	o, consents, shutdown := newTestOrchestrator(t,
		provider.NewMockAdapter("identity-v1", provider.CheckIdentityBasic),
	)
	defer shutdown()
	registerBasicConsent(consents, "subj-7")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.RunScreening(ctx, Request{
		ScreeningID:  "scrn-7",
		TenantID:     "tenant-a",
		Subject:      investigation.Subject{SubjectID: "subj-7", FullName: "Jane Doe"},
		DesiredTypes: []investigation.InfoType{investigation.TypeIdentity},
		Params:       usParams(),
	})
	if err != nil {
		t.Fatalf("cancellation is not an error, got %v", err)
	}
	if result.Status != StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", result.Status)
	}
}

func TestSelectedTypes_PullsInDependencyClosureAndReconciliation(t *testing.T) {
	selected := selectedTypes([]investigation.InfoType{
		investigation.TypeEmployment, investigation.TypeEducation, investigation.TypeCriminal,
	})

	for _, it := range []investigation.InfoType{
		investigation.TypeIdentity, investigation.TypeEmployment, investigation.TypeEducation,
		investigation.TypeCriminal, investigation.TypeReconciliation,
	} {
		if !selected[it] {
			t.Fatalf("expected %s in selected set, got %v", it, selected)
		}
	}
	if selected[investigation.TypeSanctions] {
		t.Fatalf("SANCTIONS was never requested and is no one's dependency, got %v", selected)
	}
}
