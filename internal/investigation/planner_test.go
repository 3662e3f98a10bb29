package investigation

import (
	"testing"

	"github.com/elile/screening-core/internal/provider"
)

func TestPlan_OneQueryPerRegisteredProvider(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(provider.NewMockAdapter("criminal-v1", provider.CheckCriminalNational))
	reg.Register(provider.NewMockAdapter("criminal-v2", provider.CheckCriminalNational))

	planner := NewQueryPlanner(reg)
	subject := Subject{FullName: "Jane Doe", NationalIDLast4: "1234"}

	queries := planner.Plan(TypeCriminal, subject, NewKnowledgeBase(), 1)
	if len(queries) != 2 {
		t.Fatalf("expected one query per registered provider, got %d", len(queries))
	}
	for _, q := range queries {
		if q.SearchParams["full_name"] != "Jane Doe" {
			t.Fatalf("expected subject name seeded into search params, got %+v", q.SearchParams)
		}
	}
}

func TestPlan_CriminalEnrichmentTargetsKnownCounties(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(provider.NewMockAdapter("criminal-v1", provider.CheckCriminalNational, provider.CheckCriminalCounty))

	kb := NewKnowledgeBase()
	kb.AddAddress(Address{Line1: "1 Main St", City: "Austin", State: "TX", County: "Travis"})
	kb.AddAddress(Address{Line1: "2 Oak Ave", City: "Dallas", State: "TX", County: "Dallas"})

	planner := NewQueryPlanner(reg)
	queries := planner.Plan(TypeCriminal, Subject{FullName: "Jane Doe"}, kb, 2)

	// One national query, one base county query, plus one targeted query
	// per known county.
	countyTargeted := 0
	for _, q := range queries {
		if q.SearchParams["county"] != "" {
			countyTargeted++
			if q.QueryType != QueryEnriched {
				t.Fatalf("expected county-targeted queries marked ENRICHED, got %s", q.QueryType)
			}
		}
		if q.SearchParams["known_counties"] == "" {
			t.Fatalf("expected county enrichment on every criminal query, got %+v", q.SearchParams)
		}
	}
	if countyTargeted != 2 {
		t.Fatalf("expected one targeted query per known county, got %d of %d", countyTargeted, len(queries))
	}
}

func TestPlan_LicenseEnrichmentMapsDegreeToBoards(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(provider.NewMockAdapter("license-v1", provider.CheckLicenseVerify))

	kb := NewKnowledgeBase()
	kb.AddSchool(School{InstitutionName: "State Law School", Degree: "J.D."})

	planner := NewQueryPlanner(reg)
	queries := planner.Plan(TypeLicenses, Subject{FullName: "Jane Doe"}, kb, 1)
	if len(queries) == 0 {
		t.Fatalf("expected at least one license query")
	}
	if boards := queries[0].SearchParams["license_boards"]; boards != "bar,attorney" {
		t.Fatalf("expected J.D. to steer the search toward bar registries, got %q", boards)
	}
}

func TestPlan_RegulatoryEnrichmentMapsTitleToRegulators(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(provider.NewMockAdapter("regulatory-v1", provider.CheckRegulatoryEnforce))

	kb := NewKnowledgeBase()
	kb.AddEmployer(Employer{EmployerName: "Apex Capital", Title: "Securities Broker"})

	planner := NewQueryPlanner(reg)
	queries := planner.Plan(TypeRegulatory, Subject{FullName: "Jane Doe"}, kb, 1)
	if len(queries) == 0 {
		t.Fatalf("expected at least one regulatory query")
	}
	if regs := queries[0].SearchParams["regulators"]; regs != "FINRA,SEC" {
		t.Fatalf("expected broker title to target FINRA/SEC, got %q", regs)
	}
}

func TestPlan_NameVariantsBecomeEnrichedQueries(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(provider.NewMockAdapter("adverse-v1", provider.CheckAdverseMedia))

	kb := NewKnowledgeBase()
	kb.AddName("Jane Doe")
	kb.AddName("Jane A. Smith")

	planner := NewQueryPlanner(reg)
	queries := planner.Plan(TypeAdverseMedia, Subject{FullName: "Jane Doe"}, kb, 2)

	variant := false
	for _, q := range queries {
		if q.SearchParams["full_name"] == "Jane A. Smith" && q.QueryType == QueryEnriched {
			variant = true
		}
	}
	if !variant {
		t.Fatalf("expected an enriched query for the confirmed name variant, got %+v", queries)
	}
}

func TestPlan_UnknownInfoTypeReturnsNoQueries(t *testing.T) {
	reg := provider.NewRegistry()
	planner := NewQueryPlanner(reg)
	queries := planner.Plan(InfoType("NOT_A_TYPE"), Subject{}, NewKnowledgeBase(), 1)
	if len(queries) != 0 {
		t.Fatalf("expected no queries for an unknown info type, got %d", len(queries))
	}
}
