package investigation

import (
	"fmt"
	"strings"

	"github.com/elile/screening-core/internal/provider"
)

// infoTypeCheckTypes lists every check type applicable to an
// information type, primary first. Some types fan out over more than
// one check (identity adds an SSN trace, criminal adds county-level
// searches); most map one-to-one.
var infoTypeCheckTypes = map[InfoType][]provider.CheckType{
	TypeIdentity:         {provider.CheckIdentityBasic, provider.CheckSSNTrace},
	TypeEmployment:       {provider.CheckEmploymentVerify},
	TypeEducation:        {provider.CheckEducationVerify},
	TypeCriminal:         {provider.CheckCriminalNational, provider.CheckCriminalCounty},
	TypeCivil:            {provider.CheckCivilLitigation},
	TypeFinancial:        {provider.CheckCreditReport},
	TypeLicenses:         {provider.CheckLicenseVerify},
	TypeRegulatory:       {provider.CheckRegulatoryEnforce},
	TypeSanctions:        {provider.CheckSanctionsOFAC},
	TypeAdverseMedia:     {provider.CheckAdverseMedia},
	TypeDigitalFootprint: {provider.CheckDigitalFootprint},
	TypeNetworkD2:        {provider.CheckNetworkD2},
	TypeNetworkD3:        {provider.CheckNetworkD3},
}

// checkTypesFor returns the applicable check types for an information
// type, falling back to the dependency table's primary check.
func checkTypesFor(infoType InfoType) []provider.CheckType {
	if cts, ok := infoTypeCheckTypes[infoType]; ok {
		return cts
	}
	if ct := TypeDependencies[infoType].PrimaryCheckType; ct != "" {
		return []provider.CheckType{ct}
	}
	return nil
}

// degreeToLicense maps degree designations onto licensing-board search
// terms, so a confirmed J.D. steers a license search toward bar
// registries rather than a blind name lookup.
var degreeToLicense = map[string][]string{
	"j.d.":               {"bar", "attorney"},
	"juris doctor":       {"bar", "attorney"},
	"m.d.":               {"medical", "physician"},
	"doctor of medicine": {"medical", "physician"},
	"d.o.":               {"medical", "osteopathic"},
	"cpa":                {"accounting", "cpa"},
	"mba":                {"financial advisor", "cfp"},
	"rn":                 {"nursing", "rn"},
	"pharmd":             {"pharmacy", "pharmacist"},
}

// titleToRegulator maps job-title keywords onto the regulators whose
// enforcement databases are worth searching for that career.
var titleToRegulator = map[string][]string{
	"broker":         {"FINRA", "SEC"},
	"trader":         {"FINRA", "SEC", "CFTC"},
	"banker":         {"OCC", "FDIC"},
	"investment":     {"SEC", "FINRA"},
	"insurance":      {"state insurance", "NAIC"},
	"healthcare":     {"CMS", "HHS", "medical board"},
	"pharmaceutical": {"FDA"},
	"energy":         {"FERC", "NRC"},
}

// QueryPlanner builds the initial batch of SearchQuery values for an
// information type's first iteration: one query per applicable check
// type per provider capable of answering it, plus enriched variants
// (name variants, county-targeted criminal searches) derived from what
// earlier phases already confirmed.
type QueryPlanner struct {
	registry *provider.Registry
}

func NewQueryPlanner(registry *provider.Registry) *QueryPlanner {
	return &QueryPlanner{registry: registry}
}

// Plan builds the first-iteration queries for an information type,
// seeded with the Subject's identifiers and whatever the KnowledgeBase
// accumulated in earlier phases, enriched per information type.
func (p *QueryPlanner) Plan(infoType InfoType, subject Subject, kb *KnowledgeBase, iterationNumber int) []SearchQuery {
	checkTypes := checkTypesFor(infoType)
	if len(checkTypes) == 0 {
		return nil
	}

	var queries []SearchQuery
	seen := make(map[string]bool)
	add := func(q SearchQuery) {
		sig := q.ProviderID + "|" + string(q.CheckType) + "|" + canonical(q.SearchParams["full_name"]) + "|" + q.SearchParams["county"]
		if seen[sig] {
			return
		}
		seen[sig] = true
		q.QueryID = fmt.Sprintf("%s-%d-%d", infoType, iterationNumber, len(queries))
		queries = append(queries, q)
	}

	for _, checkType := range checkTypes {
		for _, adapter := range p.registry.ForCheck(checkType) {
			params := buildSearchParams(subject, kb)
			enrichForType(infoType, params, kb)
			add(SearchQuery{
				InfoType:        infoType,
				QueryType:       QueryInitial,
				ProviderID:      adapter.ID(),
				CheckType:       checkType,
				SearchParams:    params,
				IterationNumber: iterationNumber,
				Priority:        GapPriorityOther,
			})

			// County-level criminal searches get one targeted query per
			// known county, since county court records don't surface in
			// the national index.
			if checkType == provider.CheckCriminalCounty {
				for _, county := range kb.snapshotCounties() {
					countyParams := buildSearchParams(subject, kb)
					enrichForType(infoType, countyParams, kb)
					countyParams["county"] = county
					add(SearchQuery{
						InfoType:        infoType,
						QueryType:       QueryEnriched,
						ProviderID:      adapter.ID(),
						CheckType:       checkType,
						SearchParams:    countyParams,
						IterationNumber: iterationNumber,
						Priority:        GapPriorityOther,
						EnrichedFrom:    []string{string(TypeIdentity)},
					})
				}
			}
		}
	}

	// Confirmed name variants beyond the subject's stated name each get
	// their own query against the primary check type.
	primary := checkTypes[0]
	for _, variant := range kb.snapshotNames() {
		if canonical(variant) == canonical(subject.FullName) {
			continue
		}
		for _, adapter := range p.registry.ForCheck(primary) {
			params := buildSearchParams(subject, kb)
			enrichForType(infoType, params, kb)
			params["full_name"] = variant
			add(SearchQuery{
				InfoType:        infoType,
				QueryType:       QueryEnriched,
				ProviderID:      adapter.ID(),
				CheckType:       primary,
				SearchParams:    params,
				IterationNumber: iterationNumber,
				Priority:        GapPriorityOther,
				EnrichedFrom:    []string{string(TypeIdentity)},
			})
		}
	}

	return queries
}

// buildSearchParams flattens the subject's identifiers (plus the
// KnowledgeBase's confirmed basics) into the provider-agnostic
// key/value map every Adapter.Execute accepts as Request.Params.
func buildSearchParams(subject Subject, kb *KnowledgeBase) map[string]string {
	params := map[string]string{
		"full_name": subject.FullName,
	}
	if subject.NationalIDLast4 != "" {
		params["ssn_last4"] = subject.NationalIDLast4
	}
	if subject.DOB != nil {
		params["dob"] = subject.DOB.Format("2006-01-02")
	}
	if len(subject.Addresses) > 0 {
		a := subject.Addresses[0]
		params["address_line1"] = a.Line1
		params["address_city"] = a.City
		params["address_state"] = a.State
		params["address_zip"] = a.Zip
	}

	if kb == nil {
		return params
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if params["full_name"] == "" && len(kb.ConfirmedNames) > 0 {
		params["full_name"] = kb.ConfirmedNames[0]
	}
	if params["dob"] == "" && kb.ConfirmedDOB != nil {
		params["dob"] = kb.ConfirmedDOB.Format("2006-01-02")
	}
	if params["ssn_last4"] == "" && kb.ConfirmedSSNLast4 != "" {
		params["ssn_last4"] = kb.ConfirmedSSNLast4
	}
	return params
}

// enrichForType applies the per-information-type enrichment rules:
// which accumulated knowledge each kind of search can actually use.
func enrichForType(infoType InfoType, params map[string]string, kb *KnowledgeBase) {
	if kb == nil {
		return
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()

	switch infoType {
	case TypeCriminal:
		// County and state jurisdiction targeting from address history
		// and employer locations.
		setCSV(params, "known_counties", kb.KnownCounties)
		setCSV(params, "known_states", kb.KnownStates)
		var locations []string
		for _, e := range kb.Employers {
			if e.Location != "" {
				locations = append(locations, e.Location)
			}
		}
		setCSV(params, "employer_locations", locations)

	case TypeCivil:
		// Employer names surface employment-related litigation.
		setCSV(params, "employer_context", employerNamesLocked(kb))
		setCSV(params, "known_states", kb.KnownStates)

	case TypeFinancial:
		setCSV(params, "known_states", kb.KnownStates)

	case TypeLicenses:
		// Confirmed degrees steer the search toward the right boards.
		var boards []string
		for _, school := range kb.Schools {
			for degree, terms := range degreeToLicense {
				if school.Degree != "" && strings.Contains(strings.ToLower(school.Degree), degree) {
					boards = append(boards, terms...)
				}
			}
		}
		setCSV(params, "license_boards", boards)
		setCSV(params, "known_states", kb.KnownStates)

	case TypeRegulatory:
		// Job titles name the regulators whose actions to search.
		var regulators []string
		for _, e := range kb.Employers {
			title := strings.ToLower(e.Title)
			if title == "" {
				continue
			}
			for keyword, regs := range titleToRegulator {
				if strings.Contains(title, keyword) {
					regulators = append(regulators, regs...)
				}
			}
		}
		setCSV(params, "regulators", regulators)

	case TypeAdverseMedia:
		// Media searches use every association: employers, schools,
		// locations, and organizations surfaced along the way.
		context := employerNamesLocked(kb)
		for _, s := range kb.Schools {
			context = append(context, s.InstitutionName)
		}
		for _, ent := range kb.DiscoveredEntities {
			if ent.Kind == "organization" {
				context = append(context, ent.Name)
			}
		}
		setCSV(params, "context_terms", context)
		setCSV(params, "known_states", kb.KnownStates)

	case TypeDigitalFootprint:
		// Professional presence: employer names, titles, schools.
		context := employerNamesLocked(kb)
		for _, e := range kb.Employers {
			if e.Title != "" {
				context = append(context, e.Title)
			}
		}
		for _, s := range kb.Schools {
			context = append(context, s.InstitutionName)
		}
		setCSV(params, "context_terms", context)

	case TypeNetworkD2, TypeNetworkD3:
		// Network expansion targets the people and organizations
		// discovered so far.
		var people, orgs []string
		for _, ent := range kb.DiscoveredEntities {
			if ent.Kind == "person" {
				people = append(people, ent.Name)
			} else {
				orgs = append(orgs, ent.Name)
			}
		}
		setCSV(params, "target_people", people)
		setCSV(params, "target_orgs", orgs)

	case TypeEmployment:
		setCSV(params, "known_employers", employerNamesLocked(kb))

	case TypeEducation:
		var schools []string
		for _, s := range kb.Schools {
			schools = append(schools, s.InstitutionName)
		}
		setCSV(params, "known_schools", schools)
	}
}

func employerNamesLocked(kb *KnowledgeBase) []string {
	names := make([]string, 0, len(kb.Employers))
	for _, e := range kb.Employers {
		names = append(names, e.EmployerName)
	}
	return names
}

func setCSV(params map[string]string, key string, values []string) {
	if len(values) == 0 {
		return
	}
	params[key] = strings.Join(values, ",")
}
