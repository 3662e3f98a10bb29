package investigation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/elile/screening-core/internal/provider"
)

// gapStrategy names the check types a refinement for one gap kind
// should target, the focus its search params carry, and a priority boost
// that Refine does not apply (queries take the gap's own Priority). The
// check types let a refinement retarget: a missing
// address is chased through an SSN trace, not a repeat of whatever
// check originally surfaced the gap.
type gapStrategy struct {
	CheckTypes    []provider.CheckType
	Focus         string
	PriorityBoost int
}

// gapStrategies is keyed by gap type; keys are the contract with the
// assessor's gap emission (every gap it can emit has an entry here).
var gapStrategies = map[string]gapStrategy{
	"no_identity_match":      {CheckTypes: []provider.CheckType{provider.CheckIdentityBasic, provider.CheckSSNTrace}, Focus: "alternate_identifiers", PriorityBoost: 3},
	"no_criminal_record":     {CheckTypes: []provider.CheckType{provider.CheckCriminalNational, provider.CheckCriminalCounty}, Focus: "alias_search", PriorityBoost: 3},
	"no_education_record":    {CheckTypes: []provider.CheckType{provider.CheckEducationVerify}, Focus: "alternate_institution_name", PriorityBoost: 2},
	"no_employment_record":   {CheckTypes: []provider.CheckType{provider.CheckEmploymentVerify}, Focus: "alternate_employer_name", PriorityBoost: 2},
	"no_civil_record":        {CheckTypes: []provider.CheckType{provider.CheckCivilLitigation}, Focus: "alias_search", PriorityBoost: 2},
	"no_credit_record":       {CheckTypes: []provider.CheckType{provider.CheckCreditReport}, Focus: "alternate_identifiers", PriorityBoost: 2},
	"no_sanctions_match":     {CheckTypes: []provider.CheckType{provider.CheckSanctionsOFAC}, Focus: "alternate_identifiers", PriorityBoost: 3},
	"no_license_record":      {CheckTypes: []provider.CheckType{provider.CheckLicenseVerify}, Focus: "license_number_lookup", PriorityBoost: 2},
	"no_adverse_media":       {CheckTypes: []provider.CheckType{provider.CheckAdverseMedia}, Focus: "name_variant_search", PriorityBoost: 1},
	"no_regulatory_action":   {CheckTypes: []provider.CheckType{provider.CheckRegulatoryEnforce}, Focus: "alternate_identifiers", PriorityBoost: 2},
	"no_digital_profile":     {CheckTypes: []provider.CheckType{provider.CheckDigitalFootprint}, Focus: "handle_search", PriorityBoost: 1},
	"no_network_connections": {CheckTypes: []provider.CheckType{provider.CheckNetworkD2}, Focus: "associate_expansion", PriorityBoost: 1},

	"missing_dob":              {CheckTypes: []provider.CheckType{provider.CheckIdentityBasic}, Focus: "dob_verification", PriorityBoost: 2},
	"missing_ssn_last4":        {CheckTypes: []provider.CheckType{provider.CheckSSNTrace}, Focus: "ssn_verification", PriorityBoost: 1},
	"missing_address":          {CheckTypes: []provider.CheckType{provider.CheckSSNTrace, provider.CheckIdentityBasic}, Focus: "address_history_lookup", PriorityBoost: 1},
	"missing_title":            {CheckTypes: []provider.CheckType{provider.CheckEmploymentVerify}, Focus: "employment_detail_lookup", PriorityBoost: 1},
	"missing_start_date":       {CheckTypes: []provider.CheckType{provider.CheckEmploymentVerify}, Focus: "employment_date_range", PriorityBoost: 1},
	"missing_end_date":         {CheckTypes: []provider.CheckType{provider.CheckEmploymentVerify}, Focus: "employment_date_range", PriorityBoost: 1},
	"missing_degree":           {CheckTypes: []provider.CheckType{provider.CheckEducationVerify}, Focus: "degree_confirmation", PriorityBoost: 1},
	"missing_offense_type":     {CheckTypes: []provider.CheckType{provider.CheckCriminalCounty}, Focus: "case_detail_lookup", PriorityBoost: 1},
	"missing_disposition_date": {CheckTypes: []provider.CheckType{provider.CheckCriminalCounty}, Focus: "case_detail_lookup", PriorityBoost: 1},
	"missing_case_type":        {CheckTypes: []provider.CheckType{provider.CheckCivilLitigation}, Focus: "case_detail_lookup", PriorityBoost: 1},
	"missing_bankruptcy_flag":  {CheckTypes: []provider.CheckType{provider.CheckCreditReport}, Focus: "bankruptcy_record_search", PriorityBoost: 1},
	"missing_license_number":   {CheckTypes: []provider.CheckType{provider.CheckLicenseVerify}, Focus: "license_detail_lookup", PriorityBoost: 1},
	"missing_license_status":   {CheckTypes: []provider.CheckType{provider.CheckLicenseVerify}, Focus: "license_detail_lookup", PriorityBoost: 1},
	"missing_handle":           {CheckTypes: []provider.CheckType{provider.CheckDigitalFootprint}, Focus: "handle_search", PriorityBoost: 1},
}

const (
	maxQueriesPerGap = 3
	maxTotalQueries  = 15
)

// QueryRefiner turns the Gaps an iteration's ResultAssessor surfaced
// into the next iteration's targeted SearchQuery batch. Gaps are
// prioritized no_* (category 1) before missing_* (category 2) before
// everything else (category 3), sub-sorted by the gap's own Priority,
// then capped per-gap and in total so one noisy information type can't
// starve the rest of the screening's query budget.
type QueryRefiner struct {
	planner *QueryPlanner
}

func NewQueryRefiner(planner *QueryPlanner) *QueryRefiner {
	return &QueryRefiner{planner: planner}
}

func gapCategory(gapType string) int {
	switch {
	case len(gapType) >= 3 && gapType[:3] == "no_":
		return 1
	case len(gapType) >= 8 && gapType[:8] == "missing_":
		return 2
	default:
		return 3
	}
}

// Refine builds the next iteration's queries from the previous
// iteration's gaps: one query per check type its strategy targets,
// capped per gap, deduplicated by a signature over gap type + check
// type + focus so re-running the same refinement twice in one
// iteration is a no-op. Gaps with no strategy entry fall back to the
// information type's own check types.
func (r *QueryRefiner) Refine(infoType InfoType, gaps []Gap, subject Subject, kb *KnowledgeBase, iterationNumber int) []SearchQuery {
	candidates := make([]Gap, 0, len(gaps))
	for _, g := range gaps {
		if g.CanQuery {
			candidates = append(candidates, g)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := gapCategory(candidates[i].GapType), gapCategory(candidates[j].GapType)
		if ci != cj {
			return ci < cj
		}
		return candidates[i].Priority < candidates[j].Priority
	})

	seenSignatures := make(map[string]bool)
	perGapCount := make(map[string]int)

	var queries []SearchQuery
	for _, gap := range candidates {
		if len(queries) >= maxTotalQueries {
			break
		}

		strategy, ok := gapStrategies[gap.GapType]
		if !ok {
			strategy = gapStrategy{CheckTypes: checkTypesFor(infoType), Focus: gap.GapType}
		}

		for _, checkType := range strategy.CheckTypes {
			if len(queries) >= maxTotalQueries || perGapCount[gap.GapType] >= maxQueriesPerGap {
				break
			}

			sig := gapSignature(infoType, gap.GapType, strategy.Focus, checkType)
			if seenSignatures[sig] {
				continue
			}
			seenSignatures[sig] = true
			perGapCount[gap.GapType]++

			params := buildSearchParams(subject, kb)
			enrichForType(infoType, params, kb)
			params["refinement_focus"] = strategy.Focus

			queries = append(queries, SearchQuery{
				QueryID:         fmt.Sprintf("%s-refine-%d-%d", infoType, iterationNumber, len(queries)),
				InfoType:        infoType,
				QueryType:       QueryGapFill,
				CheckType:       checkType,
				SearchParams:    params,
				IterationNumber: iterationNumber,
				Priority:        gap.Priority,
				TargetingGap:    gap.GapType,
			})
		}
	}
	return queries
}

func gapSignature(infoType InfoType, gapType, focus string, checkType provider.CheckType) string {
	h := sha256.Sum256([]byte(string(infoType) + "|" + gapType + "|" + focus + "|" + string(checkType)))
	return hex.EncodeToString(h[:8])
}
