package investigation

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// DeceptionScorer scores how suspicious a detected Inconsistency looks,
// independent of its plain severity. A pluggable interface since the
// scoring model (keyword heuristics today, something learned later) is
// expected to change without touching ResultAssessor's control flow.
type DeceptionScorer interface {
	Score(inc Inconsistency) float64
}

// HeuristicDeceptionScorer is the default DeceptionScorer: major
// inconsistencies on identity-defining fields (name, DOB, SSN) score
// higher than minor spelling drift elsewhere.
type HeuristicDeceptionScorer struct{}

func (HeuristicDeceptionScorer) Score(inc Inconsistency) float64 {
	base := 0.2
	if inc.Severity == SeverityMajor {
		base = 0.6
	}
	switch strings.ToLower(inc.Field) {
	case "dob", "ssn_last4", "full_name":
		base += 0.2
	}
	if base > 1.0 {
		base = 1.0
	}
	return base
}

// extractionField names one field ResultAssessor looks for in a
// provider's normalized JSON payload, and the gap it raises when the
// field is absent across every result for an information type. Gap
// names are the contract between assessor and refiner: every GapType
// emitted here has a matching entry in the refiner's strategy table.
type extractionField struct {
	FieldName string
	FactType  string
	Required  bool
	GapType   string
}

// fieldExtraction is the per-information-type map of which normalized
// fields ResultAssessor pulls into Facts, using the same field names
// QueryPlanner seeds into search params so a provider's echoed
// confirmation round-trips cleanly.
var fieldExtraction = map[InfoType][]extractionField{
	TypeIdentity: {
		{FieldName: "full_name", FactType: "name", Required: true, GapType: "no_identity_match"},
		{FieldName: "dob", FactType: "dob", GapType: "missing_dob"},
		{FieldName: "ssn_last4", FactType: "ssn_last4", GapType: "missing_ssn_last4"},
		{FieldName: "address", FactType: "address", GapType: "missing_address"},
	},
	TypeEmployment: {
		{FieldName: "employer_name", FactType: "employer", Required: true, GapType: "no_employment_record"},
		{FieldName: "title", FactType: "title", GapType: "missing_title"},
		{FieldName: "start_date", FactType: "employment_start", GapType: "missing_start_date"},
		{FieldName: "end_date", FactType: "employment_end", GapType: "missing_end_date"},
	},
	TypeEducation: {
		{FieldName: "institution_name", FactType: "school", Required: true, GapType: "no_education_record"},
		{FieldName: "degree", FactType: "degree", GapType: "missing_degree"},
	},
	TypeCriminal: {
		{FieldName: "record_found", FactType: "criminal_record", Required: true, GapType: "no_criminal_record"},
		{FieldName: "offense_type", FactType: "offense_type", GapType: "missing_offense_type"},
		{FieldName: "disposition_date", FactType: "disposition_date", GapType: "missing_disposition_date"},
	},
	TypeCivil: {
		{FieldName: "case_found", FactType: "civil_case", Required: true, GapType: "no_civil_record"},
		{FieldName: "case_type", FactType: "case_type", GapType: "missing_case_type"},
	},
	TypeFinancial: {
		{FieldName: "credit_summary", FactType: "credit_summary", Required: true, GapType: "no_credit_record"},
		{FieldName: "bankruptcy_flag", FactType: "bankruptcy_flag", GapType: "missing_bankruptcy_flag"},
	},
	TypeLicenses: {
		{FieldName: "license_type", FactType: "license_type", Required: true, GapType: "no_license_record"},
		{FieldName: "license_number", FactType: "license_number", GapType: "missing_license_number"},
		{FieldName: "status", FactType: "license_status", GapType: "missing_license_status"},
	},
	TypeRegulatory: {
		{FieldName: "action_found", FactType: "regulatory_action", Required: true, GapType: "no_regulatory_action"},
	},
	TypeSanctions: {
		{FieldName: "match_found", FactType: "sanctions_match", Required: true, GapType: "no_sanctions_match"},
	},
	TypeAdverseMedia: {
		{FieldName: "article_found", FactType: "adverse_media", Required: true, GapType: "no_adverse_media"},
	},
	TypeDigitalFootprint: {
		{FieldName: "profile_found", FactType: "digital_profile", Required: true, GapType: "no_digital_profile"},
		{FieldName: "handle", FactType: "handle", GapType: "missing_handle"},
	},
	TypeNetworkD2: {
		{FieldName: "connection_name", FactType: "connection", Required: true, GapType: "no_network_connections"},
	},
	TypeNetworkD3: {
		{FieldName: "connection_name", FactType: "connection", Required: true, GapType: "no_network_connections"},
	},
}

// ResultAssessor folds a batch of QueryResults into facts, detects
// gaps and cross-source inconsistencies, and surfaces secondary
// entities for the cross-screening index — the "Assess" step of the
// SAR loop.
type ResultAssessor struct {
	deception DeceptionScorer
	log       *slog.Logger
}

func NewResultAssessor(deception DeceptionScorer, log *slog.Logger) *ResultAssessor {
	if deception == nil {
		deception = HeuristicDeceptionScorer{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &ResultAssessor{deception: deception, log: log}
}

// Assess processes one iteration's QueryResults for an information
// type, updates kb in place, and returns the new facts, gaps and
// inconsistencies discovered this iteration.
func (a *ResultAssessor) Assess(infoType InfoType, results []QueryResult, kb *KnowledgeBase) AssessmentResult {
	out := AssessmentResult{InfoType: infoType}

	// fieldValues[fieldName][providerID] = value, used both to extract
	// facts and to spot cross-source disagreement on the same field.
	fieldValues := make(map[string]map[string]string)
	anySuccess := false

	for _, res := range results {
		if res.Err != nil {
			continue
		}
		anySuccess = true

		var payload map[string]string
		if err := json.Unmarshal(res.Response.NormalizedData, &payload); err != nil {
			a.log.Warn("assessor: could not parse normalized payload",
				"info_type", infoType, "provider", res.Query.ProviderID, "err", err)
			continue
		}

		for field, value := range payload {
			if value == "" {
				continue
			}
			if fieldValues[field] == nil {
				fieldValues[field] = make(map[string]string)
			}
			fieldValues[field][res.Query.ProviderID] = value
		}
	}

	for _, ext := range fieldExtraction[infoType] {
		sources, ok := fieldValues[ext.FieldName]
		if !ok || len(sources) == 0 {
			priority := GapPriorityMissing
			description := ext.FieldName + " not yet confirmed"
			if ext.Required {
				priority = GapPriorityNoData
				description = "no provider returned " + ext.FieldName
			}
			out.Gaps = append(out.Gaps, Gap{
				GapType:     ext.GapType,
				Description: description,
				InfoType:    infoType,
				Priority:    priority,
				CanQuery:    true,
			})
			continue
		}

		a.recordFacts(ext, sources, kb, &out)
		a.detectInconsistency(ext.FieldName, sources, &out)
	}

	if !anySuccess {
		// Not queryable: a refinement against the same providers that all
		// just failed is a retry, and retries belong to the router.
		out.Gaps = append(out.Gaps, Gap{
			GapType:     "no_" + strings.ToLower(string(infoType)) + "_data",
			Description: "every query for this information type failed",
			InfoType:    infoType,
			Priority:    GapPriorityNoData,
			CanQuery:    false,
		})
	}

	return out
}

// clearFactTypes maps a record-flag fact type onto its "nothing found"
// counterpart: a provider answering "clear" confirms the search ran and
// came back empty, which is evidence, not an adverse event — the
// classifier only treats the positive form as risk-relevant.
var clearFactTypes = map[string]string{
	"criminal_record":   "criminal_clear",
	"civil_case":        "civil_clear",
	"regulatory_action": "regulatory_clear",
	"sanctions_match":   "sanctions_clear",
	"adverse_media":     "adverse_media_clear",
}

func isClearValue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "clear", "none", "no", "false", "not_found", "0":
		return true
	}
	return false
}

func (a *ResultAssessor) recordFacts(ext extractionField, sources map[string]string, kb *KnowledgeBase, out *AssessmentResult) {
	now := time.Now()
	for providerID, value := range sources {
		factType := ext.FactType
		if clearType, ok := clearFactTypes[ext.FactType]; ok && isClearValue(value) {
			factType = clearType
		}
		fact := Fact{
			FactID:         providerID + "-" + ext.FieldName,
			FactType:       factType,
			Value:          value,
			SourceProvider: providerID,
			Confidence:     0.8,
			DiscoveredAt:   now,
		}
		out.NewFacts = append(out.NewFacts, fact)

		switch ext.FactType {
		case "name":
			kb.AddName(value)
		case "employer":
			kb.AddEmployer(Employer{EmployerName: value})
			out.SecondaryEntities = append(out.SecondaryEntities, DiscoveredEntity{Kind: "organization", Name: value})
		case "school":
			kb.AddSchool(School{InstitutionName: value})
		case "license_type":
			kb.AddLicense(License{LicenseType: value})
		case "connection":
			kb.AddDiscoveredEntity(DiscoveredEntity{Kind: "person", Name: value})
			out.SecondaryEntities = append(out.SecondaryEntities, DiscoveredEntity{Kind: "person", Name: value})
		}
	}

}

// detectInconsistency compares every pair of sources reporting the same
// field and records a disagreement, grading severity by a simple
// heuristic: a case-insensitive, whitespace-trimmed equal value is no
// inconsistency at all; a value that parses as a date more than a year
// apart from another is MAJOR; everything else that merely differs in
// spelling or formatting is MINOR.
func (a *ResultAssessor) detectInconsistency(field string, sources map[string]string, out *AssessmentResult) {
	type sourced struct {
		provider string
		value    string
	}
	var list []sourced
	for p, v := range sources {
		list = append(list, sourced{provider: p, value: v})
	}
	for i := 0; i < len(list); i++ {
		for j := i + 1; j < len(list); j++ {
			a1, a2 := list[i], list[j]
			if strings.EqualFold(strings.TrimSpace(a1.value), strings.TrimSpace(a2.value)) {
				continue
			}

			severity := SeverityMinor
			if t1, err1 := time.Parse("2006-01-02", a1.value); err1 == nil {
				if t2, err2 := time.Parse("2006-01-02", a2.value); err2 == nil {
					diff := t1.Sub(t2)
					if diff < 0 {
						diff = -diff
					}
					if diff > 365*24*time.Hour {
						severity = SeverityMajor
					}
				}
			}

			inc := Inconsistency{
				Field:           field,
				SourceAProvider: a1.provider,
				SourceAValue:    a1.value,
				SourceBProvider: a2.provider,
				SourceBValue:    a2.value,
				Severity:        severity,
				Kind:            "cross_source_disagreement",
			}
			inc.DeceptionScore = a.deception.Score(inc)
			out.Inconsistencies = append(out.Inconsistencies, inc)
		}
	}
}
