package risk

import (
	"log/slog"
	"strings"

	"github.com/elile/screening-core/internal/compliance"
	"github.com/elile/screening-core/internal/investigation"
)

// roleRelevance scores how relevant a finding category is to a given
// role category, defaulting unknown combinations to 0.5 rather than 0
// so an unmapped role never silently erases a finding's weight.
var roleRelevance = map[compliance.RoleCategory]map[investigation.FindingCategory]float64{
	compliance.RoleFinancial: {
		investigation.CategoryFinancial:    1.0,
		investigation.CategoryCriminal:     0.9,
		investigation.CategoryRegulatory:   1.0,
		investigation.CategoryVerification: 0.8,
	},
	compliance.RoleExecutive: {
		investigation.CategoryCriminal:    1.0,
		investigation.CategoryRegulatory:  1.0,
		investigation.CategoryReputation:  0.9,
		investigation.CategoryFinancial:   0.8,
	},
	compliance.RoleGovernment: {
		investigation.CategoryCriminal:   1.0,
		investigation.CategoryRegulatory: 1.0,
		investigation.CategoryNetwork:    0.8,
	},
	compliance.RoleHealthcare: {
		investigation.CategoryCriminal:     1.0,
		investigation.CategoryVerification: 1.0,
		investigation.CategoryRegulatory:   0.9,
	},
	compliance.RoleSecurity: {
		investigation.CategoryCriminal: 1.0,
		investigation.CategoryNetwork:  0.9,
	},
	compliance.RoleTransportation: {
		investigation.CategoryCriminal:     1.0,
		investigation.CategoryVerification: 0.9,
	},
	compliance.RoleEducation: {
		investigation.CategoryCriminal:     1.0,
		investigation.CategoryVerification: 0.8,
	},
	compliance.RoleStandard: {
		investigation.CategoryCriminal:     0.8,
		investigation.CategoryVerification: 0.7,
	},
}

// Classifier is the FindingClassifier: it turns a SAR loop's
// accumulated facts into risk-scorable Findings and fills in
// role-relative relevance before RiskScorer weighs them.
type Classifier struct {
	log *slog.Logger
}

func NewClassifier(log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{log: log}
}

// factClassification maps a fact type onto the finding shape it
// produces; facts that never represent a risk-relevant event (plain
// identity confirmations, employer names) are not listed and are
// skipped by Classify.
var factClassification = map[string]struct {
	Category investigation.FindingCategory
	Severity investigation.FindingSeverity
}{
	"criminal_record":   {Category: investigation.CategoryCriminal, Severity: investigation.FindingHigh},
	"civil_case":        {Category: investigation.CategoryVerification, Severity: investigation.FindingMedium},
	"regulatory_action":  {Category: investigation.CategoryRegulatory, Severity: investigation.FindingHigh},
	"sanctions_match":    {Category: investigation.CategoryRegulatory, Severity: investigation.FindingCritical},
	"adverse_media":      {Category: investigation.CategoryReputation, Severity: investigation.FindingMedium},
	"bankruptcy_flag":    {Category: investigation.CategoryFinancial, Severity: investigation.FindingMedium},
	"license_status":     {Category: investigation.CategoryVerification, Severity: investigation.FindingLow},
}

// Classify converts facts and detected inconsistencies into Findings,
// scoped to role. Inconsistencies become behavioral findings when their
// deception score crosses a threshold worth flagging for human review.
func (c *Classifier) Classify(facts []investigation.Fact, inconsistencies []investigation.Inconsistency, role compliance.RoleCategory) []investigation.Finding {
	var findings []investigation.Finding

	corroboratedTypes := corroborationByFactType(facts)

	for _, f := range facts {
		shape, ok := factClassification[f.FactType]
		if !ok {
			continue
		}
		discoveredAt := f.DiscoveredAt
		findings = append(findings, investigation.Finding{
			FindingID:       f.FactID,
			Category:        shape.Category,
			Severity:        shape.Severity,
			FindingDate:     &discoveredAt,
			Confidence:      f.Confidence,
			Corroborated:    corroboratedTypes[f.FactType],
			RelevanceToRole: c.relevance(role, shape.Category),
			UnderlyingFacts: []investigation.Fact{f},
			Description:     strings.ReplaceAll(f.FactType, "_", " ") + ": " + f.Value,
		})
	}

	for _, inc := range inconsistencies {
		if inc.DeceptionScore < 0.5 {
			continue
		}
		findings = append(findings, investigation.Finding{
			Category:        investigation.CategoryBehavioral,
			Severity:        severityForDeception(inc.DeceptionScore),
			Confidence:      inc.DeceptionScore,
			Corroborated:    false,
			RelevanceToRole: c.relevance(role, investigation.CategoryBehavioral),
			Description:     "inconsistent " + inc.Field + " reported by " + inc.SourceAProvider + " and " + inc.SourceBProvider,
		})
	}

	return findings
}

func severityForDeception(score float64) investigation.FindingSeverity {
	if score >= 0.8 {
		return investigation.FindingHigh
	}
	return investigation.FindingMedium
}

func corroborationByFactType(facts []investigation.Fact) map[string]bool {
	sources := make(map[string]map[string]bool)
	for _, f := range facts {
		if sources[f.FactType] == nil {
			sources[f.FactType] = make(map[string]bool)
		}
		sources[f.FactType][f.SourceProvider] = true
	}
	out := make(map[string]bool)
	for factType, s := range sources {
		out[factType] = len(s) >= 2
	}
	return out
}

func (c *Classifier) relevance(role compliance.RoleCategory, category investigation.FindingCategory) float64 {
	byRole, ok := roleRelevance[role]
	if !ok {
		c.log.Warn("risk: no relevance table for role category, defaulting", "role", role)
		return defaultRelevance
	}
	if r, ok := byRole[category]; ok {
		return r
	}
	return defaultRelevance
}
