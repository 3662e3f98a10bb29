// Package compliance implements the ComplianceEvaluator: given a locale,
// check-type, role and service tier it decides whether a check is
// permitted and what obligations (consent, disclosure, enhanced tier)
// attach to it. Rules are keyed by jurisdiction with two-level
// inheritance (country, then region/state) covering FCRA, GDPR, PIPEDA
// and LGPD background-screening requirements.
package compliance

import "github.com/elile/screening-core/internal/provider"

// Locale is a two-level jurisdiction key: a country code, optionally
// followed by a region/state suffix (e.g. "US", "US_CA", "US_NY").
type Locale string

const (
	LocaleUS   Locale = "US"
	LocaleUSCA Locale = "US_CA"
	LocaleUSNY Locale = "US_NY"
	LocaleEU   Locale = "EU"
	LocaleUK   Locale = "UK"
	LocaleCA   Locale = "CA"
	LocaleAU   Locale = "AU"
	LocaleBR   Locale = "BR"
)

// Parent returns the locale one level up the inheritance chain (e.g.
// US_CA -> US), or "" if locale has no parent.
func (l Locale) Parent() Locale {
	switch l {
	case LocaleUSCA, LocaleUSNY:
		return LocaleUS
	default:
		return ""
	}
}

// Tier is the service tier gating enhanced-only check types.
type Tier string

const (
	TierStandard Tier = "STANDARD"
	TierEnhanced Tier = "ENHANCED"
)

// RoleCategory narrows role-restricted checks (e.g. credit reports only
// for financial/executive roles).
type RoleCategory string

const (
	RoleStandard       RoleCategory = "standard"
	RoleFinancial      RoleCategory = "financial"
	RoleExecutive      RoleCategory = "executive"
	RoleGovernment     RoleCategory = "government"
	RoleEducation      RoleCategory = "education"
	RoleHealthcare     RoleCategory = "healthcare"
	RoleSecurity       RoleCategory = "security"
	RoleTransportation RoleCategory = "transportation"
)

// RestrictionKind is the closed set of restriction shapes a rule can
// carry.
type RestrictionKind string

const (
	RestrictionNone           RestrictionKind = "none"
	RestrictionBlocked        RestrictionKind = "blocked"
	RestrictionLookbackLimit  RestrictionKind = "lookback-limited"
	RestrictionRoleRestricted RestrictionKind = "role-restricted"
	RestrictionConditional    RestrictionKind = "conditional"
	RestrictionTierRestricted RestrictionKind = "tier-restricted"
)

// Rule is keyed by (locale, check-type, optional role) and carries the
// obligations evaluate() resolves into an Evaluation.
type Rule struct {
	Locale               Locale
	CheckType            provider.CheckType
	Permitted            bool
	Restriction          RestrictionKind
	LookbackDays         int
	PermittedRoles       []RoleCategory
	RequiresConsent      bool
	RequiresDisclosure   bool
	RequiresEnhancedTier bool
	Notes                string
}

func (r Rule) allowsRole(role RoleCategory) bool {
	if len(r.PermittedRoles) == 0 {
		return true
	}
	for _, pr := range r.PermittedRoles {
		if pr == role {
			return true
		}
	}
	return false
}

// enhancedOnlyChecks lists info-types that require ENHANCED tier
// regardless of what a locale rule says.
var enhancedOnlyChecks = map[provider.CheckType]bool{
	provider.CheckDigitalFootprint: true,
	provider.CheckNetworkD3:        true,
}

// RuleRepository is an in-memory rule set, keyed by locale and check
// type. A rule with no PermittedRoles is the locale's general rule for
// that check type and matches any role.
type RuleRepository struct {
	rules map[Locale]map[provider.CheckType][]Rule
}

// NewRuleRepository builds a repository preloaded with the default
// jurisdiction rules, organized as per-locale rule
// factories (US FCRA, EU GDPR, UK DBS, Canada PIPEDA, Australia Privacy
// Act, Brazil LGPD).
func NewRuleRepository() *RuleRepository {
	repo := &RuleRepository{rules: make(map[Locale]map[provider.CheckType][]Rule)}
	for _, r := range defaultRules() {
		repo.Add(r)
	}
	return repo
}

// Add inserts a rule, indexed by locale and check type.
func (r *RuleRepository) Add(rule Rule) {
	byCheck, ok := r.rules[rule.Locale]
	if !ok {
		byCheck = make(map[provider.CheckType][]Rule)
		r.rules[rule.Locale] = byCheck
	}
	byCheck[rule.CheckType] = append(byCheck[rule.CheckType], rule)
}

// Lookup resolves the most specific rule for (locale, check-type, role),
// walking the two-level locale inheritance chain (region/state -> country)
// when no rule exists at the requested locale. Returns ok=false if no
// rule was found anywhere in the chain.
func (r *RuleRepository) Lookup(locale Locale, checkType provider.CheckType, role RoleCategory) (Rule, bool) {
	for loc := locale; loc != ""; loc = loc.Parent() {
		byCheck, ok := r.rules[loc]
		if !ok {
			continue
		}
		candidates, ok := byCheck[checkType]
		if !ok {
			continue
		}
		// Prefer a role-specific match, then fall back to the
		// locale's general rule for this check type.
		var general *Rule
		for i := range candidates {
			c := &candidates[i]
			if len(c.PermittedRoles) == 0 {
				general = c
				continue
			}
			if c.allowsRole(role) {
				return *c, true
			}
		}
		if general != nil {
			return *general, true
		}
		// A rule exists at this locale but denies the role outright;
		// surface the first candidate so the role-restriction reason
		// is reported rather than silently falling back to the parent.
		return candidates[0], true
	}
	return Rule{}, false
}
