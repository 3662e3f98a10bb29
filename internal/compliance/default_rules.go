package compliance

import "github.com/elile/screening-core/internal/provider"

// defaultRules returns the built-in jurisdiction rule set, built from
// per-locale factories: US (FCRA, with California and New York
// overlays), EU (GDPR), UK (DBS regime), Canada (PIPEDA), Australia
// (Privacy Act) and Brazil (LGPD).
func defaultRules() []Rule {
	var rules []Rule
	rules = append(rules, usRules()...)
	rules = append(rules, euRules()...)
	rules = append(rules, ukRules()...)
	rules = append(rules, caRules()...)
	rules = append(rules, auRules()...)
	rules = append(rules, brRules()...)
	return rules
}

func usRules() []Rule {
	rules := []Rule{
		{Locale: LocaleUS, CheckType: provider.CheckIdentityBasic, Permitted: true, RequiresConsent: true},
		{Locale: LocaleUS, CheckType: provider.CheckSSNTrace, Permitted: true, RequiresConsent: true},
		{Locale: LocaleUS, CheckType: provider.CheckEmploymentVerify, Permitted: true, RequiresConsent: true},
		{Locale: LocaleUS, CheckType: provider.CheckEducationVerify, Permitted: true, RequiresConsent: true},
		{
			Locale: LocaleUS, CheckType: provider.CheckCriminalNational, Permitted: true,
			Restriction: RestrictionLookbackLimit, LookbackDays: 7 * 365,
			RequiresConsent: true, RequiresDisclosure: true,
			Notes: "FCRA §605(a) caps non-conviction adverse records at 7 years",
		},
		{
			Locale: LocaleUS, CheckType: provider.CheckCriminalCounty, Permitted: true,
			Restriction: RestrictionLookbackLimit, LookbackDays: 7 * 365,
			RequiresConsent: true, RequiresDisclosure: true,
		},
		{
			Locale: LocaleUS, CheckType: provider.CheckCivilLitigation, Permitted: true,
			Restriction: RestrictionLookbackLimit, LookbackDays: 7 * 365,
			RequiresConsent: true, RequiresDisclosure: true,
		},
		{
			Locale: LocaleUS, CheckType: provider.CheckCreditReport, Permitted: true,
			Restriction: RestrictionRoleRestricted,
			PermittedRoles: []RoleCategory{RoleFinancial, RoleExecutive},
			RequiresConsent: true, RequiresDisclosure: true,
			Notes: "FCRA permissible purpose: credit checks only for roles with financial responsibility",
		},
		{Locale: LocaleUS, CheckType: provider.CheckLicenseVerify, Permitted: true, RequiresConsent: true},
		{Locale: LocaleUS, CheckType: provider.CheckRegulatoryEnforce, Permitted: true, RequiresConsent: true},
		{Locale: LocaleUS, CheckType: provider.CheckSanctionsOFAC, Permitted: true, RequiresConsent: false,
			Notes: "OFAC screening is a legal compliance obligation, not FCRA-governed"},
		{Locale: LocaleUS, CheckType: provider.CheckAdverseMedia, Permitted: true, RequiresConsent: true, RequiresDisclosure: true},
		{
			Locale: LocaleUS, CheckType: provider.CheckDigitalFootprint, Permitted: true,
			Restriction: RestrictionTierRestricted, RequiresEnhancedTier: true,
			RequiresConsent: true, RequiresDisclosure: true,
		},
		{Locale: LocaleUS, CheckType: provider.CheckNetworkD2, Permitted: true, RequiresConsent: true},
		{
			Locale: LocaleUS, CheckType: provider.CheckNetworkD3, Permitted: true,
			Restriction: RestrictionTierRestricted, RequiresEnhancedTier: true,
			RequiresConsent: true,
		},
	}

	// California (CCRAA): criminal lookback trimmed to 7 years uniformly
	// (no salary-threshold carveout) and marijuana-only convictions
	// excluded upstream by the provider adapter, not modeled here.
	rules = append(rules,
		Rule{
			Locale: LocaleUSCA, CheckType: provider.CheckCriminalNational, Permitted: true,
			Restriction: RestrictionLookbackLimit, LookbackDays: 7 * 365,
			RequiresConsent: true, RequiresDisclosure: true,
			Notes: "California ICRAA/CCRAA: 7 year lookback with no salary exception",
		},
		Rule{
			Locale: LocaleUSCA, CheckType: provider.CheckCreditReport, Permitted: true,
			Restriction: RestrictionRoleRestricted,
			PermittedRoles: []RoleCategory{RoleFinancial, RoleExecutive},
			RequiresConsent: true, RequiresDisclosure: true,
			Notes: "California Labor Code §1024.5 narrows credit-check permissible roles further than federal FCRA",
		},
	)

	// New York: fair chance act blocks criminal history review before a
	// conditional offer; modeled here as a conditional restriction the
	// caller (orchestrator) must pair with an offer-stage flag.
	rules = append(rules, Rule{
		Locale: LocaleUSNY, CheckType: provider.CheckCriminalNational, Permitted: true,
		Restriction: RestrictionConditional, LookbackDays: 7 * 365,
		RequiresConsent: true, RequiresDisclosure: true,
		Notes: "NYC Fair Chance Act: criminal history review gated on conditional offer having been extended",
	})

	return rules
}

func euRules() []Rule {
	return []Rule{
		{Locale: LocaleEU, CheckType: provider.CheckIdentityBasic, Permitted: true, RequiresConsent: true, RequiresDisclosure: true},
		{Locale: LocaleEU, CheckType: provider.CheckEmploymentVerify, Permitted: true, RequiresConsent: true, RequiresDisclosure: true},
		{Locale: LocaleEU, CheckType: provider.CheckEducationVerify, Permitted: true, RequiresConsent: true, RequiresDisclosure: true},
		{
			Locale: LocaleEU, CheckType: provider.CheckCriminalNational, Permitted: true,
			Restriction: RestrictionRoleRestricted,
			PermittedRoles: []RoleCategory{RoleFinancial, RoleExecutive, RoleGovernment, RoleEducation, RoleSecurity},
			RequiresConsent: true, RequiresDisclosure: true,
			Notes: "GDPR Art. 10: criminal conviction data processing requires a specific legal basis beyond consent",
		},
		{Locale: LocaleEU, CheckType: provider.CheckCivilLitigation, Permitted: true, RequiresConsent: true, RequiresDisclosure: true},
		{
			Locale: LocaleEU, CheckType: provider.CheckCreditReport, Permitted: false,
			Restriction: RestrictionBlocked,
			Notes: "GDPR Article 9: Credit checks generally prohibited for employment",
		},
		{Locale: LocaleEU, CheckType: provider.CheckLicenseVerify, Permitted: true, RequiresConsent: true},
		{Locale: LocaleEU, CheckType: provider.CheckRegulatoryEnforce, Permitted: true, RequiresConsent: true},
		{Locale: LocaleEU, CheckType: provider.CheckSanctionsOFAC, Permitted: true, RequiresConsent: false},
		{
			Locale: LocaleEU, CheckType: provider.CheckAdverseMedia, Permitted: true,
			Restriction: RestrictionRoleRestricted,
			PermittedRoles: []RoleCategory{RoleFinancial, RoleExecutive, RoleGovernment},
			RequiresConsent: true, RequiresDisclosure: true,
		},
		{
			Locale: LocaleEU, CheckType: provider.CheckDigitalFootprint, Permitted: false,
			Restriction: RestrictionBlocked,
			Notes: "Open-web profiling treated as disproportionate to GDPR purpose limitation absent a DPIA",
		},
		{Locale: LocaleEU, CheckType: provider.CheckNetworkD2, Permitted: true, RequiresConsent: true},
		{Locale: LocaleEU, CheckType: provider.CheckNetworkD3, Permitted: false, Restriction: RestrictionBlocked},
	}
}

func ukRules() []Rule {
	return []Rule{
		{Locale: LocaleUK, CheckType: provider.CheckIdentityBasic, Permitted: true, RequiresConsent: true},
		{Locale: LocaleUK, CheckType: provider.CheckEmploymentVerify, Permitted: true, RequiresConsent: true},
		{Locale: LocaleUK, CheckType: provider.CheckEducationVerify, Permitted: true, RequiresConsent: true},
		{
			Locale: LocaleUK, CheckType: provider.CheckCriminalNational, Permitted: true,
			Restriction: RestrictionRoleRestricted,
			PermittedRoles: []RoleCategory{RoleGovernment, RoleEducation, RoleHealthcare, RoleSecurity, RoleTransportation},
			RequiresConsent: true, RequiresDisclosure: true,
			Notes: "DBS standard/enhanced checks limited to roles in regulated activity",
		},
		{Locale: LocaleUK, CheckType: provider.CheckCivilLitigation, Permitted: true, RequiresConsent: true},
		{Locale: LocaleUK, CheckType: provider.CheckCreditReport, Permitted: true,
			Restriction: RestrictionRoleRestricted, PermittedRoles: []RoleCategory{RoleFinancial, RoleExecutive},
			RequiresConsent: true, RequiresDisclosure: true,
		},
		{Locale: LocaleUK, CheckType: provider.CheckLicenseVerify, Permitted: true, RequiresConsent: true,
			Notes: "Right to work verification surfaced as a license-verification check"},
		{Locale: LocaleUK, CheckType: provider.CheckRegulatoryEnforce, Permitted: true, RequiresConsent: true},
		{Locale: LocaleUK, CheckType: provider.CheckSanctionsOFAC, Permitted: true, RequiresConsent: false},
		{Locale: LocaleUK, CheckType: provider.CheckAdverseMedia, Permitted: true, RequiresConsent: true, RequiresDisclosure: true},
		{Locale: LocaleUK, CheckType: provider.CheckDigitalFootprint, Permitted: false, Restriction: RestrictionBlocked},
		{Locale: LocaleUK, CheckType: provider.CheckNetworkD2, Permitted: true, RequiresConsent: true},
		{Locale: LocaleUK, CheckType: provider.CheckNetworkD3, Permitted: false, Restriction: RestrictionBlocked},
	}
}

func caRules() []Rule {
	return []Rule{
		{Locale: LocaleCA, CheckType: provider.CheckIdentityBasic, Permitted: true, RequiresConsent: true},
		{Locale: LocaleCA, CheckType: provider.CheckEmploymentVerify, Permitted: true, RequiresConsent: true},
		{Locale: LocaleCA, CheckType: provider.CheckEducationVerify, Permitted: true, RequiresConsent: true},
		{Locale: LocaleCA, CheckType: provider.CheckCriminalNational, Permitted: true, RequiresConsent: true, RequiresDisclosure: true,
			Notes: "PIPEDA requires meaningful consent and purpose disclosure before a criminal records check"},
		{Locale: LocaleCA, CheckType: provider.CheckCivilLitigation, Permitted: true, RequiresConsent: true},
		{Locale: LocaleCA, CheckType: provider.CheckCreditReport, Permitted: true,
			Restriction: RestrictionRoleRestricted, PermittedRoles: []RoleCategory{RoleFinancial, RoleExecutive},
			RequiresConsent: true, RequiresDisclosure: true,
		},
		{Locale: LocaleCA, CheckType: provider.CheckLicenseVerify, Permitted: true, RequiresConsent: true},
		{Locale: LocaleCA, CheckType: provider.CheckRegulatoryEnforce, Permitted: true, RequiresConsent: true},
		{Locale: LocaleCA, CheckType: provider.CheckSanctionsOFAC, Permitted: true, RequiresConsent: false},
		{Locale: LocaleCA, CheckType: provider.CheckAdverseMedia, Permitted: true, RequiresConsent: true},
		{Locale: LocaleCA, CheckType: provider.CheckDigitalFootprint, Permitted: false, Restriction: RestrictionBlocked},
		{Locale: LocaleCA, CheckType: provider.CheckNetworkD2, Permitted: true, RequiresConsent: true},
		{Locale: LocaleCA, CheckType: provider.CheckNetworkD3, Permitted: false, Restriction: RestrictionBlocked},
	}
}

func auRules() []Rule {
	return []Rule{
		{Locale: LocaleAU, CheckType: provider.CheckIdentityBasic, Permitted: true, RequiresConsent: true},
		{Locale: LocaleAU, CheckType: provider.CheckEmploymentVerify, Permitted: true, RequiresConsent: true},
		{Locale: LocaleAU, CheckType: provider.CheckEducationVerify, Permitted: true, RequiresConsent: true},
		{Locale: LocaleAU, CheckType: provider.CheckCriminalNational, Permitted: true, RequiresConsent: true, RequiresDisclosure: true,
			Notes: "Australian Privacy Act APP 3: sensitive information (criminal record) requires explicit consent"},
		{Locale: LocaleAU, CheckType: provider.CheckCivilLitigation, Permitted: true, RequiresConsent: true},
		{Locale: LocaleAU, CheckType: provider.CheckCreditReport, Permitted: true,
			Restriction: RestrictionRoleRestricted, PermittedRoles: []RoleCategory{RoleFinancial, RoleExecutive},
			RequiresConsent: true, RequiresDisclosure: true,
		},
		{Locale: LocaleAU, CheckType: provider.CheckLicenseVerify, Permitted: true, RequiresConsent: true},
		{Locale: LocaleAU, CheckType: provider.CheckRegulatoryEnforce, Permitted: true, RequiresConsent: true},
		{Locale: LocaleAU, CheckType: provider.CheckSanctionsOFAC, Permitted: true, RequiresConsent: false},
		{Locale: LocaleAU, CheckType: provider.CheckAdverseMedia, Permitted: true, RequiresConsent: true},
		{Locale: LocaleAU, CheckType: provider.CheckDigitalFootprint, Permitted: false, Restriction: RestrictionBlocked},
		{Locale: LocaleAU, CheckType: provider.CheckNetworkD2, Permitted: true, RequiresConsent: true},
		{Locale: LocaleAU, CheckType: provider.CheckNetworkD3, Permitted: false, Restriction: RestrictionBlocked},
	}
}

func brRules() []Rule {
	return []Rule{
		{Locale: LocaleBR, CheckType: provider.CheckIdentityBasic, Permitted: true, RequiresConsent: true},
		{Locale: LocaleBR, CheckType: provider.CheckEmploymentVerify, Permitted: true, RequiresConsent: true},
		{Locale: LocaleBR, CheckType: provider.CheckEducationVerify, Permitted: true, RequiresConsent: true},
		{
			Locale: LocaleBR, CheckType: provider.CheckCriminalNational, Permitted: true,
			Restriction: RestrictionRoleRestricted,
			PermittedRoles: []RoleCategory{RoleFinancial, RoleExecutive, RoleGovernment, RoleSecurity},
			RequiresConsent: true, RequiresDisclosure: true,
			Notes: "LGPD Art. 11: criminal record is sensitive personal data, restricted to roles with a legitimate need",
		},
		{Locale: LocaleBR, CheckType: provider.CheckCivilLitigation, Permitted: true, RequiresConsent: true},
		{Locale: LocaleBR, CheckType: provider.CheckCreditReport, Permitted: true,
			Restriction: RestrictionRoleRestricted, PermittedRoles: []RoleCategory{RoleFinancial, RoleExecutive},
			RequiresConsent: true, RequiresDisclosure: true,
		},
		{Locale: LocaleBR, CheckType: provider.CheckLicenseVerify, Permitted: true, RequiresConsent: true},
		{Locale: LocaleBR, CheckType: provider.CheckRegulatoryEnforce, Permitted: true, RequiresConsent: true},
		{Locale: LocaleBR, CheckType: provider.CheckSanctionsOFAC, Permitted: true, RequiresConsent: false},
		{Locale: LocaleBR, CheckType: provider.CheckAdverseMedia, Permitted: true, RequiresConsent: true},
		{Locale: LocaleBR, CheckType: provider.CheckDigitalFootprint, Permitted: false, Restriction: RestrictionBlocked},
		{Locale: LocaleBR, CheckType: provider.CheckNetworkD2, Permitted: true, RequiresConsent: true},
		{Locale: LocaleBR, CheckType: provider.CheckNetworkD3, Permitted: false, Restriction: RestrictionBlocked},
	}
}
