// Package investigation implements the SAR (Search-Assess-Refine) loop:
// the per-information-type iterative procedure that plans queries,
// dispatches them, extracts facts, detects gaps and inconsistencies, and
// decides when enough has been learned about one information type,
// expressed as an explicit state machine driven by caller-owned
// goroutines rather than hidden background loops.
package investigation

import (
	"time"

	"github.com/elile/screening-core/internal/compliance"
	"github.com/elile/screening-core/internal/provider"
)

// InfoType is an investigated category of data about a subject.
type InfoType string

const (
	TypeIdentity         InfoType = "IDENTITY"
	TypeEmployment       InfoType = "EMPLOYMENT"
	TypeEducation        InfoType = "EDUCATION"
	TypeCriminal         InfoType = "CRIMINAL"
	TypeCivil            InfoType = "CIVIL"
	TypeFinancial        InfoType = "FINANCIAL"
	TypeLicenses         InfoType = "LICENSES"
	TypeRegulatory       InfoType = "REGULATORY"
	TypeSanctions        InfoType = "SANCTIONS"
	TypeAdverseMedia     InfoType = "ADVERSE_MEDIA"
	TypeDigitalFootprint InfoType = "DIGITAL_FOOTPRINT"
	TypeNetworkD2        InfoType = "NETWORK_D2"
	TypeNetworkD3        InfoType = "NETWORK_D3"
	TypeReconciliation   InfoType = "RECONCILIATION"
)

// Phase groups information types behind a strict barrier: no type in
// phase P+1 may begin until every selected type in phase P is terminal.
type Phase string

const (
	PhaseFoundation     Phase = "FOUNDATION"
	PhaseRecords        Phase = "RECORDS"
	PhaseIntelligence   Phase = "INTELLIGENCE"
	PhaseNetwork        Phase = "NETWORK"
	PhaseReconciliation Phase = "RECONCILIATION"
)

// PhaseOrder is the strict sequencing of phases.
var PhaseOrder = []Phase{PhaseFoundation, PhaseRecords, PhaseIntelligence, PhaseNetwork, PhaseReconciliation}

// TypeDependency records one information type's phase, prerequisite
// types, tier requirement, and the provider check type that represents
// it for compliance and planning purposes.
type TypeDependency struct {
	InfoType         InfoType
	Phase            Phase
	DependsOn        []InfoType
	RequiresEnhanced bool
	PrimaryCheckType provider.CheckType
}

// TypeDependencies is the full information-type dependency table: phase,
// prerequisite types, and whether a type requires ENHANCED tier.
var TypeDependencies = map[InfoType]TypeDependency{
	TypeIdentity: {
		InfoType: TypeIdentity, Phase: PhaseFoundation,
		PrimaryCheckType: provider.CheckIdentityBasic,
	},
	TypeEmployment: {
		InfoType: TypeEmployment, Phase: PhaseFoundation,
		DependsOn: []InfoType{TypeIdentity}, PrimaryCheckType: provider.CheckEmploymentVerify,
	},
	TypeEducation: {
		InfoType: TypeEducation, Phase: PhaseFoundation,
		DependsOn: []InfoType{TypeIdentity}, PrimaryCheckType: provider.CheckEducationVerify,
	},
	TypeCriminal: {
		InfoType: TypeCriminal, Phase: PhaseRecords,
		DependsOn: []InfoType{TypeIdentity}, PrimaryCheckType: provider.CheckCriminalNational,
	},
	TypeCivil: {
		InfoType: TypeCivil, Phase: PhaseRecords,
		DependsOn: []InfoType{TypeIdentity}, PrimaryCheckType: provider.CheckCivilLitigation,
	},
	TypeFinancial: {
		InfoType: TypeFinancial, Phase: PhaseRecords,
		DependsOn: []InfoType{TypeIdentity}, PrimaryCheckType: provider.CheckCreditReport,
	},
	TypeLicenses: {
		InfoType: TypeLicenses, Phase: PhaseRecords,
		DependsOn: []InfoType{TypeIdentity}, PrimaryCheckType: provider.CheckLicenseVerify,
	},
	TypeRegulatory: {
		InfoType: TypeRegulatory, Phase: PhaseRecords,
		DependsOn: []InfoType{TypeIdentity, TypeEmployment}, PrimaryCheckType: provider.CheckRegulatoryEnforce,
	},
	TypeSanctions: {
		InfoType: TypeSanctions, Phase: PhaseRecords,
		DependsOn: []InfoType{TypeIdentity}, PrimaryCheckType: provider.CheckSanctionsOFAC,
	},
	TypeAdverseMedia: {
		InfoType: TypeAdverseMedia, Phase: PhaseIntelligence,
		DependsOn: []InfoType{TypeIdentity, TypeEmployment}, PrimaryCheckType: provider.CheckAdverseMedia,
	},
	TypeDigitalFootprint: {
		InfoType: TypeDigitalFootprint, Phase: PhaseIntelligence,
		DependsOn: []InfoType{TypeIdentity}, RequiresEnhanced: true, PrimaryCheckType: provider.CheckDigitalFootprint,
	},
	TypeNetworkD2: {
		InfoType: TypeNetworkD2, Phase: PhaseNetwork,
		DependsOn: []InfoType{TypeIdentity, TypeEmployment}, PrimaryCheckType: provider.CheckNetworkD2,
	},
	TypeNetworkD3: {
		InfoType: TypeNetworkD3, Phase: PhaseNetwork,
		DependsOn: []InfoType{TypeNetworkD2}, RequiresEnhanced: true, PrimaryCheckType: provider.CheckNetworkD3,
	},
	TypeReconciliation: {
		InfoType: TypeReconciliation, Phase: PhaseReconciliation,
		DependsOn: []InfoType{TypeIdentity, TypeEmployment, TypeEducation, TypeCriminal},
	},
}

// PhaseTypes groups information types by phase, in the order the original
// table enumerates them (stable iteration order matters for deterministic
// query planning).
var PhaseTypes = map[Phase][]InfoType{
	PhaseFoundation:     {TypeIdentity, TypeEmployment, TypeEducation},
	PhaseRecords:        {TypeCriminal, TypeCivil, TypeFinancial, TypeLicenses, TypeRegulatory, TypeSanctions},
	PhaseIntelligence:   {TypeAdverseMedia, TypeDigitalFootprint},
	PhaseNetwork:        {TypeNetworkD2, TypeNetworkD3},
	PhaseReconciliation: {TypeReconciliation},
}

// FoundationTypes get stricter confidence thresholds and more iterations.
var FoundationTypes = map[InfoType]bool{
	TypeIdentity:   true,
	TypeEmployment: true,
	TypeEducation:  true,
}

// ExpectedFacts is the per-type table ConfidenceScorer's completeness
// factor divides against.
var ExpectedFacts = map[InfoType]int{
	TypeIdentity:         5,
	TypeEmployment:       3,
	TypeEducation:        3,
	TypeLicenses:         2,
	TypeCriminal:         1,
	TypeCivil:            1,
	TypeFinancial:        2,
	TypeRegulatory:       1,
	TypeSanctions:        1,
	TypeAdverseMedia:     1,
	TypeDigitalFootprint: 2,
	TypeNetworkD2:        2,
	TypeNetworkD3:        3,
	TypeReconciliation:   5,
}

// Subject is the person under screening.
type Subject struct {
	SubjectID            string
	FullName             string
	Aliases              []string
	DOB                  *time.Time
	NationalIDLast4      string
	Addresses            []Address
	Phones               []string
	Emails               []string
	DriversLicenseNumber string
	DriversLicenseState  string
	PassportNumber       string
	PassportCountry      string
	EmployerHistoryHints []string
}

// Address is a structured postal address as used across the KnowledgeBase
// and search-parameter enrichment.
type Address struct {
	Line1   string
	City    string
	State   string
	County  string
	Zip     string
	Country string
}

// ScreeningParams bundles the cross-cutting context every SAR component
// needs: the subject's jurisdiction, the requester's role (for
// compliance and relevance scoring), and the tenant's purchased tier.
type ScreeningParams struct {
	Locale compliance.Locale
	Role   compliance.RoleCategory
	Tier   compliance.Tier
}
