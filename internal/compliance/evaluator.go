package compliance

import (
	"log/slog"

	"github.com/elile/screening-core/internal/provider"
)

// Evaluation is the resolved outcome for a single check type.
type Evaluation struct {
	CheckType          provider.CheckType
	Permitted          bool
	Reason             string
	Restriction        RestrictionKind
	LookbackDays       int
	RequiresConsent    bool
	RequiresDisclosure bool
}

// Evaluator is the ComplianceEvaluator: it resolves, per check type,
// whether a screening is permitted under the subject's locale, the
// requester's role, and the tenant's service tier.
type Evaluator struct {
	repo *RuleRepository
	log  *slog.Logger
}

func NewEvaluator(repo *RuleRepository, log *slog.Logger) *Evaluator {
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{repo: repo, log: log}
}

// Evaluate resolves one check type against a locale/role/tier combination,
// following the resolution order: locale lookup (most specific first),
// tier gate, blocked restriction, role restriction, then permit.
func (e *Evaluator) Evaluate(locale Locale, checkType provider.CheckType, role RoleCategory, tier Tier) Evaluation {
	rule, ok := e.repo.Lookup(locale, checkType, role)
	if !ok {
		// Built-in default: with no rule anywhere in the locale chain, only
		// the enhanced-only tier gate refuses the check.
		if enhancedOnlyChecks[checkType] && tier != TierEnhanced {
			return Evaluation{
				CheckType: checkType, Permitted: false,
				Reason:      "check requires ENHANCED service tier",
				Restriction: RestrictionTierRestricted,
			}
		}
		e.log.Warn("compliance: no rule for locale/check, permitted by built-in default",
			"locale", locale, "check_type", checkType)
		return Evaluation{
			CheckType: checkType, Permitted: true,
			Reason: "no compliance rule registered for this locale and check type; permitted by built-in default",
		}
	}

	// Tier gate runs first: an enhanced-only check is refused outright on
	// a standard tier regardless of what the locale rule otherwise allows.
	if (rule.RequiresEnhancedTier || enhancedOnlyChecks[checkType]) && tier != TierEnhanced {
		return Evaluation{
			CheckType: checkType, Permitted: false,
			Reason:      "check requires ENHANCED service tier",
			Restriction: RestrictionTierRestricted,
		}
	}

	if !rule.Permitted {
		return Evaluation{
			CheckType: checkType, Permitted: false,
			Reason:      nonEmpty(rule.Notes, "check type blocked in this locale"),
			Restriction: RestrictionBlocked,
		}
	}

	if rule.Restriction == RestrictionRoleRestricted && !rule.allowsRole(role) {
		return Evaluation{
			CheckType: checkType, Permitted: false,
			Reason:      nonEmpty(rule.Notes, "check type not permitted for this role category"),
			Restriction: RestrictionRoleRestricted,
		}
	}

	return Evaluation{
		CheckType:          checkType,
		Permitted:          true,
		Reason:             "permitted",
		Restriction:        rule.Restriction,
		LookbackDays:       rule.LookbackDays,
		RequiresConsent:    rule.RequiresConsent,
		RequiresDisclosure: rule.RequiresDisclosure,
	}
}

// Resolution is the aggregate outcome of evaluating a full requested check
// list: the permitted subset, and the blocked subset with reasons.
type Resolution struct {
	Permitted []Evaluation
	Blocked   []Evaluation
}

// ValidateChecks evaluates every requested check type and partitions the
// results into permitted and blocked.
func (e *Evaluator) ValidateChecks(locale Locale, checkTypes []provider.CheckType, role RoleCategory, tier Tier) Resolution {
	var res Resolution
	for _, ct := range checkTypes {
		ev := e.Evaluate(locale, ct, role, tier)
		if ev.Permitted {
			res.Permitted = append(res.Permitted, ev)
		} else {
			res.Blocked = append(res.Blocked, ev)
		}
	}
	return res
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
