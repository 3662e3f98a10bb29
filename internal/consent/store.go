package consent

import (
	"fmt"
	"sync"
	"time"

	"github.com/elile/screening-core/internal/compliance"
	"github.com/elile/screening-core/internal/provider"
)

// Result is the outcome of verifying consent against a set of required
// check types.
type Result struct {
	Valid         bool
	Consent       *Consent
	MissingScopes []Scope
	Errors        []string
}

// Store is the ConsentStore: an in-memory registry of consent grants per
// subject, backed optionally by store.Client for durable persistence
// (callers load grants via Register after a DB fetch; this package
// itself has no persistence opinion).
type Store struct {
	mu       sync.RWMutex
	consents map[string][]*Consent
}

func NewStore() *Store {
	return &Store{consents: make(map[string][]*Consent)}
}

// Register adds a consent grant for its subject.
func (s *Store) Register(c *Consent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[c.SubjectID] = append(s.consents[c.SubjectID], c)
}

// Consents returns every consent grant on file for a subject.
func (s *Store) Consents(subjectID string) []*Consent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Consent(nil), s.consents[subjectID]...)
}

// ValidConsents returns the subject's consents that are neither revoked
// nor expired as of now.
func (s *Store) ValidConsents(subjectID string, now time.Time) []*Consent {
	all := s.Consents(subjectID)
	valid := make([]*Consent, 0, len(all))
	for _, c := range all {
		if c.IsValid(now) {
			valid = append(valid, c)
		}
	}
	return valid
}

// VerifyScopes checks whether the subject's valid consents collectively
// cover every required scope.
func (s *Store) VerifyScopes(subjectID string, required []Scope, now time.Time) Result {
	valid := s.ValidConsents(subjectID, now)
	if len(valid) == 0 {
		return Result{Valid: false, MissingScopes: required, Errors: []string{"no valid consent found for subject"}}
	}

	covered := make(map[Scope]bool)
	var covering *Consent
	for _, c := range valid {
		for _, scope := range required {
			if c.CoversScope(scope, now) {
				covered[scope] = true
				covering = c
			}
		}
	}

	var missing []Scope
	for _, scope := range required {
		if !covered[scope] {
			missing = append(missing, scope)
		}
	}

	if len(missing) > 0 {
		return Result{Valid: false, Consent: covering, MissingScopes: missing,
			Errors: []string{fmt.Sprintf("missing consent for: %v", missing)}}
	}
	return Result{Valid: true, Consent: covering}
}

// VerifyCheckTypes resolves the required scopes for a set of check types
// and verifies consent against them.
func (s *Store) VerifyCheckTypes(subjectID string, checkTypes []provider.CheckType, now time.Time) Result {
	seen := make(map[Scope]bool)
	var required []Scope
	for _, ct := range checkTypes {
		scope, ok := ScopeForCheckType(ct)
		if !ok {
			continue
		}
		if !seen[scope] {
			seen[scope] = true
			required = append(required, scope)
		}
	}
	return s.VerifyScopes(subjectID, required, now)
}

// VerifyFCRADisclosure checks the FCRA-specific disclosure requirements
// for US locales: a standalone disclosure form, CFPB summary of rights,
// and any state-specific overlay (California ICRAA, New York Fair
// Chance). Non-US locales always pass since FCRA doesn't apply.
func VerifyFCRADisclosure(c *Consent, locale compliance.Locale) (bool, []string) {
	if locale != compliance.LocaleUS && locale != compliance.LocaleUSCA && locale != compliance.LocaleUSNY {
		return true, nil
	}

	if c.FCRADisclosure == nil {
		return false, []string{"no FCRA disclosure record"}
	}

	var errs []string
	d := *c.FCRADisclosure
	if !d.StandaloneDisclosure {
		errs = append(errs, "disclosure was not on standalone form")
	}
	if !d.SummaryOfRights {
		errs = append(errs, "summary of rights not provided")
	}
	if locale == compliance.LocaleUSCA && !d.hasState("CA_ICRAA") {
		errs = append(errs, "California ICRAA disclosure not provided")
	}
	if locale == compliance.LocaleUSNY && !d.hasState("NY_FAIR_CHANCE") {
		errs = append(errs, "New York Fair Chance disclosure not provided")
	}
	return len(errs) == 0, errs
}

// Revoke marks a consent record revoked. Returns false if no matching
// record was found.
func (s *Store) Revoke(consentID, reason string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range s.consents {
		for _, c := range list {
			if c.ConsentID == consentID {
				c.RevokedAt = &now
				c.RevocationReason = reason
				return true
			}
		}
	}
	return false
}
