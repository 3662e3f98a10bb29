package investigation

import (
	"strings"
	"sync"
	"time"
)

// Employer is a confirmed employment record within the KnowledgeBase.
type Employer struct {
	EmployerName string
	Title        string
	StartDate    *time.Time
	EndDate      *time.Time
	Location     string
}

// School is a confirmed education record.
type School struct {
	InstitutionName string
	Degree          string
	StartDate       *time.Time
	EndDate         *time.Time
}

// License is a confirmed professional license or certification.
type License struct {
	LicenseType   string
	LicenseNumber string
	IssuingState  string
	Status        string
}

// DiscoveredEntity is a secondary person or organization surfaced while
// assessing results (e.g. an employer name becomes an organization
// entity eligible for its own cross-screening index lookup).
type DiscoveredEntity struct {
	Kind string // "person" | "organization"
	Name string
}

// KnowledgeBase accumulates everything confirmed about one subject over
// the course of a single screening. It is monotonic: entries are never
// removed or overwritten, only appended. Later phases may read but
// never mutate fields an earlier phase wrote.
type KnowledgeBase struct {
	mu sync.Mutex

	ConfirmedNames     []string
	ConfirmedDOB       *time.Time
	ConfirmedSSNLast4  string
	ConfirmedAddresses []Address
	KnownStates        []string
	KnownCounties      []string
	Employers          []Employer
	Schools            []School
	Licenses           []License
	DiscoveredEntities []DiscoveredEntity

	seenNames     map[string]bool
	seenAddresses map[string]bool
	seenStates    map[string]bool
	seenCounties  map[string]bool
	seenEntities  map[string]bool
}

func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		seenNames:     make(map[string]bool),
		seenAddresses: make(map[string]bool),
		seenStates:    make(map[string]bool),
		seenCounties:  make(map[string]bool),
		seenEntities:  make(map[string]bool),
	}
}

func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// AddName appends a name variant if not already present (canonicalized).
func (kb *KnowledgeBase) AddName(name string) {
	if name == "" {
		return
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	key := canonical(name)
	if kb.seenNames[key] {
		return
	}
	kb.seenNames[key] = true
	kb.ConfirmedNames = append(kb.ConfirmedNames, name)
}

// SetDOB records the confirmed date of birth the first time it's seen.
func (kb *KnowledgeBase) SetDOB(dob time.Time) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.ConfirmedDOB == nil {
		kb.ConfirmedDOB = &dob
	}
}

// SetSSNLast4 records the confirmed SSN last-4 the first time it's seen.
func (kb *KnowledgeBase) SetSSNLast4(last4 string) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.ConfirmedSSNLast4 == "" {
		kb.ConfirmedSSNLast4 = last4
	}
}

func addressKey(a Address) string {
	return strings.Join([]string{canonical(a.Line1), canonical(a.City), canonical(a.State), canonical(a.Zip)}, "|")
}

// AddAddress merges a new address, deduplicated by canonicalized tuple.
func (kb *KnowledgeBase) AddAddress(a Address) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	key := addressKey(a)
	if kb.seenAddresses[key] {
		return
	}
	kb.seenAddresses[key] = true
	kb.ConfirmedAddresses = append(kb.ConfirmedAddresses, a)

	if a.State != "" && !kb.seenStates[canonical(a.State)] {
		kb.seenStates[canonical(a.State)] = true
		kb.KnownStates = append(kb.KnownStates, a.State)
	}
	if a.County != "" && !kb.seenCounties[canonical(a.County)] {
		kb.seenCounties[canonical(a.County)] = true
		kb.KnownCounties = append(kb.KnownCounties, a.County)
	}
}

// AddEmployer appends a confirmed employer, deduplicated by employer
// name + start date.
func (kb *KnowledgeBase) AddEmployer(e Employer) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	for _, existing := range kb.Employers {
		if canonical(existing.EmployerName) == canonical(e.EmployerName) && sameTime(existing.StartDate, e.StartDate) {
			return
		}
	}
	kb.Employers = append(kb.Employers, e)
	kb.addEntityLocked(DiscoveredEntity{Kind: "organization", Name: e.EmployerName})
}

// AddSchool appends a confirmed school, deduplicated by institution name.
func (kb *KnowledgeBase) AddSchool(s School) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	for _, existing := range kb.Schools {
		if canonical(existing.InstitutionName) == canonical(s.InstitutionName) {
			return
		}
	}
	kb.Schools = append(kb.Schools, s)
	kb.addEntityLocked(DiscoveredEntity{Kind: "organization", Name: s.InstitutionName})
}

// AddLicense appends a confirmed license, deduplicated by type + number.
func (kb *KnowledgeBase) AddLicense(l License) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	for _, existing := range kb.Licenses {
		if canonical(existing.LicenseType) == canonical(l.LicenseType) && canonical(existing.LicenseNumber) == canonical(l.LicenseNumber) {
			return
		}
	}
	kb.Licenses = append(kb.Licenses, l)
}

// AddDiscoveredEntity records a secondary person or organization
// surfaced during assessment.
func (kb *KnowledgeBase) AddDiscoveredEntity(e DiscoveredEntity) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.addEntityLocked(e)
}

func (kb *KnowledgeBase) addEntityLocked(e DiscoveredEntity) {
	key := e.Kind + "|" + canonical(e.Name)
	if kb.seenEntities[key] {
		return
	}
	kb.seenEntities[key] = true
	kb.DiscoveredEntities = append(kb.DiscoveredEntities, e)
}

func sameTime(a, b *time.Time) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Equal(*b)
}

// PrimaryName returns the first confirmed name, or "" if none yet.
func (kb *KnowledgeBase) PrimaryName() string {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if len(kb.ConfirmedNames) == 0 {
		return ""
	}
	return kb.ConfirmedNames[0]
}

// snapshotNames returns a copy of the confirmed name variants.
func (kb *KnowledgeBase) snapshotNames() []string {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return append([]string(nil), kb.ConfirmedNames...)
}

// snapshotCounties returns a copy of the known counties.
func (kb *KnowledgeBase) snapshotCounties() []string {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return append([]string(nil), kb.KnownCounties...)
}

// Addresses returns a snapshot of every confirmed address, for callers
// (like the cross-screening index) that only read after the
// screening's SAR loops are terminal.
func (kb *KnowledgeBase) Addresses() []Address {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return append([]Address(nil), kb.ConfirmedAddresses...)
}

// EmployerNames returns the distinct confirmed employer names.
func (kb *KnowledgeBase) EmployerNames() []string {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	names := make([]string, 0, len(kb.Employers))
	for _, e := range kb.Employers {
		names = append(names, e.EmployerName)
	}
	return names
}
