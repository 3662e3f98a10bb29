// Package provider defines the narrow adapter boundary through which the
// investigation core reaches third-party background-check data sources.
// Every provider integration — criminal records, credit bureaus, sanctions
// lists, education verification — implements this one interface; nothing
// upstream of RequestRouter ever type-switches on a concrete provider.
package provider

import (
	"context"
	"encoding/json"
	"time"
)

// CheckType identifies the kind of query a provider can answer.
type CheckType string

const (
	CheckIdentityBasic         CheckType = "IDENTITY_BASIC"
	CheckSSNTrace              CheckType = "SSN_TRACE"
	CheckEmploymentVerify      CheckType = "EMPLOYMENT_VERIFICATION"
	CheckEducationVerify       CheckType = "EDUCATION_VERIFICATION"
	CheckCriminalNational      CheckType = "CRIMINAL_NATIONAL"
	CheckCriminalCounty        CheckType = "CRIMINAL_COUNTY"
	CheckCivilLitigation       CheckType = "CIVIL_LITIGATION"
	CheckCreditReport          CheckType = "CREDIT_REPORT"
	CheckLicenseVerify         CheckType = "LICENSE_VERIFICATION"
	CheckRegulatoryEnforce     CheckType = "REGULATORY_ENFORCEMENT"
	CheckSanctionsOFAC         CheckType = "SANCTIONS_OFAC"
	CheckAdverseMedia          CheckType = "ADVERSE_MEDIA"
	CheckDigitalFootprint      CheckType = "DIGITAL_FOOTPRINT"
	CheckNetworkD2             CheckType = "NETWORK_D2"
	CheckNetworkD3             CheckType = "NETWORK_D3"
)

// Request carries everything a provider needs to execute a single check
// against one subject.
type Request struct {
	QueryID    string            `json:"query_id"`
	CheckType  CheckType         `json:"check_type"`
	SubjectRef map[string]string `json:"subject_ref"` // name, dob, ssn_last4, etc — provider-specific
	Params     map[string]string `json:"params,omitempty"`
}

// Response carries a provider's raw and normalized results back to
// RequestRouter, which is responsible for caching, retry and circuit
// breaking — providers themselves stay stateless.
type Response struct {
	QueryID        string          `json:"query_id"`
	RawData        json.RawMessage `json:"raw_data"`
	NormalizedData json.RawMessage `json:"normalized_data"`
	FindingsCount  int             `json:"findings_count"`
	CostUSD        float64         `json:"cost_usd"`
	FetchedAt      time.Time       `json:"fetched_at"`
}

// HealthStatus reports whether a provider is currently reachable.
type HealthStatus struct {
	Healthy bool
	Detail  string
}

// Adapter is the sole dynamic-dispatch boundary between the investigation
// core and an external data source.
type Adapter interface {
	// ID is a stable identifier used for circuit-breaker keying, cache
	// key scoping and audit logging (e.g. "criminal-national-v2").
	ID() string

	// SupportedChecks lists the CheckTypes this adapter can answer.
	SupportedChecks() []CheckType

	// Execute performs one check. Implementations must respect ctx
	// cancellation/deadlines and return a typed error from this package
	// (ErrRateLimited, ErrNotFound, ErrProviderUnavailable) where it
	// applies so RequestRouter can decide whether to retry.
	Execute(ctx context.Context, req Request) (*Response, error)

	// HealthCheck reports current reachability. RequestRouter does not
	// call it; the circuit breaker alone decides whether a call is tried.
	HealthCheck(ctx context.Context) HealthStatus
}

// Registry holds the set of adapters available to RequestRouter, indexed
// by the check types they can answer. Registration order is preserved
// and is the fallback order: the first adapter registered for a check
// type is its primary provider, so cache keys and provider selection
// stay stable run-to-run.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(a Adapter) {
	if _, exists := r.adapters[a.ID()]; !exists {
		r.order = append(r.order, a.ID())
	}
	r.adapters[a.ID()] = a
}

func (r *Registry) Get(id string) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// ForCheck returns every registered adapter that can answer the given
// check type, in registration order.
func (r *Registry) ForCheck(check CheckType) []Adapter {
	var out []Adapter
	for _, id := range r.order {
		a := r.adapters[id]
		for _, c := range a.SupportedChecks() {
			if c == check {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}
