// Package screening implements the orchestrator that drives one
// screening request end to end: compliance pruning, consent
// verification, phase-ordered SAR loops across information types, and
// final risk scoring. It wires the compliance, consent, investigation,
// and risk packages together in one constructor rather than letting
// each package reach for the others directly.
package screening

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/elile/screening-core/internal/compliance"
	"github.com/elile/screening-core/internal/consent"
	"github.com/elile/screening-core/internal/crossindex"
	"github.com/elile/screening-core/internal/dispatcher"
	"github.com/elile/screening-core/internal/investigation"
	"github.com/elile/screening-core/internal/provider"
	"github.com/elile/screening-core/internal/risk"
	"github.com/elile/screening-core/internal/router"
)

// FailureKind is the closed vocabulary of reasons a screening can fail
// outright: only these four ever abort a screening; every other
// failure (a single blocked check, a weak SAR type, a cancelled query)
// is absorbed and annotated instead.
type FailureKind string

const (
	FailureValidation    FailureKind = "VALIDATION"
	FailureComplianceAll FailureKind = "COMPLIANCE_BLOCK"
	FailureConsentMissing FailureKind = "CONSENT_MISSING"
	FailureFatalInfra    FailureKind = "FATAL_INFRA"
)

// Error is the screening-level failure surfaced to the caller; it is
// never returned for a single blocked check or a single failed query.
type Error struct {
	Kind          FailureKind
	Message       string
	MissingScopes []consent.Scope
	BlockedChecks []compliance.Evaluation
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

// Status is the coarse outcome of a completed (or aborted) screening.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusComplete  Status = "COMPLETE"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Request is everything the orchestrator needs to run one screening.
type Request struct {
	ScreeningID   string
	TenantID      string
	Subject       investigation.Subject
	DesiredTypes  []investigation.InfoType
	Params        investigation.ScreeningParams
	Deadline      time.Time // zero means use the tier default
}

// Result is what RunScreening returns once every phase is terminal (or
// the screening was cancelled/aborted).
type Result struct {
	ScreeningID    string
	Status         Status
	TypeStates     map[investigation.InfoType]*investigation.SARTypeState
	Findings       []investigation.Finding
	Risk           risk.Result
	BlockedChecks  []compliance.Evaluation
	PermittedTypes []investigation.InfoType
	SkippedTypes   map[investigation.InfoType]investigation.CompletionReason
}

// defaultDeadline is the per-screening timeout floor by service tier.
func defaultDeadline(tier compliance.Tier) time.Duration {
	if tier == compliance.TierEnhanced {
		return 30 * time.Minute
	}
	return 10 * time.Minute
}

// Orchestrator wires every core component in dependency order and
// drives the FOUNDATION -> RECORDS -> INTELLIGENCE -> NETWORK ->
// RECONCILIATION phase barrier for one screening at a time; each
// in-flight screening exclusively owns its own KnowledgeBase and
// SARTypeState set, while the evaluator, consent store, dispatcher,
// router, and cross-index below are shared across every concurrent
// screening in the process.
type Orchestrator struct {
	evaluator  *compliance.Evaluator
	consents   *consent.Store
	typeMgr    *investigation.InformationTypeManager
	planner    *investigation.QueryPlanner
	refiner    *investigation.QueryRefiner
	assessor   *investigation.ResultAssessor
	executor   *investigation.QueryExecutor
	classifier *risk.Classifier
	scorer     *risk.Scorer
	crossIndex *crossindex.Index
	log        *slog.Logger
}

// Config bundles the shared, process-wide collaborators the
// orchestrator needs; callers construct these once at startup (see
// cmd/server) and pass the same instances to every Orchestrator.
type Config struct {
	Evaluator    *compliance.Evaluator
	Consents     *consent.Store
	Registry     *provider.Registry
	Router       *router.Router
	Dispatcher   *dispatcher.PriorityDispatcher
	CrossIndex   *crossindex.Index
	MaxConcurrentQueries int
	Log          *slog.Logger
}

func New(cfg Config) *Orchestrator {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	planner := investigation.NewQueryPlanner(cfg.Registry)
	return &Orchestrator{
		evaluator:  cfg.Evaluator,
		consents:   cfg.Consents,
		typeMgr:    investigation.NewInformationTypeManager(cfg.Evaluator, log),
		planner:    planner,
		refiner:    investigation.NewQueryRefiner(planner),
		assessor:   investigation.NewResultAssessor(nil, log),
		executor:   investigation.NewQueryExecutor(cfg.Dispatcher, cfg.Router, cfg.MaxConcurrentQueries),
		classifier: risk.NewClassifier(log),
		scorer:     risk.NewScorer(),
		crossIndex: cfg.CrossIndex,
		log:        log,
	}
}

// RunScreening drives one screening request to completion: it prunes
// the desired check set against compliance, verifies consent,
// iterates every phase's SAR loops to termination, scores the result,
// and (best-effort, out of band) indexes the screening's confirmed
// facts into the cross-screening graph.
func (o *Orchestrator) RunScreening(ctx context.Context, req Request) (Result, error) {
	result := Result{ScreeningID: req.ScreeningID, Status: StatusRunning}

	permittedTypes, blocked, err := o.Precheck(req)
	result.BlockedChecks = blocked
	result.PermittedTypes = permittedTypes
	if err != nil {
		return result, err
	}

	deadline := req.Deadline
	if deadline.IsZero() {
		deadline = time.Now().Add(defaultDeadline(req.Params.Tier))
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	// (d) drive phases under this screening's exclusively-owned state.
	kb := investigation.NewKnowledgeBase()
	sm := investigation.NewSARStateMachine(o.log)
	states := make(map[investigation.InfoType]*investigation.SARTypeState)
	skipped := make(map[investigation.InfoType]investigation.CompletionReason)
	selected := selectedTypes(permittedTypes)

	for {
		if ctx.Err() != nil {
			result.Status = StatusCancelled
			break
		}

		next := o.typeMgr.GetNextTypes(states, req.Params, selected)
		if next.AllComplete {
			result.Status = StatusComplete
			break
		}

		// A tier- or compliance-blocked type is terminal: it will never
		// become eligible within this screening, so skip it now. A type
		// blocked only by an unmet dependency stays idle and is picked
		// up on a later pass once the dependency terminates.
		progressed := false
		for _, bt := range next.BlockedTypes {
			if next.BlockedReasons[bt] == investigation.BlockUnmetDependency {
				continue
			}
			if states[bt] == nil {
				states[bt] = sm.Initialize(bt)
			}
			if states[bt].Status == investigation.StatusIdle {
				sm.Skip(states[bt], investigation.ReasonSkipped)
				skipped[bt] = investigation.ReasonSkipped
				progressed = true
			}
		}

		if len(next.NextTypes) == 0 {
			if !progressed {
				// nothing eligible and nothing new to skip: every
				// remaining type is permanently blocked by a cycle or
				// a dependency that itself never terminates; bail
				// rather than spin.
				result.Status = StatusComplete
				break
			}
			continue
		}

		for _, it := range next.NextTypes {
			states[it] = sm.Initialize(it)
		}

		var wg sync.WaitGroup
		for _, it := range next.NextTypes {
			wg.Add(1)
			go func(infoType investigation.InfoType) {
				defer wg.Done()
				o.runType(ctx, sm, req.TenantID, req.Subject, kb, states[infoType], req.Params)
			}(it)
		}
		wg.Wait()
	}

	result.TypeStates = states
	result.SkippedTypes = skipped

	allFacts := make([]investigation.Fact, 0)
	allInconsistencies := make([]investigation.Inconsistency, 0)
	for _, st := range states {
		allFacts = append(allFacts, st.Facts...)
		allInconsistencies = append(allInconsistencies, st.Inconsistencies...)
	}

	findings := o.classifier.Classify(allFacts, allInconsistencies, req.Params.Role)
	result.Findings = findings
	result.Risk = o.scorer.Score(findings)

	if o.crossIndex != nil {
		o.indexScreening(req.Subject, kb)
	}

	return result, nil
}

// Precheck runs every synchronous validation RunScreening performs
// before it starts the (potentially long-running) SAR phase loop:
// request shape, compliance pruning, and consent/FCRA verification.
// httpapi calls this directly so POST /v1/screenings can return 400/403
// immediately instead of making the caller poll a background run that
// was always going to fail at its first step.
func (o *Orchestrator) Precheck(req Request) (permittedTypes []investigation.InfoType, blocked []compliance.Evaluation, err error) {
	if req.Subject.SubjectID == "" {
		return nil, nil, &Error{Kind: FailureValidation, Message: "subject_id is required"}
	}
	if len(req.DesiredTypes) == 0 {
		return nil, nil, &Error{Kind: FailureValidation, Message: "at least one information type must be requested"}
	}

	// (b) compliance pruning: drop any requested type whose primary
	// check type is blocked outright, annotate the rest.
	permittedTypes, blocked = o.pruneByCompliance(req.DesiredTypes, req.Params)
	if len(permittedTypes) == 0 {
		return nil, blocked, &Error{Kind: FailureComplianceAll, Message: "every requested check is blocked for this locale/role/tier", BlockedChecks: blocked}
	}

	// (c) consent verification across the permitted set's check types.
	checkTypes := make([]provider.CheckType, 0, len(permittedTypes))
	for _, it := range permittedTypes {
		if ct := investigation.TypeDependencies[it].PrimaryCheckType; ct != "" {
			checkTypes = append(checkTypes, ct)
		}
	}
	consentResult := o.consents.VerifyCheckTypes(req.Subject.SubjectID, checkTypes, time.Now())
	if !consentResult.Valid {
		return permittedTypes, blocked, &Error{Kind: FailureConsentMissing, Message: "required consent scopes are missing", MissingScopes: consentResult.MissingScopes}
	}
	if req.Params.Locale == compliance.LocaleUS || req.Params.Locale == compliance.LocaleUSCA || req.Params.Locale == compliance.LocaleUSNY {
		if consentResult.Consent != nil {
			if ok, errs := consent.VerifyFCRADisclosure(consentResult.Consent, req.Params.Locale); !ok {
				return permittedTypes, blocked, &Error{Kind: FailureConsentMissing, Message: fmt.Sprintf("FCRA disclosure incomplete: %v", errs)}
			}
		}
	}

	return permittedTypes, blocked, nil
}

// selectedTypes expands the permitted set to everything this screening
// must actually run: each permitted type's transitive dependencies
// (IDENTITY is pulled in even when only CRIMINAL was requested, since
// CRIMINAL cannot start until IDENTITY is terminal), plus a final
// RECONCILIATION pass whenever every type it reconciles is present.
func selectedTypes(permitted []investigation.InfoType) map[investigation.InfoType]bool {
	selected := make(map[investigation.InfoType]bool)
	var add func(it investigation.InfoType)
	add = func(it investigation.InfoType) {
		if selected[it] {
			return
		}
		selected[it] = true
		for _, dep := range investigation.TypeDependencies[it].DependsOn {
			add(dep)
		}
	}
	for _, it := range permitted {
		add(it)
	}

	if !selected[investigation.TypeReconciliation] {
		covered := true
		for _, dep := range investigation.TypeDependencies[investigation.TypeReconciliation].DependsOn {
			if !selected[dep] {
				covered = false
				break
			}
		}
		if covered {
			selected[investigation.TypeReconciliation] = true
		}
	}
	return selected
}

// pruneByCompliance evaluates each requested information type's
// primary check type and splits the request into what's permitted and
// what's blocked, operating over information types rather than bare
// check types since that's the unit the phase sequencer schedules.
func (o *Orchestrator) pruneByCompliance(desired []investigation.InfoType, params investigation.ScreeningParams) ([]investigation.InfoType, []compliance.Evaluation) {
	var permitted []investigation.InfoType
	var blocked []compliance.Evaluation
	for _, it := range desired {
		dep, ok := investigation.TypeDependencies[it]
		if !ok || dep.PrimaryCheckType == "" {
			// RECONCILIATION and other types with no primary check
			// (pure synthesis over already-gathered facts) are never
			// individually compliance-gated.
			permitted = append(permitted, it)
			continue
		}
		eval := o.evaluator.Evaluate(params.Locale, dep.PrimaryCheckType, params.Role, params.Tier)
		if eval.Permitted {
			permitted = append(permitted, it)
		} else {
			blocked = append(blocked, eval)
		}
	}
	return permitted, blocked
}

// runType drives one information type's SAR loop — SEARCH, ASSESS,
// REFINE — until the IterationController says stop. It is always
// called as its own goroutine by RunScreening, one per eligible type
// in the current phase; all of its KnowledgeBase writes funnel through
// kb's own mutex, so no additional synchronization is needed here.
func (o *Orchestrator) runType(ctx context.Context, sm *investigation.SARStateMachine, tenantID string, subject investigation.Subject, kb *investigation.KnowledgeBase, state *investigation.SARTypeState, params investigation.ScreeningParams) {
	for {
		if ctx.Err() != nil {
			state.Status = investigation.StatusComplete
			state.CompletionReason = investigation.ReasonCancelled
			return
		}

		sm.StartIteration(state)
		iterationNumber := len(state.Iterations) + 1

		var queries []investigation.SearchQuery
		if iterationNumber == 1 {
			queries = o.planner.Plan(state.InfoType, subject, kb, iterationNumber)
		} else {
			queries = o.refiner.Refine(state.InfoType, state.Gaps, subject, kb, iterationNumber)
		}

		summary := o.executor.Execute(ctx, tenantID, queries)
		sm.BeginAssess(state)
		assessment := o.assessor.Assess(state.InfoType, summary.Results, kb)

		decision := sm.CompleteIteration(state, assessment, len(queries), summary.SuccessCount)
		if decision.Decision == investigation.DecisionComplete {
			return
		}
		sm.BeginRefine(state)
	}
}

// indexScreening offers every confirmed address and employer this
// screening discovered to the CrossScreeningIndex. Indexing is
// out-of-band and best-effort: a dropped or delayed update never
// fails, blocks, or even touches the screening itself.
func (o *Orchestrator) indexScreening(subject investigation.Subject, kb *investigation.KnowledgeBase) {
	for _, addr := range kb.Addresses() {
		o.crossIndex.SubmitAsync(crossindex.IndexEntry{
			SubjectID: subject.SubjectID,
			Type:      crossindex.ConnectionAddress,
			Value:     addr.Line1 + "|" + addr.City + "|" + addr.State + "|" + addr.Zip,
		})
	}
	for _, emp := range kb.EmployerNames() {
		o.crossIndex.SubmitAsync(crossindex.IndexEntry{
			SubjectID: subject.SubjectID,
			Type:      crossindex.ConnectionEmployer,
			Value:     emp,
		})
	}
	for _, email := range subject.Emails {
		o.crossIndex.SubmitAsync(crossindex.IndexEntry{
			SubjectID: subject.SubjectID,
			Type:      crossindex.ConnectionEmail,
			Value:     email,
		})
	}
}
