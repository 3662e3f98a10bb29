package dispatcher

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
)

// InfoTypePhase is the coarse investigation phase a submission belongs to;
// it sets the submission's base priority before modifiers are applied.
// Mirrors the phase ordering FOUNDATION -> RECORDS -> INTELLIGENCE ->
// NETWORK -> RECONCILIATION, but inverted into a priority scale where a
// higher number means "dispatch sooner".
type InfoTypePhase string

const (
	PhaseFoundation     InfoTypePhase = "FOUNDATION"
	PhaseRecords        InfoTypePhase = "RECORDS"
	PhaseIntelligence   InfoTypePhase = "INTELLIGENCE"
	PhaseNetwork        InfoTypePhase = "NETWORK"
	PhaseReconciliation InfoTypePhase = "RECONCILIATION"
)

// basePriority assigns the phase's starting priority score: foundation
// checks block every later phase so they jump the queue; reconciliation
// ranks next, ahead of records, with intelligence and network last.
var basePriority = map[InfoTypePhase]int{
	PhaseFoundation:     5,
	PhaseRecords:        3,
	PhaseIntelligence:   2,
	PhaseNetwork:        2,
	PhaseReconciliation: 4,
}

// Modifier nudges a submission's priority up or down within its phase
// band, e.g. a refinement query chasing a high-severity gap outranks a
// routine first-pass query in the same phase.
type Modifier int

const (
	ModifierNone   Modifier = 0
	ModifierBoost  Modifier = 1
	ModifierDefer  Modifier = -1
)

func priorityFor(phase InfoTypePhase, mod Modifier) Priority {
	score := basePriority[phase] + int(mod)
	// Invert: PriorityDispatcher's underlying heap treats lower Priority
	// values as "dispatch first", so a higher score maps to a lower
	// Priority constant.
	switch {
	case score >= 6:
		return PriorityFoundation
	case score >= 4:
		return PriorityRecords
	case score >= 2:
		return PriorityIntel
	default:
		return PriorityLow
	}
}

// Submission is one unit of work routed through the PriorityDispatcher:
// running Query performs the actual outbound provider call via the
// RequestRouter and returns its result.
type Submission struct {
	InfoType string
	Phase    InfoTypePhase
	Modifier Modifier
	Query    func(ctx context.Context) (interface{}, error)
}

// SubmissionResult pairs a submission's info type with its outcome so
// dispatch_for_type/dispatch_all can group results back up.
type SubmissionResult struct {
	InfoType string
	Value    interface{}
	Err      error
}

// PriorityDispatcher is the domain-facing façade over the generic
// Dispatcher: investigation code submits typed Submissions instead of raw
// Jobs, and can wait for every query belonging to one information type
// (dispatch_for_type) or drain everything outstanding (dispatch_all).
type PriorityDispatcher struct {
	core *Dispatcher

	mu  sync.Mutex
	seq int
}

// NewPriorityDispatcher constructs the domain dispatcher. capacityRPM is the sustained
// requests-per-minute ceiling shared by every submission regardless of
// phase; burst is sized to roughly a tenth of RPM so a sudden spike of
// queued high-priority items can't saturate downstream providers in one tick,
// with a floor of 1.
func NewPriorityDispatcher(capacityRPM int, queueDepth int) *PriorityDispatcher {
	burst := capacityRPM / 10
	if burst < 1 {
		burst = 1
	}
	return &PriorityDispatcher{
		core: New(Config{
			GlobalCapacity:     capacityRPM,
			GlobalRefillPerSec: float64(capacityRPM) / 60.0,
			BurstSize:          burst,
			QueueDepth:         queueDepth,
		}),
	}
}

// Submit enqueues one submission and returns immediately; the result
// arrives on the returned channel once dispatched. Submissions for the
// same info type preserve FIFO order among themselves via the core
// dispatcher's sequence-numbered heap.
func (p *PriorityDispatcher) Submit(ctx context.Context, sub Submission) <-chan SubmissionResult {
	resultCh := make(chan SubmissionResult, 1)

	p.mu.Lock()
	p.seq++
	id := fmt.Sprintf("%s-%d", sub.InfoType, p.seq)
	p.mu.Unlock()

	job := &Job{
		ID:       id,
		Priority: priorityFor(sub.Phase, sub.Modifier),
		Run: func(ctx context.Context) error {
			val, err := sub.Query(ctx)
			resultCh <- SubmissionResult{InfoType: sub.InfoType, Value: val, Err: err}
			return err
		},
	}

	// Enqueue synchronously so the core's sequence numbers follow call
	// order; the buffered Result channel lets the loop report without a
	// waiting reader.
	job.Result = make(chan error, 1)
	job.ctx = ctx
	p.core.mu.Lock()
	p.core.seq++
	heap.Push(&p.core.queue, &queueItem{job: job, seq: p.core.seq})
	p.core.cond.Signal()
	p.core.mu.Unlock()

	return resultCh
}

// DispatchForType submits a batch of queries for one information type and
// blocks until every one has a result, preserving submission order.
func (p *PriorityDispatcher) DispatchForType(ctx context.Context, infoType string, phase InfoTypePhase, queries []func(ctx context.Context) (interface{}, error)) []SubmissionResult {
	channels := make([]<-chan SubmissionResult, len(queries))
	for i, q := range queries {
		channels[i] = p.Submit(ctx, Submission{InfoType: infoType, Phase: phase, Query: q})
	}
	results := make([]SubmissionResult, len(queries))
	for i, ch := range channels {
		select {
		case results[i] = <-ch:
		case <-ctx.Done():
			results[i] = SubmissionResult{InfoType: infoType, Err: ctx.Err()}
		}
	}
	return results
}

// DispatchAll submits every queued submission across all info types and
// blocks for every result, grouped back by info type.
func (p *PriorityDispatcher) DispatchAll(ctx context.Context, batches map[string][]Submission) map[string][]SubmissionResult {
	type slot struct {
		infoType string
		ch       <-chan SubmissionResult
	}
	var slots []slot
	for infoType, subs := range batches {
		for _, sub := range subs {
			sub.InfoType = infoType
			slots = append(slots, slot{infoType: infoType, ch: p.Submit(ctx, sub)})
		}
	}

	out := make(map[string][]SubmissionResult)
	for _, s := range slots {
		select {
		case r := <-s.ch:
			out[s.infoType] = append(out[s.infoType], r)
		case <-ctx.Done():
			out[s.infoType] = append(out[s.infoType], SubmissionResult{InfoType: s.infoType, Err: ctx.Err()})
		}
	}
	return out
}

// Shutdown stops the underlying dispatch loop.
func (p *PriorityDispatcher) Shutdown() { p.core.Shutdown() }

// AvailableTokens reports the current global token level for metrics.
func (p *PriorityDispatcher) AvailableTokens() float64 { return p.core.AvailableTokens() }

// QueueDepth reports the number of jobs waiting in the core dispatcher.
func (p *PriorityDispatcher) QueueDepth() int { return p.core.QueueDepth() }
