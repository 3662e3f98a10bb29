package investigation

import (
	"context"
	"errors"
	"sync"

	"github.com/elile/screening-core/internal/cache"
	"github.com/elile/screening-core/internal/dispatcher"
	"github.com/elile/screening-core/internal/provider"
	"github.com/elile/screening-core/internal/router"
)

// QueryExecutor runs a batch of SearchQuery values for one information
// type to completion, bounding how many run concurrently: a fixed-size
// buffered channel gates entry rather than letting every query's
// goroutine fire at once. Execution itself routes through
// PriorityDispatcher and RequestRouter instead.
type QueryExecutor struct {
	dispatcher *dispatcher.PriorityDispatcher
	router     *router.Router
	maxConcurrent int
}

const defaultMaxConcurrentQueries = 10

func NewQueryExecutor(pd *dispatcher.PriorityDispatcher, r *router.Router, maxConcurrent int) *QueryExecutor {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentQueries
	}
	return &QueryExecutor{dispatcher: pd, router: r, maxConcurrent: maxConcurrent}
}

// Execute submits every query in the batch to the PriorityDispatcher,
// which applies global token-bucket flow control and priority ordering
// on top of the maxConcurrent cap this executor enforces locally, and
// returns the results in the same order they were submitted.
func (e *QueryExecutor) Execute(ctx context.Context, tenantID string, queries []SearchQuery) ExecutionSummary {
	summary := ExecutionSummary{}
	if len(queries) == 0 {
		return summary
	}
	summary.InfoType = queries[0].InfoType
	phase := dispatcher.InfoTypePhase(TypeDependencies[summary.InfoType].Phase)

	results := make([]QueryResult, len(queries))
	sem := make(chan struct{}, e.maxConcurrent)
	var wg sync.WaitGroup

	for i, q := range queries {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, q SearchQuery) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.runOne(ctx, tenantID, phase, q)
		}(i, q)
	}
	wg.Wait()

	for _, r := range results {
		if r.Err == nil {
			summary.SuccessCount++
		} else {
			summary.FailureCount++
		}
	}
	summary.Results = results
	return summary
}

// runOne hands one query to the PriorityDispatcher, which queues it
// behind its phase priority and the global rate-limit token before the
// wrapped closure reaches RequestRouter for cache/retry/breaker handling.
func (e *QueryExecutor) runOne(ctx context.Context, tenantID string, phase dispatcher.InfoTypePhase, q SearchQuery) QueryResult {
	// The fingerprint distinguishes targeted variants of the same check:
	// a Travis-county criminal search and a Dallas-county one must not
	// share a cache slot.
	fingerprint := q.SearchParams["full_name"] + "|" + string(q.CheckType) +
		"|" + q.SearchParams["county"] + "|" + q.SearchParams["refinement_focus"]
	mod := modifierFor(q)

	resultCh := e.dispatcher.Submit(ctx, dispatcher.Submission{
		InfoType: string(q.InfoType),
		Phase:    phase,
		Modifier: mod,
		Query: func(ctx context.Context) (interface{}, error) {
			req := provider.Request{
				QueryID:   q.QueryID,
				CheckType: q.CheckType,
				Params:    q.SearchParams,
			}
			// A routing failure is a domain outcome, not a transport
			// error, so it travels back as a value rather than err; the
			// dispatcher's own error path is reserved for cancellation
			// and global-bucket starvation.
			routed := e.router.Route(ctx, cache.OriginPaidExternal, tenantID, req, fingerprint)
			return routed, nil
		},
	})

	select {
	case sub := <-resultCh:
		if sub.Err != nil {
			return QueryResult{Query: q, Err: sub.Err, FailureReason: "ALL_RATE_LIMITED"}
		}
		routed, _ := sub.Value.(router.Result)
		if routed.Failed {
			return QueryResult{Query: q, Err: errors.New(routed.Detail), FailureReason: string(routed.FailureReason)}
		}
		return QueryResult{Query: q, Response: *routed.Response}
	case <-ctx.Done():
		return QueryResult{Query: q, Err: ctx.Err(), FailureReason: "TIMEOUT"}
	}
}

// modifierFor gives gap-fill queries chasing a high-priority gap a
// small boost over routine initial/enriched queries in the same phase.
func modifierFor(q SearchQuery) dispatcher.Modifier {
	if q.QueryType == QueryGapFill && q.Priority == GapPriorityNoData {
		return dispatcher.ModifierBoost
	}
	return dispatcher.ModifierNone
}
