// Package router implements the RequestRouter: given a query for a single
// check type it resolves a cache hit, a healthy provider, and applies
// rate limiting and circuit breaking before making (or skipping) a live
// provider call, retrying with backoff around a breaker-gated external
// call before falling back to the next configured provider.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/elile/screening-core/internal/cache"
	"github.com/elile/screening-core/internal/circuitbreaker"
	"github.com/elile/screening-core/internal/dispatcher"
	"github.com/elile/screening-core/internal/provider"
)

// FailureReason classifies why a routed request didn't yield data, used
// by the investigation layer to decide whether to retry, refine, or give
// up on a gap.
type FailureReason string

const (
	FailureNone            FailureReason = ""
	FailureNoProvider      FailureReason = "NO_PROVIDER"
	FailureTimeout         FailureReason = "TIMEOUT"
	FailureAllRateLimited  FailureReason = "ALL_RATE_LIMITED"
	FailureCircuitOpen     FailureReason = "CIRCUIT_OPEN"
	FailureProviderError   FailureReason = "PROVIDER_ERROR"
	FailureInvalidRequest  FailureReason = "INVALID_REQUEST"
)

// Result is what RequestRouter hands back for a single routed query.
type Result struct {
	CheckType     provider.CheckType
	ProviderID    string
	Response      *provider.Response
	Freshness     cache.Freshness
	Failed        bool
	FailureReason FailureReason
	Detail        string
}

// Config tunes retry/backoff behavior independent of per-provider breaker
// policy (breaker policy lives in circuitbreaker.defaultProviderConfig).
type Config struct {
	MaxRetries    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	CacheFreshTTL  time.Duration
	CacheStaleTTL  time.Duration
}

// Router is the RequestRouter.
type Router struct {
	cfg      Config
	registry *provider.Registry
	cacheSt  *cache.Store
	breakers *circuitbreaker.ProviderCircuitBreakers
	buckets  map[string]*dispatcher.TokenBucket
	logger   *slog.Logger
}

func New(cfg Config, registry *provider.Registry, cacheSt *cache.Store, breakers *circuitbreaker.ProviderCircuitBreakers, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg: cfg, registry: registry, cacheSt: cacheSt, breakers: breakers,
		buckets: make(map[string]*dispatcher.TokenBucket),
		logger:  logger,
	}
}

// RegisterProviderRateLimit configures a per-provider token bucket; a
// provider with no registered bucket is treated as unthrottled beyond the
// global PriorityDispatcher limit.
func (r *Router) RegisterProviderRateLimit(providerID string, capacity int, refillPerSec float64) {
	r.buckets[providerID] = dispatcher.NewTokenBucket(capacity, refillPerSec)
}

// Route resolves and executes a single check-type query: cache lookup
// first (fresh short-circuits entirely, stale returns immediately but is
// flagged for the caller to decide on a background refresh), then
// provider selection with fallback across every adapter registered for
// the check type, skipping providers whose breaker is open or whose
// token bucket is empty.
func (r *Router) Route(ctx context.Context, origin cache.Origin, tenantID string, req provider.Request, subjectFingerprint string) Result {
	candidates := r.registry.ForCheck(req.CheckType)
	if len(candidates) == 0 {
		return Result{CheckType: req.CheckType, Failed: true, FailureReason: FailureNoProvider,
			Detail: "no provider adapter registered for check type"}
	}

	var lastErr error
	var allRateLimited = true
	var anyCircuitOpen = false

	for _, adapter := range candidates {
		providerID := adapter.ID()

		// Cache keys are provider-scoped, so the lookup happens per
		// candidate: a fallback provider's cached result is still a hit
		// even when the primary has nothing stored.
		cacheKey := cache.Key(origin, tenantID, providerID, string(req.CheckType), subjectFingerprint)
		if entry, freshness, err := r.cacheSt.Lookup(ctx, cacheKey); err == nil && entry != nil {
			switch freshness {
			case cache.Fresh, cache.Stale:
				// Stale data is returned immediately rather than blocking
				// the SAR loop on a refresh; Freshness tells the caller
				// which band it came from.
				return Result{
					CheckType: req.CheckType, ProviderID: providerID, Freshness: freshness,
					Response: &provider.Response{QueryID: req.QueryID, NormalizedData: entry.Payload, FetchedAt: entry.StoredAt},
				}
			}
		}

		breaker := r.breakers.For(providerID)

		if bucket, ok := r.buckets[providerID]; ok {
			if ok, _ := bucket.TryTake(1); !ok {
				continue
			}
		}
		allRateLimited = false

		resp, err := r.executeWithRetry(ctx, breaker, adapter, req)
		if err == nil {
			_ = r.cacheSt.Put(ctx, &cache.Entry{
				Key: cacheKey, Origin: origin, TenantID: tenantID,
				Payload: resp.NormalizedData, FreshTTL: r.cfg.CacheFreshTTL, StaleTTL: r.cfg.CacheStaleTTL,
			})
			return Result{CheckType: req.CheckType, ProviderID: providerID, Response: resp, Freshness: cache.Miss}
		}

		lastErr = err
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			anyCircuitOpen = true
		}
		r.logger.Warn("router: provider attempt failed, trying fallback", "provider", providerID, "check_type", req.CheckType, "err", err)
	}

	reason := FailureProviderError
	switch {
	case allRateLimited:
		reason = FailureAllRateLimited
	case anyCircuitOpen && lastErr != nil && errors.Is(lastErr, circuitbreaker.ErrCircuitOpen):
		reason = FailureCircuitOpen
	case errors.Is(lastErr, context.DeadlineExceeded):
		reason = FailureTimeout
	}

	detail := "all provider candidates exhausted"
	if lastErr != nil {
		detail = lastErr.Error()
	}
	return Result{CheckType: req.CheckType, Failed: true, FailureReason: reason, Detail: detail}
}

// executeWithRetry runs one provider call through its breaker with
// bounded exponential backoff + jitter retries. Permanent failures
// (unsupported check, invalid request) never retry; transient ones
// (timeout, rate limited, provider unavailable) do, up to MaxRetries.
func (r *Router) executeWithRetry(ctx context.Context, breaker *circuitbreaker.CircuitBreaker, adapter provider.Adapter, req provider.Request) (*provider.Response, error) {
	var lastErr error
	delay := r.cfg.RetryBaseDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	maxDelay := r.cfg.RetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}
	maxRetries := r.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := breaker.ExecuteContext(ctx, func(ctx context.Context) (interface{}, error) {
			return adapter.Execute(ctx, req)
		})
		if err == nil {
			resp := result.(*provider.Response)
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}
		if attempt == maxRetries {
			break
		}

		jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(jittered):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return nil, fmt.Errorf("provider %s exhausted retries: %w", adapter.ID(), lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, provider.ErrUnsupportedCheck) || errors.Is(err, provider.ErrNotFound) {
		return false
	}
	return errors.Is(err, provider.ErrRateLimited) ||
		errors.Is(err, provider.ErrProviderUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// RouteBatch routes a list of queries independently, preserving input
// order in the returned slice.
func (r *Router) RouteBatch(ctx context.Context, origin cache.Origin, tenantID string, reqs []provider.Request, fingerprintFor func(provider.Request) string) []Result {
	results := make([]Result, len(reqs))
	for i, req := range reqs {
		results[i] = r.Route(ctx, origin, tenantID, req, fingerprintFor(req))
	}
	return results
}
