package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/elile/screening-core/internal/cache"
	"github.com/elile/screening-core/internal/circuitbreaker"
	"github.com/elile/screening-core/internal/compliance"
	"github.com/elile/screening-core/internal/config"
	"github.com/elile/screening-core/internal/consent"
	"github.com/elile/screening-core/internal/crossindex"
	"github.com/elile/screening-core/internal/dispatcher"
	"github.com/elile/screening-core/internal/httpapi"
	"github.com/elile/screening-core/internal/identity"
	"github.com/elile/screening-core/internal/infra"
	"github.com/elile/screening-core/internal/middleware"
	"github.com/elile/screening-core/internal/multitenancy"
	"github.com/elile/screening-core/internal/provider"
	"github.com/elile/screening-core/internal/router"
	"github.com/elile/screening-core/internal/screening"
	"github.com/elile/screening-core/internal/store"
	"github.com/elile/screening-core/internal/webhook"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on process environment")
	}

	cfg := config.Get()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFor(cfg),
	}))
	slog.SetDefault(logger)
	logger.Info("starting screening-core", "env", cfg.Server.Env, "port", cfg.GetPort())

	cacheBackend := newCacheBackend(cfg, logger)
	cacheStore := cache.New(cacheBackend)

	breakers := circuitbreaker.NewProviderCircuitBreakers()

	registry := provider.NewRegistry()
	registerMockAdapters(registry)

	rt := router.New(router.Config{
		MaxRetries:     cfg.Router.MaxRetries,
		RetryBaseDelay: time.Duration(cfg.Router.RetryBaseDelayMs) * time.Millisecond,
		RetryMaxDelay:  time.Duration(cfg.Router.RetryMaxDelayMs) * time.Millisecond,
		CacheFreshTTL:  time.Duration(cfg.Router.CacheFreshTTLSec) * time.Second,
		CacheStaleTTL:  time.Duration(cfg.Router.CacheStaleTTLSec) * time.Second,
	}, registry, cacheStore, breakers, logger)

	pd := dispatcher.NewPriorityDispatcher(cfg.Dispatcher.GlobalCapacity, cfg.Dispatcher.QueueDepth)

	evaluator := compliance.NewEvaluator(compliance.NewRuleRepository(), logger)
	consents := consent.NewStore()

	var crossIdx *crossindex.Index
	if cfg.CrossIndex.Enabled {
		crossIdx = crossindex.New(logger, 4, 500)
		if cfg.CrossIndex.ProjectID != "" {
			pub, err := crossindex.NewUpdatePublisher(context.Background(), cfg.CrossIndex.ProjectID, cfg.CrossIndex.TopicID, logger)
			if err != nil {
				logger.Warn("cross-index pubsub fan-out unavailable, staying process-local", "error", err)
			} else {
				defer pub.Close()
				crossIdx = crossIdx.WithPublisher(pub)
			}
		}
	}

	orchestrator := screening.New(screening.Config{
		Evaluator:            evaluator,
		Consents:             consents,
		Registry:             registry,
		Router:               rt,
		Dispatcher:           pd,
		CrossIndex:           crossIdx,
		MaxConcurrentQueries: 10,
		Log:                  logger,
	})

	var dbClient *store.Client
	if cfg.GetSupabaseURL() != "" && cfg.GetSupabaseKey() != "" {
		var err error
		dbClient, err = store.NewClient(cfg.GetSupabaseURL(), cfg.GetSupabaseKey())
		if err != nil {
			logger.Warn("supabase client unavailable, persistence disabled", "error", err)
			dbClient = nil
		}
	}

	var tenants *multitenancy.TenantManager
	if dbClient != nil {
		tenants = multitenancy.NewTenantManager(dbClient)
	}

	var auditLog *store.AuditLog
	if cfg.Database.AuditDSN != "" {
		var err error
		auditLog, err = store.NewAuditLog(cfg.Database.AuditDSN)
		if err != nil {
			logger.Warn("direct postgres audit log unavailable, audit events route through supabase only", "error", err)
			auditLog = nil
		} else {
			defer auditLog.Close()
		}
	}

	var providerTLS *tls.Config
	if cfg.Identity.SocketPath != "" {
		if verifier, err := identity.NewSPIFFEVerifier(cfg.Identity.SocketPath); err != nil {
			logger.Warn("spiffe workload identity unavailable, provider calls use ambient TLS", "error", err)
		} else {
			defer verifier.Close()
			if providerTLS, err = verifier.GetTLSConfig(); err != nil {
				logger.Warn("spiffe tls config unavailable", "error", err)
			}
			logger.Info("spiffe workload identity established", "trust_domain", cfg.Identity.TrustDomain)
		}
	}
	registerGRPCAdapters(registry, providerTLS, logger)

	webhookRegistry := webhook.NewRegistry()
	var emitter webhook.Emitter
	if cfg.CloudTasks.Enabled {
		cd, err := webhook.NewCloudDispatcher(webhookRegistry, cfg.CloudTasks.ProjectID, cfg.CloudTasks.LocationID, cfg.CloudTasks.QueueID, cfg.Webhook.WorkerCount)
		if err != nil {
			logger.Warn("cloud tasks webhook dispatcher unavailable, falling back to in-memory", "error", err)
			emitter = webhook.NewDispatcher(webhookRegistry, cfg.Webhook.WorkerCount)
		} else {
			emitter = cd
		}
	} else {
		emitter = webhook.NewDispatcher(webhookRegistry, cfg.Webhook.WorkerCount)
	}

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{})

	srv := httpapi.New(httpapi.Config{
		Orchestrator:     orchestrator,
		Tenants:          tenants,
		DB:               dbClient,
		RateLimiter:      rateLimiter,
		Emitter:          emitter,
		Webhooks:         webhookRegistry,
		ConsentRegistrar: consents,
		AuditLog:         auditLog,
		HRISSecret:       os.Getenv("HRIS_WEBHOOK_SECRET"),
		Log:              logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Interface + ":" + cfg.GetPort(),
		Handler:      srv.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	emitter.Shutdown()
	pd.Shutdown()
}

func levelFor(cfg *config.Config) slog.Level {
	if cfg.IsProduction() {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// newCacheBackend prefers Redis when REDIS_ADDR is configured, falling
// back to the in-memory backend for local development.
func newCacheBackend(cfg *config.Config, log *slog.Logger) cache.Backend {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return cache.NewInMemoryBackend()
	}
	adapter, err := infra.NewGoRedisAdapter(addr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		log.Warn("redis unavailable, falling back to in-memory cache", "error", err)
		return cache.NewInMemoryBackend()
	}
	return adapter
}

// registerGRPCAdapters dials remote provider services declared via
// PROVIDER_GRPC_TARGETS, formatted "id=host:port;CHECK_A|CHECK_B,...".
// Remote adapters register alongside the mocks, so a partially
// configured environment still serves every check type.
func registerGRPCAdapters(registry *provider.Registry, tlsCfg *tls.Config, log *slog.Logger) {
	spec := os.Getenv("PROVIDER_GRPC_TARGETS")
	if spec == "" {
		return
	}
	for _, entry := range strings.Split(spec, ",") {
		id, rest, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok {
			log.Warn("skipping malformed provider target", "entry", entry)
			continue
		}
		target, checksSpec, ok := strings.Cut(rest, ";")
		if !ok {
			log.Warn("skipping provider target without check list", "entry", entry)
			continue
		}
		var checks []provider.CheckType
		for _, c := range strings.Split(checksSpec, "|") {
			checks = append(checks, provider.CheckType(strings.TrimSpace(c)))
		}
		adapter, err := provider.NewGRPCAdapter(provider.GRPCAdapterConfig{
			ProviderID: id,
			Target:     target,
			Checks:     checks,
			TLS:        tlsCfg,
		})
		if err != nil {
			log.Warn("provider adapter unavailable", "provider", id, "error", err)
			continue
		}
		registry.Register(adapter)
		log.Info("remote provider registered", "provider", id, "target", target, "checks", len(checks))
	}
}

// registerMockAdapters wires one mock adapter per check type so the
// service is exercisable end to end without live provider credentials;
// production deployments register real adapters here instead/in addition.
func registerMockAdapters(registry *provider.Registry) {
	registry.Register(provider.NewMockAdapter("identity-mock", provider.CheckIdentityBasic, provider.CheckSSNTrace))
	registry.Register(provider.NewMockAdapter("employment-mock", provider.CheckEmploymentVerify))
	registry.Register(provider.NewMockAdapter("education-mock", provider.CheckEducationVerify))
	registry.Register(provider.NewMockAdapter("criminal-mock", provider.CheckCriminalNational, provider.CheckCriminalCounty))
	registry.Register(provider.NewMockAdapter("civil-mock", provider.CheckCivilLitigation))
	registry.Register(provider.NewMockAdapter("credit-mock", provider.CheckCreditReport))
	registry.Register(provider.NewMockAdapter("license-mock", provider.CheckLicenseVerify))
	registry.Register(provider.NewMockAdapter("regulatory-mock", provider.CheckRegulatoryEnforce))
	registry.Register(provider.NewMockAdapter("sanctions-mock", provider.CheckSanctionsOFAC))
	registry.Register(provider.NewMockAdapter("adverse-media-mock", provider.CheckAdverseMedia))
	registry.Register(provider.NewMockAdapter("digital-footprint-mock", provider.CheckDigitalFootprint))
	registry.Register(provider.NewMockAdapter("network-d2-mock", provider.CheckNetworkD2))
	registry.Register(provider.NewMockAdapter("network-d3-mock", provider.CheckNetworkD3))
}
