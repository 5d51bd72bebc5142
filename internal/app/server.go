// Package app wires configuration, storage, the gateway, agents, the
// orchestrator, and the HTTP surface into a runnable server.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/storyforge-ai/storyforge/internal/agent"
	"github.com/storyforge-ai/storyforge/internal/cache"
	"github.com/storyforge-ai/storyforge/internal/events"
	"github.com/storyforge-ai/storyforge/internal/health"
	"github.com/storyforge-ai/storyforge/internal/httpapi"
	"github.com/storyforge-ai/storyforge/internal/llm"
	"github.com/storyforge-ai/storyforge/internal/logging"
	"github.com/storyforge-ai/storyforge/internal/metrics"
	"github.com/storyforge-ai/storyforge/internal/orchestrator"
	"github.com/storyforge-ai/storyforge/internal/prompt"
	"github.com/storyforge-ai/storyforge/internal/provider"
	"github.com/storyforge-ai/storyforge/internal/stats"
	"github.com/storyforge-ai/storyforge/internal/store"
	"github.com/storyforge-ai/storyforge/internal/tracing"
	"github.com/storyforge-ai/storyforge/internal/workflow"
)

type Server struct {
	cfg Config

	r *chi.Mux

	store        store.Store
	gateway      *llm.Gateway
	orchestrator *orchestrator.Orchestrator
	checker      *health.Checker
	memCache     *cache.Memory // non-nil only for the memory backend
	manager      *workflow.Manager
	logger       *slog.Logger

	tracingShutdown func(context.Context) error
}

func NewServer(cfg Config) (*Server, error) {
	logger := logging.Setup(cfg.LogLevel)

	tracingShutdown, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "storyforge",
	})
	if err != nil {
		return nil, err
	}

	corsOrigins := cfg.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.TracingEnabled {
		r.Use(tracing.Middleware())
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Open store.
	db, err := store.NewSQLite(cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("database initialized", slog.String("dsn", cfg.DBDSN))

	bus := events.NewBus()
	m := metrics.New()

	s := &Server{
		cfg:             cfg,
		r:               r,
		store:           db,
		logger:          logger,
		tracingShutdown: tracingShutdown,
	}

	// Response cache.
	var cacheStore cache.Store
	switch cfg.CacheBackend {
	case "memory":
		mem := cache.NewMemory(cfg.CacheMaxEntries)
		s.memCache = mem
		cacheStore = mem
	case "redis":
		rc, err := cache.NewRedis(cfg.RedisURL, "storyforge", logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		cacheStore = rc
	default:
		cacheStore = cache.Noop{}
	}
	logger.Info("response cache configured", slog.String("backend", cfg.CacheBackend))

	// Model caller and the governed gateway in front of it.
	caller := provider.NewHTTPCaller(cfg.ModelAPIKey, cfg.ModelBaseURL,
		provider.WithTimeout(time.Duration(cfg.ModelTimeoutSecs)*time.Second))

	gwCfg := llm.DefaultConfig()
	gwCfg.MonthlyBudgetUSD = cfg.MonthlyBudgetUSD
	gwCfg.RateLimit = cfg.RateLimitPerMin
	s.gateway = llm.NewGateway(gwCfg, caller, db, cacheStore, logger,
		llm.WithEventBus(bus),
		llm.WithMetrics(m),
	)

	// Agents behind the orchestrator.
	prompts := prompt.NewManager(logger)
	factory := agent.NewFactory(s.gateway, prompts, logger)

	collector := stats.NewCollector()
	orch := orchestrator.New(orchestrator.Config{
		MaxConcurrent:  cfg.MaxConcurrent,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSecs) * time.Second,
	}, db, logger,
		orchestrator.WithMetrics(m),
		orchestrator.WithEventBus(bus),
		orchestrator.WithStats(collector),
	)
	s.orchestrator = orch

	var targets []health.Checkable
	for _, agentType := range agent.AllTypes() {
		a, err := factory.CreateAgent(agentType)
		if err != nil {
			db.Close()
			return nil, err
		}
		orch.RegisterAgent(a)
		targets = append(targets, a)
		logger.Info("registered agent", slog.String("agent_type", agentType))
	}

	// Periodic agent health checks feed the orchestrator's tracker.
	checkerCfg := health.DefaultCheckerConfig()
	checkerCfg.Interval = time.Duration(cfg.HealthCheckIntervalSecs) * time.Second
	s.checker = health.NewChecker(checkerCfg, orch.Tracker(), targets, logger)
	s.checker.Start()

	// Pipelines: Temporal when configured, in-process otherwise.
	acts := &workflow.Activities{
		Orchestrator: orch,
		Store:        db,
		EventBus:     bus,
	}
	if cfg.TemporalEnabled {
		mgr, err := workflow.NewManager(workflow.Config{
			HostPort:  cfg.TemporalHostPort,
			Namespace: cfg.TemporalNamespace,
			TaskQueue: cfg.TemporalTaskQueue,
		}, acts)
		if err != nil {
			// A missing Temporal server should not keep the whole service
			// down; the dispatcher falls back to in-process runs.
			logger.Warn("temporal unavailable, pipelines run in-process", slog.String("error", err.Error()))
		} else if err := mgr.Start(); err != nil {
			logger.Warn("temporal worker start failed, pipelines run in-process", slog.String("error", err.Error()))
		} else {
			s.manager = mgr
			logger.Info("temporal worker started",
				slog.String("host", cfg.TemporalHostPort),
				slog.String("task_queue", cfg.TemporalTaskQueue))
		}
	}
	dispatcher := workflow.NewDispatcher(s.manager, acts, logger)

	httpapi.MountRoutes(r, httpapi.Dependencies{
		Orchestrator: orch,
		Gateway:      s.gateway,
		Store:        db,
		Pipelines:    dispatcher,
		Tracker:      orch.Tracker(),
		EventBus:     bus,
		Metrics:      m,
		Stats:        collector,
	})

	return s, nil
}

func (s *Server) Router() http.Handler { return s.r }

// Close stops background workers and releases resources. Safe to call once.
func (s *Server) Close() error {
	if s.checker != nil {
		s.checker.Stop()
	}
	if s.manager != nil {
		s.manager.Stop()
	}
	if s.gateway != nil {
		s.gateway.Close()
	}
	if s.memCache != nil {
		s.memCache.Stop()
	}
	if s.tracingShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.tracingShutdown(ctx); err != nil {
			s.logger.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
