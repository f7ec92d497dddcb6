package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/medibrief/api/internal/audit"
	"github.com/medibrief/api/internal/auth"
	"github.com/medibrief/api/internal/config"
	"github.com/medibrief/api/internal/httpserver"
	"github.com/medibrief/api/internal/platform"
	"github.com/medibrief/api/internal/telemetry"
	"github.com/medibrief/api/internal/tenant"
	"github.com/medibrief/api/internal/version"
	"github.com/medibrief/api/pkg/aiinput"
	"github.com/medibrief/api/pkg/aipipeline"
	"github.com/medibrief/api/pkg/clinic"
	"github.com/medibrief/api/pkg/clinical"
	"github.com/medibrief/api/pkg/events"
	"github.com/medibrief/api/pkg/insights"
	"github.com/medibrief/api/pkg/patient"
	"github.com/medibrief/api/pkg/portal"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, and starts the appropriate mode (api or worker).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting medibrief",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
	)

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, "medibrief", version.Version)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("shutting down tracer", "error", err)
		}
	}()

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, db, rdb)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// buildPipeline wires the AI pipeline components shared by both api mode
// (as a Temporal client, to enqueue jobs) and worker mode (as a Temporal
// worker, to run them).
func buildPipeline(cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger, auditWriter *audit.Writer, bus *events.Bus) (*aipipeline.Manager, *aiinput.Cache, *aipipeline.LLMClient, error) {
	cache := aiinput.NewCache(rdb, logger)
	llm := aipipeline.NewLLMClient(aipipeline.LLMConfig{
		URL:     cfg.LLMProviderURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: time.Duration(cfg.LLMTimeoutS) * time.Second,
	})

	acts := &aipipeline.Activities{
		Pool:   db,
		Cache:  cache,
		LLM:    llm,
		Audit:  auditWriter,
		Events: bus,
		Logger: logger,
	}

	manager, err := aipipeline.New(aipipeline.Config{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.TemporalNamespace,
		TaskQueue: cfg.TemporalTaskQueue,
	}, acts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating temporal manager: %w", err)
	}
	return manager, cache, llm, nil
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	sessionSecret := cfg.SessionSecret
	if sessionSecret == "" {
		sessionSecret = auth.GenerateDevSecret()
		logger.Info("session: using auto-generated dev secret (set MEDIBRIEF_SESSION_SECRET in production)")
	}
	sessionMaxAge, err := time.ParseDuration(cfg.SessionMaxAge)
	if err != nil {
		return fmt.Errorf("parsing session max age %q: %w", cfg.SessionMaxAge, err)
	}
	sessionMgr, err := auth.NewSessionManager(sessionSecret, sessionMaxAge)
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}

	// Three independent rate-limit tiers, keyed by client IP, each with
	// its own Redis counter bucket so the tiers never collide
	// (spec.md §4.11).
	globalLimiter := auth.NewRateLimiter(rdb, "global", cfg.GlobalRateLimitPerMinute, time.Minute)
	authLimiter := auth.NewRateLimiter(rdb, "auth", cfg.AuthRateLimitPerMinute, time.Minute)
	aiLimiter := auth.NewRateLimiter(rdb, "ai", cfg.AIRateLimitPerMinute, time.Minute)

	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	bus := events.NewBus(rdb, logger)

	manager, cache, llm, err := buildPipeline(cfg, db, rdb, logger, auditWriter, bus)
	if err != nil {
		return err
	}
	defer manager.Stop()

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg, sessionMgr, &tenant.DefaultLookup{Pool: db})

	// Public alias matching spec.md's literal /health path; /healthz and
	// /readyz (NewServer) remain the primary liveness/readiness endpoints.
	srv.Router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpserver.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	clinicStore := clinic.NewStore(db)
	clinicHandler := clinic.NewHandler(clinic.NewService(clinicStore, sessionMgr, cfg.BCryptCost))

	aiSvc := aipipeline.NewService(manager, clinicStore, cache, llm, bus)
	aiHandler := aipipeline.NewHandler(aiSvc)

	eventsHandler := events.NewHandler(bus, sessionMgr, logger)

	patientHandler := patient.NewHandler(db, sessionMgr, cfg.BCryptCost, auditWriter)
	clinicalHandler := clinical.NewHandler(cache, auditWriter)
	portalHandler := portal.NewHandler(cfg.BCryptCost, auditWriter)
	insightsHandler := insights.NewHandler()
	auditHandler := audit.NewHandler()

	// --- Public routes (no auth, no tenant binding) ---

	srv.Router.With(auth.RateLimitMiddleware(authLimiter, logger)).Mount("/auth", publicRouter(clinicHandler, patientHandler))

	// The push-stream endpoint authenticates itself (it accepts a
	// query-string token, which the /api/v1 chain's header-only
	// auth.Middleware cannot see) and needs no tenant-bound connection, so
	// it is mounted outside /api/v1 entirely. See DESIGN.md open question 7.
	srv.Router.Mount("/ai", eventsHandler.Routes())

	// --- Authenticated, tenant-scoped routes ---

	srv.APIRouter.Mount("/users", clinicHandler.MeRoutes())

	// Two sibling route sets (staff CRUD on "/" and "/{id}", and the
	// logged-in patient's own "/password" route) merge onto one router via
	// the pattern=="/" mount-merge trick before being mounted once onto
	// /api/v1/patients, since mounting twice at the identical "/patients"
	// prefix would register the same wildcard pattern twice.
	patientsRouter := chi.NewRouter()
	patientsRouter.Mount("/", patientHandler.Routes())
	patientsRouter.Mount("/", patientHandler.PatientRoutes())
	srv.APIRouter.Mount("/patients", patientsRouter)

	// Vitals/labs/consultations each get their own stable top-level prefix
	// (spec.md §6), the same way /analytics, /portal, and /audit do, rather
	// than nesting under /patients/{id} — distinct top-level prefixes never
	// collide with /patients' own mount (see DESIGN.md open question 6).
	srv.APIRouter.Mount("/vitals", clinicalHandler.VitalsRoutes())
	srv.APIRouter.Mount("/labs", clinicalHandler.LabsRoutes())
	srv.APIRouter.Mount("/consultations", clinicalHandler.ConsultationsRoutes())

	srv.APIRouter.With(auth.RateLimitMiddleware(aiLimiter, logger)).Mount("/ai", aiHandler.Routes())
	srv.APIRouter.Mount("/analytics", insightsHandler.Routes())
	srv.APIRouter.Mount("/portal", portalHandler.Routes())
	srv.APIRouter.With(auth.RequireRole(auth.RoleAdmin)).Mount("/audit", auditHandler.Routes())

	handler := auth.RateLimitMiddleware(globalLimiter, logger)(srv)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// publicRouter mounts the unauthenticated clinic registration/login and
// patient onboarding/login routes under /auth (spec.md §4.1):
// /auth/register-clinic, /auth/login, /auth/patient-setup,
// /auth/patient-login.
func publicRouter(clinicHandler *clinic.Handler, patientHandler *patient.Handler) chi.Router {
	r := chi.NewRouter()
	r.Mount("/", clinicHandler.PublicRoutes())
	r.Mount("/", patientHandler.PublicRoutes())
	return r
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) error {
	logger.Info("worker started")

	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	bus := events.NewBus(rdb, logger)

	manager, _, _, err := buildPipeline(cfg, db, rdb, logger, auditWriter, bus)
	if err != nil {
		return err
	}
	defer manager.Stop()

	if err := manager.Start(); err != nil {
		return fmt.Errorf("starting temporal worker: %w", err)
	}

	<-ctx.Done()
	logger.Info("worker shutting down")
	return nil
}
