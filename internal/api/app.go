package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/gorax/gorax/internal/api/handlers"
	apiMiddleware "github.com/gorax/gorax/internal/api/middleware"
	"github.com/gorax/gorax/internal/audit"
	"github.com/gorax/gorax/internal/config"
	"github.com/gorax/gorax/internal/credential"
	"github.com/gorax/gorax/internal/errortracking"
	"github.com/gorax/gorax/internal/executor"
	"github.com/gorax/gorax/internal/executor/agent"
	"github.com/gorax/gorax/internal/llm"
	"github.com/gorax/gorax/internal/llm/providers/anthropic"
	"github.com/gorax/gorax/internal/llm/providers/bedrock"
	"github.com/gorax/gorax/internal/llm/providers/openai"
	"github.com/gorax/gorax/internal/metrics"
	"github.com/gorax/gorax/internal/ratelimit"
	"github.com/gorax/gorax/internal/safety"
	"github.com/gorax/gorax/internal/schedule"
	"github.com/gorax/gorax/internal/storage"
	"github.com/gorax/gorax/internal/tenant"
	"github.com/gorax/gorax/internal/tracing"
	"github.com/gorax/gorax/internal/webhook"
	"github.com/gorax/gorax/internal/websocket"
	"github.com/gorax/gorax/internal/workflow"
)

// Rate limit applied to every tenant's http/integration node dispatches;
// the sliding window is fixed at one minute, matching the unit ratelimit's
// Lua script was written against.
const (
	nodeRateLimit       int64 = 120
	nodeRateLimitWindow       = time.Minute
)

var llmProvidersOnce sync.Once

// registerLLMProviders registers all LLM providers with the global registry.
// This is called once on application startup.
func registerLLMProviders() {
	llmProvidersOnce.Do(func() {
		_ = llm.RegisterProvider(llm.ProviderOpenAI, func(cfg *llm.ProviderConfig) (llm.Provider, error) {
			return openai.NewClient(cfg)
		})
		_ = llm.RegisterProvider(llm.ProviderAnthropic, func(cfg *llm.ProviderConfig) (llm.Provider, error) {
			return anthropic.NewClient(cfg)
		})
		_ = llm.RegisterProvider(llm.ProviderBedrock, func(cfg *llm.ProviderConfig) (llm.Provider, error) {
			return bedrock.NewClient(cfg)
		})
	})
}

// App holds application dependencies. Trimmed to the surface the workflow
// execution engine actually needs: tenants, workflows, executions, webhooks,
// schedules, credentials, and the websocket/graphql read surfaces, plus the
// ambient concerns (metrics, audit, error tracking) wired around all of them.
type App struct {
	config *config.Config
	logger *slog.Logger
	db     *sqlx.DB
	redis  *redis.Client
	router *chi.Mux

	errorTracker *errortracking.Tracker

	metrics          *metrics.Metrics
	metricsRegistry  *prometheus.Registry
	dbStatsCollector *metrics.DBStatsCollector
	metricsStopCtx   context.Context
	metricsStopFunc  context.CancelFunc

	tenantService       *tenant.Service
	workflowService     *workflow.Service
	workflowBulkService *workflow.BulkService
	webhookService      *webhook.Service
	scheduleService     *schedule.Service
	credentialService   credential.Service
	auditService        *audit.Service

	wsHub *websocket.Hub

	healthHandler            *handlers.HealthHandler
	workflowHandler          *handlers.WorkflowHandler
	workflowBulkHandler      *handlers.WorkflowBulkHandler
	webhookHandler           *handlers.WebhookHandler
	webhookManagementHandler *handlers.WebhookManagementHandler
	webhookReplayHandler     *handlers.WebhookReplayHandler
	webhookFilterHandler     *handlers.WebhookFilterHandler
	websocketHandler         *handlers.WebSocketHandler
	tenantAdminHandler       *handlers.TenantAdminHandler
	tenantHandler            *handlers.TenantHandler
	scheduleHandler          *handlers.ScheduleHandler
	executionHandler         *handlers.ExecutionHandler
	credentialHandler        *handlers.CredentialHandler
	metricsHandler           *handlers.MetricsHandler
	auditHandler             *handlers.AuditHandler

	quotaChecker *apiMiddleware.QuotaChecker
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	registerLLMProviders()

	app := &App{
		config: cfg,
		logger: logger,
	}

	db, err := sqlx.Connect("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)
	app.db = db

	app.metrics = metrics.NewMetrics()
	app.metricsRegistry = prometheus.NewRegistry()
	if err := app.metrics.Register(app.metricsRegistry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	logger.Info("Metrics initialized")

	app.metricsStopCtx, app.metricsStopFunc = context.WithCancel(context.Background())
	app.dbStatsCollector = metrics.NewDBStatsCollector(app.metrics, db.DB, "main", logger)
	go app.dbStatsCollector.Start(app.metricsStopCtx, 15*time.Second)
	logger.Info("DB stats collector started", "interval", "15s")

	app.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	errorTracker, err := errortracking.Initialize(cfg.Observability)
	if err != nil {
		logger.Warn("failed to initialize Sentry", "error", err)
	}
	app.errorTracker = errorTracker

	tenantRepo := tenant.NewRepository(db)
	workflowRepo := workflow.NewRepository(db)
	webhookRepo := webhook.NewRepository(db)
	scheduleRepo := schedule.NewRepository(db)

	app.tenantService = tenant.NewService(tenantRepo, logger)
	app.workflowService = workflow.NewService(workflowRepo, logger)
	app.webhookService = webhook.NewService(webhookRepo, logger)
	app.workflowBulkService = workflow.NewBulkService(workflowRepo, app.webhookService, logger)
	app.scheduleService = schedule.NewService(scheduleRepo, logger)

	app.wsHub = websocket.NewHub(logger)
	go app.wsHub.Run()

	// Credential service built up front: the dispatcher's integration
	// handler (Slack/email/SMS actions) and its credential injector both
	// need it before the dispatcher itself is wired up.
	credentialRepo := credential.NewRepository(db)

	var encryptionService credential.EncryptionServiceInterface
	if cfg.Credential.UseKMS {
		if cfg.Credential.KMSKeyID == "" {
			return nil, fmt.Errorf("CREDENTIAL_KMS_KEY_ID is required when USE_KMS is true")
		}
		awsCfg, err := awsConfig.LoadDefaultConfig(context.Background(), awsConfig.WithRegion(cfg.Credential.KMSRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config for KMS: %w", err)
		}
		kmsClient := kms.NewFromConfig(awsCfg)
		kmsEncryptionService, err := credential.NewKMSEncryptionService(kmsClient, cfg.Credential.KMSKeyID)
		if err != nil {
			return nil, fmt.Errorf("failed to create KMS encryption service: %w", err)
		}
		encryptionService = credential.NewKMSEncryptionAdapter(kmsEncryptionService)
		logger.Info("Credential encryption initialized", "mode", "KMS", "key_id", cfg.Credential.KMSKeyID, "region", cfg.Credential.KMSRegion)
	} else {
		masterKey, err := base64.StdEncoding.DecodeString(cfg.Credential.MasterKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decode credential master key: %w", err)
		}
		simpleEncryption, err := credential.NewSimpleEncryptionService(masterKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create simple encryption service: %w", err)
		}
		encryptionService = credential.NewSimpleEncryptionAdapter(simpleEncryption)
		logger.Warn("Credential encryption initialized", "mode", "simple", "warning", "Use KMS in production")
	}

	app.credentialService = credential.NewServiceImpl(credentialRepo, encryptionService, logger)
	app.credentialHandler = handlers.NewCredentialHandler(app.credentialService, logger)

	// Node dispatcher, safety pipeline, and scheduler, then the engine that
	// drives a stored execution through them, broadcasting step/run events
	// over the WebSocket hub. Every outbound http/integration node call is
	// additionally throttled per tenant by a Redis sliding window, and every
	// I/O-bound node type is guarded by a per-target circuit breaker.
	broadcaster := websocket.NewHubBroadcaster(app.wsHub)
	safetyPipeline := safety.New(safety.DefaultConfig())
	dispatcher := executor.NewDispatcher(safetyPipeline)
	dispatcher.SetCircuitBreakers(executor.NewCircuitBreakerRegistry(executor.DefaultCircuitBreakerConfig(), logger))
	dispatcher.SetRateLimiter(ratelimit.NewSlidingWindowLimiter(app.redis), nodeRateLimit, nodeRateLimitWindow)
	dispatcher.SetCredentialInjector(credential.NewInjector(credentialRepo, encryptionService))

	toolRegistry := agent.NewRegistry()
	llmHandler, integrationHandler := executor.RegisterIOHandlers(dispatcher, llm.GlobalProviderRegistry, toolRegistry, app.credentialService)
	if cfg.AWS.S3Bucket != "" {
		imageStore, serr := storage.NewS3Storage(cfg.AWS.Region, cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey)
		if serr != nil {
			logger.Warn("image generation storage unavailable", "error", serr)
		} else {
			llmHandler.SetImageStorage(imageStore, cfg.AWS.S3Bucket)
		}
	}

	scheduler := executor.NewScheduler(dispatcher, logger)
	scheduler.Repo = workflowRepo
	scheduler.Broadcaster = broadcaster
	workflowExecutor := executor.NewEngine(workflowRepo, logger, scheduler)
	integrationHandler.SetEngine(workflowExecutor)

	workflowGetter := &workflowServiceAdapter{workflowService: app.workflowService}

	app.workflowService.SetExecutor(workflowExecutor)
	app.workflowService.SetWebhookService(app.webhookService)
	app.scheduleService.SetWorkflowService(workflowGetter)

	app.healthHandler = handlers.NewHealthHandler(db, app.redis)
	app.workflowHandler = handlers.NewWorkflowHandler(app.workflowService, logger)
	app.workflowBulkHandler = handlers.NewWorkflowBulkHandler(app.workflowBulkService, logger)
	app.webhookHandler = handlers.NewWebhookHandler(app.workflowService, app.webhookService, logger)
	app.webhookManagementHandler = handlers.NewWebhookManagementHandler(app.webhookService, logger)

	workflowExecutorForReplay := &workflowExecutorAdapter{workflowService: app.workflowService}
	replayService := webhook.NewReplayService(webhookRepo, workflowExecutorForReplay, logger)
	app.webhookReplayHandler = handlers.NewWebhookReplayHandler(replayService, logger)
	app.webhookFilterHandler = handlers.NewWebhookFilterHandler(app.webhookService, logger)

	app.websocketHandler = handlers.NewWebSocketHandler(app.wsHub, logger)
	app.tenantAdminHandler = handlers.NewTenantAdminHandler(app.tenantService, logger)
	app.tenantHandler = handlers.NewTenantHandler(app.tenantService, logger)
	app.scheduleHandler = handlers.NewScheduleHandler(app.scheduleService, logger)
	app.executionHandler = handlers.NewExecutionHandler(app.workflowService, logger)
	app.metricsHandler = handlers.NewMetricsHandler(workflowRepo)

	auditRepo := audit.NewRepository(db)
	app.auditService = audit.NewService(auditRepo, cfg.Audit.BufferSize, cfg.Audit.FlushInterval)
	app.auditHandler = handlers.NewAuditHandler(app.auditService, logger)
	logger.Info("Audit service initialized",
		"buffer_size", cfg.Audit.BufferSize,
		"flush_interval", cfg.Audit.FlushInterval,
	)

	app.quotaChecker = apiMiddleware.NewQuotaChecker(app.tenantService, app.redis, logger)

	app.setupRouter()

	return app, nil
}

// Router returns the HTTP router
func (a *App) Router() http.Handler {
	return a.router
}

// Close cleans up application resources
func (a *App) Close() error {
	if a.metricsStopFunc != nil {
		a.metricsStopFunc()
	}
	if a.dbStatsCollector != nil {
		a.dbStatsCollector.Stop()
	}
	if a.auditService != nil {
		a.auditService.Close()
	}
	if a.errorTracker != nil {
		a.errorTracker.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	return nil
}

func (a *App) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	httpLogLevel := parseHTTPLogLevel(a.config.Log.HTTPLogLevel)
	r.Use(apiMiddleware.StructuredLoggerWithConfig(a.logger, apiMiddleware.HTTPLoggerConfig{
		LogLevel: httpLogLevel,
	}))

	securityHeadersConfig := apiMiddleware.SecurityHeadersConfig{
		EnableHSTS:    a.config.SecurityHeader.EnableHSTS,
		HSTSMaxAge:    a.config.SecurityHeader.HSTSMaxAge,
		CSPDirectives: a.config.SecurityHeader.CSPDirectives,
		FrameOptions:  a.config.SecurityHeader.FrameOptions,
	}
	r.Use(apiMiddleware.SecurityHeaders(securityHeadersConfig))

	if a.config.Observability.TracingEnabled {
		r.Use(tracing.HTTPMiddleware())
	}

	if a.errorTracker != nil {
		r.Use(apiMiddleware.SentryMiddleware(a.errorTracker))
	}

	if a.config.Audit.Enabled && a.auditService != nil {
		r.Use(apiMiddleware.AuditMiddleware(a.auditService, a.logger))
	}

	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	corsMiddleware, err := apiMiddleware.NewCORSMiddleware(a.config.CORS, a.config.Server.Env)
	if err != nil {
		a.logger.Error("failed to create CORS middleware", "error", err)
	} else {
		r.Use(corsMiddleware)
	}

	r.Get("/health", a.healthHandler.Health)
	r.Get("/ready", a.healthHandler.Ready)

	if a.config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(a.metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Get("/api/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/api/swagger.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		if a.config.Server.Env == "development" {
			r.Use(apiMiddleware.DevAuth())
		} else {
			r.Use(apiMiddleware.KratosAuth(a.config.Kratos))
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(apiMiddleware.RequireAdmin())

			r.Post("/switch-tenant", a.tenantAdminHandler.SwitchTenant)

			r.Route("/tenants", func(r chi.Router) {
				r.Get("/", a.tenantAdminHandler.ListTenants)
				r.Post("/", a.tenantAdminHandler.CreateTenant)
				r.Get("/{tenantID}", a.tenantAdminHandler.GetTenant)
				r.Put("/{tenantID}", a.tenantAdminHandler.UpdateTenant)
				r.Delete("/{tenantID}", a.tenantAdminHandler.DeleteTenant)
				r.Put("/{tenantID}/quotas", a.tenantAdminHandler.UpdateTenantQuotas)
				r.Get("/{tenantID}/usage", a.tenantAdminHandler.GetTenantUsage)
				r.Put("/{tenantID}/status", a.tenantAdminHandler.SetTenantStatus)
				r.Post("/{tenantID}/activate", a.tenantAdminHandler.ActivateTenant)
				r.Post("/{tenantID}/suspend", a.tenantAdminHandler.SuspendTenant)
			})

			r.Route("/audit", func(r chi.Router) {
				r.Get("/events", a.auditHandler.QueryEvents)
				r.Get("/events/{id}", a.auditHandler.GetEvent)
				r.Get("/stats", a.auditHandler.GetStats)
				r.Post("/export", a.auditHandler.ExportEvents)
			})
		})

		r.Group(func(r chi.Router) {
			tenantMiddlewareCfg := apiMiddleware.TenantMiddlewareConfig{
				TenantConfig: a.config.Tenant,
			}
			r.Use(apiMiddleware.TenantContextWithConfig(a.tenantService, tenantMiddlewareCfg))
			r.Use(a.quotaChecker.CheckQuotas())

			r.Route("/tenant", func(r chi.Router) {
				r.Get("/info", a.tenantHandler.GetCurrentTenant)
				r.Get("/settings", a.tenantHandler.GetTenantSettings)
				r.Get("/quotas", a.tenantHandler.GetTenantQuotas)
			})

			r.Route("/workflows", func(r chi.Router) {
				r.Get("/", a.workflowHandler.List)
				r.Post("/", a.workflowHandler.Create)
				r.Get("/{workflowID}", a.workflowHandler.Get)
				r.Put("/{workflowID}", a.workflowHandler.Update)
				r.Delete("/{workflowID}", a.workflowHandler.Delete)
				r.Post("/{workflowID}/execute", a.workflowHandler.Execute)
				r.Post("/{workflowID}/dry-run", a.workflowHandler.DryRun)

				r.Route("/bulk", func(r chi.Router) {
					r.Post("/delete", a.workflowBulkHandler.BulkDelete)
					r.Post("/enable", a.workflowBulkHandler.BulkEnable)
					r.Post("/disable", a.workflowBulkHandler.BulkDisable)
					r.Post("/export", a.workflowBulkHandler.BulkExport)
					r.Post("/clone", a.workflowBulkHandler.BulkClone)
				})

				r.Route("/{workflowID}/versions", func(r chi.Router) {
					r.Get("/", a.workflowHandler.ListVersions)
					r.Get("/{version}", a.workflowHandler.GetVersion)
					r.Post("/{version}/restore", a.workflowHandler.RestoreVersion)
				})

				r.Route("/{workflowID}/schedules", func(r chi.Router) {
					r.Get("/", a.scheduleHandler.List)
					r.Post("/", a.scheduleHandler.Create)
				})
			})

			r.Route("/executions", func(r chi.Router) {
				r.Get("/", a.executionHandler.ListExecutionsAdvanced)
				r.Get("/stats", a.executionHandler.GetExecutionStats)
				r.Get("/{executionID}", a.workflowHandler.GetExecution)
				r.Get("/{executionID}/steps", a.executionHandler.GetExecutionWithSteps)
			})

			r.Route("/metrics", func(r chi.Router) {
				r.Get("/trends", a.metricsHandler.GetExecutionTrends)
				r.Get("/duration", a.metricsHandler.GetDurationStats)
				r.Get("/failures", a.metricsHandler.GetTopFailures)
				r.Get("/trigger-breakdown", a.metricsHandler.GetTriggerBreakdown)
			})

			r.Route("/schedules", func(r chi.Router) {
				r.Get("/", a.scheduleHandler.ListAll)
				r.Get("/{scheduleID}", a.scheduleHandler.Get)
				r.Put("/{scheduleID}", a.scheduleHandler.Update)
				r.Delete("/{scheduleID}", a.scheduleHandler.Delete)
				r.Post("/parse-cron", a.scheduleHandler.ParseCron)
				r.Post("/preview", a.scheduleHandler.PreviewSchedule)

				r.Get("/{scheduleID}/executions", a.scheduleHandler.ListExecutionHistory)
				r.Get("/{scheduleID}/executions/{logID}", a.scheduleHandler.GetExecutionLog)
			})

			r.Route("/webhooks", func(r chi.Router) {
				r.Get("/", a.webhookManagementHandler.List)
				r.Post("/", a.webhookManagementHandler.Create)
				r.Get("/{id}", a.webhookManagementHandler.Get)
				r.Put("/{id}", a.webhookManagementHandler.Update)
				r.Delete("/{id}", a.webhookManagementHandler.Delete)
				r.Post("/{id}/regenerate-secret", a.webhookManagementHandler.RegenerateSecret)
				r.Post("/{id}/test", a.webhookManagementHandler.TestWebhook)
				r.Get("/{id}/events", a.webhookManagementHandler.GetEventHistory)
				r.Post("/{webhookID}/events/replay", a.webhookReplayHandler.BatchReplayEvents)

				r.Route("/{id}/filters", func(r chi.Router) {
					r.Get("/", a.webhookFilterHandler.List)
					r.Post("/", a.webhookFilterHandler.Create)
					r.Get("/{filterID}", a.webhookFilterHandler.Get)
					r.Put("/{filterID}", a.webhookFilterHandler.Update)
					r.Delete("/{filterID}", a.webhookFilterHandler.Delete)
					r.Post("/test", a.webhookFilterHandler.Test)
				})
			})

			r.Route("/events", func(r chi.Router) {
				r.Post("/{eventID}/replay", a.webhookReplayHandler.ReplayEvent)
			})

			r.Route("/ws", func(r chi.Router) {
				r.Get("/", a.websocketHandler.HandleConnection)
				r.Get("/executions/{executionID}", a.websocketHandler.HandleExecutionConnection)
				r.Get("/workflows/{workflowID}", a.websocketHandler.HandleWorkflowConnection)
			})

			r.Route("/credentials", func(r chi.Router) {
				r.Get("/", a.credentialHandler.List)
				r.Post("/", a.credentialHandler.Create)
				r.Get("/{credentialID}", a.credentialHandler.Get)
				r.Get("/{credentialID}/value", a.credentialHandler.GetValue)
				r.Put("/{credentialID}", a.credentialHandler.Update)
				r.Delete("/{credentialID}", a.credentialHandler.Delete)
				r.Post("/{credentialID}/rotate", a.credentialHandler.Rotate)
				r.Get("/{credentialID}/versions", a.credentialHandler.ListVersions)
				r.Get("/{credentialID}/access-log", a.credentialHandler.GetAccessLog)
			})
		})
	})

	// Webhook endpoint (public, uses webhook-specific auth)
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/{workflowID}/{webhookID}", a.webhookHandler.Handle)
	})

	a.router = r
}

// workflowServiceAdapter adapts workflow.Service to schedule.WorkflowGetter interface
type workflowServiceAdapter struct {
	workflowService *workflow.Service
}

func (w *workflowServiceAdapter) GetByID(ctx context.Context, tenantID, id string) (interface{}, error) {
	return w.workflowService.GetByID(ctx, tenantID, id)
}

// workflowExecutorAdapter adapts workflow.Service to webhook.WorkflowExecutor interface
type workflowExecutorAdapter struct {
	workflowService *workflow.Service
}

func (w *workflowExecutorAdapter) Execute(ctx context.Context, tenantID, workflowID, triggerType string, triggerData []byte) (string, error) {
	execution, err := w.workflowService.Execute(ctx, tenantID, workflowID, triggerType, triggerData)
	if err != nil {
		return "", err
	}
	return execution.ID, nil
}

// parseHTTPLogLevel converts string log level to slog.Level for HTTP access logs
func parseHTTPLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
