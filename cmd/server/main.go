package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appfinance "github.com/community/console/internal/application/finance"
	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/infrastructure/auth"
	"github.com/community/console/internal/infrastructure/cache"
	"github.com/community/console/internal/infrastructure/config"
	"github.com/community/console/internal/infrastructure/event"
	"github.com/community/console/internal/infrastructure/logger"
	"github.com/community/console/internal/infrastructure/payment"
	"github.com/community/console/internal/infrastructure/persistence"
	"github.com/community/console/internal/infrastructure/printing"
	"github.com/community/console/internal/infrastructure/telemetry"
	"github.com/community/console/internal/interfaces/http/handler"
	"github.com/community/console/internal/interfaces/http/middleware"
	"github.com/community/console/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// OTLP logs bridge; inert when telemetry is disabled
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log := logProvider.Bridge(baseLog, zapcore.InfoLevel)
	defer func() { _ = log.Sync() }()

	log.Info("Starting community console",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	if !cfg.GatewayEnabled() {
		log.Fatal("Tranzila terminal and API credentials are required (tranzila.terminal, tranzila.app_key, tranzila.secret)")
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to create sqlite schema", zap.Error(err))
		}
	}
	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:  tracerProvider.IsEnabled(),
		DBSystem: dbSystem(cfg.Database.Driver),
	}, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	var dbMetrics *telemetry.DBMetrics
	if meterProvider.IsEnabled() {
		dbMetrics, err = telemetry.RegisterDBMetrics(ctx, db.DB, meter, telemetry.DBMetricsConfig{}, log)
		if err != nil {
			log.Fatal("Failed to register database metrics", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	// Idempotency store for gateway result dedupe and event handlers
	store, err := cache.NewIdempotencyStoreFactory(cfg.Cache, cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Gateway
	tranzilaCfg := payment.TranzilaConfig{
		Terminal:      cfg.Tranzila.Terminal,
		TokenTerminal: cfg.Tranzila.TokenTerminal,
		FrameBaseURL:  cfg.Tranzila.FrameBaseURL,
		APIBaseURL:    cfg.Tranzila.APIBaseURL,
		GatewayDomain: cfg.Tranzila.GatewayDomain,
		AppKey:        cfg.Tranzila.AppKey,
		Secret:        cfg.Tranzila.Secret,
		Currency:      cfg.Tranzila.Currency,
		Language:      cfg.Tranzila.Language,
		HTTPTimeout:   cfg.Tranzila.HTTPTimeout,
	}
	httpClient := &http.Client{Timeout: cfg.Tranzila.HTTPTimeout}
	tokenizer, err := payment.NewTranzilaTokenizer(tranzilaCfg, httpClient, log)
	if err != nil {
		log.Fatal("Invalid Tranzila configuration", zap.Error(err))
	}
	billing, err := payment.NewTranzilaBilling(tranzilaCfg, httpClient, log)
	if err != nil {
		log.Fatal("Invalid Tranzila configuration", zap.Error(err))
	}
	frame, err := payment.NewTranzilaFrame(tranzilaCfg)
	if err != nil {
		log.Fatal("Invalid Tranzila configuration", zap.Error(err))
	}
	gatewayAdapter := payment.NewGatewayMessageAdapter(payment.GatewayMessageAdapterConfig{
		Normalizer: finance.NewGatewayMessageNormalizer(cfg.Tranzila.GatewayDomain, cfg.Payment.ConsoleOrigins...),
		Dedupe:     store,
		Timeout:    cfg.Payment.GatewayTimeout,
		Logger:     log,
	})

	// Repositories and card storage
	cardVault := payment.NewCardVault(persistence.NewGormStoredCardRepository(db.DB), tokenizer, log)
	members := persistence.NewGormMemberRepository(db.DB)

	// Domain events
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditLogHandler(log))
	if cfg.Payment.PurgeUnrememberedCards {
		purge := event.NewIdempotentHandler(appfinance.NewUnrememberedCardPurgeHandler(cardVault, log), store, 24*time.Hour, log)
		eventBus.Subscribe(purge)
		log.Info("Unremembered cards are deleted after a successful charge")
	}

	// Metrics
	var paymentMetrics appfinance.PaymentMetricsRecorder
	if meterProvider.IsEnabled() {
		pm, err := telemetry.NewPaymentMetrics(meter)
		if err != nil {
			log.Fatal("Failed to create payment metrics", zap.Error(err))
		}
		paymentMetrics = pm
	}

	sessionService := appfinance.NewPaymentSessionService(appfinance.PaymentSessionServiceConfig{
		CardStorage:       cardVault,
		Billing:           billing,
		Members:           members,
		Gateway:           gatewayAdapter,
		Relay:             gatewayAdapter,
		Frame:             frame,
		EventPublisher:    eventBus,
		Metrics:           paymentMetrics,
		Logger:            log,
		SessionTTL:        cfg.Payment.SessionTTL,
		SweepInterval:     cfg.Payment.SweepInterval,
		GatewayTimeout:    cfg.Payment.GatewayTimeout,
		DefaultVATPercent: decimal.NewFromFloat(cfg.Payment.DefaultVATPercent),
	})
	sessionService.Start()

	if meterProvider.IsEnabled() {
		if err := telemetry.RegisterOpenSessionsGauge(meter, sessionService.SessionCount); err != nil {
			log.Fatal("Failed to register open sessions gauge", zap.Error(err))
		}
	}

	// Invoices
	formatter, err := printing.NewInvoiceFormatter(cfg.Payment.InvoiceLanguage, cfg.Payment.InvoiceCurrency)
	if err != nil {
		log.Fatal("Invalid invoice locale", zap.Error(err))
	}
	renderer, err := printing.NewInvoiceRenderer(formatter, log)
	if err != nil {
		log.Fatal("Failed to load invoice template", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.HSTSEnabled = cfg.HTTP.HSTSEnabled

	engineCfg := router.EngineConfig{
		Logger:         log,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: tracerProvider.IsEnabled(),
		CORS:           corsCfg,
		Security:       securityCfg,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}
	if meterProvider.IsEnabled() {
		engineCfg.Meter = meter
	}
	engine, err := router.NewEngine(engineCfg)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	jwtCfg := middleware.DefaultJWTConfig(jwtService)
	jwtCfg.Logger = log

	tokenizeLimiter := middleware.NewRateLimiter(cfg.HTTP.TokenizeRateLimit, cfg.HTTP.TokenizeRateWindow)
	defer tokenizeLimiter.Stop()

	healthHandler := handler.NewHealthHandler(version,
		handler.WithHealthCheck("database", func(context.Context) error { return db.Ping() }),
		handler.WithSessionCounter(sessionService.SessionCount),
	)
	engine.GET("/health", healthHandler.Check)

	r := router.NewRouter(engine, router.WithAPIMiddleware(
		middleware.JWTAuthMiddlewareWithConfig(jwtCfg),
		middleware.TracingAttributeInjector(),
	))
	r.Register(router.HealthRoutes(healthHandler)).
		Register(router.PaymentRoutes(handler.NewPaymentSessionHandler(sessionService, renderer), tokenizeLimiter, log))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Open sessions are discarded; nothing was sent to billing for them
	sessionService.Stop()
	gatewayAdapter.Close()
	if dbMetrics != nil {
		dbMetrics.Stop()
	}
	if err := store.Close(); err != nil {
		log.Warn("Error closing idempotency store", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		baseLog.Warn("Error shutting down log exporter", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func dbSystem(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "postgresql"
}
