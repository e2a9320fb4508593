package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	catalogapp "github.com/bhavan/backend/internal/application/catalog"
	identityapp "github.com/bhavan/backend/internal/application/identity"
	"github.com/bhavan/backend/internal/application/insights"
	leadapp "github.com/bhavan/backend/internal/application/lead"
	listingapp "github.com/bhavan/backend/internal/application/listing"
	"github.com/bhavan/backend/internal/application/purchase"
	referralapp "github.com/bhavan/backend/internal/application/referral"
	"github.com/bhavan/backend/internal/domain/servicerequest"
	"github.com/bhavan/backend/internal/domain/shared"
	"github.com/bhavan/backend/internal/domain/whatsapp"
	"github.com/bhavan/backend/internal/infrastructure/analytics"
	"github.com/bhavan/backend/internal/infrastructure/auth"
	"github.com/bhavan/backend/internal/infrastructure/cache"
	"github.com/bhavan/backend/internal/infrastructure/config"
	"github.com/bhavan/backend/internal/infrastructure/event"
	"github.com/bhavan/backend/internal/infrastructure/logger"
	"github.com/bhavan/backend/internal/infrastructure/messaging"
	"github.com/bhavan/backend/internal/infrastructure/payment"
	"github.com/bhavan/backend/internal/infrastructure/persistence"
	"github.com/bhavan/backend/internal/infrastructure/printing"
	"github.com/bhavan/backend/internal/infrastructure/scheduler"
	"github.com/bhavan/backend/internal/infrastructure/storage"
	"github.com/bhavan/backend/internal/infrastructure/telemetry"
	"github.com/bhavan/backend/internal/interfaces/http/apidoc"
	"github.com/bhavan/backend/internal/interfaces/http/handler"
	"github.com/bhavan/backend/internal/interfaces/http/middleware"
	"github.com/bhavan/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// OpenTelemetry logs bridge, tee'd into zap when enabled
	logProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init log exporter: %w", err)
	}
	var extraCores []zapcore.Core
	if logProvider.IsEnabled() {
		extraCores = append(extraCores, logProvider.Core(logger.ParseLevel(cfg.Log.Level)))
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, extraCores...)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting Bhavan backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	profiler, err := telemetry.NewProfiler(cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init profiler: %w", err)
	}
	if profiler.IsEnabled() && cfg.Telemetry.SpanProfilesEnabled {
		tracerProvider.EnableSpanProfiles()
	}
	defer shutdownTelemetry(log, cfg.HTTP.ShutdownTimeout, tracerProvider, meterProvider, logProvider, profiler)

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:        log.Named("gorm"),
		LogLevel:      logger.MapGormLogLevel(cfg.Log.Level),
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		LogFullSQL:    cfg.Telemetry.DBLogFullSQL,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, db.Driver, cfg.Telemetry, log); err != nil {
		log.Warn("Database tracing not installed", zap.Error(err))
	}
	if db.Driver == "sqlite" {
		// postgres schemas are owned by cmd/migrate
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("auto-migrate sqlite schema: %w", err)
		}
	}
	log.Info("Database connected", zap.String("driver", db.Driver))

	meter := meterProvider.Meter("bhavan-backend")
	if meterProvider.IsEnabled() {
		if _, err := telemetry.RegisterPoolMetrics(meter, func() sql.DBStats {
			sqlDB, err := db.DB.DB()
			if err != nil {
				return sql.DBStats{}
			}
			return sqlDB.Stats()
		}); err != nil {
			log.Warn("Connection pool metrics not registered", zap.Error(err))
		}
	}

	// Idempotency store: Redis when enabled and reachable, otherwise in-memory
	store, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Repositories
	serviceRepo := persistence.NewGormServiceRepository(db.DB)
	requestRepo := persistence.NewGormServiceRequestRepository(db.DB)
	leadRepo := persistence.NewGormLeadRepository(db.DB)
	listingRepo := persistence.NewGormListingRepository(db.DB)
	referralRepo := persistence.NewGormReferralEventRepository(db.DB)
	adminRepo := persistence.NewGormAdminUserRepository(db.DB)
	references := persistence.NewReferenceGenerator(db.DB, cfg.Purchase.ReferencePrefix)

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)

	// External collaborators
	gateway := newGateway(cfg, log)
	images, err := storage.New(cfg.Storage, storage.WithLogger(log), storage.WithPresignExpiry(cfg.Storage.PresignExpiry))
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	receipts := printing.New(cfg.Printing, log)
	defer func() { _ = receipts.Close() }()
	tracker := analytics.New(cfg.Analytics)

	// Application services
	catalogService := catalogapp.NewServiceCatalogService(serviceRepo)
	purchaseService := purchase.NewService(purchase.Dependencies{
		Services:    serviceRepo,
		Requests:    requestRepo,
		References:  references,
		Gateway:     gateway,
		Idempotency: store,
		Publisher:   eventBus,
		Receipts:    receipts,
	}, purchase.Config{
		DefaultCurrency: cfg.Purchase.DefaultCurrency,
		PublicBaseURL:   cfg.App.PublicBaseURL,
		SuccessPath:     cfg.Stripe.CheckoutSuccessPath,
		CancelPath:      cfg.Stripe.CheckoutCancelPath,
	}, log)
	leadService := leadapp.NewLeadService(leadRepo, eventBus, log)
	listingService := listingapp.NewListingService(listingRepo, images, eventBus, cfg.Storage.MaxUploadBytes, log)
	referralService := referralapp.NewReferralService(referralRepo, eventBus, log)

	jwtService := auth.NewJWTService(cfg.JWT, store)
	authService := identityapp.NewAuthService(adminRepo, jwtService, log)
	if created, err := authService.EnsureBootstrapAdmin(ctx, identityapp.BootstrapInput{
		Email:    cfg.Admin.BootstrapEmail,
		Password: cfg.Admin.BootstrapPassword,
		Name:     cfg.Admin.BootstrapName,
	}); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	} else if !created && cfg.Admin.BootstrapEmail != "" {
		log.Debug("Bootstrap admin skipped, admins already exist")
	}

	// Event handlers
	if err := subscribeHandlers(eventBus, store, referralService, tracker, meter, log); err != nil {
		return err
	}
	if cfg.Kafka.Enabled {
		forwarder, err := messaging.NewKafkaForwarder(cfg.Kafka, serializer, log)
		if err != nil {
			return fmt.Errorf("init kafka forwarder: %w", err)
		}
		defer func() { _ = forwarder.Close() }()
		eventBus.Subscribe(forwarder)
		log.Info("Kafka forwarding enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic_prefix", cfg.Kafka.TopicPrefix),
		)
	}
	if err := eventBus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	if cfg.Purchase.ReconcileEnabled && gateway != nil {
		sweep, err := scheduler.NewPeriodic(scheduler.PeriodicConfig{
			Name:     "payment-reconcile",
			Interval: cfg.Purchase.ReconcileInterval,
		}, func(ctx context.Context) error {
			_, err := purchaseService.ReconcilePending(ctx, cfg.Purchase.ReconcileAfter, cfg.Purchase.ReconcileBatchSize)
			return err
		}, log)
		if err != nil {
			return fmt.Errorf("init payment reconciliation: %w", err)
		}
		if err := sweep.Start(ctx); err != nil {
			return fmt.Errorf("start payment reconciliation: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := sweep.Stop(stopCtx); err != nil {
				log.Warn("Payment reconciliation did not stop cleanly", zap.Error(err))
			}
		}()
	}

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}
	applyMiddleware(engine, cfg, meterProvider, profiler.IsEnabled(), log)

	h := router.Handlers{
		System: handler.NewSystemHandler(cfg.App.Name, version, map[string]handler.HealthCheck{
			"database": func(context.Context) error { return db.Ping() },
		}),
		Services:  handler.NewServiceHandler(catalogService, purchaseService),
		Webhooks:  handler.NewStripeWebhookHandler(purchaseService),
		Leads:     handler.NewLeadHandler(leadService),
		Referral:  handler.NewReferralHandler(referralService),
		Links:     handler.NewLinkHandler(cfg.App.PublicBaseURL, whatsapp.NewLinker(cfg.WhatsApp.BusinessNumber, cfg.WhatsApp.DefaultCountryCode)),
		Listings:  handler.NewListingHandler(listingService),
		Auth:      handler.NewAuthHandler(authService),
		Requests:  handler.NewRequestAdminHandler(purchaseService),
		AdminAuth: middleware.JWTAuthMiddleware(jwtService, log),
	}
	if cfg.HTTP.RateLimitEnabled {
		// Writes that notify staff or reach the gateway get a tighter budget
		submitLimiter := middleware.NewRateLimiter(max(cfg.HTTP.RateLimitRequests/10, 5), cfg.HTTP.RateLimitWindow)
		h.SubmitLimit = middleware.RateLimit(submitLimiter)
	}
	router.Mount(engine, h)
	if cfg.HTTP.SwaggerEnabled {
		mountSwagger(engine, cfg, h, log)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		for _, g := range router.Groups(h) {
			for _, rt := range g.Routes() {
				log.Debug("Route registered",
					zap.String("method", rt.Method),
					zap.String("path", router.DefaultBasePath+rt.Path),
					zap.String("description", rt.Description))
			}
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	return serve(srv, cfg.HTTP.ShutdownTimeout, log)
}

// mountSwagger serves the route table as a Swagger document with its UI
func mountSwagger(engine *gin.Engine, cfg *config.Config, h router.Handlers, log *zap.Logger) {
	doc := apidoc.Build(apidoc.Info{
		Title:       "Bhavan API",
		Version:     version,
		Description: "Service purchases, broker listings, leads and referral attribution",
		BasePath:    router.DefaultBasePath,
	}, router.Groups(h))
	if err := apidoc.Publish(doc); err != nil {
		log.Warn("API description unavailable", zap.Error(err))
		return
	}
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	log.Info("Swagger UI enabled", zap.String("path", "/swagger/index.html"), zap.String("env", cfg.App.Env))
}

func newGateway(cfg *config.Config, log *zap.Logger) servicerequest.PaymentGateway {
	gw, err := payment.NewStripeGateway(cfg.Stripe, log)
	if err != nil {
		if errors.Is(err, servicerequest.ErrGatewayNotConfigured) {
			log.Warn("Stripe not configured, purchases will answer 503")
		} else {
			log.Error("Stripe gateway unavailable", zap.Error(err))
		}
		return nil
	}
	return gw
}

func subscribeHandlers(
	bus *event.InMemoryEventBus,
	store shared.IdempotencyStore,
	referrals insights.ReferralRecorder,
	tracker analytics.Tracker,
	meter metric.Meter,
	log *zap.Logger,
) error {
	bus.Subscribe(event.NewIdempotentHandler(
		insights.NewReferralConversionHandler(referrals, log),
		store, log, event.WithKeyPrefix("event:referral:"),
	))
	bus.Subscribe(insights.NewAnalyticsHandler(tracker, log))

	businessMetrics, err := telemetry.NewBusinessMetrics(meter)
	if err != nil {
		return fmt.Errorf("init business metrics: %w", err)
	}
	bus.Subscribe(insights.NewMetricsHandler(businessMetrics))
	return nil
}

func applyMiddleware(engine *gin.Engine, cfg *config.Config, mp *telemetry.MeterProvider, profiling bool, log *zap.Logger) {
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		tracing := middleware.DefaultTracingConfig()
		tracing.ServiceName = cfg.Telemetry.ServiceName
		engine.Use(middleware.TracingWithConfig(tracing), middleware.SpanErrorMarker())
	}
	engine.Use(middleware.HTTPMetrics(mp, log))
	engine.Use(middleware.Profiling(profiling))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     cfg.CORS.AllowMethods,
		AllowHeaders:     cfg.CORS.AllowHeaders,
		ExposeHeaders:    []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}
	engine.Use(middleware.Attribution(log))
	engine.Use(middleware.TracingAttributeInjector())
}

// serve runs srv until SIGINT or SIGTERM, then drains in-flight requests
func serve(srv *http.Server, shutdownTimeout time.Duration, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Info("Shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited gracefully")
	return nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(log *zap.Logger, timeout time.Duration, tp, mp, lp shutdowner, profiler *telemetry.Profiler) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for name, s := range map[string]shutdowner{"tracer": tp, "meter": mp, "logs": lp} {
		if err := s.Shutdown(ctx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.String("provider", name), zap.Error(err))
		}
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Profiler stop failed", zap.Error(err))
	}
}
