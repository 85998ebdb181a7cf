package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"docvault/internal/audit"
	"docvault/internal/auth"
	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	handlers "docvault/internal/http/handler"
	"docvault/internal/http/middleware"
	"docvault/internal/ingest"
	"docvault/internal/logger"
	"docvault/internal/metrics"
	"docvault/internal/otel"
	"docvault/internal/pagestore"
	"docvault/internal/render"
	"docvault/internal/repository"
	"docvault/internal/repository/memory"
	"docvault/internal/repository/postgres"
	"docvault/internal/service"
	"docvault/internal/storage"
)

// uploadLimit caps multipart request bodies.
const uploadLimit = 64 << 20

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.Location())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}

	db, docRepo, borrowRepo := openRepositories(ctx, cfg)
	if db != nil {
		defer db.Close()
	}

	redisClient, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	views := openAuditTrail(ctx, cfg)

	archive, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	pages, err := pagestore.New(cfg.Render.OriginalsDir, cfg.Render.RenderedDir)
	if err != nil {
		log.Fatalf("failed to prepare page store: %v", err)
	}

	runner := &render.ExecRunner{WaitDelay: 5 * time.Second}
	dispatcher := render.NewDispatcher(docRepo, pages, render.NewStrategies(runner, pages, cfg.Render))
	queue := ingest.New(dispatcher, ingest.Options{
		Workers: cfg.Render.IngestWorkers,
		Size:    cfg.Render.IngestQueue,
		Timeout: cfg.Render.IngestTimeout,
	})

	// conversions lost with a previous process are failed at boot and then periodically
	go ingest.NewReconciler(docRepo, cfg.Render.StaleAfter).Run(ctx, cfg.Render.StaleSweep)

	borrowSvc := service.NewBorrowService(docRepo, borrowRepo)
	svc := handlers.Services{
		Documents: service.NewDocumentService(docRepo, dispatcher, pages, queue, archive),
		Borrows:   borrowSvc,
		Pages:     service.NewPageService(docRepo, pages, borrowSvc, views),
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		log.Fatalf("failed to initialize token verification: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.RegisterCollectors(reg); err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}
	promMW, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalf("failed to register http metrics: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    uploadLimit,
	})

	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == middleware.MetricsPath
	})))
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(cfg.Location()))
	app.Use(promMW.Handler())
	app.Get(middleware.MetricsPath, middleware.MetricsHandler(reg))
	// identify before limiting so budgets are per user, not per address
	app.Use(verifier.Identify())
	app.Use(middleware.RedisRateLimit(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))

	handlers.RegisterRoutes(app, db, svc, handlers.Guards{
		Authenticate: verifier.Middleware(),
		Admin:        auth.RequireRole(cfg.Auth.AdminRole),
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutdown_started", nil)
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("http_shutdown_failed", logger.Fields{"error": err})
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("server_starting", logger.Fields{"addr": addr, "storage": storageMode(db)})
	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := queue.Close(drainCtx); err != nil {
		logger.Warn("ingest_drain_incomplete", logger.Fields{"error": err})
	}
	if err := shutdownTracing(drainCtx); err != nil {
		logger.Error("tracing_shutdown_failed", logger.Fields{"error": err})
	}
	logger.Info("shutdown_complete", nil)
}

// openRepositories connects to PostgreSQL and migrates the schema, or keeps records in
// memory when no database host is configured.
func openRepositories(ctx context.Context, cfg *config.AppConfig) (*sql.DB, repository.DocumentRepository, repository.BorrowRepository) {
	if !database.Configured(cfg.Database) {
		logger.Warn("database_not_configured", logger.Fields{"storage": "memory"})
		store := memory.New()
		return nil, store.Documents(), store.Borrows()
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := migration.EnsureMigrated(ctx, db, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	return db, postgres.NewDocumentPostgres(db), postgres.NewBorrowPostgres(db)
}

// openAuditTrail records page views in MongoDB when a URI is configured.
func openAuditTrail(ctx context.Context, cfg *config.AppConfig) audit.Recorder {
	if cfg.Mongo.URI == "" {
		return audit.NopRecorder{}
	}
	client, err := database.ConnectMongo(ctx, cfg.Mongo)
	if err != nil {
		log.Fatalf("failed to connect to mongodb: %v", err)
	}
	rec := audit.NewMongoRecorder(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
	if err := rec.EnsureIndexes(ctx); err != nil {
		logger.Warn("audit_index_failed", logger.Fields{"error": err})
	}
	return rec
}

func storageMode(db *sql.DB) string {
	if db == nil {
		return "memory"
	}
	return "postgres"
}
