package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panoramiq/panorex-api/internal/application"
	"github.com/panoramiq/panorex-api/internal/application/analyzer"
	appevents "github.com/panoramiq/panorex-api/internal/application/events"
	"github.com/panoramiq/panorex-api/internal/config"
	domevents "github.com/panoramiq/panorex-api/internal/domain/events"
	domain "github.com/panoramiq/panorex-api/internal/domain/session"
	aiclient "github.com/panoramiq/panorex-api/internal/infra/ai/openai"
	mysqlp "github.com/panoramiq/panorex-api/internal/infra/db/mysql"
	postgresp "github.com/panoramiq/panorex-api/internal/infra/db/postgres"
	"github.com/panoramiq/panorex-api/internal/infra/httpserver"
	"github.com/panoramiq/panorex-api/internal/infra/identity"
	minioStore "github.com/panoramiq/panorex-api/internal/infra/storage"
	"github.com/panoramiq/panorex-api/internal/middleware"
	"github.com/panoramiq/panorex-api/internal/pdfexport"
	"github.com/panoramiq/panorex-api/internal/sanitize"
	"github.com/panoramiq/panorex-api/internal/upload"
)

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database (driver selected by config)
	var (
		db       *sql.DB
		recorder domevents.Recorder
		reports  domain.ReportRepository
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		recorder = postgresp.NewUsageEventRepository(db)
		reports = postgresp.NewReportRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		recorder = mysqlp.NewUsageEventRepository(db)
		reports = mysqlp.NewReportRepository(db)
	}
	defer db.Close()

	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}

	// object store archive is optional
	var archive domain.ImageStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		archive = store
		checkers["object_store"] = middleware.CheckerFunc(store.Check)
	}

	logger := appevents.NewLogger(recorder)

	svc := &analyzer.Service{
		Validator: upload.NewValidator(cfg.Upload.MaxBytes, cfg.Upload.AllowedTypes),
		AI:        aiclient.NewClient(cfg.Analysis.APIKey, cfg.Analysis.Model),
		Sanitizer: sanitize.NewReportSanitizer(),
		Exporter:  pdfexport.NewExporter(),
		Logger:    logger,
		Reports:   reports,
		Archive:   archive,
		Clock:     application.SystemClock{},
		Tick:      cfg.ProgressTick(),
		OnAnalysisDone: func(success bool) {
			outcome := "success"
			if !success {
				outcome = "error"
			}
			middleware.AnalysesTotal.WithLabelValues(outcome).Inc()
		},
	}

	var idp httpserver.IdentityProvider
	if cfg.Identity.BaseURL != "" {
		idp = identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.APIKey)
	}

	handler := httpserver.NewRouter(httpserver.Options{
		Analyzer:  svc,
		Recorder:  recorder,
		Reports:   reports,
		Identity:  idp,
		Health:    middleware.HealthHandler(checkers),
		MaxUpload: cfg.Upload.MaxBytes,
	})
	handler = middleware.RateLimitMiddleware(30, 5)(handler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	logger.Flush()
}
