package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lecture-intel-api/api/swagger"
	"github.com/noah-isme/lecture-intel-api/internal/handler"
	"github.com/noah-isme/lecture-intel-api/internal/repository"
	"github.com/noah-isme/lecture-intel-api/internal/service"
	"github.com/noah-isme/lecture-intel-api/pkg/cache"
	"github.com/noah-isme/lecture-intel-api/pkg/config"
	"github.com/noah-isme/lecture-intel-api/pkg/database"
	"github.com/noah-isme/lecture-intel-api/pkg/events"
	"github.com/noah-isme/lecture-intel-api/pkg/jobs"
	"github.com/noah-isme/lecture-intel-api/pkg/llm"
	"github.com/noah-isme/lecture-intel-api/pkg/logger"
	"github.com/noah-isme/lecture-intel-api/pkg/storage"
	"github.com/noah-isme/lecture-intel-api/pkg/weather"
)

// @title Lecture Intelligence API
// @version 1.0.0
// @description Aggregates student lecture feedback into course health, trends, topic difficulty and teaching insights.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr.Named("migrate")); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	checks := map[string]handler.Pinger{"postgres": db}
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		checks["redis"] = cache.Pinger{Client: redisClient}
	}

	publisher := newPublisher(cfg, logr)
	defer publisher.Close()

	app := buildApp(cfg, db, redisClient, publisher, logr)
	if app.queue != nil {
		app.queue.Start(ctx)
		defer app.queue.Stop()
		app.reports.RecoverPendingJobs(ctx)
		app.reports.StartCleanup(ctx)
	}

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Tokens:         app.auth,
		Observer:       app.metrics,
		Auth:           handler.NewAuthHandler(app.auth),
		Courses:        handler.NewCourseHandler(app.courses),
		Analytics:      handler.NewAnalyticsHandler(app.analytics),
		Insights:       handler.NewInsightHandler(app.insights),
		Feedback:       handler.NewFeedbackHandler(app.feedback),
		Dashboard:      handler.NewDashboardHandler(app.dashboard),
		Weather:        handler.NewWeatherHandler(app.weather, cfg.Weather.DefaultCity),
		Reports:        app.reportHandler(logr),
		Metrics:        handler.NewMetricsHandler(app.metrics.Handler(), checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type app struct {
	metrics   *service.MetricsService
	auth      *service.AuthService
	courses   *service.CourseService
	analytics *service.AnalyticsService
	insights  *service.InsightService
	feedback  *service.FeedbackService
	dashboard *service.DashboardService
	weather   *service.WeatherService
	reports   *service.ReportService
	queue     *jobs.Queue
}

func (a *app) reportHandler(logr *zap.Logger) *handler.ReportHandler {
	if a.reports == nil {
		return nil
	}
	return handler.NewReportHandler(a.reports, logr.Named("reports"))
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, publisher events.Publisher, logr *zap.Logger) *app {
	validate := validator.New()
	metrics := service.NewMetricsService()

	courseRepo := repository.NewCourseRepository(db)
	lectureRepo := repository.NewLectureRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	userRepo := repository.NewUserRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr.Named("cache"))
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr.Named("cache"), redisClient != nil)

	snapshots := service.NewSnapshotService(service.SnapshotServiceParams{
		Courses:  courseRepo,
		Lectures: lectureRepo,
		Students: studentRepo,
		Feedback: feedbackRepo,
		Cache:    cacheSvc,
		Metrics:  metrics,
		Logger:   logr.Named("snapshot"),
		TTL:      cfg.Snapshot.CacheTTL,
	})

	feedback := service.NewFeedbackService(service.FeedbackServiceParams{
		Snapshots: snapshots,
		Repo:      feedbackRepo,
		Publisher: publisher,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr.Named("feedback"),
	})

	var completer interface {
		Complete(ctx context.Context, system, user string) (string, error)
	}
	if cfg.Insights.Enabled {
		completer = llm.New(llm.Config{
			BaseURL: cfg.Insights.BaseURL,
			APIKey:  cfg.Insights.APIKey,
			Model:   cfg.Insights.Model,
			Timeout: cfg.Insights.Timeout,
		})
	}
	var weatherClient interface {
		Current(ctx context.Context, city string) (*weather.Reading, error)
	}
	if cfg.Weather.Enabled {
		weatherClient = weather.New(cfg.Weather.BaseURL, cfg.Weather.APIKey, cfg.Weather.Timeout)
	}

	a := &app{
		metrics: metrics,
		auth: service.NewAuthService(userRepo, validate, logr.Named("auth"), service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		}),
		courses: service.NewCourseService(service.CourseServiceParams{
			Snapshots: snapshots,
			Repo:      courseRepo,
			Students:  studentRepo,
			Users:     userRepo,
			Publisher: publisher,
			Validator: validate,
			Logger:    logr.Named("course"),
		}),
		analytics: service.NewAnalyticsService(snapshots, cacheSvc, metrics, logr.Named("analytics"), service.AnalyticsConfig{
			CacheTTL:     cfg.Analytics.CacheTTL,
			SilentWindow: cfg.Analytics.SilentWindow,
		}),
		insights: service.NewInsightService(snapshots, completer, cacheSvc, metrics, logr.Named("insight"), service.InsightConfig{
			CacheTTL:     cfg.Insights.CacheTTL,
			SilentWindow: cfg.Analytics.SilentWindow,
		}),
		feedback: feedback,
		dashboard: service.NewDashboardService(service.DashboardServiceParams{
			Snapshots: snapshots,
			Reads:     feedbackRepo,
			Cache:     cacheSvc,
			Logger:    logr.Named("dashboard"),
			Config: service.DashboardServiceConfig{
				CacheTTL:           cfg.Dashboard.CacheTTL,
				LowHealthThreshold: cfg.Dashboard.LowHealthThreshold,
				SilentWindow:       cfg.Analytics.SilentWindow,
			},
		}),
		weather: service.NewWeatherService(weatherClient, cacheSvc, metrics, logr.Named("weather"), cfg.Weather.CacheTTL),
	}

	if !cfg.Reports.Enabled {
		return a
	}

	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare report storage", zap.Error(err))
	}
	reportRepo := repository.NewReportRepository(db)
	exporter := service.NewExportService(service.ExportServiceParams{
		Feedback:  feedback,
		Snapshots: snapshots,
		Users:     userRepo,
		Storage:   files,
		Signer:    storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL),
		Logger:    logr.Named("export"),
		Config:    service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL},
	})
	worker := service.NewReportWorker(reportRepo, exporter, metrics, logr.Named("report-worker"))
	a.queue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Reports.WorkerConcurrency,
		MaxRetries:  cfg.Reports.WorkerRetries,
		OnExhausted: worker.MarkFailed,
		Logger:      logr,
	})
	a.reports = service.NewReportService(reportRepo, snapshots, a.queue, exporter, validate, logr.Named("reports"), service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	return a
}

func newPublisher(cfg *config.Config, logr *zap.Logger) events.Publisher {
	if !cfg.Events.Enabled || len(cfg.Events.Brokers) == 0 {
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.TopicPrefix, logr.Named("events"))
}
