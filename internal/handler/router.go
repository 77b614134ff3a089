package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/lecture-intel-api/internal/middleware"
	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lecture-intel-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lecture-intel-api/pkg/middleware/requestid"
)

// RouterConfig carries everything the HTTP surface is assembled from.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Tokens         middleware.TokenValidator
	Observer       middleware.HTTPObserver

	Auth      *AuthHandler
	Courses   *CourseHandler
	Analytics *AnalyticsHandler
	Insights  *InsightHandler
	Feedback  *FeedbackHandler
	Dashboard *DashboardHandler
	Weather   *WeatherHandler
	Reports   *ReportHandler
	Metrics   *MetricsHandler
}

// NewRouter builds the gin engine with the shared middleware chain and every route.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logr := cfg.Logger
	if logr == nil {
		logr = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	if cfg.Observer != nil {
		r.Use(middleware.Metrics(cfg.Observer))
	}
	r.Use(middleware.WithResponseMeta())

	if cfg.Metrics != nil {
		r.GET("/health", cfg.Metrics.Health)
		r.GET("/ready", cfg.Metrics.Ready)
		r.GET("/metrics", cfg.Metrics.Prometheus)
	}
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	staff := middleware.StaffOnly()
	student := middleware.RequireRoles(models.RoleStudent)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(logr, action, resource)
	}

	if cfg.Reports != nil {
		api.GET("/export/:token", cfg.Reports.DownloadReport)
	}

	auth := api.Group("/auth")
	auth.POST("/login", cfg.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(cfg.Tokens))
	secured.GET("/auth/me", cfg.Auth.Me)

	courses := secured.Group("/courses")
	courses.GET("", cfg.Courses.List)
	courses.POST("", staff, audit("create", "course"), cfg.Courses.Create)
	courses.GET("/:id", cfg.Courses.Get)
	courses.DELETE("/:id", staff, audit("delete", "course"), cfg.Courses.Delete)
	courses.GET("/:id/health", cfg.Analytics.CourseHealth)
	courses.GET("/:id/metrics/daily", staff, cfg.Analytics.DailyMetrics)
	courses.GET("/:id/metrics/hourly", staff, cfg.Analytics.HourlyMetrics)
	courses.GET("/:id/topics/difficulty", staff, cfg.Analytics.TopicDifficulty)
	courses.GET("/:id/silent-students", staff, cfg.Analytics.SilentStudents)
	courses.GET("/:id/insights", staff, cfg.Insights.Latest)
	courses.POST("/:id/insights", staff, cfg.Insights.Generate)

	secured.GET("/analytics/system", middleware.RequireRoles(models.RoleAdmin), cfg.Analytics.System)

	feedback := secured.Group("/feedback")
	feedback.GET("", staff, cfg.Feedback.List)
	feedback.GET("/stats", staff, cfg.Feedback.Stats)
	feedback.GET("/export.csv", staff, cfg.Feedback.ExportCSV)
	feedback.POST("", student, audit("submit", "feedback"), cfg.Feedback.Submit)
	feedback.POST("/:id/read", staff, cfg.Feedback.MarkRead)

	dashboard := secured.Group("/dashboard")
	dashboard.GET("/professor", staff, cfg.Dashboard.Professor)
	dashboard.GET("/student", student, cfg.Dashboard.Student)

	secured.GET("/weather", cfg.Weather.Current)

	if cfg.Reports != nil {
		reports := secured.Group("/reports", staff)
		reports.POST("", audit("generate", "report"), cfg.Reports.GenerateReport)
		reports.GET("/:id", cfg.Reports.ReportStatus)
	}

	return r
}
