package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/middleware"
	"github.com/noah-isme/course-ledger-api/internal/service"
	"github.com/noah-isme/course-ledger-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-ledger-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-ledger-api/pkg/middleware/requestid"
)

// RouterParams lists what the HTTP surface is built from.
type RouterParams struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Identity       *service.IdentityService
	Metrics        *service.MetricsService
	Settings       ledgerSettingsService
	Enrollments    enrollmentService
	Progress       progressService
	Readiness      map[string]ReadinessCheck
}

// NewRouter assembles the gin engine with middleware and every ledger route.
func NewRouter(params RouterParams) *gin.Engine {
	logr := params.Logger
	if logr == nil {
		logr = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(params.AllowedOrigins))
	r.Use(middleware.Metrics(params.Metrics))

	metricsHandler := NewMetricsHandler(params.Metrics, params.Readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if params.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := params.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.Use(middleware.JWT(params.Identity), middleware.WithResponseMeta())

	ledger := NewLedgerHandler(params.Settings)
	api.GET("/ledger/settings", ledger.Settings)
	api.POST("/ledger/authority", ledger.SetAuthority)
	api.PUT("/ledger/platform-fee", ledger.SetPlatformFee)

	enrollments := NewEnrollmentHandler(params.Enrollments)
	api.POST("/enrollments", enrollments.Enroll)
	api.GET("/enrollments/count", enrollments.Count)
	api.GET("/enrollments/exists", enrollments.Exists)
	api.GET("/enrollments/:id", enrollments.Get)
	api.PUT("/enrollments/:id", enrollments.Update)
	api.GET("/enrollments/:id/last-update", enrollments.LastUpdate)

	progress := NewProgressHandler(params.Progress)
	api.POST("/progress", progress.Initialize)
	api.GET("/progress", progress.Get)
	api.POST("/progress/milestones", progress.UpdateMilestone)
	api.POST("/progress/reset", progress.Reset)
	api.PUT("/progress/settings/completion-threshold", progress.SetCompletionThreshold)
	api.PUT("/progress/settings/reward-amount", progress.SetRewardAmount)
	api.PUT("/progress/settings/max-milestones", progress.SetMaxMilestones)
	api.GET("/courses/:id/completions", progress.Completions)
	api.GET("/courses/:id/metrics", progress.Metrics)
	api.GET("/students/:student/courses", progress.StudentCourses)

	return r
}
