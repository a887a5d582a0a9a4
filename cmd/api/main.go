package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/classdesk/classdesk-api/api/swagger"
	"github.com/classdesk/classdesk-api/internal/handler"
	"github.com/classdesk/classdesk-api/internal/middleware"
	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/repository"
	"github.com/classdesk/classdesk-api/internal/service"
	"github.com/classdesk/classdesk-api/pkg/cache"
	"github.com/classdesk/classdesk-api/pkg/config"
	"github.com/classdesk/classdesk-api/pkg/database"
	"github.com/classdesk/classdesk-api/pkg/logger"
	corsmiddleware "github.com/classdesk/classdesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classdesk/classdesk-api/pkg/middleware/requestid"
	"github.com/classdesk/classdesk-api/pkg/storage"
)

// @title ClassDesk API
// @version 1.0.0
// @description Classroom management backend: subjects, homeworks, submissions and grading
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Reports.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, report caching disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, cacheRepo != nil)

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	homeworkRepo := repository.NewHomeworkRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	subjectSvc := service.NewSubjectService(subjectRepo, userRepo, homeworkRepo, cacheSvc, nil, logr)
	homeworkSvc := service.NewHomeworkService(homeworkRepo, subjectRepo, userRepo, submissionRepo, cacheSvc, nil, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, homeworkRepo, userRepo, subjectRepo, uploadStore, cacheSvc, nil, logr)
	reportSvc := service.NewReportService(subjectRepo, homeworkRepo, submissionRepo, userRepo, cacheSvc, metricsSvc, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	homeworkHandler := handler.NewHomeworkHandler(homeworkSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc, cfg.Uploads.MaxFileSizeBytes)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	teacherOnly := middleware.RequireRoles(models.RoleTeacher)

	subjects := protected.Group("/subjects")
	{
		subjects.POST("", teacherOnly, subjectHandler.Create)
		subjects.PUT("/:id", teacherOnly, subjectHandler.Update)
		subjects.GET("/:id/details", subjectHandler.Details)
		subjects.GET("/:id/homeworks", homeworkHandler.ListBySubject)
		subjects.POST("/:id/enroll/:studentId", teacherOnly, subjectHandler.Enroll)
		subjects.DELETE("/:id/unenroll/:studentId", teacherOnly, subjectHandler.Unenroll)
		subjects.GET("/:id/all-homework-status", teacherOnly, reportHandler.SubjectHomeworkStatus)
		subjects.GET("/:id/analytics", teacherOnly, reportHandler.SubjectAnalytics)
	}

	homeworks := protected.Group("/homeworks")
	{
		homeworks.POST("", teacherOnly, homeworkHandler.Create)
		homeworks.PUT("/:id", teacherOnly, homeworkHandler.Update)
		homeworks.DELETE("/:id", teacherOnly, homeworkHandler.Delete)
		homeworks.GET("/:id/submission-status", teacherOnly, reportHandler.HomeworkStatus)
		homeworks.GET("/:id/submission-status/export", teacherOnly, reportHandler.ExportHomeworkStatus)
		homeworks.POST("/:id/submissions/:studentId", submissionHandler.Submit)
	}

	submissions := protected.Group("/submissions")
	{
		submissions.PUT("/:id/grade", teacherOnly, submissionHandler.Grade)
		submissions.GET("/:id/file", submissionHandler.Download)
	}

	teachers := protected.Group("/teachers")
	{
		teachers.GET("/:id/subjects", subjectHandler.ListByTeacher)
		teachers.GET("/:id/homeworks", homeworkHandler.ListByTeacher)
	}

	students := protected.Group("/students")
	{
		students.GET("/:id/subjects", middleware.RBAC(string(models.RoleTeacher), "SELF"), subjectHandler.ListByStudent)
		students.GET("/:id/homeworks", middleware.RBAC(string(models.RoleTeacher), "SELF"), homeworkHandler.ListForStudent)
		students.GET("/:id/submissions", middleware.RBAC(string(models.RoleTeacher), "SELF"), submissionHandler.ListByStudent)
		students.GET("/:id/analytics", middleware.RBAC(string(models.RoleTeacher), "SELF"), reportHandler.StudentAnalytics)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
