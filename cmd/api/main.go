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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/khaind/macad-api/api/swagger"
	"github.com/khaind/macad-api/internal/handler"
	"github.com/khaind/macad-api/internal/middleware"
	"github.com/khaind/macad-api/internal/models"
	"github.com/khaind/macad-api/internal/repository"
	"github.com/khaind/macad-api/internal/service"
	"github.com/khaind/macad-api/pkg/cache"
	"github.com/khaind/macad-api/pkg/config"
	"github.com/khaind/macad-api/pkg/database"
	appErrors "github.com/khaind/macad-api/pkg/errors"
	"github.com/khaind/macad-api/pkg/logger"
	corsmiddleware "github.com/khaind/macad-api/pkg/middleware/cors"
	reqidmiddleware "github.com/khaind/macad-api/pkg/middleware/requestid"
)

// @title Military Academy Administration API
// @version 1.0.0
// @description Administration backend for academy terms, courses, rosters, fitness assessments, equipment and discipline records
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
		}
	}
	if cacheSvc == nil {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Dashboard.CacheTTL, logr, false)
	}

	userRepo := repository.NewUserRepository(db)
	termRepo := repository.NewTermRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	classRepo := repository.NewClassRepository(db)
	fitnessTestRepo := repository.NewFitnessTestRepository(db)
	sessionRepo := repository.NewAssessmentSessionRepository(db)
	fitnessRecordRepo := repository.NewFitnessRecordRepository(db)
	equipmentRepo := repository.NewEquipmentRepository(db)
	allowanceRepo := repository.NewAllowanceRepository(db)
	violationRepo := repository.NewViolationRepository(db)

	provisioner := service.NewManagerDetailProvisioner(userRepo, logr)
	userSvc := service.NewUserService(userRepo, validate, logr, provisioner)
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	termSvc := service.NewTermService(termRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, enrollmentRepo, termRepo, userRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, userRepo, validate, logr)
	fitnessSvc := service.NewFitnessService(fitnessTestRepo, sessionRepo, fitnessRecordRepo, userRepo, validate, logr)
	equipmentSvc := service.NewEquipmentService(equipmentRepo, userRepo, validate, logr)
	allowanceSvc := service.NewAllowanceService(allowanceRepo, userRepo, validate, logr)
	violationSvc := service.NewViolationService(violationRepo, userRepo, validate, logr)
	exportSvc := service.NewExportService(courseRepo, enrollmentRepo, logr)
	dashboardSvc := service.NewDashboardService(userRepo, courseRepo, termRepo, enrollmentRepo, violationRepo, fitnessRecordRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	seedAdmin(context.Background(), userSvc, cfg.Admin, logr)

	authHandler := handler.NewAuthHandler(authSvc, userSvc)
	userHandler := handler.NewUserHandler(userSvc)
	termHandler := handler.NewTermHandler(termSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, exportSvc, metricsSvc, dashboardSvc)
	classHandler := handler.NewClassHandler(classSvc)
	fitnessHandler := handler.NewFitnessHandler(fitnessSvc, metricsSvc)
	equipmentHandler := handler.NewEquipmentHandler(equipmentSvc)
	allowanceHandler := handler.NewAllowanceHandler(allowanceSvc)
	violationHandler := handler.NewViolationHandler(violationSvc, metricsSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
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
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	protected := api.Group("", middleware.JWT(authSvc))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleManager)

	users := protected.Group("/users")
	{
		users.GET("", adminOnly, userHandler.List)
		users.POST("", adminOnly, userHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleManager), middleware.Self), userHandler.Get)
		users.GET("/:id/manager-detail", staff, userHandler.GetManagerDetail)
		users.PUT("/:id", adminOnly, userHandler.Update)
		users.DELETE("/:id", adminOnly, userHandler.Deactivate)
	}

	terms := protected.Group("/terms")
	{
		terms.GET("", termHandler.List)
		terms.GET("/:id", termHandler.Get)
		terms.POST("", adminOnly, termHandler.Create)
		terms.PUT("/:id", adminOnly, termHandler.Update)
		terms.DELETE("/:id", adminOnly, termHandler.Delete)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", staff, courseHandler.Create)
		courses.PUT("/:id", staff, courseHandler.Update)
		courses.DELETE("/:id", staff, courseHandler.Delete)
		courses.GET("/:id/enrollments", courseHandler.ListEnrollments)
		courses.POST("/:id/enrollments", staff, courseHandler.Enroll)
		courses.DELETE("/:id/enrollments/:userId", staff, courseHandler.Unenroll)
		courses.PUT("/:id/enrollments/:userId/grades", staff, courseHandler.UpdateGrade)
		courses.GET("/:id/grade-report", staff, courseHandler.ExportGradeReport)
	}

	classes := protected.Group("/classes")
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.POST("", staff, classHandler.Create)
		classes.PUT("/:id", staff, classHandler.Update)
		classes.DELETE("/:id", staff, classHandler.Delete)
		classes.GET("/:id/members", classHandler.ListMembers)
		classes.POST("/:id/members", staff, classHandler.AddStudent)
		classes.PUT("/:id/monitor", staff, classHandler.AssignMonitor)
		classes.PUT("/:id/vice-monitor", staff, classHandler.AssignViceMonitor)
	}

	memberships := protected.Group("/class-memberships")
	{
		memberships.PUT("/:id", staff, classHandler.UpdateMembership)
		memberships.DELETE("/:id", staff, classHandler.RemoveStudent)
	}

	fitness := protected.Group("/fitness")
	{
		fitness.GET("/tests", fitnessHandler.ListTests)
		fitness.GET("/tests/:id", fitnessHandler.GetTest)
		fitness.POST("/tests", staff, fitnessHandler.CreateTest)
		fitness.PUT("/tests/:id", staff, fitnessHandler.UpdateTest)
		fitness.DELETE("/tests/:id", staff, fitnessHandler.DeleteTest)
		fitness.GET("/sessions", fitnessHandler.ListSessions)
		fitness.GET("/sessions/current", fitnessHandler.CurrentWeekSession)
		fitness.GET("/records", fitnessHandler.ListRecords)
		fitness.POST("/records", staff, fitnessHandler.RecordAssessment)
		fitness.POST("/records/batch", staff, fitnessHandler.BatchRecordAssessments)
		fitness.DELETE("/records/:id", staff, fitnessHandler.DeleteRecord)
	}

	equipment := protected.Group("/equipment")
	{
		equipment.GET("/types", equipmentHandler.ListTypes)
		equipment.POST("/types", staff, equipmentHandler.CreateType)
		equipment.GET("/distributions", equipmentHandler.ListDistributions)
		equipment.POST("/distributions", staff, equipmentHandler.CreateDistribution)
		equipment.GET("/distributions/:id/receipts", equipmentHandler.ListReceipts)
		equipment.POST("/distributions/:id/receipts", staff, equipmentHandler.CreateReceipts)
		equipment.PUT("/receipts/:id", staff, equipmentHandler.UpdateReceipt)
	}

	allowances := protected.Group("/allowances")
	{
		allowances.GET("", staff, allowanceHandler.List)
		allowances.POST("/bulk", staff, allowanceHandler.BulkCreate)
		allowances.PUT("/:id", staff, allowanceHandler.Update)
	}

	violations := protected.Group("/violations")
	{
		violations.GET("", staff, violationHandler.List)
		violations.GET("/:id", staff, violationHandler.Get)
		violations.POST("", staff, violationHandler.Create)
		violations.PUT("/:id", staff, violationHandler.Update)
		violations.DELETE("/:id", staff, violationHandler.Delete)
	}

	protected.GET("/dashboard", staff, dashboardHandler.Summary)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// seedAdmin creates the bootstrap admin account when configured and absent.
func seedAdmin(ctx context.Context, users *service.UserService, cfg config.AdminBootstrapConfig, logr *zap.Logger) {
	if cfg.Email == "" || cfg.Password == "" {
		return
	}
	_, err := users.Create(ctx, service.CreateUserRequest{
		Email:    cfg.Email,
		Password: cfg.Password,
		FullName: cfg.FullName,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrConflict.Code {
			return
		}
		logr.Sugar().Warnw("admin bootstrap failed", "error", err)
		return
	}
	logr.Sugar().Infow("admin account seeded", "email", cfg.Email)
}
