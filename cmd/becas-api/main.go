package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sibec-dev/becas-api/api/swagger"
	"github.com/sibec-dev/becas-api/internal/handler"
	"github.com/sibec-dev/becas-api/internal/middleware"
	"github.com/sibec-dev/becas-api/internal/models"
	"github.com/sibec-dev/becas-api/internal/repository"
	"github.com/sibec-dev/becas-api/internal/service"
	"github.com/sibec-dev/becas-api/pkg/cache"
	"github.com/sibec-dev/becas-api/pkg/config"
	"github.com/sibec-dev/becas-api/pkg/database"
	"github.com/sibec-dev/becas-api/pkg/logger"
	corsmiddleware "github.com/sibec-dev/becas-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sibec-dev/becas-api/pkg/middleware/requestid"
	"github.com/sibec-dev/becas-api/pkg/storage"
)

// @title Becas API
// @version 0.1.0
// @description Scholarship lifecycle service: applications, awards, slots and weekly reports
// @BasePath /
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The catalog cache degrades to repository reads without Redis.
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}

	docStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	auditRepo := repository.NewAuditRepository(db)
	configurationRepo := repository.NewConfigurationRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	beneficiaryRepo := repository.NewBeneficiaryRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	slotApplicationRepo := repository.NewSlotApplicationRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	notificationSvc := service.NewNotificationService(cfg.Notifications, logr, metricsSvc)
	notificationSvc.Start(context.Background())
	defer notificationSvc.Stop()

	configurationSvc := service.NewConfigurationService(configurationRepo, cacheRepo, cfg.Catalog.CacheTTL, logr)
	applicationSvc := service.NewApplicationService(applicationRepo, beneficiaryRepo, configurationSvc, notificationSvc, metricsSvc, logr)
	beneficiarySvc := service.NewBeneficiaryService(beneficiaryRepo, notificationSvc, logr)
	slotSvc := service.NewSlotService(slotRepo, slotApplicationRepo, beneficiaryRepo, notificationSvc, metricsSvc, logr)
	reportSvc := service.NewReportService(reportRepo, beneficiaryRepo, notificationSvc, metricsSvc, logr)
	documentSvc := service.NewDocumentService(docStore, signer, applicationRepo, cfg.Documents, logr)

	configurationHandler := handler.NewConfigurationHandler(configurationSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	beneficiaryHandler := handler.NewBeneficiaryHandler(beneficiarySvc)
	slotHandler := handler.NewSlotHandler(slotSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
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

	// Downloads authenticate with the signed token, not a bearer token.
	r.GET(cfg.APIPrefix+"/documents/download", documentHandler.Download)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor, models.RoleStudent)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor)
	students := middleware.RequireRoles(models.RoleAdmin, models.RoleStudent)

	configurations := api.Group("/configurations")
	{
		configurations.GET("", anyRole, configurationHandler.List)
		configurations.GET("/:type", anyRole, configurationHandler.Get)
		configurations.PUT("", adminOnly, middleware.Audit(auditRepo, logr, "UPSERT", "configuration"), configurationHandler.Upsert)
	}

	applications := api.Group("/applications")
	{
		applications.POST("", students, applicationHandler.Submit)
		applications.POST("/direct", adminOnly, middleware.Audit(auditRepo, logr, "REGISTER_DIRECT", "application"), applicationHandler.RegisterDirect)
		applications.GET("", staff, applicationHandler.List)
		applications.GET("/:id", anyRole, applicationHandler.Get)
		applications.GET("/:id/eligibility", staff, applicationHandler.CheckEligibility)
		applications.POST("/:id/approve", adminOnly, middleware.Audit(auditRepo, logr, "APPROVE", "application"), applicationHandler.Approve)
		applications.POST("/:id/reject", adminOnly, middleware.Audit(auditRepo, logr, "REJECT", "application"), applicationHandler.Reject)
	}

	beneficiaries := api.Group("/beneficiaries")
	{
		beneficiaries.GET("", staff, beneficiaryHandler.List)
		beneficiaries.GET("/:id", anyRole, beneficiaryHandler.Get)
		beneficiaries.PUT("/:id/status", adminOnly, middleware.Audit(auditRepo, logr, "UPDATE_STATUS", "beneficiary"), beneficiaryHandler.UpdateStatus)
		beneficiaries.GET("/:id/availability", anyRole, beneficiaryHandler.Availability)
		beneficiaries.PUT("/:id/availability", students, beneficiaryHandler.SetAvailability)
		beneficiaries.GET("/:id/hours", anyRole, beneficiaryHandler.HourLedger)
		beneficiaries.DELETE("/:id/assignment", adminOnly, middleware.Audit(auditRepo, logr, "RELEASE_ASSIGNMENT", "beneficiary"), slotHandler.ReleaseAssignment)
	}

	slots := api.Group("/slots")
	{
		slots.POST("", adminOnly, middleware.Audit(auditRepo, logr, "CREATE", "slot"), slotHandler.Create)
		slots.PUT("/:id", adminOnly, middleware.Audit(auditRepo, logr, "UPDATE", "slot"), slotHandler.Update)
		slots.GET("", anyRole, slotHandler.List)
		slots.GET("/:id", anyRole, slotHandler.Get)
		slots.GET("/:id/beneficiaries", staff, slotHandler.AssignedBeneficiaries)
	}

	slotApplications := api.Group("/slot-applications")
	{
		slotApplications.POST("", students, slotHandler.CreateApplication)
		slotApplications.GET("", staff, slotHandler.ListApplications)
		slotApplications.GET("/:id", anyRole, slotHandler.GetApplication)
		slotApplications.POST("/:id/approve", staff, middleware.Audit(auditRepo, logr, "APPROVE", "slot_application"), slotHandler.ApproveApplication)
		slotApplications.POST("/:id/reject", staff, middleware.Audit(auditRepo, logr, "REJECT", "slot_application"), slotHandler.RejectApplication)
	}

	reports := api.Group("/reports")
	{
		reports.POST("", students, reportHandler.Submit)
		reports.GET("", staff, reportHandler.List)
		reports.GET("/:id", anyRole, reportHandler.Get)
		reports.POST("/:id/review", staff, middleware.Audit(auditRepo, logr, "START_REVIEW", "weekly_report"), reportHandler.StartReview)
		reports.POST("/:id/approve", staff, middleware.Audit(auditRepo, logr, "APPROVE", "weekly_report"), reportHandler.Approve)
		reports.POST("/:id/reject", staff, middleware.Audit(auditRepo, logr, "REJECT", "weekly_report"), reportHandler.Reject)
	}

	documents := api.Group("/documents")
	{
		documents.POST("", students, documentHandler.Upload)
		documents.GET("/:id/url", anyRole, documentHandler.SignedURL)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
