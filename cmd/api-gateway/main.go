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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/kasukras-star/apotikme-api/api/swagger"
	"github.com/kasukras-star/apotikme-api/internal/bootstrap"
	"github.com/kasukras-star/apotikme-api/internal/handler"
	internalmiddleware "github.com/kasukras-star/apotikme-api/internal/middleware"
	"github.com/kasukras-star/apotikme-api/internal/models"
	"github.com/kasukras-star/apotikme-api/pkg/config"
	"github.com/kasukras-star/apotikme-api/pkg/logger"
	corsmiddleware "github.com/kasukras-star/apotikme-api/pkg/middleware/cors"
	reqidmiddleware "github.com/kasukras-star/apotikme-api/pkg/middleware/requestid"
)

// @title Apotikme Back-Office API
// @version 1.0.0
// @description Change request approval workflow with dual-store reconciliation
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := bootstrap.New(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to wire engine", "error", err)
	}
	defer engine.Close() //nolint:errcheck

	engine.Loop.Start(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(engine.Metrics, "/health", "/ready", "/metrics"))

	metricsHandler := handler.NewMetricsHandler(engine.Metrics, map[string]handler.ReadinessCheck{
		"local":  engine.PingLocal,
		"remote": engine.PingRemote,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var audit handler.AuditHistoryReader
	if engine.Audit != nil {
		audit = engine.Audit
	}
	changeRequests := handler.NewChangeRequestHandler(engine.ChangeRequests, engine.Exports, audit)
	notifications := handler.NewNotificationHandler(engine.ChangeRequests)
	syncHandler := handler.NewSyncHandler(engine.Loop, engine.Records, cfg.ChangeRequests.RecencyWindow)

	api := r.Group(cfg.APIPrefix)
	deciders := internalmiddleware.RequireRoles(models.RoleApprover, models.RoleOwner)
	if cfg.JWT.Enabled {
		api.Use(internalmiddleware.JWT(engine.Tokens))
	} else {
		api.Use(internalmiddleware.OptionalJWT(engine.Tokens))
	}

	crs := api.Group("/change-requests")
	crs.POST("", changeRequests.Submit)
	crs.GET("", changeRequests.List)
	crs.GET("/export", changeRequests.Export)
	crs.GET("/:id", changeRequests.Get)
	crs.GET("/:id/audit", changeRequests.AuditHistory)
	crs.POST("/:id/approve", deciders, changeRequests.Approve)
	crs.POST("/:id/reject", deciders, changeRequests.Reject)
	crs.POST("/:id/complete", changeRequests.Complete)
	crs.DELETE("/:id", changeRequests.Cancel)

	api.GET("/notifications/unread-count", notifications.UnreadCount)
	api.POST("/notifications/mark-all-read", notifications.MarkAllRead)

	api.GET("/sync/status", syncHandler.Status)
	api.POST("/sync/pull", syncHandler.Pull)
	api.POST("/sync/push", syncHandler.Push)
	api.GET("/records/:kind", syncHandler.Records)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "client", engine.ClientID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("http shutdown incomplete", "error", err)
	}
	engine.Loop.Stop()
}
