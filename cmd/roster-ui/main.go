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
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-roster/api/swagger"
	"github.com/noah-isme/sma-roster/internal/handler"
	"github.com/noah-isme/sma-roster/internal/middleware"
	"github.com/noah-isme/sma-roster/internal/models"
	"github.com/noah-isme/sma-roster/internal/repository"
	"github.com/noah-isme/sma-roster/internal/service"
	"github.com/noah-isme/sma-roster/pkg/config"
	"github.com/noah-isme/sma-roster/pkg/jobs"
	"github.com/noah-isme/sma-roster/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-roster/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-roster/pkg/middleware/requestid"
	"github.com/noah-isme/sma-roster/pkg/storage"
)

// @title SMA Roster API
// @version 0.1.0
// @description Student roster with a remote backend and a local mirror fallback
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	backend, closeBackend, err := repository.OpenMirrorBackend(ctx, cfg)
	if err != nil {
		logr.Fatal("failed to open mirror", zap.String("driver", cfg.Mirror.Driver), zap.Error(err))
	}
	defer closeBackend()
	mirror := repository.NewMirrorRepository(backend, cfg.Mirror.KeyPrefix, logr)

	gateway := repository.NewRemoteRepository(cfg.Gateway, &http.Client{Timeout: cfg.Gateway.Timeout}, metrics, logr)
	if !gateway.Configured() {
		logr.Warn("roster backend not configured, serving from local mirror only")
	}

	defaultSort, err := models.ParseSortField(cfg.Roster.DefaultSort)
	if err != nil {
		logr.Warn("invalid default sort, using nome", zap.String("value", cfg.Roster.DefaultSort))
		defaultSort = models.SortByName
	}
	roster := service.NewRosterService(gateway, mirror, service.NewStudentValidator(time.Now), metrics, service.RosterServiceConfig{
		DefaultSort:          defaultSort,
		DefaultClassLevel:    cfg.Roster.DefaultClassLevel,
		DefaultClassCapacity: cfg.Roster.DefaultClassCapacity,
		SearchDebounce:       cfg.Roster.SearchDebounce,
	}, logr)
	if err := roster.Init(ctx); err != nil {
		logr.Warn("failed to restore sort preference", zap.Error(err))
	}
	if _, err := roster.LoadClasses(ctx); err != nil {
		logr.Warn("initial class load failed", zap.Error(err))
	}
	if _, err := roster.Refresh(ctx, models.StudentFilter{}); err != nil {
		logr.Warn("initial roster load failed", zap.Error(err))
	}

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(roster, exportStorage, signer, metrics, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	exportRepo := repository.NewExportJobRepository()
	worker := service.NewExportWorker(exportRepo, exporter, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	exportJobs := service.NewExportJobService(exportRepo, queue, exporter, service.ExportJobConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	}, logr)
	exportJobs.StartCleanup(ctx)

	rosterHandler := handler.NewRosterHandler(roster)
	exportHandler := handler.NewExportHandler(exporter, exportJobs)
	metricsHandler := handler.NewMetricsHandler(metrics, roster, queue)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.GET("/status", metricsHandler.Status)

	api.GET("/turmas", rosterHandler.ListClasses)
	api.GET("/alunos", rosterHandler.ListStudents)
	api.GET("/alunos/search", rosterHandler.SearchStudents)
	api.POST("/alunos", rosterHandler.CreateStudent)
	api.PUT("/alunos/:id", rosterHandler.UpdateStudent)
	api.DELETE("/alunos/:id", rosterHandler.DeleteStudent)
	api.POST("/matriculas", rosterHandler.Enroll)
	api.GET("/indicadores", rosterHandler.Indicators)
	api.GET("/preferencias/sort", rosterHandler.GetSort)
	api.PUT("/preferencias/sort", rosterHandler.SetSort)

	api.GET("/export/alunos.csv", exportHandler.Download(models.ExportFormatCSV))
	api.GET("/export/alunos.json", exportHandler.Download(models.ExportFormatJSON))
	api.GET("/export/alunos.pdf", exportHandler.Download(models.ExportFormatPDF))
	api.GET("/export/:token", exportHandler.DownloadSigned)
	api.POST("/exports", exportHandler.CreateJob)
	api.GET("/exports/:id", exportHandler.JobStatus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "mirror", cfg.Mirror.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
