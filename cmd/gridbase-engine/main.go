package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridbase-engine/internal/config"
	"gridbase-engine/internal/database"
	httpapi "gridbase-engine/internal/http"
	applog "gridbase-engine/internal/logger"
	"gridbase-engine/internal/metrics"
	"gridbase-engine/internal/planlimit"
	"gridbase-engine/internal/repository"
	"gridbase-engine/internal/service"
	"gridbase-engine/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := applog.NewLogger(cfg.Log.Level, cfg.Log.Format, "gridbase-engine")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// schema缓存后端：有Redis用Redis，没有退回进程内KV
	var kv store.KV
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		kv = store.NewRedisKV(redisClient)
	} else {
		kv = store.NewMemoryKV()
		logger.Info("REDIS_ADDR not set, using in-process schema cache")
	}
	cache := store.NewTagCache(kv, time.Duration(cfg.Cache.SchemaTTLSeconds)*time.Second, logger)

	httpMetrics := metrics.NewHTTPMetrics("gridbase-engine")

	// 存储后端：DB连不上时退回内存repo（联调/单测同款）
	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			logger.Info("DB enabled for gridbase-engine")
		} else {
			logger.Warn("DB enabled but connection failed, falling back to memory repositories", zap.Error(err))
		}
	}

	var (
		tablesRepo  repository.TablesRepository
		columnsRepo repository.ColumnsRepository
		rowsRepo    repository.RowsRepository
		cellsRepo   repository.CellsRepository
		permsRepo   repository.PermissionsRepository
		tenantsRepo repository.TenantsRepository
	)
	if db != nil {
		tablesRepo = repository.NewPostgresTablesRepository(db)
		columnsRepo = repository.NewPostgresColumnsRepository(db)
		rowsRepo = repository.NewPostgresRowsRepository(db)
		cellsRepo = repository.NewPostgresCellsRepository(db)
		permsRepo = repository.NewPostgresPermissionsRepository(db)
		tenantsRepo = repository.NewPostgresTenantsRepository(db)
	} else {
		engine := repository.NewMemoryEngine()
		tablesRepo = engine
		columnsRepo = engine
		rowsRepo = engine
		cellsRepo = engine
		permsRepo = engine
		tenantsRepo = engine
	}

	// 配额检查：没配billing地址就用本地不限额检查器
	var checker planlimit.Checker
	if cfg.PlanLimit.BaseURL != "" {
		checker = planlimit.NewClient(cfg.PlanLimit.BaseURL, cfg.PlanLimit.APIKey, logger)
	} else {
		checker = &planlimit.StaticChecker{}
	}

	permService := service.NewPermissionService(permsRepo, httpMetrics, logger)
	resolver := service.NewReferenceResolver(columnsRepo, cellsRepo, logger)
	catalog := service.NewCatalogService(tablesRepo, columnsRepo, tenantsRepo, cache, checker, httpMetrics, logger)
	cellService := service.NewCellService(tablesRepo, rowsRepo, cellsRepo, catalog, permService, resolver, httpMetrics, logger)
	importService := service.NewImportService(
		tablesRepo, rowsRepo, catalog, permService, resolver, httpMetrics, logger,
		cfg.Import.BatchSize,
		time.Duration(cfg.Import.BatchTimeoutSeconds)*time.Second,
		cfg.Import.ErrorPreview,
	)
	widgetService := service.NewWidgetService(rowsRepo, catalog, permService, logger)
	tenantService := service.NewTenantService(tenantsRepo, logger)

	router := httpapi.NewRouter(logger)
	router.RegisterSchemaRoutes(httpapi.NewSchemaHandler(catalog, logger))
	router.RegisterPermissionRoutes(httpapi.NewPermissionsHandler(permService, logger))
	router.RegisterTenantRoutes(httpapi.NewTenantsHandler(tenantService, logger))
	router.RegisterGridRoutes(
		httpapi.NewRowsHandler(cellService, logger),
		httpapi.NewImportHandler(importService, catalog, cellService, logger),
	)
	router.RegisterWidgetRoutes(httpapi.NewWidgetsHandler(widgetService, logger))
	router.RegisterOpsRoutes(metrics.GetPrometheusHandler())

	srv := service.NewServer(cfg.HTTP.Addr, httpMetrics.Middleware(router), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
