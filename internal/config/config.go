package config

import (
	"os"
	"strconv"

	"gridbase-engine/internal/database"

	"github.com/joho/godotenv"
)

// Config gridbase-engine（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  database.Config
	Redis     struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Cache struct {
		SchemaTTLSeconds int
	}
	PlanLimit PlanLimitConfig
	Import    ImportConfig
}

// PlanLimitConfig 计费侧 plan-limit 校验服务配置
type PlanLimitConfig struct {
	BaseURL string // 为空时使用 static allow-all 检查器
	APIKey  string
}

// ImportConfig 批量导入配置
type ImportConfig struct {
	BatchSize           int // 每批行数
	BatchTimeoutSeconds int // 每批事务时间预算
	ErrorPreview        int // 响应中逐条错误的上限
}

func Load() *Config {
	// 可选 .env（本地开发）；缺失时静默忽略
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Default to true for local dev: if DB is unavailable, gridbase-engine will fall back to memory repos.
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "gridbase")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	// REDIS_ADDR 为空时退回进程内 KV 缓存
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Cache.SchemaTTLSeconds = parseInt(getEnv("SCHEMA_CACHE_TTL_SECONDS", "300"), 300)

	// Plan-limit 服务配置（为空则不做远程校验）
	cfg.PlanLimit.BaseURL = getEnv("PLAN_LIMIT_BASE_URL", "")
	cfg.PlanLimit.APIKey = getEnv("PLAN_LIMIT_API_KEY", "")

	// 批量导入配置
	cfg.Import.BatchSize = parseInt(getEnv("IMPORT_BATCH_SIZE", "50"), 50)
	cfg.Import.BatchTimeoutSeconds = parseInt(getEnv("IMPORT_BATCH_TIMEOUT_SECONDS", "30"), 30)
	cfg.Import.ErrorPreview = parseInt(getEnv("IMPORT_ERROR_PREVIEW", "50"), 50)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
