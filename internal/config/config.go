package config

import (
	"os"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/logging"
)

type Config struct {
	AppPort string

	// RedisAddr 为空时不启用 L2 镜像
	RedisAddr string
	RedisTTL  time.Duration

	// CronSpec 预热任务周期；PrewarmSources 为空时不启用预热
	CronSpec       string
	PrewarmSources []string

	FetchTimeout time.Duration
	RSSHubBase   string

	// RefreshToken 非空时，强制刷新（latest）需要携带 Bearer token
	RefreshToken  string
	BasicAuthUser string
	BasicAuthPass string

	LogLevel string

	// WebRoot 前端构建产物目录，配置后托管 SPA 静态文件
	WebRoot string
}

func Load() *Config {
	cfg := &Config{
		AppPort:        getEnv("APP_PORT", "9000"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisTTL:       getDuration("REDIS_TTL", 2*time.Hour),
		CronSpec:       getEnv("CRON_SPEC", "*/30 * * * *"),
		PrewarmSources: splitList(getEnv("PREWARM_SOURCES", "")),
		FetchTimeout:   getDuration("FETCH_TIMEOUT", 20*time.Second),
		RSSHubBase:     strings.TrimRight(getEnv("RSSHUB_BASE", "https://rsshub.app"), "/"),
		RefreshToken:   getEnv("APP_REFRESH_TOKEN", ""),
		BasicAuthUser:  getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:  getEnv("APP_BASIC_PASS", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		WebRoot:        getEnv("WEB_ROOT", ""),
	}

	logging.Info("config loaded", "port", cfg.AppPort, "cron", cfg.CronSpec, "prewarm", len(cfg.PrewarmSources), "redis", cfg.RedisAddr != "")
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getDuration 解析失败或非正数时回退默认值
func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logging.Warn("invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
