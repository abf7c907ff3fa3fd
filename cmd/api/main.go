package main

import (
	"os"

	"github.com/LJTian/NewsHub/internal/api"
	"github.com/LJTian/NewsHub/internal/cache"
	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/logging"
	"github.com/LJTian/NewsHub/internal/probe"
	"github.com/LJTian/NewsHub/internal/registry"
	"github.com/LJTian/NewsHub/internal/render"
	"github.com/LJTian/NewsHub/internal/scheduler"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	logging.Init(os.Stderr, os.Getenv("LOG_LEVEL"))
	cfg := config.Load()
	gin.SetMode(gin.ReleaseMode)

	metas, err := config.DefaultSources()
	if err != nil {
		logging.L().Fatal("load sources failed", "err", err)
	}

	client := collector.NewClient(cfg.FetchTimeout)
	reg := registry.Default(registry.Options{Client: client, RSSHubBase: cfg.RSSHubBase})
	if missing := reg.Missing(metas); len(missing) > 0 {
		logging.Warn("sources without adapter", "ids", missing)
	}

	opts := cache.Options{FetchTimeout: cfg.FetchTimeout}
	// 配置了 Redis 时作为二级镜像，多实例之间共享最近一次抓取结果
	if cfg.RedisAddr != "" {
		mirror := storage.NewRedisMirror(cfg.RedisAddr, cfg.RedisTTL)
		defer mirror.Close()
		opts.Mirror = mirror
	}
	c := cache.New(reg, opts)

	if len(cfg.PrewarmSources) > 0 {
		s, err := scheduler.New(cfg.CronSpec, cfg.PrewarmSources, c, cfg.FetchTimeout)
		if err != nil {
			logging.L().Fatal("init scheduler failed", "err", err)
		}
		s.Start()
		defer s.Stop()
	}

	server := api.NewServer(c, metas, probe.New(cfg.FetchTimeout), render.New(collector.NewUnlimitedClient(cfg.FetchTimeout)), cfg)
	r := api.NewEngine(server)

	addr := ":" + cfg.AppPort
	logging.Info("starting api server", "addr", addr, "sources", len(reg.IDs()))
	if err := r.Run(addr); err != nil {
		logging.L().Fatal("server exit", "err", err)
	}
}
