package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/cache"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/logging"
	"github.com/LJTian/NewsHub/internal/probe"
	"github.com/LJTian/NewsHub/internal/registry"
	"github.com/gin-gonic/gin"
)

type SourceCache interface {
	Get(ctx context.Context, id string, force bool) (cache.Response, error)
	Peek(id string) (cache.Response, bool)
}

type FrameProber interface {
	Probe(ctx context.Context, target string) probe.Result
}

type PageRenderer interface {
	Render(ctx context.Context, target, mode string, allowScripts bool) (string, error)
}

type Server struct {
	cache    SourceCache
	sources  []config.SourceMeta
	metas    map[string]config.SourceMeta
	prober   FrameProber
	renderer PageRenderer
	cfg      *config.Config
	now      func() time.Time
}

func NewServer(c SourceCache, sources []config.SourceMeta, p FrameProber, r PageRenderer, cfg *config.Config) *Server {
	metas := make(map[string]config.SourceMeta, len(sources))
	for _, m := range sources {
		metas[m.ID] = m
	}
	if sources == nil {
		sources = []config.SourceMeta{}
	}
	return &Server{
		cache:    c,
		sources:  sources,
		metas:    metas,
		prober:   p,
		renderer: r,
		cfg:      cfg,
		now:      time.Now,
	}
}

// NewEngine 组装中间件、路由以及可选的前端静态托管
func NewEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog())
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if s.cfg.BasicAuthUser != "" && s.cfg.BasicAuthPass != "" {
		r.Use(BasicAuth(s.cfg.BasicAuthUser, s.cfg.BasicAuthPass))
	}

	s.RegisterRoutes(r)

	// 若配置了前端目录，则托管 SPA 静态文件并做 fallback（例如 /reader）
	if s.cfg.WebRoot != "" {
		assetsDir := filepath.Join(s.cfg.WebRoot, "assets")
		indexFile := filepath.Join(s.cfg.WebRoot, "index.html")
		r.Static("/assets", assetsDir)
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet || strings.HasPrefix(c.Request.URL.Path, "/api/") {
				c.Status(http.StatusNotFound)
				return
			}
			c.File(indexFile)
		})
	}
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/s", s.getSource)

	api := r.Group("/api")
	{
		api.GET("/sources", s.listSources)
		api.GET("/probe/frame", s.probeFrame)
		api.GET("/render", s.render)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listSources(c *gin.Context) {
	c.JSON(http.StatusOK, s.sources)
}

func (s *Server) getSource(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		abortError(c, http.StatusBadRequest, "invalid_source", "missing id")
		return
	}

	_, latest := c.GetQuery("latest")
	if latest && s.cfg.RefreshToken != "" && !validBearer(c.GetHeader("Authorization"), s.cfg.RefreshToken) {
		abortError(c, http.StatusUnauthorized, "unauthorized", "refresh token required")
		return
	}

	force := latest || s.expired(id)
	resp, err := s.cache.Get(c.Request.Context(), id, force)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownSource) {
			abortError(c, http.StatusBadRequest, "invalid_source", err.Error())
			return
		}
		// 刷新失败时优先返回旧数据
		if cached, ok := s.cache.Peek(id); ok {
			logging.Warn("serve stale source", "source", id, "err", err)
			c.JSON(http.StatusOK, cached)
			return
		}
		abortError(c, http.StatusInternalServerError, "fetch_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

// expired 缓存条目超过数据源配置的刷新间隔
func (s *Server) expired(id string) bool {
	meta, ok := s.metas[id]
	if !ok || meta.Refresh <= 0 {
		return false
	}
	cached, ok := s.cache.Peek(id)
	if !ok {
		return false
	}
	return s.now().UnixMilli()-cached.UpdatedTime > meta.Refresh.Milliseconds()
}

func (s *Server) probeFrame(c *gin.Context) {
	target, err := decodeTarget(c.Query("url"), c.DefaultQuery("type", encodingURI))
	if err != nil {
		abortError(c, http.StatusBadRequest, "invalid_url", err.Error())
		return
	}
	c.JSON(http.StatusOK, s.prober.Probe(c.Request.Context(), target))
}

func (s *Server) render(c *gin.Context) {
	target, err := decodeTarget(c.Query("url"), c.DefaultQuery("type", encodingURI))
	if err != nil {
		abortError(c, http.StatusBadRequest, "invalid_url", err.Error())
		return
	}

	html, err := s.renderer.Render(c.Request.Context(), target, c.Query("mode"), c.Query("scripts") == "1")
	if err != nil {
		abortError(c, http.StatusInternalServerError, "render_failed", err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func abortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}
