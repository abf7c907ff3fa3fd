package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/LJTian/NewsHub/internal/cache"
	"github.com/LJTian/NewsHub/internal/logging"
	"github.com/robfig/cron/v3"
)

// Refresher 由 cache.Cache 实现
type Refresher interface {
	Get(ctx context.Context, id string, force bool) (cache.Response, error)
}

// Scheduler 定时对热门数据源做强制刷新（预热），让用户请求尽量命中缓存
type Scheduler struct {
	cron      *cron.Cron
	sources   []string
	refresher Refresher
	timeout   time.Duration

	// StartupDelay 首轮预热的延迟，为 0 时不做首轮
	StartupDelay time.Duration
}

func New(spec string, sources []string, r Refresher, timeout time.Duration) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:         c,
		sources:      sources,
		refresher:    r,
		timeout:      timeout,
		StartupDelay: 15 * time.Second,
	}

	_, err := c.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮预热，避免与用户首次打开页面的请求争抢上游
	if s.StartupDelay > 0 {
		time.AfterFunc(s.StartupDelay, func() {
			go s.runOnce()
		})
	}
}

// Stop 等待正在执行的预热结束
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发预热
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	if len(s.sources) == 0 {
		return
	}
	logging.Info("start prewarm job", "sources", len(s.sources))

	var wg sync.WaitGroup
	for _, id := range s.sources {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			if s.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, s.timeout)
				defer cancel()
			}
			resp, err := s.refresher.Get(ctx, id, true)
			if err != nil {
				logging.Warn("prewarm failed", "source", id, "err", err)
				return
			}
			logging.Debug("prewarm done", "source", id, "items", len(resp.Items))
		}()
	}

	wg.Wait()
	logging.Info("prewarm job done")
}
