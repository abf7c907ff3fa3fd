// Package cache 保存每个数据源最近一次成功抓取的结果，
// 并保证同一个 source id 同时最多只有一次上游抓取。
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/logging"
	"github.com/LJTian/NewsHub/internal/processor"
	"golang.org/x/sync/singleflight"
)

const (
	StatusSuccess = "success"
	StatusCache   = "cache"
)

// Response 是按数据源缓存的单元
type Response struct {
	Status      string               `json:"status"`
	ID          string               `json:"id"`
	Items       []collector.NewsItem `json:"items"`
	UpdatedTime int64                `json:"updatedTime"`
}

// FetchError 表示上游抓取失败（或调用方等待超时），已有缓存不受影响
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type Resolver interface {
	Resolve(id string) (collector.Fetcher, error)
}

// Mirror 是可选的二级缓存（例如 Redis），用于进程冷启动或多实例共享
type Mirror interface {
	Load(ctx context.Context, id string) (Response, bool, error)
	Store(ctx context.Context, id string, resp Response) error
}

type Options struct {
	Mirror       Mirror
	Processor    *processor.SimpleProcessor
	Now          func() time.Time
	FetchTimeout time.Duration
}

type Cache struct {
	resolver Resolver
	proc     *processor.SimpleProcessor
	mirror   Mirror
	now      func() time.Time
	timeout  time.Duration

	mu      sync.RWMutex
	entries map[string]Response

	group singleflight.Group
}

func New(resolver Resolver, opts Options) *Cache {
	c := &Cache{
		resolver: resolver,
		proc:     opts.Processor,
		mirror:   opts.Mirror,
		now:      opts.Now,
		timeout:  opts.FetchTimeout,
		entries:  make(map[string]Response),
	}
	if c.proc == nil {
		c.proc = processor.NewSimpleProcessor()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Get 未强制刷新且已有缓存时直接返回（不论新旧）；否则触发一次共享的上游抓取。
// 未注册的 id 原样返回 registry 的错误，其余失败都是 *FetchError。
func (c *Cache) Get(ctx context.Context, id string, force bool) (Response, error) {
	fetcher, err := c.resolver.Resolve(id)
	if err != nil {
		return Response{}, err
	}

	if !force {
		if resp, ok := c.Peek(id); ok {
			return resp, nil
		}
	}

	// 共享抓取不跟随首个调用方的取消，避免一个客户端断开拖垮所有等待者
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (any, error) {
		return c.refresh(fetchCtx, id, fetcher, !force)
	})

	select {
	case <-ctx.Done():
		return Response{}, &FetchError{Source: id, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Response{}, res.Err
		}
		return res.Val.(Response), nil
	}
}

// Peek 只读缓存，不触发抓取
func (c *Cache) Peek(id string) (Response, bool) {
	c.mu.RLock()
	resp, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		resp.Status = StatusCache
	}
	return resp, ok
}

func (c *Cache) set(id string, resp Response) {
	c.mu.Lock()
	c.entries[id] = resp
	c.mu.Unlock()
}

func (c *Cache) refresh(ctx context.Context, id string, f collector.Fetcher, fromCache bool) (Response, error) {
	// 排队进来的非强制请求可能刚好错过上一轮抓取，这里再查一次
	if fromCache {
		if resp, ok := c.Peek(id); ok {
			return resp, nil
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if fromCache && c.mirror != nil {
		resp, ok, err := c.mirror.Load(ctx, id)
		switch {
		case err != nil:
			logging.Warn("cache mirror load failed", "source", id, "err", err)
		case ok:
			resp.ID = id
			c.set(id, resp)
			resp.Status = StatusCache
			logging.Debug("cache seeded from mirror", "source", id, "items", len(resp.Items))
			return resp, nil
		}
	}

	start := c.now()
	items, err := safeFetch(ctx, f)
	if err != nil {
		logging.Warn("fetch source failed", "source", id, "err", err)
		return Response{}, &FetchError{Source: id, Err: err}
	}

	resp := Response{
		Status:      StatusSuccess,
		ID:          id,
		Items:       c.proc.Process(id, items),
		UpdatedTime: c.now().UnixMilli(),
	}
	c.set(id, resp)
	logging.Info("source refreshed", "source", id, "fetched", len(items), "kept", len(resp.Items), "took", c.now().Sub(start))

	if c.mirror != nil {
		if err := c.mirror.Store(ctx, id, resp); err != nil {
			logging.Warn("cache mirror store failed", "source", id, "err", err)
		}
	}
	return resp, nil
}

// safeFetch 把采集器里的 panic 转成错误，单个数据源的异常不能打挂进程
func safeFetch(ctx context.Context, f collector.Fetcher) (items []collector.NewsItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return f.Fetch(ctx)
}
