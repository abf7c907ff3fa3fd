package collector

import "context"

// NewsItem 统一采集后的基础结构，id 在同一数据源内唯一
type NewsItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	MobileURL string `json:"mobileUrl,omitempty"`
	// PubDate 为毫秒时间戳，0 表示上游未提供
	PubDate int64          `json:"pubDate,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Fetcher 抽象每一个数据源
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]NewsItem, error)
}

// Variants 同一站点下多个命名子源，例如 latest / weekly
type Variants map[string]Fetcher

type funcFetcher struct {
	name string
	fn   func(ctx context.Context) ([]NewsItem, error)
}

func (f funcFetcher) Name() string { return f.name }

func (f funcFetcher) Fetch(ctx context.Context) ([]NewsItem, error) { return f.fn(ctx) }

// Func 把普通函数包装成 Fetcher
func Func(name string, fn func(ctx context.Context) ([]NewsItem, error)) Fetcher {
	return funcFetcher{name: name, fn: fn}
}
