package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/LJTian/NewsHub/internal/logging"
)

// Outcome 是并发子任务的单个结果，成功与失败都保留
type Outcome struct {
	Source string
	Items  []NewsItem
	Err    error
}

// Settle 并发执行全部 fetcher 并等待全部结束，结果顺序与入参一致
func Settle(ctx context.Context, fetchers ...Fetcher) []Outcome {
	out := make([]Outcome, len(fetchers))
	var wg sync.WaitGroup
	for i, f := range fetchers {
		wg.Add(1)
		go func(i int, f Fetcher) {
			defer wg.Done()
			// 子任务跑在独立 goroutine 里，panic 必须在这里兜住并记为该分支失败
			defer func() {
				if r := recover(); r != nil {
					out[i] = Outcome{Source: f.Name(), Err: fmt.Errorf("%s: panic: %v", f.Name(), r)}
				}
			}()
			items, err := f.Fetch(ctx)
			out[i] = Outcome{Source: f.Name(), Items: items, Err: err}
		}(i, f)
	}
	wg.Wait()
	return out
}

type mergeFetcher struct {
	name     string
	limit    int
	branches []Fetcher
}

// Merge 并发拉取多个子源，只要有一个成功即可；结果按 id/url 去重（先出现的优先），
// 按发布时间倒序并截断到 limit
func Merge(name string, limit int, branches ...Fetcher) Fetcher {
	return &mergeFetcher{name: name, limit: limit, branches: branches}
}

func (m *mergeFetcher) Name() string { return m.name }

func (m *mergeFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	outcomes := Settle(ctx, m.branches...)

	var (
		errs      []error
		succeeded int
		lists     [][]NewsItem
	)
	for _, o := range outcomes {
		if o.Err != nil {
			logging.Warn("sub-feed failed", "merge", m.name, "source", o.Source, "err", o.Err)
			errs = append(errs, fmt.Errorf("%s: %w", o.Source, o.Err))
			continue
		}
		succeeded++
		lists = append(lists, o.Items)
	}
	if succeeded == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("%s: all sub-feeds failed: %w", m.name, errors.Join(errs...))
	}

	return mergeItems(m.limit, lists...), nil
}

// mergeItems 按入参顺序去重后排序截断；没有发布时间的条目排在最后
func mergeItems(limit int, lists ...[]NewsItem) []NewsItem {
	seenID := make(map[string]struct{})
	seenURL := make(map[string]struct{})
	merged := make([]NewsItem, 0)

	for _, list := range lists {
		for _, it := range list {
			if _, ok := seenID[it.ID]; ok && it.ID != "" {
				continue
			}
			if _, ok := seenURL[it.URL]; ok && it.URL != "" {
				continue
			}
			if it.ID != "" {
				seenID[it.ID] = struct{}{}
			}
			if it.URL != "" {
				seenURL[it.URL] = struct{}{}
			}
			merged = append(merged, it)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PubDate > merged[j].PubDate
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

type fallbackFetcher struct {
	primary   Fetcher
	secondary Fetcher
}

// Fallback 主策略报错或返回 0 条时改用备用策略
func Fallback(primary, secondary Fetcher) Fetcher {
	return &fallbackFetcher{primary: primary, secondary: secondary}
}

// Chain 按顺序串联多个 fetcher，前一个失败或为空时尝试下一个
func Chain(fetchers ...Fetcher) Fetcher {
	if len(fetchers) == 0 {
		return nil
	}
	f := fetchers[len(fetchers)-1]
	for i := len(fetchers) - 2; i >= 0; i-- {
		f = Fallback(fetchers[i], f)
	}
	return f
}

func (f *fallbackFetcher) Name() string { return f.primary.Name() }

func (f *fallbackFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	items, err := f.primary.Fetch(ctx)
	if err == nil && len(items) > 0 {
		return items, nil
	}
	if err != nil {
		logging.Warn("primary fetch failed, using fallback", "source", f.primary.Name(), "fallback", f.secondary.Name(), "err", err)
	} else {
		logging.Warn("primary fetch got 0 items, using fallback", "source", f.primary.Name(), "fallback", f.secondary.Name())
	}

	fbItems, fbErr := f.secondary.Fetch(ctx)
	if fbErr != nil {
		if err != nil {
			return nil, errors.Join(err, fmt.Errorf("fallback %s: %w", f.secondary.Name(), fbErr))
		}
		return nil, fmt.Errorf("fallback %s: %w", f.secondary.Name(), fbErr)
	}
	return fbItems, nil
}
