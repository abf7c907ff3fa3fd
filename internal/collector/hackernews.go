package collector

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/LJTian/NewsHub/internal/logging"
)

const (
	hnBaseURL     = "https://hacker-news.firebaseio.com/v0"
	hnMaxItems    = 30
	hnConcurrency = 10
)

// HackerNewsFetcher 通过官方 Firebase API 抓取 Hacker News 热门故事
type HackerNewsFetcher struct {
	Client  *Client
	BaseURL string
}

func NewHackerNews(client *Client) *HackerNewsFetcher {
	return &HackerNewsFetcher{Client: client, BaseURL: hnBaseURL}
}

func (h *HackerNewsFetcher) Name() string {
	return "hackernews"
}

type hnItem struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Type        string `json:"type"`
}

func (h *HackerNewsFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	logging.Info("fetch Hacker News Top Stories...")

	var ids []int
	if err := h.Client.GetJSON(ctx, h.BaseURL+"/topstories.json", nil, &ids); err != nil {
		return nil, fmt.Errorf("hackernews: fetch top stories: %w", err)
	}
	if len(ids) > hnMaxItems {
		ids = ids[:hnMaxItems]
	}

	type indexedItem struct {
		idx  int
		item hnItem
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		sem   = make(chan struct{}, hnConcurrency)
		items = make([]indexedItem, 0, len(ids))
	)

	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx, id int) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					logging.Error("hackernews: item panic", "id", id, "panic", r)
				}
			}()

			var it hnItem
			if err := h.Client.GetJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.BaseURL, id), nil, &it); err != nil {
				logging.Warn("hackernews: fetch item", "id", id, "err", err)
				return
			}
			if it.Title == "" || it.Type != "story" {
				return
			}

			mu.Lock()
			items = append(items, indexedItem{idx: idx, item: it})
			mu.Unlock()
		}(i, id)
	}
	wg.Wait()

	// 按榜单原始顺序输出
	sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })

	results := make([]NewsItem, 0, len(items))
	for _, ii := range items {
		it := ii.item
		discussURL := fmt.Sprintf("https://news.ycombinator.com/item?id=%d", it.ID)
		itemURL := it.URL
		if itemURL == "" {
			itemURL = discussURL
		}

		results = append(results, NewsItem{
			ID:        strconv.Itoa(it.ID),
			Title:     it.Title,
			URL:       itemURL,
			MobileURL: discussURL,
			PubDate:   it.Time * 1000,
			Extra: map[string]any{
				"info":     fmt.Sprintf("%d points", it.Score),
				"author":   map[string]any{"name": it.By},
				"comments": it.Descendants,
				"rank":     ii.idx + 1,
			},
		})
	}

	if len(results) == 0 {
		logging.Warn("hackernews: no items fetched")
	}
	return results, nil
}
