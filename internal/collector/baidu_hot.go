package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/LJTian/NewsHub/internal/logging"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const baiduBoardURL = "https://top.baidu.com/board?tab=realtime"

// BaiduHotFetcher 抓取百度实时热搜榜
type BaiduHotFetcher struct {
	Client   *Client
	BoardURL string
}

func NewBaiduHot(client *Client) *BaiduHotFetcher {
	return &BaiduHotFetcher{Client: client, BoardURL: baiduBoardURL}
}

func (b *BaiduHotFetcher) Name() string {
	return "baidu"
}

// 介绍文案的候选选择器，按顺序尝试
var baiduDescSelectors = []string{
	"div[class*='content']",
	"div[class*='desc']",
	"div[class*='abstract']",
	"div[class*='summary']",
	"p",
}

func (b *BaiduHotFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	logging.Info("fetch Baidu Hot Search...")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(colly.UserAgent(browserUA))
	c.WithTransport(b.Client.TransportFor(ctx))
	c.SetRequestTimeout(b.Client.Timeout())

	results := make([]NewsItem, 0, 50)
	seen := make(map[string]struct{})

	// 页面结构可能调整，此处基于当前的 DOM 结构做“尽力而为”的解析
	c.OnHTML("div.category-wrap_iQLoo", func(e *colly.HTMLElement) {
		item, err := parseBaiduEntry(e.DOM, b.BoardURL)
		if err != nil {
			logging.Warn("skip baidu entry", "err", err)
			return
		}
		if _, ok := seen[item.ID]; ok {
			return
		}
		seen[item.ID] = struct{}{}
		results = append(results, item)
	})

	if err := c.Visit(b.BoardURL); err != nil {
		return nil, fmt.Errorf("baidu: %w", err)
	}

	if len(results) == 0 {
		logging.Warn("fetch Baidu Hot Search got 0 items")
	}
	return results, nil
}

func parseBaiduEntry(s *goquery.Selection, boardURL string) (NewsItem, error) {
	title := strings.TrimSpace(s.Find("div.c-single-text-ellipsis").First().Text())
	if title == "" {
		return NewsItem{}, fmt.Errorf("missing title")
	}

	link := boardURL
	if href, ok := s.Find("a").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		link = resolveURL(boardURL, href)
	}

	heatText := strings.TrimSpace(s.Find("div.hot-index_1Bl1a").First().Text())

	desc := ""
	for _, sel := range baiduDescSelectors {
		if desc = strings.TrimSpace(s.Find(sel).First().Text()); desc != "" {
			break
		}
	}
	if desc == "" {
		desc = fallbackBaiduDesc(s, title, heatText)
	}
	desc = cleanBaiduDesc(desc)

	extra := map[string]any{}
	if heat := parseInt(heatText); heat > 0 {
		extra["info"] = heatText
		extra["heat"] = heat
	}
	if desc != "" && desc != title {
		extra["hover"] = desc
	}

	it := NewsItem{ID: title, Title: title, URL: link}
	if len(extra) > 0 {
		it.Extra = extra
	}
	return it, nil
}

// cleanBaiduDesc 去掉简介中的“查看更多”等链接文案，只保留正文
func cleanBaiduDesc(s string) string {
	s = strings.TrimSpace(s)
	for _, cut := range []string{"[查看更多>]", "[查看更多&gt;]", "查看更多"} {
		if idx := strings.Index(s, cut); idx != -1 {
			s = strings.TrimSpace(s[:idx])
		}
	}
	return s
}

// fallbackBaiduDesc 从当前条目内找非标题、非热度的最长段落
func fallbackBaiduDesc(s *goquery.Selection, title, heatText string) string {
	var best string
	const minLen = 20

	s.Find("div, p, span").Each(func(_ int, n *goquery.Selection) {
		t := strings.TrimSpace(n.Text())
		if t == "" || t == title || t == heatText || len(t) < minLen {
			return
		}
		// 排除纯数字（热度）
		if _, err := strconv.Atoi(strings.ReplaceAll(t, ",", "")); err == nil && len(t) < 30 {
			return
		}
		if len(t) > len(best) {
			best = t
		}
	})
	return best
}
