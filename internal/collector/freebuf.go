package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/LJTian/NewsHub/internal/logging"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const freebufBaseURL = "https://www.freebuf.com"

// FreebufFetcher 抓取 FreeBuf 首页文章列表
type FreebufFetcher struct {
	Client  *Client
	BaseURL string
}

func NewFreebuf(client *Client) *FreebufFetcher {
	return &FreebufFetcher{Client: client, BaseURL: freebufBaseURL}
}

func (f *FreebufFetcher) Name() string {
	return "freebuf"
}

func (f *FreebufFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	logging.Info("fetch FreeBuf articles...")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := strings.TrimRight(f.BaseURL, "/")
	c := colly.NewCollector(colly.UserAgent(browserUA))
	c.WithTransport(f.Client.TransportFor(ctx))
	c.SetRequestTimeout(f.Client.Timeout())
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Referer", base+"/")
		r.Headers.Set("Accept", htmlAccept)
	})

	results := make([]NewsItem, 0, 20)
	index := 0
	c.OnHTML(".article-item", func(e *colly.HTMLElement) {
		index++
		item, err := parseFreebufArticle(e.DOM, base)
		if err != nil {
			logging.Warn("skip freebuf article", "index", index, "err", err)
			return
		}
		results = append(results, item)
	})

	if err := c.Visit(base); err != nil {
		return nil, fmt.Errorf("freebuf: %w", err)
	}

	if len(results) == 0 {
		logging.Warn("fetch FreeBuf got 0 items")
	}
	return results, nil
}

// parseFreebufArticle 解析单个 .article-item，缺少标题或链接时返回错误，由调用方跳过
func parseFreebufArticle(s *goquery.Selection, base string) (NewsItem, error) {
	titleSel := s.Find(".title-left .title").First()
	title := strings.TrimSpace(titleSel.Text())
	if title == "" {
		return NewsItem{}, fmt.Errorf("missing title")
	}
	href, _ := titleSel.Parent().Attr("href")
	link := resolveURL(base, href)
	if link == "" {
		return NewsItem{}, fmt.Errorf("missing link for %q", title)
	}

	extra := map[string]any{
		"hover":  strings.TrimSpace(s.Find(".item-right .text-line-2").First().Text()),
		"time":   strings.TrimSpace(s.Find(".item-bottom span:last-child").First().Text()),
		"author": freebufAuthor(s, base),
		"stats":  freebufStats(s),
	}
	if album := strings.TrimSpace(s.Find(".from-column span").First().Text()); album != "" {
		extra["album"] = album
	}
	if img, ok := s.Find(".img-view img").First().Attr("src"); ok && img != "" {
		extra["image"] = resolveURL(base, img)
	}
	if cat := freebufCategory(link); cat != "" {
		extra["category"] = cat
	}

	return NewsItem{
		ID:    idFromURL(link),
		Title: title,
		URL:   link,
		Extra: extra,
	}, nil
}

func freebufAuthor(s *goquery.Selection, base string) map[string]any {
	author := map[string]any{"name": ""}
	a := s.Find(".item-bottom a").First()
	if a.Length() == 0 {
		return author
	}
	author["name"] = strings.TrimSpace(a.Find("span").Last().Text())
	if href, ok := a.Attr("href"); ok {
		author["profileUrl"] = resolveURL(base, href)
	}
	if src, ok := a.Find(".ant-avatar img").First().Attr("src"); ok {
		author["avatar"] = src
	}
	return author
}

func freebufStats(s *goquery.Selection) map[string]int {
	stats := map[string]int{"views": 0, "collections": 0}
	if v := s.Find(`a:contains("围观")`).First(); v.Length() > 0 {
		stats["views"] = parseInt(v.Find("span").First().Text())
	}
	if c := s.Find(`a:contains("收藏")`).First(); c.Length() > 0 {
		stats["collections"] = parseInt(c.Find("span").First().Text())
	}
	return stats
}

// freebufCategory 根据文章路径推断分类
func freebufCategory(link string) string {
	switch {
	case strings.Contains(link, "/articles/web/"):
		return "Web安全"
	case strings.Contains(link, "/articles/database/"):
		return "数据安全"
	case strings.Contains(link, "/articles/network/"):
		return "网络安全"
	case strings.Contains(link, "/articles/mobile/"):
		return "移动安全"
	case strings.Contains(link, "/articles/cloud/"):
		return "云安全"
	}
	return ""
}
