package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/LJTian/NewsHub/internal/logging"
	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const rssHoverMaxRunes = 200

// RSSFetcher 通用的 RSS/Atom 订阅源
type RSSFetcher struct {
	Client  *Client
	FeedURL string
	// Label 仅用于日志和错误信息，为空时用 FeedURL
	Label string
	Limit int
}

// NewRSS 构造一个通用订阅源
func NewRSS(client *Client, label, feedURL string) *RSSFetcher {
	return &RSSFetcher{Client: client, FeedURL: feedURL, Label: label}
}

// NewRSSHub 构造一个 RSSHub 路由订阅源，例如 route="/freebuf/articles/network"
func NewRSSHub(client *Client, base, route string, limit int) *RSSFetcher {
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(route, "/")
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	return &RSSFetcher{Client: client, FeedURL: u, Label: "rsshub:" + route, Limit: limit}
}

func (r *RSSFetcher) Name() string {
	if r.Label != "" {
		return r.Label
	}
	return r.FeedURL
}

func (r *RSSFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	logging.Debug("fetch feed", "source", r.Name(), "url", r.FeedURL)

	h := http.Header{}
	h.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,*/*;q=0.8")
	body, err := r.Client.Get(ctx, r.FeedURL, h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Name(), err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: parse feed: %w", r.Name(), err)
	}

	base := feed.Link
	if base == "" {
		base = r.FeedURL
	}

	items := make([]NewsItem, 0, len(feed.Items))
	for i, entry := range feed.Items {
		it, err := convertFeedItem(entry, base)
		if err != nil {
			logging.Warn("skip feed entry", "source", r.Name(), "index", i, "err", err)
			continue
		}
		items = append(items, it)
	}

	if r.Limit > 0 && len(items) > r.Limit {
		items = items[:r.Limit]
	}
	return items, nil
}

func convertFeedItem(entry *gofeed.Item, base string) (NewsItem, error) {
	if entry == nil {
		return NewsItem{}, fmt.Errorf("nil entry")
	}
	title := collapseSpace(entry.Title)
	if title == "" {
		return NewsItem{}, fmt.Errorf("missing title")
	}
	link := resolveURL(base, entry.Link)
	if link == "" {
		return NewsItem{}, fmt.Errorf("missing link for %q", title)
	}
	if u, err := url.Parse(link); err != nil || !u.IsAbs() {
		return NewsItem{}, fmt.Errorf("link not absolute: %q", entry.Link)
	}

	id := strings.TrimSpace(entry.GUID)
	if id == "" {
		id = link
	}

	it := NewsItem{ID: id, Title: title, URL: link}
	if entry.PublishedParsed != nil {
		it.PubDate = entry.PublishedParsed.UnixMilli()
	} else if entry.UpdatedParsed != nil {
		it.PubDate = entry.UpdatedParsed.UnixMilli()
	}

	extra := map[string]any{}
	if desc := truncateRunes(htmlText(entry.Description), rssHoverMaxRunes); desc != "" {
		extra["hover"] = desc
	}
	if entry.Author != nil && entry.Author.Name != "" {
		extra["author"] = map[string]any{"name": entry.Author.Name}
	}
	if len(extra) > 0 {
		it.Extra = extra
	}
	return it, nil
}

// htmlText 把描述里的 HTML 片段转成纯文本，实体会被解码，脚本和样式丢弃
func htmlText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return ""
	}
	doc.Find("script,style,noscript").Remove()
	return collapseSpace(doc.Text())
}

func truncateRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "…"
}
