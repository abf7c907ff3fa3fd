package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LJTian/NewsHub/internal/logging"
	"github.com/PuerkitoBio/goquery"
)

const secwikiBaseURL = "https://www.sec-wiki.com"

// SecWiki 提供 latest / weekly 两个子源
type SecWiki struct {
	Client  *Client
	BaseURL string
}

func NewSecWiki(client *Client) *SecWiki {
	return &SecWiki{Client: client, BaseURL: secwikiBaseURL}
}

// Variants 返回按 id 注册的子源，"secwiki" 与 "secwiki-latest" 等价
func (s *SecWiki) Variants() Variants {
	latest := Func("secwiki-latest", s.Latest)
	return Variants{
		"secwiki":        latest,
		"secwiki-latest": latest,
		"secwiki-weekly": Func("secwiki-weekly", s.Weekly),
	}
}

func (s *SecWiki) base() string {
	return strings.TrimRight(s.BaseURL, "/")
}

func (s *SecWiki) document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := s.Client.Get(ctx, rawURL, HTMLHeader(s.base()+"/"))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// Latest 解析首页 #content1 下的最新条目
func (s *SecWiki) Latest(ctx context.Context) ([]NewsItem, error) {
	logging.Info("fetch SecWiki latest...")

	doc, err := s.document(ctx, s.base())
	if err != nil {
		return nil, fmt.Errorf("secwiki latest: %w", err)
	}
	items := parseSecwikiLatest(doc, s.base())
	if len(items) == 0 {
		return nil, errors.New("secwiki latest: cannot parse latest items")
	}
	return items, nil
}

func parseSecwikiLatest(doc *goquery.Document, base string) []NewsItem {
	var items []NewsItem
	doc.Find("#content1 p").Each(func(_ int, p *goquery.Selection) {
		link := p.Find("a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return
		}
		u := resolveURL(base, href)
		if u == "" {
			return
		}
		items = append(items, NewsItem{
			ID:      u,
			Title:   title,
			URL:     u,
			PubDate: parseDateMillis(p.Find("span.dropcap").First().Text()),
		})
	})
	return items
}

// Weekly 先在 /weekly 找到最新一期，再解析该期的条目
func (s *SecWiki) Weekly(ctx context.Context) ([]NewsItem, error) {
	logging.Info("fetch SecWiki weekly...")

	index, err := s.document(ctx, s.base()+"/weekly")
	if err != nil {
		return nil, fmt.Errorf("secwiki weekly: %w", err)
	}
	issueHref, ok := index.Find(`.issues a[href^="/weekly/"]`).First().Attr("href")
	if !ok {
		issueHref, ok = index.Find(`a[href^="/weekly/"]`).First().Attr("href")
	}
	if !ok || issueHref == "" {
		return nil, errors.New("secwiki weekly: cannot find weekly issue")
	}

	issueURL := resolveURL(s.base(), issueHref)
	issue, err := s.document(ctx, issueURL)
	if err != nil {
		return nil, fmt.Errorf("secwiki weekly issue: %w", err)
	}
	items := parseSecwikiWeekly(issue, s.base())
	if len(items) == 0 {
		return nil, errors.New("secwiki weekly: cannot parse weekly items")
	}
	return items, nil
}

func parseSecwikiWeekly(doc *goquery.Document, base string) []NewsItem {
	var items []NewsItem
	doc.Find(".single").Each(func(_ int, el *goquery.Selection) {
		href, ok := el.Find("a").First().Attr("href")
		if !ok || href == "" {
			return
		}
		u := resolveURL(base, href)
		if u == "" {
			return
		}
		tag := collapseSpace(el.Find("#tags").First().Text())

		// 标题是去掉链接和标签后剩下的文本
		titleNode := el.Clone()
		titleNode.Find("a").Remove()
		titleNode.Find("#tags").Remove()
		title := collapseSpace(titleNode.Text())
		if title == "" {
			return
		}

		it := NewsItem{ID: u, Title: title, URL: u}
		if tag != "" {
			it.Extra = map[string]any{"info": tag}
		}
		items = append(items, it)
	})
	return items
}
