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

const githubBaseURL = "https://github.com"

// GitHubTrendingFetcher 抓取 GitHub Trending，使用页上的仓库介绍作为悬停说明
type GitHubTrendingFetcher struct {
	Client  *Client
	BaseURL string
}

func NewGitHubTrending(client *Client) *GitHubTrendingFetcher {
	return &GitHubTrendingFetcher{Client: client, BaseURL: githubBaseURL}
}

func (g *GitHubTrendingFetcher) Name() string {
	return "github"
}

func (g *GitHubTrendingFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	logging.Info("fetch GitHub Trending...")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := strings.TrimRight(g.BaseURL, "/")
	c := colly.NewCollector(colly.UserAgent(browserUA))
	c.WithTransport(g.Client.TransportFor(ctx))
	c.SetRequestTimeout(g.Client.Timeout())

	results := make([]NewsItem, 0, 25)
	c.OnHTML("article.Box-row", func(e *colly.HTMLElement) {
		item, err := parseTrendingRepo(e.DOM, base)
		if err != nil {
			logging.Warn("skip github trending repo", "err", err)
			return
		}
		results = append(results, item)
	})

	if err := c.Visit(base + "/trending"); err != nil {
		return nil, fmt.Errorf("github trending: %w", err)
	}

	if len(results) == 0 {
		logging.Warn("fetch GitHub Trending got 0 items")
	}
	return results, nil
}

func parseTrendingRepo(s *goquery.Selection, base string) (NewsItem, error) {
	titleSel := s.Find("h2 a").First()
	if titleSel.Length() == 0 {
		return NewsItem{}, fmt.Errorf("missing repo link")
	}
	href, ok := titleSel.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return NewsItem{}, fmt.Errorf("missing repo href")
	}
	// "owner /\n  repo" -> "owner/repo"
	repo := strings.Join(strings.Fields(titleSel.Text()), "")
	if repo == "" {
		return NewsItem{}, fmt.Errorf("missing repo name")
	}

	starsText := strings.TrimSpace(s.Find(`a[href$="/stargazers"]`).First().Text())
	stars := parseStars(starsText)

	extra := map[string]any{"stars": stars}
	if starsText != "" {
		extra["info"] = "★ " + starsText
	}
	if desc := strings.TrimSpace(s.Find("p").First().Text()); desc != "" {
		extra["hover"] = desc
	}

	return NewsItem{
		ID:    strings.Trim(strings.TrimSpace(href), "/"),
		Title: repo,
		URL:   resolveURL(base, href),
		Extra: extra,
	}, nil
}

// parseStars 将 GitHub Trending 中“12.3k”之类的文本解析为整数
func parseStars(text string) int {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if text == "" {
		return 0
	}

	multiplier := 1.0
	if strings.HasSuffix(text, "k") || strings.HasSuffix(text, "K") {
		multiplier = 1000
		text = strings.TrimSuffix(strings.TrimSuffix(text, "k"), "K")
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0
	}
	return int(f * multiplier)
}
