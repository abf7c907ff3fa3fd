// Package render 在服务端抓取目标页面，返回去脚本或抽取正文后的 HTML，
// 用于目标站点禁止 iframe 嵌入时的替代预览。
package render

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/logging"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

const ModeExtract = "extract"

// 按优先级排列的正文容器
var contentSelectors = []string{
	"article",
	"main",
	"#root",
	".content",
	".RichContent",
	".QuestionPage",
}

const (
	extractHead = `<!doctype html><html><head><meta charset="utf-8"/><meta name="viewport" content="width=device-width, initial-scale=1"/><style>img{max-width:100%;height:auto}body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Helvetica,Arial}</style></head><body>`
	extractTail = `</body></html>`
)

type RenderError struct {
	URL string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

type Renderer struct {
	client *collector.Client
}

func New(client *collector.Client) *Renderer {
	return &Renderer{client: client}
}

// Render 出错时不返回任何部分结果
func (r *Renderer) Render(ctx context.Context, target, mode string, allowScripts bool) (string, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "", &RenderError{URL: target, Err: fmt.Errorf("invalid url")}
	}
	origin := u.Scheme + "://" + u.Host

	body, contentType, err := r.client.Fetch(ctx, target, collector.HTMLHeader(origin))
	if err != nil {
		logging.Warn("render fetch failed", "url", target, "err", err)
		return "", &RenderError{URL: target, Err: err}
	}

	if mode != ModeExtract && allowScripts {
		return string(body), nil
	}

	doc, err := parse(body, contentType)
	if err != nil {
		return "", &RenderError{URL: target, Err: err}
	}
	if !allowScripts {
		stripScripts(doc)
	}

	var out string
	if mode == ModeExtract {
		out, err = extract(doc)
	} else {
		out, err = doc.Html()
	}
	if err != nil {
		return "", &RenderError{URL: target, Err: err}
	}
	return out, nil
}

// parse 按 Content-Type 或 meta 声明把 GBK 等编码转成 UTF-8
func parse(body []byte, contentType string) (*goquery.Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	return goquery.NewDocumentFromReader(reader)
}

func stripScripts(doc *goquery.Document) {
	doc.Find("script").Remove()
	doc.Find("meta[http-equiv]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("http-equiv")
		return strings.EqualFold(strings.TrimSpace(v), "Content-Security-Policy")
	}).Remove()
}

func extract(doc *goquery.Document) (string, error) {
	node := doc.Find("body")
	for _, sel := range contentSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			node = found
			break
		}
	}
	content, err := node.Html()
	if err != nil {
		return "", err
	}
	return extractHead + content + extractTail, nil
}
