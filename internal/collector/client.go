package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	browserUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	htmlAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"

	maxBodyBytes = 4 << 20 // 4MB，防止超大页面拖垮进程

	hostRateEvery = 250 * time.Millisecond
	hostRateBurst = 4
)

// ErrBodyTooLarge 响应体超过 maxBodyBytes，截断的内容不会返回给调用方
var ErrBodyTooLarge = errors.New("response body too large")

// Client 是所有采集器共用的出站 HTTP 客户端，按 host 做令牌桶限速，
// 避免强制刷新被频繁触发时把上游打爆
type Client struct {
	http    *http.Client
	timeout time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewClient(timeout time.Duration) *Client {
	c := &Client{
		timeout:  timeout,
		limiters: make(map[string]*rate.Limiter),
	}
	c.http = &http.Client{
		Timeout:   timeout,
		Transport: &limitedTransport{base: http.DefaultTransport, client: c},
	}
	return c
}

// NewUnlimitedClient 不按 host 限速，用于目标 host 由用户决定的场景（渲染代理）
func NewUnlimitedClient(timeout time.Duration) *Client {
	return &Client{
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Timeout() time.Duration { return c.timeout }

func (c *Client) transport() http.RoundTripper {
	if c.http.Transport == nil {
		return http.DefaultTransport
	}
	return c.http.Transport
}

// TransportFor 返回供 colly 复用的 RoundTripper。colly 发出的请求不带 ctx，
// 这里把 ctx 绑定到每个请求上，调用方的取消和超时才能生效
func (c *Client) TransportFor(ctx context.Context) http.RoundTripper {
	return &ctxTransport{base: c.transport(), ctx: ctx}
}

type ctxTransport struct {
	base http.RoundTripper
	ctx  context.Context
}

func (t *ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(hostRateEvery), hostRateBurst)
		c.limiters[host] = l
	}
	return l
}

type limitedTransport struct {
	base   http.RoundTripper
	client *Client
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.client.limiter(req.URL.Host).Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// Get 发起 GET 请求并读取响应体，非 2xx 视为失败
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	body, _, err := c.Fetch(ctx, rawURL, header)
	return body, err
}

// Fetch 与 Get 相同，额外返回 Content-Type，供需要判断字符集的调用方使用
func (c *Client) Fetch(ctx context.Context, rawURL string, header http.Header) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", browserUA)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: read body: %w", rawURL, err)
	}
	if len(body) > maxBodyBytes {
		return nil, "", fmt.Errorf("GET %s: %w (limit %d bytes)", rawURL, ErrBodyTooLarge, maxBodyBytes)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, v any) error {
	body, err := c.Get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("GET %s: decode json: %w", rawURL, err)
	}
	return nil
}

// HTMLHeader 返回浏览器风格的 Accept，并按需带上 Referer
func HTMLHeader(referer string) http.Header {
	h := http.Header{}
	h.Set("Accept", htmlAccept)
	if referer != "" {
		h.Set("Referer", referer)
	}
	return h
}
