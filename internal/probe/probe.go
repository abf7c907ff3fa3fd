package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/logging"
)

const (
	probeUA          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	drainLimit int64 = 64 << 10
)

// Result 是一次嵌入探测的结论，不做缓存
type Result struct {
	Blocked bool   `json:"blocked"`
	XFO     string `json:"xfo"`
	CSP     string `json:"csp"`
	Error   string `json:"error,omitempty"`
}

// Prober 通过响应头判断目标页面能否被 iframe 直接嵌入
type Prober struct {
	client *http.Client
}

func New(timeout time.Duration) *Prober {
	return NewWithClient(&http.Client{Timeout: timeout})
}

// NewWithClient 复制传入的 client 并关闭重定向跟随，3xx 响应本身即被检查
func NewWithClient(c *http.Client) *Prober {
	cc := *c
	cc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Prober{client: &cc}
}

// Probe 网络异常或非成功状态码一律按“阻止嵌入”处理
func (p *Prober) Probe(ctx context.Context, target string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return blocked(err)
	}
	req.Header.Set("Accept", "text/html,*/*")
	req.Header.Set("User-Agent", probeUA)

	resp, err := p.client.Do(req)
	if err != nil {
		logging.Debug("probe failed", "url", target, "err", err)
		return blocked(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))

	res := Classify(resp.Header.Get("X-Frame-Options"), strings.Join(resp.Header.Values("Content-Security-Policy"), "; "))
	if resp.StatusCode >= 400 {
		res.Blocked = true
		res.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return res
}

func blocked(err error) Result {
	return Result{Blocked: true, Error: err.Error()}
}

// Classify 根据 X-Frame-Options 与 CSP frame-ancestors 判断是否阻止嵌入。
// frame-ancestors 只要不是通配 * 就视为阻止，因为嵌入方的 origin 在这里不可知。
func Classify(xfo, csp string) Result {
	res := Result{XFO: xfo, CSP: csp}
	if strings.TrimSpace(xfo) != "" {
		res.Blocked = true
	}

	present, values := ParseFrameAncestors(csp)
	if present {
		hasNone, hasWildcard := false, false
		for _, v := range values {
			switch strings.ToLower(v) {
			case "'none'":
				hasNone = true
			case "*":
				hasWildcard = true
			}
		}
		if hasNone || !hasWildcard {
			res.Blocked = true
		}
	}
	return res
}

// ParseFrameAncestors 返回第一个 frame-ancestors 指令的取值列表
func ParseFrameAncestors(csp string) (bool, []string) {
	for _, directive := range strings.Split(csp, ";") {
		fields := strings.Fields(directive)
		if len(fields) == 0 {
			continue
		}
		if strings.EqualFold(fields[0], "frame-ancestors") {
			return true, fields[1:]
		}
	}
	return false, nil
}
