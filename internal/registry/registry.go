package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/config"
)

// ErrUnknownSource 表示请求的数据源未注册，属于调用方错误，不应重试
var ErrUnknownSource = errors.New("unknown source")

const rsshubFallbackLimit = 30

// Registry 维护 source id 到采集器的映射，启动时构建，之后只读
type Registry struct {
	fetchers map[string]collector.Fetcher
}

func New() *Registry {
	return &Registry{fetchers: map[string]collector.Fetcher{}}
}

// Register 注册一个或多个采集器，多个时按顺序作为兜底链
func (r *Registry) Register(id string, fetchers ...collector.Fetcher) {
	if len(fetchers) == 0 {
		return
	}
	r.fetchers[id] = collector.Chain(fetchers...)
}

// RegisterVariants 按子源 key 逐个注册
func (r *Registry) RegisterVariants(v collector.Variants) {
	for id, f := range v {
		r.Register(id, f)
	}
}

// Resolve 纯查表，不触发任何网络请求
func (r *Registry) Resolve(id string) (collector.Fetcher, error) {
	if f, ok := r.fetchers[id]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, id)
}

func (r *Registry) Has(id string) bool {
	_, ok := r.fetchers[id]
	return ok
}

// IDs 返回已注册的 id（排序后）
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.fetchers))
	for id := range r.fetchers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Missing 返回元信息里声明了但没有采集器的 id
func (r *Registry) Missing(metas []config.SourceMeta) []string {
	var missing []string
	for _, m := range metas {
		if !r.Has(m.ID) {
			missing = append(missing, m.ID)
		}
	}
	return missing
}

type Options struct {
	Client     *collector.Client
	RSSHubBase string
}

// Default 构建内置的全部数据源
func Default(opts Options) *Registry {
	c := opts.Client
	r := New()

	freebufNetwork := collector.NewRSSHub(c, opts.RSSHubBase, "/freebuf/articles/network", rsshubFallbackLimit)
	freebufWeb := collector.NewRSSHub(c, opts.RSSHubBase, "/freebuf/articles/web", rsshubFallbackLimit)

	// 首页直抓失败或为空时，退回 RSSHub 的多个栏目合并
	r.Register("freebuf",
		collector.NewFreebuf(c),
		collector.Merge("freebuf-rsshub", rsshubFallbackLimit, freebufNetwork, freebufWeb),
	)
	r.Register("freebuf-network", freebufNetwork)

	r.RegisterVariants(collector.NewSecWiki(c).Variants())
	r.Register("doonsec", collector.NewRSS(c, "doonsec", "https://wechat.doonsec.com/rss.xml"))
	r.Register("nowcoder", collector.NewNowcoder(c))
	r.Register("hackernews", collector.NewHackerNews(c))
	r.Register("baidu", collector.NewBaiduHot(c))
	r.Register("github", collector.NewGitHubTrending(c))

	return r
}
