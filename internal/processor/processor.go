package processor

import (
	"net/url"
	"strings"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/logging"
)

// SimpleProcessor 做写入缓存前的统一清洗：去空标题、校验链接、按 id 去重
type SimpleProcessor struct{}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{}
}

// Process 保证同一数据源内 id 唯一（先出现的优先），且 title 非空、url 为绝对地址
func (p *SimpleProcessor) Process(source string, items []collector.NewsItem) []collector.NewsItem {
	out := make([]collector.NewsItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	var dropped int
	for _, it := range items {
		it.Title = strings.TrimSpace(it.Title)
		it.URL = strings.TrimSpace(it.URL)
		if it.Title == "" || !isAbsoluteURL(it.URL) {
			dropped++
			continue
		}

		it.ID = strings.TrimSpace(it.ID)
		if it.ID == "" {
			it.ID = it.URL
		}
		if _, ok := seen[it.ID]; ok {
			dropped++
			continue
		}
		seen[it.ID] = struct{}{}

		if it.MobileURL != "" && !isAbsoluteURL(it.MobileURL) {
			it.MobileURL = ""
		}
		out = append(out, it)
	}

	if dropped > 0 {
		logging.Debug("processor dropped items", "source", source, "dropped", dropped, "kept", len(out))
	}
	return out
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}
