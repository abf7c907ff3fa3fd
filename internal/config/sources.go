package config

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var defaultSourcesYAML []byte

// SourceMeta 描述一个数据源的展示信息，抓取逻辑由 collector 提供
type SourceMeta struct {
	ID      string        `yaml:"id" json:"id"`
	Name    string        `yaml:"name" json:"name"`
	Title   string        `yaml:"title,omitempty" json:"title,omitempty"`
	Type    string        `yaml:"type,omitempty" json:"type,omitempty"`
	Column  string        `yaml:"column,omitempty" json:"column,omitempty"`
	Home    string        `yaml:"home" json:"home"`
	Color   string        `yaml:"color,omitempty" json:"color,omitempty"`
	Disable bool          `yaml:"disable,omitempty" json:"disable,omitempty"`
	Refresh time.Duration `yaml:"interval" json:"-"`

	// Interval 为前端使用的毫秒数
	Interval int64 `yaml:"-" json:"interval"`
}

// Family 取 id 中第一个 "-" 之前的部分，仅用于图标等展示分组
func (m SourceMeta) Family() string {
	return Family(m.ID)
}

func Family(id string) string {
	family, _, _ := strings.Cut(id, "-")
	return family
}

// DefaultSources 解析内嵌的 sources.yaml
func DefaultSources() ([]SourceMeta, error) {
	return ParseSources(defaultSourcesYAML)
}

func ParseSources(data []byte) ([]SourceMeta, error) {
	var metas []SourceMeta
	if err := yaml.Unmarshal(data, &metas); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	seen := make(map[string]struct{}, len(metas))
	for i := range metas {
		m := &metas[i]
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, fmt.Errorf("parse sources: entry %d has empty id", i)
		}
		if _, ok := seen[m.ID]; ok {
			return nil, fmt.Errorf("parse sources: duplicate id %q", m.ID)
		}
		seen[m.ID] = struct{}{}
		m.Interval = m.Refresh.Milliseconds()
	}
	return metas, nil
}
