// Package storage 提供聚合缓存的 Redis 二级镜像。
// 镜像只是带 TTL 的共享缓存，进程重启或多实例部署时用于减少冷启动抓取，不是持久化存储。
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/cache"
	"github.com/LJTian/NewsHub/internal/logging"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "newshub:source:"

// 镜像条目里单条标题的最大长度，防止异常上游把 Redis 塞满
const maxTitleRunes = 512

type RedisMirror struct {
	Redis *redis.Client
	TTL   time.Duration
}

var _ cache.Mirror = (*RedisMirror)(nil)

func NewRedisMirror(addr string, ttl time.Duration) *RedisMirror {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logging.Warn("redis ping failed", "addr", addr, "err", err)
	}

	return &RedisMirror{Redis: rdb, TTL: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

// Load 未命中返回 ok=false 且不报错
func (m *RedisMirror) Load(ctx context.Context, id string) (cache.Response, bool, error) {
	bs, err := m.Redis.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cache.Response{}, false, nil
	}
	if err != nil {
		return cache.Response{}, false, fmt.Errorf("redis get %s: %w", id, err)
	}
	resp, err := decode(bs)
	if err != nil {
		return cache.Response{}, false, fmt.Errorf("decode mirror %s: %w", id, err)
	}
	return resp, true, nil
}

func (m *RedisMirror) Store(ctx context.Context, id string, resp cache.Response) error {
	bs, err := encode(resp)
	if err != nil {
		return err
	}
	if err := m.Redis.Set(ctx, key(id), bs, m.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", id, err)
	}
	return nil
}

func (m *RedisMirror) Close() error {
	return m.Redis.Close()
}

func encode(resp cache.Response) ([]byte, error) {
	out := resp
	out.Status = ""
	out.Items = append(out.Items[:0:0], resp.Items...)
	for i := range out.Items {
		out.Items[i].Title = truncateRunes(toValidUTF8(out.Items[i].Title), maxTitleRunes)
	}
	return json.Marshal(out)
}

func decode(bs []byte) (cache.Response, error) {
	var resp cache.Response
	if err := json.Unmarshal(bs, &resp); err != nil {
		return cache.Response{}, err
	}
	return resp, nil
}

// toValidUTF8 百度等源偶尔混入 GBK 字节，JSON 编码前先规范成合法 UTF-8
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
