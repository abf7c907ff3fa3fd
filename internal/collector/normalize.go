package collector

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var digitsRe = regexp.MustCompile(`\d+`)

// resolveURL 将相对链接按站点根地址补全为绝对地址，解析失败返回空串
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

// idFromURL 取 URL 最后一段路径中的数字作为 id（例如 /articles/web/460614.html -> 460614），
// 取不到时退回 URL 的 sha1，保证同一篇文章多次抓取 id 不变
func idFromURL(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		if m := digitsRe.FindString(path.Base(u.Path)); m != "" {
			return m
		}
	}
	return hashURL(raw)
}

func hashURL(raw string) string {
	h := sha1.New()
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}

// parseInt 只保留开头的数字部分，"1,234万" -> 1234
func parseInt(s string) int {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	end := 0
	for ; end < len(s); end++ {
		if s[end] < '0' || s[end] > '9' {
			break
		}
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
}

// parseDateMillis 解析常见日期格式，无时区信息的按 UTC 处理；失败返回 0
func parseDateMillis(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
