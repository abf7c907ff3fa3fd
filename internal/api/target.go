package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	encodingURI    = "encodeURIComponent"
	encodingBase64 = "base64url"
)

var errMissingURL = errors.New("missing url")

// decodeTarget 还原前端传来的目标地址。gin 已经做过一次查询参数解码，
// encodeURIComponent 模式下这里再解一次，与前端的双重编码对应。
func decodeTarget(raw, encoding string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errMissingURL
	}

	var target string
	switch encoding {
	case "", encodingURI:
		s, err := url.PathUnescape(raw)
		if err != nil {
			return "", fmt.Errorf("decode url: %w", err)
		}
		target = s
	case encodingBase64:
		s := strings.TrimRight(strings.TrimSpace(raw), "=")
		s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
		bs, err := base64.RawURLEncoding.DecodeString(s)
		if err != nil {
			return "", fmt.Errorf("decode base64url: %w", err)
		}
		target = string(bs)
	default:
		return "", fmt.Errorf("unsupported type %q", encoding)
	}

	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("url must be absolute http(s): %q", target)
	}
	return u.String(), nil
}
