package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/logging"
)

const nowcoderHotURL = "https://gw-c.nowcoder.com/api/sparta/hot-search/top-hot-pc"

const (
	nowcoderTypeDiscuss = 0
	nowcoderTypeFeed    = 74
)

// NowcoderFetcher 拉取牛客热搜 JSON 接口
type NowcoderFetcher struct {
	Client *Client
	APIURL string
	Now    func() time.Time
}

func NewNowcoder(client *Client) *NowcoderFetcher {
	return &NowcoderFetcher{Client: client, APIURL: nowcoderHotURL, Now: time.Now}
}

func (n *NowcoderFetcher) Name() string {
	return "nowcoder"
}

// looseID 兼容上游 id 既可能是数字也可能是字符串
type looseID string

func (l *looseID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*l = ""
		return nil
	}
	if uq, err := strconv.Unquote(s); err == nil {
		*l = looseID(uq)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*l = looseID(num.String())
	return nil
}

type nowcoderResp struct {
	Data struct {
		Result []struct {
			ID    looseID `json:"id"`
			Title string  `json:"title"`
			Type  int     `json:"type"`
			UUID  string  `json:"uuid"`
		} `json:"result"`
	} `json:"data"`
}

func (n *NowcoderFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	logging.Info("fetch Nowcoder hot search...")

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	apiURL := fmt.Sprintf("%s?size=20&_=%d&t=", n.APIURL, now().UnixMilli())

	var res nowcoderResp
	if err := n.Client.GetJSON(ctx, apiURL, nil, &res); err != nil {
		return nil, fmt.Errorf("nowcoder: %w", err)
	}

	items := make([]NewsItem, 0, len(res.Data.Result))
	for _, k := range res.Data.Result {
		title := strings.TrimSpace(k.Title)
		if title == "" {
			continue
		}
		switch k.Type {
		case nowcoderTypeFeed:
			if k.UUID == "" {
				continue
			}
			items = append(items, NewsItem{
				ID:    k.UUID,
				Title: title,
				URL:   "https://www.nowcoder.com/feed/main/detail/" + k.UUID,
			})
		case nowcoderTypeDiscuss:
			if k.ID == "" {
				continue
			}
			items = append(items, NewsItem{
				ID:    string(k.ID),
				Title: title,
				URL:   "https://www.nowcoder.com/discuss/" + string(k.ID),
			})
		}
	}
	return items, nil
}
