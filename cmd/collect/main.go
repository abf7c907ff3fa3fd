package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/logging"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/registry"
	"github.com/spf13/cobra"
)

type result struct {
	ID    string               `json:"id"`
	Items []collector.NewsItem `json:"items"`
	Error string               `json:"error,omitempty"`
}

// 一个仅执行一次采集的命令行入口：直接调用采集器并输出 JSON，便于排查单个数据源
func main() {
	var (
		all     bool
		limit   int
		timeout time.Duration
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "collect [source id...]",
		Short: "Fetch news sources once and print the normalized items as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logging.Init(os.Stderr, level)
			cfg := config.Load()
			if timeout <= 0 {
				timeout = cfg.FetchTimeout
			}

			reg := registry.Default(registry.Options{
				Client:     collector.NewClient(timeout),
				RSSHubBase: cfg.RSSHubBase,
			})

			ids := args
			if all {
				ids = reg.IDs()
			}
			if len(ids) == 0 {
				return fmt.Errorf("no source id given, use --all to fetch every source")
			}

			p := processor.NewSimpleProcessor()
			results := make([]result, 0, len(ids))
			failed := 0
			for _, id := range ids {
				res := collect(cmd.Context(), reg, p, id, timeout, limit)
				if res.Error != "" {
					failed++
				}
				results = append(results, res)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sources failed", failed, len(ids))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "fetch every registered source")
	cmd.Flags().IntVar(&limit, "limit", 0, "max items per source (0 = no limit)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-source fetch timeout (default FETCH_TIMEOUT)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func collect(ctx context.Context, reg *registry.Registry, p *processor.SimpleProcessor, id string, timeout time.Duration, limit int) result {
	f, err := reg.Resolve(id)
	if err != nil {
		return result{ID: id, Error: err.Error()}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	items, err := f.Fetch(ctx)
	if err != nil {
		logging.Warn("fetch failed", "source", id, "err", err)
		return result{ID: id, Error: err.Error()}
	}
	items = p.Process(id, items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return result{ID: id, Items: items}
}
