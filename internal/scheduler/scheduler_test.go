package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/NewsHub/internal/cache"
)

type recordingRefresher struct {
	mu     sync.Mutex
	calls  []string
	forced []bool
}

func (r *recordingRefresher) Get(_ context.Context, id string, force bool) (cache.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
	r.forced = append(r.forced, force)
	if id == "broken" {
		return cache.Response{}, errors.New("down")
	}
	return cache.Response{ID: id}, nil
}

func TestRunOnceForcesEverySource(t *testing.T) {
	r := &recordingRefresher{}
	s, err := New("*/30 * * * *", []string{"hackernews", "broken", "freebuf"}, r, time.Second)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	s.RunOnce()

	sort.Strings(r.calls)
	want := []string{"broken", "freebuf", "hackernews"}
	if len(r.calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), r.calls)
	}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", r.calls, want)
		}
	}
	for _, f := range r.forced {
		if !f {
			t.Fatalf("prewarm must force refresh")
		}
	}
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("not a cron", nil, &recordingRefresher{}, 0); err == nil {
		t.Fatalf("expected error for invalid cron spec")
	}
}

func TestRunOnceWithoutSources(t *testing.T) {
	r := &recordingRefresher{}
	s, err := New("@hourly", nil, r, 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	s.RunOnce()
	if len(r.calls) != 0 {
		t.Fatalf("expected no calls, got %v", r.calls)
	}
}

func TestStartStop(t *testing.T) {
	r := &recordingRefresher{}
	s, err := New("@hourly", []string{"freebuf"}, r, 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	s.StartupDelay = 0
	s.Start()

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatalf("Stop did not return")
	}
	if len(r.calls) != 0 {
		t.Fatalf("no prewarm expected before the first tick, got %v", r.calls)
	}
}
