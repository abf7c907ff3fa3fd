package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/registry"
)

// fakeFetcher 记录调用次数，可按需阻塞或返回错误
type fakeFetcher struct {
	calls   int32
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	items []collector.NewsItem
	err   error
	panic bool
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(ctx context.Context) ([]collector.NewsItem, error) {
	if atomic.AddInt32(&f.calls, 1) == 1 && f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panic {
		panic("boom")
	}
	return f.items, f.err
}

func (f *fakeFetcher) set(items []collector.NewsItem, err error) {
	f.mu.Lock()
	f.items, f.err = items, err
	f.mu.Unlock()
}

func newTestCache(f collector.Fetcher, opts Options) *Cache {
	r := registry.New()
	r.Register("src", f)
	return New(r, opts)
}

func sampleItems() []collector.NewsItem {
	return []collector.NewsItem{
		{ID: "1", Title: "one", URL: "https://example.com/1"},
		{ID: "2", Title: "two", URL: "https://example.com/2"},
	}
}

func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func TestGetCoalescesConcurrentMisses(t *testing.T) {
	f := &fakeFetcher{items: sampleItems(), started: make(chan struct{}), release: make(chan struct{})}
	c := newTestCache(f, Options{})

	const n = 20
	var (
		ready sync.WaitGroup
		done  sync.WaitGroup
		resps = make([]Response, n)
		errs  = make([]error, n)
	)
	ready.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			ready.Done()
			resps[i], errs[i] = c.Get(context.Background(), "src", false)
		}(i)
	}

	ready.Wait()
	<-f.started
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	done.Wait()

	if got := atomic.LoadInt32(&f.calls); got != 1 {
		t.Fatalf("expected exactly 1 upstream call, got %d", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d error: %v", i, errs[i])
		}
		if resps[i].UpdatedTime != resps[0].UpdatedTime || len(resps[i].Items) != 2 {
			t.Fatalf("call %d got a different response: %+v vs %+v", i, resps[i], resps[0])
		}
	}
}

func TestGetCoalescesConcurrentFailures(t *testing.T) {
	upstream := errors.New("upstream down")
	f := &fakeFetcher{err: upstream, started: make(chan struct{}), release: make(chan struct{})}
	c := newTestCache(f, Options{})

	const n = 10
	var (
		ready sync.WaitGroup
		done  sync.WaitGroup
		errs  = make([]error, n)
	)
	ready.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			ready.Done()
			_, errs[i] = c.Get(context.Background(), "src", false)
		}(i)
	}

	ready.Wait()
	<-f.started
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	done.Wait()

	if got := atomic.LoadInt32(&f.calls); got != 1 {
		t.Fatalf("expected exactly 1 upstream call, got %d", got)
	}
	for i, err := range errs {
		var fe *FetchError
		if !errors.As(err, &fe) || !errors.Is(err, upstream) {
			t.Fatalf("call %d: expected FetchError wrapping upstream, got %v", i, err)
		}
		if err != errs[0] {
			t.Fatalf("call %d: waiters should share the same error", i)
		}
	}
	if _, ok := c.Peek("src"); ok {
		t.Fatalf("failed fetch must not create an entry")
	}
}

func TestGetReturnsCachedRegardlessOfAge(t *testing.T) {
	f := &fakeFetcher{items: sampleItems()}
	c := newTestCache(f, Options{Now: stepClock(time.Unix(1700000000, 0))})

	first, err := c.Get(context.Background(), "src", false)
	if err != nil {
		t.Fatalf("first Get error: %v", err)
	}
	if first.Status != StatusSuccess || first.ID != "src" {
		t.Fatalf("unexpected first response: %+v", first)
	}

	second, err := c.Get(context.Background(), "src", false)
	if err != nil {
		t.Fatalf("second Get error: %v", err)
	}
	if second.Status != StatusCache || second.UpdatedTime != first.UpdatedTime {
		t.Fatalf("expected cached response, got %+v", second)
	}
	if got := atomic.LoadInt32(&f.calls); got != 1 {
		t.Fatalf("cached get should not call upstream, calls=%d", got)
	}

	forced, err := c.Get(context.Background(), "src", true)
	if err != nil {
		t.Fatalf("forced Get error: %v", err)
	}
	if forced.UpdatedTime <= first.UpdatedTime {
		t.Fatalf("forced refresh should bump updatedTime: %d <= %d", forced.UpdatedTime, first.UpdatedTime)
	}
	if got := atomic.LoadInt32(&f.calls); got != 2 {
		t.Fatalf("forced get should call upstream, calls=%d", got)
	}
}

func TestFailedForcedRefreshKeepsStaleEntry(t *testing.T) {
	f := &fakeFetcher{items: sampleItems()}
	c := newTestCache(f, Options{})

	good, err := c.Get(context.Background(), "src", false)
	if err != nil {
		t.Fatalf("initial Get error: %v", err)
	}

	f.set(nil, errors.New("boom"))
	if _, err := c.Get(context.Background(), "src", true); err == nil {
		t.Fatalf("forced refresh should surface the failure")
	}

	after, err := c.Get(context.Background(), "src", false)
	if err != nil {
		t.Fatalf("Get after failure error: %v", err)
	}
	if after.UpdatedTime != good.UpdatedTime || len(after.Items) != len(good.Items) {
		t.Fatalf("stale entry changed: %+v vs %+v", after, good)
	}
	for i := range good.Items {
		if after.Items[i].ID != good.Items[i].ID {
			t.Fatalf("stale items changed at %d", i)
		}
	}
}

func TestGetUnknownSource(t *testing.T) {
	c := newTestCache(&fakeFetcher{}, Options{})
	_, err := c.Get(context.Background(), "missing", false)
	if !errors.Is(err, registry.ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		t.Fatalf("unknown source must not be a FetchError")
	}
}

func TestGetNormalizesItems(t *testing.T) {
	f := &fakeFetcher{items: []collector.NewsItem{
		{ID: "1", Title: "one", URL: "https://example.com/1"},
		{ID: "1", Title: "dup", URL: "https://example.com/1b"},
		{ID: "2", Title: " ", URL: "https://example.com/2"},
	}}
	c := newTestCache(f, Options{})

	resp, err := c.Get(context.Background(), "src", false)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Title != "one" {
		t.Fatalf("items not normalized: %+v", resp.Items)
	}
}

func TestGetRecoversAdapterPanic(t *testing.T) {
	c := newTestCache(&fakeFetcher{panic: true}, Options{})
	_, err := c.Get(context.Background(), "src", false)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError from panicking adapter, got %v", err)
	}
}

func TestCallerCancelDoesNotAbortSharedFetch(t *testing.T) {
	f := &fakeFetcher{items: sampleItems(), started: make(chan struct{}), release: make(chan struct{})}
	c := newTestCache(f, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "src", false)
		errCh <- err
	}()

	<-f.started
	cancel()
	err := <-errCh
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}

	close(f.release)
	resp, err := c.Get(context.Background(), "src", false)
	if err != nil {
		t.Fatalf("Get after cancel error: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("shared fetch should still populate the cache: %+v", resp)
	}
	if got := atomic.LoadInt32(&f.calls); got != 1 {
		t.Fatalf("expected 1 upstream call, got %d", got)
	}
}

type fakeMirror struct {
	mu     sync.Mutex
	data   map[string]Response
	stores int
}

func (m *fakeMirror) Load(_ context.Context, id string) (Response, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[id]
	return r, ok, nil
}

func (m *fakeMirror) Store(_ context.Context, id string, resp Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]Response{}
	}
	m.data[id] = resp
	m.stores++
	return nil
}

func TestMirrorSeedsColdCacheAndReceivesWrites(t *testing.T) {
	mirror := &fakeMirror{data: map[string]Response{
		"src": {ID: "src", Items: sampleItems()[:1], UpdatedTime: 42},
	}}
	f := &fakeFetcher{items: sampleItems()}
	c := newTestCache(f, Options{Mirror: mirror})

	resp, err := c.Get(context.Background(), "src", false)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if resp.UpdatedTime != 42 || resp.Status != StatusCache {
		t.Fatalf("expected mirrored response, got %+v", resp)
	}
	if got := atomic.LoadInt32(&f.calls); got != 0 {
		t.Fatalf("mirror hit should skip upstream, calls=%d", got)
	}

	forced, err := c.Get(context.Background(), "src", true)
	if err != nil {
		t.Fatalf("forced Get error: %v", err)
	}
	if len(forced.Items) != 2 || atomic.LoadInt32(&f.calls) != 1 {
		t.Fatalf("forced refresh should bypass mirror: %+v", forced)
	}
	if mirror.stores != 1 || len(mirror.data["src"].Items) != 2 {
		t.Fatalf("successful refresh should be written to mirror: %+v", mirror.data)
	}
}
