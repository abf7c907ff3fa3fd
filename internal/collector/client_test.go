package collector

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchRejectsOversizeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := maxBodyBytes
		if r.URL.Path == "/big" {
			n++
		}
		_, _ = w.Write(bytes.Repeat([]byte("a"), n))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	body, _, err := c.Fetch(context.Background(), srv.URL+"/fit", nil)
	if err != nil || len(body) != maxBodyBytes {
		t.Fatalf("body at the limit should pass: len=%d err=%v", len(body), err)
	}

	body, _, err = c.Fetch(context.Background(), srv.URL+"/big", nil)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	if body != nil {
		t.Fatalf("truncated body must not be returned")
	}
}

func TestUnlimitedClientKeepsNoHostState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	limited := NewClient(5 * time.Second)
	if _, err := limited.Get(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(limited.limiters) != 1 {
		t.Fatalf("limited client should track the host, got %d", len(limited.limiters))
	}

	unlimited := NewUnlimitedClient(5 * time.Second)
	for i := 0; i < 3; i++ {
		if _, err := unlimited.Get(context.Background(), srv.URL, nil); err != nil {
			t.Fatalf("Get error: %v", err)
		}
	}
	if len(unlimited.limiters) != 0 {
		t.Fatalf("unlimited client should not track hosts, got %d", len(unlimited.limiters))
	}
}

func TestCollyFetcherHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewFreebuf(NewClient(10 * time.Second))
	f.BaseURL = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx)
	if err == nil {
		t.Fatalf("expected error after context deadline")
	}
	if took := time.Since(start); took > 2*time.Second {
		t.Fatalf("fetch ignored context deadline, took %v", took)
	}
}
