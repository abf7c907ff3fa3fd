package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		xfo     string
		csp     string
		blocked bool
	}{
		{"no headers", "", "", false},
		{"xfo deny", "DENY", "", true},
		{"xfo any value", "ALLOW-FROM https://a.com", "", true},
		{"frame-ancestors none", "", "frame-ancestors 'none'", true},
		{"frame-ancestors none upper", "", "FRAME-ANCESTORS 'NONE'", true},
		{"frame-ancestors wildcard", "", "frame-ancestors *", false},
		{"frame-ancestors specific", "", "frame-ancestors https://a.com", true},
		{"frame-ancestors self", "", "default-src 'self'; frame-ancestors 'self' https://a.com", true},
		{"wildcard with other directives", "", "default-src 'self'; frame-ancestors * ;script-src 'none'", false},
		{"wildcard but xfo", "SAMEORIGIN", "frame-ancestors *", true},
		{"csp without frame-ancestors", "", "default-src 'self'; script-src 'none'", false},
		{"none beats wildcard", "", "frame-ancestors * 'none'", true},
		{"directive prefix only", "", "frame-ancestors-x *", false},
	}
	for _, c := range cases {
		got := Classify(c.xfo, c.csp)
		if got.Blocked != c.blocked {
			t.Fatalf("%s: Classify(%q, %q).Blocked = %v, want %v", c.name, c.xfo, c.csp, got.Blocked, c.blocked)
		}
		if got.XFO != c.xfo || got.CSP != c.csp {
			t.Fatalf("%s: raw headers not returned: %+v", c.name, got)
		}
	}
}

func TestParseFrameAncestors(t *testing.T) {
	present, values := ParseFrameAncestors("default-src 'self';  frame-ancestors   https://a.com  https://b.com ")
	if !present {
		t.Fatalf("expected frame-ancestors present")
	}
	if len(values) != 2 || values[0] != "https://a.com" || values[1] != "https://b.com" {
		t.Fatalf("unexpected values: %v", values)
	}

	if present, _ := ParseFrameAncestors(""); present {
		t.Fatalf("empty csp should not contain frame-ancestors")
	}
}

func TestProbeReadsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/html,*/*" {
			w.WriteHeader(http.StatusNotAcceptable)
			return
		}
		switch r.URL.Path {
		case "/xfo":
			w.Header().Set("X-Frame-Options", "DENY")
		case "/none":
			w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		case "/star":
			w.Header().Set("Content-Security-Policy", "frame-ancestors *")
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	p := New(5 * time.Second)
	ctx := context.Background()

	if res := p.Probe(ctx, srv.URL+"/plain"); res.Blocked || res.Error != "" {
		t.Fatalf("plain page should be embeddable: %+v", res)
	}
	if res := p.Probe(ctx, srv.URL+"/xfo"); !res.Blocked || res.XFO != "DENY" {
		t.Fatalf("xfo page should be blocked: %+v", res)
	}
	if res := p.Probe(ctx, srv.URL+"/none"); !res.Blocked || res.CSP != "frame-ancestors 'none'" {
		t.Fatalf("frame-ancestors none should be blocked: %+v", res)
	}
	if res := p.Probe(ctx, srv.URL+"/star"); res.Blocked {
		t.Fatalf("frame-ancestors * should be embeddable: %+v", res)
	}
	if res := p.Probe(ctx, srv.URL+"/forbidden"); !res.Blocked || res.Error == "" {
		t.Fatalf("4xx should fail closed: %+v", res)
	}
}

func TestProbeDoesNotFollowRedirects(t *testing.T) {
	var targetHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/target" {
			atomic.AddInt32(&targetHits, 1)
			w.Header().Set("X-Frame-Options", "DENY")
			return
		}
		http.Redirect(w, r, "/target", http.StatusFound)
	}))
	defer srv.Close()

	res := New(5*time.Second).Probe(context.Background(), srv.URL+"/start")
	if res.Blocked {
		t.Fatalf("redirect response itself has no framing headers: %+v", res)
	}
	if atomic.LoadInt32(&targetHits) != 0 {
		t.Fatalf("redirect should not be followed")
	}
}

func TestProbeNetworkErrorFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := New(time.Second).Probe(context.Background(), url)
	if !res.Blocked || res.Error == "" {
		t.Fatalf("network error should be blocked with message: %+v", res)
	}
}
