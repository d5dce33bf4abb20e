package mediaproxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestResolvePassthrough(t *testing.T) {
	t.Parallel()

	p := NewProxy(nil, nil)
	ctx := context.Background()

	dataURI := "data:image/png;base64,aGk="
	if got := p.Resolve(ctx, dataURI); got != dataURI {
		t.Fatalf("data uri rewritten: %q", got)
	}

	public := "https://scontent.cdninstagram.com/v/t51/img.jpg"
	if got := p.Resolve(ctx, public); got != public {
		t.Fatalf("public url rewritten: %q", got)
	}

	if got := p.Resolve(ctx, ""); got != "" {
		t.Fatalf("empty ref resolved to %q", got)
	}
}

func TestResolveEmbedsPrivateURL(t *testing.T) {
	t.Parallel()

	png := append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	t.Cleanup(srv.Close)

	p := NewProxy(nil, nil)
	got := p.Resolve(context.Background(), srv.URL+"/img.png")
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Fatalf("got %q", got)
	}
	if p.CacheLen() != 1 {
		t.Fatalf("cache len = %d", p.CacheLen())
	}

	// Second resolve hits the cache, not the server.
	srv.Close()
	again := p.Resolve(context.Background(), srv.URL+"/img.png")
	if again != got {
		t.Fatal("cache miss on repeat resolve")
	}
}

func TestResolveRejectsNonImage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	t.Cleanup(srv.Close)

	p := NewProxy(nil, nil)
	if got := p.Resolve(context.Background(), srv.URL+"/page"); got != "" {
		t.Fatalf("non-image embedded: %q", got)
	}
}

type stubResolver struct {
	url string
	err error
}

func (s stubResolver) ResolveAttachment(context.Context, string) (string, error) {
	return s.url, s.err
}

func TestResolveAttachmentID(t *testing.T) {
	t.Parallel()

	p := NewProxy(nil, stubResolver{url: "https://scontent.cdninstagram.com/v/img.jpg"})
	got := p.Resolve(context.Background(), "123456789012345")
	if got != "https://scontent.cdninstagram.com/v/img.jpg" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveAttachmentIDFailsClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := NewProxy(nil, nil).Resolve(ctx, "123456789012345"); got != "" {
		t.Fatalf("no resolver but got %q", got)
	}
	p := NewProxy(nil, stubResolver{err: errors.New("expired token")})
	if got := p.Resolve(ctx, "123456789012345"); got != "" {
		t.Fatalf("failed resolution but got %q", got)
	}
}

func TestSniffImageMime(t *testing.T) {
	t.Parallel()

	cases := []struct {
		data []byte
		want string
	}{
		{data: []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0}, want: "image/png"},
		{data: []byte("GIF89a...."), want: "image/gif"},
		{data: []byte("RIFF0000WEBPVP8 "), want: "image/webp"},
		{data: []byte{0xFF, 0xD8, 0xFF, 0xE0}, want: "image/jpeg"},
		{data: []byte{0x00}, want: "image/jpeg"},
	}
	for _, tc := range cases {
		if got := SniffImageMime(tc.data); got != tc.want {
			t.Fatalf("SniffImageMime(%v) = %q, want %q", tc.data[:4], got, tc.want)
		}
	}
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	p := NewProxy(nil, nil)
	current := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return current }

	p.cachePut("k", "v")
	if _, ok := p.cacheGet("k"); !ok {
		t.Fatal("fresh entry missing")
	}

	current = current.Add(cacheTTL + time.Second)
	if _, ok := p.cacheGet("k"); ok {
		t.Fatal("expired entry served")
	}

	p.cachePut("a", "1")
	p.cachePut("b", "2")
	current = current.Add(cacheTTL + time.Second)
	p.Sweep()
	if p.CacheLen() != 0 {
		t.Fatalf("sweep left %d entries", p.CacheLen())
	}
}

func TestCacheKeyStable(t *testing.T) {
	t.Parallel()

	if CacheKey("ref") != CacheKey("ref") {
		t.Fatal("cache key not deterministic")
	}
	if CacheKey("a") == CacheKey("b") {
		t.Fatal("distinct refs collide")
	}
	if len(CacheKey("x")) != 64 {
		t.Fatalf("key length = %d", len(CacheKey("x")))
	}
}
