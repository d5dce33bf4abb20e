// Package mediaproxy converts platform-internal media references into a form
// the model backend can consume.
package mediaproxy

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	// MaxFetchBytes bounds the raw payload fetched per media reference.
	MaxFetchBytes int64 = 8 * 1024 * 1024
	// MaxEmbeddedChars bounds the size of an embedded data URI. Larger
	// images are rejected rather than downscaled.
	MaxEmbeddedChars = 6_000_000

	cacheTTL     = 10 * time.Minute
	fetchTimeout = 10 * time.Second
)

// publicHosts never need conversion; their URLs are already reachable by the
// model backend.
var publicHosts = []string{
	"scontent.cdninstagram.com",
	"cdninstagram.com",
	"fbcdn.net",
	"i.imgur.com",
}

var attachmentIDPattern = regexp.MustCompile(`^\d{8,}$`)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// AttachmentResolver resolves an opaque attachment identifier to a concrete
// media URL. Implemented by the Graph API client.
type AttachmentResolver interface {
	ResolveAttachment(ctx context.Context, attachmentID string) (string, error)
}

// Proxy makes media references consumable by the model backend. All methods
// fail closed: an inaccessible reference yields an empty result, never an
// error to the caller.
type Proxy struct {
	httpClient *http.Client
	resolver   AttachmentResolver
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
	now   func() time.Time
}

// NewProxy creates a media proxy. resolver may be nil when no page credential
// is configured; opaque attachment IDs then resolve to nothing.
func NewProxy(log *slog.Logger, resolver AttachmentResolver) *Proxy {
	if log == nil {
		log = slog.Default()
	}
	return &Proxy{
		httpClient: &http.Client{Timeout: fetchTimeout},
		resolver:   resolver,
		logger:     log.With(slog.String("service", "media_proxy")),
		cache:      make(map[string]cacheEntry),
		now:        time.Now,
	}
}

// Resolve returns a model-consumable URL for the given media reference, or
// "" when the reference cannot be made accessible.
func (p *Proxy) Resolve(ctx context.Context, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	// Already self-contained or publicly reachable.
	if strings.HasPrefix(ref, "data:image/") {
		return ref
	}
	if isPublicURL(ref) {
		return ref
	}

	key := CacheKey(ref)
	if cached, ok := p.cacheGet(key); ok {
		return cached
	}

	mediaURL := ref
	if attachmentIDPattern.MatchString(ref) {
		if p.resolver == nil {
			return ""
		}
		resolved, err := p.resolver.ResolveAttachment(ctx, ref)
		if err != nil || resolved == "" {
			p.logger.Debug("attachment resolution failed",
				slog.String("attachment_id", ref), slog.Any("error", err))
			return ""
		}
		mediaURL = resolved
		if isPublicURL(mediaURL) {
			p.cachePut(key, mediaURL)
			return mediaURL
		}
	}

	embedded := p.embed(ctx, mediaURL)
	if embedded == "" {
		return ""
	}
	p.cachePut(key, embedded)
	return embedded
}

// embed fetches the media bytes and returns a size-capped data URI.
func (p *Proxy) embed(ctx context.Context, mediaURL string) string {
	if _, err := url.ParseRequestURI(mediaURL); err != nil {
		return ""
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return ""
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("media fetch failed",
			slog.String("url", mediaURL), slog.Any("error", err))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		p.logger.Debug("media has non-image content type",
			slog.String("url", mediaURL), slog.String("content_type", contentType))
		return ""
	}

	limited := &io.LimitedReader{R: resp.Body, N: MaxFetchBytes + 1}
	data, err := io.ReadAll(limited)
	if err != nil || int64(len(data)) > MaxFetchBytes || len(data) == 0 {
		return ""
	}

	mime := SniffImageMime(data)
	encoded := base64.StdEncoding.EncodeToString(data)
	uri := "data:" + mime + ";base64," + encoded
	if len(uri) > MaxEmbeddedChars {
		p.logger.Debug("embedded media exceeds size limit",
			slog.String("url", mediaURL), slog.Int("chars", len(uri)))
		return ""
	}
	return uri
}

// SniffImageMime detects the concrete image format from magic bytes.
// Unknown image payloads default to JPEG.
func SniffImageMime(data []byte) string {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case len(data) >= 6 && (bytes.Equal(data[:6], []byte("GIF87a")) || bytes.Equal(data[:6], []byte("GIF89a"))):
		return "image/gif"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// CacheKey hashes a media reference for cache lookups and dedup tracking.
func CacheKey(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:])
}

func isPublicURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Host)
	for _, allowed := range publicHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func (p *Proxy) cacheGet(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.cache[key]
	if !ok {
		return "", false
	}
	if p.now().After(entry.expiresAt) {
		delete(p.cache, key)
		return "", false
	}
	return entry.value, true
}

func (p *Proxy) cachePut(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[key] = cacheEntry{value: value, expiresAt: p.now().Add(cacheTTL)}
}

// Sweep drops expired cache entries. Run periodically; lookups also prune
// lazily so sweeping is purely housekeeping.
func (p *Proxy) Sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for key, entry := range p.cache {
		if now.After(entry.expiresAt) {
			delete(p.cache, key)
		}
	}
}

// CacheLen reports the current cache size.
func (p *Proxy) CacheLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}
