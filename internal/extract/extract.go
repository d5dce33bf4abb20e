// Package extract resolves URLs in message text into structured content.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// ContentType classifies an extracted link.
type ContentType string

const (
	TypePost  ContentType = "post"
	TypeReel  ContentType = "reel"
	TypeStory ContentType = "story"
	TypeLink  ContentType = "link"
)

// Content is the derived description of one URL found in a message. It lives
// for a single pipeline invocation and is never persisted.
type Content struct {
	Type        ContentType `json:"type"`
	URL         string      `json:"url"`
	PostID      string      `json:"post_id,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	MediaURLs   []string    `json:"media_urls,omitempty"`
	IsVideo     bool        `json:"is_video"`
	// Err carries the lookup failure for diagnostics only; the content is
	// still usable and the error is never surfaced to the user.
	Err string `json:"error,omitempty"`
}

var (
	urlPattern       = regexp.MustCompile(`https?://[^\s<>"']+`)
	instagramHosts   = map[string]bool{"instagram.com": true, "www.instagram.com": true, "instagr.am": true}
	shortcodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// IsInstagramURL reports whether the URL points at an Instagram resource.
func IsInstagramURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return instagramHosts[strings.ToLower(u.Host)]
}

// Classify determines the content type and shortcode of an Instagram URL.
// Generic links return TypeLink with an empty shortcode.
func Classify(raw string) (ContentType, string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !instagramHosts[strings.ToLower(u.Host)] {
		return TypeLink, ""
	}
	segments := splitPath(u.Path)
	if len(segments) < 2 {
		return TypeLink, ""
	}
	switch segments[0] {
	case "p":
		return TypePost, shortcode(segments[1])
	case "reel", "reels":
		return TypeReel, shortcode(segments[1])
	case "stories":
		// /stories/{username}/{story_id}
		if len(segments) >= 3 {
			return TypeStory, shortcode(segments[2])
		}
		return TypeStory, ""
	default:
		return TypeLink, ""
	}
}

// PostURL reconstructs the canonical post URL for a shortcode. Inverse of
// Classify for post links.
func PostURL(code string) string {
	return "https://www.instagram.com/p/" + code + "/"
}

func splitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func shortcode(segment string) string {
	if shortcodePattern.MatchString(segment) {
		return segment
	}
	return ""
}

// MetadataLookup resolves oEmbed-style metadata for an Instagram link.
// Implemented by the Graph API client; fakes substitute in tests.
type MetadataLookup interface {
	Lookup(ctx context.Context, contentURL string) (Metadata, error)
}

// Metadata is the subset of oEmbed fields the extractor consumes.
type Metadata struct {
	Title        string
	AuthorName   string
	ThumbnailURL string
}

// Extractor derives structured content from message text. It performs one
// read-only network call per URL, sequentially, to preserve order.
type Extractor struct {
	lookup             MetadataLookup
	logger             *slog.Logger
	readabilityTimeout time.Duration
	fetchPage          func(pageURL string, timeout time.Duration) (readability.Article, error)
}

// NewExtractor creates a content extractor. lookup may be nil, in which case
// Instagram links always take the synthetic-description fallback.
func NewExtractor(log *slog.Logger, lookup MetadataLookup) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		lookup:             lookup,
		logger:             log.With(slog.String("service", "extract")),
		readabilityTimeout: 6 * time.Second,
		fetchPage: func(pageURL string, timeout time.Duration) (readability.Article, error) {
			return readability.FromURL(pageURL, timeout)
		},
	}
}

// Extract finds all well-formed absolute URLs in text and resolves each into
// a Content. The result is always usable; lookup failures set Err and fall
// back to a description inferred from URL shape.
func (e *Extractor) Extract(ctx context.Context, text string) []Content {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	contents := make([]Content, 0, len(matches))
	for _, raw := range matches {
		raw = strings.TrimRight(raw, ".,;:!?)")
		if IsInstagramURL(raw) {
			contents = append(contents, e.extractInstagram(ctx, raw))
			continue
		}
		contents = append(contents, e.extractGeneric(raw))
	}
	return contents
}

func (e *Extractor) extractInstagram(ctx context.Context, raw string) Content {
	contentType, postID := Classify(raw)
	content := Content{
		Type:    contentType,
		URL:     raw,
		PostID:  postID,
		IsVideo: contentType == TypeReel,
	}
	if e.lookup == nil {
		e.synthesize(&content)
		content.Err = "metadata lookup not configured"
		return content
	}
	meta, err := e.lookup.Lookup(ctx, raw)
	if err != nil {
		e.logger.Debug("oembed lookup failed",
			slog.String("url", raw), slog.Any("error", err))
		e.synthesize(&content)
		content.Err = err.Error()
		return content
	}
	content.Title = meta.Title
	if meta.AuthorName != "" {
		content.Description = fmt.Sprintf("Instagram %s by @%s", contentType, meta.AuthorName)
	}
	if meta.ThumbnailURL != "" {
		content.MediaURLs = []string{meta.ThumbnailURL}
	}
	if content.Description == "" {
		e.synthesize(&content)
	}
	return content
}

// synthesize fills a usable description purely from URL shape.
func (e *Extractor) synthesize(content *Content) {
	switch content.Type {
	case TypePost:
		content.Description = "An Instagram post shared by the user"
	case TypeReel:
		content.Description = "An Instagram reel (short video) shared by the user"
	case TypeStory:
		content.Description = "An Instagram story shared by the user"
	default:
		content.Description = "A link shared by the user"
	}
	if content.PostID != "" {
		content.Description += " (id " + content.PostID + ")"
	}
}

func (e *Extractor) extractGeneric(raw string) Content {
	content := Content{Type: TypeLink, URL: raw}
	if e.fetchPage == nil {
		e.synthesize(&content)
		return content
	}
	article, err := e.fetchPage(raw, e.readabilityTimeout)
	if err != nil {
		e.logger.Debug("readability fetch failed",
			slog.String("url", raw), slog.Any("error", err))
		e.synthesize(&content)
		content.Err = err.Error()
		return content
	}
	content.Title = article.Title
	content.Description = strings.TrimSpace(article.Excerpt)
	if content.Description == "" {
		e.synthesize(&content)
	}
	return content
}
