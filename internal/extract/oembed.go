package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/config"
)

const oembedMaxBodyBytes int64 = 1 << 20 // 1 MiB

// OEmbedClient looks up Instagram post metadata through the Graph API
// instagram_oembed endpoint, authenticating with the Meta app access token.
type OEmbedClient struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
	tokens     oauth2.TokenSource
}

// NewOEmbedClient creates the oEmbed client. The app token is minted lazily
// through the client-credentials flow and refreshed by the token source.
func NewOEmbedClient(cfg config.InstagramConfig) *OEmbedClient {
	client := &OEmbedClient{
		baseURL:    strings.TrimRight(cfg.GraphBaseURL, "/"),
		apiVersion: cfg.APIVersion,
		httpClient: &http.Client{Timeout: 8 * time.Second},
	}
	if cfg.AppID != "" && cfg.AppSecret != "" {
		creds := clientcredentials.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			TokenURL:     client.baseURL + "/oauth/access_token",
		}
		client.tokens = creds.TokenSource(context.Background())
	}
	return client
}

// Lookup fetches oEmbed metadata for an Instagram content URL.
func (c *OEmbedClient) Lookup(ctx context.Context, contentURL string) (Metadata, error) {
	if c.tokens == nil {
		return Metadata{}, fmt.Errorf("app credentials not configured")
	}
	token, err := c.tokens.Token()
	if err != nil {
		return Metadata{}, fmt.Errorf("app access token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/instagram_oembed", c.baseURL, c.apiVersion)
	params := url.Values{}
	params.Set("url", contentURL)
	params.Set("access_token", token.AccessToken)
	params.Set("omitscript", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return Metadata{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Metadata{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, oembedMaxBodyBytes))
	if err != nil {
		return Metadata{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Metadata{}, fmt.Errorf("oembed status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var raw struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Metadata{}, fmt.Errorf("decode oembed response: %w", err)
	}
	return Metadata{
		Title:        raw.Title,
		AuthorName:   raw.AuthorName,
		ThumbnailURL: raw.ThumbnailURL,
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
