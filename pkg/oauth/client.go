package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMetadataCacheTTL is the default TTL for cached OAuth metadata.
	DefaultMetadataCacheTTL = 30 * time.Minute

	maxResponseBytes = 1 << 20
)

type metadataCacheEntry struct {
	metadata  *Metadata
	fetchedAt time.Time
}

// Client performs the stateless HTTP parts of OAuth: metadata discovery and
// userinfo lookups.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	metadataMu    sync.RWMutex
	metadataCache map[string]*metadataCacheEntry
	metadataTTL   time.Duration

	// deduplicates concurrent metadata fetches for the same issuer
	metadataGroup singleflight.Group
}

// ClientOption configures the OAuth client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetadataCacheTTL sets the metadata cache TTL.
func WithMetadataCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.metadataTTL = ttl
	}
}

// NewClient creates a new OAuth client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: DefaultHTTPTimeout},
		logger:        slog.Default(),
		metadataCache: make(map[string]*metadataCacheEntry),
		metadataTTL:   DefaultMetadataCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient returns the HTTP client used for provider requests.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// DiscoverMetadata fetches the issuer's metadata. OpenID Connect discovery
// (/.well-known/openid-configuration) is tried first, then RFC 8414
// (/.well-known/oauth-authorization-server). Results are cached per issuer.
func (c *Client) DiscoverMetadata(ctx context.Context, issuer string) (*Metadata, error) {
	issuer = strings.TrimSuffix(issuer, "/")

	if m := c.cached(issuer); m != nil {
		return m, nil
	}

	result, err, _ := c.metadataGroup.Do(issuer, func() (interface{}, error) {
		if m := c.cached(issuer); m != nil {
			return m, nil
		}
		return c.doDiscoverMetadata(ctx, issuer)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Metadata), nil
}

func (c *Client) cached(issuer string) *Metadata {
	c.metadataMu.RLock()
	defer c.metadataMu.RUnlock()
	if entry, ok := c.metadataCache[issuer]; ok && time.Since(entry.fetchedAt) < c.metadataTTL {
		return entry.metadata
	}
	return nil
}

func (c *Client) doDiscoverMetadata(ctx context.Context, issuer string) (*Metadata, error) {
	var lastErr error
	for _, path := range []string{"/.well-known/openid-configuration", "/.well-known/oauth-authorization-server"} {
		var metadata Metadata
		if err := c.getJSON(ctx, issuer+path, "", &metadata); err != nil {
			c.logger.Debug("Metadata fetch failed", "issuer", issuer, "path", path, "error", err)
			lastErr = err
			continue
		}
		if metadata.AuthorizationEndpoint == "" || metadata.TokenEndpoint == "" {
			lastErr = fmt.Errorf("metadata at %s is missing endpoints", path)
			continue
		}
		c.cacheMetadata(issuer, &metadata)
		return &metadata, nil
	}
	return nil, fmt.Errorf("failed to discover OAuth metadata for %s: %w", issuer, lastErr)
}

func (c *Client) cacheMetadata(issuer string, metadata *Metadata) {
	c.metadataMu.Lock()
	c.metadataCache[issuer] = &metadataCacheEntry{metadata: metadata, fetchedAt: time.Now()}
	c.metadataMu.Unlock()

	c.logger.Debug("Cached OAuth metadata",
		"issuer", issuer,
		"authorization_endpoint", metadata.AuthorizationEndpoint,
		"token_endpoint", metadata.TokenEndpoint)
}

// ClearMetadataCache drops all cached metadata.
func (c *Client) ClearMetadataCache() {
	c.metadataMu.Lock()
	c.metadataCache = make(map[string]*metadataCacheEntry)
	c.metadataMu.Unlock()
}

// FetchUserInfo calls a userinfo endpoint with the given bearer token and
// returns the decoded JSON object.
func (c *Client) FetchUserInfo(ctx context.Context, endpoint, accessToken string) (map[string]any, error) {
	var info map[string]any
	if err := c.getJSON(ctx, endpoint, accessToken, &info); err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	return info, nil
}

func (c *Client) getJSON(ctx context.Context, url, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s failed with status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
