// Package prowlarr implements the IndexerClient contract against a Prowlarr
// aggregator, speaking the Torznab search protocol its upstream indexers all
// expose.
package prowlarr

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ucero0/acquisitiond/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	apiKeyHeader   = "X-Api-Key"

	movieCategory = "2000"
	showCategory  = "5000"
)

// Config holds Prowlarr connection settings.
type Config struct {
	URL           string
	APIKey        string
	Timeout       time.Duration
	SkipSSLVerify bool
}

// Client searches Prowlarr's aggregated Torznab endpoint and queues releases
// for grab through it.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("prowlarr: URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("prowlarr: API key is required")
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	transport := &http.Transport{}
	if cfg.SkipSSLVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		logger:     logger.With().Str("component", "prowlarr-client").Logger(),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrTransport, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, domain.ErrAuthRejected
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrTransport, resp.StatusCode, string(body))
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, result interface{}) error {
	resp, err := c.do(ctx, method, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: decode json: %v", domain.ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) doXML(ctx context.Context, method, path string, result interface{}) error {
	resp, err := c.do(ctx, method, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := xml.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: decode xml: %v", domain.ErrMalformedResponse, err)
	}
	return nil
}

// TestConnection verifies connectivity by hitting the system status endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	var status struct {
		Version string `json:"version"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/system/status", &status); err != nil {
		return fmt.Errorf("prowlarr connection test: %w", err)
	}
	c.logger.Info().Str("version", status.Version).Msg("prowlarr connection test succeeded")
	return nil
}

// ListIndexers returns every indexer configured upstream, enabled or not.
func (c *Client) ListIndexers(ctx context.Context) ([]Indexer, error) {
	var raw []prowlarrIndexerResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/indexer", &raw); err != nil {
		return nil, fmt.Errorf("list indexers: %w", err)
	}
	indexers := make([]Indexer, 0, len(raw))
	for _, r := range raw {
		indexers = append(indexers, Indexer{ID: r.ID, Name: r.Name, Protocol: r.Protocol, Enable: r.Enable})
	}
	return indexers, nil
}

// CountEnabledIndexers reports how many configured indexers are active. The
// orchestrator does not call it; a search runs regardless of this count.
func (c *Client) CountEnabledIndexers(ctx context.Context) (int, error) {
	indexers, err := c.ListIndexers(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, idx := range indexers {
		if idx.Enable {
			count++
		}
	}
	return count, nil
}

// Search runs a Torznab search scoped by media kind and returns the raw
// indexer results, unscored and unfiltered. Movies use t=movie&cat=2000;
// shows use t=tvsearch&cat=5000.
func (c *Client) Search(ctx context.Context, query string, kind domain.Kind) ([]domain.IndexerResult, error) {
	params := url.Values{}
	params.Set("extended", "1")
	params.Set("q", query)

	switch kind {
	case domain.KindShow:
		params.Set("t", "tvsearch")
		params.Set("cat", showCategory)
	default:
		params.Set("t", "movie")
		params.Set("cat", movieCategory)
	}

	path := "/api?" + params.Encode()

	var feed TorznabFeed
	if err := c.doXML(ctx, http.MethodGet, path, &feed); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]domain.IndexerResult, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		results = append(results, domain.IndexerResult{
			ReleaseGUID: item.GUID,
			IndexerID:   int64(item.GetIntAttribute(0, "prowlarrindexerid", "indexerid")),
			IndexerName: item.GetAttribute("indexer"),
			Title:       item.Title,
			Seeders:     item.GetIntAttribute(0, "seeders", "seedCount", "seeds"),
			PublishDate: parsePubDate(item.PubDate),
		})
	}

	c.logger.Debug().Str("query", query).Str("kind", string(kind)).Int("results", len(results)).Msg("search completed")
	return results, nil
}

func parsePubDate(raw string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// Enqueue hands a chosen release to the indexer to grab (push the torrent or
// NZB into the downloader on Prowlarr's side) rather than fetching the
// payload itself.
func (c *Client) Enqueue(ctx context.Context, releaseGUID string, indexerID int64) error {
	body := map[string]interface{}{
		"guid":      releaseGUID,
		"indexerId": indexerID,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("enqueue: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/search", strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrTransport, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.ErrAuthRejected
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: enqueue status %d: %s", domain.ErrTransport, resp.StatusCode, string(respBody))
	}
	return nil
}
