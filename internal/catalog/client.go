// Package catalog implements the CatalogClient contract against a Plex-style
// watchlist and library API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/ucero0/acquisitiond/internal/domain"
)

const (
	userAgent = "acquisitiond"
	product   = "acquisitiond"
)

// Config holds the two base URLs the client talks to: the hosted discover API
// (watchlist add/remove/fetch) and the local Plex Media Server (library
// presence checks). Account info is read from the fixed plex.tv user
// endpoint, not from either base URL.
type Config struct {
	DiscoverBaseURL string
	ServerBaseURL   string
	ClientID        string
}

// Client never caches a token: every operation takes the caller's token as an
// explicit argument.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.DiscoverBaseURL == "" {
		cfg.DiscoverBaseURL = "https://discover.provider.plex.tv"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "acquisitiond"
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "catalog-client").Logger(),
	}
}

func (c *Client) headers(token string) map[string]string {
	h := map[string]string{
		"Accept":                   "application/json",
		"X-Plex-Client-Identifier": c.cfg.ClientID,
		"X-Plex-Product":           product,
		"X-Plex-Version":           "1.0.0",
	}
	if token != "" {
		h["X-Plex-Token"] = token
	}
	return h
}

func (c *Client) do(ctx context.Context, method, rawURL string, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrTransport, err)
	}
	for k, v := range c.headers(token) {
		req.Header.Set(k, v)
	}
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
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", domain.ErrTransport, resp.StatusCode)
	}
	return resp, nil
}

type watchlistMetadata struct {
	RatingKey    string `json:"ratingKey"`
	Guid         string `json:"guid"`
	Title        string `json:"title"`
	Year         int    `json:"year"`
	Type         string `json:"type"`
}

type watchlistResponse struct {
	MediaContainer struct {
		Metadata []watchlistMetadata `json:"Metadata"`
	} `json:"MediaContainer"`
}

// FetchWatchlist returns the user's current watchlist.
func (c *Client) FetchWatchlist(ctx context.Context, token string) ([]domain.WatchlistEntry, error) {
	rawURL := c.cfg.DiscoverBaseURL + "/library/sections/watchlist/all"
	resp, err := c.do(ctx, http.MethodGet, rawURL, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed watchlistResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode watchlist: %v", domain.ErrMalformedResponse, err)
	}

	entries := make([]domain.WatchlistEntry, 0, len(parsed.MediaContainer.Metadata))
	for _, m := range parsed.MediaContainer.Metadata {
		kind := domain.KindMovie
		if m.Type == "show" {
			kind = domain.KindShow
		}
		entries = append(entries, domain.WatchlistEntry{
			GUID:      m.Guid,
			RatingKey: m.RatingKey,
			Title:     m.Title,
			Year:      m.Year,
			Kind:      kind,
		})
	}
	return entries, nil
}

type librarySearchResponse struct {
	MediaContainer struct {
		Size int `json:"size"`
	} `json:"MediaContainer"`
}

// ExistsInLibrary queries the local library and returns true iff exactly one
// entry shares the same GUID.
func (c *Client) ExistsInLibrary(ctx context.Context, token string, entry domain.WatchlistEntry) (bool, error) {
	if c.cfg.ServerBaseURL == "" {
		return false, nil
	}
	u, _ := url.Parse(c.cfg.ServerBaseURL + "/library/all")
	q := u.Query()
	q.Set("guid", entry.GUID)
	u.RawQuery = q.Encode()

	resp, err := c.do(ctx, http.MethodGet, u.String(), token)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var parsed librarySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("%w: decode library search: %v", domain.ErrMalformedResponse, err)
	}
	return parsed.MediaContainer.Size == 1, nil
}

// RemoveFromWatchlist removes an entry by its catalog-local rating key.
func (c *Client) RemoveFromWatchlist(ctx context.Context, token, ratingKey string) error {
	rawURL := c.cfg.DiscoverBaseURL + "/actions/removeFromWatchlist?ratingKey=" + url.QueryEscape(ratingKey)
	resp, err := c.do(ctx, http.MethodPut, rawURL, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// AddToWatchlist re-adds an entry by its catalog-local rating key.
func (c *Client) AddToWatchlist(ctx context.Context, token, ratingKey string) error {
	rawURL := c.cfg.DiscoverBaseURL + "/actions/addToWatchlist?ratingKey=" + url.QueryEscape(ratingKey)
	resp, err := c.do(ctx, http.MethodPut, rawURL, token)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// AccountInfo is used only for health checks.
type AccountInfo struct {
	Username string
	UUID     string
}

type accountResponse struct {
	Username string `json:"username"`
	UUID     string `json:"uuid"`
}

func (c *Client) AccountInfo(ctx context.Context, token string) (*AccountInfo, error) {
	rawURL := "https://plex.tv/api/v2/user"
	resp, err := c.do(ctx, http.MethodGet, rawURL, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode account info: %v", domain.ErrMalformedResponse, err)
	}
	return &AccountInfo{Username: parsed.Username, UUID: parsed.UUID}, nil
}

