// Package tmdb implements the MetadataClient contract against The Movie
// Database API: resolve (title, year, kind) to the release's original title
// and language, to improve search recall for non-English-native content.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/ucero0/acquisitiond/internal/domain"
)

// Config holds TMDB connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client resolves original titles/languages from TMDB. A missing API key is
// a soft-degrade condition, not an error: IsConfigured reports it so callers
// can skip straight to the fallback rather than attempting a doomed call.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.themoviedb.org/3"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "tmdb-client").Logger(),
	}
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

type searchResult struct {
	OriginalTitle  string `json:"original_title"`
	OriginalName   string `json:"original_name"`
	OriginalLang   string `json:"original_language"`
	ReleaseDate    string `json:"release_date"`
	FirstAirDate   string `json:"first_air_date"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// OriginalTitleAndLanguage resolves (title, year, kind) to the release's
// original title and ISO-639-1 language code. A missing API key or any
// upstream failure degrades softly to (nil, nil) — the caller falls back to
// using the display title as-is, per spec §4.7.
func (c *Client) OriginalTitleAndLanguage(ctx context.Context, title string, year int, kind domain.Kind) (*domain.OriginalTitle, error) {
	if !c.IsConfigured() {
		return nil, nil
	}

	endpoint := "/search/movie"
	yearParam := "year"
	if kind == domain.KindShow {
		endpoint = "/search/tv"
		yearParam = "first_air_date_year"
	}

	params := url.Values{}
	params.Set("api_key", c.cfg.APIKey)
	params.Set("query", title)
	params.Set("include_adult", "false")
	if year > 0 {
		params.Set(yearParam, fmt.Sprintf("%d", year))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("build tmdb request failed, degrading to original title")
		return nil, nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("tmdb request failed, degrading to original title")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("tmdb returned non-200, degrading to original title")
		return nil, nil
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Warn().Err(err).Msg("tmdb response malformed, degrading to original title")
		return nil, nil
	}

	if len(parsed.Results) == 0 {
		return nil, nil
	}

	r := parsed.Results[0]
	originalTitle := r.OriginalTitle
	if kind == domain.KindShow {
		originalTitle = r.OriginalName
	}
	if originalTitle == "" || r.OriginalLang == "" {
		return nil, nil
	}

	return &domain.OriginalTitle{Title: originalTitle, Language: r.OriginalLang}, nil
}
