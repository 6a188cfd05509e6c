package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/text/language"

	"vistream/models"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

type tmdbClient struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client

	// Rate limiting
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newTMDBClient(apiKey, defaultLanguage string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &tmdbClient{
		apiKey:      strings.TrimSpace(apiKey),
		language:    defaultLanguage,
		baseURL:     tmdbBaseURL,
		httpc:       httpc,
		minInterval: 20 * time.Millisecond, // TMDB has generous rate limits
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// doGET performs an HTTP GET with rate limiting; 429s and server errors are
// retried with exponential backoff, client errors are not.
func (c *tmdbClient) doGET(ctx context.Context, endpoint string, v any) error {
	return retry.Do(
		func() error {
			c.throttleMu.Lock()
			since := time.Since(c.lastRequest)
			if since < c.minInterval {
				time.Sleep(c.minInterval - since)
			}
			c.lastRequest = time.Now()
			c.throttleMu.Unlock()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("tmdb request failed: %s", resp.Status)
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(fmt.Errorf("tmdb request failed: %s", resp.Status))
			}

			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return retry.Unrecoverable(err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

type tmdbSeriesDetailsResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Seasons []struct {
		SeasonNumber int `json:"season_number"`
		EpisodeCount int `json:"episode_count"`
	} `json:"seasons"`
}

// seriesSeasons fetches the season layout of a series. The full season list,
// including season 0 specials, is returned; callers decide what to filter.
func (c *tmdbClient) seriesSeasons(ctx context.Context, tmdbID int64, lang string) ([]models.SeasonInfo, error) {
	if !c.isConfigured() {
		return nil, errors.New("tmdb api key not configured")
	}

	endpoint, err := url.JoinPath(c.baseURL, "tv", fmt.Sprintf("%d", tmdbID))
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	if strings.TrimSpace(lang) == "" {
		lang = c.language
	}
	q.Set("language", normalizeLanguage(lang))
	endpoint = endpoint + "?" + q.Encode()

	var payload tmdbSeriesDetailsResponse
	if err := c.doGET(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	seasons := make([]models.SeasonInfo, 0, len(payload.Seasons))
	for _, s := range payload.Seasons {
		seasons = append(seasons, models.SeasonInfo{
			SeasonNumber: s.SeasonNumber,
			EpisodeCount: s.EpisodeCount,
		})
	}
	return seasons, nil
}

// normalizeLanguage maps loose language inputs ("en", "pt_BR") onto the BCP 47
// tags TMDB expects.
func normalizeLanguage(lang string) string {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(lang), "_", "-"))
	if err != nil {
		return "en-US"
	}
	return tag.String()
}
