package metadata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"vistream/models"
)

// ErrUnsupportedTitleID is returned for title IDs the service cannot map to a
// TMDB series.
var ErrUnsupportedTitleID = errors.New("unsupported title id")

// cachedSeasons holds a fetched season list with expiration.
type cachedSeasons struct {
	seasons   []models.SeasonInfo
	cachedAt  time.Time
	expiresAt time.Time
}

// Service provides series season metadata with an in-memory TTL cache. Season
// lists change at most daily, so cached entries keep the watch page fast and
// shield TMDB from per-request traffic.
type Service struct {
	mu     sync.RWMutex
	client *tmdbClient
	cache  map[string]*cachedSeasons
	ttl    time.Duration
}

// NewService constructs a metadata service using the given TMDB credentials.
// ttlHours <= 0 defaults to 24 hours.
func NewService(tmdbAPIKey, defaultLanguage string, ttlHours int) *Service {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &Service{
		client: newTMDBClient(tmdbAPIKey, defaultLanguage, nil),
		cache:  make(map[string]*cachedSeasons),
		ttl:    time.Duration(ttlHours) * time.Hour,
	}
}

// Seasons returns the season list for a series at the given content language.
// Results include season 0 (specials); callers filter as needed.
func (s *Service) Seasons(ctx context.Context, titleID, lang string) ([]models.SeasonInfo, error) {
	tmdbID, err := parseSeriesID(titleID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%d|%s", tmdbID, normalizeLanguage(lang))

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.seasons, nil
	}

	seasons, err := s.client.seriesSeasons(ctx, tmdbID, lang)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = &cachedSeasons{
		seasons:   seasons,
		cachedAt:  time.Now(),
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()

	return seasons, nil
}

// ClearCache drops all cached season lists.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedSeasons)
}

// parseSeriesID extracts a TMDB series ID from title IDs of the form
// "tmdb:series:1399", "tmdb:1399", or a bare numeric string.
func parseSeriesID(titleID string) (int64, error) {
	trimmed := strings.TrimSpace(titleID)
	if trimmed == "" {
		return 0, ErrUnsupportedTitleID
	}

	parts := strings.Split(trimmed, ":")
	candidate := parts[len(parts)-1]
	if len(parts) > 1 && parts[0] != "tmdb" {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedTitleID, titleID)
	}

	id, err := strconv.ParseInt(candidate, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedTitleID, titleID)
	}
	return id, nil
}
