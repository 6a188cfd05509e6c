package resume

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"vistream/models"
)

// maxConcurrentResolves caps parallel season-metadata lookups when building
// the continue watching shelf.
const maxConcurrentResolves = 5

// WatchStore provides access to a user's persisted watch records.
type WatchStore interface {
	ListForTitle(ctx context.Context, userID, titleID, mediaKind string) ([]models.WatchRecord, error)
	ListForUser(ctx context.Context, userID string) ([]models.WatchRecord, error)
}

// SeasonSource returns the season layout of a series at a content language.
type SeasonSource interface {
	Seasons(ctx context.Context, titleID, language string) ([]models.SeasonInfo, error)
}

// Service orchestrates resume resolution: it fetches watch records and,
// only when the outcome depends on season boundaries, the series' season
// metadata.
type Service struct {
	store   WatchStore
	seasons SeasonSource
}

// NewService constructs a resume service over the given stores.
func NewService(store WatchStore, seasons SeasonSource) *Service {
	return &Service{store: store, seasons: seasons}
}

// ComputeResumeEpisode resolves where the user should continue the given
// series. A metadata failure degrades to boundary-less resolution instead of
// failing: the watch page must stay available when the metadata source is
// down.
func (s *Service) ComputeResumeEpisode(ctx context.Context, userID, titleID, language string) (models.ResumePoint, error) {
	records, err := s.store.ListForTitle(ctx, userID, titleID, models.MediaKindSeries)
	if err != nil {
		return models.ResumePoint{}, fmt.Errorf("list watch records: %w", err)
	}
	return s.resolveRecords(ctx, titleID, language, records), nil
}

// resolveRecords runs the pure resolver, fetching season metadata only when
// step 1/2 of the resolution cannot decide without it.
func (s *Service) resolveRecords(ctx context.Context, titleID, language string, records []models.WatchRecord) models.ResumePoint {
	if !needsSeasons(records) {
		return Resolve(records, nil)
	}

	seasons, err := s.seasons.Seasons(ctx, titleID, language)
	if err != nil {
		log.Printf("[resume] season metadata unavailable for %s, resolving without boundaries: %v", titleID, err)
		return Resolve(records, nil)
	}

	// Season 0 holds specials and never participates in resume resolution.
	filtered := make([]models.SeasonInfo, 0, len(seasons))
	for _, season := range seasons {
		if season.SeasonNumber > 0 {
			filtered = append(filtered, season)
		}
	}
	return Resolve(records, filtered)
}

// hasMeaningfulProgress reports whether any record clears the minimum
// threshold.
func hasMeaningfulProgress(records []models.WatchRecord) bool {
	for _, r := range records {
		if r.Progress >= MinimumProgressThreshold {
			return true
		}
	}
	return false
}

// needsSeasons reports whether resolution can change based on season
// boundaries. With no records at all, or with at least one in-progress
// episode, the resolver decides without consulting metadata.
func needsSeasons(records []models.WatchRecord) bool {
	if len(records) == 0 {
		return false
	}
	for _, r := range records {
		if r.Progress >= MinimumProgressThreshold && r.Progress < CompletionThreshold {
			return false
		}
	}
	return true
}

// ListContinueWatching groups the user's watch records per title and resolves
// a resume point for each. Series needing season metadata are resolved with
// bounded concurrency; results are sorted most recently watched first.
func (s *Service) ListContinueWatching(ctx context.Context, userID, language string) ([]models.ContinueWatchingItem, error) {
	records, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list watch records: %w", err)
	}

	type titleKey struct {
		titleID   string
		mediaKind string
	}
	grouped := make(map[titleKey][]models.WatchRecord)
	for _, r := range records {
		k := titleKey{titleID: r.TitleID, mediaKind: r.MediaKind}
		grouped[k] = append(grouped[k], r)
	}

	var (
		mu    sync.Mutex
		items []models.ContinueWatchingItem
	)
	p := pool.New().WithMaxGoroutines(maxConcurrentResolves)

	for k, recs := range grouped {
		switch k.mediaKind {
		case models.MediaKindMovie:
			// Movies resume in place; only partially watched ones appear.
			r := recs[0]
			if r.Progress < MinimumProgressThreshold || r.Progress >= CompletionThreshold {
				continue
			}
			items = append(items, models.ContinueWatchingItem{
				TitleID:   k.titleID,
				MediaKind: k.mediaKind,
				Resume:    models.ResumePoint{Progress: r.Progress},
				UpdatedAt: r.WatchedAt,
			})
		case models.MediaKindSeries:
			k, recs := k, recs
			p.Go(func() {
				point := s.resolveRecords(ctx, k.titleID, language, recs)
				if point == seriesStart() && !hasMeaningfulProgress(recs) {
					// Nothing actually watched; keep the shelf clean.
					return
				}
				updatedAt := recs[0].WatchedAt
				for _, r := range recs[1:] {
					if r.WatchedAt.After(updatedAt) {
						updatedAt = r.WatchedAt
					}
				}
				mu.Lock()
				items = append(items, models.ContinueWatchingItem{
					TitleID:   k.titleID,
					MediaKind: k.mediaKind,
					Resume:    point,
					UpdatedAt: updatedAt,
				})
				mu.Unlock()
			})
		}
	}
	p.Wait()

	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].TitleID < items[j].TitleID
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})

	return items, nil
}
