package resume_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vistream/models"
	"vistream/services/resume"
)

type fakeStore struct {
	records []models.WatchRecord
	err     error
}

func (f *fakeStore) ListForTitle(ctx context.Context, userID, titleID, mediaKind string) ([]models.WatchRecord, error) {
	return f.records, f.err
}

func (f *fakeStore) ListForUser(ctx context.Context, userID string) ([]models.WatchRecord, error) {
	return f.records, f.err
}

type fakeSeasons struct {
	seasons []models.SeasonInfo
	err     error
	calls   int
}

func (f *fakeSeasons) Seasons(ctx context.Context, titleID, language string) ([]models.SeasonInfo, error) {
	f.calls++
	return f.seasons, f.err
}

func TestComputeResumeEpisodeSkipsMetadataWhenInProgress(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	store := &fakeStore{records: []models.WatchRecord{
		record(2, 3, 45, base),
		record(2, 2, 100, base.Add(-time.Hour)),
	}}
	seasonSrc := &fakeSeasons{seasons: seasons(10, 10)}

	svc := resume.NewService(store, seasonSrc)
	point, err := svc.ComputeResumeEpisode(context.Background(), "u1", "tmdb:series:1399", "en-US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expect(t, point, 2, 3, 45)
	if seasonSrc.calls != 0 {
		t.Fatalf("expected no metadata fetch for in-progress resume, got %d calls", seasonSrc.calls)
	}
}

func TestComputeResumeEpisodeSkipsMetadataWhenNoRecords(t *testing.T) {
	store := &fakeStore{}
	seasonSrc := &fakeSeasons{seasons: seasons(10)}

	svc := resume.NewService(store, seasonSrc)
	point, err := svc.ComputeResumeEpisode(context.Background(), "u1", "tmdb:series:1399", "en-US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expect(t, point, 1, 1, 0)
	if seasonSrc.calls != 0 {
		t.Fatalf("expected no metadata fetch with no records, got %d calls", seasonSrc.calls)
	}
}

func TestComputeResumeEpisodeFetchesMetadataForCompleted(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	store := &fakeStore{records: []models.WatchRecord{
		record(1, 10, 95, base),
	}}
	seasonSrc := &fakeSeasons{seasons: seasons(10, 8)}

	svc := resume.NewService(store, seasonSrc)
	point, err := svc.ComputeResumeEpisode(context.Background(), "u1", "tmdb:series:1399", "en-US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expect(t, point, 2, 1, 0)
	if seasonSrc.calls != 1 {
		t.Fatalf("expected exactly one metadata fetch, got %d", seasonSrc.calls)
	}
}

func TestComputeResumeEpisodeFiltersSpecials(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	store := &fakeStore{records: []models.WatchRecord{
		record(1, 10, 95, base),
	}}
	seasonSrc := &fakeSeasons{seasons: []models.SeasonInfo{
		{SeasonNumber: 0, EpisodeCount: 4}, // specials must not count as a season
		{SeasonNumber: 1, EpisodeCount: 10},
		{SeasonNumber: 2, EpisodeCount: 8},
	}}

	svc := resume.NewService(store, seasonSrc)
	point, err := svc.ComputeResumeEpisode(context.Background(), "u1", "tmdb:series:1399", "en-US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expect(t, point, 2, 1, 0)
}

func TestComputeResumeEpisodeDegradesOnMetadataFailure(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	store := &fakeStore{records: []models.WatchRecord{
		record(1, 10, 95, base),
	}}
	seasonSrc := &fakeSeasons{err: errors.New("tmdb request failed: 503 Service Unavailable")}

	svc := resume.NewService(store, seasonSrc)
	point, err := svc.ComputeResumeEpisode(context.Background(), "u1", "tmdb:series:1399", "en-US")
	if err != nil {
		t.Fatalf("resume must not fail when metadata is unreachable: %v", err)
	}

	// Boundary-less best effort: tentative next episode.
	expect(t, point, 1, 11, 0)
}

func TestComputeResumeEpisodeStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("database locked")}

	svc := resume.NewService(store, &fakeSeasons{})
	if _, err := svc.ComputeResumeEpisode(context.Background(), "u1", "tmdb:series:1399", "en-US"); err == nil {
		t.Fatal("expected store errors to propagate")
	}
}

func TestListContinueWatching(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	store := &fakeStore{records: []models.WatchRecord{
		// Series with an in-progress episode.
		{UserID: "u1", TitleID: "tmdb:series:1399", MediaKind: models.MediaKindSeries, Season: 2, Episode: 3, Progress: 45, WatchedAt: base.Add(2 * time.Hour)},
		{UserID: "u1", TitleID: "tmdb:series:1399", MediaKind: models.MediaKindSeries, Season: 2, Episode: 2, Progress: 100, WatchedAt: base},
		// In-progress movie.
		{UserID: "u1", TitleID: "tmdb:movie:603", MediaKind: models.MediaKindMovie, Progress: 40, WatchedAt: base.Add(time.Hour)},
		// Finished movie: not resumable.
		{UserID: "u1", TitleID: "tmdb:movie:604", MediaKind: models.MediaKindMovie, Progress: 97, WatchedAt: base.Add(3 * time.Hour)},
	}}
	seasonSrc := &fakeSeasons{seasons: seasons(10, 10)}

	svc := resume.NewService(store, seasonSrc)
	items, err := svc.ListContinueWatching(context.Background(), "u1", "en-US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 continue watching items, got %d", len(items))
	}

	// Most recently watched first.
	if items[0].TitleID != "tmdb:series:1399" {
		t.Fatalf("expected series first, got %s", items[0].TitleID)
	}
	expect(t, items[0].Resume, 2, 3, 45)

	if items[1].TitleID != "tmdb:movie:603" {
		t.Fatalf("expected movie second, got %s", items[1].TitleID)
	}
	if items[1].Resume.Progress != 40 {
		t.Fatalf("expected movie resume progress 40, got %.0f", items[1].Resume.Progress)
	}

	// The in-progress series must not have triggered a metadata fetch.
	if seasonSrc.calls != 0 {
		t.Fatalf("expected no metadata fetches, got %d", seasonSrc.calls)
	}
}
