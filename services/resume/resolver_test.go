package resume_test

import (
	"testing"
	"time"

	"vistream/models"
	"vistream/services/resume"
)

func record(season, episode int, progress float64, watchedAt time.Time) models.WatchRecord {
	return models.WatchRecord{
		UserID:    "u1",
		TitleID:   "tmdb:series:1399",
		MediaKind: models.MediaKindSeries,
		Season:    season,
		Episode:   episode,
		Progress:  progress,
		WatchedAt: watchedAt,
	}
}

func seasons(counts ...int) []models.SeasonInfo {
	out := make([]models.SeasonInfo, len(counts))
	for i, c := range counts {
		out[i] = models.SeasonInfo{SeasonNumber: i + 1, EpisodeCount: c}
	}
	return out
}

func expect(t *testing.T, got models.ResumePoint, season, episode int, progress float64) {
	t.Helper()
	if got.Season != season || got.Episode != episode || got.Progress != progress {
		t.Fatalf("expected S%02dE%02d at %.0f%%, got S%02dE%02d at %.0f%%",
			season, episode, progress, got.Season, got.Episode, got.Progress)
	}
}

func TestResolveNoRecords(t *testing.T) {
	expect(t, resume.Resolve(nil, nil), 1, 1, 0)
	expect(t, resume.Resolve(nil, seasons(10, 10)), 1, 1, 0)
}

func TestResolveInProgressWins(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	records := []models.WatchRecord{
		record(5, 8, 95, base.Add(48*time.Hour)), // completed, further, more recent
		record(2, 3, 45, base),                   // in progress
	}

	// The in-progress episode wins regardless of series position, recency of
	// completed records, and available metadata.
	expect(t, resume.Resolve(records, nil), 2, 3, 45)
	expect(t, resume.Resolve(records, seasons(10, 10, 10, 10, 10)), 2, 3, 45)
}

func TestResolveMostRecentInProgress(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	records := []models.WatchRecord{
		record(1, 2, 50, base),
		record(3, 4, 30, base.Add(time.Hour)),
		record(2, 1, 70, base.Add(-time.Hour)),
	}

	expect(t, resume.Resolve(records, nil), 3, 4, 30)
}

func TestResolveBelowMinimumIgnored(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	// A few seconds of accidental playback does not count as watching.
	records := []models.WatchRecord{
		record(4, 2, 1, base),
		record(4, 3, 0.5, base.Add(time.Minute)),
	}

	expect(t, resume.Resolve(records, seasons(10, 10, 10, 10)), 1, 1, 0)
}

func TestResolveNextEpisodeAfterCompleted(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	records := []models.WatchRecord{
		record(1, 3, 100, base),
	}

	expect(t, resume.Resolve(records, seasons(10, 10)), 1, 4, 0)
}

func TestResolveSeasonRollover(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	// Last episode of season 1 completed, season 2 exists.
	records := []models.WatchRecord{
		record(1, 10, 92, base),
	}

	expect(t, resume.Resolve(records, seasons(10, 8)), 2, 1, 0)
}

func TestResolveSeriesFullyWatched(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	// Completed the last episode of the last season: restart from the top.
	records := []models.WatchRecord{
		record(2, 8, 100, base),
	}

	expect(t, resume.Resolve(records, seasons(10, 8)), 1, 1, 0)
}

func TestResolveSkipsRunOfCompletedEpisodes(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	// S1E8 is the furthest completed, but E9 and E10 were also completed out
	// of order; the walk advances past them into season 2.
	records := []models.WatchRecord{
		record(1, 10, 95, base),
		record(1, 9, 91, base.Add(time.Minute)),
		record(1, 8, 90, base.Add(2*time.Minute)),
	}

	expect(t, resume.Resolve(records, seasons(10, 6)), 2, 1, 0)
}

func TestResolveCandidateWithSubThresholdRecord(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	// The next episode has a below-minimum record; its stored progress is
	// returned verbatim rather than treated as completed.
	records := []models.WatchRecord{
		record(1, 3, 95, base),
		record(1, 4, 2, base.Add(time.Minute)),
	}

	expect(t, resume.Resolve(records, seasons(10)), 1, 4, 2)
}

func TestResolveNoMetadataBestEffort(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	// Without season metadata the tentative next episode is returned even if
	// it would overflow the season.
	records := []models.WatchRecord{
		record(1, 10, 95, base),
	}

	expect(t, resume.Resolve(records, nil), 1, 11, 0)
}

func TestResolveMissingSeasonMetadata(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	records := []models.WatchRecord{
		record(3, 5, 95, base),
	}

	// Metadata only covers seasons 1-2; the candidate season is absent, so
	// resolution degrades to the series start.
	expect(t, resume.Resolve(records, seasons(10, 10)), 1, 1, 0)
}

func TestResolveGapSeasonFallsBack(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	records := []models.WatchRecord{
		record(1, 10, 95, base),
	}

	// Season 2 is missing from metadata entirely: rollover finds no season 2,
	// so the series is treated as finished rather than skipping the gap.
	gapped := []models.SeasonInfo{
		{SeasonNumber: 1, EpisodeCount: 10},
		{SeasonNumber: 3, EpisodeCount: 10},
	}
	expect(t, resume.Resolve(records, gapped), 1, 1, 0)
}

func TestResolveZeroEpisodeNextSeason(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	records := []models.WatchRecord{
		record(1, 10, 95, base),
	}

	// An announced season with no released episodes does not count as further
	// content.
	upcoming := []models.SeasonInfo{
		{SeasonNumber: 1, EpisodeCount: 10},
		{SeasonNumber: 2, EpisodeCount: 0},
	}
	expect(t, resume.Resolve(records, upcoming), 1, 1, 0)
}

func TestResolveLongSeriesFullyWatched(t *testing.T) {
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	// Every episode of a 600-episode series is completed; the forward walk
	// must terminate promptly and resolve to the series start.
	var records []models.WatchRecord
	counts := make([]int, 30)
	for s := 1; s <= 30; s++ {
		counts[s-1] = 20
		for e := 1; e <= 20; e++ {
			records = append(records, record(s, e, 100, base))
		}
	}

	expect(t, resume.Resolve(records, seasons(counts...)), 1, 1, 0)
}
