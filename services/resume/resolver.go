package resume

import (
	"vistream/models"
)

// Progress thresholds, in percent.
const (
	// MinimumProgressThreshold is the floor below which a record counts as
	// unwatched even though it exists (a few seconds of accidental playback).
	MinimumProgressThreshold = 5.0
	// CompletionThreshold is the point at which an episode counts as fully
	// watched.
	CompletionThreshold = 90.0
)

// maxForwardSteps bounds the walk across episodes and season boundaries so
// malformed or cyclic season metadata cannot loop forever.
const maxForwardSteps = 200

func seriesStart() models.ResumePoint {
	return models.ResumePoint{Season: 1, Episode: 1, Progress: 0}
}

// Resolve computes the single episode to resume a series at, given every watch
// record the user has for that series and, optionally, the series' season
// layout. Passing nil seasons skips boundary validation: the tentative next
// episode after the furthest completed one is returned as-is.
//
// The most recent in-progress episode always wins over the furthest completed
// point: a user who rewatches an early episode mid-stream resumes there,
// because "continue watching" models the last pause point, not maximum
// progress.
func Resolve(records []models.WatchRecord, seasons []models.SeasonInfo) models.ResumePoint {
	if len(records) == 0 {
		return seriesStart()
	}

	if r := mostRecentInProgress(records); r != nil {
		return models.ResumePoint{Season: r.Season, Episode: r.Episode, Progress: r.Progress}
	}

	furthest := furthestCompleted(records)
	if furthest == nil {
		// Only sub-threshold records exist; treat the series as unstarted.
		return seriesStart()
	}

	season, episode := furthest.Season, furthest.Episode+1
	if len(seasons) == 0 {
		// No boundary information: best-effort next episode.
		return models.ResumePoint{Season: season, Episode: episode, Progress: 0}
	}

	episodeCounts := make(map[int]int, len(seasons))
	for _, s := range seasons {
		episodeCounts[s.SeasonNumber] = s.EpisodeCount
	}

	byKey := make(map[[2]int]*models.WatchRecord, len(records))
	for i := range records {
		r := &records[i]
		byKey[[2]int{r.Season, r.Episode}] = r
	}

	for step := 0; step < maxForwardSteps; step++ {
		count, ok := episodeCounts[season]
		if !ok {
			// The candidate season is absent from metadata: the series
			// structure is inconsistent, restart from the top.
			return seriesStart()
		}
		if episode > count {
			next, ok := episodeCounts[season+1]
			if !ok || next <= 0 {
				// No content beyond the last season: series fully watched.
				return seriesStart()
			}
			season++
			episode = 1
		}
		if r, ok := byKey[[2]int{season, episode}]; ok {
			if r.Progress >= CompletionThreshold {
				episode++
				continue
			}
			return models.ResumePoint{Season: season, Episode: episode, Progress: r.Progress}
		}
		return models.ResumePoint{Season: season, Episode: episode, Progress: 0}
	}

	// Step bound exhausted on degenerate metadata.
	return seriesStart()
}

// mostRecentInProgress returns the record with the latest watch timestamp
// among those strictly between the two thresholds, or nil.
func mostRecentInProgress(records []models.WatchRecord) *models.WatchRecord {
	var best *models.WatchRecord
	for i := range records {
		r := &records[i]
		if r.Progress < MinimumProgressThreshold || r.Progress >= CompletionThreshold {
			continue
		}
		if best == nil || r.WatchedAt.After(best.WatchedAt) {
			best = r
		}
	}
	return best
}

// furthestCompleted returns the completed record with the greatest
// (season, episode) pair, or nil when nothing is completed.
func furthestCompleted(records []models.WatchRecord) *models.WatchRecord {
	var best *models.WatchRecord
	for i := range records {
		r := &records[i]
		if r.Progress < CompletionThreshold {
			continue
		}
		if best == nil || r.Season > best.Season || (r.Season == best.Season && r.Episode > best.Episode) {
			best = r
		}
	}
	return best
}
