package models

import "time"

// Media kinds recorded in watch history.
const (
	MediaKindMovie  = "movie"
	MediaKindSeries = "series"
)

// WatchRecord is a single playback progress entry. There is at most one record
// per (user, title, kind, season, episode) key. Season and episode are 0 for
// movies and >= 1 for TV episodes.
type WatchRecord struct {
	UserID    string    `json:"userId"`
	TitleID   string    `json:"titleId"`
	MediaKind string    `json:"mediaKind"`
	Season    int       `json:"season"`
	Episode   int       `json:"episode"`
	Progress  float64   `json:"progress"` // percent watched, 0-100
	WatchedAt time.Time `json:"watchedAt"`
}

// SeasonInfo describes one season of a series as reported by the metadata
// source. Not persisted locally.
type SeasonInfo struct {
	SeasonNumber int `json:"season_number"`
	EpisodeCount int `json:"episode_count"`
}

// ResumePoint is the episode a user should continue a series at.
type ResumePoint struct {
	Season   int     `json:"season"`
	Episode  int     `json:"episode"`
	Progress float64 `json:"progress"`
}

// ProgressUpdate is a playback progress report from the player.
type ProgressUpdate struct {
	TitleID   string    `json:"titleId"`
	MediaKind string    `json:"mediaKind"`
	Season    int       `json:"season,omitempty"`
	Episode   int       `json:"episode,omitempty"`
	Progress  float64   `json:"progress"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ContinueWatchingItem is one row of the continue watching shelf.
type ContinueWatchingItem struct {
	TitleID   string      `json:"titleId"`
	MediaKind string      `json:"mediaKind"`
	Resume    ResumePoint `json:"resume"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
