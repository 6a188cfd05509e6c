package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vistream/models"
)

// WatchRepository persists playback progress records.
type WatchRepository struct {
	db *sql.DB
}

// NewWatchRepository constructs a watch record repository.
func NewWatchRepository(db *sql.DB) *WatchRepository {
	return &WatchRepository{db: db}
}

const watchColumns = "user_id, title_id, media_kind, season, episode, progress, watched_at"

// Upsert creates the record for the given key or updates its progress and
// timestamp, keeping at most one row per (user, title, kind, season, episode).
func (r *WatchRepository) Upsert(ctx context.Context, rec models.WatchRecord) error {
	if rec.WatchedAt.IsZero() {
		rec.WatchedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO watch_records (`+watchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (user_id, title_id, media_kind, season, episode)
         DO UPDATE SET progress = excluded.progress, watched_at = excluded.watched_at`,
		rec.UserID,
		rec.TitleID,
		rec.MediaKind,
		rec.Season,
		rec.Episode,
		rec.Progress,
		formatTime(rec.WatchedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert watch record: %w", err)
	}
	return nil
}

// ListForTitle returns the user's records for one title, most recent first.
func (r *WatchRepository) ListForTitle(ctx context.Context, userID, titleID, mediaKind string) ([]models.WatchRecord, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+watchColumns+` FROM watch_records
         WHERE user_id = ? AND title_id = ? AND media_kind = ?
         ORDER BY watched_at DESC`,
		userID, titleID, mediaKind,
	)
	if err != nil {
		return nil, fmt.Errorf("list watch records for title: %w", err)
	}
	defer rows.Close()
	return scanWatchRecords(rows)
}

// ListForUser returns every record the user has, most recent first.
func (r *WatchRepository) ListForUser(ctx context.Context, userID string) ([]models.WatchRecord, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+watchColumns+` FROM watch_records WHERE user_id = ? ORDER BY watched_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list watch records: %w", err)
	}
	defer rows.Close()
	return scanWatchRecords(rows)
}

// Delete removes one record by full key.
func (r *WatchRepository) Delete(ctx context.Context, userID, titleID, mediaKind string, season, episode int) (bool, error) {
	res, err := r.db.ExecContext(
		ctx,
		`DELETE FROM watch_records
         WHERE user_id = ? AND title_id = ? AND media_kind = ? AND season = ? AND episode = ?`,
		userID, titleID, mediaKind, season, episode,
	)
	if err != nil {
		return false, fmt.Errorf("delete watch record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteForTitle removes every record the user has for a title.
func (r *WatchRepository) DeleteForTitle(ctx context.Context, userID, titleID, mediaKind string) (int64, error) {
	res, err := r.db.ExecContext(
		ctx,
		`DELETE FROM watch_records WHERE user_id = ? AND title_id = ? AND media_kind = ?`,
		userID, titleID, mediaKind,
	)
	if err != nil {
		return 0, fmt.Errorf("delete watch records for title: %w", err)
	}
	return res.RowsAffected()
}

func scanWatchRecords(rows *sql.Rows) ([]models.WatchRecord, error) {
	var records []models.WatchRecord
	for rows.Next() {
		var (
			rec        models.WatchRecord
			watchedRaw string
		)
		if err := rows.Scan(&rec.UserID, &rec.TitleID, &rec.MediaKind, &rec.Season, &rec.Episode, &rec.Progress, &watchedRaw); err != nil {
			return nil, fmt.Errorf("scan watch record: %w", err)
		}
		if t, err := parseTimeString(watchedRaw); err == nil {
			rec.WatchedAt = t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
