package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"vistream/internal/database"
	"vistream/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "vistream.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *database.DB) string {
	t.Helper()

	users := database.NewUserRepository(db.Connection())
	now := time.Now().UTC()
	u := models.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		ScreenCount:  models.BaseScreenCount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u.ID
}

func TestWatchUpsertKeepsOneRowPerEpisode(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewWatchRepository(db.Connection())
	ctx := context.Background()
	userID := seedUser(t, db)

	base := time.Now().UTC().Add(-time.Hour)
	rec := models.WatchRecord{
		UserID:    userID,
		TitleID:   "tmdb:series:1399",
		MediaKind: models.MediaKindSeries,
		Season:    1,
		Episode:   3,
		Progress:  20,
		WatchedAt: base,
	}
	require.NoError(t, repo.Upsert(ctx, rec))

	rec.Progress = 95
	rec.WatchedAt = base.Add(30 * time.Minute)
	require.NoError(t, repo.Upsert(ctx, rec))

	records, err := repo.ListForTitle(ctx, userID, rec.TitleID, rec.MediaKind)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 95.0, records[0].Progress)
	require.WithinDuration(t, rec.WatchedAt, records[0].WatchedAt, time.Second)
}

func TestWatchListOrdering(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewWatchRepository(db.Connection())
	ctx := context.Background()
	userID := seedUser(t, db)

	base := time.Now().UTC().Add(-time.Hour)
	for i, episode := range []int{1, 2, 3} {
		require.NoError(t, repo.Upsert(ctx, models.WatchRecord{
			UserID:    userID,
			TitleID:   "tmdb:series:1399",
			MediaKind: models.MediaKindSeries,
			Season:    1,
			Episode:   episode,
			Progress:  92,
			WatchedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := repo.ListForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, 3, records[0].Episode)
	require.Equal(t, 1, records[2].Episode)
}

func TestWatchDelete(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewWatchRepository(db.Connection())
	ctx := context.Background()
	userID := seedUser(t, db)

	rec := models.WatchRecord{
		UserID:    userID,
		TitleID:   "tmdb:series:1399",
		MediaKind: models.MediaKindSeries,
		Season:    2,
		Episode:   1,
		Progress:  50,
	}
	require.NoError(t, repo.Upsert(ctx, rec))

	deleted, err := repo.Delete(ctx, userID, rec.TitleID, rec.MediaKind, 2, 1)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = repo.Delete(ctx, userID, rec.TitleID, rec.MediaKind, 2, 1)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestWatchDeleteForTitle(t *testing.T) {
	db := newTestDB(t)
	repo := database.NewWatchRepository(db.Connection())
	ctx := context.Background()
	userID := seedUser(t, db)

	for episode := 1; episode <= 4; episode++ {
		require.NoError(t, repo.Upsert(ctx, models.WatchRecord{
			UserID:    userID,
			TitleID:   "tmdb:series:1399",
			MediaKind: models.MediaKindSeries,
			Season:    1,
			Episode:   episode,
			Progress:  92,
		}))
	}

	removed, err := repo.DeleteForTitle(ctx, userID, "tmdb:series:1399", models.MediaKindSeries)
	require.NoError(t, err)
	require.Equal(t, int64(4), removed)

	records, err := repo.ListForUser(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, records)
}
