package users_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vistream/internal/database"
	"vistream/models"
	"vistream/services/users"
)

func newTestService(t *testing.T) *users.Service {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "vistream.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := database.NewUserRepository(db.Connection())
	return users.NewService(repo, time.Hour)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "longenough")
	require.ErrorIs(t, err, users.ErrEmailRequired)

	_, err = svc.Register(ctx, "not-an-email", "longenough")
	require.ErrorIs(t, err, users.ErrEmailInvalid)

	_, err = svc.Register(ctx, "a@example.com", "")
	require.ErrorIs(t, err, users.ErrPasswordRequired)

	_, err = svc.Register(ctx, "a@example.com", "short")
	require.ErrorIs(t, err, users.ErrPasswordTooShort)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, "user@example.com", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, models.BaseScreenCount, created.ScreenCount)

	_, err = svc.Register(ctx, "User@Example.com", "correct horse")
	require.ErrorIs(t, err, users.ErrEmailTaken)

	got, err := svc.Authenticate(ctx, "user@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	_, err = svc.Authenticate(ctx, "user@example.com", "wrong")
	require.ErrorIs(t, err, users.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	require.ErrorIs(t, err, users.ErrInvalidCredentials)
}

func TestVerifyEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, "user@example.com", "correct horse")
	require.NoError(t, err)
	require.False(t, created.EmailVerified)

	require.NoError(t, svc.VerifyEmail(ctx, created.ID))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)

	require.ErrorIs(t, svc.VerifyEmail(ctx, "missing"), users.ErrUserNotFound)
}

func TestStartTrial(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, "user@example.com", "correct horse")
	require.NoError(t, err)

	_, err = svc.StartTrial(ctx, created.ID, "platinum")
	require.ErrorIs(t, err, users.ErrUnknownPlan)

	updated, err := svc.StartTrial(ctx, created.ID, models.PlanFamily)
	require.NoError(t, err)
	require.Equal(t, models.PlanFamily, updated.PlanID)
	require.Equal(t, 4, updated.ScreenCount)
	require.NotNil(t, updated.TrialEndsAt)
	require.WithinDuration(t, time.Now().UTC().Add(time.Hour), *updated.TrialEndsAt, time.Minute)

	_, err = svc.StartTrial(ctx, created.ID, models.PlanDuo)
	require.ErrorIs(t, err, users.ErrPlanAlreadySet)
}
