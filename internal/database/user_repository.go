package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vistream/models"
)

// UserRepository persists account rows.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, email, email_verified, password_hash, plan_id, screen_count, trial_ends_at, created_at, updated_at"

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, u models.User) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.Email,
		boolToInt(u.EmailVerified),
		u.PasswordHash,
		nullableString(u.PlanID),
		u.ScreenCount,
		nullableTime(u.TrialEndsAt),
		formatTime(u.CreatedAt),
		formatTime(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID fetches a user by identifier; nil when absent.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail fetches a user by email, case-insensitively; nil when absent.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// SetEmailVerified flags the user's email as verified.
func (r *UserRepository) SetEmailVerified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`,
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set email verified: %w", err)
	}
	return nil
}

// SetPlan attaches a plan, its seat capacity, and an optional trial end.
func (r *UserRepository) SetPlan(ctx context.Context, id, planID string, screenCount int, trialEndsAt *time.Time) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE users SET plan_id = ?, screen_count = ?, trial_ends_at = ?, updated_at = ? WHERE id = ?`,
		nullableString(planID),
		screenCount,
		nullableTime(trialEndsAt),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	return nil
}

// ListTrialExpired returns users whose trial has lapsed and who still carry a
// plan reference. The plan check, not just the timestamp, keeps the batch job
// idempotent: already-processed users no longer match.
func (r *UserRepository) ListTrialExpired(ctx context.Context, now time.Time) ([]models.User, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+userColumns+` FROM users
         WHERE trial_ends_at IS NOT NULL AND trial_ends_at < ?
           AND plan_id IS NOT NULL AND plan_id != ''`,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("list trial expired users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ClearPlanTx removes the plan reference and trial marker inside an existing
// transaction, resetting seat capacity to the base value.
func (r *UserRepository) ClearPlanTx(tx *sql.Tx, id string, baseScreenCount int) error {
	_, err := tx.Exec(
		`UPDATE users SET plan_id = NULL, screen_count = ?, trial_ends_at = NULL, updated_at = ? WHERE id = ?`,
		baseScreenCount,
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("clear plan: %w", err)
	}
	return nil
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (*models.User, error) {
	var (
		u           models.User
		verified    int
		planID      sql.NullString
		trialRaw    sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(&u.ID, &u.Email, &verified, &u.PasswordHash, &planID, &u.ScreenCount, &trialRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	u.EmailVerified = verified != 0
	u.PlanID = planID.String
	if trialRaw.Valid {
		if t, err := parseTimeString(trialRaw.String); err == nil {
			u.TrialEndsAt = &t
		}
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		u.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		u.UpdatedAt = t
	}
	return &u, nil
}
