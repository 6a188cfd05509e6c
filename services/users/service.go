package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"vistream/internal/database"
	"vistream/models"
)

var (
	ErrEmailRequired      = errors.New("email is required")
	ErrEmailInvalid       = errors.New("invalid email address")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownPlan        = errors.New("unknown plan")
	ErrPlanAlreadySet     = errors.New("user already has a plan")
)

// DefaultTrialDuration is how long a newly started plan trial runs.
const DefaultTrialDuration = 30 * 24 * time.Hour

// Service manages account registration, authentication, and plan trials.
type Service struct {
	repo          *database.UserRepository
	trialDuration time.Duration
}

// NewService creates a users service backed by the given repository. A
// non-positive trialDuration falls back to DefaultTrialDuration.
func NewService(repo *database.UserRepository, trialDuration time.Duration) *Service {
	if trialDuration <= 0 {
		trialDuration = DefaultTrialDuration
	}
	return &Service{repo: repo, trialDuration: trialDuration}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrEmailInvalid
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if len(password) < 8 {
		return nil, ErrPasswordTooShort
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		ScreenCount:  models.BaseScreenCount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate verifies an email and password pair. The email lookup is
// case-insensitive; a missing account and a wrong password are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Get returns the user with the given ID.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Exists reports whether a user with the provided ID is registered.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// VerifyEmail flags the account's email as verified.
func (s *Service) VerifyEmail(ctx context.Context, id string) error {
	user, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.repo.SetEmailVerified(ctx, user.ID)
}

// StartTrial attaches a plan to the account with a trial window. The plan's
// screen count takes effect immediately; the trial expiry batch removes it
// once the window lapses.
func (s *Service) StartTrial(ctx context.Context, id, planID string) (*models.User, error) {
	switch planID {
	case models.PlanSolo, models.PlanDuo, models.PlanFamily:
	default:
		return nil, ErrUnknownPlan
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.PlanID != "" {
		return nil, ErrPlanAlreadySet
	}

	trialEndsAt := time.Now().UTC().Add(s.trialDuration)
	screenCount := models.PlanScreenCount(planID)
	if err := s.repo.SetPlan(ctx, user.ID, planID, screenCount, &trialEndsAt); err != nil {
		return nil, err
	}

	user.PlanID = planID
	user.ScreenCount = screenCount
	user.TrialEndsAt = &trialEndsAt
	return user, nil
}
