package family

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"vistream/internal/database"
	"vistream/models"
)

// Sentinel errors surfaced to handlers for status mapping.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrNoFamilyPlan     = errors.New("plan does not support family members")
	ErrNotFamilyOwner   = errors.New("user does not own this family")
	ErrNoAvailableSlots = errors.New("no available slots")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInviteNotFound   = errors.New("invite not found")
	ErrInviteExpired    = errors.New("invite has expired")
	ErrInviteNotPending = errors.New("invite is not pending")
	ErrEmailMismatch    = errors.New("invite was issued for a different email")
	ErrEmailNotVerified = errors.New("email must be verified to accept this invite")
	ErrSelfAccept       = errors.New("owner cannot accept their own invite")
	ErrAlreadyMember    = errors.New("user is already a member of this family")
)

// DefaultInviteTTL bounds how long a pending invite reserves a slot.
const DefaultInviteTTL = 72 * time.Hour

// Service manages family membership, invites, and the trial expiry batch.
type Service struct {
	families  *database.FamilyRepository
	users     *database.UserRepository
	inviteTTL time.Duration
}

// NewService creates a family service. A non-positive inviteTTL falls back to
// DefaultInviteTTL.
func NewService(families *database.FamilyRepository, users *database.UserRepository, inviteTTL time.Duration) *Service {
	if inviteTTL <= 0 {
		inviteTTL = DefaultInviteTTL
	}
	return &Service{families: families, users: users, inviteTTL: inviteTTL}
}

// CreateInvite issues a pending invite for the owner's family, creating the
// family row lazily on first use. The capacity check and the insert share one
// write transaction so concurrent invites cannot oversubscribe the family.
func (s *Service) CreateInvite(ctx context.Context, ownerID, email string) (*models.FamilyInvite, error) {
	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load owner: %w", err)
	}
	if owner == nil {
		return nil, ErrUserNotFound
	}
	if !owner.HasFamilyPlan() {
		return nil, ErrNoFamilyPlan
	}

	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrInvalidEmail
		}
	}

	now := time.Now().UTC()

	tx, err := s.families.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	fam, err := s.families.GetByOwnerTx(tx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load family: %w", err)
	}
	if fam == nil {
		fam = &models.Family{
			ID:         uuid.NewString(),
			OwnerID:    ownerID,
			MaxMembers: owner.ScreenCount,
			CreatedAt:  now,
		}
		if err := s.families.InsertTx(tx, *fam); err != nil {
			return nil, err
		}
	}

	members, pendingInvites, err := s.families.CountsTx(tx, fam.ID, now)
	if err != nil {
		return nil, err
	}
	if !HasAvailableSlots(fam.MaxMembers, members, pendingInvites) {
		return nil, ErrNoAvailableSlots
	}

	invite := models.FamilyInvite{
		ID:        uuid.NewString(),
		FamilyID:  fam.ID,
		Token:     uuid.NewString(),
		Email:     email,
		Status:    models.InviteStatusPending,
		ExpiresAt: now.Add(s.inviteTTL),
		CreatedAt: now,
	}
	if err := s.families.InsertInviteTx(tx, invite); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit invite: %w", err)
	}

	log.Printf("[family] invite %s created for family %s", invite.ID, fam.ID)
	return &invite, nil
}

// AcceptInvite redeems a pending invite token, adding the accepting user as a
// family member. Email-bound invites match case-insensitively.
func (s *Service) AcceptInvite(ctx context.Context, token, userID string) (*models.FamilyMember, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	now := time.Now().UTC()

	tx, err := s.families.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	invite, err := s.families.GetInviteByTokenTx(tx, token)
	if err != nil {
		return nil, fmt.Errorf("load invite: %w", err)
	}
	if invite == nil {
		return nil, ErrInviteNotFound
	}
	if invite.Status != models.InviteStatusPending {
		return nil, ErrInviteNotPending
	}
	if !invite.ExpiresAt.After(now) {
		return nil, ErrInviteExpired
	}
	// Email-bound invites require the accepting account to both match the
	// address and have proven ownership of it.
	if invite.Email != "" {
		if !strings.EqualFold(invite.Email, user.Email) {
			return nil, ErrEmailMismatch
		}
		if !user.EmailVerified {
			return nil, ErrEmailNotVerified
		}
	}

	fam, err := s.families.GetByIDTx(tx, invite.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("load family: %w", err)
	}
	if fam == nil {
		return nil, ErrInviteNotFound
	}
	if fam.OwnerID == userID {
		return nil, ErrSelfAccept
	}

	exists, err := s.families.MemberExistsTx(tx, fam.ID, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyMember
	}

	members, _, err := s.families.CountsTx(tx, fam.ID, now)
	if err != nil {
		return nil, err
	}
	// Acceptance consumes the slot the pending invite was holding, so only
	// the member count bounds it.
	if AvailableSlots(fam.MaxMembers, members) <= 0 {
		return nil, ErrNoAvailableSlots
	}

	member := models.FamilyMember{
		ID:       uuid.NewString(),
		FamilyID: fam.ID,
		UserID:   userID,
		JoinedAt: now,
	}
	if err := s.families.InsertMemberTx(tx, member); err != nil {
		return nil, err
	}
	if err := s.families.MarkInviteAcceptedTx(tx, invite.ID, userID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit membership: %w", err)
	}

	log.Printf("[family] user %s joined family %s via invite %s", userID, fam.ID, invite.ID)
	return &member, nil
}

// RevokeInvite cancels a pending invite, releasing its reserved slot. Only
// the family owner may revoke.
func (s *Service) RevokeInvite(ctx context.Context, ownerID, inviteID string) error {
	invite, err := s.families.GetInvite(ctx, inviteID)
	if err != nil {
		return fmt.Errorf("load invite: %w", err)
	}
	if invite == nil {
		return ErrInviteNotFound
	}

	fam, err := s.families.GetByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load family: %w", err)
	}
	if fam == nil || fam.ID != invite.FamilyID {
		return ErrNotFamilyOwner
	}

	// The pending guard is part of the UPDATE itself, so an acceptance that
	// lands between the read above and this write loses nothing: the revoke
	// simply reports the invite as no longer pending.
	revoked, err := s.families.RevokePendingInvite(ctx, inviteID)
	if err != nil {
		return err
	}
	if !revoked {
		return ErrInviteNotPending
	}
	log.Printf("[family] invite %s revoked", inviteID)
	return nil
}

// Summary builds the plan panel view for a user. Owners without a family row
// still see themselves occupying one of their plan's slots; accounts without
// a shareable plan report zero usage.
func (s *Service) Summary(ctx context.Context, userID string) (*models.FamilySummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	fam, err := s.families.GetByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load family: %w", err)
	}

	if fam == nil {
		summary := &models.FamilySummary{
			PlanID:     user.PlanID,
			MaxMembers: user.ScreenCount,
		}
		if user.HasFamilyPlan() {
			summary.MembersUsed = 1
		}
		summary.AvailableSlots = summary.MaxMembers - summary.MembersUsed
		return summary, nil
	}

	now := time.Now().UTC()
	memberCount, pendingInvites, err := s.families.Counts(ctx, fam.ID, now)
	if err != nil {
		return nil, err
	}
	members, err := s.families.ListMembers(ctx, fam.ID)
	if err != nil {
		return nil, err
	}
	invites, err := s.families.ListInvites(ctx, fam.ID)
	if err != nil {
		return nil, err
	}

	return &models.FamilySummary{
		PlanID:         user.PlanID,
		MaxMembers:     fam.MaxMembers,
		MembersUsed:    TotalMembers(memberCount),
		AvailableSlots: AvailableSlots(fam.MaxMembers, memberCount),
		PendingInvites: pendingInvites,
		Members:        members,
		Invites:        invites,
	}, nil
}

// ExpireTrials clears the plan of every user whose trial has lapsed and tears
// down their family if they own one. Each user is processed in its own
// transaction; a failure for one user does not block the rest. Returns the
// number of users processed.
func (s *Service) ExpireTrials(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.users.ListTrialExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, user := range expired {
		if err := s.expireTrial(ctx, user); err != nil {
			log.Printf("[family] trial expiry failed for user %s: %v", user.ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *Service) expireTrial(ctx context.Context, user models.User) error {
	tx, err := s.families.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.users.ClearPlanTx(tx, user.ID, models.BaseScreenCount); err != nil {
		return err
	}
	if err := s.teardownFamilyTx(tx, user.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trial expiry: %w", err)
	}

	log.Printf("[family] trial expired for user %s, plan %s removed", user.ID, user.PlanID)
	return nil
}

func (s *Service) teardownFamilyTx(tx *sql.Tx, ownerID string) error {
	fam, err := s.families.GetByOwnerTx(tx, ownerID)
	if err != nil {
		return fmt.Errorf("load family: %w", err)
	}
	if fam == nil {
		return nil
	}
	return s.families.DeleteCascadeTx(tx, fam.ID)
}

// ExpireInvites marks lapsed pending invites as expired, returning how many
// were flipped.
func (s *Service) ExpireInvites(ctx context.Context, now time.Time) (int64, error) {
	return s.families.ExpirePendingInvites(ctx, now)
}
