package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"vistream/models"
	"vistream/services/family"
)

type familyService interface {
	CreateInvite(ctx context.Context, ownerID, email string) (*models.FamilyInvite, error)
	AcceptInvite(ctx context.Context, token, userID string) (*models.FamilyMember, error)
	RevokeInvite(ctx context.Context, ownerID, inviteID string) error
	Summary(ctx context.Context, userID string) (*models.FamilySummary, error)
}

var _ familyService = (*family.Service)(nil)

// FamilyHandler serves the plan panel and invite endpoints.
type FamilyHandler struct {
	Service familyService
}

func NewFamilyHandler(service familyService) *FamilyHandler {
	return &FamilyHandler{Service: service}
}

// GetSummary returns slot usage for the user's plan.
func (h *FamilyHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePathUser(w, r)
	if !ok {
		return
	}

	summary, err := h.Service.Summary(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), familyErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// CreateInvite issues an invite for one of the owner's free slots.
func (h *FamilyHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePathUser(w, r)
	if !ok {
		return
	}

	var payload struct {
		Email string `json:"email"`
	}
	if r.Body != http.NoBody {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	invite, err := h.Service.CreateInvite(r.Context(), userID, payload.Email)
	if err != nil {
		http.Error(w, err.Error(), familyErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(invite)
}

// AcceptInvite redeems an invite token for the requesting user.
func (h *FamilyHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePathUser(w, r)
	if !ok {
		return
	}

	token := strings.TrimSpace(mux.Vars(r)["token"])
	if token == "" {
		http.Error(w, "invite token is required", http.StatusBadRequest)
		return
	}

	member, err := h.Service.AcceptInvite(r.Context(), token, userID)
	if err != nil {
		http.Error(w, err.Error(), familyErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(member)
}

// RevokeInvite cancels a pending invite.
func (h *FamilyHandler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePathUser(w, r)
	if !ok {
		return
	}

	inviteID := strings.TrimSpace(mux.Vars(r)["inviteID"])
	if inviteID == "" {
		http.Error(w, "invite id is required", http.StatusBadRequest)
		return
	}

	if err := h.Service.RevokeInvite(r.Context(), userID, inviteID); err != nil {
		http.Error(w, err.Error(), familyErrorStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func familyErrorStatus(err error) int {
	switch {
	case errors.Is(err, family.ErrUserNotFound),
		errors.Is(err, family.ErrInviteNotFound):
		return http.StatusNotFound
	case errors.Is(err, family.ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, family.ErrNoFamilyPlan),
		errors.Is(err, family.ErrNotFamilyOwner),
		errors.Is(err, family.ErrEmailMismatch),
		errors.Is(err, family.ErrEmailNotVerified):
		return http.StatusForbidden
	case errors.Is(err, family.ErrNoAvailableSlots),
		errors.Is(err, family.ErrInviteExpired),
		errors.Is(err, family.ErrInviteNotPending),
		errors.Is(err, family.ErrSelfAccept),
		errors.Is(err, family.ErrAlreadyMember):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func requirePathUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(mux.Vars(r)["userID"])
	if userID == "" {
		http.Error(w, "user id is required", http.StatusBadRequest)
		return "", false
	}
	return userID, true
}
