package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"vistream/models"
	"vistream/services/users"
)

type accountService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	VerifyEmail(ctx context.Context, id string) error
	StartTrial(ctx context.Context, id, planID string) (*models.User, error)
}

var _ accountService = (*users.Service)(nil)

// UsersHandler serves account registration, login, and plan trials.
type UsersHandler struct {
	Service accountService
}

func NewUsersHandler(service accountService) *UsersHandler {
	return &UsersHandler{Service: service}
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new account.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.Service.Register(r.Context(), payload.Email, payload.Password)
	if err != nil {
		http.Error(w, err.Error(), usersErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// Login verifies credentials and returns the account.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.Service.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		http.Error(w, err.Error(), usersErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// Get returns one account.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePathUser(w, r)
	if !ok {
		return
	}

	user, err := h.Service.Get(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), usersErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// VerifyEmail flags the account's email as verified.
func (h *UsersHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePathUser(w, r)
	if !ok {
		return
	}

	if err := h.Service.VerifyEmail(r.Context(), userID); err != nil {
		http.Error(w, err.Error(), usersErrorStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartTrial attaches a plan trial to the account.
func (h *UsersHandler) StartTrial(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePathUser(w, r)
	if !ok {
		return
	}

	var payload struct {
		PlanID string `json:"planId"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.PlanID) == "" {
		http.Error(w, "plan id is required", http.StatusBadRequest)
		return
	}

	user, err := h.Service.StartTrial(r.Context(), userID, payload.PlanID)
	if err != nil {
		http.Error(w, err.Error(), usersErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func usersErrorStatus(err error) int {
	switch {
	case errors.Is(err, users.ErrEmailRequired),
		errors.Is(err, users.ErrEmailInvalid),
		errors.Is(err, users.ErrPasswordRequired),
		errors.Is(err, users.ErrPasswordTooShort),
		errors.Is(err, users.ErrUnknownPlan):
		return http.StatusBadRequest
	case errors.Is(err, users.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, users.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, users.ErrEmailTaken),
		errors.Is(err, users.ErrPlanAlreadySet):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
