package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"vistream/internal/database"
	"vistream/models"
	"vistream/services/resume"
	"vistream/services/users"
)

type resumeService interface {
	ComputeResumeEpisode(ctx context.Context, userID, titleID, language string) (models.ResumePoint, error)
	ListContinueWatching(ctx context.Context, userID, language string) ([]models.ContinueWatchingItem, error)
}

type watchStore interface {
	Upsert(ctx context.Context, rec models.WatchRecord) error
	Delete(ctx context.Context, userID, titleID, mediaKind string, season, episode int) (bool, error)
	DeleteForTitle(ctx context.Context, userID, titleID, mediaKind string) (int64, error)
}

type userService interface {
	Exists(ctx context.Context, id string) (bool, error)
}

var _ resumeService = (*resume.Service)(nil)
var _ watchStore = (*database.WatchRepository)(nil)
var _ userService = (*users.Service)(nil)

// WatchHandler serves playback progress and resume endpoints.
type WatchHandler struct {
	Resume resumeService
	Store  watchStore
	Users  userService
}

func NewWatchHandler(resumeSvc resumeService, store watchStore, usersSvc userService) *WatchHandler {
	return &WatchHandler{Resume: resumeSvc, Store: store, Users: usersSvc}
}

// ListContinueWatching returns the user's continue watching shelf.
func (h *WatchHandler) ListContinueWatching(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.Resume.ListContinueWatching(r.Context(), userID, r.URL.Query().Get("language"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []models.ContinueWatchingItem{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// GetResumePoint resolves where the user should continue a series.
func (h *WatchHandler) GetResumePoint(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	titleID := strings.TrimSpace(mux.Vars(r)["titleID"])
	if titleID == "" {
		http.Error(w, "title id is required", http.StatusBadRequest)
		return
	}

	point, err := h.Resume.ComputeResumeEpisode(r.Context(), userID, titleID, r.URL.Query().Get("language"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(point)
}

// UpdateProgress records a playback progress report.
func (h *WatchHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var update models.ProgressUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := validateProgressUpdate(update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec := models.WatchRecord{
		UserID:    userID,
		TitleID:   update.TitleID,
		MediaKind: update.MediaKind,
		Season:    update.Season,
		Episode:   update.Episode,
		Progress:  update.Progress,
		WatchedAt: update.Timestamp,
	}
	if rec.WatchedAt.IsZero() {
		rec.WatchedAt = time.Now().UTC()
	}

	if err := h.Store.Upsert(r.Context(), rec); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// DeleteProgress removes one progress record by full key.
func (h *WatchHandler) DeleteProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	titleID := strings.TrimSpace(vars["titleID"])
	mediaKind := strings.TrimSpace(vars["mediaKind"])
	if titleID == "" || mediaKind == "" {
		http.Error(w, "title id and media kind are required", http.StatusBadRequest)
		return
	}

	season, err := strconv.Atoi(vars["season"])
	if err != nil {
		http.Error(w, "invalid season", http.StatusBadRequest)
		return
	}
	episode, err := strconv.Atoi(vars["episode"])
	if err != nil {
		http.Error(w, "invalid episode", http.StatusBadRequest)
		return
	}

	deleted, err := h.Store.Delete(r.Context(), userID, titleID, mediaKind, season, episode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "watch record not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteTitleProgress removes every progress record the user has for a title.
func (h *WatchHandler) DeleteTitleProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	titleID := strings.TrimSpace(vars["titleID"])
	mediaKind := strings.TrimSpace(vars["mediaKind"])
	if titleID == "" || mediaKind == "" {
		http.Error(w, "title id and media kind are required", http.StatusBadRequest)
		return
	}

	if _, err := h.Store.DeleteForTitle(r.Context(), userID, titleID, mediaKind); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func validateProgressUpdate(update models.ProgressUpdate) error {
	if strings.TrimSpace(update.TitleID) == "" {
		return errors.New("titleId is required")
	}
	if update.Progress < 0 || update.Progress > 100 {
		return errors.New("progress must be between 0 and 100")
	}
	switch update.MediaKind {
	case models.MediaKindMovie:
		if update.Season != 0 || update.Episode != 0 {
			return errors.New("movies do not carry season or episode numbers")
		}
	case models.MediaKindSeries:
		if update.Season < 1 || update.Episode < 1 {
			return errors.New("season and episode must be at least 1")
		}
	default:
		return errors.New("mediaKind must be movie or series")
	}
	return nil
}

func (h *WatchHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(mux.Vars(r)["userID"])
	if userID == "" {
		http.Error(w, "user id is required", http.StatusBadRequest)
		return "", false
	}

	if h.Users != nil {
		exists, err := h.Users.Exists(r.Context(), userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return "", false
		}
		if !exists {
			http.Error(w, "user not found", http.StatusNotFound)
			return "", false
		}
	}

	return userID, true
}
