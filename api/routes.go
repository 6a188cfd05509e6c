package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"vistream/handlers"
	"vistream/internal/ratelimit"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register mounts API endpoints onto the provided router. The limiter guards
// write endpoints that either hit the metadata upstream indirectly or mutate
// family slot accounting.
func Register(
	r *mux.Router,
	usersHandler *handlers.UsersHandler,
	watchHandler *handlers.WatchHandler,
	familyHandler *handlers.FamilyHandler,
	schedulerHandler *handlers.SchedulerHandler,
	limiter *ratelimit.Limiter,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	// Account routes
	api.HandleFunc("/users/register", usersHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/users/register", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/login", usersHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/users/login", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}", usersHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/verify-email", usersHandler.VerifyEmail).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/verify-email", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/trial", usersHandler.StartTrial).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/trial", handleOptions).Methods(http.MethodOptions)

	// Watch progress and resume routes
	api.HandleFunc("/users/{userID}/continue-watching", watchHandler.ListContinueWatching).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/continue-watching", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/resume/{titleID}", watchHandler.GetResumePoint).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/resume/{titleID}", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/progress/{mediaKind}/{titleID}", watchHandler.DeleteTitleProgress).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/progress/{mediaKind}/{titleID}", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/progress/{mediaKind}/{titleID}/{season}/{episode}", watchHandler.DeleteProgress).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/progress/{mediaKind}/{titleID}/{season}/{episode}", handleOptions).Methods(http.MethodOptions)

	// Progress reports arrive continuously from players; rate limit per user.
	progressRouter := api.PathPrefix("/users/{userID}/progress").Subrouter()
	if limiter != nil {
		progressRouter.Use(limiter.Middleware)
	}
	progressRouter.HandleFunc("", watchHandler.UpdateProgress).Methods(http.MethodPut)
	progressRouter.HandleFunc("", handleOptions).Methods(http.MethodOptions)

	// Family plan routes
	api.HandleFunc("/users/{userID}/family", familyHandler.GetSummary).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/family", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/family/invites/{token}/accept", familyHandler.AcceptInvite).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/family/invites/{token}/accept", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/family/invites/{inviteID}", familyHandler.RevokeInvite).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/family/invites/{inviteID}", handleOptions).Methods(http.MethodOptions)

	inviteRouter := api.PathPrefix("/users/{userID}/family/invites").Subrouter()
	if limiter != nil {
		inviteRouter.Use(limiter.Middleware)
	}
	inviteRouter.HandleFunc("", familyHandler.CreateInvite).Methods(http.MethodPost)
	inviteRouter.HandleFunc("", handleOptions).Methods(http.MethodOptions)

	// Background task routes
	if schedulerHandler != nil {
		api.HandleFunc("/tasks", schedulerHandler.ListTasks).Methods(http.MethodGet)
		api.HandleFunc("/tasks", handleOptions).Methods(http.MethodOptions)
		api.HandleFunc("/tasks/{taskID}/run", schedulerHandler.RunTask).Methods(http.MethodPost)
		api.HandleFunc("/tasks/{taskID}/run", handleOptions).Methods(http.MethodOptions)
	}
}
