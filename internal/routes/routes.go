package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/stanstork/alert-api/internal/authz"
	"github.com/stanstork/alert-api/internal/handlers"
	"github.com/stanstork/alert-api/internal/models"
)

// NewRouter sets up the API routes
func NewRouter(
	auth *handlers.AuthHandler,
	pref *handlers.PreferenceHandler,
	alert *handlers.AlertHandler,
	broadcast *handlers.BroadcastHandler,
	dispatch *handlers.DispatchHandler,
) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/signup", auth.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/api/login", auth.Login).Methods(http.MethodPost)

	// Authenticated user surface
	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware)

	api.HandleFunc("/preferences", pref.List).Methods(http.MethodGet)
	api.HandleFunc("/preferences", pref.Update).Methods(http.MethodPut)
	api.HandleFunc("/unsubscribe", pref.Unsubscribe).Methods(http.MethodPost)
	api.HandleFunc("/alerts", alert.List).Methods(http.MethodGet)

	// Operator surface
	admin := api.PathPrefix("").Subrouter()
	admin.Use(authz.RequireRole(models.RoleAdmin))

	admin.HandleFunc("/broadcasts", broadcast.Create).Methods(http.MethodPost)
	admin.HandleFunc("/broadcasts", broadcast.List).Methods(http.MethodGet)
	admin.HandleFunc("/broadcasts/{broadcastID}", broadcast.Get).Methods(http.MethodGet)
	admin.HandleFunc("/broadcasts/{broadcastID}", broadcast.Update).Methods(http.MethodPut)
	admin.HandleFunc("/dispatch/run", dispatch.Run).Methods(http.MethodPost)

	return router
}
