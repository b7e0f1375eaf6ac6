package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mcoot/turnclock/internal/api/handler"
	"github.com/mcoot/turnclock/internal/api/middleware"
	"github.com/mcoot/turnclock/internal/api/response"
	"github.com/mcoot/turnclock/internal/services/auth"
	"github.com/mcoot/turnclock/internal/services/room"
	"github.com/mcoot/turnclock/internal/web/sse"
	"github.com/mcoot/turnclock/internal/web/ws"
)

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	RoomController *room.Controller
	HubManager     *sse.HubManager
	SocketServer   *ws.Server
	StorageType    string
	Health         HealthChecker // optional
	AllowedOrigins []string      // defaults to all origins
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.AuthService, cfg.RoomController)
	roomHandler := handler.NewRoomHandler(cfg.RoomController)
	eventsHandler := handler.NewEventsHandler(cfg.RoomController, cfg.HubManager)
	socketHandler := handler.NewSocketHandler(cfg.RoomController, cfg.SocketServer)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Player routes (no auth required for creating players/logging in)
	api.HandleFunc("/players/guest", playerHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)

	// Protected player routes
	playerProtected := api.PathPrefix("/players").Subrouter()
	playerProtected.Use(authMiddleware)
	playerProtected.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)
	playerProtected.HandleFunc("/me/room", playerHandler.GetMyRoom).Methods(http.MethodGet)
	playerProtected.HandleFunc("/logout", playerHandler.Logout).Methods(http.MethodPost)

	// Room routes (all require auth)
	rooms := api.PathPrefix("/rooms").Subrouter()
	rooms.Use(authMiddleware)
	rooms.HandleFunc("", roomHandler.List).Methods(http.MethodGet)
	rooms.HandleFunc("", roomHandler.Create).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}", roomHandler.Get).Methods(http.MethodGet)
	rooms.HandleFunc("/{id}", roomHandler.Delete).Methods(http.MethodDelete)
	rooms.HandleFunc("/{id}/join", roomHandler.Join).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}/leave", roomHandler.Leave).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}/start", roomHandler.Start).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}/end-turn", roomHandler.EndTurn).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}/toggle-pause", roomHandler.TogglePause).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}/reset-time", roomHandler.ResetTime).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}/previous-turn", roomHandler.PreviousTurn).Methods(http.MethodPost)
	rooms.HandleFunc("/{id}/set-time", roomHandler.SetTime).Methods(http.MethodPost)

	// Push routes
	rooms.HandleFunc("/{id}/events", eventsHandler.Stream).Methods(http.MethodGet)
	rooms.HandleFunc("/{id}/ws", socketHandler.Connect).Methods(http.MethodGet)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler(cfg)).Methods(http.MethodGet)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedOrigins:   origins,
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})

	return c.Handler(r)
}

func healthHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Health.Ping(ctx); err != nil {
				cfg.Logger.Warn("health check failed", slog.String("error", err.Error()))
				response.JSON(w, http.StatusServiceUnavailable, response.Health{Status: "unavailable", Storage: cfg.StorageType})
				return
			}
		}
		response.JSON(w, http.StatusOK, response.Health{Status: "ok", Storage: cfg.StorageType})
	}
}
