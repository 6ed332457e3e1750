// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/primepickle/courtside/internal/hub"
	"github.com/primepickle/courtside/internal/lobby"
	"github.com/primepickle/courtside/internal/middleware"
	"github.com/sirupsen/logrus"
)

// APIServer bundles what the HTTP layer needs to serve the lobby API.
type APIServer struct {
	Service        *lobby.Service
	Hub            *hub.Hub
	Logger         *logrus.Logger
	AllowedOrigins []string
}

// Routes builds the router. Everything except /healthz requires a session token.
func (s *APIServer) Routes() http.Handler {
	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.LogMiddleware(s.Logger))

	r.Get("/healthz", HealthzHandler(s.Service))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate)

		r.Get("/me", MeHandler(s.Service))

		r.Route("/lobbies", func(r chi.Router) {
			r.Post("/", CreateLobbyHandler(s.Service))
			r.Get("/", ListLobbiesHandler(s.Service))
			r.Post("/join", JoinLobbyHandler(s.Service))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", GetLobbyHandler(s.Service))
				r.Post("/captain", ClaimCaptainHandler(s.Service))
				r.Post("/ready", SetReadyHandler(s.Service))
				r.Post("/settings", UpdateSettingsHandler(s.Service))
				r.Get("/match", GetMatchHandler(s.Service))
				r.Get("/ws", LobbyWSHandler(s.Logger, s.Service, s.Hub, OriginPatterns(origins)))
			})
		})

		r.Post("/matches/complete", CompleteMatchHandler(s.Service))
	})

	return r
}
