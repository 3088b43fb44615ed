package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jurypanel/jurypanel/handlers"
	"github.com/jurypanel/jurypanel/middleware"
)

// SetupRoutes wires the full HTTP surface: public login and read endpoints,
// the authenticated voting surface, the admin group and the live websocket.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret []byte,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	contestHandler *handlers.ContestHandler,
	scoreHandler *handlers.ScoreHandler,
	resultsHandler *handlers.ResultsHandler,
	adminHandler *handlers.AdminHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Route("/api", func(r chi.Router) {
		// Public: login and everything the results screen needs before auth.
		r.Post("/auth/login", authHandler.Login)
		r.Get("/auth/last-username", authHandler.LastUsername)
		r.Get("/criteria", resultsHandler.Criteria)
		r.Get("/contests", contestHandler.List)
		r.Get("/contests/{contestID}", contestHandler.Get)
		r.Get("/contests/{contestID}/results", resultsHandler.Leaderboard)

		// Authenticated voting surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))

			r.Get("/session", sessionHandler.Resume)
			r.Delete("/session", sessionHandler.End)
			r.Put("/session/contest", sessionHandler.SwitchContest)

			r.Get("/contests/{contestID}/scores/mine", scoreHandler.MyScores)
			r.Put("/contests/{contestID}/contestants/{contestantID}/scores/{criterionID}", scoreHandler.UpdateScore)
		})

		// Admin group; services re-check the capability behind the fence.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.RequireAdmin)

			r.Get("/users", authHandler.ListUsers)
			r.Put("/session/user", sessionHandler.SwitchUser)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/contests", contestHandler.Seed)
				r.Post("/contests/{contestID}/toggle", contestHandler.ToggleStatus)
				r.Delete("/contests/{contestID}/scores", adminHandler.ClearContestScores)
				r.Delete("/competition", adminHandler.ClearCompetition)
				r.Delete("/users/{userID}", adminHandler.DeleteUser)
				r.Put("/users/{userID}/contests/{contestID}/contestants/{contestantID}/scores/{criterionID}", adminHandler.EditVote)
				r.Post("/backup", adminHandler.Backup)
				r.Post("/restore", adminHandler.Restore)
			})
		})
	})

	// Results are public, so the live feed is too.
	router.Get("/ws/contests/{contestID}", webSocketHandler.Subscribe)
}
